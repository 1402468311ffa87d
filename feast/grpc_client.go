package feast

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"
)

// GrpcClient 是基于官方 Feast Go SDK 的 gRPC 客户端实现。
type GrpcClient struct {
	client *feastsdk.GrpcClient

	Project  string
	Endpoint string
	Timeout  time.Duration
}

// Dial 按 "host:port" 或 "grpc://host:port" 创建客户端，端口缺省为 6565。
func Dial(endpoint, project string, opts ...ClientOption) (*GrpcClient, error) {
	endpoint = strings.TrimPrefix(endpoint, "grpc://")
	host, portStr, err := net.SplitHostPort(endpoint)
	if err != nil {
		host, portStr = endpoint, ""
	}
	port := 0
	if portStr != "" {
		if port, err = strconv.Atoi(portStr); err != nil {
			return nil, fmt.Errorf("feast: invalid port %q: %w", portStr, err)
		}
	}
	return NewGrpcClient(host, port, project, opts...)
}

// NewGrpcClient 创建一个 Feast gRPC 客户端。
func NewGrpcClient(host string, port int, project string, opts ...ClientOption) (*GrpcClient, error) {
	if port == 0 {
		port = 6565
	}
	cfg := &ClientConfig{
		Endpoint: fmt.Sprintf("%s:%d", host, port),
		Project:  project,
		Timeout:  time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var (
		client *feastsdk.GrpcClient
		err    error
	)
	if cfg.Token != "" {
		client, err = feastsdk.NewSecureGrpcClient(host, port, feastsdk.SecurityConfig{
			EnableTLS:  cfg.TLS,
			Credential: feastsdk.NewStaticCredential(cfg.Token),
		})
	} else {
		client, err = feastsdk.NewGrpcClient(host, port)
	}
	if err != nil {
		return nil, fmt.Errorf("feast: dial %s: %w", cfg.Endpoint, err)
	}

	return &GrpcClient{
		client:   client,
		Project:  project,
		Endpoint: cfg.Endpoint,
		Timeout:  cfg.Timeout,
	}, nil
}

// GetOnlineFeatures 获取在线特征（实现 Client 接口）
func (c *GrpcClient) GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error) {
	if len(req.Features) == 0 || len(req.EntityRows) == 0 {
		return nil, fmt.Errorf("feast: features and entity rows are required")
	}
	project := req.Project
	if project == "" {
		project = c.Project
	}
	if project == "" {
		return nil, fmt.Errorf("feast: project is required")
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	entities := make([]feastsdk.Row, len(req.EntityRows))
	for i, row := range req.EntityRows {
		r := make(feastsdk.Row, len(row))
		for k, v := range row {
			r[k] = toSDKValue(v)
		}
		entities[i] = r
	}

	resp, err := c.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: req.Features,
		Entities: entities,
		Project:  project,
	})
	if err != nil {
		return nil, fmt.Errorf("feast: get online features: %w", err)
	}

	rows := resp.Rows()
	if len(rows) != len(req.EntityRows) {
		return nil, fmt.Errorf("feast: expected %d rows, got %d", len(req.EntityRows), len(rows))
	}
	out := &GetOnlineFeaturesResponse{FeatureVectors: make([]FeatureVector, len(rows))}
	for i, row := range rows {
		values := make(map[string]interface{}, len(req.Features))
		for _, name := range req.Features {
			if v, ok := row[name]; ok && v != nil {
				values[name] = fromSDKValue(v)
			}
		}
		out.FeatureVectors[i] = FeatureVector{Values: values, EntityRow: req.EntityRows[i]}
	}
	return out, nil
}

// Close 关闭客户端连接（实现 Client 接口）
func (c *GrpcClient) Close() error {
	c.client = nil
	return nil
}

func toSDKValue(v interface{}) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprint(val))
	}
}

// fromSDKValue 把 protobuf oneof 取值转换为 Go 基础类型，数值统一为 float64。
func fromSDKValue(v *types.Value) interface{} {
	switch val := v.GetVal().(type) {
	case *types.Value_DoubleVal:
		return val.DoubleVal
	case *types.Value_FloatVal:
		return float64(val.FloatVal)
	case *types.Value_Int64Val:
		return float64(val.Int64Val)
	case *types.Value_Int32Val:
		return float64(val.Int32Val)
	case *types.Value_StringVal:
		return val.StringVal
	case *types.Value_BoolVal:
		if val.BoolVal {
			return float64(1)
		}
		return float64(0)
	default:
		return nil
	}
}

var _ Client = (*GrpcClient)(nil)
