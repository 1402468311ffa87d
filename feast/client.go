// Package feast 通过 Feast 在线特征服务补全目录物品的统计特征（热度、评分等）。
package feast

import (
	"context"
	"time"
)

// Client 是 Feast 在线特征服务的最小客户端接口。
//
// 目录数据里的热度 / 评分通常由离线任务按天刷新；
// 接入 Feast 后，可以用实时物化的统计特征覆盖它们。
type Client interface {
	// GetOnlineFeatures 获取在线特征
	//
	//   - Features: 例如 ["item_stats:popularity", "item_stats:rating"]
	//   - EntityRows: 例如 [{"item_key": "venue-42"}]
	GetOnlineFeatures(ctx context.Context, req *GetOnlineFeaturesRequest) (*GetOnlineFeaturesResponse, error)

	// Close 关闭客户端连接
	Close() error
}

// GetOnlineFeaturesRequest 获取在线特征请求
type GetOnlineFeaturesRequest struct {
	Features   []string
	EntityRows []map[string]interface{}
	// Project 为空时使用客户端默认项目
	Project string
}

// GetOnlineFeaturesResponse 获取在线特征响应，FeatureVectors 与 EntityRows 一一对应
type GetOnlineFeaturesResponse struct {
	FeatureVectors []FeatureVector
}

// FeatureVector 是一个实体行的特征值
type FeatureVector struct {
	Values    map[string]interface{}
	EntityRow map[string]interface{}
}

// ClientOption Feast 客户端配置选项
type ClientOption func(*ClientConfig)

// ClientConfig Feast 客户端配置
type ClientConfig struct {
	Endpoint string
	Project  string
	Timeout  time.Duration
	// Token 非空时使用静态 Token 认证
	Token string
	TLS   bool
}

// WithTimeout 设置单次请求超时
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithToken 设置静态 Token 认证
func WithToken(token string, tls bool) ClientOption {
	return func(c *ClientConfig) {
		c.Token = token
		c.TLS = tls
	}
}
