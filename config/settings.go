package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 是环境变量前缀，层级用双下划线分隔，
// 例如 MIXREC_ENGINE__GLOBAL_TIMEOUT=3s 覆盖 engine.global_timeout。
const EnvPrefix = "MIXREC_"

// Settings 是引擎的运行配置：默认值 < YAML 文件 < 环境变量。
type Settings struct {
	Engine   EngineSettings   `koanf:"engine"`
	Scorers  ScorerSettings   `koanf:"scorers"`
	Profile  ProfileSettings  `koanf:"profile"`
	Store    StoreSettings    `koanf:"store"`
	Breaker  BreakerSettings  `koanf:"breaker"`
	Logging  LoggingSettings  `koanf:"logging"`
	Feast    FeastSettings    `koanf:"feast"`
	Pipeline PipelineSettings `koanf:"pipeline"`
}

// EngineSettings 控制请求级的并发与超时。
type EngineSettings struct {
	DefaultLimit    int           `koanf:"default_limit" validate:"min=1,max=100"`
	GlobalTimeout   time.Duration `koanf:"global_timeout" validate:"gt=0"`
	ScorerTimeout   time.Duration `koanf:"scorer_timeout" validate:"gt=0,ltefield=GlobalTimeout"`
	FallbackTimeout time.Duration `koanf:"fallback_timeout" validate:"gt=0"`
	MaxConcurrent   int           `koanf:"max_concurrent" validate:"min=0"`
	CategoryBuckets int           `koanf:"category_buckets" validate:"min=1,max=100"`
}

// ScorerSettings 是各打分器的份额与参数。
type ScorerSettings struct {
	ContentShare          float64  `koanf:"content_share" validate:"gte=0,lte=1"`
	CollaborativeShare    float64  `koanf:"collaborative_share" validate:"gte=0,lte=1"`
	HybridShare           float64  `koanf:"hybrid_share" validate:"gte=0,lte=1"`
	TemporalShare         float64  `koanf:"temporal_share" validate:"gte=0,lte=1"`
	RegressionShare       float64  `koanf:"regression_share" validate:"gte=0,lte=1"`
	ContentTopSegments    int      `koanf:"content_top_segments" validate:"min=1"`
	CollaborativeTopK     int      `koanf:"collaborative_top_k" validate:"min=1"`
	HybridTopCategories   int      `koanf:"hybrid_top_categories" validate:"min=1,max=5"`
	RegressionPerCategory int      `koanf:"regression_per_category" validate:"min=1"`
	RegressionMinRating   float64  `koanf:"regression_min_rating" validate:"gte=0,lte=5"`
	Disabled              []string `koanf:"disabled" validate:"dive,oneof=content collaborative hybrid temporal regression"`
}

// ProfileSettings 控制画像构建与邻居发现。
type ProfileSettings struct {
	Window            time.Duration `koanf:"window" validate:"gt=0"`
	AdvancedWindow    time.Duration `koanf:"advanced_window" validate:"gtefield=Window"`
	FetchTimeout      time.Duration `koanf:"fetch_timeout" validate:"gt=0"`
	NeighborThreshold float64       `koanf:"neighbor_threshold" validate:"gte=0,lte=1"`
	NeighborK         int           `koanf:"neighbor_k" validate:"min=1"`
	MaxSeedItems      int           `koanf:"max_seed_items" validate:"min=1"`
}

// StoreSettings 选择数据源后端。
type StoreSettings struct {
	Backend   string        `koanf:"backend" validate:"oneof=memory redis"`
	KeyPrefix string        `koanf:"key_prefix" validate:"required"`
	Redis     RedisSettings `koanf:"redis"`
}

// RedisSettings 是 Redis 连接配置。
type RedisSettings struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db" validate:"min=0"`
	PoolSize     int           `koanf:"pool_size" validate:"min=0"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
}

// BreakerSettings 是数据源熔断配置。
type BreakerSettings struct {
	Enabled          bool          `koanf:"enabled"`
	MaxRequests      uint32        `koanf:"max_requests" validate:"min=1"`
	Interval         time.Duration `koanf:"interval"`
	Timeout          time.Duration `koanf:"timeout" validate:"gt=0"`
	FailureThreshold uint32        `koanf:"failure_threshold" validate:"min=1"`
}

// LoggingSettings 是日志配置。
type LoggingSettings struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// FeastSettings 配置可选的 Feast 物品统计特征补全。
type FeastSettings struct {
	Enabled  bool          `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint" validate:"required_if=Enabled true"`
	Project  string        `koanf:"project" validate:"required_if=Enabled true"`
	Timeout  time.Duration `koanf:"timeout"`
	// Features 形如 "item_stats:popularity"，至少包含 popularity 或 rating
	Features []string `koanf:"features"`
}

// PipelineSettings 配置可选的后置阶段 YAML。
type PipelineSettings struct {
	// Path 为空时使用内置的 exclusion -> ensemble -> diversify -> explain
	Path string `koanf:"path"`
}

// DefaultSettings 返回默认配置。
func DefaultSettings() *Settings {
	return &Settings{
		Engine: EngineSettings{
			DefaultLimit:    12,
			GlobalTimeout:   2500 * time.Millisecond,
			ScorerTimeout:   1500 * time.Millisecond,
			FallbackTimeout: time.Second,
			MaxConcurrent:   0,
			CategoryBuckets: 5,
		},
		Scorers: ScorerSettings{
			ContentShare:          0.4,
			CollaborativeShare:    0.3,
			HybridShare:           0.2,
			TemporalShare:         0.1,
			RegressionShare:       0.3,
			ContentTopSegments:    3,
			CollaborativeTopK:     5,
			HybridTopCategories:   3,
			RegressionPerCategory: 10,
			RegressionMinRating:   2.5,
		},
		Profile: ProfileSettings{
			Window:            90 * 24 * time.Hour,
			AdvancedWindow:    180 * 24 * time.Hour,
			FetchTimeout:      time.Second,
			NeighborThreshold: 0.1,
			NeighborK:         10,
			MaxSeedItems:      50,
		},
		Store: StoreSettings{
			Backend:   "memory",
			KeyPrefix: "mixrec",
			Redis: RedisSettings{
				Addr:         "127.0.0.1:6379",
				PoolSize:     10,
				DialTimeout:  time.Second,
				ReadTimeout:  500 * time.Millisecond,
				WriteTimeout: 500 * time.Millisecond,
			},
		},
		Breaker: BreakerSettings{
			Enabled:          true,
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          10 * time.Second,
			FailureThreshold: 5,
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "json",
		},
		Feast: FeastSettings{
			Timeout:  500 * time.Millisecond,
			Features: []string{"item_stats:popularity", "item_stats:rating"},
		},
	}
}

// Load 依次加载默认值、YAML 文件（path 为空时跳过）与环境变量，并做校验。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}
	if err := splitList(k, "scorers.disabled", "feast.features"); err != nil {
		return nil, err
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate settings: %w", err)
	}
	return s, nil
}

// envKey 把 MIXREC_ENGINE__GLOBAL_TIMEOUT 映射为 engine.global_timeout。
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// splitList 把环境变量中逗号分隔的字符串转换为列表。
func splitList(k *koanf.Koanf, paths ...string) error {
	for _, path := range paths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		var parts []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("set %s: %w", path, err)
		}
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(validateStore, StoreSettings{})
	return v
}

// validateStore 要求 redis 后端必须配置 addr。
func validateStore(sl validator.StructLevel) {
	st := sl.Current().Interface().(StoreSettings)
	if st.Backend == "redis" && st.Redis.Addr == "" {
		sl.ReportError(st.Redis.Addr, "Redis.Addr", "Addr", "required_for_redis", "")
	}
}

// Validate 校验配置取值范围，不修改 s。
func (s *Settings) Validate() error {
	return validate.Struct(s)
}

// ScorerEnabled 判断打分器是否启用。
func (s *Settings) ScorerEnabled(name string) bool {
	for _, d := range s.Scorers.Disabled {
		if d == name {
			return false
		}
	}
	return true
}
