package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/mixrec/core"
)

// BreakerConfig 是数据源熔断配置。
type BreakerConfig struct {
	MaxRequests      uint32        // 半开状态允许的探测请求数
	Interval         time.Duration // 闭合状态计数清零周期
	Timeout          time.Duration // 打开状态持续时间
	FailureThreshold uint32        // 连续失败多少次后打开
}

// DefaultBreakerConfig 返回默认熔断配置。
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

func newBreaker[T any](name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker[T] {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// 调用方主动取消不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("provider circuit breaker state changed")
		},
	})
}

// breakerErr 把熔断器拒绝转换为 DATA_UNAVAILABLE。
func breakerErr(name string, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return core.NewDataUnavailable(core.ModuleProvider, name+": circuit open", err)
	}
	return err
}

// Guarded 为四个数据源分别加上熔断器；熔断打开时快速失败，
// 链路按 DATA_UNAVAILABLE 降级。
type Guarded struct {
	inner core.Providers

	activity   *gobreaker.CircuitBreaker[[]core.ActivityEvent]
	favorites  *gobreaker.CircuitBreaker[[]core.Favorite]
	catalog    *gobreaker.CircuitBreaker[[]*core.CatalogItem]
	exclusions *gobreaker.CircuitBreaker[map[string]struct{}]
}

// NewGuarded 创建带熔断的数据源集合。
func NewGuarded(inner core.Providers, cfg BreakerConfig, logger zerolog.Logger) *Guarded {
	return &Guarded{
		inner:      inner,
		activity:   newBreaker[[]core.ActivityEvent]("activity", cfg, logger),
		favorites:  newBreaker[[]core.Favorite]("favorites", cfg, logger),
		catalog:    newBreaker[[]*core.CatalogItem]("catalog", cfg, logger),
		exclusions: newBreaker[map[string]struct{}]("exclusions", cfg, logger),
	}
}

// Providers 返回带熔断的数据源。
func (g *Guarded) Providers() core.Providers {
	return core.Providers{
		Activity:   guardedActivity{g},
		Favorites:  guardedFavorites{g},
		Catalog:    guardedCatalog{g},
		Exclusions: guardedExclusions{g},
	}
}

// States 返回各熔断器状态，用于健康检查。
func (g *Guarded) States() map[string]string {
	return map[string]string{
		"activity":   g.activity.State().String(),
		"favorites":  g.favorites.State().String(),
		"catalog":    g.catalog.State().String(),
		"exclusions": g.exclusions.State().String(),
	}
}

type guardedActivity struct{ g *Guarded }

func (a guardedActivity) Query(ctx context.Context, userID string, since time.Time) ([]core.ActivityEvent, error) {
	out, err := a.g.activity.Execute(func() ([]core.ActivityEvent, error) {
		return a.g.inner.Activity.Query(ctx, userID, since)
	})
	return out, breakerErr("activity", err)
}

func (a guardedActivity) QueryByItems(ctx context.Context, keys []core.ItemKey, since time.Time) ([]core.ActivityEvent, error) {
	out, err := a.g.activity.Execute(func() ([]core.ActivityEvent, error) {
		return a.g.inner.Activity.QueryByItems(ctx, keys, since)
	})
	return out, breakerErr("activity", err)
}

type guardedFavorites struct{ g *Guarded }

func (f guardedFavorites) Query(ctx context.Context, userID string) ([]core.Favorite, error) {
	out, err := f.g.favorites.Execute(func() ([]core.Favorite, error) {
		return f.g.inner.Favorites.Query(ctx, userID)
	})
	return out, breakerErr("favorites", err)
}

type guardedCatalog struct{ g *Guarded }

func (c guardedCatalog) Query(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	out, err := c.g.catalog.Execute(func() ([]*core.CatalogItem, error) {
		return c.g.inner.Catalog.Query(ctx, q)
	})
	return out, breakerErr("catalog", err)
}

func (c guardedCatalog) Lookup(ctx context.Context, category core.Category, ids []string) ([]*core.CatalogItem, error) {
	out, err := c.g.catalog.Execute(func() ([]*core.CatalogItem, error) {
		return c.g.inner.Catalog.Lookup(ctx, category, ids)
	})
	return out, breakerErr("catalog", err)
}

type guardedExclusions struct{ g *Guarded }

func (e guardedExclusions) Resolve(ctx context.Context, userID string, category core.Category) (map[string]struct{}, error) {
	out, err := e.g.exclusions.Execute(func() (map[string]struct{}, error) {
		return e.g.inner.Exclusions.Resolve(ctx, userID, category)
	})
	return out, breakerErr("exclusions", err)
}
