// Package profile 在每次请求时从行为日志与收藏构建只读的用户画像快照。
package profile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/similarity"
)

// 时间窗口
const (
	DefaultWindow  = 90 * 24 * time.Hour
	AdvancedWindow = 180 * 24 * time.Hour
)

// Options 是单次构建参数。
type Options struct {
	// Now 是窗口结束时间（不含），零值表示当前时间
	Now time.Time
	// Advanced 为 true 时使用 180 天窗口
	Advanced bool
}

// Builder 构建 core.UserProfile。
//
// 构建过程只读数据源，没有副作用；返回的画像在之后的链路中不再被修改。
type Builder struct {
	Activity  core.ActivityLogStore
	Favorites core.FavoritesStore

	// Neighbors 可选；为空时不做邻居发现
	Neighbors *similarity.NeighborFinder

	// Window / AdvancedWindow 可覆盖默认窗口
	Window         time.Duration
	AdvancedWindow time.Duration

	// FetchTimeout 是每个数据源调用（包括邻居发现）的超时，默认 1s
	FetchTimeout time.Duration

	Logger zerolog.Logger
}

// NewBuilder 创建画像构建器。
func NewBuilder(activity core.ActivityLogStore, favorites core.FavoritesStore, logger zerolog.Logger) *Builder {
	return &Builder{
		Activity:     activity,
		Favorites:    favorites,
		FetchTimeout: time.Second,
		Logger:       logger.With().Str("component", "profile").Logger(),
	}
}

func (b *Builder) window(advanced bool) time.Duration {
	if advanced {
		if b.AdvancedWindow > 0 {
			return b.AdvancedWindow
		}
		return AdvancedWindow
	}
	if b.Window > 0 {
		return b.Window
	}
	return DefaultWindow
}

// Build 构建画像。
//
// 行为日志不可用时返回空画像与 DATA_UNAVAILABLE 错误，调用方据此降级；
// 收藏或邻居发现失败只记录日志。窗口内没有任何数据时返回冷启动画像，err 为 nil。
func (b *Builder) Build(ctx context.Context, userID string, opts Options) (*core.UserProfile, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	since := now.Add(-b.window(opts.Advanced))
	p := core.NewUserProfile(userID)
	p.WindowStart, p.WindowEnd = since, now

	if userID == "" {
		return p, nil
	}

	var (
		events    []core.ActivityEvent
		favorites []core.Favorite
		favErr    error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if b.Activity == nil {
			return nil
		}
		fctx, cancel := b.fetchContext(gctx)
		defer cancel()
		var err error
		events, err = b.Activity.Query(fctx, userID, since)
		if err != nil {
			return core.NewDataUnavailable(core.ModuleProfile, "profile: activity log", err)
		}
		return nil
	})
	g.Go(func() error {
		if b.Favorites == nil {
			return nil
		}
		fctx, cancel := b.fetchContext(gctx)
		defer cancel()
		favorites, favErr = b.Favorites.Query(fctx, userID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.NewUserProfile(userID), err
	}
	if favErr != nil {
		b.Logger.Warn().Str("user_id", userID).Err(favErr).Msg("favorites unavailable, building profile from activity only")
		favorites = nil
	}

	keys := Accumulate(p, events, favorites, since, now)

	if b.Neighbors != nil && len(keys) > 0 {
		nctx, cancel := b.fetchContext(ctx)
		neighbors, err := b.Neighbors.Find(nctx, similarity.Target{UserID: userID, Keys: keys, Since: since, Until: now})
		cancel()
		if err != nil {
			b.Logger.Warn().Str("user_id", userID).Err(err).Msg("neighbor discovery failed")
		} else {
			p.Neighbors = neighbors
		}
	}
	return p, nil
}

func (b *Builder) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.FetchTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.FetchTimeout)
}

// Accumulate 把窗口 [since, until) 内的事件与收藏累积进画像，
// 返回窗口内行为事件涉及的物品（按时间升序）。收藏记录只进入 Interactions，不进入返回值，
// 邻居的交互集合同样只由行为事件构成。
func Accumulate(p *core.UserProfile, events []core.ActivityEvent, favorites []core.Favorite, since, until time.Time) []core.ItemKey {
	st := &p.Behavior
	keys := make([]core.ItemKey, 0, len(events))

	var (
		dwellSum   float64
		dwellCount int
		views      int
		favs       int
	)
	for _, e := range events {
		if e.Timestamp.Before(since) || !e.Timestamp.Before(until) {
			continue
		}
		i := e.Category.Index()
		if i < 0 {
			continue
		}
		w := e.Type.Weight()
		p.Preferences.Add(e.Category, w)
		if seg := e.Metadata[core.MetaSegment]; seg != "" {
			p.Segments[i][seg] += w
		}

		hour, day := e.Timestamp.Hour(), int(e.Timestamp.Weekday())
		st.HourHistogram[hour]++
		st.DayHistogram[day]++
		st.HourCategory[hour][i]++
		st.DayCategory[day][i]++
		st.CategoryEvents[i]++
		st.EventCounts[e.Type]++
		st.TotalEvents++

		switch e.Type {
		case core.EventView:
			views++
		case core.EventFavorite:
			favs++
			st.Favorites[i]++
		case core.EventUsed:
			st.CategoryUsed[i]++
		case core.EventRated:
			if r, ok := e.MetaFloat(core.MetaRating); ok {
				st.CategoryRatings[i] += r
				st.CategoryRated[i]++
			}
		}
		if d, ok := e.MetaFloat(core.MetaDwell); ok && d >= 0 {
			dwellSum += d
			dwellCount++
		}

		p.Interactions[e.Key().String()] = struct{}{}
		keys = append(keys, e.Key())
	}

	for _, f := range favorites {
		i := f.Category.Index()
		if i < 0 || !f.CreatedAt.Before(until) {
			continue
		}
		p.Preferences.Add(f.Category, core.FavoriteBonus)
		st.Favorites[i]++
		favs++
		if f.Segment != "" {
			p.FavoriteSegments[f.Segment]++
			p.Segments[i][f.Segment] += core.FavoriteBonus
		}
		p.Interactions[f.Key().String()] = struct{}{}
	}

	if dwellCount > 0 {
		st.AvgDwellSeconds = dwellSum / float64(dwellCount)
	}
	if views > 0 {
		st.ConversionRate = float64(favs) / float64(views)
	}
	return keys
}
