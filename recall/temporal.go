package recall

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/mixrec/core"
)

// Temporal 根据请求时刻挑选用户在该小时最常交互的品类，推荐其中的热门物品。
//
// 只在请求携带合法小时（0-23）时运行；星期几（0-6）可选，用于同数打平。
// 分数 = 75 + 次数*5（上限 100），置信度 0.7。
type Temporal struct {
	Catalog core.CatalogStore

	// Share 是占 limit 的份额，默认 0.1
	Share float64
}

func (s *Temporal) Name() string { return NameTemporal }

func (s *Temporal) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	if rctx.Request.HourOfDay == nil {
		return nil, nil
	}
	hour, ok := rctx.Request.ValidHour()
	if !ok {
		return nil, core.NewInvalidContext(fmt.Sprintf("temporal: hour %d out of range", *rctx.Request.HourOfDay))
	}
	share := s.Share
	if share <= 0 {
		share = 0.1
	}

	prof := rctx.Profile()
	cat, count := PeakCategory(prof, hour, rctx.Request)
	if count == 0 {
		return nil, nil
	}

	items, err := fetchPool(ctx, s.Catalog, rctx, core.CatalogQuery{
		Category: cat,
		OrderBy:  core.OrderByPopularity,
		Limit:    Quota(rctx, share),
	})
	if err != nil {
		return nil, err
	}

	out := make([]*core.Candidate, 0, len(items))
	for _, it := range items {
		c := core.CandidateFromItem(it, 75+float64(count)*5, 0.7)
		c.Factors = core.Factors{
			Temporal:   math.Min(1, float64(count)/10),
			Popularity: it.Popularity / 100,
		}
		c.AddReason(fmt.Sprintf("You often browse %s around %02d:00", cat.Label(), hour))
		out = append(out, c)
	}
	out = rankAndCut(out, Quota(rctx, share))
	tag(out, s.Name())
	return out, nil
}

// PeakCategory 返回用户在该小时交互最多的品类及次数；
// 同数时依次按星期几的次数、偏好权重、枚举顺序打平。
func PeakCategory(prof *core.UserProfile, hour int, req core.RequestContext) (core.Category, int) {
	day, hasDay := req.ValidDay()
	best, bestCount := core.CategoryUnknown, 0
	for _, c := range core.AllCategories() {
		n := prof.Behavior.HourCount(hour, c)
		if n == 0 {
			continue
		}
		if n > bestCount {
			best, bestCount = c, n
			continue
		}
		if n == bestCount {
			if hasDay && prof.Behavior.DayCount(day, c) != prof.Behavior.DayCount(day, best) {
				if prof.Behavior.DayCount(day, c) > prof.Behavior.DayCount(day, best) {
					best = c
				}
				continue
			}
			if prof.Preferences.Weight(c) > prof.Preferences.Weight(best) {
				best = c
			}
		}
	}
	return best, bestCount
}
