package recall

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/mixrec/core"
)

// Hybrid 在用户最偏好的几个品类里挑选评分最高、最热门的未见物品，
// 给出固定的高分段（78-82）与 0.8 置信度。
type Hybrid struct {
	Catalog core.CatalogStore

	// Share 是占 limit 的份额，默认 0.2
	Share float64
	// TopCategories 默认 3
	TopCategories int
	// MinRating 是候选最低评分，默认 0（不限制）
	MinRating float64
}

func (s *Hybrid) Name() string { return NameHybrid }

func (s *Hybrid) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	share := s.Share
	if share <= 0 {
		share = 0.2
	}
	topN := s.TopCategories
	if topN <= 0 {
		topN = 3
	}
	quota := Quota(rctx, share)

	prof := rctx.Profile()
	categories := prof.Preferences.Top(topN)
	if len(categories) == 0 {
		return nil, nil
	}

	var (
		out  []*core.Candidate
		errs []error
	)
	for _, cat := range categories {
		items, err := fetchPool(ctx, s.Catalog, rctx, core.CatalogQuery{
			Category: cat,
			Filter:   core.CatalogFilter{MinRating: s.MinRating},
			OrderBy:  core.OrderByRating,
			Limit:    quota,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, it := range items {
			c := core.CandidateFromItem(it, 78+4*it.Rating/5, 0.8)
			c.Factors = core.Factors{
				Historical: prof.Preferences.Share(cat),
				Popularity: it.Popularity / 100,
			}
			c.AddReason(fmt.Sprintf("Top rated in %s, one of your favorite categories", cat.Label()))
			if it.Rating > 0 {
				c.AddReason(fmt.Sprintf("Rated %.1f by the community", it.Rating))
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out = rankAndCut(dedupe(out), quota)
	tag(out, s.Name())
	return out, nil
}
