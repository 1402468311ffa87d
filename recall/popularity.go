package recall

import (
	"context"
	"errors"
	"fmt"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
)

// Popularity 是不依赖画像的品类热度打分器，用作冷启动与超时降级。
//
// 分数 = 30 + 0.4*热度 + 4*评分，置信度固定 0.3，只有 Popularity 因子非零。
// Popularity 同时实现了 Scorer 和 Node 接口，可以直接在 Pipeline 中使用。
type Popularity struct {
	Catalog core.CatalogStore

	// PerCategory 是每个品类拉取的物品数，默认 limit
	PerCategory int
	// Confidence 默认 0.3
	Confidence float64
}

func (s *Popularity) Name() string        { return NamePopularity }
func (s *Popularity) Kind() pipeline.Kind { return pipeline.KindRecall }

// Process 实现 Node 接口，直接调用 Score
func (s *Popularity) Process(ctx context.Context, rctx *core.RecommendContext, _ []*core.Candidate) ([]*core.Candidate, error) {
	return s.Score(ctx, rctx)
}

func (s *Popularity) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	perCategory := s.PerCategory
	if perCategory <= 0 {
		perCategory = rctx.EffectiveLimit()
	}
	conf := s.Confidence
	if conf <= 0 {
		conf = 0.3
	}

	var (
		out  []*core.Candidate
		errs []error
	)
	for _, cat := range core.AllCategories() {
		items, err := fetchPool(ctx, s.Catalog, rctx, core.CatalogQuery{
			Category: cat,
			OrderBy:  core.OrderByPopularity,
			Limit:    perCategory,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, it := range items {
			c := core.CandidateFromItem(it, 30+0.4*it.Popularity+4*it.Rating, conf)
			c.Factors.Popularity = core.ClampConfidence(it.Popularity / 100)
			c.AddReason(fmt.Sprintf("Popular in %s right now", cat.Label()))
			out = append(out, c)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out = rankAndCut(dedupe(out), 0)
	tag(out, s.Name())
	return out, nil
}
