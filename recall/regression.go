package recall

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/feature"
	"github.com/rushteam/mixrec/model"
	"github.com/rushteam/mixrec/similarity"
)

// HeuristicRegression 用启发式评分模型为每个品类的热门未见物品预测 0-5 评分，
// 分数 = 预测评分*20，低于 MinRating 的候选被丢弃。
type HeuristicRegression struct {
	Catalog core.CatalogStore
	// Model 默认 model.NewHeuristicRating()
	Model model.RatingModel

	// Share 是占 limit 的份额，默认 0.3
	Share float64
	// PerCategory 是每个品类参与预测的候选数，默认 10
	PerCategory int
	// MinRating 默认 2.5
	MinRating float64
}

func (s *HeuristicRegression) Name() string { return NameRegression }

func (s *HeuristicRegression) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	share := s.Share
	if share <= 0 {
		share = 0.3
	}
	perCategory := s.PerCategory
	if perCategory <= 0 {
		perCategory = 10
	}
	minRating := s.MinRating
	if minRating <= 0 {
		minRating = 2.5
	}
	m := s.Model
	if m == nil {
		m = model.NewHeuristicRating()
	}

	prof := rctx.Profile()
	if prof.IsColdStart() {
		return nil, nil
	}

	vz := feature.NewVectorizer(rctx.Now)
	raw := vz.RawUser(prof)
	user := vz.User(prof)
	sufficiency := math.Min(feature.Magnitude(raw)/10, 1)
	dominant, concentration := prof.Behavior.Concentration()

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
		pref := prof.Preferences.Weight(cat)
		for _, it := range items {
			sim := math.Max(0, similarity.Cosine(user, vz.Item(it).Vector))
			features := map[string]float64{
				model.FeatureSimilarity:    sim,
				model.FeaturePreference:    pref,
				model.FeaturePopularity:    it.Popularity,
				model.FeatureConcentration: concentration,
				model.FeatureSufficiency:   sufficiency,
			}
			if cat == dominant {
				features[model.FeatureDominant] = 1
			}
			rating, err := m.Predict(features)
			if err != nil || rating < minRating {
				continue
			}

			c := core.CandidateFromItem(it, rating*20, m.Confidence(features))
			c.Factors = core.Factors{
				Content:    sim,
				Historical: prof.Preferences.Share(cat),
				Popularity: it.Popularity / 100,
			}
			if pref == 0 {
				c.AddReason(fmt.Sprintf("Something new for you in %s", cat.Label()))
			} else {
				c.AddReason(fmt.Sprintf("Predicted rating %.1f based on your activity", rating))
			}
			out = append(out, c)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out = rankAndCut(out, Quota(rctx, share))
	tag(out, s.Name())
	return out, nil
}
