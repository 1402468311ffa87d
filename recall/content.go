package recall

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/feature"
	"github.com/rushteam/mixrec/similarity"
)

// ContentBased 是基于内容的打分器：
// 在用户有偏好的每个品类中，按偏好最高的细分（品牌 / 类型 / 菜系）拉取候选，
// 以用户向量与物品向量的余弦相似度为核心打分。
//
// 分数 = 55 + 20*相似度 + 10*评分/5 + 10*热度/100 + 精选 3 + 认证 2 + 属性加成（≤3）
type ContentBased struct {
	Catalog core.CatalogStore

	// Share 是占 limit 的份额，默认 0.4
	Share float64
	// TopSegments 是每个品类参与限制的细分数，默认 3
	TopSegments int
	// PoolSize 是每个品类拉取的候选数，默认 quota*2
	PoolSize int
}

func (s *ContentBased) Name() string { return NameContent }

func (s *ContentBased) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	share := s.Share
	if share <= 0 {
		share = 0.4
	}
	topSegments := s.TopSegments
	if topSegments <= 0 {
		topSegments = 3
	}
	quota := Quota(rctx, share)
	pool := s.PoolSize
	if pool <= 0 {
		pool = quota * 2
	}

	prof := rctx.Profile()
	categories := prof.Preferences.Ranked()
	if len(categories) == 0 {
		return nil, nil
	}

	vz := feature.NewVectorizer(rctx.Now)
	user := vz.User(prof)

	var (
		out  []*core.Candidate
		errs []error
	)
	for _, cat := range categories {
		segments := prof.TopSegments(cat, topSegments)
		items, err := fetchPool(ctx, s.Catalog, rctx, core.CatalogQuery{
			Category: cat,
			Filter:   core.CatalogFilter{Segments: segments},
			OrderBy:  core.OrderByPopularity,
			Limit:    pool,
		})
		if err == nil && len(items) == 0 && len(segments) > 0 {
			// 细分内没有可推荐物品时放宽到整个品类
			segments = nil
			items, err = fetchPool(ctx, s.Catalog, rctx, core.CatalogQuery{Category: cat, OrderBy: core.OrderByPopularity, Limit: pool})
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}

		prefShare := prof.Preferences.Share(cat)
		for _, it := range items {
			align := math.Max(0, similarity.Cosine(user, vz.Item(it).Vector))
			score := 55 + 20*align + 10*it.Rating/5 + 10*it.Popularity/100 + attributeBonus(it, vz)
			if it.Featured {
				score += 3
			}
			if it.Verified {
				score += 2
			}
			c := core.CandidateFromItem(it, score, 0.4+0.4*align+0.2*prefShare)
			c.Factors = core.Factors{
				Content:    align,
				Historical: prefShare,
				Popularity: it.Popularity / 100,
			}
			c.AddReason(fmt.Sprintf("Matches your interest in %s", cat.Label()))
			if len(segments) > 0 && it.Segment != "" {
				c.AddReason(fmt.Sprintf("From %s, one of your go-to picks", it.Segment))
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

// attributeBonus 是品类无关的属性加成：快手（≤30 分钟）、健康、新品各 +1。
func attributeBonus(it *core.CatalogItem, vz *feature.Vectorizer) float64 {
	bonus := 0.0
	if it.PrepMinutes > 0 && it.PrepMinutes <= 30 {
		bonus++
	}
	if it.Healthy {
		bonus++
	}
	if !vz.Now.IsZero() && !it.ReleasedAt.IsZero() && !it.ReleasedAt.After(vz.Now) && vz.Now.Sub(it.ReleasedAt) <= feature.FreshWindow {
		bonus++
	}
	return bonus
}
