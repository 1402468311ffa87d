package rerank

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
	"github.com/rushteam/mixrec/pkg/utils"
)

// LabelBackfill 标记超出品类上限、用于补齐的候选。
const LabelBackfill = "diversity_backfill"

// Diversify 是品类多样性重排：任一品类在结果中的条数不超过 ceil(limit/Buckets)。
//
// 先按排序顺序贪心选取未超上限的候选；不足 limit 时再按排序顺序回填被跳过的候选
// （只有在其他品类候选不足时才会超过上限）。输出保持原排序顺序，截断到 limit。
type Diversify struct {
	// Buckets 默认 5，即每个品类最多占 1/5
	Buckets int
	// Limit 为 0 时使用 rctx.EffectiveLimit()
	Limit int
}

func (n *Diversify) Name() string        { return "rerank.diversify" }
func (n *Diversify) Kind() pipeline.Kind { return pipeline.KindReRank }

func (n *Diversify) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(items) == 0 {
		return items, nil
	}
	limit := n.Limit
	if limit <= 0 {
		limit = rctx.EffectiveLimit()
	}
	capPerCategory := CategoryCap(limit, n.Buckets)

	picked := make([]int, 0, limit)
	var skipped []int
	counts := make(map[core.Category]int, core.NumCategories)
	for i, c := range items {
		if len(picked) == limit {
			break
		}
		if c == nil {
			continue
		}
		if counts[c.Category] >= capPerCategory {
			skipped = append(skipped, i)
			continue
		}
		counts[c.Category]++
		picked = append(picked, i)
	}
	for _, i := range skipped {
		if len(picked) == limit {
			break
		}
		items[i].PutLabel(LabelBackfill, utils.Label{Value: "true", Source: "rerank"})
		picked = append(picked, i)
	}

	sort.Ints(picked)
	out := make([]*core.Candidate, 0, len(picked))
	for _, i := range picked {
		out = append(out, items[i])
	}
	return out, nil
}

// CategoryCap 返回每个品类允许的最大条数 ceil(limit/buckets)。
func CategoryCap(limit, buckets int) int {
	if buckets <= 0 {
		buckets = core.NumCategories
	}
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(limit) / float64(buckets)))
}
