package rerank

import (
	"context"
	"fmt"
	"math"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
)

// MaxReasons 是每个候选最多展示的理由数。
const MaxReasons = 3

// Explain 是后处理 Node：为每个候选整理 1-3 条理由并填充展示字段。
//
// 打分器给出的理由优先；不足 MaxReasons 条时按因子补充
// （品类偏好、相似用户、时段习惯、评分、热度），一条都没有时给出通用理由。
// DisplayScore 为四舍五入后的分数，DisplayConfidence 为 0-100 的整数。
type Explain struct{}

func (n *Explain) Name() string        { return "postprocess.explain" }
func (n *Explain) Kind() pipeline.Kind { return pipeline.KindPostProcess }

func (n *Explain) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	for _, c := range items {
		if c == nil {
			continue
		}
		explainOne(c)
	}
	return items, nil
}

func explainOne(c *core.Candidate) {
	reasons := make([]string, 0, MaxReasons)
	add := func(r string) {
		if r == "" || len(reasons) == MaxReasons {
			return
		}
		for _, old := range reasons {
			if old == r {
				return
			}
		}
		reasons = append(reasons, r)
	}
	for _, r := range c.Reasons {
		add(r)
	}
	for _, r := range factorReasons(c) {
		add(r)
	}
	if len(reasons) == 0 {
		add(fmt.Sprintf("Recommended from %s", c.Category.Label()))
	}
	c.Reasons = reasons
	c.DisplayScore = int(math.Round(c.Score))
	c.DisplayConfidence = int(math.Round(c.Confidence * 100))
}

func factorReasons(c *core.Candidate) []string {
	var out []string
	f := c.Factors
	if f.Historical > 0 {
		out = append(out, fmt.Sprintf("Because you like %s", c.Category.Label()))
	}
	if f.Collaborative > 0 {
		out = append(out, "Popular with users like you")
	}
	if f.Temporal > 0 {
		out = append(out, "Fits when you usually browse")
	}
	if c.Item != nil && c.Item.Rating >= 4 {
		out = append(out, fmt.Sprintf("Highly rated (%.1f/5)", c.Item.Rating))
	}
	if f.Popularity >= 0.5 {
		out = append(out, fmt.Sprintf("Trending in %s", c.Category.Label()))
	}
	return out
}
