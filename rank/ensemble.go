package rank

import (
	"context"
	"sort"
	"strconv"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
	"github.com/rushteam/mixrec/pkg/utils"
)

// 融合阶段写入的 label
const (
	LabelMergeCount = "merge_count"
	LabelBoost      = "ensemble_boost"
)

// Ensemble 是融合排序 Node：合并各打分器的候选并施加场景加权。
//
// 同一 (category, itemId) 的多个候选合并为一个：
//   - 分数取平均，置信度取最大
//   - 理由按出现顺序拼接去重，因子逐项取最大
//
// 合并后 boost = 1 + ConfidenceWeight*置信度，
// 请求小时是用户活跃时段时再加 ActivityWeight*活跃比例；最终分数 = 平均分*boost，截断到 [0,100]。
// 输出按最终分数降序，同分按复合键升序，保证确定性。
type Ensemble struct {
	// ConfidenceWeight 默认 0.2
	ConfidenceWeight float64
	// ActivityWeight 默认 0.1
	ActivityWeight float64
}

func (n *Ensemble) Name() string        { return "rank.ensemble" }
func (n *Ensemble) Kind() pipeline.Kind { return pipeline.KindRank }

type merged struct {
	cand  *core.Candidate
	sum   float64
	count int
}

func (n *Ensemble) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(items) == 0 {
		return items, nil
	}
	confWeight := n.ConfidenceWeight
	if confWeight <= 0 {
		confWeight = 0.2
	}
	activityWeight := n.ActivityWeight
	if activityWeight <= 0 {
		activityWeight = 0.1
	}

	order := make([]core.ItemKey, 0, len(items))
	groups := make(map[core.ItemKey]*merged, len(items))
	for _, c := range items {
		if c == nil {
			continue
		}
		key := c.Key()
		g, ok := groups[key]
		if !ok {
			groups[key] = &merged{cand: c.Clone(), sum: c.Score, count: 1}
			order = append(order, key)
			continue
		}
		g.sum += c.Score
		g.count++
		mergeInto(g.cand, c)
	}

	activity := 0.0
	if hour, ok := rctx.Request.ValidHour(); ok {
		activity = rctx.Profile().Behavior.ActivityRatio(hour)
	}

	out := make([]*core.Candidate, 0, len(order))
	for _, key := range order {
		g := groups[key]
		c := g.cand
		boost := 1 + confWeight*c.Confidence
		if activity > 0 {
			boost += activityWeight * activity
		}
		c.Score = core.ClampScore(g.sum / float64(g.count) * boost)
		c.PutLabel(LabelMergeCount, utils.Label{Value: strconv.Itoa(g.count), Source: "rank"})
		c.PutLabel(LabelBoost, utils.Label{Value: strconv.FormatFloat(boost, 'f', 3, 64), Source: "rank"})
		out = append(out, c)
	}

	SortByScore(out)
	return out, nil
}

// mergeInto 把同键候选的置信度、因子、理由与标签合并进 dst。
func mergeInto(dst, src *core.Candidate) {
	if src.Confidence > dst.Confidence {
		dst.Confidence = src.Confidence
	}
	dst.Factors = dst.Factors.Max(src.Factors)
	for _, r := range src.Reasons {
		dst.AddReason(r)
	}
	for k, v := range src.Labels {
		dst.PutLabel(k, v)
	}
	if dst.Item == nil {
		dst.Item = src.Item
	}
}

// SortByScore 按分数降序稳定排序，同分按复合键升序。
func SortByScore(items []*core.Candidate) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Score != items[j].Score {
			return items[i].Score > items[j].Score
		}
		return items[i].Key().String() < items[j].Key().String()
	})
}
