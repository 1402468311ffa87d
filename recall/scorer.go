package recall

import (
	"context"
	"math"
	"sort"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pkg/utils"
)

// Scorer 是一个可并发 fan-out 的打分策略单元。
//
// 所有打分器共享同一个只读的画像快照（rctx.User），各自从数据源拉取候选池，
// 返回带分数、置信度与理由的候选。打分器之间互不通信。
type Scorer interface {
	Name() string
	Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error)
}

// 打分器名称
const (
	NameContent       = "content"
	NameCollaborative = "collaborative"
	NameHybrid        = "hybrid"
	NameTemporal      = "temporal"
	NameRegression    = "regression"
	NamePopularity    = "popularity"
)

// LabelRecallSource 记录候选来自哪个打分器。
const LabelRecallSource = "recall_source"

// Quota 返回按份额计算的条数：ceil(limit*share)，至少 1。
func Quota(rctx *core.RecommendContext, share float64) int {
	if share <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(rctx.EffectiveLimit()) * share))
	if n < 1 {
		n = 1
	}
	return n
}

// fetchPool 按排除集查询候选池，并再次过滤数据源未处理的排除项。
func fetchPool(ctx context.Context, catalog core.CatalogStore, rctx *core.RecommendContext, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	if catalog == nil {
		return nil, core.NewDataUnavailable(core.ModuleRecall, "recall: catalog not configured", nil)
	}
	q.ExcludeIDs = rctx.ExcludeIDs(q.Category)
	items, err := catalog.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	out := items[:0:0]
	for _, it := range items {
		if it == nil || rctx.IsExcluded(it.Key()) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// tag 为候选写入来源 label。
func tag(cands []*core.Candidate, source string) {
	for _, c := range cands {
		c.PutLabel(LabelRecallSource, utils.Label{Value: source, Source: "recall"})
	}
}

// rankAndCut 按分数降序（同分按复合键）排序，并截断到 n。
func rankAndCut(cands []*core.Candidate, n int) []*core.Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Key().String() < cands[j].Key().String()
	})
	if n > 0 && len(cands) > n {
		cands = cands[:n]
	}
	return cands
}

// dedupe 去掉同一打分器内重复的复合键，保留第一次出现的候选。
func dedupe(cands []*core.Candidate) []*core.Candidate {
	seen := make(map[core.ItemKey]struct{}, len(cands))
	out := cands[:0]
	for _, c := range cands {
		if _, ok := seen[c.Key()]; ok {
			continue
		}
		seen[c.Key()] = struct{}{}
		out = append(out, c)
	}
	return out
}
