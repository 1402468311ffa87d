package filter

import (
	"context"

	"github.com/rushteam/mixrec/core"
)

// ExclusionFilter 过滤掉排除集中或用户已交互的物品。
//
// 打分器拉取候选池时已经排除过一次，这里作为最终输出前的兜底。
type ExclusionFilter struct{}

func (f *ExclusionFilter) Name() string {
	return "filter.exclusion"
}

func (f *ExclusionFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Candidate,
) (bool, error) {
	if item == nil || !item.Category.Valid() {
		return true, nil
	}
	return rctx.IsExcluded(item.Key()), nil
}
