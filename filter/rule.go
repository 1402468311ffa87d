package filter

import (
	"context"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pkg/dsl"
)

// RuleFilter 是基于 CEL 表达式的规则过滤器，表达式为 true 时过滤。
//
// 可用变量见 dsl.CandidateInput，例如：
//
//	item.category == "device" && item.rating < 3.0
//	rctx.params.kids_mode == true && item.meta.age_rating == "adult"
type RuleFilter struct {
	// Label 用于日志与观测，默认 "filter.rule"
	Label string
	Expr  string
}

func (f *RuleFilter) Name() string {
	if f.Label != "" {
		return f.Label
	}
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Candidate,
) (bool, error) {
	if f.Expr == "" || item == nil {
		return false, nil
	}
	return dsl.NewEval(item, rctx).Evaluate(f.Expr)
}
