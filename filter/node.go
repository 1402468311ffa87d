package filter

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
)

// FilterNode 是过滤 Node，可以组合多个过滤器进行过滤。
// 如果任何一个过滤器返回 true，该候选就会被过滤掉。
// 过滤器出错时记录日志并视为保留，不中断流程。
type FilterNode struct {
	Filters []Filter
	Logger  zerolog.Logger
}

func (n *FilterNode) Name() string {
	return "filter.node"
}

func (n *FilterNode) Kind() pipeline.Kind {
	return pipeline.KindFilter
}

func (n *FilterNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Filters) == 0 || len(items) == 0 {
		return items, nil
	}

	out := make([]*core.Candidate, 0, len(items))
	filtered := make(map[string]int, len(n.Filters))
	for _, item := range items {
		if item == nil {
			continue
		}
		drop := false
		for _, f := range n.Filters {
			ok, err := f.ShouldFilter(ctx, rctx, item)
			if err != nil {
				n.Logger.Warn().Err(err).Str("filter", f.Name()).Str("item", item.Key().String()).Msg("filter failed")
				continue
			}
			if ok {
				drop = true
				filtered[f.Name()]++
				break
			}
		}
		if !drop {
			out = append(out, item)
		}
	}

	if len(filtered) > 0 {
		ev := n.Logger.Debug().Str("user_id", rctx.UserID)
		for name, cnt := range filtered {
			ev = ev.Int(name, cnt)
		}
		ev.Msg("candidates filtered")
	}
	return out, nil
}
