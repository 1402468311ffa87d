package rerank

import (
	"context"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
)

// TopNNode 是一个 Top-N 截断节点，用于在排序后截取前 N 个候选。
//
// 示例：
//
//	pipeline := &pipeline.Pipeline{
//	    Nodes: []pipeline.Node{
//	        &rank.Ensemble{},         // 融合排序
//	        &rerank.Diversify{},      // 品类多样性
//	        &rerank.TopNNode{N: 20},  // 截取 Top 20
//	    },
//	}
type TopNNode struct {
	// N 要保留的候选数量；N <= 0 时使用 rctx.EffectiveLimit()
	N int
}

func (n *TopNNode) Name() string {
	return "rerank.topn"
}

func (n *TopNNode) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *TopNNode) Process(
	_ context.Context,
	rctx *core.RecommendContext,
	items []*core.Candidate,
) ([]*core.Candidate, error) {
	limit := n.N
	if limit <= 0 {
		limit = rctx.EffectiveLimit()
	}
	if len(items) <= limit {
		return items, nil
	}
	return items[:limit], nil
}
