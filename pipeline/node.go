package pipeline

import (
	"context"

	"github.com/rushteam/mixrec/core"
)

// Kind 用于标记 Node 类型，方便观测/治理/编排（例如按阶段打点）。
type Kind string

const (
	KindRecall      Kind = "recall"      // 打分阶段：各打分器生成带分候选
	KindFilter      Kind = "filter"      // 过滤阶段：剔除不符合约束的候选
	KindRank        Kind = "rank"        // 融合阶段：去重、合并分数并排序
	KindReRank      Kind = "rerank"      // 重排阶段：品类多样性等调优
	KindPostProcess Kind = "postprocess" // 后处理阶段：解释文案与展示字段
)

// Node 是 Pipeline 的最小可扩展单元。
// 统一采用“输入 candidates -> 输出 candidates”的形态。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Candidate,
	) ([]*core.Candidate, error)
}
