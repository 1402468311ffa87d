// Package mixrec 是面向多品类目录（菜谱 / 设备 / 场地 / 蛋糕 / 体育用品）的个性化推荐引擎。
//
// 设计要点：
// - 请求级画像：每次请求从行为日志与收藏构建只读的 UserProfile 快照
// - 多打分器并发：内容、协同、混合、时段、回归打分器各自超时，失败只影响自身
// - Pipeline 后置阶段：exclusion → ensemble → diversify → explain，可由 YAML 组合
// - 永不失败：冷启动、超时与数据源故障都降级为品类热度排序
package mixrec

import (
	"github.com/rushteam/mixrec/engine"
	"github.com/rushteam/mixrec/pipeline"
)

// 轻量 facade：便于直接 import "mixrec" 使用核心抽象。
type (
	Engine   = engine.Engine
	Request  = engine.Request
	Response = engine.Response
	Options  = engine.Options

	Pipeline = pipeline.Pipeline
	Node     = pipeline.Node
	Kind     = pipeline.Kind
)

// New 创建推荐引擎，等价于 engine.New。
var New = engine.New

const (
	KindRecall      = pipeline.KindRecall
	KindFilter      = pipeline.KindFilter
	KindRank        = pipeline.KindRank
	KindReRank      = pipeline.KindReRank
	KindPostProcess = pipeline.KindPostProcess
)
