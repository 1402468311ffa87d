// Package model 提供确定性的启发式评分函数。
//
// 这里没有训练、没有模型持久化：所有“回归”都是固定系数的线性组合。
package model

// RankModel 是评分阶段的最小抽象：输入特征，输出一个可比较的分数。
type RankModel interface {
	Name() string
	Predict(features map[string]float64) (float64, error)
}

// RatingModel 在 RankModel 之上给出预测的置信度 [0,1]。
// recall.HeuristicRegression 通过该接口调用模型。
type RatingModel interface {
	RankModel
	Confidence(features map[string]float64) float64
}
