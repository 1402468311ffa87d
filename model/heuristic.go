package model

import "math"

// 启发式评分使用的特征名
const (
	FeatureSimilarity    = "similarity"    // 用户向量与物品向量的余弦相似度 [0,1]
	FeaturePreference    = "preference"    // 物品品类的偏好权重（原始值）
	FeaturePopularity    = "popularity"    // 物品热度 [0,100]
	FeatureConcentration = "concentration" // 用户交互最集中品类的占比 [0,1]
	FeatureDominant      = "dominant"      // 物品是否属于该集中品类（0/1）
	FeatureSufficiency   = "sufficiency"   // 用户数据充分度 [0,1]
)

// HeuristicRating 用固定系数的线性组合预测 0-5 分制评分。
//
// 预测原理：
//  1. 线性加权: r = Bias + Similarity*sim + min(pref/PreferenceScale, 1) + PopularityBoost*pop/100
//  2. 封顶 5.0 并保留一位小数
//  3. 多样性修正：交互高度集中（> ConcentrationLimit）且物品属于集中品类时 -ConcentrationPenalty；
//     品类对用户是新的且预测 > NoveltyFloor 时 +NoveltyBonus
type HeuristicRating struct {
	Bias                 float64
	Similarity           float64
	PreferenceScale      float64
	PopularityBoost      float64
	ConcentrationLimit   float64
	ConcentrationPenalty float64
	NoveltyFloor         float64
	NoveltyBonus         float64
	MaxRating            float64
}

// NewHeuristicRating 返回默认系数。
func NewHeuristicRating() *HeuristicRating {
	return &HeuristicRating{
		Bias:                 3.5,
		Similarity:           1.5,
		PreferenceScale:      10,
		PopularityBoost:      0.5,
		ConcentrationLimit:   0.8,
		ConcentrationPenalty: 0.2,
		NoveltyFloor:         4.0,
		NoveltyBonus:         0.3,
		MaxRating:            5.0,
	}
}

var _ RatingModel = (*HeuristicRating)(nil)

func (m *HeuristicRating) Name() string { return "heuristic_rating" }

// Predict 返回预测评分（0-5，一位小数）。
func (m *HeuristicRating) Predict(features map[string]float64) (float64, error) {
	sim := clamp01(features[FeatureSimilarity])
	pref := math.Max(0, features[FeaturePreference])
	pop := clamp01(features[FeaturePopularity] / 100)

	raw := m.Bias + m.Similarity*sim + math.Min(pref/m.PreferenceScale, 1) + m.PopularityBoost*pop
	rating := round1(math.Min(raw, m.MaxRating))

	switch {
	case features[FeatureConcentration] > m.ConcentrationLimit && features[FeatureDominant] > 0:
		rating -= m.ConcentrationPenalty
	case pref == 0 && raw > m.NoveltyFloor:
		rating += m.NoveltyBonus
	}
	return round1(math.Max(0, math.Min(rating, m.MaxRating))), nil
}

// Confidence 是相似度、数据充分度与热度三项的均值。
func (m *HeuristicRating) Confidence(features map[string]float64) float64 {
	return (clamp01(features[FeatureSimilarity]) +
		clamp01(features[FeatureSufficiency]) +
		clamp01(features[FeaturePopularity]/100)) / 3
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
