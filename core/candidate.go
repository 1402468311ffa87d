package core

import (
	"math"

	"github.com/rushteam/mixrec/pkg/utils"
)

// 分数与置信度范围
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Factors 是候选分数的可解释因子分解，每项取值 [0,1]。
type Factors struct {
	Historical    float64 `json:"historical"`
	Collaborative float64 `json:"collaborative"`
	Content       float64 `json:"content"`
	Temporal      float64 `json:"temporal"`
	Popularity    float64 `json:"popularity"`
}

// Max 返回逐项取最大值后的新因子。
func (f Factors) Max(o Factors) Factors {
	return Factors{
		Historical:    math.Max(f.Historical, o.Historical),
		Collaborative: math.Max(f.Collaborative, o.Collaborative),
		Content:       math.Max(f.Content, o.Content),
		Temporal:      math.Max(f.Temporal, o.Temporal),
		Popularity:    math.Max(f.Popularity, o.Popularity),
	}
}

// Personalized 判断是否有任何个性化因子（除热度外）非零。
func (f Factors) Personalized() bool {
	return f.Historical > 0 || f.Collaborative > 0 || f.Content > 0 || f.Temporal > 0
}

// Candidate 是推荐链路中的统一承载结构：分数、置信度、因子、理由与标签。
// Labels 用于追踪来源（哪个打分器、如何合并）；Score 用于排序决策。
type Candidate struct {
	Category   Category
	ItemID     string
	Score      float64 // 0-100
	Confidence float64 // 0-1
	Factors    Factors
	Reasons    []string
	Labels     map[string]utils.Label

	// Item 是可选的物品快照，用于解释与展示
	Item *CatalogItem

	// 展示字段，由 Explainer 填充
	DisplayScore      int
	DisplayConfidence int
}

// NewCandidate 创建候选，分数与置信度被截断到合法范围。
func NewCandidate(category Category, itemID string, score, confidence float64) *Candidate {
	return &Candidate{
		Category:   category,
		ItemID:     itemID,
		Score:      ClampScore(score),
		Confidence: ClampConfidence(confidence),
		Labels:     make(map[string]utils.Label),
	}
}

// CandidateFromItem 基于目录物品创建候选。
func CandidateFromItem(item *CatalogItem, score, confidence float64) *Candidate {
	c := NewCandidate(item.Category, item.ID, score, confidence)
	c.Item = item
	return c
}

// Key 返回候选的复合键。
func (c *Candidate) Key() ItemKey {
	return ItemKey{Category: c.Category, ItemID: c.ItemID}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (c *Candidate) PutLabel(key string, lbl utils.Label) {
	if c.Labels == nil {
		c.Labels = make(map[string]utils.Label)
	}
	if old, ok := c.Labels[key]; ok {
		c.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	c.Labels[key] = lbl
}

// AddReason 追加理由，忽略空串与重复项。
func (c *Candidate) AddReason(reason string) {
	if reason == "" {
		return
	}
	for _, r := range c.Reasons {
		if r == reason {
			return
		}
	}
	c.Reasons = append(c.Reasons, reason)
}

// Clone 返回深拷贝，后续阶段修改不影响打分器输出。
func (c *Candidate) Clone() *Candidate {
	out := *c
	out.Reasons = append([]string(nil), c.Reasons...)
	out.Labels = make(map[string]utils.Label, len(c.Labels))
	for k, v := range c.Labels {
		out.Labels[k] = v
	}
	return &out
}

// ClampScore 把分数截断到 [0,100]。
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return MinScore
	}
	return math.Min(MaxScore, math.Max(MinScore, v))
}

// ClampConfidence 把置信度截断到 [0,1]。
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
