// Package similarity 提供向量余弦相似度、集合 Jaccard 相似度与相似用户发现。
// 所有函数都是纯函数，可在多个打分器间并发调用。
package similarity

import (
	"math"

	"github.com/rushteam/mixrec/core"
)

// Set 是交互集合，元素为 "{category}-{itemId}"。
type Set map[string]struct{}

// Token 返回物品在交互集合中的元素表示。
func Token(c core.Category, itemID string) string {
	return core.ItemKey{Category: c, ItemID: itemID}.String()
}

// NewSet 从元素列表构建集合。
func NewSet(tokens ...string) Set {
	s := make(Set, len(tokens))
	for _, t := range tokens {
		s[t] = struct{}{}
	}
	return s
}

// Cosine 计算两个向量的余弦相似度。
// 任一向量模长为 0 或维度不一致时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// 浮点误差可能略超出 [-1,1]
	return math.Max(-1, math.Min(1, sim))
}

// Jaccard 计算两个集合的 Jaccard 相似度 |A∩B| / |A∪B|，两个空集返回 0。
func Jaccard(a, b Set) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for t := range small {
		if _, ok := large[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
