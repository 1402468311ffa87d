package core

import (
	"sort"
	"time"
)

// PreferenceAccumulator 是按品类累积的偏好权重，定长字段，不使用字符串 key 的 map。
type PreferenceAccumulator struct {
	weights [NumCategories]float64
}

// Add 累加品类权重，未知品类忽略。
func (p *PreferenceAccumulator) Add(c Category, w float64) {
	if i := c.Index(); i >= 0 {
		p.weights[i] += w
	}
}

// Weight 返回品类权重。
func (p PreferenceAccumulator) Weight(c Category) float64 {
	if i := c.Index(); i >= 0 {
		return p.weights[i]
	}
	return 0
}

// Total 返回全部品类权重之和。
func (p PreferenceAccumulator) Total() float64 {
	var sum float64
	for _, w := range p.weights {
		sum += w
	}
	return sum
}

// Share 返回品类权重占比。
func (p PreferenceAccumulator) Share(c Category) float64 {
	total := p.Total()
	if total <= 0 {
		return 0
	}
	return p.Weight(c) / total
}

// Ranked 返回权重 > 0 的品类，按权重降序（同权重按枚举顺序）。
func (p PreferenceAccumulator) Ranked() []Category {
	out := make([]Category, 0, NumCategories)
	for _, c := range AllCategories() {
		if p.Weight(c) > 0 {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return p.Weight(out[i]) > p.Weight(out[j])
	})
	return out
}

// Top 返回权重最高的 n 个品类。
func (p PreferenceAccumulator) Top(n int) []Category {
	ranked := p.Ranked()
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// BehaviorStats 是窗口内的行为统计。
type BehaviorStats struct {
	HourHistogram [24]int
	DayHistogram  [7]int

	// 按小时 / 星期几的品类交互次数
	HourCategory [24][NumCategories]int
	DayCategory  [7][NumCategories]int

	CategoryEvents  [NumCategories]int // 品类事件数
	CategoryUsed    [NumCategories]int // prepared / used 次数
	CategoryRatings [NumCategories]float64
	CategoryRated   [NumCategories]int
	Favorites       [NumCategories]int // 收藏记录 + 收藏事件

	EventCounts map[EventType]int

	AvgDwellSeconds float64
	ConversionRate  float64 // 收藏数 / 浏览数
	TotalEvents     int
}

// HourCount 返回某小时某品类的交互次数。
func (s *BehaviorStats) HourCount(hour int, c Category) int {
	if hour < 0 || hour > 23 || c.Index() < 0 {
		return 0
	}
	return s.HourCategory[hour][c.Index()]
}

// DayCount 返回某天某品类的交互次数。
func (s *BehaviorStats) DayCount(day int, c Category) int {
	if day < 0 || day > 6 || c.Index() < 0 {
		return 0
	}
	return s.DayCategory[day][c.Index()]
}

// ActivityRatio 返回某小时活跃度相对峰值的比例 [0,1]。
func (s *BehaviorStats) ActivityRatio(hour int) float64 {
	if hour < 0 || hour > 23 {
		return 0
	}
	peak := 0
	for _, n := range s.HourHistogram {
		if n > peak {
			peak = n
		}
	}
	if peak == 0 {
		return 0
	}
	return float64(s.HourHistogram[hour]) / float64(peak)
}

// Concentration 返回交互最集中的品类及其占比。
func (s *BehaviorStats) Concentration() (Category, float64) {
	total, best, bestIdx := 0, 0, -1
	for i, n := range s.CategoryEvents {
		total += n
		if n > best {
			best, bestIdx = n, i
		}
	}
	if total == 0 || bestIdx < 0 {
		return CategoryUnknown, 0
	}
	return Category(bestIdx + 1), float64(best) / float64(total)
}

// Neighbor 是一个相似用户。
type Neighbor struct {
	UserID     string
	Similarity float64
}

// UserProfile 是请求级的用户画像快照。
//
// 由 profile.Builder 在每次请求时构建，构建完成后只读，
// 所有打分器共享同一个快照，不做持久化。
type UserProfile struct {
	UserID string

	Preferences PreferenceAccumulator

	// Segments 是品类下细分（品牌 / 类型 / 菜系）的偏好权重
	Segments [NumCategories]map[string]float64

	// FavoriteSegments 是收藏中出现的细分次数
	FavoriteSegments map[string]int

	Behavior BehaviorStats

	// Neighbors 按相似度降序，最多 K 个
	Neighbors []Neighbor

	// Interactions 是窗口内交互过的物品集合（"{category}-{itemId}"）
	Interactions map[string]struct{}

	WindowStart time.Time
	WindowEnd   time.Time
}

// NewUserProfile 创建一个空画像（冷启动画像）。
func NewUserProfile(userID string) *UserProfile {
	p := &UserProfile{
		UserID:           userID,
		FavoriteSegments: make(map[string]int),
		Interactions:     make(map[string]struct{}),
	}
	p.Behavior.EventCounts = make(map[EventType]int)
	for i := range p.Segments {
		p.Segments[i] = make(map[string]float64)
	}
	return p
}

// IsColdStart 判断窗口内是否没有任何行为与收藏。
func (p *UserProfile) IsColdStart() bool {
	return p == nil || (len(p.Interactions) == 0 && p.Preferences.Total() == 0)
}

// HasInteracted 判断用户是否交互过该物品。
func (p *UserProfile) HasInteracted(key ItemKey) bool {
	if p == nil || p.Interactions == nil {
		return false
	}
	_, ok := p.Interactions[key.String()]
	return ok
}

// TopSegments 返回某品类下偏好最高的 n 个细分。
func (p *UserProfile) TopSegments(c Category, n int) []string {
	i := c.Index()
	if p == nil || i < 0 || len(p.Segments[i]) == 0 {
		return nil
	}
	m := p.Segments[i]
	out := make([]string, 0, len(m))
	for seg := range m {
		out = append(out, seg)
	}
	sort.Slice(out, func(a, b int) bool {
		if m[out[a]] != m[out[b]] {
			return m[out[a]] > m[out[b]]
		}
		return out[a] < out[b]
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// TopNeighbors 返回前 k 个邻居。
func (p *UserProfile) TopNeighbors(k int) []Neighbor {
	if p == nil {
		return nil
	}
	if k > 0 && len(p.Neighbors) > k {
		return p.Neighbors[:k]
	}
	return p.Neighbors
}
