package feature

import (
	"hash/fnv"
	"time"

	"github.com/rushteam/mixrec/core"
)

// Dimension 是用户与物品特征向量的固定维度。
const Dimension = 50

// 向量区段起始下标（c 为品类下标 0..4）
const (
	offsetCategory        = 0  // 0-4  品类交互 / 物品品类 one-hot
	offsetSegment         = 5  // 5-9  细分桶
	offsetFavorite        = 20 // 20-24 品类收藏
	offsetFavoriteSegment = 25 // 25-29 收藏细分桶
	offsetRating          = 30 // 30-34 品类评分
	indexRatingOverall    = 35
	indexRatingVolume     = 36
	indexFreshness        = 37 // 仅物品侧：发布在 FreshWindow 内
	offsetUsage           = 40 // 40-44 使用 / 制作次数，物品为热度
	offsetTemporal        = 45 // 45-49 用户时段分布，物品侧为零
	segmentBuckets        = 5
)

// FreshWindow 是物品被视为新品的发布时间窗口。
const FreshWindow = 90 * 24 * time.Hour

// ItemVector 是物品的定长特征向量。
type ItemVector struct {
	ItemID   string
	Category core.Category
	Vector   []float64
	Item     *core.CatalogItem
}

// Vectorizer 把用户画像与目录物品映射到同一个 50 维空间。
//
// 纯函数、确定性；所有输出向量都经过 L2 归一化（零向量保持为零）。
type Vectorizer struct {
	// Now 用于计算物品新鲜度，零值表示不计算
	Now time.Time

	normalizer L2Normalizer
}

// NewVectorizer 创建向量化器。
func NewVectorizer(now time.Time) *Vectorizer {
	return &Vectorizer{Now: now}
}

// SegmentBucket 返回细分名称对应的桶下标 [0,5)。
func SegmentBucket(segment string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(segment))
	return int(h.Sum32() % segmentBuckets)
}

// daypart 把小时映射到 5 个时段：深夜、早晨、午间、下午、晚上。
func daypart(hour int) int {
	switch {
	case hour < 6:
		return 0
	case hour < 11:
		return 1
	case hour < 15:
		return 2
	case hour < 19:
		return 3
	default:
		return 4
	}
}

// RawUser 返回未归一化的用户向量，模长用于估计数据充分度。
func (v *Vectorizer) RawUser(p *core.UserProfile) []float64 {
	vec := make([]float64, Dimension)
	if p == nil {
		return vec
	}
	log := LogNormalizer{}
	b := &p.Behavior

	ratedTotal, ratingSum := 0, 0.0
	for _, c := range core.AllCategories() {
		i := c.Index()
		vec[offsetCategory+i] = log.NormalizeValue(p.Preferences.Weight(c))
		vec[offsetFavorite+i] = log.NormalizeValue(float64(b.Favorites[i]))
		if b.CategoryRated[i] > 0 {
			vec[offsetRating+i] = b.CategoryRatings[i] / float64(b.CategoryRated[i]) / 5
		}
		vec[offsetUsage+i] = log.NormalizeValue(float64(b.CategoryUsed[i]))
		ratedTotal += b.CategoryRated[i]
		ratingSum += b.CategoryRatings[i]

		for seg, w := range p.Segments[i] {
			vec[offsetSegment+SegmentBucket(seg)] += w
		}
	}
	for i := 0; i < segmentBuckets; i++ {
		vec[offsetSegment+i] = log.NormalizeValue(vec[offsetSegment+i])
	}
	for seg, n := range p.FavoriteSegments {
		vec[offsetFavoriteSegment+SegmentBucket(seg)] += float64(n)
	}
	for i := 0; i < segmentBuckets; i++ {
		vec[offsetFavoriteSegment+i] = log.NormalizeValue(vec[offsetFavoriteSegment+i])
	}
	if ratedTotal > 0 {
		vec[indexRatingOverall] = ratingSum / float64(ratedTotal) / 5
		vec[indexRatingVolume] = SaturatingLog(float64(ratedTotal), 50)
	}

	total := 0
	for _, n := range b.HourHistogram {
		total += n
	}
	if total > 0 {
		for h, n := range b.HourHistogram {
			vec[offsetTemporal+daypart(h)] += float64(n) / float64(total)
		}
	}
	return vec
}

// User 返回 L2 归一化后的用户向量。
func (v *Vectorizer) User(p *core.UserProfile) []float64 {
	return v.normalizer.Normalize(v.RawUser(p))
}

// Item 返回 L2 归一化后的物品向量。
func (v *Vectorizer) Item(it *core.CatalogItem) ItemVector {
	vec := make([]float64, Dimension)
	out := ItemVector{Vector: vec}
	if it == nil {
		return out
	}
	out.ItemID, out.Category, out.Item = it.ID, it.Category, it

	if i := it.Category.Index(); i >= 0 {
		vec[offsetCategory+i] = 1
		vec[offsetFavorite+i] = SaturatingLog(float64(it.FavoriteCount), 1000)
		vec[offsetRating+i] = clampUnit(it.Rating / 5)
		vec[offsetUsage+i] = clampUnit(it.Popularity / 100)
	}
	if it.Segment != "" {
		vec[offsetSegment+SegmentBucket(it.Segment)] = 1
	}
	vec[indexRatingOverall] = clampUnit(it.Rating / 5)
	vec[indexRatingVolume] = SaturatingLog(float64(it.ReviewCount), 1000)
	if !v.Now.IsZero() && !it.ReleasedAt.IsZero() && v.Now.Sub(it.ReleasedAt) <= FreshWindow && !it.ReleasedAt.After(v.Now) {
		vec[indexFreshness] = 1
	}

	out.Vector = v.normalizer.Normalize(vec)
	return out
}

// Items 批量向量化。
func (v *Vectorizer) Items(items []*core.CatalogItem) []ItemVector {
	out := make([]ItemVector, 0, len(items))
	for _, it := range items {
		out = append(out, v.Item(it))
	}
	return out
}

func clampUnit(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
