package core

import "time"

// CatalogItem 是目录中的一个物品（菜谱 / 设备 / 场地 / 蛋糕 / 体育用品）。
// 不同品类的专有属性放在 Meta 中。
type CatalogItem struct {
	ID            string         `json:"id"`
	Category      Category       `json:"category"`
	Name          string         `json:"name"`
	Segment       string         `json:"segment,omitempty"` // 品牌 / 类型 / 菜系
	Rating        float64        `json:"rating"`            // 0-5
	ReviewCount   int            `json:"review_count"`
	Popularity    float64        `json:"popularity"` // 0-100
	FavoriteCount int            `json:"favorite_count"`
	Featured      bool           `json:"featured,omitempty"`
	Verified      bool           `json:"verified,omitempty"`
	Healthy       bool           `json:"healthy,omitempty"`
	PrepMinutes   int            `json:"prep_minutes,omitempty"`
	ReleasedAt    time.Time      `json:"released_at,omitempty"`
	Meta          map[string]any `json:"meta,omitempty"`
}

// Key 返回物品的复合键。
func (it *CatalogItem) Key() ItemKey {
	return ItemKey{Category: it.Category, ItemID: it.ID}
}

// CatalogOrder 是目录查询的排序方式。
type CatalogOrder int

const (
	OrderByPopularity CatalogOrder = iota // 热度降序
	OrderByRating                         // 评分降序，热度次之
)

// CatalogFilter 是目录查询过滤条件。
type CatalogFilter struct {
	Segments  []string // 为空表示不限制
	MinRating float64
	Featured  bool
	// Expr 是可选的 CEL 表达式，变量 item 为物品字段 map，例如 `item.rating >= 4.0 && item.healthy`
	Expr string
}

// CatalogQuery 是按品类查询目录的请求。
type CatalogQuery struct {
	Category   Category
	ExcludeIDs map[string]struct{}
	Filter     CatalogFilter
	OrderBy    CatalogOrder
	Limit      int
}

// Excluded 判断 id 是否在排除集中。
func (q CatalogQuery) Excluded(id string) bool {
	if q.ExcludeIDs == nil {
		return false
	}
	_, ok := q.ExcludeIDs[id]
	return ok
}
