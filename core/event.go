package core

import (
	"strconv"
	"time"
)

// EventType 是行为事件类型。
type EventType string

const (
	EventView     EventType = "view"
	EventFavorite EventType = "favorite"
	EventUsed     EventType = "used" // prepared / used / purchased
	EventShared   EventType = "shared"
	EventRated    EventType = "rated"
)

// FavoriteBonus 是收藏记录额外贡献的固定权重。
const FavoriteBonus = 10.0

// Weight 返回事件类型的偏好权重，未知类型为 0。
func (t EventType) Weight() float64 {
	switch t {
	case EventView:
		return 1
	case EventFavorite:
		return 5
	case EventUsed:
		return 3
	case EventShared:
		return 2
	case EventRated:
		return 4
	}
	return 0
}

// 事件 Metadata 的常用 key
const (
	MetaSegment = "segment"
	MetaRating  = "rating"
	MetaDwell   = "dwell_seconds"
)

// ActivityEvent 是一条行为日志（只读）。
type ActivityEvent struct {
	UserID    string            `json:"user_id"`
	Type      EventType         `json:"type"`
	Category  Category          `json:"category"`
	ItemID    string            `json:"item_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"ts"`
}

// Key 返回事件引用物品的复合键。
func (e ActivityEvent) Key() ItemKey {
	return ItemKey{Category: e.Category, ItemID: e.ItemID}
}

// MetaFloat 读取数值型 metadata，不存在或非法时 ok 为 false。
func (e ActivityEvent) MetaFloat(key string) (float64, bool) {
	raw, ok := e.Metadata[key]
	if !ok || raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Favorite 是一条收藏记录（只读）。
type Favorite struct {
	UserID    string    `json:"user_id"`
	Category  Category  `json:"category"`
	ItemID    string    `json:"item_id"`
	Segment   string    `json:"segment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Key 返回收藏物品的复合键。
func (f Favorite) Key() ItemKey {
	return ItemKey{Category: f.Category, ItemID: f.ItemID}
}
