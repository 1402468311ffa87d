package core

import (
	"context"
	"time"
)

// 推荐链路只通过以下只读契约访问外部数据；实现位于 store / feast 包。
// 实现方需要支持并发调用。

// ActivityLogStore 是行为日志数据源。
type ActivityLogStore interface {
	// Query 返回用户自 since 起的行为事件（按时间升序）
	Query(ctx context.Context, userID string, since time.Time) ([]ActivityEvent, error)

	// QueryByItems 返回任意用户自 since 起作用在这些物品上的事件（用于邻居发现）
	QueryByItems(ctx context.Context, keys []ItemKey, since time.Time) ([]ActivityEvent, error)
}

// FavoritesStore 是收藏数据源。
type FavoritesStore interface {
	Query(ctx context.Context, userID string) ([]Favorite, error)
}

// CatalogStore 是按品类查询的目录数据源。
type CatalogStore interface {
	Query(ctx context.Context, q CatalogQuery) ([]*CatalogItem, error)

	// Lookup 按 id 批量读取物品，不存在的 id 直接忽略
	Lookup(ctx context.Context, category Category, ids []string) ([]*CatalogItem, error)
}

// ExclusionProvider 返回用户在某品类下需要排除的物品 id 集合
// （已收藏 / 已购买 / 已看过等）。
type ExclusionProvider interface {
	Resolve(ctx context.Context, userID string, category Category) (map[string]struct{}, error)
}

// Providers 汇总全部数据源，便于在构造函数间传递。
type Providers struct {
	Activity   ActivityLogStore
	Favorites  FavoritesStore
	Catalog    CatalogStore
	Exclusions ExclusionProvider
}
