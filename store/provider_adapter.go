package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pkg/dsl"
)

// ProviderAdapter 把 core.KeyValueStore 适配为推荐链路需要的四个只读数据源。
//
// Key 布局（KeyPrefix 默认 "mixrec"）：
//
//	{p}:act:user:{userID}          zset  score=事件毫秒时间戳  member=事件 JSON
//	{p}:act:item:{category}-{id}   zset  同上，按物品索引（邻居发现）
//	{p}:fav:{userID}               hash  field={category}-{id}  value=收藏 JSON
//	{p}:cat:{category}             hash  field=id  value=物品 JSON
//	{p}:cat:{category}:pop         zset  score=热度  member=id
//	{p}:excl:{userID}:{category}   set   物品 id
//
// 写入方法（Record*、Put*）用于离线导入与测试。
type ProviderAdapter struct {
	store core.KeyValueStore

	KeyPrefix string

	// PageSize 是目录分页扫描热度索引的页大小
	PageSize int64
}

// NewProviderAdapter 创建一个基于 KeyValueStore 的数据源适配器。
func NewProviderAdapter(s core.KeyValueStore, keyPrefix string) *ProviderAdapter {
	if keyPrefix == "" {
		keyPrefix = "mixrec"
	}
	return &ProviderAdapter{store: s, KeyPrefix: keyPrefix, PageSize: 200}
}

// Providers 返回由该适配器实现的全部数据源。
func (a *ProviderAdapter) Providers() core.Providers {
	return core.Providers{
		Activity:   a,
		Favorites:  favoritesView{a},
		Catalog:    catalogView{a},
		Exclusions: a,
	}
}

func (a *ProviderAdapter) userActivityKey(userID string) string {
	return a.KeyPrefix + ":act:user:" + userID
}

func (a *ProviderAdapter) itemActivityKey(k core.ItemKey) string {
	return a.KeyPrefix + ":act:item:" + k.String()
}

func (a *ProviderAdapter) favoritesKey(userID string) string {
	return a.KeyPrefix + ":fav:" + userID
}

func (a *ProviderAdapter) catalogKey(c core.Category) string {
	return a.KeyPrefix + ":cat:" + c.String()
}

func (a *ProviderAdapter) popularityKey(c core.Category) string {
	return a.KeyPrefix + ":cat:" + c.String() + ":pop"
}

func (a *ProviderAdapter) exclusionKey(userID string, c core.Category) string {
	return a.KeyPrefix + ":excl:" + userID + ":" + c.String()
}

func millis(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// RecordEvent 写入一条行为事件（同时写用户索引与物品索引）。
func (a *ProviderAdapter) RecordEvent(ctx context.Context, e core.ActivityEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	score := millis(e.Timestamp)
	if err := a.store.ZAdd(ctx, a.userActivityKey(e.UserID), score, string(data)); err != nil {
		return err
	}
	return a.store.ZAdd(ctx, a.itemActivityKey(e.Key()), score, string(data))
}

// Query 实现 core.ActivityLogStore。
func (a *ProviderAdapter) Query(ctx context.Context, userID string, since time.Time) ([]core.ActivityEvent, error) {
	members, err := a.store.ZRangeByScore(ctx, a.userActivityKey(userID), millis(since), math.Inf(1))
	if err != nil {
		return nil, core.NewDataUnavailable(core.ModuleProvider, "activity: query "+userID, err)
	}
	return decodeEvents(members)
}

// QueryByItems 实现 core.ActivityLogStore。
func (a *ProviderAdapter) QueryByItems(ctx context.Context, keys []core.ItemKey, since time.Time) ([]core.ActivityEvent, error) {
	var out []core.ActivityEvent
	for _, k := range keys {
		members, err := a.store.ZRangeByScore(ctx, a.itemActivityKey(k), millis(since), math.Inf(1))
		if err != nil {
			return nil, core.NewDataUnavailable(core.ModuleProvider, "activity: query item "+k.String(), err)
		}
		events, err := decodeEvents(members)
		if err != nil {
			return nil, err
		}
		out = append(out, events...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func decodeEvents(members []string) ([]core.ActivityEvent, error) {
	events := make([]core.ActivityEvent, 0, len(members))
	for _, m := range members {
		var e core.ActivityEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// PutFavorite 写入一条收藏。
func (a *ProviderAdapter) PutFavorite(ctx context.Context, f core.Favorite) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode favorite: %w", err)
	}
	return a.store.HSet(ctx, a.favoritesKey(f.UserID), f.Key().String(), data)
}

func (a *ProviderAdapter) queryFavorites(ctx context.Context, userID string) ([]core.Favorite, error) {
	raw, err := a.store.HGetAll(ctx, a.favoritesKey(userID))
	if err != nil {
		return nil, core.NewDataUnavailable(core.ModuleProvider, "favorites: query "+userID, err)
	}
	out := make([]core.Favorite, 0, len(raw))
	for _, v := range raw {
		var f core.Favorite
		if err := json.Unmarshal(v, &f); err != nil {
			return nil, fmt.Errorf("decode favorite: %w", err)
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key().String() < out[j].Key().String()
	})
	return out, nil
}

// PutItem 写入目录物品并更新热度索引。
func (a *ProviderAdapter) PutItem(ctx context.Context, it *core.CatalogItem) error {
	data, err := json.Marshal(it)
	if err != nil {
		return fmt.Errorf("encode item: %w", err)
	}
	if err := a.store.HSet(ctx, a.catalogKey(it.Category), it.ID, data); err != nil {
		return err
	}
	return a.store.ZAdd(ctx, a.popularityKey(it.Category), it.Popularity, it.ID)
}

func (a *ProviderAdapter) queryCatalog(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	if !q.Category.Valid() {
		return nil, core.NewDomainError(core.ModuleProvider, core.ErrorCodeInvalidInput, "catalog: invalid category")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	segments := make(map[string]struct{}, len(q.Filter.Segments))
	for _, s := range q.Filter.Segments {
		segments[s] = struct{}{}
	}
	var exprErr error
	match := func(it *core.CatalogItem) bool {
		if q.Excluded(it.ID) {
			return false
		}
		if len(segments) > 0 {
			if _, ok := segments[it.Segment]; !ok {
				return false
			}
		}
		if it.Rating < q.Filter.MinRating {
			return false
		}
		if q.Filter.Featured && !it.Featured {
			return false
		}
		ok, err := dsl.MatchCatalogItem(q.Filter.Expr, it)
		if err != nil {
			exprErr = err
			return false
		}
		return ok
	}

	var out []*core.CatalogItem
	if q.OrderBy == core.OrderByRating {
		raw, err := a.store.HGetAll(ctx, a.catalogKey(q.Category))
		if err != nil {
			return nil, core.NewDataUnavailable(core.ModuleProvider, "catalog: scan "+q.Category.String(), err)
		}
		for _, v := range raw {
			it, err := decodeItem(v)
			if err != nil {
				return nil, err
			}
			if match(it) {
				out = append(out, it)
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Rating != out[j].Rating {
				return out[i].Rating > out[j].Rating
			}
			if out[i].Popularity != out[j].Popularity {
				return out[i].Popularity > out[j].Popularity
			}
			return out[i].ID < out[j].ID
		})
		if exprErr != nil {
			return nil, exprErr
		}
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}

	for start := int64(0); len(out) < limit; start += a.PageSize {
		ids, err := a.store.ZRange(ctx, a.popularityKey(q.Category), start, start+a.PageSize-1)
		if err != nil {
			return nil, core.NewDataUnavailable(core.ModuleProvider, "catalog: popularity "+q.Category.String(), err)
		}
		if len(ids) == 0 {
			break
		}
		items, err := a.lookup(ctx, q.Category, ids)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if match(it) {
				out = append(out, it)
				if len(out) == limit {
					break
				}
			}
		}
		if exprErr != nil {
			return nil, exprErr
		}
		if int64(len(ids)) < a.PageSize {
			break
		}
	}
	return out, nil
}

// lookup 按 ids 顺序返回存在的物品。
func (a *ProviderAdapter) lookup(ctx context.Context, c core.Category, ids []string) ([]*core.CatalogItem, error) {
	raw, err := a.store.HMGet(ctx, a.catalogKey(c), ids...)
	if err != nil {
		return nil, core.NewDataUnavailable(core.ModuleProvider, "catalog: lookup "+c.String(), err)
	}
	out := make([]*core.CatalogItem, 0, len(raw))
	for _, id := range ids {
		v, ok := raw[id]
		if !ok {
			continue
		}
		it, err := decodeItem(v)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

func decodeItem(v []byte) (*core.CatalogItem, error) {
	var it core.CatalogItem
	if err := json.Unmarshal(v, &it); err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	return &it, nil
}

// AddExclusions 向排除集添加物品。
func (a *ProviderAdapter) AddExclusions(ctx context.Context, userID string, c core.Category, ids ...string) error {
	return a.store.SAdd(ctx, a.exclusionKey(userID, c), ids...)
}

// Resolve 实现 core.ExclusionProvider：显式排除集与收藏的并集。
func (a *ProviderAdapter) Resolve(ctx context.Context, userID string, c core.Category) (map[string]struct{}, error) {
	ids, err := a.store.SMembers(ctx, a.exclusionKey(userID, c))
	if err != nil {
		return nil, core.NewDataUnavailable(core.ModuleProvider, "exclusions: resolve "+userID, err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	favs, err := a.queryFavorites(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, f := range favs {
		if f.Category == c {
			out[f.ItemID] = struct{}{}
		}
	}
	return out, nil
}

// favoritesView 与 catalogView 用于区分同名 Query 方法。
type favoritesView struct{ a *ProviderAdapter }

func (v favoritesView) Query(ctx context.Context, userID string) ([]core.Favorite, error) {
	return v.a.queryFavorites(ctx, userID)
}

type catalogView struct{ a *ProviderAdapter }

func (v catalogView) Query(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	return v.a.queryCatalog(ctx, q)
}

func (v catalogView) Lookup(ctx context.Context, c core.Category, ids []string) ([]*core.CatalogItem, error) {
	return v.a.lookup(ctx, c, ids)
}

// ParseItemKey 解析 "{category}-{itemId}"。
func ParseItemKey(s string) (core.ItemKey, error) {
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			continue
		}
		c, err := core.ParseCategory(s[:i])
		if err != nil {
			continue
		}
		return core.ItemKey{Category: c, ItemID: s[i+1:]}, nil
	}
	return core.ItemKey{}, fmt.Errorf("invalid item key %q", s)
}

var (
	_ core.ActivityLogStore  = (*ProviderAdapter)(nil)
	_ core.ExclusionProvider = (*ProviderAdapter)(nil)
	_ core.FavoritesStore    = favoritesView{}
	_ core.CatalogStore      = catalogView{}
)
