// Package evaluation 做离线留一评估：隐藏每个用户最近一次收藏，
// 以收藏时刻回放推荐，统计被隐藏物品的命中情况。
//
// 只用于离线评估，线上链路不依赖本包。
package evaluation

import (
	"context"
	"time"

	"github.com/rushteam/mixrec/core"
)

// Holdout 是被隐藏的一条收藏。
type Holdout struct {
	UserID string
	Item   core.ItemKey
	At     time.Time
}

// LatestFavorite 返回最近一次收藏；没有收藏时 ok 为 false。
func LatestFavorite(favorites []core.Favorite) (core.Favorite, bool) {
	var (
		latest core.Favorite
		ok     bool
	)
	for _, f := range favorites {
		if !ok || f.CreatedAt.After(latest.CreatedAt) ||
			(f.CreatedAt.Equal(latest.CreatedAt) && f.Key().String() > latest.Key().String()) {
			latest, ok = f, true
		}
	}
	return latest, ok
}

// HideFrom 包装数据源，使被隐藏的收藏记录、对应的收藏事件与排除项对推荐不可见。
func HideFrom(p core.Providers, h Holdout) core.Providers {
	out := p
	if p.Activity != nil {
		out.Activity = hiddenActivity{inner: p.Activity, h: h}
	}
	if p.Favorites != nil {
		out.Favorites = hiddenFavorites{inner: p.Favorites, h: h}
	}
	if p.Exclusions != nil {
		out.Exclusions = hiddenExclusions{inner: p.Exclusions, h: h}
	}
	return out
}

func (h Holdout) hides(e core.ActivityEvent) bool {
	return e.UserID == h.UserID && e.Type == core.EventFavorite && e.Key() == h.Item
}

type hiddenActivity struct {
	inner core.ActivityLogStore
	h     Holdout
}

func (a hiddenActivity) Query(ctx context.Context, userID string, since time.Time) ([]core.ActivityEvent, error) {
	events, err := a.inner.Query(ctx, userID, since)
	if err != nil {
		return nil, err
	}
	return a.filter(events), nil
}

func (a hiddenActivity) QueryByItems(ctx context.Context, keys []core.ItemKey, since time.Time) ([]core.ActivityEvent, error) {
	events, err := a.inner.QueryByItems(ctx, keys, since)
	if err != nil {
		return nil, err
	}
	return a.filter(events), nil
}

func (a hiddenActivity) filter(events []core.ActivityEvent) []core.ActivityEvent {
	out := make([]core.ActivityEvent, 0, len(events))
	for _, e := range events {
		if !a.h.hides(e) {
			out = append(out, e)
		}
	}
	return out
}

type hiddenFavorites struct {
	inner core.FavoritesStore
	h     Holdout
}

func (f hiddenFavorites) Query(ctx context.Context, userID string) ([]core.Favorite, error) {
	favs, err := f.inner.Query(ctx, userID)
	if err != nil || userID != f.h.UserID {
		return favs, err
	}
	out := make([]core.Favorite, 0, len(favs))
	for _, fav := range favs {
		if fav.Key() != f.h.Item {
			out = append(out, fav)
		}
	}
	return out, nil
}

type hiddenExclusions struct {
	inner core.ExclusionProvider
	h     Holdout
}

func (e hiddenExclusions) Resolve(ctx context.Context, userID string, c core.Category) (map[string]struct{}, error) {
	ids, err := e.inner.Resolve(ctx, userID, c)
	if err != nil || userID != e.h.UserID || c != e.h.Item.Category {
		return ids, err
	}
	if _, ok := ids[e.h.Item.ItemID]; !ok {
		return ids, nil
	}
	out := make(map[string]struct{}, len(ids))
	for id := range ids {
		if id != e.h.Item.ItemID {
			out[id] = struct{}{}
		}
	}
	return out, nil
}
