package filter

import (
	"context"

	"github.com/rushteam/mixrec/core"
)

// BlacklistFilter 是全局黑名单过滤器，过滤掉下架或屏蔽的物品。
// 黑名单条目为复合键字符串，例如 "venue-42"。
type BlacklistFilter struct {
	// Keys 是内存中的黑名单
	Keys []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单条目
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklistFilter 创建一个黑名单过滤器。
func NewBlacklistFilter(keys []string, storeAdapter *StoreAdapter, key string) *BlacklistFilter {
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &BlacklistFilter{
		Keys:  keys,
		Store: store,
		Key:   key,
	}
}

func (f *BlacklistFilter) Name() string {
	return "filter.blacklist"
}

func (f *BlacklistFilter) ShouldFilter(
	ctx context.Context,
	_ *core.RecommendContext,
	item *core.Candidate,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	token := item.Key().String()

	for _, k := range f.Keys {
		if k == token {
			return true, nil
		}
	}

	if f.Store != nil && f.Key != "" {
		blacklist, err := f.Store.GetBlacklist(ctx, f.Key)
		if err != nil {
			return false, err
		}
		for _, k := range blacklist {
			if k == token {
				return true, nil
			}
		}
	}
	return false, nil
}
