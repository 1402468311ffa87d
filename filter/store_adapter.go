package filter

import (
	"context"

	"github.com/rushteam/mixrec/core"
)

// StoreAdapter 将 core.KeyValueStore 适配为过滤器所需的存储接口。
// 黑名单以集合形式存储，成员为复合键字符串。
type StoreAdapter struct {
	store core.KeyValueStore
}

// NewStoreAdapter 创建一个 core.KeyValueStore 适配器。
func NewStoreAdapter(s core.KeyValueStore) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetBlacklist 从 Store 读取黑名单；key 不存在时返回空列表。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	members, err := a.store.SMembers(ctx, key)
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return members, nil
}

// AddToBlacklist 向黑名单写入条目。
func (a *StoreAdapter) AddToBlacklist(ctx context.Context, key string, keys ...core.ItemKey) error {
	members := make([]string, 0, len(keys))
	for _, k := range keys {
		members = append(members, k.String())
	}
	return a.store.SAdd(ctx, key, members...)
}
