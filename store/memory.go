package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/mixrec/core"
)

// MemoryStore 是内存实现的 KeyValueStore，用于测试/开发/原型。
// 支持 TTL（过期时间），但进程重启后数据丢失。
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*entry
	ttl    map[string]time.Time
	zsets  map[string]map[string]float64 // zset key -> member -> score
	hashes map[string]map[string][]byte  // hash key -> field -> value
	sets   map[string]map[string]struct{}
	clean  *time.Ticker
	done   chan struct{}
	once   sync.Once
}

type entry struct {
	value []byte
	ttl   *time.Time
}

type zmember struct {
	member string
	score  float64
}

func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:   make(map[string]*entry),
		ttl:    make(map[string]time.Time),
		zsets:  make(map[string]map[string]float64),
		hashes: make(map[string]map[string][]byte),
		sets:   make(map[string]map[string]struct{}),
		clean:  time.NewTicker(10 * time.Second),
		done:   make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	if e.ttl != nil && time.Now().After(*e.ttl) {
		return nil, core.ErrStoreNotFound
	}
	return e.value, nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if len(ttl) > 0 && ttl[0] > 0 {
		expire := time.Now().Add(time.Duration(ttl[0]) * time.Second)
		e.ttl = &expire
		m.ttl[key] = expire
	}
	m.data[key] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, key)
	delete(m.ttl, key)
	delete(m.zsets, key)
	delete(m.hashes, key)
	delete(m.sets, key)
	return nil
}

func (m *MemoryStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	now := time.Now()
	for _, k := range keys {
		e, ok := m.data[k]
		if !ok {
			continue
		}
		if e.ttl != nil && now.After(*e.ttl) {
			continue
		}
		result[k] = e.value
	}
	return result, nil
}

func (m *MemoryStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl ...int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expire *time.Time
	if len(ttl) > 0 && ttl[0] > 0 {
		t := time.Now().Add(time.Duration(ttl[0]) * time.Second)
		expire = &t
	}

	for k, v := range kvs {
		m.data[k] = &entry{value: v, ttl: expire}
		if expire != nil {
			m.ttl[k] = *expire
		}
	}
	return nil
}

func (m *MemoryStore) Close() error {
	m.once.Do(func() {
		m.clean.Stop()
		close(m.done)
	})
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.done:
			return
		case <-m.clean.C:
			m.mu.Lock()
			now := time.Now()
			for k, expire := range m.ttl {
				if now.After(expire) {
					delete(m.data, k)
					delete(m.ttl, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *MemoryStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.zsets[key] == nil {
		m.zsets[key] = make(map[string]float64)
	}
	m.zsets[key][member] = score
	return nil
}

// sortedMembers 返回排序后的成员；desc 为 true 时按分数降序，同分按成员字典序。
func (m *MemoryStore) sortedMembers(key string, desc bool) []zmember {
	zset := m.zsets[key]
	pairs := make([]zmember, 0, len(zset))
	for member, score := range zset {
		pairs = append(pairs, zmember{member: member, score: score})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			if desc {
				return pairs[i].score > pairs[j].score
			}
			return pairs[i].score < pairs[j].score
		}
		return pairs[i].member < pairs[j].member
	})
	return pairs
}

func (m *MemoryStore) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pairs := m.sortedMembers(key, true)
	if len(pairs) == 0 {
		return nil, nil
	}

	if start < 0 {
		start = 0
	}
	if stop < 0 || stop >= int64(len(pairs)) {
		stop = int64(len(pairs)) - 1
	}
	if start > stop {
		return nil, nil
	}

	result := make([]string, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		result = append(result, pairs[i].member)
	}
	return result, nil
}

func (m *MemoryStore) ZRangeByScore(ctx context.Context, key string, min, max float64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []string
	for _, p := range m.sortedMembers(key, false) {
		if p.score >= min && p.score <= max {
			result = append(result, p.member)
		}
	}
	return result, nil
}

func (m *MemoryStore) ZScore(ctx context.Context, key string, member string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	zset, ok := m.zsets[key]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	score, ok := zset[member]
	if !ok {
		return 0, core.ErrStoreNotFound
	}
	return score, nil
}

func (m *MemoryStore) HGet(ctx context.Context, key, field string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.hashes[key][field]
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return v, nil
}

func (m *MemoryStore) HSet(ctx context.Context, key, field string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hashes[key] == nil {
		m.hashes[key] = make(map[string][]byte)
	}
	m.hashes[key][field] = value
	return nil
}

func (m *MemoryStore) HGetAll(ctx context.Context, key string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(m.hashes[key]))
	for field, v := range m.hashes[key] {
		result[field] = v
	}
	return result, nil
}

func (m *MemoryStore) HMGet(ctx context.Context, key string, fields ...string) (map[string][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string][]byte, len(fields))
	h := m.hashes[key]
	for _, f := range fields {
		if v, ok := h[f]; ok {
			result[f] = v
		}
	}
	return result, nil
}

func (m *MemoryStore) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sets[key] == nil {
		m.sets[key] = make(map[string]struct{})
	}
	for _, member := range members {
		m.sets[key][member] = struct{}{}
	}
	return nil
}

func (m *MemoryStore) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		result = append(result, member)
	}
	sort.Strings(result)
	return result, nil
}

// 确保 MemoryStore 实现了 core.Store 和 core.KeyValueStore 接口
var _ core.Store = (*MemoryStore)(nil)
var _ core.KeyValueStore = (*MemoryStore)(nil)
