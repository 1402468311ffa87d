package similarity

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mixrec/core"
)

// NeighborFinder 通过 Jaccard 相似度发现与目标用户交互集合相近的用户。
//
// 候选邻居来自与目标用户交互过同一物品的用户（ActivityLogStore.QueryByItems），
// 再逐个读取他们窗口内的交互集合计算相似度。
type NeighborFinder struct {
	Activity core.ActivityLogStore

	// Threshold 是最低相似度，低于该值的用户被丢弃，默认 0.1
	Threshold float64
	// K 是返回的最大邻居数，默认 10
	K int
	// MaxSeedItems 是用于反查的最近交互物品数，默认 50
	MaxSeedItems int
	// MaxCandidates 是参与计算的候选用户上限（按共同物品数优先），默认 200
	MaxCandidates int
	// Concurrency 是并发读取候选用户行为的上限，默认 8
	Concurrency int

	Logger zerolog.Logger
}

// NewNeighborFinder 创建使用默认参数的邻居发现器。
func NewNeighborFinder(activity core.ActivityLogStore, logger zerolog.Logger) *NeighborFinder {
	return &NeighborFinder{
		Activity:      activity,
		Threshold:     0.1,
		K:             10,
		MaxSeedItems:  50,
		MaxCandidates: 200,
		Concurrency:   8,
		Logger:        logger,
	}
}

// Target 描述需要寻找邻居的用户。
type Target struct {
	UserID string
	// Keys 是目标用户窗口内交互过的物品，按时间升序
	Keys  []core.ItemKey
	Since time.Time
	Until time.Time
}

// SetOf 返回窗口 [since, until) 内事件构成的交互集合。
func SetOf(events []core.ActivityEvent, since, until time.Time) Set {
	s := make(Set, len(events))
	for _, e := range events {
		if e.Timestamp.Before(since) || (!until.IsZero() && !e.Timestamp.Before(until)) {
			continue
		}
		s[e.Key().String()] = struct{}{}
	}
	return s
}

// Find 返回按相似度降序的邻居，最多 K 个。
func (f *NeighborFinder) Find(ctx context.Context, t Target) ([]core.Neighbor, error) {
	if f.Activity == nil || len(t.Keys) == 0 {
		return nil, nil
	}
	threshold := f.Threshold
	if threshold <= 0 {
		threshold = 0.1
	}
	k := f.K
	if k <= 0 {
		k = 10
	}

	own := make(Set, len(t.Keys))
	for _, key := range t.Keys {
		own[key.String()] = struct{}{}
	}

	seeds := dedupeKeys(t.Keys)
	if f.MaxSeedItems > 0 && len(seeds) > f.MaxSeedItems {
		seeds = seeds[len(seeds)-f.MaxSeedItems:]
	}

	events, err := f.Activity.QueryByItems(ctx, seeds, t.Since)
	if err != nil {
		return nil, core.NewDataUnavailable(core.ModuleProfile, "neighbors: query co-interactors", err)
	}
	candidates := f.rankCandidates(t, events)

	sims := make([]core.Neighbor, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	if f.Concurrency > 0 {
		g.SetLimit(f.Concurrency)
	}
	var mu sync.Mutex
	failed := 0
	for i, uid := range candidates {
		i, uid := i, uid
		g.Go(func() error {
			theirs, err := f.Activity.Query(gctx, uid, t.Since)
			if err != nil {
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			sims[i] = core.Neighbor{UserID: uid, Similarity: Jaccard(own, SetOf(theirs, t.Since, t.Until))}
			return nil
		})
	}
	_ = g.Wait()
	if failed > 0 {
		f.Logger.Debug().Str("user_id", t.UserID).Int("failed", failed).Msg("skipped neighbor candidates")
	}

	out := make([]core.Neighbor, 0, len(sims))
	for _, n := range sims {
		if n.UserID != "" && n.Similarity >= threshold {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].UserID < out[j].UserID
	})
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// rankCandidates 统计每个候选用户的共同物品数，取前 MaxCandidates 个。
func (f *NeighborFinder) rankCandidates(t Target, events []core.ActivityEvent) []string {
	shared := make(map[string]map[string]struct{})
	for _, e := range events {
		if e.UserID == "" || e.UserID == t.UserID {
			continue
		}
		if !t.Until.IsZero() && !e.Timestamp.Before(t.Until) {
			continue
		}
		if shared[e.UserID] == nil {
			shared[e.UserID] = make(map[string]struct{})
		}
		shared[e.UserID][e.Key().String()] = struct{}{}
	}
	users := make([]string, 0, len(shared))
	for uid := range shared {
		users = append(users, uid)
	}
	sort.Slice(users, func(i, j int) bool {
		a, b := len(shared[users[i]]), len(shared[users[j]])
		if a != b {
			return a > b
		}
		return users[i] < users[j]
	})
	if f.MaxCandidates > 0 && len(users) > f.MaxCandidates {
		users = users[:f.MaxCandidates]
	}
	return users
}

func dedupeKeys(keys []core.ItemKey) []core.ItemKey {
	seen := make(map[core.ItemKey]struct{}, len(keys))
	out := make([]core.ItemKey, 0, len(keys))
	// 保留每个物品最后一次出现的位置，维持时间顺序
	for i := len(keys) - 1; i >= 0; i-- {
		if _, ok := seen[keys[i]]; ok {
			continue
		}
		seen[keys[i]] = struct{}{}
		out = append(out, keys[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
