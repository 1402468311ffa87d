package recall

import (
	"context"
	"errors"

	"github.com/rushteam/mixrec/core"
)

// Collaborative 是基于用户的协同过滤打分器：
// 取画像中相似度最高的 K 个邻居，把他们近期浏览过、目标用户未见过的物品作为候选。
//
// 分数 = 60 + 相似度*30，置信度 = 相似度。
type Collaborative struct {
	Activity core.ActivityLogStore
	// Catalog 可选，用于补全物品快照；缺失的物品会被丢弃
	Catalog core.CatalogStore

	// Share 是占 limit 的份额，默认 0.3
	Share float64
	// TopK 是使用的邻居数，默认 5
	TopK int
}

func (s *Collaborative) Name() string { return NameCollaborative }

func (s *Collaborative) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	share := s.Share
	if share <= 0 {
		share = 0.3
	}
	topK := s.TopK
	if topK <= 0 {
		topK = 5
	}
	if s.Activity == nil {
		return nil, core.NewDataUnavailable(core.ModuleRecall, "collaborative: activity store not configured", nil)
	}

	prof := rctx.Profile()
	neighbors := prof.TopNeighbors(topK)
	if len(neighbors) == 0 {
		return nil, nil
	}

	var (
		out     []*core.Candidate
		emitted = make(map[core.ItemKey]struct{})
		errs    []error
	)
	for _, n := range neighbors {
		events, err := s.Activity.Query(ctx, n.UserID, prof.WindowStart)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// 最近的浏览优先
		for i := len(events) - 1; i >= 0; i-- {
			e := events[i]
			if e.Type != core.EventView || !e.Key().Category.Valid() {
				continue
			}
			if !rctx.Now.IsZero() && !e.Timestamp.Before(rctx.Now) {
				continue
			}
			key := e.Key()
			if _, ok := emitted[key]; ok || rctx.IsExcluded(key) {
				continue
			}
			emitted[key] = struct{}{}

			c := core.NewCandidate(key.Category, key.ItemID, 60+n.Similarity*30, n.Similarity)
			c.Factors.Collaborative = n.Similarity
			c.AddReason("Users with similar taste also viewed this")
			out = append(out, c)
		}
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	out = s.hydrate(ctx, out)
	out = rankAndCut(out, Quota(rctx, share))
	tag(out, s.Name())
	return out, nil
}

// hydrate 补全物品快照；查询失败时保留原候选。
func (s *Collaborative) hydrate(ctx context.Context, cands []*core.Candidate) []*core.Candidate {
	if s.Catalog == nil || len(cands) == 0 {
		return cands
	}
	byCategory := make(map[core.Category][]string)
	for _, c := range cands {
		byCategory[c.Category] = append(byCategory[c.Category], c.ItemID)
	}
	found := make(map[core.ItemKey]*core.CatalogItem, len(cands))
	failed := make(map[core.Category]bool)
	for cat, ids := range byCategory {
		items, err := s.Catalog.Lookup(ctx, cat, ids)
		if err != nil {
			failed[cat] = true
			continue
		}
		for _, it := range items {
			found[it.Key()] = it
		}
	}
	out := cands[:0]
	for _, c := range cands {
		if failed[c.Category] {
			out = append(out, c)
			continue
		}
		it, ok := found[c.Key()]
		if !ok {
			continue
		}
		c.Item = it
		c.Factors.Popularity = it.Popularity / 100
		out = append(out, c)
	}
	return out
}
