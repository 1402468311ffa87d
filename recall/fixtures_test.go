package recall

import (
	"context"
	"sort"
	"time"

	"github.com/rushteam/mixrec/core"
)

// catalogFixture 是内存目录，按查询条件过滤与排序。
type catalogFixture struct {
	items []*core.CatalogItem
	err   error
	delay time.Duration
}

func (c *catalogFixture) Query(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, core.NewDataUnavailable(core.ModuleProvider, "catalog timeout", ctx.Err())
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	segments := make(map[string]bool, len(q.Filter.Segments))
	for _, s := range q.Filter.Segments {
		segments[s] = true
	}
	var out []*core.CatalogItem
	for _, it := range c.items {
		if it.Category != q.Category || q.Excluded(it.ID) {
			continue
		}
		if len(segments) > 0 && !segments[it.Segment] {
			continue
		}
		if it.Rating < q.Filter.MinRating || (q.Filter.Featured && !it.Featured) {
			continue
		}
		out = append(out, it)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy == core.OrderByRating && out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].Popularity > out[j].Popularity
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (c *catalogFixture) Lookup(ctx context.Context, category core.Category, ids []string) ([]*core.CatalogItem, error) {
	if c.err != nil {
		return nil, c.err
	}
	var out []*core.CatalogItem
	for _, id := range ids {
		for _, it := range c.items {
			if it.Category == category && it.ID == id {
				out = append(out, it)
			}
		}
	}
	return out, nil
}

// activityFixture 是内存中的行为日志。
type activityFixture struct {
	events []core.ActivityEvent
}

func (a *activityFixture) Query(ctx context.Context, userID string, since time.Time) ([]core.ActivityEvent, error) {
	var out []core.ActivityEvent
	for _, e := range a.events {
		if e.UserID == userID && !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (a *activityFixture) QueryByItems(ctx context.Context, keys []core.ItemKey, since time.Time) ([]core.ActivityEvent, error) {
	return nil, nil
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func item(cat core.Category, id string, rating, pop float64) *core.CatalogItem {
	return &core.CatalogItem{ID: id, Category: cat, Name: id, Rating: rating, Popularity: pop}
}

func newContext(p *core.UserProfile, limit int) *core.RecommendContext {
	return &core.RecommendContext{UserID: p.UserID, Limit: limit, Now: fixedNow, User: p}
}

func intPtr(v int) *int { return &v }

// funcScorer 用函数实现 Scorer，方便构造慢速或失败的打分器。
type funcScorer struct {
	name string
	fn   func(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error)
}

func (s funcScorer) Name() string { return s.name }
func (s funcScorer) Score(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
	return s.fn(ctx, rctx)
}
