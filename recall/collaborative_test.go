package recall

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/profile"
	"github.com/rushteam/mixrec/similarity"
	"github.com/rushteam/mixrec/store"
)

// 目标用户浏览 recipe 1-9，twin 浏览 1-8 与 new；两人一年前都收藏过 venue-7。
// Jaccard = 8/10 = 0.8，twin 的 new 应得 60 + 0.8*30 = 84 分。
func TestCollaborative_FromStoredActivity(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	t.Cleanup(func() { _ = kv.Close() })
	a := store.NewProviderAdapter(kv, "cf")

	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "new"} {
		if err := a.PutItem(ctx, item(core.CategoryRecipe, id, 4, 40)); err != nil {
			t.Fatalf("PutItem() error = %v", err)
		}
	}
	ts := fixedNow.Add(-24 * time.Hour)
	view := func(userID string, ids ...string) {
		for _, id := range ids {
			e := core.ActivityEvent{UserID: userID, Type: core.EventView, Category: core.CategoryRecipe, ItemID: id, Timestamp: ts}
			if err := a.RecordEvent(ctx, e); err != nil {
				t.Fatalf("RecordEvent() error = %v", err)
			}
		}
	}
	view("target", "1", "2", "3", "4", "5", "6", "7", "8", "9")
	view("twin", "1", "2", "3", "4", "5", "6", "7", "8", "new")
	for _, uid := range []string{"target", "twin"} {
		fav := core.Favorite{UserID: uid, Category: core.CategoryVenue, ItemID: "7", CreatedAt: fixedNow.AddDate(-1, 0, 0)}
		if err := a.PutFavorite(ctx, fav); err != nil {
			t.Fatalf("PutFavorite() error = %v", err)
		}
	}

	p := a.Providers()
	b := profile.NewBuilder(p.Activity, p.Favorites, zerolog.Nop())
	b.Neighbors = similarity.NewNeighborFinder(p.Activity, zerolog.Nop())
	prof, err := b.Build(ctx, "target", profile.Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(prof.Neighbors) != 1 || prof.Neighbors[0].UserID != "twin" || math.Abs(prof.Neighbors[0].Similarity-0.8) > 1e-9 {
		t.Fatalf("Neighbors = %+v, want twin with 0.8", prof.Neighbors)
	}

	s := &Collaborative{Activity: p.Activity, Catalog: p.Catalog}
	out, err := s.Score(ctx, newContext(prof, 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "new" {
		t.Fatalf("Score() = %v, want [recipe-new]", keys(out))
	}
	if math.Abs(out[0].Score-84) > 1e-9 || math.Abs(out[0].Confidence-0.8) > 1e-9 {
		t.Errorf("candidate = %v/%v, want 84/0.8", out[0].Score, out[0].Confidence)
	}
}
