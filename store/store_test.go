package store

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/core"
)

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryStore_KV(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	defer m.Close()

	if _, err := m.Get(ctx, "missing"); !errors.Is(err, core.ErrStoreNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrStoreNotFound", err)
	}
	if err := m.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := m.BatchGet(ctx, []string{"k", "missing"})
	if err != nil || string(got["k"]) != "v" || len(got) != 1 {
		t.Errorf("BatchGet() = %v, %v", got, err)
	}
	if err := m.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(ctx, "k"); err == nil {
		t.Error("Get() after Delete should fail")
	}
}

func TestMemoryStore_SortedSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	defer m.Close()

	for member, score := range map[string]float64{"a": 3, "b": 1, "c": 2, "d": 2} {
		if err := m.ZAdd(ctx, "z", score, member); err != nil {
			t.Fatalf("ZAdd() error = %v", err)
		}
	}
	tests := []struct {
		name        string
		start, stop int64
		want        []string
	}{
		{"all", 0, -1, []string{"a", "c", "d", "b"}},
		{"top two", 0, 1, []string{"a", "c"}},
		{"past end", 3, 10, []string{"b"}},
		{"empty", 5, 6, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ZRange(ctx, "z", tt.start, tt.stop)
			if err != nil {
				t.Fatalf("ZRange() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ZRange() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ZRange() = %v, want %v", got, tt.want)
				}
			}
		})
	}

	byScore, err := m.ZRangeByScore(ctx, "z", 2, math.Inf(1))
	if err != nil || len(byScore) != 3 || byScore[0] != "c" || byScore[2] != "a" {
		t.Errorf("ZRangeByScore() = %v, %v; want ascending [c d a]", byScore, err)
	}
	if s, err := m.ZScore(ctx, "z", "b"); err != nil || s != 1 {
		t.Errorf("ZScore() = %v, %v", s, err)
	}
}

func TestMemoryStore_HashAndSet(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	defer m.Close()

	_ = m.HSet(ctx, "h", "f1", []byte("1"))
	_ = m.HSet(ctx, "h", "f2", []byte("2"))
	got, err := m.HMGet(ctx, "h", "f2", "nope")
	if err != nil || len(got) != 1 || string(got["f2"]) != "2" {
		t.Errorf("HMGet() = %v, %v", got, err)
	}
	all, _ := m.HGetAll(ctx, "h")
	if len(all) != 2 {
		t.Errorf("HGetAll() = %v", all)
	}

	_ = m.SAdd(ctx, "s", "b", "a", "b")
	members, _ := m.SMembers(ctx, "s")
	if len(members) != 2 || members[0] != "a" {
		t.Errorf("SMembers() = %v, want [a b]", members)
	}
}

func newTestAdapter(t *testing.T) *ProviderAdapter {
	t.Helper()
	m := NewMemoryStore()
	t.Cleanup(func() { _ = m.Close() })
	return NewProviderAdapter(m, "t")
}

func TestProviderAdapter_Activity(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	events := []core.ActivityEvent{
		{UserID: "u1", Type: core.EventView, Category: core.CategoryRecipe, ItemID: "1", Timestamp: fixedNow.Add(-48 * time.Hour)},
		{UserID: "u1", Type: core.EventUsed, Category: core.CategoryRecipe, ItemID: "2", Timestamp: fixedNow.Add(-time.Hour)},
		{UserID: "u2", Type: core.EventView, Category: core.CategoryRecipe, ItemID: "2", Timestamp: fixedNow.Add(-2 * time.Hour)},
	}
	for _, e := range events {
		if err := a.RecordEvent(ctx, e); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}

	got, err := a.Query(ctx, "u1", fixedNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 1 || got[0].ItemID != "2" || got[0].Type != core.EventUsed {
		t.Errorf("Query() = %+v, want only the recent used event", got)
	}

	byItem, err := a.QueryByItems(ctx, []core.ItemKey{{Category: core.CategoryRecipe, ItemID: "2"}}, fixedNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("QueryByItems() error = %v", err)
	}
	if len(byItem) != 2 || byItem[0].UserID != "u2" || byItem[1].UserID != "u1" {
		t.Errorf("QueryByItems() = %+v, want u2 then u1 in time order", byItem)
	}
}

func TestProviderAdapter_Catalog(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	items := []*core.CatalogItem{
		{ID: "1", Category: core.CategoryDevice, Segment: "acme", Rating: 4.8, Popularity: 40},
		{ID: "2", Category: core.CategoryDevice, Segment: "acme", Rating: 3.9, Popularity: 90, Featured: true},
		{ID: "3", Category: core.CategoryDevice, Segment: "zenith", Rating: 4.2, Popularity: 70},
		{ID: "4", Category: core.CategoryVenue, Rating: 5, Popularity: 99},
	}
	for _, it := range items {
		if err := a.PutItem(ctx, it); err != nil {
			t.Fatalf("PutItem() error = %v", err)
		}
	}
	catalog := a.Providers().Catalog

	tests := []struct {
		name string
		q    core.CatalogQuery
		want []string
	}{
		{"by popularity", core.CatalogQuery{Category: core.CategoryDevice, Limit: 10}, []string{"2", "3", "1"}},
		{"by rating", core.CatalogQuery{Category: core.CategoryDevice, OrderBy: core.OrderByRating, Limit: 10}, []string{"1", "3", "2"}},
		{"limit", core.CatalogQuery{Category: core.CategoryDevice, Limit: 1}, []string{"2"}},
		{"segments", core.CatalogQuery{Category: core.CategoryDevice, Filter: core.CatalogFilter{Segments: []string{"acme"}}, Limit: 10}, []string{"2", "1"}},
		{"min rating", core.CatalogQuery{Category: core.CategoryDevice, Filter: core.CatalogFilter{MinRating: 4}, Limit: 10}, []string{"3", "1"}},
		{"featured", core.CatalogQuery{Category: core.CategoryDevice, Filter: core.CatalogFilter{Featured: true}, Limit: 10}, []string{"2"}},
		{"expr", core.CatalogQuery{Category: core.CategoryDevice, Filter: core.CatalogFilter{Expr: "item.popularity < 80.0"}, Limit: 10}, []string{"3", "1"}},
		{"exclusions", core.CatalogQuery{Category: core.CategoryDevice, ExcludeIDs: map[string]struct{}{"2": {}}, Limit: 10}, []string{"3", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := catalog.Query(ctx, tt.q)
			if err != nil {
				t.Fatalf("Query() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Query() returned %d items, want %v", len(got), tt.want)
			}
			for i, it := range got {
				if it.ID != tt.want[i] {
					t.Fatalf("Query()[%d] = %s, want %v", i, it.ID, tt.want)
				}
			}
		})
	}

	if _, err := catalog.Query(ctx, core.CatalogQuery{Category: core.CategoryUnknown}); err == nil {
		t.Error("Query(unknown category) error = nil")
	}
	found, err := catalog.Lookup(ctx, core.CategoryDevice, []string{"3", "missing", "1"})
	if err != nil || len(found) != 2 || found[0].ID != "3" || found[1].ID != "1" {
		t.Errorf("Lookup() = %v, %v", found, err)
	}
}

func TestProviderAdapter_FavoritesAndExclusions(t *testing.T) {
	ctx := context.Background()
	a := newTestAdapter(t)
	favs := []core.Favorite{
		{UserID: "u1", Category: core.CategoryCake, ItemID: "9", CreatedAt: fixedNow},
		{UserID: "u1", Category: core.CategoryCake, ItemID: "8", CreatedAt: fixedNow.Add(-time.Hour)},
	}
	for _, f := range favs {
		if err := a.PutFavorite(ctx, f); err != nil {
			t.Fatalf("PutFavorite() error = %v", err)
		}
	}
	if err := a.AddExclusions(ctx, "u1", core.CategoryCake, "5"); err != nil {
		t.Fatalf("AddExclusions() error = %v", err)
	}

	got, err := a.Providers().Favorites.Query(ctx, "u1")
	if err != nil || len(got) != 2 || got[0].ItemID != "8" {
		t.Errorf("Favorites.Query() = %+v, %v; want oldest first", got, err)
	}
	ids, err := a.Resolve(ctx, "u1", core.CategoryCake)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	for _, id := range []string{"5", "8", "9"} {
		if _, ok := ids[id]; !ok {
			t.Errorf("Resolve() missing %s: %v", id, ids)
		}
	}
	if other, _ := a.Resolve(ctx, "u1", core.CategoryVenue); len(other) != 0 {
		t.Errorf("Resolve(venue) = %v, want empty", other)
	}
}

func TestParseItemKey(t *testing.T) {
	tests := []struct {
		in      string
		want    core.ItemKey
		wantErr bool
	}{
		{in: "venue-42", want: core.ItemKey{Category: core.CategoryVenue, ItemID: "42"}},
		{in: "sporting_good-a-b", want: core.ItemKey{Category: core.CategorySportingGood, ItemID: "a-b"}},
		{in: "spaceship-1", wantErr: true},
		{in: "venue", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseItemKey(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseItemKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseItemKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

type failingCatalog struct{ calls int }

func (f *failingCatalog) Query(ctx context.Context, q core.CatalogQuery) ([]*core.CatalogItem, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingCatalog) Lookup(ctx context.Context, c core.Category, ids []string) ([]*core.CatalogItem, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	inner := &failingCatalog{}
	cfg := BreakerConfig{MaxRequests: 1, Interval: time.Minute, Timeout: time.Minute, FailureThreshold: 3}
	g := NewGuarded(core.Providers{Catalog: inner}, cfg, zerolog.Nop())
	catalog := g.Providers().Catalog

	for i := 0; i < 3; i++ {
		if _, err := catalog.Query(context.Background(), core.CatalogQuery{Category: core.CategoryRecipe}); err == nil {
			t.Fatal("Query() error = nil")
		}
	}
	_, err := catalog.Query(context.Background(), core.CatalogQuery{Category: core.CategoryRecipe})
	if !core.IsDataUnavailable(err) {
		t.Errorf("Query() with open breaker error = %v, want DATA_UNAVAILABLE", err)
	}
	if inner.calls != 3 {
		t.Errorf("inner calls = %d, want 3 (open breaker must not call through)", inner.calls)
	}
	if state := g.States()["catalog"]; state != "open" {
		t.Errorf("catalog breaker state = %q, want open", state)
	}
}
