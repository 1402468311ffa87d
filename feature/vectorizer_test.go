package feature

import (
	"math"
	"testing"
	"time"

	"github.com/rushteam/mixrec/core"
)

func TestVectorizer_ZeroProfile(t *testing.T) {
	v := NewVectorizer(time.Now())
	vec := v.User(core.NewUserProfile("u1"))
	if len(vec) != Dimension {
		t.Fatalf("len = %d, want %d", len(vec), Dimension)
	}
	if Magnitude(vec) != 0 {
		t.Errorf("cold start vector should be zero, got magnitude %v", Magnitude(vec))
	}
}

func TestVectorizer_UserNormalized(t *testing.T) {
	p := core.NewUserProfile("u1")
	p.Preferences.Add(core.CategoryVenue, 10)
	p.Behavior.Favorites[core.CategoryVenue.Index()] = 2
	p.Behavior.HourHistogram[19] = 4
	p.Segments[core.CategoryVenue.Index()]["rooftop"] = 6

	v := NewVectorizer(time.Now())
	vec := v.User(p)
	if math.Abs(Magnitude(vec)-1) > 1e-9 {
		t.Errorf("magnitude = %v, want 1", Magnitude(vec))
	}
	if vec[offsetCategory+core.CategoryVenue.Index()] <= 0 {
		t.Errorf("venue category dimension should be positive")
	}
	if vec[offsetTemporal+4] <= 0 {
		t.Errorf("evening daypart should be positive")
	}
	if Magnitude(v.RawUser(p)) <= 1 {
		t.Errorf("raw magnitude should exceed the normalized one")
	}
}

func TestVectorizer_Item(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	v := NewVectorizer(now)

	tests := []struct {
		name      string
		item      *core.CatalogItem
		wantFresh bool
	}{
		{"fresh item", &core.CatalogItem{ID: "a", Category: core.CategoryCake, Rating: 4, Popularity: 50, ReleasedAt: now.AddDate(0, 0, -10)}, true},
		{"old item", &core.CatalogItem{ID: "b", Category: core.CategoryCake, Rating: 4, Popularity: 50, ReleasedAt: now.AddDate(-1, 0, 0)}, false},
		{"no release date", &core.CatalogItem{ID: "c", Category: core.CategoryDevice, Rating: 2}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := v.Item(tt.item)
			if iv.ItemID != tt.item.ID || iv.Category != tt.item.Category {
				t.Fatalf("identity mismatch: %+v", iv)
			}
			if math.Abs(Magnitude(iv.Vector)-1) > 1e-9 {
				t.Errorf("magnitude = %v, want 1", Magnitude(iv.Vector))
			}
			if got := iv.Vector[indexFreshness] > 0; got != tt.wantFresh {
				t.Errorf("fresh = %v, want %v", got, tt.wantFresh)
			}
		})
	}
}

func TestVectorizer_FreshnessDoesNotMatchEveningActivity(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	v := NewVectorizer(now)
	p := core.NewUserProfile("u1")
	p.Preferences.Add(core.CategoryCake, 3)
	p.Behavior.HourHistogram[21] = 10

	user := v.User(p)
	if user[indexFreshness] != 0 {
		t.Errorf("user freshness dimension = %v, want 0", user[indexFreshness])
	}
	fresh := v.Item(&core.CatalogItem{ID: "f", Category: core.CategoryCake, ReleasedAt: now.AddDate(0, 0, -1)})
	for i := offsetTemporal; i < offsetTemporal+segmentBuckets; i++ {
		if fresh.Vector[i] != 0 {
			t.Errorf("item temporal dimension %d = %v, want 0", i, fresh.Vector[i])
		}
	}
	stale := v.Item(&core.CatalogItem{ID: "s", Category: core.CategoryCake})
	if dot(user, fresh.Vector) > dot(user, stale.Vector) {
		t.Errorf("freshness should not raise similarity with an evening-active user")
	}
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func TestVectorizer_Deterministic(t *testing.T) {
	it := &core.CatalogItem{ID: "x", Category: core.CategoryRecipe, Segment: "thai", Rating: 4.5, Popularity: 80, FavoriteCount: 12}
	v := NewVectorizer(time.Time{})
	a, b := v.Item(it).Vector, v.Item(it).Vector
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vector differs at %d", i)
		}
	}
}

func TestSegmentBucketRange(t *testing.T) {
	for _, seg := range []string{"", "thai", "nike", "rooftop", "bosch"} {
		if b := SegmentBucket(seg); b < 0 || b >= segmentBuckets {
			t.Errorf("SegmentBucket(%q) = %d out of range", seg, b)
		}
	}
}

func TestL2Normalizer(t *testing.T) {
	got := L2Normalizer{}.Normalize([]float64{3, 4})
	if math.Abs(got[0]-0.6) > 1e-12 || math.Abs(got[1]-0.8) > 1e-12 {
		t.Errorf("Normalize = %v, want [0.6 0.8]", got)
	}
	zero := L2Normalizer{}.Normalize([]float64{0, 0})
	if zero[0] != 0 || zero[1] != 0 {
		t.Errorf("zero vector should stay zero, got %v", zero)
	}
}
