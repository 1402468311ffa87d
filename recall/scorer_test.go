package recall

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/mixrec/core"
)

func TestQuota(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		share float64
		want  int
	}{
		{"content default limit", 0, 0.4, 5},
		{"collaborative", 12, 0.3, 4},
		{"hybrid", 12, 0.2, 3},
		{"temporal", 12, 0.1, 2},
		{"at least one", 1, 0.1, 1},
		{"zero share", 12, 0, 0},
		{"capped limit", 500, 0.1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Quota(&core.RecommendContext{Limit: tt.limit}, tt.share)
			if got != tt.want {
				t.Errorf("Quota() = %d, want %d", got, tt.want)
			}
		})
	}
}

func venueProfile() *core.UserProfile {
	p := core.NewUserProfile("u1")
	p.Preferences.Add(core.CategoryVenue, 10)
	p.Segments[core.CategoryVenue.Index()]["rooftop"] = 10
	p.Interactions[core.ItemKey{Category: core.CategoryVenue, ItemID: "seen"}.String()] = struct{}{}
	p.WindowStart = fixedNow.AddDate(0, 0, -90)
	p.WindowEnd = fixedNow
	return p
}

func TestContentBased_PreferredCategoryFirst(t *testing.T) {
	a := item(core.CategoryVenue, "A", 4.5, 80)
	a.Segment = "rooftop"
	b := item(core.CategorySportingGood, "B", 3.0, 10)
	seen := item(core.CategoryVenue, "seen", 5, 100)
	seen.Segment = "rooftop"
	catalog := &catalogFixture{items: []*core.CatalogItem{a, b, seen}}

	s := &ContentBased{Catalog: catalog}
	out, err := s.Score(context.Background(), newContext(venueProfile(), 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "A" {
		t.Fatalf("Score() = %v, want only A", keys(out))
	}
	c := out[0]
	if c.Score <= 55 || c.Score > 100 {
		t.Errorf("score = %v, want (55,100]", c.Score)
	}
	if c.Confidence < 0.4 || c.Confidence > 1 {
		t.Errorf("confidence = %v, want [0.4,1]", c.Confidence)
	}
	if c.Factors.Content <= 0 {
		t.Errorf("content factor = %v, want > 0", c.Factors.Content)
	}
	if lbl, ok := c.Labels[LabelRecallSource]; !ok || lbl.Value != NameContent {
		t.Errorf("recall_source label = %v", lbl)
	}
}

func TestContentBased_WidensWhenSegmentsEmpty(t *testing.T) {
	other := item(core.CategoryVenue, "other", 4.0, 50)
	other.Segment = "garden"
	catalog := &catalogFixture{items: []*core.CatalogItem{other}}

	out, err := (&ContentBased{Catalog: catalog}).Score(context.Background(), newContext(venueProfile(), 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "other" {
		t.Fatalf("Score() = %v, want [venue-other]", keys(out))
	}
}

func TestContentBased_AttributeBonus(t *testing.T) {
	plain := item(core.CategoryRecipe, "plain", 4, 50)
	rich := item(core.CategoryRecipe, "rich", 4, 50)
	rich.PrepMinutes = 20
	rich.Healthy = true
	rich.Featured = true
	rich.Verified = true
	rich.ReleasedAt = fixedNow.AddDate(0, 0, -3)
	catalog := &catalogFixture{items: []*core.CatalogItem{plain, rich}}

	p := core.NewUserProfile("u1")
	p.Preferences.Add(core.CategoryRecipe, 5)
	out, err := (&ContentBased{Catalog: catalog}).Score(context.Background(), newContext(p, 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 2 || out[0].ItemID != "rich" {
		t.Fatalf("Score() = %v, want rich first", keys(out))
	}
	if out[0].Score <= out[1].Score {
		t.Errorf("rich score %v should exceed plain score %v", out[0].Score, out[1].Score)
	}
}

func TestContentBased_ColdProfile(t *testing.T) {
	catalog := &catalogFixture{items: []*core.CatalogItem{item(core.CategoryRecipe, "1", 4, 50)}}
	out, err := (&ContentBased{Catalog: catalog}).Score(context.Background(), newContext(core.NewUserProfile("u"), 12))
	if err != nil || len(out) != 0 {
		t.Fatalf("Score() = %v, %v; want empty", keys(out), err)
	}
}

func TestCollaborative_SimilarUserItem(t *testing.T) {
	ts := fixedNow.AddDate(0, 0, -1)
	var events []core.ActivityEvent
	p := core.NewUserProfile("target")
	p.WindowStart = fixedNow.AddDate(0, 0, -90)
	p.Neighbors = []core.Neighbor{{UserID: "twin", Similarity: 0.8}}
	for _, id := range []string{"1", "2", "3", "4", "5", "6", "7", "8"} {
		key := core.ItemKey{Category: core.CategoryRecipe, ItemID: id}
		p.Interactions[key.String()] = struct{}{}
		events = append(events, core.ActivityEvent{UserID: "twin", Type: core.EventView, Category: core.CategoryRecipe, ItemID: id, Timestamp: ts})
	}
	events = append(events,
		core.ActivityEvent{UserID: "twin", Type: core.EventView, Category: core.CategoryRecipe, ItemID: "new", Timestamp: ts},
		core.ActivityEvent{UserID: "twin", Type: core.EventFavorite, Category: core.CategoryRecipe, ItemID: "fav-only", Timestamp: ts},
	)
	catalog := &catalogFixture{items: []*core.CatalogItem{item(core.CategoryRecipe, "new", 4, 40), item(core.CategoryRecipe, "fav-only", 4, 40)}}

	s := &Collaborative{Activity: &activityFixture{events: events}, Catalog: catalog}
	out, err := s.Score(context.Background(), newContext(p, 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 1 || out[0].ItemID != "new" {
		t.Fatalf("Score() = %v, want [recipe-new]", keys(out))
	}
	if math.Abs(out[0].Score-84) > 1e-9 {
		t.Errorf("score = %v, want 84", out[0].Score)
	}
	if math.Abs(out[0].Confidence-0.8) > 1e-9 {
		t.Errorf("confidence = %v, want 0.8", out[0].Confidence)
	}
	if out[0].Item == nil {
		t.Error("candidate not hydrated")
	}
}

func TestCollaborative_DropsUnknownItems(t *testing.T) {
	ts := fixedNow.AddDate(0, 0, -1)
	p := core.NewUserProfile("target")
	p.Neighbors = []core.Neighbor{{UserID: "n", Similarity: 0.5}}
	events := []core.ActivityEvent{{UserID: "n", Type: core.EventView, Category: core.CategoryCake, ItemID: "gone", Timestamp: ts}}

	s := &Collaborative{Activity: &activityFixture{events: events}, Catalog: &catalogFixture{}}
	out, err := s.Score(context.Background(), newContext(p, 12))
	if err != nil || len(out) != 0 {
		t.Fatalf("Score() = %v, %v; want empty", keys(out), err)
	}
}

func TestHybrid_TopRatedInPreferredCategory(t *testing.T) {
	catalog := &catalogFixture{items: []*core.CatalogItem{
		item(core.CategoryVenue, "A", 4.5, 80),
		item(core.CategoryVenue, "C", 5.0, 20),
		item(core.CategorySportingGood, "B", 3.0, 10),
	}}
	out, err := (&Hybrid{Catalog: catalog}).Score(context.Background(), newContext(venueProfile(), 12))
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(out) != 2 || out[0].ItemID != "C" || out[1].ItemID != "A" {
		t.Fatalf("Score() = %v, want [venue-C venue-A]", keys(out))
	}
	if math.Abs(out[0].Score-82) > 1e-9 || math.Abs(out[1].Score-81.6) > 1e-9 {
		t.Errorf("scores = %v, %v; want 82, 81.6", out[0].Score, out[1].Score)
	}
	for _, c := range out {
		if c.Confidence != 0.8 {
			t.Errorf("confidence = %v, want 0.8", c.Confidence)
		}
	}
}

func TestTemporal(t *testing.T) {
	p := core.NewUserProfile("u1")
	p.Preferences.Add(core.CategoryCake, 3)
	p.Behavior.HourCategory[19][core.CategoryCake.Index()] = 3
	catalog := &catalogFixture{items: []*core.CatalogItem{item(core.CategoryCake, "k1", 4, 60), item(core.CategoryRecipe, "r1", 5, 90)}}
	s := &Temporal{Catalog: catalog}

	t.Run("no hour", func(t *testing.T) {
		out, err := s.Score(context.Background(), newContext(p, 12))
		if err != nil || len(out) != 0 {
			t.Fatalf("Score() = %v, %v; want empty", keys(out), err)
		}
	})
	t.Run("invalid hour", func(t *testing.T) {
		rctx := newContext(p, 12)
		rctx.Request.HourOfDay = intPtr(31)
		_, err := s.Score(context.Background(), rctx)
		if !core.IsInvalidContext(err) {
			t.Fatalf("Score() error = %v, want invalid context", err)
		}
	})
	t.Run("quiet hour", func(t *testing.T) {
		rctx := newContext(p, 12)
		rctx.Request.HourOfDay = intPtr(4)
		out, err := s.Score(context.Background(), rctx)
		if err != nil || len(out) != 0 {
			t.Fatalf("Score() = %v, %v; want empty", keys(out), err)
		}
	})
	t.Run("active hour", func(t *testing.T) {
		rctx := newContext(p, 12)
		rctx.Request.HourOfDay = intPtr(19)
		out, err := s.Score(context.Background(), rctx)
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if len(out) != 1 || out[0].ItemID != "k1" {
			t.Fatalf("Score() = %v, want [cake-k1]", keys(out))
		}
		if out[0].Score != 90 || out[0].Confidence != 0.7 {
			t.Errorf("score/confidence = %v/%v, want 90/0.7", out[0].Score, out[0].Confidence)
		}
		if math.Abs(out[0].Factors.Temporal-0.3) > 1e-9 {
			t.Errorf("temporal factor = %v, want 0.3", out[0].Factors.Temporal)
		}
	})
}

func TestPeakCategory(t *testing.T) {
	p := core.NewUserProfile("u1")
	p.Behavior.HourCategory[8][core.CategoryRecipe.Index()] = 2
	p.Behavior.HourCategory[8][core.CategoryDevice.Index()] = 2
	p.Behavior.DayCategory[1][core.CategoryDevice.Index()] = 5
	p.Preferences.Add(core.CategoryRecipe, 9)

	tests := []struct {
		name string
		day  *int
		want core.Category
	}{
		{"preference breaks tie", nil, core.CategoryRecipe},
		{"day count breaks tie", intPtr(1), core.CategoryDevice},
		{"day without activity falls through", intPtr(3), core.CategoryRecipe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, n := PeakCategory(p, 8, core.RequestContext{DayOfWeek: tt.day})
			if got != tt.want || n != 2 {
				t.Errorf("PeakCategory() = %v, %d; want %v, 2", got, n, tt.want)
			}
		})
	}
}

func TestHeuristicRegression(t *testing.T) {
	catalog := &catalogFixture{items: []*core.CatalogItem{
		item(core.CategoryVenue, "A", 4.5, 80),
		item(core.CategoryVenue, "C", 2.0, 5),
		item(core.CategoryDevice, "D", 4.0, 90),
	}}
	s := &HeuristicRegression{Catalog: catalog}

	t.Run("cold start", func(t *testing.T) {
		out, err := s.Score(context.Background(), newContext(core.NewUserProfile("u"), 12))
		if err != nil || len(out) != 0 {
			t.Fatalf("Score() = %v, %v; want empty", keys(out), err)
		}
	})
	t.Run("scores predicted ratings", func(t *testing.T) {
		out, err := s.Score(context.Background(), newContext(venueProfile(), 12))
		if err != nil {
			t.Fatalf("Score() error = %v", err)
		}
		if len(out) == 0 {
			t.Fatal("Score() returned no candidates")
		}
		for _, c := range out {
			if c.Score < 50 || c.Score > 100 {
				t.Errorf("%s score = %v, want [50,100]", c.Key(), c.Score)
			}
			if c.Confidence < 0 || c.Confidence > 1 {
				t.Errorf("%s confidence = %v", c.Key(), c.Confidence)
			}
		}
	})
}

// fixedRating 是返回固定评分与置信度的 model.RatingModel。
type fixedRating struct {
	rating, confidence float64
}

func (fixedRating) Name() string { return "fixed" }

func (m fixedRating) Predict(map[string]float64) (float64, error) { return m.rating, nil }

func (m fixedRating) Confidence(map[string]float64) float64 { return m.confidence }

func TestHeuristicRegression_CustomModel(t *testing.T) {
	catalog := &catalogFixture{items: []*core.CatalogItem{
		item(core.CategoryVenue, "A", 4.5, 80),
		item(core.CategoryDevice, "D", 4.0, 90),
	}}
	tests := []struct {
		name  string
		model fixedRating
		want  int
	}{
		{"above min rating", fixedRating{rating: 4, confidence: 0.5}, 2},
		{"below min rating", fixedRating{rating: 2, confidence: 0.9}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &HeuristicRegression{Catalog: catalog, Model: tt.model}
			out, err := s.Score(context.Background(), newContext(venueProfile(), 12))
			if err != nil {
				t.Fatalf("Score() error = %v", err)
			}
			if len(out) != tt.want {
				t.Fatalf("Score() = %v, want %d candidates", keys(out), tt.want)
			}
			for _, c := range out {
				if c.Score != tt.model.rating*20 || c.Confidence != tt.model.confidence {
					t.Errorf("%s = %v/%v, want %v/%v", c.Key(), c.Score, c.Confidence, tt.model.rating*20, tt.model.confidence)
				}
			}
		})
	}
}

func TestPopularity(t *testing.T) {
	catalog := &catalogFixture{items: []*core.CatalogItem{
		item(core.CategoryVenue, "A", 4.5, 80),
		item(core.CategoryCake, "K", 3.0, 10),
		item(core.CategoryRecipe, "R", 5.0, 95),
	}}
	rctx := &core.RecommendContext{UserID: "u", Exclusions: map[core.Category]map[string]struct{}{
		core.CategoryCake: {"K": {}},
	}}
	out, err := (&Popularity{Catalog: catalog}).Score(context.Background(), rctx)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got := keys(out); len(got) != 2 || got[0] != "recipe-R" || got[1] != "venue-A" {
		t.Fatalf("Score() = %v, want [recipe-R venue-A]", got)
	}
	if math.Abs(out[0].Score-88) > 1e-9 {
		t.Errorf("score = %v, want 88", out[0].Score)
	}
	for _, c := range out {
		if c.Confidence != 0.3 || c.Factors.Personalized() {
			t.Errorf("%s: confidence %v personalized %v", c.Key(), c.Confidence, c.Factors.Personalized())
		}
	}
}

func TestScorersRequireCatalog(t *testing.T) {
	rctx := newContext(venueProfile(), 12)
	for _, s := range []Scorer{&ContentBased{}, &Hybrid{}, &Popularity{}} {
		t.Run(s.Name(), func(t *testing.T) {
			if _, err := s.Score(context.Background(), rctx); !core.IsDataUnavailable(err) {
				t.Errorf("Score() error = %v, want data unavailable", err)
			}
		})
	}
}

func keys(cands []*core.Candidate) []string {
	out := make([]string, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.Key().String())
	}
	return out
}
