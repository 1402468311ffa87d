package rerank

import (
	"context"
	"fmt"
	"testing"

	"github.com/rushteam/mixrec/core"
)

func ranked(cats ...core.Category) []*core.Candidate {
	out := make([]*core.Candidate, 0, len(cats))
	for i, c := range cats {
		out = append(out, core.NewCandidate(c, fmt.Sprint(i), float64(100-i), 0.5))
	}
	return out
}

func TestCategoryCap(t *testing.T) {
	tests := []struct{ limit, buckets, want int }{
		{12, 0, 3},
		{10, 5, 2},
		{1, 5, 1},
		{0, 5, 0},
		{100, 5, 20},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d", tt.limit, tt.buckets), func(t *testing.T) {
			if got := CategoryCap(tt.limit, tt.buckets); got != tt.want {
				t.Errorf("CategoryCap() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDiversify_CapsCategories(t *testing.T) {
	r, d, v, c, s := core.CategoryRecipe, core.CategoryDevice, core.CategoryVenue, core.CategoryCake, core.CategorySportingGood
	items := ranked(r, r, r, r, d, d, v, c, s, r, d, d)

	out, err := (&Diversify{}).Process(context.Background(), &core.RecommendContext{Limit: 5}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5", len(out))
	}
	seen := map[core.Category]int{}
	for i, x := range out {
		seen[x.Category]++
		if i > 0 && out[i-1].Score < x.Score {
			t.Errorf("rank order not preserved at %d", i)
		}
	}
	for cat, n := range seen {
		if n > 1 {
			t.Errorf("category %s has %d items, cap 1", cat, n)
		}
	}
}

func TestDiversify_BackfillsWhenCategoriesRunOut(t *testing.T) {
	items := ranked(core.CategoryRecipe, core.CategoryRecipe, core.CategoryRecipe, core.CategoryRecipe, core.CategoryDevice)

	out, err := (&Diversify{}).Process(context.Background(), &core.RecommendContext{Limit: 5}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 5 {
		t.Fatalf("len = %d, want 5 after backfill", len(out))
	}
	for i, x := range out {
		if x.ItemID != fmt.Sprint(i) {
			t.Errorf("out[%d] = %s, want original rank order", i, x.Key())
		}
	}
	if _, ok := out[1].Labels[LabelBackfill]; !ok {
		t.Error("backfilled candidate missing label")
	}
}

func TestTopNNode(t *testing.T) {
	items := ranked(core.CategoryRecipe, core.CategoryDevice, core.CategoryVenue)
	tests := []struct {
		name  string
		n     int
		limit int
		want  int
	}{
		{"explicit", 2, 0, 2},
		{"from context", 0, 1, 1},
		{"larger than input", 10, 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _ := (&TopNNode{N: tt.n}).Process(context.Background(), &core.RecommendContext{Limit: tt.limit}, items)
			if len(out) != tt.want {
				t.Errorf("len = %d, want %d", len(out), tt.want)
			}
		})
	}
}

func TestExplain(t *testing.T) {
	full := core.NewCandidate(core.CategoryVenue, "1", 81.6, 0.756)
	full.AddReason("a")
	full.AddReason("b")
	full.Factors.Historical = 1
	full.Factors.Collaborative = 0.5

	bare := core.NewCandidate(core.CategoryCake, "2", 40.4, 0.3)

	rated := core.NewCandidate(core.CategoryRecipe, "3", 70, 0.5)
	rated.Item = &core.CatalogItem{ID: "3", Category: core.CategoryRecipe, Rating: 4.6}

	out, err := (&Explain{}).Process(context.Background(), &core.RecommendContext{}, []*core.Candidate{full, bare, rated})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	for _, c := range out {
		if len(c.Reasons) < 1 || len(c.Reasons) > MaxReasons {
			t.Errorf("%s has %d reasons", c.Key(), len(c.Reasons))
		}
	}
	if full.Reasons[2] != "Because you like venues" {
		t.Errorf("third reason = %q", full.Reasons[2])
	}
	if full.DisplayScore != 82 || full.DisplayConfidence != 76 {
		t.Errorf("display = %d/%d, want 82/76", full.DisplayScore, full.DisplayConfidence)
	}
	if bare.Reasons[0] != "Recommended from cakes" || bare.DisplayScore != 40 {
		t.Errorf("bare = %v/%d", bare.Reasons, bare.DisplayScore)
	}
	if rated.Reasons[0] != "Highly rated (4.6/5)" {
		t.Errorf("rated reasons = %v", rated.Reasons)
	}
}
