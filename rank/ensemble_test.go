package rank

import (
	"context"
	"math"
	"testing"

	"github.com/rushteam/mixrec/core"
)

func cand(cat core.Category, id string, score, conf float64, reasons ...string) *core.Candidate {
	c := core.NewCandidate(cat, id, score, conf)
	for _, r := range reasons {
		c.AddReason(r)
	}
	return c
}

func TestEnsemble_MergesDuplicates(t *testing.T) {
	a1 := cand(core.CategoryVenue, "A", 80, 0.4, "content")
	a1.Factors.Content = 0.6
	a2 := cand(core.CategoryVenue, "A", 60, 0.8, "hybrid", "content")
	a2.Factors.Popularity = 0.9
	b := cand(core.CategoryCake, "B", 50, 0.5, "popular")

	out, err := (&Ensemble{}).Process(context.Background(), &core.RecommendContext{}, []*core.Candidate{a1, b, a2})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Process() returned %d candidates, want 2", len(out))
	}
	a := out[0]
	if a.ItemID != "A" {
		t.Fatalf("first = %s, want venue-A", a.Key())
	}
	// (80+60)/2 * (1 + 0.2*0.8)
	if want := 70 * 1.16; math.Abs(a.Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", a.Score, want)
	}
	if a.Confidence != 0.8 {
		t.Errorf("confidence = %v, want 0.8", a.Confidence)
	}
	if len(a.Reasons) != 2 || a.Reasons[0] != "content" || a.Reasons[1] != "hybrid" {
		t.Errorf("reasons = %v, want [content hybrid]", a.Reasons)
	}
	if a.Factors.Content != 0.6 || a.Factors.Popularity != 0.9 {
		t.Errorf("factors = %+v, want element-wise max", a.Factors)
	}
	if lbl := a.Labels[LabelMergeCount]; lbl.Value != "2" {
		t.Errorf("merge_count = %q, want 2", lbl.Value)
	}
	if a1.Score != 80 {
		t.Error("input candidate was mutated")
	}
}

func TestEnsemble_ActivityBoost(t *testing.T) {
	p := core.NewUserProfile("u")
	p.Behavior.HourHistogram[20] = 4
	p.Behavior.HourHistogram[9] = 2
	hour := 9
	rctx := &core.RecommendContext{User: p, Request: core.RequestContext{HourOfDay: &hour}}

	out, err := (&Ensemble{}).Process(context.Background(), rctx, []*core.Candidate{cand(core.CategoryRecipe, "1", 50, 0.5)})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// 1 + 0.2*0.5 + 0.1*(2/4)
	if want := 50 * 1.15; math.Abs(out[0].Score-want) > 1e-9 {
		t.Errorf("score = %v, want %v", out[0].Score, want)
	}
}

func TestEnsemble_ClampAndOrder(t *testing.T) {
	items := []*core.Candidate{
		cand(core.CategoryRecipe, "b", 70, 0),
		cand(core.CategoryRecipe, "a", 70, 0),
		cand(core.CategoryDevice, "top", 95, 1),
	}
	out, err := (&Ensemble{}).Process(context.Background(), &core.RecommendContext{}, items)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := []string{"device-top", "recipe-a", "recipe-b"}
	for i, c := range out {
		if c.Key().String() != want[i] {
			t.Fatalf("order = %v, want %v", c.Key(), want)
		}
		if c.Score < core.MinScore || c.Score > core.MaxScore {
			t.Errorf("%s score %v out of range", c.Key(), c.Score)
		}
	}
	if out[0].Score != core.MaxScore {
		t.Errorf("top score = %v, want clamped to 100", out[0].Score)
	}
}
