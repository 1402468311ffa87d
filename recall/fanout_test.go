package recall

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pkg/metrics"
)

func staticScorer(name string, ids ...string) Scorer {
	return funcScorer{name: name, fn: func(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
		out := make([]*core.Candidate, 0, len(ids))
		for _, id := range ids {
			out = append(out, core.NewCandidate(core.CategoryRecipe, id, 70, 0.5))
		}
		return out, nil
	}}
}

func blockingScorer(name string, d time.Duration) Scorer {
	return funcScorer{name: name, fn: func(ctx context.Context, rctx *core.RecommendContext) ([]*core.Candidate, error) {
		time.Sleep(d)
		return []*core.Candidate{core.NewCandidate(core.CategoryRecipe, "late", 99, 1)}, nil
	}}
}

func TestFanout_PartialFailure(t *testing.T) {
	n := &Fanout{
		Scorers: []Scorer{
			staticScorer("first", "1", "2"),
			blockingScorer("slow", 500*time.Millisecond),
			funcScorer{name: "broken", fn: func(context.Context, *core.RecommendContext) ([]*core.Candidate, error) {
				return nil, core.NewDataUnavailable(core.ModuleProvider, "catalog down", nil)
			}},
			funcScorer{name: "skipped", fn: func(context.Context, *core.RecommendContext) ([]*core.Candidate, error) {
				return nil, core.NewInvalidContext("bad hour")
			}},
			staticScorer("second", "3"),
		},
		Timeout: 50 * time.Millisecond,
		Logger:  zerolog.Nop(),
		Metrics: metrics.New(prometheus.NewRegistry()),
	}

	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u"}, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if got := keys(out); len(got) != 3 || got[0] != "recipe-1" || got[1] != "recipe-2" || got[2] != "recipe-3" {
		t.Fatalf("Process() = %v, want scorer order [recipe-1 recipe-2 recipe-3]", got)
	}
}

func TestFanout_GlobalDeadline(t *testing.T) {
	n := &Fanout{
		Scorers: []Scorer{staticScorer("fast", "1"), blockingScorer("slow", time.Second)},
		Timeout: 5 * time.Second,
		Logger:  zerolog.Nop(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := n.Process(ctx, &core.RecommendContext{UserID: "u"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Process() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Process() waited %v for abandoned scorer", elapsed)
	}
}

func TestFanout_MaxConcurrent(t *testing.T) {
	n := &Fanout{
		Scorers:       []Scorer{staticScorer("a", "1"), staticScorer("b", "2"), staticScorer("c", "3")},
		MaxConcurrent: 1,
		Logger:        zerolog.Nop(),
	}
	out, err := n.Process(context.Background(), &core.RecommendContext{UserID: "u"}, nil)
	if err != nil || len(out) != 3 {
		t.Fatalf("Process() = %v, %v; want 3 candidates", keys(out), err)
	}
}

func TestFanout_Empty(t *testing.T) {
	out, err := (&Fanout{}).Process(context.Background(), &core.RecommendContext{}, nil)
	if err != nil || out != nil {
		t.Fatalf("Process() = %v, %v; want nil, nil", out, err)
	}
}
