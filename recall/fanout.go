package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/pipeline"
	"github.com/rushteam/mixrec/pkg/metrics"
)

// DefaultScorerTimeout 是单个打分器的默认超时。
const DefaultScorerTimeout = 1500 * time.Millisecond

// Fanout 是一个 Recall Node：并发执行多个打分器，按打分器顺序拼接结果。
//
// 每个打分器有独立超时；超时或出错的打分器被丢弃，不影响其他打分器。
// ctx 到期（全局超时）时立即停止等待并返回错误，由调用方降级。
// 打分器不需要支持中途取消：被放弃的结果写入带缓冲的 channel 后直接丢弃。
type Fanout struct {
	Scorers       []Scorer
	Timeout       time.Duration // 每个打分器的超时时间
	MaxConcurrent int           // 最大并发数（0 表示无限制）

	Logger  zerolog.Logger
	Metrics *metrics.Recorder
}

func (n *Fanout) Name() string        { return "recall.fanout" }
func (n *Fanout) Kind() pipeline.Kind { return pipeline.KindRecall }

type scorerResult struct {
	index   int
	cands   []*core.Candidate
	err     error
	elapsed time.Duration
}

func (n *Fanout) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Candidate,
) ([]*core.Candidate, error) {
	if len(n.Scorers) == 0 {
		return nil, nil
	}
	timeout := n.Timeout
	if timeout <= 0 {
		timeout = DefaultScorerTimeout
	}

	results := make(chan scorerResult, len(n.Scorers))
	go func() {
		var eg errgroup.Group
		if n.MaxConcurrent > 0 {
			eg.SetLimit(n.MaxConcurrent)
		}
		for i, s := range n.Scorers {
			eg.Go(func() error {
				results <- n.runOne(ctx, rctx, i, s, timeout)
				return nil
			})
		}
		_ = eg.Wait()
	}()

	slots := make([][]*core.Candidate, len(n.Scorers))
	for pending := len(n.Scorers); pending > 0; pending-- {
		select {
		case r := <-results:
			slots[r.index] = n.record(rctx, n.Scorers[r.index].Name(), r)
		case <-ctx.Done():
			n.Logger.Warn().
				Str("user_id", rctx.UserID).
				Int("pending", pending).
				Msg("global deadline reached before all scorers resolved")
			return nil, fmt.Errorf("fanout: %w", ctx.Err())
		}
	}

	// 全局截止与最后一个打分器同时到达时，以截止为准
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fanout: %w", err)
	}

	var all []*core.Candidate
	for _, cands := range slots {
		all = append(all, cands...)
	}
	return all, nil
}

// runOne 在独立超时下运行打分器；超时后不再等待其返回。
func (n *Fanout) runOne(ctx context.Context, rctx *core.RecommendContext, index int, s Scorer, timeout time.Duration) scorerResult {
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan scorerResult, 1)
	go func() {
		cands, err := s.Score(sctx, rctx)
		done <- scorerResult{index: index, cands: cands, err: err}
	}()

	select {
	case r := <-done:
		r.elapsed = time.Since(start)
		return r
	case <-sctx.Done():
		return scorerResult{
			index:   index,
			err:     core.NewScorerTimeout(s.Name(), sctx.Err()),
			elapsed: time.Since(start),
		}
	}
}

// record 记录打分器结果，返回可用的候选。
func (n *Fanout) record(rctx *core.RecommendContext, name string, r scorerResult) []*core.Candidate {
	outcome := metrics.OutcomeOK
	switch {
	case r.err == nil && len(r.cands) == 0:
		outcome = metrics.OutcomeEmpty
	case r.err == nil:
	case core.IsInvalidContext(r.err):
		outcome = metrics.OutcomeSkipped
		n.Logger.Debug().Str("scorer", name).Str("user_id", rctx.UserID).Err(r.err).Msg("scorer skipped")
	case core.IsScorerTimeout(r.err) || errors.Is(r.err, context.DeadlineExceeded):
		outcome = metrics.OutcomeTimeout
		n.Logger.Warn().Str("scorer", name).Str("user_id", rctx.UserID).Dur("elapsed", r.elapsed).Msg("scorer timed out")
	default:
		outcome = metrics.OutcomeError
		n.Logger.Warn().Str("scorer", name).Str("user_id", rctx.UserID).Err(r.err).Msg("scorer failed")
	}
	n.Metrics.ObserveScorer(name, outcome, r.elapsed)
	if r.err != nil {
		return nil
	}
	return r.cands
}
