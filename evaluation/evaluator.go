package evaluation

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mixrec/config"
	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/engine"
)

// Report 是留一评估的汇总指标，均为用户平均值。
type Report struct {
	K int `json:"k"`
	// Users 是参与评估（至少有一条收藏）的用户数
	Users     int     `json:"users"`
	Skipped   int     `json:"skipped"`
	HitRate   float64 `json:"hitRate"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	NDCG      float64 `json:"ndcg"`
	// Fallbacks 按降级原因统计
	Fallbacks map[string]int `json:"fallbacks,omitempty"`
}

// Outcome 是单个用户的评估结果。
type Outcome struct {
	Holdout  Holdout
	Rank     int // 从 1 开始，0 表示未命中
	Returned int
	Fallback string
}

// Evaluator 对一组用户做留一评估。
type Evaluator struct {
	Providers core.Providers
	Settings  *config.Settings
	// K 默认 10
	K int
	// Concurrency 默认 4
	Concurrency int
	Logger      zerolog.Logger
}

// Run 评估 users；没有收藏的用户计入 Skipped。
func (ev *Evaluator) Run(ctx context.Context, users []string) (*Report, error) {
	k := ev.K
	if k <= 0 {
		k = 10
	}
	concurrency := ev.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	if ev.Providers.Favorites == nil {
		return nil, core.NewDataUnavailable(core.ModuleEngine, "evaluation: favorites store not configured", nil)
	}

	var (
		mu       sync.Mutex
		outcomes []Outcome
		skipped  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, userID := range users {
		g.Go(func() error {
			o, ok, err := ev.evaluateUser(gctx, userID, k)
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", userID, err)
			}
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				skipped++
				return nil
			}
			outcomes = append(outcomes, o)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r := Summarize(outcomes, k)
	r.Skipped = skipped
	ev.Logger.Info().
		Int("users", r.Users).
		Int("skipped", r.Skipped).
		Int("k", k).
		Float64("hit_rate", r.HitRate).
		Float64("mrr", r.MRR).
		Msg("holdout evaluation finished")
	return r, nil
}

func (ev *Evaluator) evaluateUser(ctx context.Context, userID string, k int) (Outcome, bool, error) {
	favs, err := ev.Providers.Favorites.Query(ctx, userID)
	if err != nil {
		ev.Logger.Warn().Str("user_id", userID).Err(err).Msg("favorites unavailable, skipping user")
		return Outcome{}, false, nil
	}
	latest, ok := LatestFavorite(favs)
	if !ok {
		return Outcome{}, false, nil
	}
	h := Holdout{UserID: userID, Item: latest.Key(), At: latest.CreatedAt}

	e, err := engine.New(HideFrom(ev.Providers, h), engine.Options{Settings: ev.Settings, Logger: ev.Logger})
	if err != nil {
		return Outcome{}, false, err
	}
	resp, err := e.Recommend(ctx, engine.Request{UserID: userID, Limit: k, Now: h.At})
	if err != nil {
		return Outcome{}, false, err
	}
	keys := resp.Keys()
	return Outcome{Holdout: h, Rank: RankOf(keys, h.Item), Returned: len(keys), Fallback: resp.FallbackReason}, true, nil
}

// RankOf 返回 target 在 keys 中的位置（从 1 开始），不存在时为 0。
func RankOf(keys []core.ItemKey, target core.ItemKey) int {
	for i, k := range keys {
		if k == target {
			return i + 1
		}
	}
	return 0
}

// Summarize 计算 HitRate@K、Precision@K、Recall@K、MRR 与 NDCG@K。
//
// 每个用户只有一个相关物品：Recall 等于是否命中，
// Precision 的分母是实际返回条数与 K 中的较小者。
func Summarize(outcomes []Outcome, k int) *Report {
	r := &Report{K: k, Users: len(outcomes), Fallbacks: make(map[string]int)}
	if len(outcomes) == 0 {
		return r
	}
	var hits, prec, rr, ndcg float64
	for _, o := range outcomes {
		if o.Fallback != "" {
			r.Fallbacks[o.Fallback]++
		}
		if o.Rank == 0 || o.Rank > k {
			continue
		}
		hits++
		denom := k
		if o.Returned > 0 && o.Returned < k {
			denom = o.Returned
		}
		prec += 1 / float64(denom)
		rr += 1 / float64(o.Rank)
		ndcg += 1 / math.Log2(float64(o.Rank)+1)
	}
	n := float64(len(outcomes))
	r.HitRate = hits / n
	r.Recall = hits / n
	r.Precision = prec / n
	r.MRR = rr / n
	r.NDCG = ndcg / n
	return r
}
