// Package engine 是推荐请求的入口：构建画像、并发执行打分器、融合重排并生成解释。
//
// 链路中没有致命错误。画像不可用、冷启动、全局超时或结果为空时，
// 都会降级为不依赖画像的品类热度排序，并在 Response.FallbackReason 中注明原因。
package engine

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/mixrec/config"
	_ "github.com/rushteam/mixrec/config/builders"
	"github.com/rushteam/mixrec/core"
	"github.com/rushteam/mixrec/filter"
	"github.com/rushteam/mixrec/pipeline"
	"github.com/rushteam/mixrec/pkg/metrics"
	"github.com/rushteam/mixrec/pkg/utils"
	"github.com/rushteam/mixrec/profile"
	"github.com/rushteam/mixrec/rank"
	"github.com/rushteam/mixrec/recall"
	"github.com/rushteam/mixrec/rerank"
	"github.com/rushteam/mixrec/similarity"
)

// 降级原因
const (
	FallbackNone               = ""
	FallbackColdStart          = "cold_start"
	FallbackTimeout            = "timeout"
	FallbackProfileUnavailable = "profile_unavailable"
	FallbackEmpty              = "empty"
)

// LabelFallback 是降级请求写入 RecommendContext 的 label。
const LabelFallback = "fallback"

// Request 是一次推荐请求。
type Request struct {
	// RequestID 为空时自动生成
	RequestID string
	UserID    string
	// Limit 为 0 时使用配置的默认条数，最大 core.MaxLimit
	Limit   int
	Context core.RequestContext
	// Advanced 使用 180 天画像窗口
	Advanced bool
	// Now 为空时使用当前时间；离线评估时用于回放
	Now time.Time
}

// Recommendation 是对外输出的一条推荐。
type Recommendation struct {
	Category   string            `json:"category"`
	ItemID     string            `json:"itemId"`
	Score      int               `json:"score"`
	Confidence int               `json:"confidence"`
	Reasons    []string          `json:"reasons"`
	Factors    core.Factors      `json:"factors"`
	Item       *core.CatalogItem `json:"item,omitempty"`
}

// Response 是一次推荐的结果。
type Response struct {
	RequestID      string           `json:"requestId"`
	UserID         string           `json:"userId"`
	Items          []Recommendation `json:"items"`
	FallbackReason string           `json:"fallbackReason,omitempty"`
	ScorersUsed    []string         `json:"scorersUsed,omitempty"`
	LatencyMS      int64            `json:"latencyMs"`

	// Candidates 是排序后的内部候选，与 Items 一一对应
	Candidates []*core.Candidate `json:"-"`
}

// Keys 返回结果中的复合键，按排序顺序。
func (r *Response) Keys() []core.ItemKey {
	keys := make([]core.ItemKey, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		keys = append(keys, c.Key())
	}
	return keys
}

// Options 是 Engine 的可选依赖。
type Options struct {
	// Settings 为空时使用 config.DefaultSettings()
	Settings *config.Settings
	Logger   zerolog.Logger
	Metrics  *metrics.Recorder

	// Scorers 为空时按 Settings 构建内置打分器
	Scorers []recall.Scorer
	// Post 为空时使用内置的 exclusion -> ensemble -> diversify -> explain
	Post *pipeline.Pipeline
}

// Engine 协调画像构建、打分器扇出与后置阶段，可并发使用。
type Engine struct {
	providers core.Providers
	settings  *config.Settings
	logger    zerolog.Logger
	metrics   *metrics.Recorder

	profiles *profile.Builder
	// scoring 只含 recall.Fanout，popular 只含 recall.Popularity；二者与 post 共用 observeStage
	scoring *pipeline.Pipeline
	popular *pipeline.Pipeline
	post    *pipeline.Pipeline
}

// New 创建 Engine。
func New(p core.Providers, opts Options) (*Engine, error) {
	s := opts.Settings
	if s == nil {
		s = config.DefaultSettings()
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("engine: invalid settings: %w", err)
	}
	logger := opts.Logger.With().Str("component", "engine").Logger()

	builder := profile.NewBuilder(p.Activity, p.Favorites, opts.Logger)
	builder.Window = s.Profile.Window
	builder.AdvancedWindow = s.Profile.AdvancedWindow
	builder.FetchTimeout = s.Profile.FetchTimeout
	if p.Activity != nil {
		nf := similarity.NewNeighborFinder(p.Activity, opts.Logger.With().Str("component", "similarity").Logger())
		nf.Threshold = s.Profile.NeighborThreshold
		nf.K = s.Profile.NeighborK
		nf.MaxSeedItems = s.Profile.MaxSeedItems
		builder.Neighbors = nf
	}

	scorers := opts.Scorers
	if len(scorers) == 0 {
		scorers = Scorers(p, s)
	}

	e := &Engine{
		providers: p,
		settings:  s,
		logger:    logger,
		metrics:   opts.Metrics,
		profiles:  builder,
	}
	e.scoring = &pipeline.Pipeline{
		Nodes: []pipeline.Node{&recall.Fanout{
			Scorers:       scorers,
			Timeout:       s.Engine.ScorerTimeout,
			MaxConcurrent: s.Engine.MaxConcurrent,
			Logger:        opts.Logger.With().Str("component", "recall").Logger(),
			Metrics:       opts.Metrics,
		}},
		Observer: e.observeStage,
	}
	e.popular = &pipeline.Pipeline{
		Nodes:    []pipeline.Node{&recall.Popularity{Catalog: p.Catalog}},
		Observer: e.observeStage,
	}

	post := opts.Post
	if post == nil {
		var err error
		post, err = e.loadPost()
		if err != nil {
			return nil, err
		}
	}
	if post.Observer == nil {
		post.Observer = e.observeStage
	}
	e.post = post
	return e, nil
}

// Scorers 按配置构建内置打分器，被禁用的打分器不会出现在结果中。
func Scorers(p core.Providers, s *config.Settings) []recall.Scorer {
	sc := s.Scorers
	all := []recall.Scorer{
		&recall.ContentBased{Catalog: p.Catalog, Share: sc.ContentShare, TopSegments: sc.ContentTopSegments},
		&recall.Collaborative{Activity: p.Activity, Catalog: p.Catalog, Share: sc.CollaborativeShare, TopK: sc.CollaborativeTopK},
		&recall.Hybrid{Catalog: p.Catalog, Share: sc.HybridShare, TopCategories: sc.HybridTopCategories},
		&recall.Temporal{Catalog: p.Catalog, Share: sc.TemporalShare},
		&recall.HeuristicRegression{
			Catalog:     p.Catalog,
			Share:       sc.RegressionShare,
			PerCategory: sc.RegressionPerCategory,
			MinRating:   sc.RegressionMinRating,
		},
	}
	out := make([]recall.Scorer, 0, len(all))
	for _, scorer := range all {
		if s.ScorerEnabled(scorer.Name()) {
			out = append(out, scorer)
		}
	}
	return out
}

// DefaultPost 返回内置的后置阶段。
func DefaultPost(buckets int) *pipeline.Pipeline {
	return &pipeline.Pipeline{
		Nodes: []pipeline.Node{
			&filter.FilterNode{Filters: []filter.Filter{&filter.ExclusionFilter{}}},
			&rank.Ensemble{},
			&rerank.Diversify{Buckets: buckets},
			&rerank.Explain{},
		},
	}
}

func (e *Engine) loadPost() (*pipeline.Pipeline, error) {
	path := e.settings.Pipeline.Path
	if path == "" {
		return DefaultPost(e.settings.Engine.CategoryBuckets), nil
	}
	cfg, err := pipeline.LoadFromYAML(path)
	if err != nil {
		return nil, fmt.Errorf("engine: load pipeline: %w", err)
	}
	if err := config.ValidatePipelineConfig(cfg); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	p, err := cfg.BuildPipeline(config.DefaultFactory())
	if err != nil {
		return nil, fmt.Errorf("engine: build pipeline: %w", err)
	}
	return p, nil
}

func (e *Engine) observeStage(node pipeline.Node, elapsed time.Duration, in, out int, err error) {
	e.metrics.ObserveStage(node.Name(), string(node.Kind()), elapsed)
	ev := e.logger.Debug()
	if err != nil {
		ev = e.logger.Warn().Err(err)
	}
	ev.Str("stage", node.Name()).Int("in", in).Int("out", out).Dur("elapsed", elapsed).Msg("stage finished")
}

func (e *Engine) prepare(req Request) Request {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Limit <= 0 {
		req.Limit = e.settings.Engine.DefaultLimit
	}
	if req.Limit > core.MaxLimit {
		req.Limit = core.MaxLimit
	}
	if req.Now.IsZero() {
		req.Now = time.Now()
	}
	return req
}

func (e *Engine) newContext(req Request, prof *core.UserProfile) *core.RecommendContext {
	return &core.RecommendContext{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Limit:     req.Limit,
		Now:       req.Now,
		Request:   req.Context,
		User:      prof,
	}
}

// Recommend 为用户生成推荐。
//
// 只有调用方的 ctx 在降级阶段也已取消时才会返回错误；其他失败都会降级。
func (e *Engine) Recommend(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req = e.prepare(req)
	logger := e.logger.With().Str("request_id", req.RequestID).Str("user_id", req.UserID).Logger()

	gctx, cancel := context.WithTimeout(ctx, e.settings.Engine.GlobalTimeout)
	defer cancel()

	prof, err := e.profiles.Build(gctx, req.UserID, profile.Options{Now: req.Now, Advanced: req.Advanced})
	if err != nil {
		logger.Warn().Err(err).Msg("profile unavailable, falling back to popularity")
		return e.fallback(ctx, req, nil, FallbackProfileUnavailable, start)
	}
	if prof.IsColdStart() {
		logger.Debug().Msg("cold start profile")
		return e.fallback(ctx, req, prof, FallbackColdStart, start)
	}

	rctx := e.newContext(req, prof)
	e.resolveExclusions(gctx, rctx, logger)

	cands, err := e.scoring.Run(gctx, rctx, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("scoring did not finish before the global deadline")
		return e.fallback(ctx, req, prof, FallbackTimeout, start)
	}
	scorersUsed := sources(cands)

	ranked, err := e.post.Run(ctx, rctx, cands)
	if err != nil {
		logger.Warn().Err(err).Msg("post pipeline failed")
		ranked = nil
	}
	if len(ranked) == 0 {
		return e.fallback(ctx, req, prof, FallbackEmpty, start)
	}

	resp := e.respond(req, ranked, FallbackNone, scorersUsed, start)
	logger.Debug().
		Int("candidates", len(cands)).
		Int("returned", len(resp.Items)).
		Strs("scorers", scorersUsed).
		Int64("latency_ms", resp.LatencyMS).
		Msg("recommendation complete")
	return resp, nil
}

// PopularityRanking 返回不依赖画像的品类热度排序（仍然应用排除集与品类多样性）。
// 冷启动用户的 Recommend 结果与之相同。
func (e *Engine) PopularityRanking(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	req = e.prepare(req)
	return e.popularityResponse(ctx, req, nil, FallbackNone, start)
}

func (e *Engine) fallback(ctx context.Context, req Request, prof *core.UserProfile, reason string, start time.Time) (*Response, error) {
	e.metrics.Fallback(reason)
	return e.popularityResponse(ctx, req, prof, reason, start)
}

// popularityResponse 在独立的降级预算内生成热度排序；prof 只用于排除已交互物品。
func (e *Engine) popularityResponse(ctx context.Context, req Request, prof *core.UserProfile, reason string, start time.Time) (*Response, error) {
	fctx, cancel := context.WithTimeout(ctx, e.settings.Engine.FallbackTimeout)
	defer cancel()

	logger := e.logger.With().Str("request_id", req.RequestID).Str("user_id", req.UserID).Logger()

	// 降级路径不使用画像中的行为统计，只保留已交互集合用于排除
	var seen *core.UserProfile
	if prof != nil {
		seen = core.NewUserProfile(prof.UserID)
		seen.Interactions = prof.Interactions
	}
	rctx := e.newContext(req, seen)
	rctx.Request = core.RequestContext{}
	if reason != FallbackNone {
		rctx.PutLabel(LabelFallback, utils.Label{Value: reason, Source: "engine"})
	}
	e.resolveExclusions(fctx, rctx, logger)

	cands, err := e.popular.Run(fctx, rctx, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine: popularity ranking: %w", ctx.Err())
		}
		logger.Error().Err(err).Msg("popularity ranking unavailable, returning empty list")
		cands = nil
	}
	ranked, err := e.post.Run(fctx, rctx, cands)
	if err != nil {
		logger.Error().Err(err).Msg("post pipeline failed on popularity ranking")
		ranked = nil
	}
	var used []string
	if len(cands) > 0 {
		used = []string{recall.NamePopularity}
	}
	return e.respond(req, ranked, reason, used, start), nil
}

// resolveExclusions 并发解析各品类的排除集；解析失败的品类只记录日志。
func (e *Engine) resolveExclusions(ctx context.Context, rctx *core.RecommendContext, logger zerolog.Logger) {
	rctx.Exclusions = make(map[core.Category]map[string]struct{}, core.NumCategories)
	if e.providers.Exclusions == nil || rctx.UserID == "" {
		return
	}
	var mu sync.Mutex
	var g errgroup.Group
	for _, c := range core.AllCategories() {
		g.Go(func() error {
			ids, err := e.providers.Exclusions.Resolve(ctx, rctx.UserID, c)
			if err != nil {
				logger.Warn().Err(err).Str("category", c.String()).Msg("exclusions unavailable")
				return nil
			}
			if len(ids) == 0 {
				return nil
			}
			mu.Lock()
			rctx.Exclusions[c] = ids
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

func (e *Engine) respond(req Request, ranked []*core.Candidate, reason string, scorersUsed []string, start time.Time) *Response {
	resp := &Response{
		RequestID:      req.RequestID,
		UserID:         req.UserID,
		Items:          make([]Recommendation, 0, len(ranked)),
		FallbackReason: reason,
		ScorersUsed:    scorersUsed,
		Candidates:     ranked,
	}
	for _, c := range ranked {
		resp.Items = append(resp.Items, toRecommendation(c))
	}
	elapsed := time.Since(start)
	resp.LatencyMS = elapsed.Milliseconds()
	e.metrics.ObserveRequest(elapsed, len(resp.Items))
	return resp
}

func toRecommendation(c *core.Candidate) Recommendation {
	score, conf := c.DisplayScore, c.DisplayConfidence
	if score == 0 && conf == 0 {
		score = int(math.Round(c.Score))
		conf = int(math.Round(c.Confidence * 100))
	}
	return Recommendation{
		Category:   c.Category.String(),
		ItemID:     c.ItemID,
		Score:      score,
		Confidence: conf,
		Reasons:    append([]string(nil), c.Reasons...),
		Factors:    c.Factors,
		Item:       c.Item,
	}
}

// sources 返回产出了候选的打分器，按首次出现顺序。
func sources(cands []*core.Candidate) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range cands {
		lbl, ok := c.Labels[recall.LabelRecallSource]
		if !ok {
			continue
		}
		for _, v := range lbl.Values() {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
