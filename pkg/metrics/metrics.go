// Package metrics 定义推荐链路的 Prometheus 指标。
//
// Recorder 绑定到调用方传入的 prometheus.Registerer，测试中可使用独立 Registry；
// nil Recorder 的所有方法都是空操作。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 打分器执行结果
const (
	OutcomeOK      = "ok"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeSkipped = "skipped"
)

// Recorder 汇总推荐链路的指标。
type Recorder struct {
	scorerDuration  *prometheus.HistogramVec
	scorerOutcomes  *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	fallbacks       *prometheus.CounterVec
	requestDuration prometheus.Histogram
	itemsReturned   prometheus.Histogram
}

// New 在 reg 上注册全部指标；reg 为 nil 时使用 prometheus.DefaultRegisterer。
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		scorerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mixrec_scorer_duration_seconds",
				Help:    "Duration of individual scorer runs",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2.5},
			},
			[]string{"scorer"},
		),
		scorerOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mixrec_scorer_runs_total",
				Help: "Scorer runs by outcome (ok, empty, error, timeout, skipped)",
			},
			[]string{"scorer", "outcome"},
		),
		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mixrec_stage_duration_seconds",
				Help:    "Duration of pipeline stages",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"stage", "kind"},
		),
		fallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mixrec_fallbacks_total",
				Help: "Requests served by the popularity fallback, by reason",
			},
			[]string{"reason"},
		),
		requestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mixrec_request_duration_seconds",
				Help:    "End to end recommendation latency",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),
		itemsReturned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mixrec_items_returned",
				Help:    "Number of recommendations returned per request",
				Buckets: prometheus.LinearBuckets(0, 5, 10),
			},
		),
	}
}

// ObserveScorer 记录一次打分器执行。
func (r *Recorder) ObserveScorer(scorer, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.scorerDuration.WithLabelValues(scorer).Observe(elapsed.Seconds())
	r.scorerOutcomes.WithLabelValues(scorer, outcome).Inc()
}

// ObserveStage 记录一次 Pipeline 阶段执行。
func (r *Recorder) ObserveStage(stage, kind string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(stage, kind).Observe(elapsed.Seconds())
}

// Fallback 记录一次降级。
func (r *Recorder) Fallback(reason string) {
	if r == nil {
		return
	}
	r.fallbacks.WithLabelValues(reason).Inc()
}

// ObserveRequest 记录一次完整请求。
func (r *Recorder) ObserveRequest(elapsed time.Duration, items int) {
	if r == nil {
		return
	}
	r.requestDuration.Observe(elapsed.Seconds())
	r.itemsReturned.Observe(float64(items))
}
