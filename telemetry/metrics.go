// Package telemetry exposes Prometheus metrics for one backtrader process:
// optimization-loop progress, backtest outcomes, cache sync health, and
// HTTP retry activity. One process registers one Registry.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the custom prometheus registry for backtrader metrics.
	Registry = prometheus.NewRegistry()

	mu sync.RWMutex

	// ============================================
	// Optimization loop metrics
	// ============================================

	// IterationCount tracks the number of optimization iterations run per asset.
	IterationCount = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "iterations_total",
			Help:      "Total optimization iterations run",
		},
		[]string{"asset"},
	)

	// Phase tracks the active optimization phase as a 0/1 gauge per phase
	// label, so `max by (asset) (backtrader_optimize_phase)` reports the
	// current one.
	Phase = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "phase",
			Help:      "Whether the optimization loop is currently in this phase (1) or not (0)",
		},
		[]string{"asset", "phase"},
	)

	// Score tracks the current iteration's composite score (§4.8a).
	Score = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "score",
			Help:      "Current iteration's multi-objective score",
		},
		[]string{"asset"},
	)

	// BestScore tracks the best-checkpointed score.
	BestScore = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "best_score",
			Help:      "Best checkpointed score so far",
		},
		[]string{"asset"},
	)

	// VerdictsTotal tracks VERDICT(kind) events.
	VerdictsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "verdicts_total",
			Help:      "Total iteration verdicts by kind",
		},
		[]string{"asset", "verdict"},
	)

	// GuardrailViolationsTotal tracks rejected proposed changes.
	GuardrailViolationsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "optimize",
			Name:      "guardrail_violations_total",
			Help:      "Total guardrail violations rejected",
		},
		[]string{"asset", "field"},
	)

	// ============================================
	// Backtest outcome metrics
	// ============================================

	// TotalPnL tracks the current iteration's backtest P&L.
	TotalPnL = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "backtest",
			Name:      "pnl_total",
			Help:      "Total P&L of the most recent backtest run",
		},
		[]string{"asset"},
	)

	// TradesTotal tracks completed-trade counts.
	TradesTotal = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "backtest",
			Name:      "trades_total",
			Help:      "Completed trade count of the most recent backtest run",
		},
		[]string{"asset"},
	)

	// DrawdownMax tracks the most recent run's max drawdown percentage.
	DrawdownMax = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "backtrader",
			Subsystem: "backtest",
			Name:      "drawdown_max_pct",
			Help:      "Maximum drawdown percentage of the most recent backtest run",
		},
		[]string{"asset"},
	)

	// BacktestDuration tracks one engine.Run call's wall time.
	BacktestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backtrader",
			Subsystem: "backtest",
			Name:      "duration_seconds",
			Help:      "Backtest run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"asset"},
	)

	// ============================================
	// Candle cache / client metrics
	// ============================================

	// CacheSyncDuration tracks one cache.Store.Sync call's wall time.
	CacheSyncDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "backtrader",
			Subsystem: "cache",
			Name:      "sync_duration_seconds",
			Help:      "Candle cache sync duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source", "coin", "interval"},
	)

	// CacheSyncRowsTotal tracks candles inserted per sync.
	CacheSyncRowsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "cache",
			Name:      "sync_rows_total",
			Help:      "Total candles inserted by sync",
		},
		[]string{"source", "coin", "interval"},
	)

	// ClientRetriesTotal tracks HTTP retry attempts by adapter.
	ClientRetriesTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Total HTTP retry attempts against upstream candle sources",
		},
		[]string{"source"},
	)

	// ClientRequestErrorsTotal tracks non-retryable failures by adapter.
	ClientRequestErrorsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "backtrader",
			Subsystem: "client",
			Name:      "request_errors_total",
			Help:      "Total non-retryable request failures against upstream candle sources",
		},
		[]string{"source"},
	)
)

// phaseNames lists every phase label so SetPhase can clear the ones it
// isn't setting, matching the single-active-phase gauge pattern.
var phaseNames = []string{"init", "refine", "research", "restructure", "done"}

// SetPhase sets the active phase gauge to 1 and every other phase to 0, so
// a single `max by (asset)` query reports the current one unambiguously.
func SetPhase(asset, phase string) {
	mu.Lock()
	defer mu.Unlock()

	for _, p := range phaseNames {
		val := 0.0
		if p == phase {
			val = 1.0
		}
		Phase.WithLabelValues(asset, p).Set(val)
	}
}

// RecordIteration updates the per-iteration optimization gauges and counters.
func RecordIteration(asset string, score, bestScore float64) {
	IterationCount.WithLabelValues(asset).Inc()
	Score.WithLabelValues(asset).Set(score)
	BestScore.WithLabelValues(asset).Set(bestScore)
}

// RecordVerdict increments the verdict counter for one iteration outcome.
func RecordVerdict(asset, verdict string) {
	VerdictsTotal.WithLabelValues(asset, verdict).Inc()
}

// RecordGuardrailViolation increments the guardrail-rejection counter.
func RecordGuardrailViolation(asset, field string) {
	GuardrailViolationsTotal.WithLabelValues(asset, field).Inc()
}

// RecordBacktest updates the backtest outcome gauges for one run.
func RecordBacktest(asset string, totalPnl float64, trades int, maxDrawdownPct, durationSeconds float64) {
	TotalPnL.WithLabelValues(asset).Set(totalPnl)
	TradesTotal.WithLabelValues(asset).Set(float64(trades))
	DrawdownMax.WithLabelValues(asset).Set(maxDrawdownPct)
	BacktestDuration.WithLabelValues(asset).Observe(durationSeconds)
}

// RecordCacheSync updates the cache sync histogram and row counter.
func RecordCacheSync(source, coin, interval string, durationSeconds float64, rows int) {
	CacheSyncDuration.WithLabelValues(source, coin, interval).Observe(durationSeconds)
	CacheSyncRowsTotal.WithLabelValues(source, coin, interval).Add(float64(rows))
}

// RecordClientRetry increments the retry counter for one upstream source.
func RecordClientRetry(source string) {
	ClientRetriesTotal.WithLabelValues(source).Inc()
}

// RecordClientError increments the non-retryable-error counter for one
// upstream source.
func RecordClientError(source string) {
	ClientRequestErrorsTotal.WithLabelValues(source).Inc()
}

// Init registers the standard Go process collectors, matching the
// teacher's own startup registration.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
