package optimize

import (
	"context"
	"fmt"
	"time"

	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/engine"
	"github.com/axton-labs/backtrader/events"
	"github.com/axton-labs/backtrader/oracle"
	"github.com/axton-labs/backtrader/stats"
	"github.com/axton-labs/backtrader/strategy"
	"github.com/axton-labs/backtrader/telemetry"
	"github.com/rs/zerolog"
)

// StrategyFactory instantiates a strategy with a parameter-override map
// applied on top of its declared defaults (§6 "a named factory so the
// orchestrator can instantiate it with a parameter-override map").
type StrategyFactory func(overrides map[string]float64) (strategy.Strategy, error)

// Rebuild is the caller-supplied structural typecheck/rebuild step run
// before a source edit is counted as CHANGE_APPLIED (§4.8e (iv)). A nil
// Rebuild always passes, matching "no rebuild step configured".
type Rebuild func(source string) error

// Config bundles everything one asset's optimization run needs that isn't
// mutated as the loop progresses.
type Config struct {
	Asset         string
	LockDir       string
	CheckpointDir string
	HistoryPath   string

	Candles    []candle.Candle
	HTFCandles map[candle.Interval][]candle.Candle

	EngineConfig engine.Config
	Factory      StrategyFactory
	ParamBounds  map[string]ParamBounds

	Criteria   Criteria
	Guardrails Guardrails
	Weights    Weights

	Oracle        oracle.Oracle
	OracleTimeout time.Duration
	Rebuild       Rebuild

	MaxIterPerPhase      map[Phase]int
	MaxCycles            int
	MaxTransientFailures int
	MaxFixAttempts       int

	Logger zerolog.Logger

	// Events, if set, receives one NDJSON event per phase-machine
	// transition. Nil disables event emission entirely.
	Events *events.Writer
}

// emit is a nil-safe wrapper so Config.Events can be left unset.
func (o *Orchestrator) emit(kind events.Kind, fields map[string]any) {
	if o.cfg.Events == nil {
		return
	}
	if err := o.cfg.Events.Emit(o.cfg.Asset, kind, fields); err != nil {
		o.cfg.Logger.Warn().Err(err).Msg("failed to emit event")
	}
}

// Orchestrator drives the per-iteration procedure of §4.8 for one asset.
type Orchestrator struct {
	cfg Config

	machine *Machine
	history *ParameterHistory

	overrides   map[string]float64
	source      string
	metCriteria bool
}

// New constructs an orchestrator, loading any existing parameter-history
// journal from cfg.HistoryPath.
func New(cfg Config) (*Orchestrator, error) {
	hist, err := LoadParameterHistory(cfg.HistoryPath)
	if err != nil {
		return nil, err
	}
	m := NewMachine(cfg.MaxCycles)
	m.Phase = hist.CurrentPhase
	if m.Phase == "" {
		m.Phase = PhaseInit
	}
	return &Orchestrator{
		cfg:       cfg,
		machine:   m,
		history:   hist,
		overrides: map[string]float64{},
	}, nil
}

// ExitCode mirrors §6's process exit codes.
type ExitCode int

const (
	ExitCriteriaMet    ExitCode = 0
	ExitFatal          ExitCode = 1
	ExitNoImprovement  ExitCode = 2
)

// Summary is the Run loop's terminal result.
type Summary struct {
	Exit        ExitCode
	BestIter    int
	BestScore   float64
	BestMetrics map[string]float64
	Iterations  int
}

// Run drives the loop to completion: CRITERIA_MET, budget exhaustion, or a
// fatal error (the asset lock is already held, or MaxTransientFailures
// transient errors, oracle errors and timeouts included). A guardrail
// violation is recorded as NO_CHANGE and never ends the run; checkpoint
// and history I/O errors are logged and do not end it either. The
// asset-scoped filesystem mutex (§5) is held for the whole run.
func (o *Orchestrator) Run(ctx context.Context) (Summary, error) {
	lock := NewAssetLock(o.cfg.LockDir, o.cfg.Asset)
	if err := lock.Acquire(); err != nil {
		return Summary{Exit: ExitFatal}, err
	}
	defer lock.Release()

	o.machine.Start()
	telemetry.SetPhase(o.cfg.Asset, string(o.machine.Phase))

	iter := 0
	maxTotalIter := totalIterBudget(o.cfg.MaxIterPerPhase, o.cfg.MaxCycles)

	for o.machine.Phase != PhaseDone && iter < maxTotalIter {
		iter++
		done, err := o.runIteration(ctx, iter)
		if err != nil {
			var guardrailErr *GuardrailViolation
			var compileErr *CompileError
			switch {
			case isGuardrailViolation(err, &guardrailErr):
				o.cfg.Logger.Warn().Err(err).Msg("guardrail violation, rejecting change")
				telemetry.RecordGuardrailViolation(o.cfg.Asset, guardrailErr.Field)
				o.emit(events.KindGuardrailRejected, map[string]any{"iter": iter, "field": guardrailErr.Field})
				o.machine.NoChange()
				continue
			case isCompileError(err, &compileErr):
				o.cfg.Logger.Warn().Err(err).Int("fixAttempts", o.machine.Ctx.FixAttempts).Msg("strategy source failed to compile")
				o.emit(events.KindCompileError, map[string]any{"iter": iter, "fixAttempts": o.machine.Ctx.FixAttempts})
				if o.machine.Ctx.FixAttempts >= o.cfg.MaxFixAttempts {
					o.rollback()
					o.machine.Ctx.NeedsRebuild = false
					o.machine.Ctx.FixAttempts = 0
				}
				continue
			default:
				o.machine.TransientError()
				o.cfg.Logger.Error().Err(err).Int("iter", iter).Msg("transient error during iteration")
				o.emit(events.KindTransientError, map[string]any{"iter": iter, "error": err.Error()})
				if o.machine.Ctx.TransientFailures >= o.cfg.MaxTransientFailures {
					o.persist()
					return o.summary(ExitFatal, iter), fmt.Errorf("optimize: aborting after %d transient failures: %w", o.machine.Ctx.TransientFailures, err)
				}
				continue
			}
		}
		if done {
			o.machine.CriteriaMet()
			o.metCriteria = true
			o.emit(events.KindCriteriaMet, map[string]any{"iter": iter})
			break
		}

		prevPhase := o.machine.Phase
		if o.machine.Ctx.PhaseIterCount >= o.cfg.MaxIterPerPhase[o.machine.Phase] {
			o.machine.PhaseTimeout()
		} else {
			o.machine.Escalate()
		}
		if o.machine.Phase != prevPhase {
			telemetry.SetPhase(o.cfg.Asset, string(o.machine.Phase))
			o.emit(events.KindPhaseChange, map[string]any{"iter": iter, "from": string(prevPhase), "to": string(o.machine.Phase)})
		}
	}

	o.history.CurrentPhase = o.machine.Phase
	o.persist()

	exit := ExitNoImprovement
	if o.metCriteria {
		exit = ExitCriteriaMet
	}
	summary := o.summary(exit, iter)
	o.emit(events.KindRunSummary, map[string]any{
		"exit": int(summary.Exit), "bestIter": summary.BestIter,
		"bestScore": summary.BestScore, "iterations": summary.Iterations,
	})
	return summary, nil
}

func (o *Orchestrator) summary(exit ExitCode, iter int) Summary {
	return Summary{
		Exit:        exit,
		BestIter:    o.machine.Ctx.BestIter,
		BestScore:   o.machine.Ctx.BestScore,
		BestMetrics: map[string]float64{"pnl": o.machine.Ctx.BestPnl},
		Iterations:  iter,
	}
}

func (o *Orchestrator) persist() {
	if err := o.history.Save(o.cfg.HistoryPath); err != nil {
		o.cfg.Logger.Error().Err(err).Msg("failed to save parameter history")
	}
}

func isGuardrailViolation(err error, target **GuardrailViolation) bool {
	if gv, ok := err.(*GuardrailViolation); ok {
		*target = gv
		return true
	}
	return false
}

func isCompileError(err error, target **CompileError) bool {
	if ce, ok := err.(*CompileError); ok {
		*target = ce
		return true
	}
	return false
}

func totalIterBudget(perPhase map[Phase]int, maxCycles int) int {
	total := 0
	for _, n := range perPhase {
		total += n
	}
	if total == 0 {
		total = 50
	}
	bound := total * (maxCycles + 1)
	if bound <= 0 {
		bound = total
	}
	return bound
}

// runIteration runs one full iteration of the §4.8 per-iteration procedure
// and reports whether acceptance criteria were met.
func (o *Orchestrator) runIteration(ctx context.Context, iter int) (bool, error) {
	o.machine.IterStart()
	o.emit(events.KindIterStart, map[string]any{"iter": iter})

	if o.machine.Ctx.NeedsRebuild {
		if err := ValidateStructural(o.cfg.Rebuild, o.source); err != nil {
			o.machine.CompileError()
			return false, err
		}
		o.machine.Ctx.NeedsRebuild = false
	}

	strat, err := o.cfg.Factory(o.overrides)
	if err != nil {
		return false, fmt.Errorf("optimize: instantiate strategy: %w", err)
	}

	start := time.Now()
	eng := engine.New(o.cfg.EngineConfig, strat, o.cfg.Logger)
	result, err := eng.Run(o.cfg.Candles, o.cfg.HTFCandles)
	if err != nil {
		return false, fmt.Errorf("optimize: backtest run: %w", err)
	}

	m := stats.ComputeMetrics(result.Trades, result.MaxDrawdownPct)
	telemetry.RecordBacktest(o.cfg.Asset, m.TotalPnL, m.NumTrades, m.MaxDrawdownPct, time.Since(start).Seconds())
	optimizableParams := countOptimizable(strat.Params())

	score := Score(ScoreInput{
		PF:                safeFinite(m.ProfitFactor),
		AvgR:              safeFinite(m.AvgR),
		WR:                safeFinite(m.WinRate),
		DD:                m.MaxDrawdownPct,
		OptimizableParams: optimizableParams,
		Trades:            m.NumTrades,
	}, o.cfg.Weights)

	o.machine.BacktestOK(score)
	telemetry.RecordIteration(o.cfg.Asset, score, o.machine.Ctx.BestScore)
	o.emit(events.KindBacktestOK, map[string]any{"iter": iter, "score": score, "totalPnl": m.TotalPnL, "numTrades": m.NumTrades})

	prevPnl := o.machine.Ctx.BestPnl
	sv := CompareScore(score, o.machine.Ctx.BestScore)
	verdict := ToMachineVerdict(sv)
	o.machine.Verdict(verdict)
	telemetry.RecordVerdict(o.cfg.Asset, string(verdict))
	o.emit(events.KindVerdict, map[string]any{"iter": iter, "verdict": string(verdict)})

	if len(o.history.Iterations) > 0 {
		o.history.Backfill(map[string]float64{
			"pnl": m.TotalPnL, "pf": m.ProfitFactor, "wr": m.WinRate, "avgR": m.AvgR,
		}, prevPnl, m.TotalPnL, m.NumTrades)
	}
	o.history.ExpirePendingHypotheses(iter)

	rec := IterationRecord{
		Iter:         iter,
		Date:         time.UnixMilli(o.cfg.Candles[len(o.cfg.Candles)-1].T).UTC().Format("2006-01-02"),
		TradesBefore: m.NumTrades,
	}
	o.history.AppendIteration(rec)

	if sv == ScoreAccept {
		metrics := map[string]float64{
			"totalPnl": m.TotalPnL, "profitFactor": m.ProfitFactor,
			"winRate": m.WinRate, "avgR": m.AvgR, "maxDrawdownPct": m.MaxDrawdownPct,
			"score": score,
		}
		if err := SaveCheckpoint(o.cfg.CheckpointDir, Checkpoint{
			Source:    o.source,
			Overrides: o.overrides,
			Metrics:   CheckpointMetrics{Metrics: metrics, Iter: iter, Timestamp: time.UnixMilli(o.cfg.Candles[len(o.cfg.Candles)-1].T).UTC().Format(time.RFC3339), RunID: o.history.RunID},
		}); err != nil {
			o.cfg.Logger.Error().Err(err).Msg("checkpoint save failed")
		} else {
			o.machine.CheckpointSaved(score, m.TotalPnL, iter)
			o.emit(events.KindCheckpointSaved, map[string]any{"iter": iter, "score": score})
		}
	} else if sv == ScoreReject {
		o.rollback()
	}

	met, unmet := o.cfg.Criteria.Check(EvalInput{
		TotalPnL: m.TotalPnL, NumTrades: m.NumTrades, ProfitFactor: m.ProfitFactor,
		MaxDrawdownPct: m.MaxDrawdownPct, WinRate: m.WinRate, AvgR: m.AvgR,
	})
	if met {
		return true, nil
	}
	o.cfg.Logger.Info().Strs("unmet", unmet).Int("iter", iter).Float64("score", score).Msg("acceptance criteria not met")

	if err := o.consultOracle(ctx, iter, strat, m, unmet); err != nil {
		return false, err
	}

	return false, nil
}

// rollback restores the best checkpoint's source and overrides, per §4.8
// step 9 ("if rollback is triggered ... restore the best checkpoint
// before next iteration").
func (o *Orchestrator) rollback() {
	if !CheckpointExists(o.cfg.CheckpointDir) {
		return
	}
	cp, err := LoadCheckpoint(o.cfg.CheckpointDir)
	if err != nil {
		o.cfg.Logger.Error().Err(err).Msg("rollback: failed to load checkpoint")
		return
	}
	o.source = cp.Source
	o.overrides = cp.Overrides
}

func (o *Orchestrator) consultOracle(ctx context.Context, iter int, strat strategy.Strategy, m stats.Metrics, unmet []string) error {
	octx, cancel := context.WithTimeout(ctx, o.cfg.OracleTimeout)
	defer cancel()

	bounds := map[string][2]float64{}
	for name, b := range o.cfg.ParamBounds {
		bounds[name] = [2]float64{b.Min, b.Max}
	}

	diag := oracle.Context{
		Phase:             string(o.machine.Phase),
		Metrics:           map[string]float64{"totalPnl": m.TotalPnL, "profitFactor": m.ProfitFactor, "winRate": m.WinRate, "avgR": m.AvgR},
		UnmetCriteria:     unmet,
		CurrentParams:     o.overrides,
		ParamBounds:       bounds,
		ExploredRanges:    o.history.ExploredRanges,
		NeverWorked:       toOracleNeverWorked(o.history.NeverWorked),
		PendingHypotheses: toOracleHypotheses(o.history.PendingHypotheses),
		StrategySource:    o.source,
		Iter:              iter,
	}

	decision, err := o.cfg.Oracle.Propose(octx, diag)
	if err != nil {
		return fmt.Errorf("optimize: oracle: %w", err)
	}

	switch decision.Kind {
	case oracle.KindNoChange:
		o.machine.NoChange()
		o.emit(events.KindNoChange, map[string]any{"iter": iter})

	case oracle.KindResearchBrief:
		for _, approach := range decision.SuggestedApproaches {
			o.history.AddHypothesis(approach, iter)
		}
		o.machine.NoChange()
		o.emit(events.KindNoChange, map[string]any{"iter": iter, "researchBrief": true})

	case oracle.KindParamChange:
		if err := o.cfg.Guardrails.Validate(decision.Overrides, o.cfg.ParamBounds); err != nil {
			return err
		}
		o.applyOverrides(decision.Overrides, iter)
		o.machine.ChangeApplied(ScaleParametric)
		o.emit(events.KindChangeApplied, map[string]any{"iter": iter, "scale": string(ScaleParametric)})

	case oracle.KindSourceEdit:
		if err := ValidateStructural(o.cfg.Rebuild, decision.NewText); err != nil {
			o.machine.CompileError()
			return err
		}
		o.source = decision.NewText
		o.machine.ChangeApplied(ScaleStructural)
		o.emit(events.KindChangeApplied, map[string]any{"iter": iter, "scale": string(ScaleStructural)})
	}

	return nil
}

func (o *Orchestrator) applyOverrides(overrides map[string]float64, iter int) {
	rec := &o.history.Iterations[len(o.history.Iterations)-1]
	for name, val := range overrides {
		from := o.overrides[name]
		o.overrides[name] = val
		o.history.RecordExplored(name, val)
		rec.Change = &ChangeRecord{Param: name, From: from, To: val, Scale: ScaleParametric}
	}
}

func countOptimizable(params map[string]strategy.Parameter) int {
	n := 0
	for _, p := range params {
		if p.Optimizable {
			n++
		}
	}
	return n
}

func safeFinite(v float64) float64 {
	if v != v { // NaN
		return 0
	}
	return v
}

func toOracleNeverWorked(in []NeverWorkedEntry) []oracle.NeverWorked {
	out := make([]oracle.NeverWorked, len(in))
	for i, e := range in {
		out[i] = oracle.NeverWorked{Param: e.Param, Value: e.Value, Iter: e.Iter, Reason: e.Reason}
	}
	return out
}

func toOracleHypotheses(in []Hypothesis) []string {
	out := make([]string, len(in))
	for i, h := range in {
		out[i] = h.Text
	}
	return out
}
