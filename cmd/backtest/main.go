// Command backtest is the CLI entrypoint wiring the candle cache (C4),
// candle clients (C5), execution engine (C1) and optimization loop (C7)
// into one asset's refine/research/restructure run. Flag-based CLI and
// signal-driven shutdown modeled on
// benedict-anokye-davies-atlas-ai/trading-backend/cmd/server/main.go's
// flag.String/flag.Parse + os/signal.Notify shape; CLI parsing and the
// live-trading surfaces it wires stay out of scope per spec.md §1, so this
// command only ever drives one asset's backtest-and-optimize run; the only
// server it can start is the optional read-only event tail behind --serve.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/axton-labs/backtrader/cache"
	"github.com/axton-labs/backtrader/candle"
	"github.com/axton-labs/backtrader/client"
	"github.com/axton-labs/backtrader/config"
	"github.com/axton-labs/backtrader/events"
	"github.com/axton-labs/backtrader/logging"
	"github.com/axton-labs/backtrader/optimize"
	"github.com/axton-labs/backtrader/oracle"
	"github.com/axton-labs/backtrader/strategy"
	"github.com/axton-labs/backtrader/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "backtrader.json", "path to the configuration document (§6)")
	envPath := flag.String("env", ".env", "path to a dotenv file of upstream API credentials")
	asset := flag.String("asset", "", "asset key to optimize (assets.<ASSET> in the config document)")
	strategyName := flag.String("strategy", "", "strategy key under assets.<ASSET>.strategies (defaults to the first one found)")
	cacheDir := flag.String("cache-dir", "./data", "directory holding the candle cache sqlite file")
	checkpointRoot := flag.String("checkpoint-dir", "./checkpoints", "root directory for per-strategy checkpoints")
	lockDir := flag.String("lock-dir", "./locks", "directory for per-asset filesystem mutex lockfiles")
	eventsPath := flag.String("events", "", "path to append the NDJSON event stream to (stdout if unset)")
	serve := flag.Bool("serve", false, "start the read-only event-tail HTTP server")
	serveAddr := flag.String("serve-addr", ":8090", "address for --serve's HTTP server")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	jsonLogs := flag.Bool("json-logs", false, "emit structured JSON logs instead of a console writer")
	flag.Parse()

	if *asset == "" {
		fmt.Fprintln(os.Stderr, "backtest: -asset is required")
		os.Exit(1)
	}

	var zl = logging.NewConsoleZerolog(os.Stderr, *logLevel)
	if *jsonLogs {
		zl = logging.NewZerolog(os.Stderr, *logLevel)
	}
	lr := logrus.New()
	lr.SetFormatter(&logrus.JSONFormatter{})

	telemetry.Init()

	if err := config.LoadEnv(*envPath); err != nil {
		zl.Warn().Err(err).Msg("failed to load env file")
	}
	doc, err := config.Load(*configPath)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to load config")
	}

	assetCfg, ok := doc.Assets[*asset]
	if !ok {
		zl.Fatal().Str("asset", *asset).Msg("unknown asset in config document")
	}
	if *strategyName == "" {
		for name := range assetCfg.Strategies {
			*strategyName = name
			break
		}
	}
	wiring, ok := assetCfg.Strategies[*strategyName]
	if !ok {
		zl.Fatal().Str("asset", *asset).Str("strategy", *strategyName).Msg("unknown strategy for asset")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		zl.Info().Msg("received shutdown signal, stopping after current iteration")
		cancel()
	}()

	store, err := cache.Open(fmt.Sprintf("%s/candles.db", *cacheDir))
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to open candle cache")
	}
	defer store.Close()

	interval := candle.Interval(wiring.Interval)
	if _, err := interval.Milliseconds(); err != nil {
		zl.Fatal().Err(err).Msg("invalid interval in config")
	}
	source := client.Source(wiring.DataSource)
	fetcher, err := buildFetcher(source, lr)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to build candle client")
	}

	startMs, endMs, err := doc.ResolveDateRange(wiring).Resolve(time.Now())
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to resolve date range")
	}

	syncStart := time.Now()
	syncResult, err := store.Sync(ctx, string(source), wiring.Coin, interval, startMs, endMs, fetcher)
	if err != nil {
		zl.Fatal().Err(err).Msg("candle sync failed")
	}
	telemetry.RecordCacheSync(string(source), wiring.Coin, string(interval), time.Since(syncStart).Seconds(), syncResult.Fetched)
	zl.Info().Int("fetched", syncResult.Fetched).Int("cached", syncResult.Cached).Msg("candle sync complete")

	candles, err := store.GetCandles(ctx, wiring.Coin, interval, startMs, endMs, string(source))
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to load candles from cache")
	}
	if len(candles) == 0 {
		zl.Fatal().Msg("no candles available for the requested window")
	}

	factory, err := strategy.Lookup(wiring.StrategyFactory)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to resolve strategy factory")
	}
	probe, err := factory(nil)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to instantiate strategy for parameter bounds")
	}
	bounds := map[string]optimize.ParamBounds{}
	for name, p := range probe.Params() {
		bounds[name] = optimize.ParamBounds{Min: p.Min, Max: p.Max}
	}

	var writer *events.Writer
	out := os.Stdout
	if *eventsPath != "" {
		f, err := os.OpenFile(*eventsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			zl.Fatal().Err(err).Msg("failed to open events file")
		}
		defer f.Close()
		writer = events.NewWriter(f, 256)
	} else {
		writer = events.NewWriter(out, 256)
	}

	if *serve {
		srv := events.NewServer(writer)
		go func() {
			zl.Info().Str("addr", *serveAddr).Msg("serving event tail")
			if err := http.ListenAndServe(*serveAddr, srv.Handler()); err != nil && err != http.ErrServerClosed {
				zl.Error().Err(err).Msg("event server stopped")
			}
		}()
	}

	engineCfg, err := doc.Engine.ToEngineConfig()
	if err != nil {
		zl.Fatal().Err(err).Msg("invalid engine config")
	}

	criteria := doc.ResolveCriteria(assetCfg.Class, wiring.Profile)
	guardrails := doc.Guardrails.ToGuardrails(atrMultiplierFieldNames(bounds))
	weights := doc.Scoring.Weights.ToWeights()
	maxIterPerPhase := doc.Phases.ToMaxIterPerPhase(10)
	maxCycles := doc.Phases.MaxCycles
	if maxCycles <= 0 {
		maxCycles = 3
	}

	researchOracle := oracle.Oracle(oracle.NoopOracle{})
	oracleTimeout := time.Duration(doc.Research.TimeoutMs) * time.Millisecond
	if oracleTimeout <= 0 {
		oracleTimeout = 30 * time.Second
	}

	os.MkdirAll(*checkpointRoot, 0o755)
	os.MkdirAll(*lockDir, 0o755)
	checkpointDir := fmt.Sprintf("%s/%s-%s", *checkpointRoot, *asset, *strategyName)
	os.MkdirAll(checkpointDir, 0o755)
	historyPath := fmt.Sprintf("%s/history.json", checkpointDir)

	orch, err := optimize.New(optimize.Config{
		Asset:                *asset,
		LockDir:              *lockDir,
		CheckpointDir:        checkpointDir,
		HistoryPath:          historyPath,
		Candles:              candles,
		EngineConfig:         engineCfg,
		Factory:              optimize.StrategyFactory(factory),
		ParamBounds:          bounds,
		Criteria:             criteria,
		Guardrails:           guardrails,
		Weights:              weights,
		Oracle:               researchOracle,
		OracleTimeout:        oracleTimeout,
		MaxIterPerPhase:      maxIterPerPhase,
		MaxCycles:            maxCycles,
		MaxTransientFailures: 5,
		MaxFixAttempts:       3,
		Logger:               zl,
		Events:               writer,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to construct orchestrator")
	}

	runStart := time.Now()
	summary, err := orch.Run(ctx)
	if err != nil {
		zl.Error().Err(err).Msg("optimization run ended with a fatal error")
	}
	zl.Info().
		Int("exit", int(summary.Exit)).
		Int("bestIter", summary.BestIter).
		Float64("bestScore", summary.BestScore).
		Int("iterations", summary.Iterations).
		Str("summary", fmt.Sprintf(
			"%s iterations over %s candles, best score %.2f at iter %d, run started %s",
			humanize.Comma(int64(summary.Iterations)),
			humanize.Comma(int64(len(candles))),
			summary.BestScore,
			summary.BestIter,
			humanize.Time(runStart),
		)).
		Msg("run complete")

	os.Exit(int(summary.Exit))
}

// buildFetcher dispatches a client.Source to its concrete adapter, the
// single-dispatch tagged variant described in §9. Binance is wired via the
// go-binance SDK client (no credentials required for public kline data);
// every other source hits its public REST endpoint directly.
func buildFetcher(source client.Source, log *logrus.Logger) (cache.Fetcher, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	switch source {
	case client.Bybit:
		return client.NewBybitClient(httpClient, log), nil
	case client.Hyperliquid:
		return client.NewHyperliquidClient(httpClient, log), nil
	case client.Coinbase:
		return client.NewCoinbaseClient(httpClient, log), nil
	case client.CoinbasePerp:
		return client.NewCoinbasePerpClient(httpClient, log), nil
	case client.Binance:
		return client.NewBinanceClient(binance.NewClient("", ""), log), nil
	default:
		return nil, fmt.Errorf("backtest: unrecognized dataSource %q", source)
	}
}

// atrMultiplierFieldNames derives the guardrail's ATR-multiplier field list
// from any declared parameter whose name ends in "AtrMult", matching
// config.GuardrailsConfig.ToGuardrails's documented convention.
func atrMultiplierFieldNames(bounds map[string]optimize.ParamBounds) []string {
	var out []string
	for name := range bounds {
		if len(name) > 7 && name[len(name)-7:] == "AtrMult" {
			out = append(out, name)
		}
	}
	return out
}
