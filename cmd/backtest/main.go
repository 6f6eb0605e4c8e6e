package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backsim/internal/backtest"
	"backsim/internal/broker"
	"backsim/internal/config"
	"backsim/internal/domain"
	"backsim/internal/feed"
	"backsim/internal/idhash"
	"backsim/internal/metrics"
	"backsim/internal/policy"
	"backsim/internal/storage"
	chstore "backsim/internal/storage/clickhouse"
	"backsim/internal/storage/memory"
	"backsim/internal/storage/migrations"
	pgstore "backsim/internal/storage/postgres"
	"backsim/internal/strategy"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config (defaults apply when empty)")
	runs := flag.Int("runs", 0, "Override run.runs")
	parallelism := flag.Int("parallelism", 0, "Override run.parallelism")
	persist := flag.Bool("persist", false, "Persist trades and metrics to the configured stores")
	verbose := flag.Bool("verbose", false, "Log per-run progress")
	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if *runs > 0 {
		cfg.Run.Runs = *runs
	}
	if *parallelism > 0 {
		cfg.Run.Parallelism = *parallelism
	}
	if *verbose {
		cfg.Run.Verbose = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	// Stores
	var tradeStore storage.TradeStore = memory.NewTradeStore()
	var metricStore storage.MetricStore = memory.NewMetricStore()

	if cfg.Storage.Backend == config.StorageDB {
		pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			logger.Fatalf("connect to postgres: %v", err)
		}
		defer pool.Close()
		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			logger.Fatalf("postgres migrations: %v", err)
		}
		tradeStore = pgstore.NewTradeStore(pool)

		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("clickhouse migrations: %v", err)
		}
		defer conn.Close()
		metricStore = chstore.NewMetricStore(conn)
	}

	sharedFeed, err := buildFeed(cfg)
	if err != nil {
		logger.Fatalf("build feed: %v", err)
	}

	var runLogger *log.Logger
	if cfg.Run.Verbose {
		runLogger = logger
	}

	// One store logger per run keeps each run's buffer private.
	jobs := backtest.NewParallelJobs(cfg.Run.Parallelism)
	type runSet struct {
		run  *backtest.Run
		mlog *metrics.StoreLogger
	}
	sets := make([]runSet, 0, cfg.Run.Runs)

	for i := 0; i < cfg.Run.Runs; i++ {
		runID := idhash.ComputeRunID(cfg.Run.Name, i)

		strat, err := strategy.FromConfig(strategy.Config{
			Type:       cfg.Strategy.Type,
			FastPeriod: cfg.Strategy.FastPeriod,
			SlowPeriod: cfg.Strategy.SlowPeriod,
		})
		if err != nil {
			logger.Fatalf("build strategy: %v", err)
		}

		mlog := metrics.NewStoreLogger(metricStore)
		var mlogger metrics.Logger = metrics.NopLogger{}
		if *persist {
			mlogger = mlog
		}

		run, err := backtest.NewRun(backtest.Options{
			RunID:    runID,
			Feed:     sharedFeed,
			Strategy: strat,
			Policy:   buildPolicy(cfg),
			Broker: broker.Options{
				BaseCurrency:   cfg.Account.BaseCurrency,
				InitialDeposit: cfg.Account.Deposit,
				AccountModel:   buildAccountModel(cfg),
				FeeModel:       broker.NewPercentageFee(cfg.Account.Fee),
				OrderTTL:       cfg.Account.OrderTTL,
				Logger:         runLogger,
			},
			ChannelCapacity: cfg.Run.ChannelCapacity,
			MetricsLogger:   mlogger,
			Logger:          runLogger,
		})
		if err != nil {
			logger.Fatalf("build run %s: %v", runID, err)
		}

		sets = append(sets, runSet{run: run, mlog: mlog})
		jobs.AddRun(run)
	}

	logger.Printf("Running %d run(s) of %q, parallelism %d", cfg.Run.Runs, cfg.Run.Name, cfg.Run.Parallelism)
	started := time.Now()
	results := jobs.JoinAll(ctx)
	logger.Printf("All runs finished in %s", time.Since(started).Round(time.Millisecond))

	failed := 0
	for i, res := range results {
		run := sets[i].run
		if res.Failed() {
			failed++
			logger.Printf("run %s: FAILED: %v", res.Name, res.Err)
			continue
		}

		trades := run.Trades()
		equity := run.Broker().Account().Equity()
		fmt.Printf("run %s: state=%s steps=%d trades=%d rejections=%d equity=%s\n",
			res.Name, run.State(), run.Steps(), len(trades), len(run.Rejections()), equity)

		if *persist {
			if err := persistRun(ctx, tradeStore, sets[i].mlog, trades); err != nil {
				logger.Printf("run %s: persist: %v", res.Name, err)
			}
		}
	}

	if failed > 0 {
		logger.Fatalf("%d of %d runs failed", failed, len(results))
	}
}

func buildFeed(cfg *config.Config) (feed.Feed, error) {
	switch cfg.Feed.Type {
	case config.FeedRandomWalk:
		assets := make([]domain.Asset, len(cfg.Feed.Symbols))
		for i, sym := range cfg.Feed.Symbols {
			assets[i] = domain.NewAsset(sym, cfg.Account.BaseCurrency)
		}
		start := time.Now().UTC().Truncate(cfg.Feed.Interval)
		return feed.NewRandomWalkFeed(assets, start, cfg.Feed.Interval, cfg.Feed.Steps, cfg.Feed.Seed), nil
	case config.FeedWebsocket:
		return feed.NewWSFeed(cfg.Feed.URL, nil), nil
	default:
		return nil, fmt.Errorf("unsupported feed type %q", cfg.Feed.Type)
	}
}

func buildPolicy(cfg *config.Config) policy.Policy {
	p := policy.NewFlexPolicy()
	p.OrderPct = cfg.Policy.OrderPctDec
	p.Shorting = cfg.Policy.Shorting
	p.OneOrderOnly = cfg.Policy.OneOrderOnly
	p.FractionalScale = cfg.Policy.FractionalScale
	return p
}

func buildAccountModel(cfg *config.Config) broker.AccountModel {
	if cfg.Account.Model == config.AccountMargin {
		model := broker.NewMarginAccount()
		model.Leverage = cfg.Account.LeverageDec
		return model
	}
	return broker.CashAccount{}
}

func persistRun(ctx context.Context, trades storage.TradeStore, mlog *metrics.StoreLogger, ledger []domain.Trade) error {
	batch := make([]*domain.Trade, len(ledger))
	for i := range ledger {
		batch[i] = &ledger[i]
	}
	if err := trades.InsertBulk(ctx, batch); err != nil {
		return fmt.Errorf("insert trades: %w", err)
	}
	if err := mlog.Flush(ctx); err != nil {
		return fmt.Errorf("flush metrics: %w", err)
	}
	return nil
}
