package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supertrend-core/internal/api"
	"supertrend-core/internal/engine"
	"supertrend-core/internal/events"
	"supertrend-core/internal/market"
	"supertrend-core/internal/metrics"
	"supertrend-core/internal/notify"
	"supertrend-core/internal/order"
	"supertrend-core/internal/risk"
	"supertrend-core/internal/strategy"
	"supertrend-core/pkg/broker"
	"supertrend-core/pkg/config"
	"supertrend-core/pkg/db"
	"supertrend-core/pkg/logger"
)

// summaryAdapter bridges the ledger's aggregate row to the orchestrator.
type summaryAdapter struct {
	ledger *db.Ledger
}

func (a summaryAdapter) DailySummary(ctx context.Context, day time.Time) (engine.DaySummary, error) {
	r, err := a.ledger.DailySummary(ctx, day)
	if err != nil {
		return engine.DaySummary{}, err
	}
	return engine.DaySummary{
		Date:          r.Date,
		TotalPnL:      r.TotalPnL,
		TotalTrades:   r.TotalTrades,
		WinningTrades: r.WinningTrades,
		LosingTrades:  r.LosingTrades,
	}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogConsole)

	strat, err := config.LoadStrategyFile(cfg.StrategyFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.StrategyFile).Msg("strategy config invalid")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("tz", cfg.Timezone).Msg("invalid timezone")
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	ledger := db.NewLedger(database)

	bus := events.NewBus()

	riskMgr := risk.NewManager(risk.Config{
		MaxDailyLoss: strat.Risk.MaxDailyLoss,
		MaxTrades:    strat.Risk.MaxTrades,
	}, log)
	riskMgr.SetOnHalt(func(m risk.Metrics) {
		metrics.SessionHalted.Set(1)
		bus.Publish(events.EventRiskHalt, events.RiskHalt{
			Reason:   "daily loss limit breached",
			DailyPnL: m.DailyPnL,
			At:       time.Now(),
		})
	})

	hours, err := sessionHours(strat, loc)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid session hours")
	}

	stratEngine := strategy.New(strategy.Params{
		Period:         strat.Indicator.Period,
		Multiplier:     strat.Indicator.Multiplier,
		BarWidth:       time.Duration(strat.Indicator.BarMinutes) * time.Minute,
		ScalingEnabled: strat.Risk.ScalingEnabled,
		Hours:          hours,
	}, riskMgr, log)

	// Gateway and feed: live broker or the paper/mock pair.
	var gateway broker.Gateway
	var feed engine.TickStream
	var sink engine.PriceSink
	if cfg.Paper() {
		paper := broker.NewPaperGateway(1_000_000)
		gateway = paper
		sink = paper
		if cfg.UseMockFeed {
			feed = &market.MockFeed{StartPrice: 100, Step: 0.8, Interval: 500 * time.Millisecond}
		} else {
			feed = broker.NewWSFeed(cfg.BrokerWSURL, cfg.BrokerClientID, cfg.BrokerAccessToken, log)
		}
	} else {
		gateway = broker.NewRESTGateway(cfg.BrokerBaseURL, cfg.BrokerDataURL,
			cfg.BrokerClientID, cfg.BrokerAccessToken, log)
		feed = broker.NewWSFeed(cfg.BrokerWSURL, cfg.BrokerClientID, cfg.BrokerAccessToken, log)
	}

	executor := order.NewExecutor(gateway, ledger, bus, cfg.Paper(), log)

	var instruments []market.Instrument
	lots := make(map[market.Instrument]int)
	if cfg.NiftyEnabled {
		instruments = append(instruments, market.Nifty)
		lots[market.Nifty] = strat.Risk.LotSize
	}
	if cfg.SensexEnabled {
		instruments = append(instruments, market.Sensex)
		lots[market.Sensex] = strat.Risk.SensexLotSize
	}
	if len(instruments) == 0 {
		log.Fatal().Msg("no instruments enabled")
	}

	orch := engine.New(engine.Config{
		Instruments:       instruments,
		LotSizes:          lots,
		Hours:             hours,
		SchedulerInterval: time.Duration(strat.SchedulerSeconds) * time.Second,
		Paper:             cfg.Paper(),
	}, stratEngine, riskMgr, executor, gateway, feed, sink, summaryAdapter{ledger}, bus, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Alerts.
	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		notifier = notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, log)
	}
	dispatcher := &notify.Dispatcher{Bus: bus, Notifier: notifier, Log: log}
	dispatcher.Start(ctx)

	if cfg.AutoStart {
		if err := orch.StartSession(ctx); err != nil {
			log.Fatal().Err(err).Msg("session start failed")
		}
	}

	server := api.NewServer(orch, ledger, log)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: server.Router,
	}
	go func() {
		log.Info().Str("addr", httpServer.Addr).Str("mode", cfg.TradeMode).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	orch.StopSession()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	os.Exit(0)
}

func sessionHours(strat config.StrategyConfig, loc *time.Location) (strategy.Hours, error) {
	open, err := strategy.ParseTimeOfDay(strat.Hours.MarketOpen)
	if err != nil {
		return strategy.Hours{}, err
	}
	lastEntry, err := strategy.ParseTimeOfDay(strat.Hours.LastEntry)
	if err != nil {
		return strategy.Hours{}, err
	}
	forceExit, err := strategy.ParseTimeOfDay(strat.Hours.ForceExit)
	if err != nil {
		return strategy.Hours{}, err
	}
	return strategy.Hours{
		MarketOpen: open,
		LastEntry:  lastEntry,
		ForceExit:  forceExit,
		Loc:        loc,
	}, nil
}
