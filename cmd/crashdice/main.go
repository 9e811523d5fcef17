// Package main runs a headless Crash Dice session: one manual bet or an
// automatic run, settled in demo mode or against a remote game server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/config"
	"github.com/cory-johannsen/crashdice/internal/game/autobet"
	"github.com/cory-johannsen/crashdice/internal/game/tween"
	"github.com/cory-johannsen/crashdice/internal/observability"
	"github.com/cory-johannsen/crashdice/internal/server"
)

// stopGrace bounds how long shutdown waits for an in-flight bet to settle.
const stopGrace = 5 * time.Second

func main() {
	start := time.Now()

	var opts options
	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and environment")
	metricsAddr := flag.String("metrics-addr", "", "serve Prometheus metrics on this address; empty disables")
	flag.IntVar(&opts.Bets, "bets", 0, "number of automatic bets; 0 keeps the configured plan")
	flag.BoolVar(&opts.Manual, "manual", false, "place a single manual bet instead of an automatic run")
	flag.BoolVar(&opts.Demo, "demo", false, "settle bets locally regardless of relay mode")
	flag.StringVar(&opts.Preset, "preset", "", "YAML strategy preset")
	flag.StringVar(&opts.Script, "script", "", "Lua strategy script defining dobet()")
	flag.StringVar(&opts.RollMode, "mode", "", "roll mode: inside, outside or between")
	flag.Float64Var(&opts.WinChance, "chance", 0, "initial win chance in percent")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using configuration and environment")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	metrics := observability.NewMetrics()

	sched := tween.NewScheduler()
	tbl, err := newTable(cfg.Table, sched, logger)
	if err != nil {
		logger.Fatal("building table", zap.Error(err))
	}

	r, err := newRelay(ctx, cfg.Relay, opts.Demo, metrics, logger)
	if err != nil {
		logger.Fatal("connecting relay", zap.Error(err))
	}

	plan, closePlan, err := buildPlan(cfg.AutoBet, opts, tbl, logger)
	if err != nil {
		logger.Fatal("building auto bet plan", zap.Error(err))
	}
	defer closePlan()

	session := autobet.NewSession(tbl, sched, r, plan.BaseBet, logger)
	rep := newReport(os.Stdout)
	session.AddObserver(rep)

	frameCtx, stopFrames := context.WithCancel(ctx)
	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("frames", &server.FuncService{
		StartFn: func() error {
			sched.Start(frameCtx, cfg.Table.FrameInterval)
			<-frameCtx.Done()
			return nil
		},
		StopFn: stopFrames,
	})
	if *metricsAddr != "" {
		lifecycle.Add("metrics", server.NewHTTPService(*metricsAddr, metrics.Handler(), server.HTTPOptions{}, logger))
	}
	lifecycle.Add("session", &server.FuncService{
		StartFn: func() error {
			sched.Post(func() {
				var err error
				if opts.Manual {
					err = session.PlaceBet(ctx)
				} else {
					err = session.StartAuto(ctx, plan)
				}
				if err != nil {
					rep.finish(autobet.StopError, err)
				}
			})
			<-rep.Done()
			return nil
		},
		StopFn: func() {
			sched.Post(session.RequestStop)
			select {
			case <-rep.Done():
			case <-time.After(stopGrace):
				sched.Post(session.Stop)
				rep.finish(autobet.StopRequested, nil)
			}
		},
	})

	logger.Info("crash dice client initialized",
		zap.Bool("demo", r.DemoMode()),
		zap.Bool("manual", opts.Manual),
		zap.Int("bets", plan.Bets),
		zap.String("roll_mode", tbl.RollMode().String()),
		zap.Float64("win_chance", tbl.WinChance()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(ctx); err != nil {
		logger.Error("client error", zap.Error(err))
	}
	if err := rep.Summary(); err != nil {
		logger.Fatal("session ended with error", zap.Error(err))
	}
}
