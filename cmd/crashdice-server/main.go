// Package main runs the development game server the remote relay talks to.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cory-johannsen/crashdice/internal/config"
	"github.com/cory-johannsen/crashdice/internal/devserver"
	"github.com/cory-johannsen/crashdice/internal/observability"
	"github.com/cory-johannsen/crashdice/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty uses defaults and environment")
	addr := flag.String("addr", "", "listen address override (host:port)")
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

	balance, err := decimal.NewFromString(cfg.DevServer.StartingBalance)
	if err != nil {
		logger.Fatal("parsing starting balance", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	game := devserver.New(devserver.Config{
		GameIDs:         cfg.DevServer.GameIDs,
		StartingBalance: balance,
		Currency:        cfg.DevServer.Currency,
		MaxSessions:     cfg.DevServer.MaxSessions,
		SessionTTL:      cfg.DevServer.SessionTTL,
		AllowedOrigins:  cfg.DevServer.AllowedOrigins,
	}, metrics, logger)

	listen := cfg.DevServer.Addr()
	if *addr != "" {
		listen = *addr
	}
	httpService := server.NewHTTPService(listen, game.Routes(), server.HTTPOptions{
		ReadTimeout:     cfg.DevServer.ReadTimeout,
		WriteTimeout:    cfg.DevServer.WriteTimeout,
		ShutdownTimeout: cfg.DevServer.ShutdownTimeout,
	}, logger)

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", httpService)

	logger.Info("dev game server initialized",
		zap.String("addr", listen),
		zap.Strings("games", cfg.DevServer.GameIDs),
		zap.String("starting_balance", balance.String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
