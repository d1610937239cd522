package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/suwandre/depthwatch/api"
	"github.com/suwandre/depthwatch/api/handlers"
	"github.com/suwandre/depthwatch/config"
	"github.com/suwandre/depthwatch/internal/exchange"
	"github.com/suwandre/depthwatch/internal/metrics"
	"github.com/suwandre/depthwatch/internal/scheduler"
	"github.com/suwandre/depthwatch/internal/scorer"
)

func main() {
	// ── 1. Logger setup
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// ── 2. Root context setup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 3. Config
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	log.Info().Msg("config loaded")

	metrics.InitMetrics()

	// ── 4. Exchange clients
	var (
		clients   []sessionCloser
		exchanges []exchange.Exchange
		names     []string
		targets   []scheduler.Target
	)
	for _, ec := range cfg.Exchanges {
		opts := []exchange.Option{exchange.WithTimeout(cfg.HTTPTimeout)}
		if cfg.ProxyAddr != "" {
			opts = append(opts, exchange.WithProxy(cfg.ProxyAddr))
		}

		client, err := exchange.New(ec.Name, ec.Credentials, opts...)
		if err != nil {
			closeClients(clients)
			log.Fatal().Err(err).Str("exchange", ec.Name).Msg("failed to create exchange client")
		}
		client.Open()

		clients = append(clients, client)
		exchanges = append(exchanges, client)
		names = append(names, client.Name())
		targets = append(targets, scheduler.Target{
			Exchange: client,
			Pairs:    ec.Pairs,
			Depth:    ec.Depth,
		})
	}
	log.Info().Int("count", len(exchanges)).Msg("exchange clients initialized")

	// ── 5. Scheduler
	sched := scheduler.NewScheduler(targets, cfg.RefreshInterval)

	sched.Start(ctx)

	// ── 6. Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Depthwatch",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// ── 7. Routes
	api.SetupRoutes(app,
		handlers.NewOrderBookHandler(exchanges, sched),
		handlers.NewScoreHandler(scorer.NewScorer(sched, names)),
	)

	// ── 8. Graceful shutdown listener
	go func() {
		<-ctx.Done()
		log.Info().Msg("shutdown signal received")
		if err := app.Shutdown(); err != nil {
			log.Error().Err(err).Msg("error during shutdown")
		}
	}()

	// ── 9. Start server (blocking)
	log.Info().Str("port", cfg.AppPort).Msg("starting server")
	err = app.Listen(":" + cfg.AppPort)

	// ── 10. Release scheduler and transport sessions
	sched.Stop()
	closeClients(clients)

	if err != nil {
		log.Fatal().Err(err).Msg("server failed to start")
	}
	log.Info().Msg("server stopped")
}

type sessionCloser interface {
	Name() string
	Close() error
}

// closeClients closes every client, logging failures instead of stopping at
// the first one.
func closeClients(clients []sessionCloser) {
	for _, client := range clients {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Str("exchange", client.Name()).Msg("failed to close exchange client")
		}
	}
}
