// Command server runs the market-data gateway: a resilient HTTP front end
// over cached, breaker-guarded upstream providers.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockgate/internal/cache"
	"stockgate/internal/clients/alphavantage"
	"stockgate/internal/clients/exchangerate"
	"stockgate/internal/clients/stooq"
	"stockgate/internal/clients/yahoo"
	"stockgate/internal/config"
	currencyhandlers "stockgate/internal/modules/currency/handlers"
	"stockgate/internal/modules/dividends"
	stockhandlers "stockgate/internal/modules/stocks/handlers"
	"stockgate/internal/reliability"
	"stockgate/internal/scheduler"
	"stockgate/internal/server"
	"stockgate/internal/services"
	"stockgate/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	log.Info().Int("port", cfg.Port).Str("data_dir", cfg.DataDir).Msg("Starting stockgate")

	store := cache.NewStore(cfg.SnapshotPath(), log)
	breaker := reliability.NewBreaker(reliability.DefaultCooldown, log)

	// Fallback order: Yahoo first, Alpha Vantage second, Stooq last.
	// The first two speak JSON and can emit the throttle signature; Stooq
	// is CSV and stays outside the breaker.
	providers := []services.ChainProvider{
		{Provider: yahoo.NewClient(log), BreakerGuarded: true},
		{Provider: alphavantage.NewClient(cfg.AlphaVantageKey, log), BreakerGuarded: true},
		{Provider: stooq.NewClient(log), BreakerGuarded: false},
	}

	market := services.NewMarketDataService(providers, store, breaker, log)
	fx := services.NewFxService(market, exchangerate.NewClient(log), store, log)
	pipeline := dividends.NewPipeline(fx, log)

	jobs := scheduler.New(log)
	if err := jobs.AddJob("@hourly", services.NewFxWarmJob(fx, [][2]string{{"USD", "THB"}}, log)); err != nil {
		log.Error().Err(err).Msg("Could not register FX warm-up job")
	}
	if err := jobs.AddJob("30 2 * * *", cache.NewCleanupJob(store, log)); err != nil {
		log.Error().Err(err).Msg("Could not register cache cleanup job")
	}
	jobs.Start()

	srv := server.New(server.Config{
		Log:     log,
		Config:  cfg,
		Cache:   store,
		Breaker: breaker,
		StockHandlers: stockhandlers.NewHandler(
			market, fx, pipeline, cfg.DefaultHistoryDays, log,
		),
		CurrencyHandler: currencyhandlers.NewHandler(fx, log),
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
	jobs.Stop()
	log.Info().Msg("Stopped")
}
