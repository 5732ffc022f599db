package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"kfilter/internal/api"
	"kfilter/internal/calendar"
	"kfilter/internal/config"
	"kfilter/internal/domain"
	"kfilter/internal/provider"
	"kfilter/internal/refresh"
	"kfilter/internal/store"
	"kfilter/internal/util"
)

func main() {
	cfgPath := os.Getenv("KFILTER_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	hs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer hs.Close()

	clientOpts := []provider.Option{provider.WithLogger(logger)}
	if cfg.Provider.BaseURL != "" {
		clientOpts = append(clientOpts, provider.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.TimeoutSec > 0 {
		clientOpts = append(clientOpts, provider.WithTimeout(time.Duration(cfg.Provider.TimeoutSec)*time.Second))
	}
	if cfg.Provider.RateLimitPerSec > 0 {
		clientOpts = append(clientOpts, provider.WithRateLimit(cfg.Provider.RateLimitPerSec))
	}
	client := provider.NewClient(clientOpts...)

	adjust := domain.Adjust(cfg.Provider.Adjust)
	archive := store.NewArchiveStore(cfg.Storage.DataDir)

	orchestrator := refresh.NewOrchestrator(hs, client, logger,
		refresh.WithWorkers(cfg.Refresh.MaxWorkers),
		refresh.WithPace(time.Duration(cfg.Refresh.PaceMs)*time.Millisecond),
		refresh.WithStartDate(cfg.Refresh.StartDate),
		refresh.WithAdjust(adjust),
		refresh.WithArchive(archive),
	)
	service := refresh.NewService(hs, client, logger, cfg.Refresh.StartDate, adjust)

	srv := api.NewServer(hs, service, orchestrator, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Optional scheduled refresh, e.g. "0 30 15 * * 1-5" for 15:30 on
	// weekdays (seconds field enabled).
	var scheduler *cron.Cron
	if cfg.Refresh.Schedule != "" {
		scheduler = cron.New(cron.WithSeconds())
		_, err := scheduler.AddFunc(cfg.Refresh.Schedule, func() {
			target := time.Now()
			if calendar.IsNonTradingDay(target) {
				target = calendar.PreviousTradingDay(target)
			}
			if _, _, err := orchestrator.Trigger(ctx, target); err != nil {
				logger.Error("scheduled refresh trigger", "error", err)
			}
		})
		if err != nil {
			log.Fatalf("invalid refresh schedule %q: %v", cfg.Refresh.Schedule, err)
		}
		scheduler.Start()
		logger.Info("scheduled refresh enabled", "schedule", cfg.Refresh.Schedule)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("kfilter server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down kfilter server")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
