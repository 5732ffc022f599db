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

	"kfilter/internal/calendar"
	"kfilter/internal/config"
	"kfilter/internal/domain"
	"kfilter/internal/provider"
	"kfilter/internal/refresh"
	"kfilter/internal/store"
	"kfilter/internal/util"
)

func main() {
	dateFlag := flag.String("date", "", "target date YYYY-MM-DD, defaults to the latest trading day")
	flag.Parse()

	cfgPath := os.Getenv("KFILTER_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	target := time.Now()
	if *dateFlag != "" {
		target, err = time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			log.Fatalf("invalid -date %q: %v", *dateFlag, err)
		}
	} else if calendar.IsNonTradingDay(target) {
		target = calendar.PreviousTradingDay(target)
	}

	hs, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("opening store: %v", err)
	}
	defer hs.Close()

	clientOpts := []provider.Option{provider.WithLogger(logger)}
	if cfg.Provider.BaseURL != "" {
		clientOpts = append(clientOpts, provider.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.RateLimitPerSec > 0 {
		clientOpts = append(clientOpts, provider.WithRateLimit(cfg.Provider.RateLimitPerSec))
	}
	client := provider.NewClient(clientOpts...)

	orchestrator := refresh.NewOrchestrator(hs, client, logger,
		refresh.WithWorkers(cfg.Refresh.MaxWorkers),
		refresh.WithPace(time.Duration(cfg.Refresh.PaceMs)*time.Millisecond),
		refresh.WithStartDate(cfg.Refresh.StartDate),
		refresh.WithAdjust(domain.Adjust(cfg.Provider.Adjust)),
		refresh.WithArchive(store.NewArchiveStore(cfg.Storage.DataDir)),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	job, started, err := orchestrator.Trigger(ctx, target)
	if err != nil {
		log.Fatalf("triggering refresh: %v", err)
	}
	if !started {
		fmt.Println("nothing to refresh")
		return
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, exiting")
			return
		case <-ticker.C:
			job = orchestrator.Status()
			fmt.Printf("refresh %d/%d done, %d failed\n", job.Completed+job.Failed, job.Total, job.Failed)
			if !job.Running {
				fmt.Printf("finished: %d completed, %d failed\n", job.Completed, job.Failed)
				return
			}
		}
	}
}
