package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"kfilter/internal/domain"
	"kfilter/internal/store"
)

// Policy defaults for the batch refresh.
const (
	DefaultWorkers   = 3
	DefaultPace      = 500 * time.Millisecond
	DefaultStartDate = "2020-01-01"
)

// Fetcher is the slice of the provider client the refresh subsystem needs.
type Fetcher interface {
	FetchDaily(ctx context.Context, symbol, start, end string, adjust domain.Adjust) ([]domain.Bar, error)
}

// Archiver mirrors refreshed bars to cold storage. Optional; archive errors
// are logged, never counted as refresh failures.
type Archiver interface {
	WriteDaily(symbol string, bars []domain.Bar) error
}

// Orchestrator runs at most one batch refresh job at a time. Trigger seeds a
// shared queue with the due-set and launches a bounded worker pool that
// drains it asynchronously; Status is safe to call from any goroutine at any
// time.
type Orchestrator struct {
	store   store.HistoryStore
	fetcher Fetcher
	archive Archiver // may be nil
	log     *slog.Logger

	workers   int
	pace      time.Duration
	startDate string
	adjust    domain.Adjust

	mu        sync.Mutex // guards the Idle→Running transition
	running   atomic.Bool
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	startedAt atomic.Int64 // unix nanos
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkers sets the worker pool size.
func WithWorkers(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithPace sets the fixed delay each worker observes after every item.
func WithPace(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d >= 0 {
			o.pace = d
		}
	}
}

// WithStartDate sets the start of the daily range fetched per symbol.
func WithStartDate(date string) OrchestratorOption {
	return func(o *Orchestrator) {
		if date != "" {
			o.startDate = date
		}
	}
}

// WithAdjust sets the price adjustment variant requested from the provider.
func WithAdjust(adjust domain.Adjust) OrchestratorOption {
	return func(o *Orchestrator) { o.adjust = adjust }
}

// WithArchive mirrors successful refreshes to the given archive.
func WithArchive(a Archiver) OrchestratorOption {
	return func(o *Orchestrator) { o.archive = a }
}

// NewOrchestrator creates an orchestrator over the given store and fetcher.
func NewOrchestrator(s store.HistoryStore, f Fetcher, log *slog.Logger, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		store:     s,
		fetcher:   f,
		log:       log.With("component", "refresh"),
		workers:   DefaultWorkers,
		pace:      DefaultPace,
		startDate: DefaultStartDate,
		adjust:    domain.AdjustQfq,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Status returns a point-in-time snapshot of the current (or last finished)
// job. Counters of a finished job stay readable until the next trigger.
func (o *Orchestrator) Status() domain.RefreshJob {
	job := domain.RefreshJob{
		Running:   o.running.Load(),
		Total:     int(o.total.Load()),
		Completed: int(o.completed.Load()),
		Failed:    int(o.failed.Load()),
	}
	if ns := o.startedAt.Load(); ns > 0 {
		job.StartedAt = time.Unix(0, ns)
	}
	return job
}

// Trigger starts a batch refresh against targetDate. When a job is already
// running the call is a no-op: it returns the running job's snapshot and
// started=false. When the due-set is empty the orchestrator stays idle.
// Otherwise the worker pool is launched asynchronously and the new job's
// initial snapshot is returned; once started, the job runs its entire
// due-set to completion.
func (o *Orchestrator) Trigger(ctx context.Context, targetDate time.Time) (job domain.RefreshJob, started bool, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running.Load() {
		o.log.Info("refresh already running, trigger ignored")
		return o.Status(), false, nil
	}

	due, err := ComputeDueSet(ctx, o.store, targetDate)
	if err != nil {
		return o.Status(), false, err
	}
	if len(due) == 0 {
		o.log.Info("no symbols due for refresh", "targetDate", targetDate.Format("2006-01-02"))
		return o.Status(), false, nil
	}

	o.total.Store(int64(len(due)))
	o.completed.Store(0)
	o.failed.Store(0)
	o.startedAt.Store(time.Now().UnixNano())
	o.running.Store(true)

	endDate := targetDate.Format("2006-01-02")

	// The queue: every item is received by exactly one worker.
	queue := make(chan WorkItem, len(due))
	for _, item := range due {
		queue <- item
	}
	close(queue)

	o.log.Info("batch refresh started", "total", len(due), "workers", o.workers, "endDate", endDate)

	// The job deliberately outlives the trigger call and cannot be
	// cancelled once started.
	jobCtx := context.WithoutCancel(ctx)
	go o.run(jobCtx, queue, endDate)

	return o.Status(), true, nil
}

func (o *Orchestrator) run(ctx context.Context, queue <-chan WorkItem, endDate string) {
	started := time.Now()

	g := new(errgroup.Group)
	for w := 0; w < o.workers; w++ {
		g.Go(func() error {
			for item := range queue {
				if err := o.refreshOne(ctx, item, endDate); err != nil {
					o.failed.Add(1)
					o.log.Warn("symbol refresh failed", "symbol", item.Symbol, "err", err)
				} else {
					o.completed.Add(1)
				}
				// Stay under the upstream's implicit rate limit.
				time.Sleep(o.pace)
			}
			return nil
		})
	}
	g.Wait()

	o.running.Store(false)
	o.log.Info("batch refresh finished",
		"completed", o.completed.Load(),
		"failed", o.failed.Load(),
		"elapsed", time.Since(started).Round(time.Second),
	)
}

// refreshOne fetches the full daily range for one symbol and upserts it.
func (o *Orchestrator) refreshOne(ctx context.Context, item WorkItem, endDate string) error {
	bars, err := o.fetcher.FetchDaily(ctx, item.Symbol, o.startDate, endDate, o.adjust)
	if err != nil {
		return err
	}

	h := &domain.SymbolHistory{
		Symbol:          item.Symbol,
		Name:            item.Name,
		Daily:           bars,
		LastRefreshedAt: time.Now(),
	}
	if err := o.store.Upsert(ctx, h); err != nil {
		return err
	}

	if o.archive != nil {
		if err := o.archive.WriteDaily(item.Symbol, bars); err != nil {
			o.log.Warn("archiving bars failed", "symbol", item.Symbol, "err", err)
		}
	}
	return nil
}
