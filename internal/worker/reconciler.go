package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/metrics"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
)

type Resumer interface {
	Resume(ctx context.Context, entryID uuid.UUID) (*ledger.Result, error)
}

type ReconcilerConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
	Workers   int
}

// Reconciler periodically re-drives entries left pending by a crash, an
// unknown gateway outcome or an exhausted balance write.
type Reconciler struct {
	entries repository.LedgerRepository
	engine  Resumer
	logger  *slog.Logger
	cfg     ReconcilerConfig
	now     func() time.Time
}

func NewReconciler(entries repository.LedgerRepository, engine Resumer, logger *slog.Logger, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	return &Reconciler{
		entries: entries,
		engine:  engine,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Start blocks until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.cfg.Interval, "min_age", r.cfg.MinAge)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconciliation sweep failed", "error", err)
			}
		}
	}
}

// RunOnce resumes one batch of pending entries and reports how many reached a
// terminal state.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	pending, err := r.entries.ListPending(ctx, r.now().Add(-r.cfg.MinAge), r.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending entries: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}
	r.logger.Info("reconciling pending entries", "count", len(pending))

	var settled atomic.Int64
	var g errgroup.Group
	g.SetLimit(r.cfg.Workers)

	for _, entry := range pending {
		g.Go(func() error {
			res, err := r.engine.Resume(ctx, entry.ID())
			if res == nil {
				r.logger.Error("resume failed", "entry_id", entry.ID(), "error", err)
				return nil
			}

			status := res.Entry.Status()
			metrics.RecordReconciled(string(status))
			if status.Terminal() {
				settled.Add(1)
			}
			if err != nil {
				r.logger.Warn("entry resumed with error",
					"entry_id", entry.ID(), "status", status, "error", err)
			}
			return nil
		})
	}
	err = g.Wait()
	return int(settled.Load()), err
}
