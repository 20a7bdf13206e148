package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/event"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/metrics"
)

var (
	ErrInvalidRequest            = errors.New("invalid ledger request")
	ErrInvalidAmount             = entity.ErrNegativeAmount
	ErrGatewayRejected           = gateway.ErrRejected
	ErrConcurrentUpdateExhausted = errors.New("concurrent update retries exhausted")
	ErrCompensationFailed        = errors.New("compensating credit failed")
	ErrEntryFailed               = errors.New("ledger entry failed")
)

const (
	defaultCurrency       = "usd"
	defaultMaxCASRetries  = 5
	defaultGatewayTimeout = 30 * time.Second
	maxFeeBasisPoints     = 9_999
)

type Options struct {
	Currency       string
	FeeBasisPoints int64
	MaxCASRetries  int
	GatewayTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Currency == "" {
		o.Currency = defaultCurrency
	}
	if o.MaxCASRetries < 1 {
		o.MaxCASRetries = defaultMaxCASRetries
	}
	if o.GatewayTimeout <= 0 {
		o.GatewayTimeout = defaultGatewayTimeout
	}
	o.FeeBasisPoints = max(0, min(o.FeeBasisPoints, maxFeeBasisPoints))
	return o
}

// Engine owns every write to account balances and access grants. Purchases
// and payouts are driven as a pending entry followed by idempotent steps, so
// any of them can be re-driven by Resume after a crash.
type Engine struct {
	accounts repository.AccountRepository
	contents repository.ContentRepository
	entries  repository.LedgerRepository
	gateway  gateway.Gateway
	events   event.Publisher
	logger   *slog.Logger
	opts     Options
	now      func() time.Time

	sf singleflight.Group
}

func NewEngine(
	store repository.Store,
	gw gateway.Gateway,
	events event.Publisher,
	logger *slog.Logger,
	opts Options,
) *Engine {
	return &Engine{
		accounts: store.Accounts(),
		contents: store.Contents(),
		entries:  store.Entries(),
		gateway:  gw,
		events:   events,
		logger:   logger,
		opts:     opts.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Resume re-drives a pending entry. Terminal entries are returned as they
// are. Every step reuses the entry's idempotency key, posting ids and the
// payment method or payout account recorded when the entry was opened, so a
// resumed entry never charges, credits or pays out twice.
func (e *Engine) Resume(ctx context.Context, entryID uuid.UUID) (*Result, error) {
	entry, err := e.entries.Get(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entryID, err)
	}
	if entry.Status().Terminal() {
		return settledResult(entry)
	}

	return e.collapse(entry.Key(), func() (*Result, error) {
		switch entry.Kind() {
		case entity.KindPurchase:
			return e.drivePurchase(ctx, entry)
		case entity.KindPayout:
			return e.drivePayout(ctx, entry)
		default:
			return nil, fmt.Errorf("%w: cannot resume %s entry", ErrInvalidRequest, entry.Kind())
		}
	})
}

// collapse runs fn once per key across concurrent callers in this process.
func (e *Engine) collapse(key string, fn func() (*Result, error)) (*Result, error) {
	v, err, _ := e.sf.Do(key, func() (any, error) {
		return fn()
	})
	res, _ := v.(*Result)
	return res, err
}

// applyDelta moves an account balance by delta using compare-and-set on a
// freshly read balance. maxAttempts <= 0 retries conflicts until the write
// lands.
func (e *Engine) applyDelta(
	ctx context.Context,
	accountID uuid.UUID,
	delta entity.Money,
	posting string,
	leg entity.PostingLeg,
	maxAttempts int,
) error {
	if delta == 0 {
		return nil
	}

	for attempt := 0; maxAttempts <= 0 || attempt < maxAttempts; attempt++ {
		acct, err := e.accounts.Get(ctx, accountID)
		if err != nil {
			return fmt.Errorf("account %s: %w", accountID, err)
		}

		var next entity.Money
		if delta > 0 {
			next, err = acct.Credit(delta)
		} else {
			next, err = acct.Debit(-delta)
		}
		if err != nil {
			return err
		}

		err = e.accounts.CompareAndSetBalance(ctx, accountID, acct.Balance(), next, posting)
		switch {
		case err == nil, errors.Is(err, repository.ErrAlreadyApplied):
			return nil
		case errors.Is(err, repository.ErrConflict):
			metrics.RecordConflict(string(leg))
			continue
		default:
			return err
		}
	}
	return fmt.Errorf("%w: %s on account %s", ErrConcurrentUpdateExhausted, leg, accountID)
}

func (e *Engine) complete(ctx context.Context, entry *entity.LedgerEntry) (*Result, error) {
	if err := entry.Complete(e.now()); err != nil {
		return e.settled(ctx, entry.ID())
	}
	if err := e.entries.Finalize(ctx, entry); err != nil {
		if errors.Is(err, entity.ErrEntryFinalized) {
			return e.settled(ctx, entry.ID())
		}
		return e.reconcileLater(ctx, entry, fmt.Errorf("finalize entry: %w", err))
	}

	e.publish(ctx, event.TopicEntries, entry, event.NewEntryFinalized(entry))
	e.logger.Info("ledger entry completed",
		"entry_id", entry.ID(), "kind", entry.Kind(), "amount", entry.Amount().String())
	return e.finish(entry, OutcomeCompleted, nil)
}

// fail closes an entry on which no money moved.
func (e *Engine) fail(ctx context.Context, entry *entity.LedgerEntry, cause error) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	if err := entry.Fail(cause.Error(), e.now()); err != nil {
		return e.settled(ctx, entry.ID())
	}
	if err := e.entries.Finalize(ctx, entry); err != nil {
		if errors.Is(err, entity.ErrEntryFinalized) {
			return e.settled(ctx, entry.ID())
		}
		e.logger.Error("failed to persist failed entry",
			"entry_id", entry.ID(), "cause", cause, "error", err)
		return e.finish(entry, OutcomeRejected, errors.Join(cause, err))
	}

	e.publish(ctx, event.TopicEntries, entry, event.NewEntryFinalized(entry))
	e.logger.Info("ledger entry failed",
		"entry_id", entry.ID(), "kind", entry.Kind(), "reason", cause)
	return e.finish(entry, OutcomeRejected, cause)
}

// reconcileLater leaves the entry pending and raises an alert. Money may
// have moved.
func (e *Engine) reconcileLater(ctx context.Context, entry *entity.LedgerEntry, cause error) (*Result, error) {
	return e.alert(ctx, entry, event.SeverityReconcile, cause)
}

func (e *Engine) alert(ctx context.Context, entry *entity.LedgerEntry, severity event.Severity, cause error) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	level := slog.LevelWarn
	if severity == event.SeverityFatal {
		level = slog.LevelError
	}
	e.logger.Log(ctx, level, "ledger entry needs reconciliation",
		"entry_id", entry.ID(), "kind", entry.Kind(), "severity", severity, "error", cause)
	e.publish(ctx, event.TopicAlerts, entry, event.NewAlert(entry, severity, cause, e.now()))
	return e.finish(entry, OutcomeReconciliationRequired, cause)
}

func (e *Engine) settled(ctx context.Context, id uuid.UUID) (*Result, error) {
	stored, err := e.entries.Get(context.WithoutCancel(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("reload entry %s: %w", id, err)
	}
	return settledResult(stored)
}

func (e *Engine) finish(entry *entity.LedgerEntry, outcome Outcome, err error) (*Result, error) {
	metrics.RecordOperation(string(entry.Kind()), string(outcome))
	return &Result{Entry: entry, Outcome: outcome}, err
}

func (e *Engine) publish(ctx context.Context, topic string, entry *entity.LedgerEntry, payload any) {
	if e.events == nil {
		return
	}
	if err := e.events.Publish(ctx, topic, entry.ID().String(), payload); err != nil {
		e.logger.Error("publish ledger event", "topic", topic, "entry_id", entry.ID(), "error", err)
	}
}
