package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/metrics"
)

// Purchase charges the buyer the content price, grants access and credits the
// seller the price net of the platform fee. A buyer who already holds access
// gets OutcomeAlreadyPurchased and is not charged. Concurrent calls for the
// same buyer and content share one execution.
func (e *Engine) Purchase(ctx context.Context, buyerID, contentID uuid.UUID) (*Result, error) {
	if buyerID == uuid.Nil || contentID == uuid.Nil {
		return nil, fmt.Errorf("%w: buyer and content ids are required", ErrInvalidRequest)
	}

	return e.collapse(entity.PurchaseKey(buyerID, contentID), func() (*Result, error) {
		return e.purchase(ctx, buyerID, contentID)
	})
}

func (e *Engine) purchase(ctx context.Context, buyerID, contentID uuid.UUID) (*Result, error) {
	buyer, err := e.accounts.Get(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("buyer %s: %w", buyerID, err)
	}
	item, err := e.contents.Get(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", contentID, err)
	}
	if item.OwnerID() == buyerID {
		return nil, entity.ErrSelfPurchase
	}

	key := entity.PurchaseKey(buyerID, contentID)
	if _, ok := buyer.PurchasedAt(contentID); ok {
		prior, err := e.entries.FindActiveByKey(ctx, key)
		switch {
		case err == nil && prior.Status() == entity.StatusPending:
			return e.drivePurchase(ctx, prior)
		case err == nil, errors.Is(err, repository.ErrNotFound):
			return e.alreadyPurchased(prior), nil
		default:
			return nil, fmt.Errorf("find purchase %s: %w", key, err)
		}
	}

	if buyer.Billing().IsZero() {
		return nil, entity.ErrBillingProfileMissing
	}

	fee := item.Price().Fee(e.opts.FeeBasisPoints)
	entry, existing, err := e.open(ctx, key, func() *entity.LedgerEntry {
		return entity.NewPurchaseEntry(buyerID, buyer.Billing(), item, fee, e.opts.Currency)
	})
	if err != nil {
		return nil, err
	}
	if existing && entry.Status() == entity.StatusCompleted {
		return e.alreadyPurchased(entry), nil
	}
	return e.drivePurchase(ctx, entry)
}

// open creates the entry built by build, or returns the active entry already
// holding key. Only a failed holder releases the key, so the create is
// retried once if the holder disappears in between.
func (e *Engine) open(
	ctx context.Context,
	key string,
	build func() *entity.LedgerEntry,
) (entry *entity.LedgerEntry, existing bool, err error) {
	for range 2 {
		entry = build()
		err = e.entries.Create(ctx, entry)
		if err == nil {
			e.logger.Debug("ledger entry opened", "entry_id", entry.ID(), "key", key)
			return entry, false, nil
		}
		if !errors.Is(err, repository.ErrDuplicateKey) {
			return nil, false, fmt.Errorf("create entry: %w", err)
		}

		held, ferr := e.entries.FindActiveByKey(ctx, key)
		if ferr == nil {
			return held, true, nil
		}
		if !errors.Is(ferr, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("find entry %s: %w", key, ferr)
		}
	}
	return nil, false, fmt.Errorf("create entry: %w", err)
}

func (e *Engine) alreadyPurchased(prior *entity.LedgerEntry) *Result {
	metrics.RecordOperation(string(entity.KindPurchase), string(OutcomeAlreadyPurchased))
	return &Result{Entry: prior, Outcome: OutcomeAlreadyPurchased, Replayed: true}
}

// drivePurchase takes a pending purchase entry from wherever it stopped to a
// terminal state. Once the charge has succeeded the remaining steps ignore
// caller cancellation.
func (e *Engine) drivePurchase(ctx context.Context, entry *entity.LedgerEntry) (*Result, error) {
	if entry.ExternalRef() == "" {
		if entry.Billing().IsZero() {
			return e.reconcileLater(ctx, entry, errors.New("entry has no recorded payment method"))
		}
		ref, err := e.charge(ctx, entry)
		if err != nil {
			if gateway.IsDefinitive(err) {
				return e.fail(ctx, entry, err)
			}
			return e.reconcileLater(ctx, entry, fmt.Errorf("charge outcome unknown: %w", err))
		}

		ctx = context.WithoutCancel(ctx)
		if err := e.entries.SetExternalRef(ctx, entry.ID(), ref); err != nil {
			if errors.Is(err, entity.ErrEntryFinalized) {
				return e.settled(ctx, entry.ID())
			}
			return e.reconcileLater(ctx, entry, fmt.Errorf("record charge %s: %w", ref, err))
		}
		if err := entry.AttachExternalRef(ref); err != nil {
			return e.settled(ctx, entry.ID())
		}
	}
	ctx = context.WithoutCancel(ctx)

	if err := e.accounts.GrantContentAccess(ctx, entry.AccountID(), entry.ContentID(), e.now()); err != nil {
		return e.reconcileLater(ctx, entry, fmt.Errorf("grant access: %w", err))
	}

	err := e.applyDelta(ctx, entry.CounterpartyID(), entry.SellerCredit(),
		entry.Posting(entity.LegCredit), entity.LegCredit, e.opts.MaxCASRetries)
	if err != nil {
		return e.reconcileLater(ctx, entry, fmt.Errorf("credit seller %s: %w", entry.CounterpartyID(), err))
	}

	return e.complete(ctx, entry)
}

func (e *Engine) charge(ctx context.Context, entry *entity.LedgerEntry) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	res, err := e.gateway.Charge(ctx, gateway.ChargeRequest{
		IdempotencyKey: entry.IdempotencyKey(),
		Billing:        entry.Billing(),
		Amount:         entry.Amount(),
		Currency:       entry.Currency(),
		Description:    "content " + entry.ContentID().String(),
		Metadata: map[string]string{
			"entry_id":   entry.ID().String(),
			"content_id": entry.ContentID().String(),
			"seller_id":  entry.CounterpartyID().String(),
		},
	})
	metrics.ObserveGateway("charge", err, started)
	if err != nil {
		return "", err
	}
	return res.ExternalRef, nil
}
