package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/event"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/metrics"
)

// Payout debits amount from the seller and transfers it to their connected
// payout account. requestKey identifies the request across retries; an empty
// key makes the request unique. A definitive transfer rejection restores the
// debited funds before the entry is failed.
func (e *Engine) Payout(ctx context.Context, sellerID uuid.UUID, amount entity.Money, requestKey string) (*Result, error) {
	if sellerID == uuid.Nil {
		return nil, fmt.Errorf("%w: seller id is required", ErrInvalidRequest)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: payout amount %s", ErrInvalidAmount, amount)
	}
	if requestKey == "" {
		requestKey = uuid.NewString()
	}

	return e.collapse(entity.PayoutKey(sellerID, requestKey), func() (*Result, error) {
		return e.payout(ctx, sellerID, amount, requestKey)
	})
}

func (e *Engine) payout(ctx context.Context, sellerID uuid.UUID, amount entity.Money, requestKey string) (*Result, error) {
	seller, err := e.accounts.Get(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("seller %s: %w", sellerID, err)
	}
	if !seller.HasPayoutAccount() {
		return nil, entity.ErrPayoutAccountNotConnected
	}

	key := entity.PayoutKey(sellerID, requestKey)
	entry, existing, err := e.open(ctx, key, func() *entity.LedgerEntry {
		return entity.NewPayoutEntry(sellerID, seller.PayoutRef(), requestKey, amount, e.opts.Currency)
	})
	if err != nil {
		return nil, err
	}
	if existing {
		if entry.Amount() != amount {
			return nil, fmt.Errorf("%w: request key %q reused with a different amount", ErrInvalidRequest, requestKey)
		}
		if entry.Status().Terminal() {
			return settledResult(entry)
		}
	}
	return e.drivePayout(ctx, entry)
}

// drivePayout takes a pending payout entry from wherever it stopped to a
// terminal state. The transfer always goes to the payout account recorded on
// the entry.
func (e *Engine) drivePayout(ctx context.Context, entry *entity.LedgerEntry) (*Result, error) {
	if entry.DestinationRef() == "" {
		return e.reconcileLater(ctx, entry, errors.New("entry has no recorded payout account"))
	}

	refunded, err := e.accounts.HasPosting(ctx, entry.AccountID(), entry.Posting(entity.LegRefund))
	if err != nil {
		return e.reconcileLater(ctx, entry, fmt.Errorf("check refund: %w", err))
	}
	if refunded {
		return e.fail(ctx, entry, fmt.Errorf("%w: transfer rejected, debit already restored", gateway.ErrRejected))
	}

	debited, err := e.accounts.HasPosting(ctx, entry.AccountID(), entry.Posting(entity.LegDebit))
	if err != nil {
		return e.reconcileLater(ctx, entry, fmt.Errorf("check debit: %w", err))
	}

	if !debited {
		err := e.applyDelta(ctx, entry.AccountID(), -entry.Amount(),
			entry.Posting(entity.LegDebit), entity.LegDebit, e.opts.MaxCASRetries)
		switch {
		case err == nil:
		case errors.Is(err, entity.ErrInsufficientFunds), errors.Is(err, ErrConcurrentUpdateExhausted):
			return e.fail(ctx, entry, err)
		default:
			return e.reconcileLater(ctx, entry, fmt.Errorf("debit seller: %w", err))
		}
	}

	ref, err := e.transfer(ctx, entry)
	if err != nil {
		if gateway.IsDefinitive(err) {
			return e.compensate(ctx, entry, err)
		}
		return e.reconcileLater(ctx, entry, fmt.Errorf("transfer outcome unknown: %w", err))
	}

	ctx = context.WithoutCancel(ctx)
	if err := entry.AttachExternalRef(ref); err != nil {
		return e.settled(ctx, entry.ID())
	}
	return e.complete(ctx, entry)
}

// compensate restores a debit whose transfer was definitively rejected. The
// credit is retried on conflict until it lands; any other failure is fatal
// and the entry stays pending.
func (e *Engine) compensate(ctx context.Context, entry *entity.LedgerEntry, cause error) (*Result, error) {
	ctx = context.WithoutCancel(ctx)

	err := e.applyDelta(ctx, entry.AccountID(), entry.Amount(),
		entry.Posting(entity.LegRefund), entity.LegRefund, 0)
	if err != nil {
		fatal := fmt.Errorf("%w: %w", ErrCompensationFailed, err)
		return e.alert(ctx, entry, event.SeverityFatal, errors.Join(cause, fatal))
	}

	e.logger.Info("payout debit restored", "entry_id", entry.ID(), "amount", entry.Amount().String())
	return e.fail(ctx, entry, cause)
}

func (e *Engine) transfer(ctx context.Context, entry *entity.LedgerEntry) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.GatewayTimeout)
	defer cancel()

	started := time.Now()
	res, err := e.gateway.Transfer(ctx, gateway.TransferRequest{
		IdempotencyKey: entry.IdempotencyKey(),
		DestinationRef: entry.DestinationRef(),
		Amount:         entry.Amount(),
		Currency:       entry.Currency(),
		Metadata: map[string]string{
			"entry_id":  entry.ID().String(),
			"seller_id": entry.AccountID().String(),
		},
	})
	metrics.ObserveGateway("transfer", err, started)
	if err != nil {
		return "", err
	}
	return res.ExternalRef, nil
}
