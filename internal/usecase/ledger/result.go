package ledger

import (
	"fmt"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
)

type Outcome string

const (
	// OutcomeCompleted: money moved and the books reflect it.
	OutcomeCompleted Outcome = "completed"
	// OutcomeAlreadyPurchased: nothing happened; the buyer already had access.
	OutcomeAlreadyPurchased Outcome = "already_purchased"
	// OutcomeRejected: nothing happened; the entry is failed.
	OutcomeRejected Outcome = "rejected"
	// OutcomeReconciliationRequired: money moved or may have, and the entry
	// is still pending.
	OutcomeReconciliationRequired Outcome = "reconciliation_required"
)

type Result struct {
	Entry   *entity.LedgerEntry
	Outcome Outcome
	// Replayed is set when the request matched an entry created earlier.
	Replayed bool
}

// MoneyMayHaveMoved is true unless the result proves no funds changed hands
// in this call.
func (r *Result) MoneyMayHaveMoved() bool {
	return r.Outcome == OutcomeCompleted || r.Outcome == OutcomeReconciliationRequired
}

func settledResult(entry *entity.LedgerEntry) (*Result, error) {
	switch entry.Status() {
	case entity.StatusCompleted:
		return &Result{Entry: entry, Outcome: OutcomeCompleted, Replayed: true}, nil
	case entity.StatusFailed:
		return &Result{Entry: entry, Outcome: OutcomeRejected, Replayed: true},
			fmt.Errorf("%w: %s", ErrEntryFailed, entry.FailureReason())
	default:
		return &Result{Entry: entry, Outcome: OutcomeReconciliationRequired, Replayed: true}, nil
	}
}
