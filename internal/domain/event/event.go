package event

import (
	"context"
	"time"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
)

const (
	TopicEntries = "ledger.entries"
	TopicAlerts  = "ledger.alerts"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

type EntryFinalized struct {
	EntryID        string    `json:"entry_id"`
	Kind           string    `json:"kind"`
	Status         string    `json:"status"`
	AccountID      string    `json:"account_id"`
	CounterpartyID string    `json:"counterparty_id,omitempty"`
	ContentID      string    `json:"content_id,omitempty"`
	Amount         string    `json:"amount"`
	Fee            string    `json:"fee"`
	Currency       string    `json:"currency"`
	ExternalRef    string    `json:"external_ref,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func NewEntryFinalized(e *entity.LedgerEntry) EntryFinalized {
	ev := EntryFinalized{
		EntryID:       e.ID().String(),
		Kind:          string(e.Kind()),
		Status:        string(e.Status()),
		AccountID:     e.AccountID().String(),
		Amount:        e.Amount().String(),
		Fee:           e.Fee().String(),
		Currency:      e.Currency(),
		ExternalRef:   e.ExternalRef(),
		FailureReason: e.FailureReason(),
		OccurredAt:    e.FinalizedAt(),
	}
	if e.Kind() == entity.KindPurchase {
		ev.CounterpartyID = e.CounterpartyID().String()
		ev.ContentID = e.ContentID().String()
	}
	return ev
}

type Severity string

const (
	// SeverityReconcile: money moved or may have, bookkeeping is incomplete.
	SeverityReconcile Severity = "reconciliation_required"
	// SeverityFatal: a compensating credit could not be written.
	SeverityFatal Severity = "fatal"
)

type Alert struct {
	EntryID    string    `json:"entry_id"`
	Kind       string    `json:"kind"`
	AccountID  string    `json:"account_id"`
	Amount     string    `json:"amount"`
	Severity   Severity  `json:"severity"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewAlert(e *entity.LedgerEntry, severity Severity, reason error, at time.Time) Alert {
	return Alert{
		EntryID:    e.ID().String(),
		Kind:       string(e.Kind()),
		AccountID:  e.AccountID().String(),
		Amount:     e.Amount().String(),
		Severity:   severity,
		Reason:     reason.Error(),
		OccurredAt: at.UTC(),
	}
}
