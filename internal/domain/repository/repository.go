package repository

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("concurrent update conflict")
	ErrAlreadyApplied = errors.New("posting already applied")
	ErrDuplicateKey   = errors.New("active entry with this key already exists")
)

type AccountRepository interface {
	Create(ctx context.Context, a *entity.Account) error
	Get(ctx context.Context, id uuid.UUID) (*entity.Account, error)
	// CompareAndSetBalance writes newBalance only if the stored balance still
	// equals expected. posting identifies the write: a posting that was
	// already applied yields ErrAlreadyApplied and changes nothing.
	CompareAndSetBalance(ctx context.Context, id uuid.UUID, expected, newBalance entity.Money, posting string) error
	HasPosting(ctx context.Context, id uuid.UUID, posting string) (bool, error)
	SetPayoutAccount(ctx context.Context, id uuid.UUID, ref string) error
	SetBillingProfile(ctx context.Context, id uuid.UUID, profile entity.BillingProfile) error
	// GrantContentAccess is idempotent; granting twice keeps the first time.
	GrantContentAccess(ctx context.Context, id, contentID uuid.UUID, at time.Time) error
}

type ContentFilter struct {
	OwnerID uuid.UUID
	Tag     string
	Type    entity.ContentType
	Limit   int
}

type ContentRepository interface {
	Create(ctx context.Context, item *entity.ContentItem) error
	Get(ctx context.Context, id uuid.UUID) (*entity.ContentItem, error)
	IncrementDownloadCount(ctx context.Context, id uuid.UUID) error
	// List yields matching items newest first. The sequence is finite and
	// each range over it starts again from the newest item.
	List(ctx context.Context, filter ContentFilter) iter.Seq2[*entity.ContentItem, error]
}

type LedgerRepository interface {
	// Create fails with ErrDuplicateKey while a pending or completed entry
	// holds the same key. Failed entries release their key.
	Create(ctx context.Context, e *entity.LedgerEntry) error
	Get(ctx context.Context, id uuid.UUID) (*entity.LedgerEntry, error)
	FindActiveByKey(ctx context.Context, key string) (*entity.LedgerEntry, error)
	// SetExternalRef records the processor reference on a pending entry.
	SetExternalRef(ctx context.Context, id uuid.UUID, ref string) error
	// Finalize persists a terminal status. It returns entity.ErrEntryFinalized
	// if the stored entry is no longer pending.
	Finalize(ctx context.Context, e *entity.LedgerEntry) error
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*entity.LedgerEntry, error)
	// ListByAccount returns entries where the account acted or was the
	// counterparty, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*entity.LedgerEntry, error)
}
