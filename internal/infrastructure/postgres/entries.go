package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

const entryColumns = `id, idempotency_key, account_id, content_id, counterparty_id, kind, status,
	amount, fee, currency, customer_ref, payment_method_ref, destination_ref,
	external_ref, failure_reason, created_at, finalized_at`

type LedgerRepo struct {
	pool *pgxpool.Pool
}

func (r *LedgerRepo) Create(ctx context.Context, e *entity.LedgerEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ledger_entries (`+entryColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID(), e.Key(), e.AccountID(), nullUUID(e.ContentID()), nullUUID(e.CounterpartyID()),
		string(e.Kind()), string(e.Status()),
		int64(e.Amount()), int64(e.Fee()), e.Currency(),
		nullString(e.Billing().CustomerRef), nullString(e.Billing().PaymentMethodRef), nullString(e.DestinationRef()),
		nullString(e.ExternalRef()), nullString(e.FailureReason()),
		e.CreatedAt(), nullTime(e.FinalizedAt()),
	)
	if hasCode(err, codeUniqueViolation) {
		return repository.ErrDuplicateKey
	}
	return err
}

func (r *LedgerRepo) Get(ctx context.Context, id uuid.UUID) (*entity.LedgerEntry, error) {
	return r.one(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
}

func (r *LedgerRepo) FindActiveByKey(ctx context.Context, key string) (*entity.LedgerEntry, error) {
	return r.one(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1 AND status <> 'failed'`,
		key,
	)
}

func (r *LedgerRepo) SetExternalRef(ctx context.Context, id uuid.UUID, ref string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE ledger_entries SET external_ref = $2 WHERE id = $1 AND status = 'pending'`,
		id, ref,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrFinal(ctx, id)
	}
	return nil
}

func (r *LedgerRepo) Finalize(ctx context.Context, e *entity.LedgerEntry) error {
	if !e.Status().Terminal() {
		return entity.ErrEntryFinalized
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE ledger_entries
		 SET status = $2, failure_reason = $3, finalized_at = $4,
		     external_ref = COALESCE($5, external_ref)
		 WHERE id = $1 AND status = 'pending'`,
		e.ID(), string(e.Status()), nullString(e.FailureReason()), e.FinalizedAt(), nullString(e.ExternalRef()),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrFinal(ctx, e.ID())
	}
	return nil
}

func (r *LedgerRepo) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*entity.LedgerEntry, error) {
	return r.many(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at LIMIT $2`,
		createdBefore, limit,
	)
}

func (r *LedgerRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*entity.LedgerEntry, error) {
	return r.many(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries
		 WHERE account_id = $1 OR counterparty_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
}

func (r *LedgerRepo) missingOrFinal(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repository.ErrNotFound
	}
	return entity.ErrEntryFinalized
}

func (r *LedgerRepo) one(ctx context.Context, sql string, args ...any) (*entity.LedgerEntry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return e, err
}

func (r *LedgerRepo) many(ctx context.Context, sql string, args ...any) ([]*entity.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*entity.LedgerEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanEntry(row pgx.Row) (*entity.LedgerEntry, error) {
	var (
		id, accountID               uuid.UUID
		contentID, counterpartyID   uuid.NullUUID
		key, kind, status, currency string
		amount, fee                 int64
		externalRef, failure        *string
		customerRef, paymentMethod  *string
		destinationRef              *string
		createdAt                   time.Time
		finalizedAt                 *time.Time
	)
	if err := row.Scan(
		&id, &key, &accountID, &contentID, &counterpartyID, &kind, &status,
		&amount, &fee, &currency, &customerRef, &paymentMethod, &destinationRef,
		&externalRef, &failure, &createdAt, &finalizedAt,
	); err != nil {
		return nil, err
	}

	var finalized time.Time
	if finalizedAt != nil {
		finalized = *finalizedAt
	}
	return entity.ReconstructLedgerEntry(
		id, key,
		accountID, contentID.UUID, counterpartyID.UUID,
		entity.Money(amount), entity.Money(fee),
		currency,
		entity.EntryKind(kind), entity.EntryStatus(status),
		entity.BillingProfile{CustomerRef: deref(customerRef), PaymentMethodRef: deref(paymentMethod)},
		deref(destinationRef),
		deref(externalRef), deref(failure),
		createdAt, finalized,
	), nil
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
