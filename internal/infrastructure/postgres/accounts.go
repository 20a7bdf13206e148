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

type AccountRepo struct {
	pool *pgxpool.Pool
}

func (r *AccountRepo) Create(ctx context.Context, a *entity.Account) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO accounts (id, balance, payout_account_ref, customer_ref, payment_method_ref, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID(), int64(a.Balance()), nullString(a.PayoutRef()),
		nullString(a.Billing().CustomerRef), nullString(a.Billing().PaymentMethodRef), a.CreatedAt(),
	)
	if hasCode(err, codeUniqueViolation) {
		return repository.ErrDuplicateKey
	}
	return err
}

func (r *AccountRepo) Get(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	var (
		balance                     int64
		payoutRef, customer, method *string
		createdAt                   time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT balance, payout_account_ref, customer_ref, payment_method_ref, created_at
		 FROM accounts WHERE id = $1`,
		id,
	).Scan(&balance, &payoutRef, &customer, &method, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT content_id, granted_at FROM account_content_access WHERE account_id = $1`,
		id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	purchases := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var contentID uuid.UUID
		var grantedAt time.Time
		if err := rows.Scan(&contentID, &grantedAt); err != nil {
			return nil, err
		}
		purchases[contentID] = grantedAt
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	billing := entity.BillingProfile{CustomerRef: deref(customer), PaymentMethodRef: deref(method)}
	return entity.ReconstructAccount(id, entity.Money(balance), deref(payoutRef), billing, purchases, createdAt), nil
}

func (r *AccountRepo) CompareAndSetBalance(
	ctx context.Context,
	id uuid.UUID,
	expected, newBalance entity.Money,
	posting string,
) error {
	if newBalance < 0 {
		return entity.ErrInsufficientFunds
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO account_postings (account_id, posting) VALUES ($1, $2)
			 ON CONFLICT (account_id, posting) DO NOTHING`,
			id, posting,
		)
		if hasCode(err, codeForeignKeyViolation) {
			return repository.ErrNotFound
		}
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrAlreadyApplied
		}

		tag, err = tx.Exec(ctx,
			`UPDATE accounts SET balance = $1 WHERE id = $2 AND balance = $3`,
			int64(newBalance), id, int64(expected),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrConflict
		}
		return nil
	})
}

func (r *AccountRepo) HasPosting(ctx context.Context, id uuid.UUID, posting string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM account_postings WHERE account_id = $1 AND posting = $2)`,
		id, posting,
	).Scan(&exists)
	return exists, err
}

func (r *AccountRepo) SetPayoutAccount(ctx context.Context, id uuid.UUID, ref string) error {
	return r.exec(ctx, `UPDATE accounts SET payout_account_ref = $2 WHERE id = $1`, id, nullString(ref))
}

func (r *AccountRepo) SetBillingProfile(ctx context.Context, id uuid.UUID, profile entity.BillingProfile) error {
	return r.exec(ctx,
		`UPDATE accounts SET customer_ref = $2, payment_method_ref = $3 WHERE id = $1`,
		id, nullString(profile.CustomerRef), nullString(profile.PaymentMethodRef),
	)
}

func (r *AccountRepo) GrantContentAccess(ctx context.Context, id, contentID uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO account_content_access (account_id, content_id, granted_at) VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, content_id) DO NOTHING`,
		id, contentID, at.UTC(),
	)
	if hasCode(err, codeForeignKeyViolation) {
		return repository.ErrNotFound
	}
	return err
}

func (r *AccountRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
