package memory

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

type accountRecord struct {
	balance   entity.Money
	payoutRef string
	billing   entity.BillingProfile
	purchases map[uuid.UUID]time.Time
	postings  map[string]struct{}
	createdAt time.Time
}

type AccountRepo struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*accountRecord
}

func NewAccountRepo() *AccountRepo {
	return &AccountRepo{accounts: make(map[uuid.UUID]*accountRecord)}
}

func (r *AccountRepo) Create(_ context.Context, a *entity.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.ID()]; ok {
		return repository.ErrDuplicateKey
	}
	r.accounts[a.ID()] = &accountRecord{
		balance:   a.Balance(),
		payoutRef: a.PayoutRef(),
		billing:   a.Billing(),
		purchases: a.Purchases(),
		postings:  make(map[string]struct{}),
		createdAt: a.CreatedAt(),
	}
	return nil
}

func (r *AccountRepo) Get(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return entity.ReconstructAccount(id, rec.balance, rec.payoutRef, rec.billing, maps.Clone(rec.purchases), rec.createdAt), nil
}

func (r *AccountRepo) CompareAndSetBalance(
	_ context.Context,
	id uuid.UUID,
	expected, newBalance entity.Money,
	posting string,
) error {
	if newBalance < 0 {
		return entity.ErrInsufficientFunds
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if _, done := rec.postings[posting]; done {
		return repository.ErrAlreadyApplied
	}
	if rec.balance != expected {
		return repository.ErrConflict
	}
	rec.balance = newBalance
	rec.postings[posting] = struct{}{}
	return nil
}

func (r *AccountRepo) HasPosting(_ context.Context, id uuid.UUID, posting string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.accounts[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	_, done := rec.postings[posting]
	return done, nil
}

func (r *AccountRepo) SetPayoutAccount(_ context.Context, id uuid.UUID, ref string) error {
	return r.update(id, func(rec *accountRecord) { rec.payoutRef = ref })
}

func (r *AccountRepo) SetBillingProfile(_ context.Context, id uuid.UUID, profile entity.BillingProfile) error {
	return r.update(id, func(rec *accountRecord) { rec.billing = profile })
}

func (r *AccountRepo) GrantContentAccess(_ context.Context, id, contentID uuid.UUID, at time.Time) error {
	return r.update(id, func(rec *accountRecord) {
		if _, ok := rec.purchases[contentID]; !ok {
			rec.purchases[contentID] = at.UTC()
		}
	})
}

func (r *AccountRepo) update(id uuid.UUID, fn func(rec *accountRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(rec)
	return nil
}
