package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

type LedgerRepo struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*entity.LedgerEntry
	active  map[string]uuid.UUID
}

func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{
		entries: make(map[uuid.UUID]*entity.LedgerEntry),
		active:  make(map[string]uuid.UUID),
	}
}

func (r *LedgerRepo) Create(_ context.Context, e *entity.LedgerEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[e.Key()]; ok {
		return repository.ErrDuplicateKey
	}
	if _, ok := r.entries[e.ID()]; ok {
		return repository.ErrDuplicateKey
	}
	stored := clone(e)
	r.entries[e.ID()] = stored
	if stored.Status() != entity.StatusFailed {
		r.active[e.Key()] = e.ID()
	}
	return nil
}

func (r *LedgerRepo) Get(_ context.Context, id uuid.UUID) (*entity.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(e), nil
}

func (r *LedgerRepo) FindActiveByKey(_ context.Context, key string) (*entity.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.active[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clone(r.entries[id]), nil
}

func (r *LedgerRepo) SetExternalRef(_ context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return repository.ErrNotFound
	}
	return e.AttachExternalRef(ref)
}

func (r *LedgerRepo) Finalize(_ context.Context, e *entity.LedgerEntry) error {
	if !e.Status().Terminal() {
		return entity.ErrEntryFinalized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.entries[e.ID()]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status().Terminal() {
		return entity.ErrEntryFinalized
	}
	next := clone(e)
	if next.ExternalRef() == "" && stored.ExternalRef() != "" {
		next = withExternalRef(next, stored.ExternalRef())
	}
	r.entries[e.ID()] = next
	if next.Status() == entity.StatusFailed {
		delete(r.active, next.Key())
	}
	return nil
}

func (r *LedgerRepo) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]*entity.LedgerEntry, error) {
	return r.collect(limit, func(e *entity.LedgerEntry) bool {
		return e.Status() == entity.StatusPending && e.CreatedAt().Before(createdBefore)
	}, false), nil
}

func (r *LedgerRepo) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]*entity.LedgerEntry, error) {
	return r.collect(limit, func(e *entity.LedgerEntry) bool {
		return e.AccountID() == accountID || e.CounterpartyID() == accountID
	}, true), nil
}

func (r *LedgerRepo) collect(limit int, keep func(*entity.LedgerEntry) bool, newestFirst bool) []*entity.LedgerEntry {
	r.mu.RLock()
	out := make([]*entity.LedgerEntry, 0)
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, clone(e))
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt().After(out[j].CreatedAt())
		}
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func clone(e *entity.LedgerEntry) *entity.LedgerEntry {
	c := *e
	return &c
}

func withExternalRef(e *entity.LedgerEntry, ref string) *entity.LedgerEntry {
	return entity.ReconstructLedgerEntry(
		e.ID(), e.Key(),
		e.AccountID(), e.ContentID(), e.CounterpartyID(),
		e.Amount(), e.Fee(),
		e.Currency(),
		e.Kind(), e.Status(),
		e.Billing(), e.DestinationRef(),
		ref, e.FailureReason(),
		e.CreatedAt(), e.FinalizedAt(),
	)
}
