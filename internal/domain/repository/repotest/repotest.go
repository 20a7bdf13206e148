// Package repotest holds behaviour checks shared by every repository.Store
// implementation.
package repotest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

// Run exercises store. newStore must return an empty store, or one in which
// freshly generated ids cannot collide.
func Run(t *testing.T, newStore func(t *testing.T) repository.Store) {
	t.Run("accounts", func(t *testing.T) { testAccounts(t, newStore(t)) })
	t.Run("compare and set", func(t *testing.T) { testCompareAndSet(t, newStore(t)) })
	t.Run("concurrent credits", func(t *testing.T) { testConcurrentCredits(t, newStore(t)) })
	t.Run("content list", func(t *testing.T) { testContentList(t, newStore(t)) })
	t.Run("ledger entries", func(t *testing.T) { testEntries(t, newStore(t)) })
}

func createAccount(t *testing.T, s repository.Store, balance entity.Money) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, s.Accounts().Create(context.Background(), entity.NewAccount(id, balance)))
	return id
}

func createItem(t *testing.T, s repository.Store, owner uuid.UUID, contentType entity.ContentType, tags ...string) *entity.ContentItem {
	t.Helper()
	item, err := entity.NewContentItem(entity.ContentDraft{
		OwnerID:    owner,
		Title:      "item",
		Type:       contentType,
		ContentURL: "https://cdn.example.com/item",
		Tags:       tags,
		Price:      250,
	})
	require.NoError(t, err)
	require.NoError(t, s.Contents().Create(context.Background(), item))
	return item
}

func testAccounts(t *testing.T, s repository.Store) {
	ctx := context.Background()
	repo := s.Accounts()
	id := createAccount(t, s, 700)

	_, err := repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.SetPayoutAccount(ctx, id, "acct_1"))
	require.NoError(t, repo.SetBillingProfile(ctx, id, entity.BillingProfile{CustomerRef: "cus_1", PaymentMethodRef: "pm_1"}))
	assert.ErrorIs(t, repo.SetPayoutAccount(ctx, uuid.New(), "acct_2"), repository.ErrNotFound)

	owner := createAccount(t, s, 0)
	item := createItem(t, s, owner, entity.ContentPhoto)
	first := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.GrantContentAccess(ctx, id, item.ID(), first))
	require.NoError(t, repo.GrantContentAccess(ctx, id, item.ID(), first.Add(time.Hour)))

	acct, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.Money(700), acct.Balance())
	assert.Equal(t, "acct_1", acct.PayoutRef())
	assert.Equal(t, "pm_1", acct.Billing().PaymentMethodRef)
	at, ok := acct.PurchasedAt(item.ID())
	require.True(t, ok)
	assert.True(t, first.Equal(at), "first grant time kept, got %s", at)
}

func testCompareAndSet(t *testing.T, s repository.Store) {
	ctx := context.Background()
	repo := s.Accounts()
	id := createAccount(t, s, 1_000)

	require.NoError(t, repo.CompareAndSetBalance(ctx, id, 1_000, 600, "e1:debit"))

	err := repo.CompareAndSetBalance(ctx, id, 1_000, 500, "e2:debit")
	assert.ErrorIs(t, err, repository.ErrConflict)

	err = repo.CompareAndSetBalance(ctx, id, 600, 200, "e1:debit")
	assert.ErrorIs(t, err, repository.ErrAlreadyApplied)

	err = repo.CompareAndSetBalance(ctx, id, 600, -1, "e3:debit")
	assert.ErrorIs(t, err, entity.ErrInsufficientFunds)

	applied, err := repo.HasPosting(ctx, id, "e1:debit")
	require.NoError(t, err)
	assert.True(t, applied)
	applied, err = repo.HasPosting(ctx, id, "e2:debit")
	require.NoError(t, err)
	assert.False(t, applied)

	err = repo.CompareAndSetBalance(ctx, uuid.New(), 0, 10, "e4:credit")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	acct, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, entity.Money(600), acct.Balance())
}

func testConcurrentCredits(t *testing.T, s repository.Store) {
	ctx := context.Background()
	repo := s.Accounts()
	id := createAccount(t, s, 0)

	const writers = 8
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			posting := uuid.NewString() + ":credit"
			for attempt := 0; attempt < 100; attempt++ {
				acct, err := repo.Get(ctx, id)
				if !assert.NoError(t, err) {
					return
				}
				err = repo.CompareAndSetBalance(ctx, id, acct.Balance(), acct.Balance()+entity.Money(100+i), posting)
				if err == nil {
					return
				}
				if !assert.ErrorIs(t, err, repository.ErrConflict) {
					return
				}
			}
			t.Errorf("writer %d never landed its credit", i)
		}()
	}
	wg.Wait()

	var want entity.Money
	for i := range writers {
		want += entity.Money(100 + i)
	}
	acct, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, acct.Balance())
}

func testContentList(t *testing.T, s repository.Store) {
	ctx := context.Background()
	repo := s.Contents()
	owner := createAccount(t, s, 0)

	var ids []uuid.UUID
	for i := range 5 {
		contentType := entity.ContentPhoto
		if i%2 == 1 {
			contentType = entity.ContentVideo
		}
		ids = append(ids, createItem(t, s, owner, contentType, "batch").ID())
		time.Sleep(2 * time.Millisecond)
	}

	collect := func(f repository.ContentFilter) []uuid.UUID {
		var out []uuid.UUID
		for item, err := range repo.List(ctx, f) {
			require.NoError(t, err)
			out = append(out, item.ID())
		}
		return out
	}

	all := collect(repository.ContentFilter{OwnerID: owner})
	assert.Equal(t, []uuid.UUID{ids[4], ids[3], ids[2], ids[1], ids[0]}, all)
	assert.Equal(t, all, collect(repository.ContentFilter{OwnerID: owner}), "list is restartable")

	assert.Equal(t, []uuid.UUID{ids[4], ids[3]}, collect(repository.ContentFilter{OwnerID: owner, Limit: 2}))
	assert.Equal(t, []uuid.UUID{ids[3], ids[1]}, collect(repository.ContentFilter{OwnerID: owner, Type: entity.ContentVideo}))
	assert.Len(t, collect(repository.ContentFilter{OwnerID: owner, Tag: "batch"}), 5)
	assert.Empty(t, collect(repository.ContentFilter{OwnerID: owner, Tag: "missing"}))

	var seen int
	for range repo.List(ctx, repository.ContentFilter{OwnerID: owner}) {
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	require.NoError(t, repo.IncrementDownloadCount(ctx, ids[0]))
	require.NoError(t, repo.IncrementDownloadCount(ctx, ids[0]))
	item, err := repo.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, int64(2), item.DownloadCount())
	assert.ErrorIs(t, repo.IncrementDownloadCount(ctx, uuid.New()), repository.ErrNotFound)
}

func testEntries(t *testing.T, s repository.Store) {
	ctx := context.Background()
	repo := s.Entries()
	seller := createAccount(t, s, 0)
	buyer := createAccount(t, s, 0)
	item := createItem(t, s, seller, entity.ContentPhoto)
	billing := entity.BillingProfile{CustomerRef: "cus_1", PaymentMethodRef: "pm_1"}

	first := entity.NewPurchaseEntry(buyer, billing, item, 25, "usd")
	require.NoError(t, repo.Create(ctx, first))
	assert.ErrorIs(t, repo.Create(ctx, entity.NewPurchaseEntry(buyer, billing, item, 25, "usd")), repository.ErrDuplicateKey)

	active, err := repo.FindActiveByKey(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, first.ID(), active.ID())

	require.NoError(t, repo.SetExternalRef(ctx, first.ID(), "pi_1"))
	require.NoError(t, first.Fail("declined", time.Now()))
	require.NoError(t, repo.Finalize(ctx, first))
	assert.ErrorIs(t, repo.Finalize(ctx, first), entity.ErrEntryFinalized)

	stored, err := repo.Get(ctx, first.ID())
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, stored.Status())
	assert.Equal(t, "pi_1", stored.ExternalRef())
	assert.Equal(t, "declined", stored.FailureReason())
	assert.Equal(t, billing, stored.Billing())

	_, err = repo.FindActiveByKey(ctx, first.Key())
	assert.ErrorIs(t, err, repository.ErrNotFound)

	time.Sleep(2 * time.Millisecond)
	second := entity.NewPurchaseEntry(buyer, billing, item, 25, "usd")
	require.NoError(t, repo.Create(ctx, second), "failed entries release their key")

	pending, err := repo.ListPending(ctx, time.Now().Add(time.Second), 1000)
	require.NoError(t, err)
	assert.Contains(t, entryIDs(pending), second.ID())
	assert.NotContains(t, entryIDs(pending), first.ID())

	require.NoError(t, second.Complete(time.Now()))
	require.NoError(t, repo.Finalize(ctx, second))
	assert.ErrorIs(t, repo.SetExternalRef(ctx, second.ID(), "pi_late"), entity.ErrEntryFinalized)

	time.Sleep(2 * time.Millisecond)
	payout := entity.NewPayoutEntry(seller, "acct_seller", "req-1", 100, "usd")
	require.NoError(t, repo.Create(ctx, payout))

	storedPayout, err := repo.Get(ctx, payout.ID())
	require.NoError(t, err)
	assert.Equal(t, "acct_seller", storedPayout.DestinationRef())

	sellerEntries, err := repo.ListByAccount(ctx, seller, 10)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{payout.ID(), second.ID(), first.ID()}, entryIDs(sellerEntries))

	buyerEntries, err := repo.ListByAccount(ctx, buyer, 1)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{second.ID()}, entryIDs(buyerEntries))

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func entryIDs(entries []*entity.LedgerEntry) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID())
	}
	return out
}
