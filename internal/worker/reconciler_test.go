package worker_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/memory"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger/mocks"
	"github.com/Xausdorf/clout-ledger/internal/worker"
)

type world struct {
	store  *memory.Store
	engine *ledger.Engine
	seller uuid.UUID
	buyers []uuid.UUID
	item   *entity.ContentItem
}

func newWorld(t *testing.T, gw gateway.Gateway, buyers int) *world {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := &world{store: memory.NewStore(), seller: uuid.New()}
	require.NoError(t, w.store.Accounts().Create(ctx, entity.NewAccount(w.seller, 0)))
	for range buyers {
		id := uuid.New()
		require.NoError(t, w.store.Accounts().Create(ctx, entity.NewAccount(id, 0)))
		require.NoError(t, w.store.Accounts().SetBillingProfile(ctx, id, entity.BillingProfile{CustomerRef: "cus", PaymentMethodRef: "pm"}))
		w.buyers = append(w.buyers, id)
	}

	item, err := entity.NewContentItem(entity.ContentDraft{
		OwnerID:    w.seller,
		Title:      "Night market",
		Type:       entity.ContentPhoto,
		ContentURL: "https://cdn.example.com/market.jpg",
		Price:      400,
	})
	require.NoError(t, err)
	require.NoError(t, w.store.Contents().Create(ctx, item))
	w.item = item

	w.engine = ledger.NewEngine(w.store, gw, nil, logger, ledger.Options{})
	return w
}

func (w *world) sellerBalance(t *testing.T) entity.Money {
	t.Helper()
	acct, err := w.store.Accounts().Get(context.Background(), w.seller)
	require.NoError(t, err)
	return acct.Balance()
}

func TestReconciler_RunOnce_CompletesPendingPurchases(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gw := mocks.NewMockGateway(ctrl)
	w := newWorld(t, gw, 3)
	ctx := context.Background()

	gw.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, gateway.ErrUnavailable).Times(3)
	for _, buyer := range w.buyers {
		res, err := w.engine.Purchase(ctx, buyer, w.item.ID())
		require.ErrorIs(t, err, gateway.ErrUnavailable)
		require.Equal(t, ledger.OutcomeReconciliationRequired, res.Outcome)
	}

	gw.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(&gateway.Result{ExternalRef: "pi_ok"}, nil).Times(3)
	r := worker.NewReconciler(w.store.Entries(), w.engine, slog.New(slog.NewTextHandler(io.Discard, nil)),
		worker.ReconcilerConfig{MinAge: 0, BatchSize: 10, Workers: 2})

	settled, err := r.RunOnce(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, settled)
	assert.Equal(t, entity.Money(1_200), w.sellerBalance(t))

	pending, err := w.store.Entries().ListPending(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReconciler_RunOnce_SkipsYoungEntries(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gw := mocks.NewMockGateway(ctrl)
	w := newWorld(t, gw, 1)
	ctx := context.Background()

	gw.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, gateway.ErrUnavailable)
	_, err := w.engine.Purchase(ctx, w.buyers[0], w.item.ID())
	require.Error(t, err)

	r := worker.NewReconciler(w.store.Entries(), w.engine, slog.New(slog.NewTextHandler(io.Discard, nil)),
		worker.ReconcilerConfig{MinAge: time.Hour})

	settled, err := r.RunOnce(ctx)

	require.NoError(t, err)
	assert.Zero(t, settled)
}

func TestReconciler_Start_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	gw := mocks.NewMockGateway(ctrl)
	w := newWorld(t, gw, 1)

	gw.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(nil, gateway.ErrUnavailable)
	_, err := w.engine.Purchase(context.Background(), w.buyers[0], w.item.ID())
	require.Error(t, err)
	gw.EXPECT().Charge(gomock.Any(), gomock.Any()).Return(&gateway.Result{ExternalRef: "pi_late"}, nil)

	r := worker.NewReconciler(w.store.Entries(), w.engine, slog.New(slog.NewTextHandler(io.Discard, nil)),
		worker.ReconcilerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return w.sellerBalance(t) == 400
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
