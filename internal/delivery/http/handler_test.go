package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	delivery "github.com/Xausdorf/clout-ledger/internal/delivery/http"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/memory"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/qrgenerator"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/sandbox"
	"github.com/Xausdorf/clout-ledger/internal/usecase/catalog"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
	"github.com/Xausdorf/clout-ledger/internal/usecase/sharecontent"
	"github.com/Xausdorf/clout-ledger/internal/usecase/wallet"
)

type testServer struct {
	*httptest.Server
	gw      *sandbox.Processor
	catalog *catalog.Service
}

func newTestServer(t *testing.T, limiter *delivery.RateLimiter) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	gw := sandbox.New()

	engine := ledger.NewEngine(store, gw, nil, logger, ledger.Options{FeeBasisPoints: 1000})
	catalogSvc := catalog.NewService(store, logger)
	walletSvc := wallet.NewService(store, logger)
	shareUC := sharecontent.NewUseCase(store.Contents(), qrgenerator.NewGenerator(128), "https://clout.example.com", "usd")

	h := delivery.NewHandler(engine, catalogSvc, walletSvc, shareUC, logger)
	srv := httptest.NewServer(delivery.NewRouter(h, delivery.RouterOptions{
		AllowedOrigins: []string{"*"},
		Limiter:        limiter,
	}))
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, gw: gw, catalog: catalogSvc}
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers ...string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decodeAs[T any](t *testing.T, raw []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (s *testServer) register(t *testing.T) delivery.AccountResponse {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/accounts", nil)
	require.Equal(t, http.StatusCreated, status, string(body))
	return decodeAs[delivery.AccountResponse](t, body)
}

func (s *testServer) publish(t *testing.T, ownerID, price string) delivery.ContentResponse {
	t.Helper()
	status, body := s.do(t, http.MethodPost, "/api/content", delivery.PublishRequest{
		OwnerID:    ownerID,
		Title:      "Golden hour",
		Type:       "photo",
		ContentURL: "https://cdn.example.com/golden.jpg",
		Tags:       []string{"sunset"},
		Price:      price,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	return decodeAs[delivery.ContentResponse](t, body)
}

func TestHandler_PurchaseFlow(t *testing.T) {
	s := newTestServer(t, nil)

	seller := s.register(t)
	buyer := s.register(t)
	item := s.publish(t, seller.ID, "2.99")
	assert.Equal(t, "owned", item.Access.State)
	assert.Equal(t, "2.99", item.Price)

	status, body := s.do(t, http.MethodPost, "/api/content/"+item.ID+"/purchase",
		delivery.PurchaseRequest{BuyerID: buyer.ID})
	assert.Equal(t, http.StatusConflict, status, "purchase without billing profile: %s", body)

	status, body = s.do(t, http.MethodPut, "/api/accounts/"+buyer.ID+"/billing-profile",
		delivery.BillingProfileRequest{CustomerRef: "cus_1", PaymentMethodRef: "pm_1"})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decodeAs[delivery.AccountResponse](t, body).BillingConnected)

	status, body = s.do(t, http.MethodGet, "/api/content/"+item.ID+"?viewer_id="+buyer.ID, nil)
	require.Equal(t, http.StatusOK, status)
	locked := decodeAs[delivery.ContentResponse](t, body)
	assert.Equal(t, "not_purchased", locked.Access.State)
	assert.Empty(t, locked.ContentURL)

	status, body = s.do(t, http.MethodPost, "/api/content/"+item.ID+"/download",
		delivery.DownloadRequest{ViewerID: buyer.ID})
	assert.Equal(t, http.StatusForbidden, status, string(body))

	status, body = s.do(t, http.MethodPost, "/api/content/"+item.ID+"/purchase",
		delivery.PurchaseRequest{BuyerID: buyer.ID})
	require.Equal(t, http.StatusCreated, status, string(body))
	result := decodeAs[delivery.ResultResponse](t, body)
	assert.Equal(t, "completed", result.Outcome)
	require.NotNil(t, result.Entry)
	assert.Equal(t, "purchase", result.Entry.Kind)
	assert.Equal(t, "2.99", result.Entry.Amount)
	assert.Equal(t, "0.30", result.Entry.Fee)

	status, body = s.do(t, http.MethodPost, "/api/content/"+item.ID+"/purchase",
		delivery.PurchaseRequest{BuyerID: buyer.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "already_purchased", decodeAs[delivery.ResultResponse](t, body).Outcome)

	status, body = s.do(t, http.MethodPost, "/api/content/"+item.ID+"/download",
		delivery.DownloadRequest{ViewerID: buyer.ID})
	require.Equal(t, http.StatusOK, status, string(body))
	assert.Equal(t, "https://cdn.example.com/golden.jpg", decodeAs[delivery.DownloadResponse](t, body).ContentURL)
	s.catalog.Wait()

	status, body = s.do(t, http.MethodGet, "/api/content?viewer_id="+buyer.ID+"&tag=sunset", nil)
	require.Equal(t, http.StatusOK, status)
	list := decodeAs[[]delivery.ContentResponse](t, body)
	require.Len(t, list, 1)
	assert.Equal(t, "purchased", list[0].Access.State)
	assert.Equal(t, int64(1), list[0].DownloadCount)

	status, body = s.do(t, http.MethodGet, "/api/accounts/"+seller.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "2.69", decodeAs[delivery.AccountResponse](t, body).Balance)

	status, body = s.do(t, http.MethodGet, "/api/accounts/"+seller.ID+"/entries", nil)
	require.Equal(t, http.StatusOK, status)
	history := decodeAs[[]delivery.EntryResponse](t, body)
	require.Len(t, history, 1)
	assert.Equal(t, "sale", history[0].Kind)
	assert.Equal(t, "2.69", history[0].Amount)
}

func TestHandler_Payouts(t *testing.T) {
	s := newTestServer(t, nil)

	seller := s.register(t)
	buyer := s.register(t)
	item := s.publish(t, seller.ID, "10.00")
	s.do(t, http.MethodPut, "/api/accounts/"+buyer.ID+"/billing-profile",
		delivery.BillingProfileRequest{CustomerRef: "cus_2", PaymentMethodRef: "pm_2"})
	status, _ := s.do(t, http.MethodPost, "/api/content/"+item.ID+"/purchase", delivery.PurchaseRequest{BuyerID: buyer.ID})
	require.Equal(t, http.StatusCreated, status)

	payoutPath := "/api/accounts/" + seller.ID + "/payouts"

	status, body := s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "5.00"})
	assert.Equal(t, http.StatusBadRequest, status, "missing idempotency key: %s", body)

	status, body = s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "5.00"}, "X-Idempotency-Key", "p-1")
	assert.Equal(t, http.StatusConflict, status, "payout account not connected: %s", body)

	status, body = s.do(t, http.MethodPut, "/api/accounts/"+seller.ID+"/payout-account",
		delivery.PayoutAccountRequest{AccountRef: "acct_seller"})
	require.Equal(t, http.StatusOK, status, string(body))

	status, body = s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "15.00"}, "X-Idempotency-Key", "p-2")
	require.Equal(t, http.StatusUnprocessableEntity, status, string(body))
	rejected := decodeAs[delivery.ResultResponse](t, body)
	assert.Equal(t, "rejected", rejected.Outcome)
	assert.Equal(t, "failed", rejected.Entry.Status)

	status, body = s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "4.00"}, "X-Idempotency-Key", "p-3")
	require.Equal(t, http.StatusCreated, status, string(body))

	status, body = s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "4.00"}, "X-Idempotency-Key", "p-3")
	require.Equal(t, http.StatusOK, status, string(body))
	assert.True(t, decodeAs[delivery.ResultResponse](t, body).Replayed)

	status, body = s.do(t, http.MethodPost, payoutPath, delivery.PayoutRequest{Amount: "0.001"}, "X-Idempotency-Key", "p-4")
	assert.Equal(t, http.StatusBadRequest, status, string(body))

	status, body = s.do(t, http.MethodGet, "/api/accounts/"+seller.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "5.00", decodeAs[delivery.AccountResponse](t, body).Balance)
	assert.Len(t, s.gw.Calls(), 2)
}

func TestHandler_BadRequests(t *testing.T) {
	s := newTestServer(t, nil)

	status, _ := s.do(t, http.MethodGet, "/api/accounts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/api/accounts/0b7c5c4e-7d0b-4c1e-9f55-0d7f0c2a9a11", nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = s.do(t, http.MethodGet, "/api/content?type=audio", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodGet, "/api/content?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	owner := s.register(t)
	status, _ = s.do(t, http.MethodPost, "/api/content", map[string]any{"owner_id": owner.ID, "unknown": true})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/api/content", delivery.PublishRequest{
		OwnerID: owner.ID, Title: "x", Type: "photo", ContentURL: "https://cdn.example.com/x.jpg", Price: "abc",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandler_ShareQRAndOps(t *testing.T) {
	s := newTestServer(t, nil)
	owner := s.register(t)
	item := s.publish(t, owner.ID, "1.50")

	resp, err := http.Get(s.URL + "/api/content/" + item.ID + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	status, _ := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "clout_ledger_http_requests_total")
}

func TestHandler_RateLimited(t *testing.T) {
	s := newTestServer(t, delivery.NewRateLimiter(1, 2))

	var limited bool
	for range 5 {
		status, _ := s.do(t, http.MethodGet, "/api/content", nil)
		if status == http.StatusTooManyRequests {
			limited = true
		}
	}
	assert.True(t, limited)

	status, _ := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
}
