package http

import (
	"fmt"
	"net/http"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/usecase/wallet"
)

func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.wallet.Register(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAccountResponse(acct))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	acct, err := h.wallet.Account(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newAccountResponse(acct))
}

func (h *Handler) ConnectPayoutAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PayoutAccountRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	if err := h.wallet.ConnectPayoutAccount(r.Context(), id, req.AccountRef); err != nil {
		h.fail(w, r, err)
		return
	}
	h.GetAccount(w, r)
}

func (h *Handler) SetBillingProfile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req BillingProfileRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err = h.wallet.SetBillingProfile(r.Context(), id, entity.BillingProfile{
		CustomerRef:      req.CustomerRef,
		PaymentMethodRef: req.PaymentMethodRef,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.GetAccount(w, r)
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, err := queryLimit(r, wallet.DefaultHistoryLimit, wallet.MaxHistoryLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	entries, err := h.wallet.History(r.Context(), id, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	out := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get("X-Idempotency-Key")
	if idempotencyKey == "" {
		h.fail(w, r, fmt.Errorf("%w: X-Idempotency-Key header required", errBadRequest))
		return
	}
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PayoutRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	amount, err := entity.ParseMoney(req.Amount)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Payout(r.Context(), id, amount, idempotencyKey)
	h.writeResult(w, r, res, err)
}
