package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/usecase/catalog"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
	"github.com/Xausdorf/clout-ledger/internal/usecase/sharecontent"
	"github.com/Xausdorf/clout-ledger/internal/usecase/wallet"
)

const maxBodyBytes = 1 << 20

var errBadRequest = errors.New("bad request")

type Handler struct {
	engine  *ledger.Engine
	catalog *catalog.Service
	wallet  *wallet.Service
	shareUC *sharecontent.UseCase
	logger  *slog.Logger
}

func NewHandler(
	engine *ledger.Engine,
	catalog *catalog.Service,
	wallet *wallet.Service,
	shareUC *sharecontent.UseCase,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalog,
		wallet:  wallet,
		shareUC: shareUC,
		logger:  logger,
	}
}

// writeResult answers a ledger operation. Outcomes that carry an entry are
// always returned with it, including rejections and pending reconciliations.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res *ledger.Result, err error) {
	if res == nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	switch res.Outcome {
	case ledger.OutcomeCompleted:
		if !res.Replayed {
			status = http.StatusCreated
		}
	case ledger.OutcomeReconciliationRequired:
		status = http.StatusAccepted
		h.logger.Warn("ledger operation pending reconciliation",
			"path", r.URL.Path, "error", err)
	case ledger.OutcomeRejected:
		status = statusFor(err)
	}
	writeJSON(w, status, newResultResponse(res, err))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			writeError(w, status, "internal error")
			return
		}
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, gateway.ErrRejected), errors.Is(err, ledger.ErrEntryFailed):
		return http.StatusPaymentRequired
	case errors.Is(err, entity.ErrPayoutAccountNotConnected),
		errors.Is(err, entity.ErrBillingProfileMissing),
		errors.Is(err, entity.ErrSelfPurchase),
		errors.Is(err, ledger.ErrConcurrentUpdateExhausted):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, entity.ErrInvalidContent),
		errors.Is(err, entity.ErrInvalidMoney),
		errors.Is(err, entity.ErrTooPrecise),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidRequest),
		errors.Is(err, wallet.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json: %v", errBadRequest, err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return parseID("id", chi.URLParam(r, "id"))
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", errBadRequest, field)
	}
	return id, nil
}

// optionalID parses raw, treating an empty value as uuid.Nil.
func optionalID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	return parseID(field, raw)
}

func queryLimit(r *http.Request, fallback, ceiling int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
	}
	return min(n, ceiling), nil
}
