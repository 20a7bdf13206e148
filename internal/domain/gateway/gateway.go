package gateway

import (
	"context"
	"errors"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
)

var (
	// ErrRejected means the processor definitively refused the call; no money
	// moved.
	ErrRejected = errors.New("payment gateway rejected the request")
	// ErrUnavailable means the outcome is unknown. The same idempotency key
	// must be reused to learn or complete it.
	ErrUnavailable = errors.New("payment gateway unavailable")
)

type ChargeRequest struct {
	IdempotencyKey string
	Billing        entity.BillingProfile
	Amount         entity.Money
	Currency       string
	Description    string
	Metadata       map[string]string
}

type TransferRequest struct {
	IdempotencyKey string
	DestinationRef string
	Amount         entity.Money
	Currency       string
	Metadata       map[string]string
}

type Result struct {
	ExternalRef string
}

//go:generate mockgen -destination=../../usecase/ledger/mocks/mock_gateway.go -package=mocks github.com/Xausdorf/clout-ledger/internal/domain/gateway Gateway

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*Result, error)
	Transfer(ctx context.Context, req TransferRequest) (*Result, error)
}

// IsDefinitive reports whether err settles the call as not having happened.
func IsDefinitive(err error) bool {
	return errors.Is(err, ErrRejected)
}
