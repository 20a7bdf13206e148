// Package stripegateway charges buyers through PaymentIntents and pays sellers
// through Connect transfers.
package stripegateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"

	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
)

type Gateway struct {
	client *client.API
}

type Option func(*options)

type options struct {
	backends *stripe.Backends
}

// WithBackends points the client at a different API host, e.g. stripe-mock.
func WithBackends(b *stripe.Backends) Option {
	return func(o *options) { o.backends = b }
}

func NewGateway(apiKey string, opts ...Option) *Gateway {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	sc := &client.API{}
	sc.Init(apiKey, o.backends)
	return &Gateway{client: sc}
}

// Charge confirms an off-session PaymentIntent against the buyer's saved
// payment method. Anything short of "succeeded" is not a completed charge.
func (g *Gateway) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Result, error) {
	if req.Billing.IsZero() {
		return nil, fmt.Errorf("%w: no payment method on file", gateway.ErrRejected)
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(int64(req.Amount)),
		Currency:      stripe.String(req.Currency),
		Customer:      stripe.String(req.Billing.CustomerRef),
		PaymentMethod: stripe.String(req.Billing.PaymentMethodRef),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	pi, err := g.client.PaymentIntents.New(params)
	if err != nil {
		return nil, mapError(err)
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return &gateway.Result{ExternalRef: pi.ID}, nil
	case stripe.PaymentIntentStatusProcessing:
		return nil, fmt.Errorf("%w: payment intent %s still processing", gateway.ErrUnavailable, pi.ID)
	default:
		return nil, fmt.Errorf("%w: payment intent %s is %s", gateway.ErrRejected, pi.ID, pi.Status)
	}
}

func (g *Gateway) Transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Result, error) {
	if req.DestinationRef == "" {
		return nil, fmt.Errorf("%w: no destination account", gateway.ErrRejected)
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(int64(req.Amount)),
		Currency:    stripe.String(req.Currency),
		Destination: stripe.String(req.DestinationRef),
	}
	params.SetIdempotencyKey(req.IdempotencyKey)
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	tr, err := g.client.Transfers.New(params)
	if err != nil {
		return nil, mapError(err)
	}
	return &gateway.Result{ExternalRef: tr.ID}, nil
}

// mapError keeps stripe types out of the ledger. Only errors that prove the
// call had no effect map to ErrRejected; everything else leaves the outcome
// open.
func mapError(err error) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}

	switch stripeErr.Code {
	case stripe.ErrorCodeRateLimit, stripe.ErrorCodeLockTimeout, stripe.ErrorCodeIdempotencyKeyInUse:
		return fmt.Errorf("%w: %s", gateway.ErrUnavailable, stripeErr.Msg)
	}
	// A key reused with different parameters says nothing about whether the
	// first request moved money.
	if stripeErr.Type == stripe.ErrorTypeIdempotency {
		return fmt.Errorf("%w: %s", gateway.ErrUnavailable, stripeErr.Msg)
	}
	if stripeErr.HTTPStatusCode >= http.StatusInternalServerError || stripeErr.HTTPStatusCode == 0 {
		return fmt.Errorf("%w: %s", gateway.ErrUnavailable, stripeErr.Msg)
	}
	if stripeErr.Type == stripe.ErrorTypeCard {
		return fmt.Errorf("%w: card error %s (%s)", gateway.ErrRejected, stripeErr.Code, stripeErr.Msg)
	}
	return fmt.Errorf("%w: %s", gateway.ErrRejected, stripeErr.Msg)
}

var _ gateway.Gateway = (*Gateway)(nil)
