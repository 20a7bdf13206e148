// Package sandbox is an in-process payment processor for local runs. It
// honours idempotency keys the way a real processor does: a repeated key
// returns the first outcome without moving money again.
package sandbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/gateway"
)

type Operation string

const (
	OpCharge   Operation = "charge"
	OpTransfer Operation = "transfer"
)

type Call struct {
	Op          Operation
	Key         string
	Target      string
	Amount      entity.Money
	ExternalRef string
}

type outcome struct {
	call Call
	err  error
}

type Processor struct {
	mu       sync.Mutex
	outcomes map[string]outcome
	calls    []Call
	declined map[string]struct{}
	faults   []error
}

func New() *Processor {
	return &Processor{
		outcomes: make(map[string]outcome),
		declined: make(map[string]struct{}),
	}
}

// Decline makes every later charge against a customer, or transfer to a
// destination, fail with gateway.ErrRejected.
func (p *Processor) Decline(ref string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.declined[ref] = struct{}{}
}

// InjectFault makes the next call fail with err before any money moves.
// Faults are not remembered against the idempotency key.
func (p *Processor) InjectFault(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.faults = append(p.faults, err)
}

func (p *Processor) Charge(ctx context.Context, req gateway.ChargeRequest) (*gateway.Result, error) {
	if req.Billing.IsZero() {
		return nil, fmt.Errorf("%w: %v", gateway.ErrRejected, entity.ErrBillingProfileMissing)
	}
	return p.execute(ctx, Call{
		Op:     OpCharge,
		Key:    req.IdempotencyKey,
		Target: req.Billing.CustomerRef,
		Amount: req.Amount,
	})
}

func (p *Processor) Transfer(ctx context.Context, req gateway.TransferRequest) (*gateway.Result, error) {
	if req.DestinationRef == "" {
		return nil, fmt.Errorf("%w: missing destination", gateway.ErrRejected)
	}
	return p.execute(ctx, Call{
		Op:     OpTransfer,
		Key:    req.IdempotencyKey,
		Target: req.DestinationRef,
		Amount: req.Amount,
	})
}

func (p *Processor) execute(ctx context.Context, call Call) (*gateway.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnavailable, err)
	}
	if call.Amount <= 0 {
		return nil, fmt.Errorf("%w: %v", gateway.ErrRejected, entity.ErrNegativeAmount)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.faults) > 0 {
		err := p.faults[0]
		p.faults = p.faults[1:]
		return nil, err
	}

	dedupKey := string(call.Op) + ":" + call.Key
	if prev, ok := p.outcomes[dedupKey]; ok {
		if prev.err != nil {
			return nil, prev.err
		}
		return &gateway.Result{ExternalRef: prev.call.ExternalRef}, nil
	}

	if _, ok := p.declined[call.Target]; ok {
		err := fmt.Errorf("%w: %s declined", gateway.ErrRejected, call.Target)
		p.outcomes[dedupKey] = outcome{call: call, err: err}
		return nil, err
	}

	call.ExternalRef = refPrefix(call.Op) + uuid.NewString()
	p.outcomes[dedupKey] = outcome{call: call}
	p.calls = append(p.calls, call)
	return &gateway.Result{ExternalRef: call.ExternalRef}, nil
}

// Calls returns every call that moved money, in order.
func (p *Processor) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

// Total sums the money moved by op.
func (p *Processor) Total(op Operation) entity.Money {
	var sum entity.Money
	for _, c := range p.Calls() {
		if c.Op == op {
			sum += c.Amount
		}
	}
	return sum
}

func refPrefix(op Operation) string {
	if op == OpTransfer {
		return "tr_sbx_"
	}
	return "pi_sbx_"
}

var _ gateway.Gateway = (*Processor)(nil)
