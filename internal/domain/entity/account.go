package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInsufficientFunds         = errors.New("insufficient funds")
	ErrNegativeAmount            = errors.New("amount must be positive")
	ErrPayoutAccountNotConnected = errors.New("payout account not connected")
	ErrBillingProfileMissing     = errors.New("billing profile missing")
)

type BillingProfile struct {
	CustomerRef      string
	PaymentMethodRef string
}

func (b BillingProfile) IsZero() bool {
	return b.CustomerRef == "" || b.PaymentMethodRef == ""
}

type Account struct {
	id        uuid.UUID
	balance   Money
	payoutRef string
	billing   BillingProfile
	purchases map[uuid.UUID]time.Time
	createdAt time.Time
}

func NewAccount(id uuid.UUID, balance Money) *Account {
	return &Account{
		id:        id,
		balance:   balance,
		purchases: make(map[uuid.UUID]time.Time),
		createdAt: time.Now().UTC(),
	}
}

func ReconstructAccount(
	id uuid.UUID,
	balance Money,
	payoutRef string,
	billing BillingProfile,
	purchases map[uuid.UUID]time.Time,
	createdAt time.Time,
) *Account {
	if purchases == nil {
		purchases = make(map[uuid.UUID]time.Time)
	}
	return &Account{
		id:        id,
		balance:   balance,
		payoutRef: payoutRef,
		billing:   billing,
		purchases: purchases,
		createdAt: createdAt,
	}
}

func (a *Account) ID() uuid.UUID {
	return a.id
}

func (a *Account) Balance() Money {
	return a.balance
}

func (a *Account) PayoutRef() string {
	return a.payoutRef
}

func (a *Account) Billing() BillingProfile {
	return a.billing
}

func (a *Account) CreatedAt() time.Time {
	return a.createdAt
}

func (a *Account) HasPayoutAccount() bool {
	return a.payoutRef != ""
}

// PurchasedAt reports when access to contentID was granted.
func (a *Account) PurchasedAt(contentID uuid.UUID) (time.Time, bool) {
	at, ok := a.purchases[contentID]
	return at, ok
}

func (a *Account) Purchases() map[uuid.UUID]time.Time {
	out := make(map[uuid.UUID]time.Time, len(a.purchases))
	for id, at := range a.purchases {
		out[id] = at
	}
	return out
}

// Debit returns the balance after removing amount without mutating a.
func (a *Account) Debit(amount Money) (Money, error) {
	if amount <= 0 {
		return 0, ErrNegativeAmount
	}
	if a.balance < amount {
		return 0, ErrInsufficientFunds
	}
	return a.balance - amount, nil
}

// Credit returns the balance after adding amount without mutating a.
func (a *Account) Credit(amount Money) (Money, error) {
	if amount <= 0 {
		return 0, ErrNegativeAmount
	}
	return a.balance + amount, nil
}
