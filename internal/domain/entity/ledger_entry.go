package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrEntryFinalized = errors.New("ledger entry already finalized")

type EntryKind string

const (
	KindPurchase EntryKind = "purchase"
	KindSale     EntryKind = "sale"
	KindPayout   EntryKind = "payout"
)

type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
)

func (s EntryStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// PostingLeg names one balance write made on behalf of an entry.
type PostingLeg string

const (
	LegCredit PostingLeg = "credit"
	LegDebit  PostingLeg = "debit"
	LegRefund PostingLeg = "refund"
)

type LedgerEntry struct {
	id             uuid.UUID
	key            string
	accountID      uuid.UUID
	contentID      uuid.UUID
	counterpartyID uuid.UUID
	amount         Money
	fee            Money
	currency       string
	kind           EntryKind
	status         EntryStatus
	billing        BillingProfile
	destinationRef string
	externalRef    string
	failureReason  string
	createdAt      time.Time
	finalizedAt    time.Time
}

func PurchaseKey(buyerID, contentID uuid.UUID) string {
	return fmt.Sprintf("purchase:%s:%s", buyerID, contentID)
}

func PayoutKey(sellerID uuid.UUID, requestKey string) string {
	return fmt.Sprintf("payout:%s:%s", sellerID, requestKey)
}

// NewPurchaseEntry records the billing profile the buyer is charged with.
// Every charge attempt for the entry uses it, whatever the account holds later.
func NewPurchaseEntry(buyerID uuid.UUID, billing BillingProfile, item *ContentItem, fee Money, currency string) *LedgerEntry {
	return &LedgerEntry{
		id:             uuid.New(),
		key:            PurchaseKey(buyerID, item.ID()),
		accountID:      buyerID,
		contentID:      item.ID(),
		counterpartyID: item.OwnerID(),
		amount:         item.Price(),
		fee:            fee,
		currency:       currency,
		kind:           KindPurchase,
		billing:        billing,
		status:         StatusPending,
		createdAt:      time.Now().UTC(),
	}
}

// NewPayoutEntry records the payout account the transfer goes to.
func NewPayoutEntry(sellerID uuid.UUID, destinationRef, requestKey string, amount Money, currency string) *LedgerEntry {
	return &LedgerEntry{
		id:             uuid.New(),
		key:            PayoutKey(sellerID, requestKey),
		accountID:      sellerID,
		amount:         amount,
		currency:       currency,
		kind:           KindPayout,
		destinationRef: destinationRef,
		status:         StatusPending,
		createdAt:      time.Now().UTC(),
	}
}

func ReconstructLedgerEntry(
	id uuid.UUID,
	key string,
	accountID, contentID, counterpartyID uuid.UUID,
	amount, fee Money,
	currency string,
	kind EntryKind,
	status EntryStatus,
	billing BillingProfile,
	destinationRef string,
	externalRef, failureReason string,
	createdAt, finalizedAt time.Time,
) *LedgerEntry {
	return &LedgerEntry{
		id:             id,
		key:            key,
		accountID:      accountID,
		contentID:      contentID,
		counterpartyID: counterpartyID,
		amount:         amount,
		fee:            fee,
		currency:       currency,
		kind:           kind,
		status:         status,
		billing:        billing,
		destinationRef: destinationRef,
		externalRef:    externalRef,
		failureReason:  failureReason,
		createdAt:      createdAt,
		finalizedAt:    finalizedAt,
	}
}

func (e *LedgerEntry) ID() uuid.UUID {
	return e.id
}

// Key is the business idempotency key. At most one non-failed entry may
// exist per key.
func (e *LedgerEntry) Key() string {
	return e.key
}

func (e *LedgerEntry) AccountID() uuid.UUID {
	return e.accountID
}

func (e *LedgerEntry) ContentID() uuid.UUID {
	return e.contentID
}

func (e *LedgerEntry) CounterpartyID() uuid.UUID {
	return e.counterpartyID
}

func (e *LedgerEntry) Amount() Money {
	return e.amount
}

func (e *LedgerEntry) Fee() Money {
	return e.fee
}

// SellerCredit is what a purchase adds to the counterparty's balance.
func (e *LedgerEntry) SellerCredit() Money {
	return e.amount - e.fee
}

func (e *LedgerEntry) Currency() string {
	return e.currency
}

func (e *LedgerEntry) Kind() EntryKind {
	return e.kind
}

func (e *LedgerEntry) Status() EntryStatus {
	return e.status
}

// Billing is the payment method a purchase is charged with.
func (e *LedgerEntry) Billing() BillingProfile {
	return e.billing
}

// DestinationRef is the payout account a payout is transferred to.
func (e *LedgerEntry) DestinationRef() string {
	return e.destinationRef
}

func (e *LedgerEntry) ExternalRef() string {
	return e.externalRef
}

func (e *LedgerEntry) FailureReason() string {
	return e.failureReason
}

func (e *LedgerEntry) CreatedAt() time.Time {
	return e.createdAt
}

func (e *LedgerEntry) FinalizedAt() time.Time {
	return e.finalizedAt
}

// IdempotencyKey is handed to the payment processor for every call made on
// behalf of this entry, including retries and resumptions.
func (e *LedgerEntry) IdempotencyKey() string {
	return e.id.String()
}

func (e *LedgerEntry) Posting(leg PostingLeg) string {
	return e.id.String() + ":" + string(leg)
}

func (e *LedgerEntry) AttachExternalRef(ref string) error {
	if e.status.Terminal() {
		return ErrEntryFinalized
	}
	e.externalRef = ref
	return nil
}

func (e *LedgerEntry) Complete(at time.Time) error {
	if e.status.Terminal() {
		return ErrEntryFinalized
	}
	e.status = StatusCompleted
	e.finalizedAt = at.UTC()
	return nil
}

func (e *LedgerEntry) Fail(reason string, at time.Time) error {
	if e.status.Terminal() {
		return ErrEntryFinalized
	}
	e.status = StatusFailed
	e.failureReason = reason
	e.finalizedAt = at.UTC()
	return nil
}

// AsSeenBy projects the entry onto viewer's history. A purchase viewed by its
// seller reads as a sale of the seller's net credit.
func (e *LedgerEntry) AsSeenBy(viewer uuid.UUID) *LedgerEntry {
	if e.kind != KindPurchase || viewer != e.counterpartyID {
		return e
	}
	sale := *e
	sale.kind = KindSale
	sale.accountID = e.counterpartyID
	sale.counterpartyID = e.accountID
	sale.billing = BillingProfile{}
	return &sale
}
