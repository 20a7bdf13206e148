package http

import (
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/usecase/ledger"
)

type AccountResponse struct {
	ID               string    `json:"id"`
	Balance          string    `json:"balance"`
	PayoutConnected  bool      `json:"payout_connected"`
	BillingConnected bool      `json:"billing_connected"`
	CreatedAt        time.Time `json:"created_at"`
}

func newAccountResponse(a *entity.Account) AccountResponse {
	return AccountResponse{
		ID:               a.ID().String(),
		Balance:          a.Balance().String(),
		PayoutConnected:  a.HasPayoutAccount(),
		BillingConnected: !a.Billing().IsZero(),
		CreatedAt:        a.CreatedAt(),
	}
}

type PayoutAccountRequest struct {
	AccountRef string `json:"account_ref"`
}

type BillingProfileRequest struct {
	CustomerRef      string `json:"customer_ref"`
	PaymentMethodRef string `json:"payment_method_ref"`
}

type PayoutRequest struct {
	Amount string `json:"amount"`
}

type PublishRequest struct {
	OwnerID      string   `json:"owner_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	ContentURL   string   `json:"content_url"`
	ThumbnailURL string   `json:"thumbnail_url"`
	Tags         []string `json:"tags"`
	Price        string   `json:"price"`
}

type PurchaseRequest struct {
	BuyerID string `json:"buyer_id"`
}

type DownloadRequest struct {
	ViewerID string `json:"viewer_id"`
}

type DownloadResponse struct {
	ContentURL string `json:"content_url"`
}

type AccessResponse struct {
	State string     `json:"state"`
	At    *time.Time `json:"at,omitempty"`
}

type ContentResponse struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"owner_id"`
	Title         string         `json:"title"`
	Description   string         `json:"description,omitempty"`
	Type          string         `json:"type"`
	ContentURL    string         `json:"content_url,omitempty"`
	ThumbnailURL  string         `json:"thumbnail_url,omitempty"`
	Tags          []string       `json:"tags"`
	Price         string         `json:"price"`
	DownloadCount int64          `json:"download_count"`
	CreatedAt     time.Time      `json:"created_at"`
	Access        AccessResponse `json:"access"`
}

// newContentResponse hides the content URL from viewers without access.
func newContentResponse(v entity.ContentView) ContentResponse {
	item := v.Item
	resp := ContentResponse{
		ID:            item.ID().String(),
		OwnerID:       item.OwnerID().String(),
		Title:         item.Title(),
		Description:   item.Description(),
		Type:          string(item.Type()),
		ThumbnailURL:  item.ThumbnailURL(),
		Tags:          item.Tags(),
		Price:         item.Price().String(),
		DownloadCount: item.DownloadCount(),
		CreatedAt:     item.CreatedAt(),
		Access:        AccessResponse{State: string(v.Access.Kind)},
	}
	if v.Access.Granted() {
		resp.ContentURL = item.ContentURL()
		at := v.Access.At
		resp.Access.At = &at
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	return resp
}

type EntryResponse struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	AccountID      string     `json:"account_id"`
	CounterpartyID string     `json:"counterparty_id,omitempty"`
	ContentID      string     `json:"content_id,omitempty"`
	Amount         string     `json:"amount"`
	Fee            string     `json:"fee"`
	Currency       string     `json:"currency"`
	ExternalRef    string     `json:"external_ref,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

func newEntryResponse(e *entity.LedgerEntry) EntryResponse {
	resp := EntryResponse{
		ID:            e.ID().String(),
		Kind:          string(e.Kind()),
		Status:        string(e.Status()),
		AccountID:     e.AccountID().String(),
		Amount:        e.Amount().String(),
		Fee:           e.Fee().String(),
		Currency:      e.Currency(),
		ExternalRef:   e.ExternalRef(),
		FailureReason: e.FailureReason(),
		CreatedAt:     e.CreatedAt(),
	}
	if e.Kind() == entity.KindSale {
		resp.Amount = e.SellerCredit().String()
	}
	if id := e.CounterpartyID(); id != uuid.Nil {
		resp.CounterpartyID = id.String()
	}
	if id := e.ContentID(); id != uuid.Nil {
		resp.ContentID = id.String()
	}
	if at := e.FinalizedAt(); !at.IsZero() {
		resp.FinalizedAt = &at
	}
	return resp
}

type ResultResponse struct {
	Outcome  string         `json:"outcome"`
	Replayed bool           `json:"replayed"`
	Entry    *EntryResponse `json:"entry,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func newResultResponse(res *ledger.Result, err error) ResultResponse {
	resp := ResultResponse{
		Outcome:  string(res.Outcome),
		Replayed: res.Replayed,
	}
	if res.Entry != nil {
		entry := newEntryResponse(res.Entry)
		resp.Entry = &entry
	}
	if err != nil {
		resp.Error = err.Error()
	}
	return resp
}
