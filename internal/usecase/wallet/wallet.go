package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

var ErrInvalidInput = errors.New("invalid account input")

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Service manages accounts and their read side: balance and history. Balance
// writes belong to the ledger engine.
type Service struct {
	accounts repository.AccountRepository
	entries  repository.LedgerRepository
	logger   *slog.Logger
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	return &Service{
		accounts: store.Accounts(),
		entries:  store.Entries(),
		logger:   logger,
	}
}

func (s *Service) Register(ctx context.Context) (*entity.Account, error) {
	acct := entity.NewAccount(uuid.New(), 0)
	if err := s.accounts.Create(ctx, acct); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	s.logger.Info("account registered", "account_id", acct.ID())
	return acct, nil
}

func (s *Service) Account(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}
	return acct, nil
}

func (s *Service) ConnectPayoutAccount(ctx context.Context, id uuid.UUID, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: payout account reference is required", ErrInvalidInput)
	}
	if err := s.accounts.SetPayoutAccount(ctx, id, ref); err != nil {
		return fmt.Errorf("account %s: %w", id, err)
	}
	s.logger.Info("payout account connected", "account_id", id)
	return nil
}

func (s *Service) SetBillingProfile(ctx context.Context, id uuid.UUID, profile entity.BillingProfile) error {
	profile.CustomerRef = strings.TrimSpace(profile.CustomerRef)
	profile.PaymentMethodRef = strings.TrimSpace(profile.PaymentMethodRef)
	if profile.IsZero() {
		return fmt.Errorf("%w: customer and payment method are required", ErrInvalidInput)
	}
	if err := s.accounts.SetBillingProfile(ctx, id, profile); err != nil {
		return fmt.Errorf("account %s: %w", id, err)
	}
	return nil
}

// History returns the account's entries newest first. Purchases of the
// account's own content read as sales.
func (s *Service) History(ctx context.Context, id uuid.UUID, limit int) ([]*entity.LedgerEntry, error) {
	if _, err := s.accounts.Get(ctx, id); err != nil {
		return nil, fmt.Errorf("account %s: %w", id, err)
	}

	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	entries, err := s.entries.ListByAccount(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	for i, e := range entries {
		entries[i] = e.AsSeenBy(id)
	}
	return entries, nil
}
