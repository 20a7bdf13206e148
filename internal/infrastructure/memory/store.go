// Package memory keeps ledger state in process. It mirrors the conditional
// write semantics of the Postgres store and backs local runs and tests.
package memory

import "github.com/Xausdorf/clout-ledger/internal/domain/repository"

type Store struct {
	accounts *AccountRepo
	contents *ContentRepo
	entries  *LedgerRepo
}

func NewStore() *Store {
	return &Store{
		accounts: NewAccountRepo(),
		contents: NewContentRepo(),
		entries:  NewLedgerRepo(),
	}
}

func (s *Store) Accounts() repository.AccountRepository {
	return s.accounts
}

func (s *Store) Contents() repository.ContentRepository {
	return s.contents
}

func (s *Store) Entries() repository.LedgerRepository {
	return s.entries
}

var (
	_ repository.Store             = (*Store)(nil)
	_ repository.AccountRepository = (*AccountRepo)(nil)
	_ repository.ContentRepository = (*ContentRepo)(nil)
	_ repository.LedgerRepository  = (*LedgerRepo)(nil)
)
