package repository

// Store hands out the repositories backing the ledger. None of them share a
// transaction: each call is atomic for the single record it touches.
type Store interface {
	Accounts() AccountRepository
	Contents() ContentRepository
	Entries() LedgerRepository
}
