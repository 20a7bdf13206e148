package memory_test

import (
	"testing"

	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository/repotest"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/memory"
)

func TestStore(t *testing.T) {
	repotest.Run(t, func(*testing.T) repository.Store {
		return memory.NewStore()
	})
}
