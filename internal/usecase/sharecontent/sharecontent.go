package sharecontent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/domain/share"
)

type UseCase struct {
	contents  repository.ContentRepository
	generator share.Generator
	baseURL   string
	currency  string
}

func NewUseCase(contents repository.ContentRepository, generator share.Generator, baseURL, currency string) *UseCase {
	return &UseCase{
		contents:  contents,
		generator: generator,
		baseURL:   strings.TrimRight(baseURL, "/"),
		currency:  currency,
	}
}

func (uc *UseCase) Execute(ctx context.Context, contentID uuid.UUID) ([]byte, error) {
	item, err := uc.contents.Get(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("content %s: %w", contentID, err)
	}

	return uc.generator.Generate(share.Data{
		ContentID: item.ID().String(),
		Title:     item.Title(),
		Price:     item.Price().String(),
		Currency:  uc.currency,
		URL:       uc.baseURL + "/content/" + item.ID().String(),
	})
}
