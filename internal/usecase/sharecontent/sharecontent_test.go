package sharecontent_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
	"github.com/Xausdorf/clout-ledger/internal/domain/share"
	"github.com/Xausdorf/clout-ledger/internal/infrastructure/memory"
	"github.com/Xausdorf/clout-ledger/internal/usecase/sharecontent"
	"github.com/Xausdorf/clout-ledger/internal/usecase/sharecontent/mocks"
)

func TestShareContent_Execute(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	contents := memory.NewContentRepo()
	item, err := entity.NewContentItem(entity.ContentDraft{
		OwnerID:    uuid.New(),
		Title:      "Harbour at dawn",
		Type:       entity.ContentVideo,
		ContentURL: "https://cdn.example.com/harbour.mp4",
		Price:      1_250,
	})
	require.NoError(t, err)
	require.NoError(t, contents.Create(context.Background(), item))

	generator := mocks.NewMockGenerator(ctrl)
	generator.EXPECT().Generate(share.Data{
		ContentID: item.ID().String(),
		Title:     "Harbour at dawn",
		Price:     "12.50",
		Currency:  "usd",
		URL:       "https://clout.example.com/content/" + item.ID().String(),
	}).Return([]byte("png"), nil)

	uc := sharecontent.NewUseCase(contents, generator, "https://clout.example.com/", "usd")
	out, err := uc.Execute(context.Background(), item.ID())

	require.NoError(t, err)
	assert.Equal(t, []byte("png"), out)
}

func TestShareContent_Execute_UnknownContent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	uc := sharecontent.NewUseCase(memory.NewContentRepo(), mocks.NewMockGenerator(ctrl), "https://clout.example.com", "usd")
	_, err := uc.Execute(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, repository.ErrNotFound))
}
