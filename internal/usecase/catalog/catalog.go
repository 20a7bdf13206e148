package catalog

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

const downloadCountTimeout = 5 * time.Second

// Service serves the marketplace side of content: publishing, browsing with
// the viewer's access state, and downloads.
type Service struct {
	accounts repository.AccountRepository
	contents repository.ContentRepository
	logger   *slog.Logger

	pending sync.WaitGroup
}

func NewService(store repository.Store, logger *slog.Logger) *Service {
	return &Service{
		accounts: store.Accounts(),
		contents: store.Contents(),
		logger:   logger,
	}
}

func (s *Service) Publish(ctx context.Context, draft entity.ContentDraft) (*entity.ContentItem, error) {
	if _, err := s.accounts.Get(ctx, draft.OwnerID); err != nil {
		return nil, fmt.Errorf("owner %s: %w", draft.OwnerID, err)
	}

	item, err := entity.NewContentItem(draft)
	if err != nil {
		return nil, err
	}
	if err := s.contents.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}

	s.logger.Info("content published",
		"content_id", item.ID(), "owner_id", item.OwnerID(), "price", item.Price().String())
	return item, nil
}

// List yields matching items newest first, each paired with viewerID's access
// state. uuid.Nil browses anonymously.
func (s *Service) List(ctx context.Context, viewerID uuid.UUID, filter repository.ContentFilter) iter.Seq2[entity.ContentView, error] {
	return func(yield func(entity.ContentView, error) bool) {
		viewer, err := s.viewer(ctx, viewerID)
		if err != nil {
			yield(entity.ContentView{}, err)
			return
		}

		for item, err := range s.contents.List(ctx, filter) {
			if err != nil {
				yield(entity.ContentView{}, err)
				return
			}
			if !yield(entity.NewContentView(viewer, item), nil) {
				return
			}
		}
	}
}

func (s *Service) Get(ctx context.Context, viewerID, contentID uuid.UUID) (entity.ContentView, error) {
	viewer, err := s.viewer(ctx, viewerID)
	if err != nil {
		return entity.ContentView{}, err
	}
	item, err := s.contents.Get(ctx, contentID)
	if err != nil {
		return entity.ContentView{}, fmt.Errorf("content %s: %w", contentID, err)
	}
	return entity.NewContentView(viewer, item), nil
}

// Download returns the content URL to a viewer holding access. The download
// counter is bumped in the background and a failure there never fails the
// download.
func (s *Service) Download(ctx context.Context, viewerID, contentID uuid.UUID) (string, error) {
	view, err := s.Get(ctx, viewerID, contentID)
	if err != nil {
		return "", err
	}
	if !view.Access.Granted() {
		return "", entity.ErrAccessDenied
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadCountTimeout)
		defer cancel()
		if err := s.contents.IncrementDownloadCount(ctx, contentID); err != nil {
			s.logger.Warn("failed to count download", "content_id", contentID, "error", err)
		}
	}()

	return view.Item.ContentURL(), nil
}

// Wait blocks until background download counts have been written.
func (s *Service) Wait() {
	s.pending.Wait()
}

func (s *Service) viewer(ctx context.Context, id uuid.UUID) (*entity.Account, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("viewer %s: %w", id, err)
	}
	return acct, nil
}
