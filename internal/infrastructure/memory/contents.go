package memory

import (
	"context"
	"iter"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

type ContentRepo struct {
	mu        sync.RWMutex
	items     map[uuid.UUID]*entity.ContentItem
	downloads map[uuid.UUID]int64
}

func NewContentRepo() *ContentRepo {
	return &ContentRepo{
		items:     make(map[uuid.UUID]*entity.ContentItem),
		downloads: make(map[uuid.UUID]int64),
	}
}

func (r *ContentRepo) Create(_ context.Context, item *entity.ContentItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID()]; ok {
		return repository.ErrDuplicateKey
	}
	r.items[item.ID()] = item
	r.downloads[item.ID()] = item.DownloadCount()
	return nil
}

func (r *ContentRepo) Get(_ context.Context, id uuid.UUID) (*entity.ContentItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.snapshot(item), nil
}

func (r *ContentRepo) IncrementDownloadCount(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return repository.ErrNotFound
	}
	r.downloads[id]++
	return nil
}

func (r *ContentRepo) List(ctx context.Context, filter repository.ContentFilter) iter.Seq2[*entity.ContentItem, error] {
	return func(yield func(*entity.ContentItem, error) bool) {
		r.mu.RLock()
		matched := make([]*entity.ContentItem, 0, len(r.items))
		for _, item := range r.items {
			if matches(item, filter) {
				matched = append(matched, r.snapshot(item))
			}
		}
		r.mu.RUnlock()

		sort.Slice(matched, func(i, j int) bool {
			a, b := matched[i], matched[j]
			if !a.CreatedAt().Equal(b.CreatedAt()) {
				return a.CreatedAt().After(b.CreatedAt())
			}
			return a.ID().String() > b.ID().String()
		})

		for i, item := range matched {
			if filter.Limit > 0 && i >= filter.Limit {
				return
			}
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

func (r *ContentRepo) snapshot(item *entity.ContentItem) *entity.ContentItem {
	return entity.ReconstructContentItem(
		item.ID(), item.OwnerID(),
		item.Title(), item.Description(),
		item.Type(),
		item.ContentURL(), item.ThumbnailURL(),
		item.Tags(),
		item.Price(),
		r.downloads[item.ID()],
		item.CreatedAt(),
	)
}

func matches(item *entity.ContentItem, f repository.ContentFilter) bool {
	if f.OwnerID != uuid.Nil && item.OwnerID() != f.OwnerID {
		return false
	}
	if f.Type != "" && item.Type() != f.Type {
		return false
	}
	if f.Tag != "" && !item.HasTag(f.Tag) {
		return false
	}
	return true
}
