package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

const listPageSize = 100

const contentColumns = `id, owner_id, title, description, content_type, content_url, thumbnail_url,
	tags, price, download_count, created_at`

type ContentRepo struct {
	pool *pgxpool.Pool
}

func (r *ContentRepo) Create(ctx context.Context, item *entity.ContentItem) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO content_items (`+contentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		item.ID(), item.OwnerID(), item.Title(), item.Description(), string(item.Type()),
		item.ContentURL(), item.ThumbnailURL(), item.Tags(), int64(item.Price()),
		item.DownloadCount(), item.CreatedAt(),
	)
	switch {
	case hasCode(err, codeUniqueViolation):
		return repository.ErrDuplicateKey
	case hasCode(err, codeForeignKeyViolation):
		return repository.ErrNotFound
	}
	return err
}

func (r *ContentRepo) Get(ctx context.Context, id uuid.UUID) (*entity.ContentItem, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id)
	item, err := scanContent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return item, err
}

func (r *ContentRepo) IncrementDownloadCount(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE content_items SET download_count = download_count + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ContentRepo) List(ctx context.Context, filter repository.ContentFilter) iter.Seq2[*entity.ContentItem, error] {
	return func(yield func(*entity.ContentItem, error) bool) {
		var (
			cursorAt time.Time
			cursorID uuid.UUID
			emitted  int
		)
		for {
			size := listPageSize
			if filter.Limit > 0 {
				size = min(size, filter.Limit-emitted)
			}
			if size <= 0 {
				return
			}

			page, err := r.page(ctx, filter, cursorAt, cursorID, size)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
				emitted++
			}
			if len(page) < size {
				return
			}
			last := page[len(page)-1]
			cursorAt, cursorID = last.CreatedAt(), last.ID()
		}
	}
}

func (r *ContentRepo) page(
	ctx context.Context,
	filter repository.ContentFilter,
	cursorAt time.Time,
	cursorID uuid.UUID,
	size int,
) ([]*entity.ContentItem, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != uuid.Nil {
		where = append(where, "owner_id = "+arg(filter.OwnerID))
	}
	if filter.Type != "" {
		where = append(where, "content_type = "+arg(string(filter.Type)))
	}
	if filter.Tag != "" {
		where = append(where, arg(strings.ToLower(filter.Tag))+" = ANY(tags)")
	}
	if cursorID != uuid.Nil {
		where = append(where, fmt.Sprintf("(created_at, id) < (%s, %s)", arg(cursorAt), arg(cursorID)))
	}

	sql := `SELECT ` + contentColumns + ` FROM content_items`
	if len(where) > 0 {
		sql += ` WHERE ` + strings.Join(where, " AND ")
	}
	sql += ` ORDER BY created_at DESC, id DESC LIMIT ` + arg(size)

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.ContentItem, 0, size)
	for rows.Next() {
		item, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanContent(row pgx.Row) (*entity.ContentItem, error) {
	var (
		id, ownerID                                           uuid.UUID
		title, description, contentType, contentURL, thumbURL string
		tags                                                  []string
		price, downloads                                      int64
		createdAt                                             time.Time
	)
	if err := row.Scan(
		&id, &ownerID, &title, &description, &contentType, &contentURL, &thumbURL,
		&tags, &price, &downloads, &createdAt,
	); err != nil {
		return nil, err
	}
	return entity.ReconstructContentItem(
		id, ownerID,
		title, description,
		entity.ContentType(contentType),
		contentURL, thumbURL,
		tags,
		entity.Money(price),
		downloads,
		createdAt,
	), nil
}
