package entity

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidContent = errors.New("invalid content")
	ErrAccessDenied   = errors.New("content not purchased")
	ErrSelfPurchase   = errors.New("owners cannot purchase their own content")
)

type ContentType string

const (
	ContentPhoto ContentType = "photo"
	ContentVideo ContentType = "video"
)

func (t ContentType) Valid() bool {
	return t == ContentPhoto || t == ContentVideo
}

type ContentItem struct {
	id            uuid.UUID
	ownerID       uuid.UUID
	title         string
	description   string
	contentType   ContentType
	contentURL    string
	thumbnailURL  string
	tags          []string
	price         Money
	downloadCount int64
	createdAt     time.Time
}

type ContentDraft struct {
	OwnerID      uuid.UUID
	Title        string
	Description  string
	Type         ContentType
	ContentURL   string
	ThumbnailURL string
	Tags         []string
	Price        Money
}

func NewContentItem(d ContentDraft) (*ContentItem, error) {
	title := strings.TrimSpace(d.Title)
	switch {
	case d.OwnerID == uuid.Nil:
		return nil, errors.Join(ErrInvalidContent, errors.New("owner is required"))
	case title == "":
		return nil, errors.Join(ErrInvalidContent, errors.New("title is required"))
	case !d.Type.Valid():
		return nil, errors.Join(ErrInvalidContent, errors.New("unknown content type"))
	case d.ContentURL == "":
		return nil, errors.Join(ErrInvalidContent, errors.New("content url is required"))
	case !d.Price.IsPositive():
		return nil, errors.Join(ErrInvalidContent, ErrNegativeAmount)
	}

	return &ContentItem{
		id:           uuid.New(),
		ownerID:      d.OwnerID,
		title:        title,
		description:  d.Description,
		contentType:  d.Type,
		contentURL:   d.ContentURL,
		thumbnailURL: d.ThumbnailURL,
		tags:         normalizeTags(d.Tags),
		price:        d.Price,
		createdAt:    time.Now().UTC(),
	}, nil
}

func ReconstructContentItem(
	id, ownerID uuid.UUID,
	title, description string,
	contentType ContentType,
	contentURL, thumbnailURL string,
	tags []string,
	price Money,
	downloadCount int64,
	createdAt time.Time,
) *ContentItem {
	return &ContentItem{
		id:            id,
		ownerID:       ownerID,
		title:         title,
		description:   description,
		contentType:   contentType,
		contentURL:    contentURL,
		thumbnailURL:  thumbnailURL,
		tags:          tags,
		price:         price,
		downloadCount: downloadCount,
		createdAt:     createdAt,
	}
}

func (c *ContentItem) ID() uuid.UUID {
	return c.id
}

func (c *ContentItem) OwnerID() uuid.UUID {
	return c.ownerID
}

func (c *ContentItem) Title() string {
	return c.title
}

func (c *ContentItem) Description() string {
	return c.description
}

func (c *ContentItem) Type() ContentType {
	return c.contentType
}

func (c *ContentItem) ContentURL() string {
	return c.contentURL
}

func (c *ContentItem) ThumbnailURL() string {
	return c.thumbnailURL
}

func (c *ContentItem) Tags() []string {
	return append([]string(nil), c.tags...)
}

func (c *ContentItem) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range c.tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (c *ContentItem) Price() Money {
	return c.price
}

func (c *ContentItem) DownloadCount() int64 {
	return c.downloadCount
}

func (c *ContentItem) CreatedAt() time.Time {
	return c.createdAt
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
