package http

import (
	"fmt"
	"net/http"

	"github.com/Xausdorf/clout-ledger/internal/domain/entity"
	"github.com/Xausdorf/clout-ledger/internal/domain/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func (h *Handler) PublishContent(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	ownerID, err := parseID("owner_id", req.OwnerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	price, err := entity.ParseMoney(req.Price)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	item, err := h.catalog.Publish(r.Context(), entity.ContentDraft{
		OwnerID:      ownerID,
		Title:        req.Title,
		Description:  req.Description,
		Type:         entity.ContentType(req.Type),
		ContentURL:   req.ContentURL,
		ThumbnailURL: req.ThumbnailURL,
		Tags:         req.Tags,
		Price:        price,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view := entity.ContentView{
		Item:   item,
		Access: entity.Access{Kind: entity.AccessOwned, At: item.CreatedAt()},
	}
	writeJSON(w, http.StatusCreated, newContentResponse(view))
}

func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	viewerID, err := optionalID("viewer_id", q.Get("viewer_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ownerID, err := optionalID("owner_id", q.Get("owner_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	contentType := entity.ContentType(q.Get("type"))
	if contentType != "" && !contentType.Valid() {
		h.fail(w, r, fmt.Errorf("%w: unknown content type %q", errBadRequest, contentType))
		return
	}
	limit, err := queryLimit(r, defaultPageSize, maxPageSize)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	filter := repository.ContentFilter{
		OwnerID: ownerID,
		Tag:     q.Get("tag"),
		Type:    contentType,
		Limit:   limit,
	}
	out := make([]ContentResponse, 0, limit)
	for view, err := range h.catalog.List(r.Context(), viewerID, filter) {
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, newContentResponse(view))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	viewerID, err := optionalID("viewer_id", r.URL.Query().Get("viewer_id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	view, err := h.catalog.Get(r.Context(), viewerID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newContentResponse(view))
}

func (h *Handler) ShareContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	png, err := h.shareUC.Execute(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *Handler) PurchaseContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req PurchaseRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	buyerID, err := parseID("buyer_id", req.BuyerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.engine.Purchase(r.Context(), buyerID, id)
	h.writeResult(w, r, res, err)
}

func (h *Handler) DownloadContent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var req DownloadRequest
	if err := decode(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	viewerID, err := optionalID("viewer_id", req.ViewerID)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	url, err := h.catalog.Download(r.Context(), viewerID, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DownloadResponse{ContentURL: url})
}
