package handlers

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
)

type watchlistResponse struct {
	Items []watchlist.Item `json:"items"`
	Total int              `json:"total"`
	Sort  string           `json:"sort"`
}

func (h *Handler) getWatchlist(w http.ResponseWriter, r *http.Request) error {
	items, err := h.watchlist.List(r.Context())
	if err != nil {
		return internal(err)
	}

	q := r.URL.Query()
	sort := watchlist.ParseSort(q.Get("sort"))
	writeJSON(w, http.StatusOK, watchlistResponse{
		Items: watchlist.Apply(items, q.Get("q"), sort),
		Total: len(items),
		Sort:  sort.String(),
	})
	return nil
}

// addRequest carries either a full show from a results list or just its id.
type addRequest struct {
	Show *tmdb.Show `json:"show"`
	ID   int64      `json:"id"`
}

type addResponse struct {
	Added bool           `json:"added"`
	Item  watchlist.Item `json:"item"`
}

func (h *Handler) postWatchlist(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req addRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	var show tmdb.Show
	switch {
	case req.Show != nil:
		show = *req.Show
	case req.ID > 0:
		show = tmdb.Show{ID: req.ID}
	}
	if show.ID <= 0 {
		return badRequest("show id required")
	}

	up, err := requestUpstream(r)
	if err != nil {
		return err
	}
	detail, err := up.Details(ctx, show.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "watchlist add without details",
			slog.Int64("tmdb_id", show.ID), logger.Error(err))
	}
	if detail != nil && req.Show == nil {
		show = detail.Show
	}
	if show.Name == "" {
		return badRequest("show name required")
	}

	item := watchlist.NewItem(show, detail, time.Now())
	added, err := h.watchlist.Add(ctx, item)
	if err != nil {
		return internal(err)
	}
	if !added {
		if existing, ok := h.findItem(r, show.ID); ok {
			item = existing
		}
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	writeJSON(w, status, addResponse{Added: added, Item: item})
	return nil
}

func (h *Handler) findItem(r *http.Request, id int64) (watchlist.Item, bool) {
	items, err := h.watchlist.List(r.Context())
	if err != nil {
		return watchlist.Item{}, false
	}
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return watchlist.Item{}, false
}

func (h *Handler) deleteWatchlistItem(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}

	removed, err := h.watchlist.Remove(r.Context(), id)
	if err != nil {
		return internal(err)
	}
	if !removed {
		return notFound("not found")
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

type exportPayload struct {
	ExportedAt string           `json:"exported_at"`
	Items      []watchlist.Item `json:"items"`
}

func (h *Handler) postWatchlistExport(w http.ResponseWriter, r *http.Request) error {
	items, err := h.watchlist.List(r.Context())
	if err != nil {
		return internal(err)
	}

	payload := exportPayload{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Items:      watchlist.Apply(items, "", watchlist.DefaultSort),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return internal(err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=watchlist.json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed", logger.Error(err))
	}
	return nil
}
