package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/handsomefox/tv-discover/internal/events"
	"github.com/handsomefox/tv-discover/internal/filter"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/session"
)

type sessionEntry struct {
	session  *session.Session
	lastSeen time.Time
	// streams counts attached event streams. Such sessions are never idle.
	streams int
}

// dashboard returns the session for the caller, creating and starting it on
// first use. Idle sessions are closed on the way.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) *session.Session {
	return h.dashboardEntry(w, r, false).session
}

// attachStream is dashboard for an event stream. The session stays exempt from
// idle eviction until detach is called.
func (h *Handler) attachStream(w http.ResponseWriter, r *http.Request) (s *session.Session, detach func()) {
	e := h.dashboardEntry(w, r, true)
	return e.session, func() {
		h.sessMu.Lock()
		defer h.sessMu.Unlock()
		e.streams--
		e.lastSeen = time.Now()
	}
}

func (h *Handler) dashboardEntry(w http.ResponseWriter, r *http.Request, stream bool) *sessionEntry {
	id := h.sessionID(w, r)
	now := time.Now()

	h.sessMu.Lock()
	var expired []*session.Session
	for key, e := range h.sessions {
		if key != id && e.streams == 0 && now.Sub(e.lastSeen) > h.sessionTTL {
			expired = append(expired, e.session)
			delete(h.sessions, key)
		}
	}
	e, ok := h.sessions[id]
	if ok {
		e.lastSeen = now
	} else {
		opts := append([]session.Option{
			session.WithLogger(h.logger.With(slog.String("session", id))),
			session.OnAuthError(h.onAuthError),
		}, h.sessionOpts...)

		var fetcher session.Fetcher
		if up := h.currentUpstream(); up != nil {
			fetcher = up
		}
		e = &sessionEntry{session: session.New(fetcher, opts...), lastSeen: now}
		h.sessions[id] = e
	}
	if stream {
		e.streams++
	}
	h.sessMu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if !ok {
		h.logger.DebugContext(r.Context(), "dashboard session created", slog.String("session", id))
		e.session.Start()
	}
	return e
}

func (h *Handler) allSessions() []*session.Session {
	h.sessMu.Lock()
	defer h.sessMu.Unlock()
	out := make([]*session.Session, 0, len(h.sessions))
	for _, e := range h.sessions {
		out = append(out, e.session)
	}
	return out
}

func (h *Handler) getState(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, h.dashboard(w, r).Snapshot())
	return nil
}

// editRequest is a partial update of the raw filters. Absent fields are unchanged.
type editRequest struct {
	ToggleGenre *int              `json:"toggle_genre"`
	GenreMode   *string           `json:"genre_mode"`
	Person      *filter.Person    `json:"person"`
	ClearPerson bool              `json:"clear_person"`
	ClearGenres bool              `json:"clear_genres"`
	MinVotes    *string           `json:"min_votes"`
	MinRating   *string           `json:"min_rating"`
	Years       *filter.YearRange `json:"years"`
	Language    *string           `json:"language"`
	Sort        *string           `json:"sort"`
	Search      *string           `json:"search"`
	Page        *int              `json:"page"`
	View        *string           `json:"view"`
}

func (req *editRequest) toEdit() (filter.Edit, error) {
	e := filter.Edit{
		ToggleGenre: req.ToggleGenre,
		Person:      req.Person,
		ClearPerson: req.ClearPerson,
		ClearGenres: req.ClearGenres,
		MinVotes:    req.MinVotes,
		MinRating:   req.MinRating,
		Years:       req.Years,
		Language:    req.Language,
		Search:      req.Search,
		Page:        req.Page,
	}
	if req.ToggleGenre != nil && *req.ToggleGenre <= 0 {
		return e, badRequest("invalid genre")
	}
	if req.Person != nil && req.Person.ID <= 0 {
		return e, badRequest("invalid person")
	}
	if req.Page != nil && *req.Page < 1 {
		return e, badRequest("page must be positive")
	}
	if req.GenreMode != nil {
		mode := filter.GenreMode(*req.GenreMode)
		if mode != filter.ModeAny && mode != filter.ModeAll {
			return e, badRequest("invalid genre_mode")
		}
		e.Mode = &mode
	}
	if req.Sort != nil {
		sort := filter.ParseSortKey(*req.Sort)
		e.Sort = &sort
	}
	if req.View != nil {
		view := filter.View(*req.View)
		if view != filter.ViewBrowse && view != filter.ViewWatchlist {
			return e, badRequest("invalid view")
		}
		e.View = &view
	}
	return e, nil
}

func (h *Handler) patchState(w http.ResponseWriter, r *http.Request) error {
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	edit, err := req.toEdit()
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, h.dashboard(w, r).Apply(edit))
	return nil
}

func (h *Handler) postStateRetry(w http.ResponseWriter, r *http.Request) error {
	s := h.dashboard(w, r)
	if !s.Retry() {
		return &Error{Status: http.StatusConflict, Message: "nothing to retry"}
	}
	writeJSON(w, http.StatusAccepted, s.Snapshot())
	return nil
}

// getEvents streams session snapshots ("state") and watchlist changes
// ("watchlist") as server-sent events until the client goes away, the session
// is closed or the handler shuts down.
func (h *Handler) getEvents(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	s, detach := h.attachStream(w, r)
	defer detach()

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(ctx, "events: cannot clear write deadline", logger.Error(err))
	}

	states := events.NewBroadcaster[session.Snapshot]()
	stateCh, cancelState := events.Chan(states, 8)
	defer cancelState()
	unsubState := s.Subscribe(states.Publish)
	defer unsubState()

	changes := make(chan struct{}, 1)
	unsubWatchlist := h.watchlist.Subscribe(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer unsubWatchlist()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, rc, "state", s.Snapshot()); err != nil {
		return nil
	}

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		var err error
		select {
		case <-ctx.Done():
			return nil
		case <-s.Done():
			h.logger.DebugContext(ctx, "events stream ended: session closed")
			return nil
		case <-h.done:
			return nil
		case snap := <-stateCh:
			err = writeEvent(w, rc, "state", snap)
		case <-changes:
			err = writeEvent(w, rc, "watchlist", struct{}{})
		case <-keepAlive.C:
			_, err = fmt.Fprint(w, ": ping\n\n")
			if err == nil {
				err = rc.Flush()
			}
		}
		if err != nil {
			h.logger.DebugContext(ctx, "events stream closed", logger.Error(err))
			return nil
		}
	}
}

func writeEvent(w http.ResponseWriter, rc *http.ResponseController, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return err
	}
	return rc.Flush()
}
