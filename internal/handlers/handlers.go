// Package handlers wires HTTP routing and API handlers.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/session"
	"github.com/handsomefox/tv-discover/internal/store"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
)

// Upstream is the metadata API as used by the handlers. *tmdb.Client implements it.
type Upstream interface {
	session.Fetcher
	Details(ctx context.Context, id int64) (*tmdb.Detail, error)
	Genres(ctx context.Context) ([]tmdb.Genre, error)
	Languages(ctx context.Context) ([]tmdb.Language, error)
	SearchPeople(ctx context.Context, query string) ([]tmdb.Person, error)
}

type Handler struct {
	store       *store.Store
	watchlist   watchlist.Store
	newUpstream func(credential string) Upstream
	env         config.Environment
	imageBase   string
	logger      *slog.Logger
	sessionOpts []session.Option
	sessionTTL  time.Duration

	credMu   sync.RWMutex
	upstream Upstream

	sessMu   sync.Mutex
	sessions map[string]*sessionEntry

	done      chan struct{}
	closeOnce sync.Once

	genres    genreCache
	languages languageCache
}

type Config struct {
	Store     *store.Store
	Watchlist watchlist.Store
	// NewUpstream builds a client for a credential. Defaults to tmdb.New.
	NewUpstream func(credential string) Upstream
	// SeedCredential is stored when no credential is stored yet.
	SeedCredential string
	Env            config.Environment
	ImageBase      string
	Logger         *slog.Logger
	SessionOptions []session.Option
	// SessionTTL closes dashboard sessions idle for longer than this.
	SessionTTL time.Duration
}

func New(ctx context.Context, cfg *Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.Watchlist == nil {
		return nil, errors.New("watchlist is required")
	}

	h := &Handler{
		store:       cfg.Store,
		watchlist:   cfg.Watchlist,
		newUpstream: cfg.NewUpstream,
		env:         cfg.Env,
		imageBase:   cfg.ImageBase,
		logger:      cfg.Logger,
		sessionOpts: cfg.SessionOptions,
		sessionTTL:  cfg.SessionTTL,
		sessions:    make(map[string]*sessionEntry),
		done:        make(chan struct{}),
	}
	if h.newUpstream == nil {
		h.newUpstream = func(credential string) Upstream { return tmdb.New(credential) }
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.imageBase == "" {
		h.imageBase = tmdb.DefaultImageBase
	}
	if h.sessionTTL <= 0 {
		h.sessionTTL = 30 * time.Minute
	}

	credential, err := h.store.Credential(ctx)
	if err != nil {
		return nil, err
	}
	if credential == "" && strings.TrimSpace(cfg.SeedCredential) != "" {
		credential = strings.TrimSpace(cfg.SeedCredential)
		if err := h.store.SetCredential(ctx, credential); err != nil {
			return nil, err
		}
		h.logger.InfoContext(ctx, "stored credential from environment")
	}
	if credential != "" {
		h.upstream = h.newUpstream(credential)
	}
	return h, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(RequestID)

	r.Method(http.MethodGet, "/session", Adapt(h.getSession))
	r.Method(http.MethodPost, "/credential", Adapt(h.postCredential))
	r.Method(http.MethodDelete, "/credential", Adapt(h.deleteCredential))

	r.Group(func(r chi.Router) {
		r.Use(h.MiddlewareRequireCredential)

		r.Method(http.MethodGet, "/filters/options", Adapt(h.getFilterOptions))
		r.Method(http.MethodGet, "/people", Adapt(h.getPeople))
		r.Method(http.MethodGet, "/discover", Adapt(h.getDiscover))
		r.Method(http.MethodGet, "/shows/{id:[0-9]+}", Adapt(h.getShow))

		r.Route("/state", func(r chi.Router) {
			r.Method(http.MethodGet, "/", Adapt(h.getState))
			r.Method(http.MethodPatch, "/", Adapt(h.patchState))
			r.Method(http.MethodPost, "/retry", Adapt(h.postStateRetry))
		})
		r.Method(http.MethodGet, "/events", Adapt(h.getEvents))

		r.Route("/watchlist", func(r chi.Router) {
			r.Method(http.MethodGet, "/", Adapt(h.getWatchlist))
			r.Method(http.MethodPost, "/", Adapt(h.postWatchlist))
			r.Method(http.MethodPost, "/export", Adapt(h.postWatchlistExport))
			r.Method(http.MethodDelete, "/{id:[0-9]+}", Adapt(h.deleteWatchlistItem))
		})
	})
}

// Close shuts down every dashboard session and ends open event streams.
func (h *Handler) Close() {
	h.closeOnce.Do(func() { close(h.done) })

	h.sessMu.Lock()
	entries := make([]*sessionEntry, 0, len(h.sessions))
	for id, e := range h.sessions {
		entries = append(entries, e)
		delete(h.sessions, id)
	}
	h.sessMu.Unlock()

	for _, e := range entries {
		e.session.Close()
	}
}

func (h *Handler) currentUpstream() Upstream {
	h.credMu.RLock()
	defer h.credMu.RUnlock()
	return h.upstream
}

type sessionResponse struct {
	HasCredential bool   `json:"has_credential"`
	ImageBase     string `json:"image_base,omitempty"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) error {
	resp := sessionResponse{HasCredential: h.currentUpstream() != nil}
	if resp.HasCredential {
		resp.ImageBase = h.imageBase
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

func (h *Handler) postCredential(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return badRequest("credential required")
	}

	up := h.newUpstream(credential)
	if _, err := up.Genres(ctx); err != nil {
		if errors.Is(err, tmdb.ErrUnauthorized) {
			h.logger.WarnContext(ctx, "credential rejected upstream")
			return unauthorized("invalid credential")
		}
		return badGateway(err)
	}

	if err := h.store.SetCredential(ctx, credential); err != nil {
		return internal(err)
	}
	h.setUpstream(up)

	writeJSON(w, http.StatusOK, sessionResponse{HasCredential: true, ImageBase: h.imageBase})
	return nil
}

func (h *Handler) deleteCredential(w http.ResponseWriter, r *http.Request) error {
	if err := h.store.ClearCredential(r.Context()); err != nil {
		return internal(err)
	}
	h.setUpstream(nil)

	writeJSON(w, http.StatusOK, sessionResponse{HasCredential: false})
	return nil
}

// setUpstream swaps the client used by every session. nil means no credential.
func (h *Handler) setUpstream(up Upstream) {
	h.credMu.Lock()
	h.upstream = up
	h.credMu.Unlock()

	h.genres.reset()
	h.languages.reset()

	var fetcher session.Fetcher
	if up != nil {
		fetcher = up
	}
	for _, s := range h.allSessions() {
		s.SetFetcher(fetcher)
	}
}

// onAuthError discards the stored credential once the upstream rejects it,
// unless it has been replaced in the meantime.
func (h *Handler) onAuthError(rejected session.Fetcher) {
	h.credMu.RLock()
	current := h.upstream
	h.credMu.RUnlock()
	if current == nil || session.Fetcher(current) != rejected {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.store.ClearCredential(ctx); err != nil {
		h.logger.ErrorContext(ctx, "clear rejected credential failed", logger.Error(err))
	}
	h.logger.WarnContext(ctx, "upstream rejected stored credential")
	h.setUpstream(nil)
}

// upstreamError converts a failed upstream call. A rejected credential is
// discarded the same way a dashboard session discards it.
func (h *Handler) upstreamError(up Upstream, err error) error {
	if errors.Is(err, tmdb.ErrUnauthorized) {
		h.onAuthError(up)
		return unauthorized("invalid credential")
	}
	return badGateway(err)
}
