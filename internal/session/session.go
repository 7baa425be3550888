// Package session owns one dashboard's filter state. It debounces raw edits
// into committed filters, issues upstream queries and keeps the latest
// reconciled results.
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/handsomefox/tv-discover/internal/debounce"
	"github.com/handsomefox/tv-discover/internal/discover"
	"github.com/handsomefox/tv-discover/internal/events"
	"github.com/handsomefox/tv-discover/internal/filter"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/tmdb"
)

//go:generate go run go.uber.org/mock/mockgen -package mocks -destination mocks/mock_fetcher.go github.com/handsomefox/tv-discover/internal/session Fetcher

// Fetcher performs the upstream discover and search calls.
type Fetcher interface {
	Discover(ctx context.Context, params url.Values) (tmdb.Page, error)
	Search(ctx context.Context, query string, page int) (tmdb.Page, error)
}

type Status string

const (
	StatusIdle            Status = "idle"
	StatusLoading         Status = "loading"
	StatusReady           Status = "ready"
	StatusError           Status = "error"
	StatusNeedsCredential Status = "needs_credential"
)

const (
	DefaultSearchDelay  = 500 * time.Millisecond
	DefaultFilterDelay  = 600 * time.Millisecond
	defaultFetchTimeout = 15 * time.Second
)

type Session struct {
	logger       *slog.Logger
	now          func() time.Time
	clock        debounce.Clock
	searchDelay  time.Duration
	filterDelay  time.Duration
	fetchTimeout time.Duration
	onAuthError  func(Fetcher)

	search  *debounce.Debouncer[string]
	numeric *debounce.Debouncer[struct{}]
	bus     *events.Broadcaster[Snapshot]
	wg      sync.WaitGroup
	done    chan struct{}

	// pubMu orders publications so subscribers end on the latest snapshot.
	pubMu sync.Mutex

	mu         sync.Mutex
	state      filter.State
	committed  discover.Committed
	fetcher    Fetcher
	generation uint64
	status     Status
	errMsg     string
	retryable  bool
	query      discover.Request
	results    tmdb.Page
	stale      bool
	closed     bool
}

type Option func(*Session)

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock replaces the timer source of both debouncers.
func WithClock(c debounce.Clock) Option {
	return func(s *Session) { s.clock = c }
}

func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

func WithDelays(search, filters time.Duration) Option {
	return func(s *Session) {
		s.searchDelay = search
		s.filterDelay = filters
	}
}

func WithFetchTimeout(d time.Duration) Option {
	return func(s *Session) { s.fetchTimeout = d }
}

// OnAuthError registers fn to run with the rejected fetcher whenever the
// upstream refuses the credential.
func OnAuthError(fn func(Fetcher)) Option {
	return func(s *Session) { s.onAuthError = fn }
}

// New creates a session in browse view. A nil fetcher leaves the session
// waiting for a credential.
func New(fetcher Fetcher, opts ...Option) *Session {
	s := &Session{
		logger:       slog.Default(),
		now:          time.Now,
		searchDelay:  DefaultSearchDelay,
		filterDelay:  DefaultFilterDelay,
		fetchTimeout: defaultFetchTimeout,
		bus:          events.NewBroadcaster[Snapshot](),
		done:         make(chan struct{}),
		fetcher:      fetcher,
		status:       StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "session"))
	s.state = filter.NewState(s.now())
	if fetcher == nil {
		s.status = StatusNeedsCredential
	}

	var dopts []debounce.Option
	if s.clock != nil {
		dopts = append(dopts, debounce.WithClock(s.clock))
	}
	s.search = debounce.New(s.searchDelay, s.commitSearch, dopts...)
	s.numeric = debounce.New(s.filterDelay, func(struct{}) { s.commitNumeric() }, dopts...)
	return s
}

// Start issues the initial query for the default filters.
func (s *Session) Start() {
	s.mu.Lock()
	fetch := s.trigger()
	s.mu.Unlock()
	s.run(fetch)
	s.publish()
}

// Apply records a raw edit. Numeric, year and search edits are committed after
// their quiet interval; every other filter edit queries immediately.
func (s *Session) Apply(e filter.Edit) Snapshot {
	s.mu.Lock()
	if s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}
	prevView := s.state.View
	s.state = s.state.Apply(e, s.now())

	var fetch *pendingFetch
	switch {
	case immediate(e):
		fetch = s.trigger()
	case prevView == filter.ViewWatchlist && s.state.View == filter.ViewBrowse && s.stale:
		fetch = s.trigger()
	}
	search := s.state.Search
	s.mu.Unlock()

	if e.MinVotes != nil || e.MinRating != nil || e.Years != nil {
		s.numeric.Push(struct{}{})
	}
	if e.Search != nil {
		s.search.Push(search)
	}

	s.run(fetch)
	return s.publish()
}

// immediate reports whether e changes a filter that is not debounced.
func immediate(e filter.Edit) bool {
	return e.ToggleGenre != nil || e.Mode != nil || e.Person != nil || e.ClearPerson ||
		e.ClearGenres || e.Language != nil || e.Sort != nil || e.Page != nil
}

// Flush commits any pending debounced edits now.
func (s *Session) Flush() {
	s.search.Flush()
	s.numeric.Flush()
}

// Retry re-issues the last query after a transient failure. It reports
// whether a query was issued.
func (s *Session) Retry() bool {
	s.mu.Lock()
	if s.closed || s.status != StatusError {
		s.mu.Unlock()
		return false
	}
	fetch := s.trigger()
	s.mu.Unlock()

	s.run(fetch)
	s.publish()
	return fetch != nil
}

// SetFetcher swaps the upstream client, e.g. after a new credential is stored.
// A nil fetcher puts the session into the needs-credential state.
func (s *Session) SetFetcher(f Fetcher) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.fetcher = f
	var fetch *pendingFetch
	if f == nil {
		s.generation++
		s.status = StatusNeedsCredential
		s.errMsg = ""
		s.retryable = false
	} else {
		fetch = s.trigger()
	}
	s.mu.Unlock()

	s.run(fetch)
	s.publish()
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every observable change.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// Wait blocks until every issued query has completed.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Done returns a channel that is closed once the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the debouncers and drops subscribers. Queries still in flight
// complete but their results are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.search.Stop()
	s.numeric.Stop()
	s.bus.Close()
	close(s.done)
}

func (s *Session) commitSearch(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.committed.Search = text
	s.state.Page = 1
	fetch := s.trigger()
	s.mu.Unlock()

	s.logger.Debug("search committed", slog.String("query", text))
	s.run(fetch)
	s.publish()
}

func (s *Session) commitNumeric() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	lo, hi := s.state.Years.Bounds(s.now())
	s.committed.MinVotes = s.state.MinVotes.CommitVotes()
	s.committed.MinRating = s.state.MinRating.CommitRating()
	s.committed.MinYear = lo
	s.committed.MaxYear = hi
	s.state.Page = 1
	committed := s.committed
	fetch := s.trigger()
	s.mu.Unlock()

	s.logger.Debug("filters committed",
		slog.Int("min_votes", committed.MinVotes),
		slog.Float64("min_rating", committed.MinRating),
		slog.Int("min_year", committed.MinYear),
		slog.Int("max_year", committed.MaxYear))
	s.run(fetch)
	s.publish()
}

type pendingFetch struct {
	generation uint64
	fetcher    Fetcher
	query      discover.Request
}

// trigger starts a new generation for the current filters. In watchlist view
// it only marks the results stale. Must be called with mu held.
func (s *Session) trigger() *pendingFetch {
	if s.closed {
		return nil
	}
	if s.state.View == filter.ViewWatchlist {
		s.stale = true
		return nil
	}
	if s.fetcher == nil {
		s.status = StatusNeedsCredential
		return nil
	}

	s.generation++
	s.stale = false
	s.status = StatusLoading
	s.errMsg = ""
	s.retryable = false
	s.query = discover.Build(discover.NewInput(s.state, s.committed))
	return &pendingFetch{generation: s.generation, fetcher: s.fetcher, query: s.query}
}

func (s *Session) run(f *pendingFetch) {
	if f == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetch(f)
	}()
}

func (s *Session) fetch(f *pendingFetch) {
	ctx, cancel := context.WithTimeout(context.Background(), s.fetchTimeout)
	defer cancel()

	var (
		page tmdb.Page
		err  error
	)
	if f.query.Kind == discover.KindSearch {
		page, err = f.fetcher.Search(ctx, f.query.Query, f.query.Page)
	} else {
		page, err = f.fetcher.Discover(ctx, f.query.Values())
	}

	s.mu.Lock()
	if s.closed || f.generation != s.generation {
		current := s.generation
		s.mu.Unlock()
		s.logger.Debug("discarding stale response",
			slog.Uint64("generation", f.generation),
			slog.Uint64("current", current))
		return
	}

	authFailed := false
	switch {
	case errors.Is(err, tmdb.ErrUnauthorized):
		authFailed = true
		s.fetcher = nil
		s.status = StatusNeedsCredential
		s.errMsg = "invalid credential"
		s.retryable = false
	case err != nil:
		s.status = StatusError
		s.errMsg = "could not load shows"
		s.retryable = true
	default:
		s.results = discover.ReconcilePage(page, f.query.Thresholds())
		s.status = StatusReady
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("query failed",
			slog.String("kind", f.query.Kind.String()),
			slog.Uint64("generation", f.generation),
			logger.Error(err))
	}
	if authFailed && s.onAuthError != nil {
		s.onAuthError(f.fetcher)
	}
	s.publish()
}

func (s *Session) publish() Snapshot {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	snap := s.Snapshot()
	s.bus.Publish(snap)
	return snap
}
