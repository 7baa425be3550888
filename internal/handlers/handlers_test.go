package handlers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/handsomefox/tv-discover/internal/config"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/session"
	"github.com/handsomefox/tv-discover/internal/store"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpstream struct {
	mu          sync.Mutex
	discovers   []url.Values
	searches    []string
	genreCalls  int
	genresErr   error
	discoverErr error
	page        tmdb.Page
	details     map[int64]*tmdb.Detail
}

var _ Upstream = (*fakeUpstream)(nil)

func (f *fakeUpstream) Discover(_ context.Context, params url.Values) (tmdb.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovers = append(f.discovers, params)
	return f.page, f.discoverErr
}

func (f *fakeUpstream) Search(_ context.Context, query string, _ int) (tmdb.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	return f.page, f.discoverErr
}

func (f *fakeUpstream) Details(_ context.Context, id int64) (*tmdb.Detail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.details[id]
	if !ok {
		return nil, &tmdb.StatusError{Op: "details", Status: http.StatusNotFound, Text: "Not Found"}
	}
	return d, nil
}

func (f *fakeUpstream) Genres(context.Context) ([]tmdb.Genre, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.genreCalls++
	if f.genresErr != nil {
		return nil, f.genresErr
	}
	return []tmdb.Genre{{ID: 18, Name: "Drama"}, {ID: 35, Name: "Comedy"}}, nil
}

func (f *fakeUpstream) Languages(context.Context) ([]tmdb.Language, error) {
	return []tmdb.Language{{Code: "en", Name: "English"}}, nil
}

func (f *fakeUpstream) SearchPeople(_ context.Context, query string) ([]tmdb.Person, error) {
	return []tmdb.Person{{ID: 17419, Name: query}}, nil
}

func (f *fakeUpstream) discoverCalls() []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]url.Values(nil), f.discovers...)
}

type testApp struct {
	handler   *Handler
	router    http.Handler
	store     *store.Store
	upstreams map[string]*fakeUpstream
}

func newTestApp(t *testing.T, seed string) *testApp {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logger.NewWithWriter(&bytes.Buffer{}, logger.Options{})
	app := &testApp{store: st, upstreams: map[string]*fakeUpstream{
		"good":     {page: tmdb.Page{Page: 1, Results: []tmdb.Show{}}},
		"rejected": {genresErr: tmdb.ErrUnauthorized},
	}}

	h, err := New(context.Background(), &Config{
		Store:     st,
		Watchlist: watchlist.NewPersistent(st, log),
		NewUpstream: func(credential string) Upstream {
			if up, ok := app.upstreams[credential]; ok {
				return up
			}
			return &fakeUpstream{genresErr: tmdb.ErrUnauthorized}
		},
		SeedCredential: seed,
		Env:            config.Local,
		Logger:         log,
		SessionOptions: []session.Option{session.WithDelays(time.Millisecond, time.Millisecond)},
	})
	require.NoError(t, err)
	t.Cleanup(h.Close)

	r := chi.NewRouter()
	r.Route("/api", h.RegisterRoutes)
	app.handler = h
	app.router = r
	return app
}

func (a *testApp) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestCredential_Lifecycle(t *testing.T) {
	app := newTestApp(t, "")

	rec := app.do(t, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[sessionResponse](t, rec).HasCredential)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	rec = app.do(t, http.MethodGet, "/api/watchlist", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/credential", `{"credential":"rejected"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credential", decode[errorResponse](t, rec).Error)

	rec = app.do(t, http.MethodPost, "/api/credential", `{"credential":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.do(t, http.MethodPost, "/api/credential", `{"credential":"good"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[sessionResponse](t, rec)
	assert.True(t, resp.HasCredential)
	assert.Equal(t, tmdb.DefaultImageBase, resp.ImageBase)

	stored, err := app.store.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good", stored)

	rec = app.do(t, http.MethodDelete, "/api/credential", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = app.do(t, http.MethodGet, "/api/watchlist", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCredential_UpstreamDown(t *testing.T) {
	app := newTestApp(t, "")
	app.upstreams["flaky"] = &fakeUpstream{genresErr: errors.New("connection refused")}

	rec := app.do(t, http.MethodPost, "/api/credential", `{"credential":"flaky"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNew_SeedCredential(t *testing.T) {
	app := newTestApp(t, "good")

	stored, err := app.store.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "good", stored)
	assert.True(t, decode[sessionResponse](t, app.do(t, http.MethodGet, "/api/session", "")).HasCredential)
}

func TestGetDiscover(t *testing.T) {
	app := newTestApp(t, "good")
	up := app.upstreams["good"]
	up.page = tmdb.Page{Page: 1, TotalPages: 1, TotalResults: 3, Results: []tmdb.Show{
		{ID: 1, Name: "Enough", VoteCount: 990, VoteAverage: 7.5},
		{ID: 2, Name: "Too few votes", VoteCount: 989, VoteAverage: 9},
		{ID: 3, Name: "Low rating", VoteCount: 5000, VoteAverage: 6.9},
	}}

	rec := app.do(t, http.MethodGet, "/api/discover?genres=35,18&without_genres=16&mode=all&min_votes=1000&min_rating=7.5x&year_min=2000&sort=vote_count.desc&page=2", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	calls := up.discoverCalls()
	require.Len(t, calls, 1)
	v := calls[0]
	assert.Equal(t, "18,35", v.Get("with_genres"))
	assert.Equal(t, "16", v.Get("without_genres"))
	assert.Equal(t, "990", v.Get("vote_count.gte"))
	assert.Empty(t, v.Get("vote_average.gte"))
	assert.Equal(t, "2000-01-01", v.Get("first_air_date.gte"))
	assert.Equal(t, "vote_count.desc", v.Get("sort_by"))
	assert.Equal(t, "2", v.Get("page"))

	resp := decode[discoverResponse](t, rec)
	assert.Equal(t, "discover", resp.Kind)
	var ids []int64
	for _, s := range resp.Results.Results {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []int64{1, 3}, ids)
}

func TestGetDiscover_RatingThreshold(t *testing.T) {
	app := newTestApp(t, "good")
	up := app.upstreams["good"]
	up.page = tmdb.Page{Page: 1, Results: []tmdb.Show{
		{ID: 1, VoteAverage: 7.425},
		{ID: 2, VoteAverage: 7.42},
	}}

	rec := app.do(t, http.MethodGet, "/api/discover?min_rating=7.5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7.425", up.discoverCalls()[0].Get("vote_average.gte"))
	resp := decode[discoverResponse](t, rec)
	require.Len(t, resp.Results.Results, 1)
	assert.Equal(t, int64(1), resp.Results.Results[0].ID)
}

func TestGetDiscover_SearchWins(t *testing.T) {
	app := newTestApp(t, "good")
	up := app.upstreams["good"]

	rec := app.do(t, http.MethodGet, "/api/discover?q=office&genres=18&min_votes=500", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "search", decode[discoverResponse](t, rec).Kind)
	assert.Empty(t, up.discoverCalls())
	assert.Equal(t, []string{"office"}, up.searches)
}

func TestGetDiscover_BadParams(t *testing.T) {
	app := newTestApp(t, "good")
	for _, q := range []string{"genres=drama", "page=-1", "person=x", "year_min=abc"} {
		rec := app.do(t, http.MethodGet, "/api/discover?"+q, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestGetDiscover_RejectedCredentialIsDiscarded(t *testing.T) {
	app := newTestApp(t, "good")
	app.upstreams["good"].discoverErr = tmdb.ErrUnauthorized

	rec := app.do(t, http.MethodGet, "/api/discover", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	stored, err := app.store.Credential(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored)
	assert.False(t, decode[sessionResponse](t, app.do(t, http.MethodGet, "/api/session", "")).HasCredential)
}

func TestGetFilterOptions_Cached(t *testing.T) {
	app := newTestApp(t, "good")

	for range 2 {
		rec := app.do(t, http.MethodGet, "/api/filters/options", "")
		require.Equal(t, http.StatusOK, rec.Code)
		resp := decode[filterOptionsResponse](t, rec)
		assert.Len(t, resp.Genres, 2)
		assert.Equal(t, "en", resp.Languages[0].Code)
		assert.NotEmpty(t, resp.Sorts)
		assert.Equal(t, 1900, resp.MinYear)
	}
	assert.Equal(t, 1, app.upstreams["good"].genreCalls)
}

func TestGetPeople(t *testing.T) {
	app := newTestApp(t, "good")

	rec := app.do(t, http.MethodGet, "/api/people?q=Bryan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	people := decode[[]tmdb.Person](t, rec)
	require.Len(t, people, 1)
	assert.Equal(t, "Bryan", people[0].Name)

	rec = app.do(t, http.MethodGet, "/api/people", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]tmdb.Person](t, rec))
}

func breakingBad() *tmdb.Detail {
	episodes := 62
	return &tmdb.Detail{
		Show:             tmdb.Show{ID: 1396, Name: "Breaking Bad", FirstAirDate: "2008-01-20", VoteAverage: 8.9, VoteCount: 14000},
		NumberOfEpisodes: &episodes,
		EpisodeRunTime:   []int{45, 47},
		ExternalIDs:      tmdb.ExternalIDs{IMDbID: "tt0903747"},
	}
}

func TestGetShow(t *testing.T) {
	app := newTestApp(t, "good")
	app.upstreams["good"].details = map[int64]*tmdb.Detail{1396: breakingBad()}

	rec := app.do(t, http.MethodGet, "/api/shows/1396", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[showResponse](t, rec)
	assert.True(t, resp.Available)
	require.NotNil(t, resp.BingeHours)
	assert.InDelta(t, 47.5, *resp.BingeHours, 1e-9)
	assert.Equal(t, "https://www.imdb.com/title/tt0903747/", resp.IMDbURL)

	rec = app.do(t, http.MethodGet, "/api/shows/404", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[showResponse](t, rec).Available)
}

func TestWatchlist_AddListRemoveExport(t *testing.T) {
	app := newTestApp(t, "good")
	app.upstreams["good"].details = map[int64]*tmdb.Detail{1396: breakingBad()}

	rec := app.do(t, http.MethodPost, "/api/watchlist", `{"id":1396}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	added := decode[addResponse](t, rec)
	assert.True(t, added.Added)
	assert.Equal(t, "Breaking Bad", added.Item.Name)
	require.NotNil(t, added.Item.BingeHours)

	rec = app.do(t, http.MethodPost, "/api/watchlist", `{"show":{"id":1396,"name":"Breaking Bad"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[addResponse](t, rec)
	assert.False(t, again.Added)
	assert.Equal(t, added.Item.AddedAt.Unix(), again.Item.AddedAt.Unix())

	// Enrichment failure still adds the show, without binge hours.
	rec = app.do(t, http.MethodPost, "/api/watchlist", `{"show":{"id":2316,"name":"The Office","vote_average":8.6}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Nil(t, decode[addResponse](t, rec).Item.BingeHours)

	rec = app.do(t, http.MethodPost, "/api/watchlist", `{"id":777}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown show without a name")

	rec = app.do(t, http.MethodGet, "/api/watchlist?sort=rating.desc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[watchlistResponse](t, rec)
	require.Len(t, list.Items, 2)
	assert.Equal(t, int64(1396), list.Items[0].ID)
	assert.Equal(t, "rating.desc", list.Sort)

	rec = app.do(t, http.MethodGet, "/api/watchlist?q=OFFICE", "")
	list = decode[watchlistResponse](t, rec)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 2, list.Total)

	rec = app.do(t, http.MethodPost, "/api/watchlist/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "watchlist.json")
	assert.Len(t, decode[exportPayload](t, rec).Items, 2)

	rec = app.do(t, http.MethodDelete, "/api/watchlist/2316", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = app.do(t, http.MethodDelete, "/api/watchlist/2316", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestState_PatchAndPoll(t *testing.T) {
	app := newTestApp(t, "good")
	up := app.upstreams["good"]
	up.page = tmdb.Page{Page: 1, Results: []tmdb.Show{{ID: 1, Name: "Dark", VoteCount: 100}}}

	rec := app.do(t, http.MethodGet, "/api/state", "")
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	rec = app.do(t, http.MethodPatch, "/api/state", `{"toggle_genre":18,"sort":"vote_count.desc"}`, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	snap := decode[session.Snapshot](t, rec)
	assert.Equal(t, []int{18}, snap.Raw.IncludedGenres)
	assert.Empty(t, rec.Result().Cookies(), "existing session is reused")

	rec = app.do(t, http.MethodPatch, "/api/state", `{"min_votes":"1000"}`, cookies...)
	require.Equal(t, http.StatusOK, rec.Code)

	require.Eventually(t, func() bool {
		snap := decode[session.Snapshot](t, app.do(t, http.MethodGet, "/api/state", "", cookies...))
		return snap.Status == session.StatusReady && snap.Committed.MinVotes == 1000
	}, 2*time.Second, 10*time.Millisecond)

	var committed url.Values
	for _, v := range up.discoverCalls() {
		if v.Get("vote_count.gte") != "" {
			committed = v
		}
	}
	require.NotNil(t, committed)
	assert.Equal(t, "18", committed.Get("with_genres"))
	assert.Equal(t, "990", committed.Get("vote_count.gte"))
	assert.Equal(t, "vote_count.desc", committed.Get("sort_by"))

	rec = app.do(t, http.MethodPost, "/api/state/retry", "", cookies...)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestState_PatchValidation(t *testing.T) {
	app := newTestApp(t, "good")
	for _, body := range []string{
		`{"view":"grid"}`,
		`{"genre_mode":"most"}`,
		`{"page":0}`,
		`{"toggle_genre":-1}`,
		`{"unknown":true}`,
		`not json`,
	} {
		rec := app.do(t, http.MethodPatch, "/api/state", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestState_RetryAfterTransientError(t *testing.T) {
	app := newTestApp(t, "good")
	up := app.upstreams["good"]
	up.mu.Lock()
	up.discoverErr = errors.New("timeout")
	up.mu.Unlock()

	rec := app.do(t, http.MethodGet, "/api/state", "")
	cookies := rec.Result().Cookies()
	require.Eventually(t, func() bool {
		snap := decode[session.Snapshot](t, app.do(t, http.MethodGet, "/api/state", "", cookies...))
		return snap.Status == session.StatusError && snap.Retryable
	}, 2*time.Second, 10*time.Millisecond)

	up.mu.Lock()
	up.discoverErr = nil
	up.mu.Unlock()

	rec = app.do(t, http.MethodPost, "/api/state/retry", "", cookies...)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool {
		snap := decode[session.Snapshot](t, app.do(t, http.MethodGet, "/api/state", "", cookies...))
		return snap.Status == session.StatusReady
	}, 2*time.Second, 10*time.Millisecond)
}

func TestEvents_StreamsState(t *testing.T) {
	app := newTestApp(t, "good")
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	assert.Equal(t, "event: state", sc.Text())
	require.True(t, sc.Scan())
	assert.True(t, strings.HasPrefix(sc.Text(), "data: {"))

	// A watchlist change from another request reaches the stream.
	app.upstreams["good"].details = map[int64]*tmdb.Detail{1396: breakingBad()}
	addReq, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/watchlist", strings.NewReader(`{"id":1396}`))
	require.NoError(t, err)
	addResp, err := client.Do(addReq)
	require.NoError(t, err)
	require.NoError(t, addResp.Body.Close())

	for sc.Scan() {
		if sc.Text() == "event: watchlist" {
			return
		}
	}
	t.Fatal("no watchlist event received")
}

func TestRequestID_ReusesValidHeader(t *testing.T) {
	app := newTestApp(t, "")
	const id = "7f0c1f0e-8d0a-4b9a-9f3e-2d9f0f4a6b11"

	req := httptest.NewRequest(http.MethodGet, "/api/session", http.NoBody)
	req.Header.Set(requestIDHeader, id)
	rec := httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(requestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/api/session", http.NoBody)
	req.Header.Set(requestIDHeader, "not-a-uuid")
	rec = httptest.NewRecorder()
	app.router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(requestIDHeader))
}

// openEvents starts an event stream and consumes the initial state event.
func openEvents(t *testing.T, ctx context.Context, client *http.Client, baseURL string) *bufio.Scanner {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/events", http.NoBody)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sc := bufio.NewScanner(resp.Body)
	require.True(t, sc.Scan())
	require.Equal(t, "event: state", sc.Text())
	return sc
}

func TestEvents_EndWhenHandlerCloses(t *testing.T) {
	app := newTestApp(t, "good")
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sc := openEvents(t, ctx, &http.Client{Jar: jar}, srv.URL)

	ended := make(chan struct{})
	go func() {
		defer close(ended)
		for sc.Scan() {
			_ = sc.Text()
		}
	}()

	app.handler.Close()
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("event stream still open after handler close")
	}
}

func TestEvents_StreamingSessionIsNotEvicted(t *testing.T) {
	app := newTestApp(t, "good")
	app.handler.sessionTTL = time.Nanosecond
	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)

	sessionCount := func() int {
		app.handler.sessMu.Lock()
		defer app.handler.sessMu.Unlock()
		return len(app.handler.sessions)
	}

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	streamCtx, stopStream := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopStream()
	openEvents(t, streamCtx, &http.Client{Jar: jar}, srv.URL)

	other, err := cookiejar.New(nil)
	require.NoError(t, err)
	otherClient := &http.Client{Jar: other}
	poll := func() {
		resp, err := otherClient.Get(srv.URL + "/api/state")
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	time.Sleep(time.Millisecond)
	poll()
	assert.Equal(t, 2, sessionCount(), "session with an open stream survives eviction")

	stopStream()
	require.Eventually(t, func() bool {
		poll()
		return sessionCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCredentialRequired_UpstreamPinnedPerRequest(t *testing.T) {
	app := newTestApp(t, "good")

	// The credential disappears after the middleware let the request through.
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.handler.setUpstream(nil)
		Adapt(app.handler.getPeople).ServeHTTP(w, r)
	})
	rec := httptest.NewRecorder()
	app.handler.MiddlewareRequireCredential(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/people?q=Cranston", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)
	people := decode[[]tmdb.Person](t, rec)
	require.Len(t, people, 1)
	assert.Equal(t, "Cranston", people[0].Name)

	// Without the middleware there is no pinned upstream.
	for _, hf := range []HandlerWithErr{app.handler.getPeople, app.handler.getDiscover, app.handler.getFilterOptions} {
		rec = httptest.NewRecorder()
		Adapt(hf).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/people?q=x", http.NoBody))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}

func TestListCache_ResetDuringLoad(t *testing.T) {
	var c genreCache
	ctx := context.Background()
	now := time.Now()
	oldUp, newUp := &fakeUpstream{}, &fakeUpstream{}

	stale := []tmdb.Genre{{ID: 1, Name: "Stale"}}
	got, err := c.get(ctx, oldUp, now, func(context.Context) ([]tmdb.Genre, error) {
		c.reset()
		return stale, nil
	})
	require.NoError(t, err)
	assert.Equal(t, stale, got, "the caller still gets what it loaded")

	fresh := []tmdb.Genre{{ID: 18, Name: "Drama"}}
	loads := 0
	load := func(context.Context) ([]tmdb.Genre, error) {
		loads++
		return fresh, nil
	}
	for range 2 {
		got, err = c.get(ctx, newUp, now, load)
		require.NoError(t, err)
		assert.Equal(t, fresh, got)
	}
	assert.Equal(t, 1, loads)

	// Entries loaded by one client are not served to another.
	got, err = c.get(ctx, oldUp, now, func(context.Context) ([]tmdb.Genre, error) { return stale, nil })
	require.NoError(t, err)
	assert.Equal(t, stale, got)
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestWatchlistExport_WriteFailureIsLogged(t *testing.T) {
	app := newTestApp(t, "good")
	var buf bytes.Buffer
	app.handler.logger = logger.NewWithWriter(&buf, logger.Options{})

	w := failingWriter{httptest.NewRecorder()}
	req := httptest.NewRequest(http.MethodPost, "/api/watchlist/export", http.NoBody)
	require.NoError(t, app.handler.postWatchlistExport(w, req))
	assert.Contains(t, buf.String(), "export write failed")
	assert.Contains(t, buf.String(), "connection reset")
}
