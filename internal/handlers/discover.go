package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/handsomefox/tv-discover/internal/discover"
	"github.com/handsomefox/tv-discover/internal/filter"
	"github.com/handsomefox/tv-discover/internal/logger"
	"github.com/handsomefox/tv-discover/internal/tmdb"
	"github.com/handsomefox/tv-discover/internal/watchlist"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/encoding/protojson"
)

type filterOptionsResponse struct {
	Genres    []tmdb.Genre     `json:"genres"`
	Languages []tmdb.Language  `json:"languages"`
	Sorts     []filter.SortKey `json:"sorts"`
	MinYear   int              `json:"min_year"`
	MaxYear   int              `json:"max_year"`
}

func (h *Handler) getFilterOptions(w http.ResponseWriter, r *http.Request) error {
	up, err := requestUpstream(r)
	if err != nil {
		return err
	}
	now := time.Now()

	var resp filterOptionsResponse
	g, gctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		genres, err := h.genres.get(gctx, up, now, up.Genres)
		resp.Genres = genres
		return err
	})
	g.Go(func() error {
		languages, err := h.languages.get(gctx, up, now, up.Languages)
		resp.Languages = languages
		return err
	})
	if err := g.Wait(); err != nil {
		return h.upstreamError(up, err)
	}

	resp.Sorts = filter.SortKeys()
	resp.MinYear = filter.MinYear
	resp.MaxYear = filter.MaxYear(now)
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func (h *Handler) getPeople(w http.ResponseWriter, r *http.Request) error {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeJSON(w, http.StatusOK, []tmdb.Person{})
		return nil
	}

	up, err := requestUpstream(r)
	if err != nil {
		return err
	}
	people, err := up.SearchPeople(r.Context(), q)
	if err != nil {
		return h.upstreamError(up, err)
	}
	writeJSON(w, http.StatusOK, people)
	return nil
}

type discoverResponse struct {
	Kind      string             `json:"kind"`
	Params    url.Values         `json:"params"`
	Committed discover.Committed `json:"committed"`
	Results   tmdb.Page          `json:"results"`
}

// getDiscover runs a single query built from the request's query string. It
// shares the builder and reconciler with dashboard sessions but keeps no state.
func (h *Handler) getDiscover(w http.ResponseWriter, r *http.Request) error {
	in, err := parseInput(r.URL.Query(), time.Now())
	if err != nil {
		return err
	}
	query := discover.Build(in)

	up, err := requestUpstream(r)
	if err != nil {
		return err
	}
	var page tmdb.Page
	if query.Kind == discover.KindSearch {
		page, err = up.Search(r.Context(), query.Query, query.Page)
	} else {
		page, err = up.Discover(r.Context(), query.Values())
	}
	if err != nil {
		return h.upstreamError(up, err)
	}

	writeJSON(w, http.StatusOK, discoverResponse{
		Kind:      query.Kind.String(),
		Params:    query.Values(),
		Committed: in.Committed,
		Results:   discover.ReconcilePage(page, query.Thresholds()),
	})
	return nil
}

// parseInput reads filters in committed form: numeric text is committed the
// same way the dashboard commits it, so "abc" means no minimum.
func parseInput(q url.Values, now time.Time) (discover.Input, error) {
	included, err := parseIDs(q.Get("genres"))
	if err != nil {
		return discover.Input{}, badRequest("invalid genres")
	}
	excluded, err := parseIDs(q.Get("without_genres"))
	if err != nil {
		return discover.Input{}, badRequest("invalid without_genres")
	}
	page, err := optionalInt(q.Get("page"))
	if err != nil || page < 0 {
		return discover.Input{}, badRequest("invalid page")
	}
	yearMin, err := optionalInt(q.Get("year_min"))
	if err != nil {
		return discover.Input{}, badRequest("invalid year_min")
	}
	yearMax, err := optionalInt(q.Get("year_max"))
	if err != nil {
		return discover.Input{}, badRequest("invalid year_max")
	}

	in := discover.Input{
		Genres:   filter.NewGenres(included, excluded),
		Mode:     filter.ParseGenreMode(q.Get("mode")),
		Language: filter.NormalizeLanguage(q.Get("language")),
		Sort:     filter.ParseSortKey(q.Get("sort")),
		Page:     max(page, 1),
	}
	if raw := q.Get("person"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return discover.Input{}, badRequest("invalid person")
		}
		in.Person = &filter.Person{ID: id}
	}

	lo, hi := filter.NewYearRange(yearMin, yearMax, now).Bounds(now)
	in.Committed = discover.Committed{
		MinVotes:  filter.ParseRaw(q.Get("min_votes")).CommitVotes(),
		MinRating: filter.ParseRaw(q.Get("min_rating")).CommitRating(),
		MinYear:   lo,
		MaxYear:   hi,
		Search:    strings.TrimSpace(q.Get("q")),
	}
	return in, nil
}

func parseIDs(raw string) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '|' })
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, strconv.ErrSyntax
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

type showResponse struct {
	Available  bool            `json:"available"`
	Show       *tmdb.Detail    `json:"show,omitempty"`
	BingeHours *float64        `json:"binge_hours,omitempty"`
	IMDbURL    string          `json:"imdb_url,omitempty"`
	Raw        json.RawMessage `json:"raw,omitempty"`
}

// getShow enriches a show with its details. Enrichment failures are not
// errors: the response reports available=false instead.
func (h *Handler) getShow(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}

	up, err := requestUpstream(r)
	if err != nil {
		return err
	}
	detail, err := up.Details(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "show details unavailable", "tmdb_id", id, logger.Error(err))
		writeJSON(w, http.StatusOK, showResponse{Available: false})
		return nil
	}

	resp := showResponse{
		Available:  true,
		Show:       detail,
		BingeHours: watchlist.BingeHours(detail),
		IMDbURL:    imdbURL(detail.ExternalIDs.IMDbID),
	}
	if detail.Raw != nil {
		raw, err := protojson.Marshal(detail.Raw)
		if err != nil {
			h.logger.WarnContext(ctx, "marshal raw details failed", "tmdb_id", id, logger.Error(err))
		} else {
			resp.Raw = raw
		}
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}
