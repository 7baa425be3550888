// Package discover turns committed dashboard filters into upstream queries and
// re-checks the returned records against the same loosened thresholds.
package discover

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/handsomefox/tv-discover/internal/filter"
)

// BufferFactor loosens the submitted vote and rating thresholds by 1% so
// records whose upstream aggregates lag slightly behind are still returned.
const BufferFactor = 0.99

type Kind int

const (
	KindDiscover Kind = iota
	KindSearch
)

func (k Kind) String() string {
	if k == KindSearch {
		return "search"
	}
	return "discover"
}

// Committed holds the debounced filter values. Zero means unconstrained.
type Committed struct {
	MinVotes  int     `json:"min_votes"`
	MinRating float64 `json:"min_rating"`
	MinYear   int     `json:"min_year"`
	MaxYear   int     `json:"max_year"`
	Search    string  `json:"search"`
}

// CommitAll commits every debounced field of st at once, as if both quiet
// intervals had elapsed.
func CommitAll(st filter.State, now time.Time) Committed {
	lo, hi := st.Years.Bounds(now)
	return Committed{
		MinVotes:  st.MinVotes.CommitVotes(),
		MinRating: st.MinRating.CommitRating(),
		MinYear:   lo,
		MaxYear:   hi,
		Search:    strings.TrimSpace(st.Search),
	}
}

// Input is everything a query depends on: the committed values plus the
// filters that apply immediately.
type Input struct {
	Committed Committed
	Genres    filter.Genres
	Mode      filter.GenreMode
	Person    *filter.Person
	Language  string
	Sort      filter.SortKey
	Page      int
}

// NewInput pairs committed values with the immediate filters of st.
func NewInput(st filter.State, c Committed) Input {
	return Input{
		Committed: c,
		Genres:    st.Genres,
		Mode:      st.Mode,
		Person:    st.Person,
		Language:  st.Language,
		Sort:      st.Sort,
		Page:      st.Page,
	}
}

// Request is a normalized upstream request.
type Request struct {
	Kind          Kind
	Query         string
	Page          int
	Sort          filter.SortKey
	MinVotes      int
	MinRating     float64
	AirDateGTE    string
	AirDateLTE    string
	WithGenres    string
	WithoutGenres string
	Language      string
	PersonID      int64
}

type Thresholds struct {
	MinVotes  int
	MinRating float64
}

func BufferVotes(v int) int {
	if v <= 0 {
		return 0
	}
	return int(math.Floor(float64(v) * BufferFactor))
}

func BufferRating(r float64) float64 {
	if r <= 0 {
		return 0
	}
	return r * BufferFactor
}

// Build maps the input to a Request. A non-empty search drops every other filter.
func Build(in Input) Request {
	page := max(in.Page, 1)

	if q := strings.TrimSpace(in.Committed.Search); q != "" {
		return Request{Kind: KindSearch, Query: q, Page: page}
	}

	s := Request{
		Kind:      KindDiscover,
		Page:      page,
		Sort:      in.Sort,
		MinVotes:  BufferVotes(in.Committed.MinVotes),
		MinRating: BufferRating(in.Committed.MinRating),
		Language:  in.Language,
	}
	if s.Sort == "" {
		s.Sort = filter.DefaultSort
	}
	if y := in.Committed.MinYear; y > 0 {
		s.AirDateGTE = strconv.Itoa(y) + "-01-01"
	}
	if y := in.Committed.MaxYear; y > 0 {
		s.AirDateLTE = strconv.Itoa(y) + "-12-31"
	}

	sep := "|"
	if in.Mode == filter.ModeAll {
		sep = ","
	}
	s.WithGenres = joinIDs(in.Genres.Included(), sep)
	s.WithoutGenres = joinIDs(in.Genres.Excluded(), ",")

	if in.Person != nil && in.Person.ID > 0 {
		s.PersonID = in.Person.ID
	}
	return s
}

// Values renders the upstream query parameters. Unconstrained fields are omitted.
func (s Request) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(max(s.Page, 1)))
	if s.Kind == KindSearch {
		v.Set("query", s.Query)
		return v
	}

	v.Set("include_adult", "false")
	v.Set("sort_by", string(s.Sort))
	if s.MinVotes > 0 {
		v.Set("vote_count.gte", strconv.Itoa(s.MinVotes))
	}
	if s.MinRating > 0 {
		v.Set("vote_average.gte", strconv.FormatFloat(s.MinRating, 'f', -1, 64))
	}
	if s.AirDateGTE != "" {
		v.Set("first_air_date.gte", s.AirDateGTE)
	}
	if s.AirDateLTE != "" {
		v.Set("first_air_date.lte", s.AirDateLTE)
	}
	if s.WithGenres != "" {
		v.Set("with_genres", s.WithGenres)
	}
	if s.WithoutGenres != "" {
		v.Set("without_genres", s.WithoutGenres)
	}
	if s.Language != "" {
		v.Set("with_original_language", s.Language)
	}
	if s.PersonID > 0 {
		v.Set("with_people", strconv.FormatInt(s.PersonID, 10))
	}
	return v
}

// Thresholds are the loosened minimums the reconciler enforces.
func (s Request) Thresholds() Thresholds {
	return Thresholds{MinVotes: s.MinVotes, MinRating: s.MinRating}
}

func joinIDs(ids []int, sep string) string {
	if len(ids) == 0 {
		return ""
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
