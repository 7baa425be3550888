package filter

import (
	"strings"
	"time"
)

type View string

const (
	ViewBrowse    View = "browse"
	ViewWatchlist View = "watchlist"
)

func ParseView(raw string) View {
	if View(strings.TrimSpace(raw)) == ViewWatchlist {
		return ViewWatchlist
	}
	return ViewBrowse
}

type Person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// State is the complete set of raw user selections for a dashboard session.
type State struct {
	Genres    Genres
	Mode      GenreMode
	Person    *Person
	MinVotes  RawNumeric
	MinRating RawNumeric
	Years     YearRange
	Language  string
	Sort      SortKey
	Search    string
	Page      int
	View      View
}

func NewState(now time.Time) State {
	return State{
		Mode:  ModeAny,
		Years: FullYearRange(now),
		Sort:  DefaultSort,
		Page:  1,
		View:  ViewBrowse,
	}
}

// Edit is a partial update of State. Nil fields are left untouched.
type Edit struct {
	ToggleGenre *int
	Mode        *GenreMode
	Person      *Person
	ClearPerson bool
	ClearGenres bool
	MinVotes    *string
	MinRating   *string
	Years       *YearRange
	Language    *string
	Sort        *SortKey
	Search      *string
	Page        *int
	View        *View
}

// resetsPage reports whether the edit touches any filter other than the page
// and the view.
func (e Edit) resetsPage() bool {
	return e.ToggleGenre != nil || e.Mode != nil || e.Person != nil || e.ClearPerson || e.ClearGenres ||
		e.MinVotes != nil || e.MinRating != nil || e.Years != nil ||
		e.Language != nil || e.Sort != nil || e.Search != nil
}

// Apply returns the state with the edit applied. Editing any filter resets the
// page to 1; editing only the page keeps it.
func (s State) Apply(e Edit, now time.Time) State {
	if e.ClearGenres {
		s.Genres = s.Genres.Clear()
		s.Person = nil
	}
	if e.ToggleGenre != nil {
		s.Genres = s.Genres.Toggle(*e.ToggleGenre)
	}
	if e.Mode != nil {
		s.Mode = ParseGenreMode(string(*e.Mode))
	}
	if e.ClearPerson {
		s.Person = nil
	}
	if e.Person != nil {
		p := *e.Person
		s.Person = &p
	}
	if e.MinVotes != nil {
		s.MinVotes = ParseRaw(*e.MinVotes)
	}
	if e.MinRating != nil {
		s.MinRating = ParseRaw(*e.MinRating)
	}
	if e.Years != nil {
		s.Years = NewYearRange(e.Years.Min, e.Years.Max, now)
	}
	if e.Language != nil {
		s.Language = NormalizeLanguage(*e.Language)
	}
	if e.Sort != nil {
		s.Sort = ParseSortKey(string(*e.Sort))
	}
	if e.Search != nil {
		s.Search = *e.Search
	}
	if e.View != nil {
		s.View = ParseView(string(*e.View))
	}

	switch {
	case e.resetsPage():
		s.Page = 1
	case e.Page != nil:
		s.Page = max(*e.Page, 1)
	}
	return s
}
