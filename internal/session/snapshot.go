package session

import (
	"github.com/handsomefox/tv-discover/internal/discover"
	"github.com/handsomefox/tv-discover/internal/filter"
	"github.com/handsomefox/tv-discover/internal/tmdb"
)

// RawState is the user's uncommitted selection as shown by the filter panel.
type RawState struct {
	IncludedGenres []int            `json:"included_genres"`
	ExcludedGenres []int            `json:"excluded_genres"`
	GenreMode      filter.GenreMode `json:"genre_mode"`
	Person         *filter.Person   `json:"person"`
	MinVotes       string           `json:"min_votes"`
	MinVotesValid  bool             `json:"min_votes_valid"`
	MinRating      string           `json:"min_rating"`
	MinRatingValid bool             `json:"min_rating_valid"`
	Years          filter.YearRange `json:"years"`
	Language       string           `json:"language"`
	Sort           filter.SortKey   `json:"sort"`
	Search         string           `json:"search"`
	Page           int              `json:"page"`
	View           filter.View      `json:"view"`
}

func newRawState(st *filter.State) RawState {
	return RawState{
		IncludedGenres: st.Genres.Included(),
		ExcludedGenres: st.Genres.Excluded(),
		GenreMode:      st.Mode,
		Person:         st.Person,
		MinVotes:       st.MinVotes.Text(),
		MinVotesValid:  st.MinVotes.IsEmpty() || st.MinVotes.IsValid(),
		MinRating:      st.MinRating.Text(),
		MinRatingValid: st.MinRating.IsEmpty() || st.MinRating.IsValid(),
		Years:          st.Years,
		Language:       st.Language,
		Sort:           st.Sort,
		Search:         st.Search,
		Page:           st.Page,
		View:           st.View,
	}
}

// Snapshot is a consistent copy of the session's observable state.
type Snapshot struct {
	Raw        RawState           `json:"raw"`
	Committed  discover.Committed `json:"committed"`
	Pending    bool               `json:"pending"`
	Status     Status             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Retryable  bool               `json:"retryable"`
	Generation uint64             `json:"generation"`
	Mode       string             `json:"mode"`
	Stale      bool               `json:"stale"`
	Results    tmdb.Page          `json:"results"`
}

// snapshotLocked must be called with mu held.
func (s *Session) snapshotLocked() Snapshot {
	results := s.results
	results.Results = append([]tmdb.Show{}, s.results.Results...)
	return Snapshot{
		Raw:        newRawState(&s.state),
		Committed:  s.committed,
		Pending:    s.search.Pending() || s.numeric.Pending(),
		Status:     s.status,
		Error:      s.errMsg,
		Retryable:  s.retryable,
		Generation: s.generation,
		Mode:       s.query.Kind.String(),
		Stale:      s.stale,
		Results:    results,
	}
}
