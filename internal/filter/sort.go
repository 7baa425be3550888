package filter

import (
	"strings"

	"golang.org/x/text/language"
)

// SortKey is an upstream discover sort order, e.g. "popularity.desc".
type SortKey string

const (
	SortFirstAirDateDesc SortKey = "first_air_date.desc"
	SortFirstAirDateAsc  SortKey = "first_air_date.asc"
	SortPopularityDesc   SortKey = "popularity.desc"
	SortPopularityAsc    SortKey = "popularity.asc"
	SortRatingDesc       SortKey = "vote_average.desc"
	SortRatingAsc        SortKey = "vote_average.asc"
	SortVotesDesc        SortKey = "vote_count.desc"
	SortVotesAsc         SortKey = "vote_count.asc"

	DefaultSort = SortPopularityDesc
)

var sortKeys = []SortKey{
	SortFirstAirDateDesc, SortFirstAirDateAsc,
	SortPopularityDesc, SortPopularityAsc,
	SortRatingDesc, SortRatingAsc,
	SortVotesDesc, SortVotesAsc,
}

func SortKeys() []SortKey {
	return append([]SortKey(nil), sortKeys...)
}

func ParseSortKey(raw string) SortKey {
	raw = strings.ToLower(strings.TrimSpace(raw))
	for _, k := range sortKeys {
		if string(k) == raw {
			return k
		}
	}
	return DefaultSort
}

// NormalizeLanguage returns the ISO-639-1 code for raw, or "" when raw is empty
// or not a known language.
func NormalizeLanguage(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	base, err := language.ParseBase(strings.ToLower(raw))
	if err != nil {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}
