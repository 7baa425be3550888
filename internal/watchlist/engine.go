package watchlist

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

type SortField string

const (
	SortAdded        SortField = "added"
	SortBinge        SortField = "binge"
	SortFirstAirDate SortField = "first_air_date"
	SortRating       SortField = "rating"
	SortVotes        SortField = "votes"
	SortPopularity   SortField = "popularity"
)

type Sort struct {
	Field SortField
	Desc  bool
}

var DefaultSort = Sort{Field: SortAdded, Desc: true}

func (s Sort) String() string {
	dir := "asc"
	if s.Desc {
		dir = "desc"
	}
	return string(s.Field) + "." + dir
}

// ParseSort reads "field.direction". Anything unrecognised yields DefaultSort.
func ParseSort(raw string) Sort {
	field, dir, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ".")
	if !ok {
		return DefaultSort
	}
	switch SortField(field) {
	case SortAdded, SortBinge, SortFirstAirDate, SortRating, SortVotes, SortPopularity:
	default:
		return DefaultSort
	}
	switch dir {
	case "asc":
		return Sort{Field: SortField(field)}
	case "desc":
		return Sort{Field: SortField(field), Desc: true}
	}
	return DefaultSort
}

// Apply filters items by a case-insensitive title match and sorts the result.
// The input slice is not modified. Ties are broken by show id ascending.
func Apply(items []Item, search string, sort Sort) []Item {
	folder := cases.Fold()
	out := make([]Item, 0, len(items))
	needle := folder.String(strings.TrimSpace(search))
	for _, it := range items {
		if needle == "" || strings.Contains(folder.String(it.Name), needle) {
			out = append(out, it)
		}
	}

	slices.SortStableFunc(out, func(a, b Item) int {
		c := compareField(&a, &b, sort.Field)
		if sort.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func compareField(a, b *Item, field SortField) int {
	switch field {
	case SortBinge:
		return cmp.Compare(deref(a.BingeHours), deref(b.BingeHours))
	case SortFirstAirDate:
		return cmp.Compare(airDateKey(a), airDateKey(b))
	case SortRating:
		return cmp.Compare(a.VoteAverage, b.VoteAverage)
	case SortVotes:
		return cmp.Compare(a.VoteCount, b.VoteCount)
	case SortPopularity:
		return cmp.Compare(a.Popularity, b.Popularity)
	default:
		return a.AddedAt.Compare(b.AddedAt)
	}
}

// airDateKey orders unparseable dates before every real one.
func airDateKey(it *Item) int64 {
	t, ok := it.AirDate()
	if !ok {
		return math.MinInt64
	}
	return t.Unix()
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
