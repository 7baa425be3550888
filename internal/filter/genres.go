// Package filter models the raw, user-controlled discovery filters.
package filter

import (
	"maps"
	"slices"
)

type GenreState int

const (
	Unset GenreState = iota
	Included
	Excluded
)

func (s GenreState) String() string {
	switch s {
	case Included:
		return "included"
	case Excluded:
		return "excluded"
	default:
		return "unset"
	}
}

// next is the fixed toggle cycle: unset -> included -> excluded -> unset.
func (s GenreState) next() GenreState {
	switch s {
	case Unset:
		return Included
	case Included:
		return Excluded
	default:
		return Unset
	}
}

type GenreMode string

const (
	ModeAny GenreMode = "any"
	ModeAll GenreMode = "all"
)

func ParseGenreMode(raw string) GenreMode {
	if GenreMode(raw) == ModeAll {
		return ModeAll
	}
	return ModeAny
}

// Genres maps a genre id to its tri-state selection. Unset ids are never stored,
// so an id cannot be both included and excluded.
//
// The zero value is an empty selection. Genres is immutable: Toggle and Clear
// return a new value.
type Genres struct {
	states map[int]GenreState
}

func NewGenres(included, excluded []int) Genres {
	states := make(map[int]GenreState, len(included)+len(excluded))
	for _, id := range included {
		states[id] = Included
	}
	// Excluded wins when the caller lists an id twice.
	for _, id := range excluded {
		states[id] = Excluded
	}
	return Genres{states: states}
}

func (g Genres) State(id int) GenreState {
	return g.states[id]
}

func (g Genres) Toggle(id int) Genres {
	states := maps.Clone(g.states)
	if states == nil {
		states = make(map[int]GenreState, 1)
	}
	next := g.states[id].next()
	if next == Unset {
		delete(states, id)
	} else {
		states[id] = next
	}
	return Genres{states: states}
}

func (g Genres) Clear() Genres {
	return Genres{}
}

func (g Genres) Included() []int { return g.ids(Included) }
func (g Genres) Excluded() []int { return g.ids(Excluded) }

func (g Genres) Empty() bool { return len(g.states) == 0 }

func (g Genres) Equal(other Genres) bool {
	return maps.Equal(g.states, other.states)
}

func (g Genres) ids(want GenreState) []int {
	out := []int{}
	for id, state := range g.states {
		if state == want {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return out
}
