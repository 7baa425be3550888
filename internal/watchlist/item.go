// Package watchlist keeps the persisted watchlist and the pure sort/filter
// engine that renders it.
package watchlist

import (
	"math"
	"time"

	"github.com/handsomefox/tv-discover/internal/tmdb"
)

// Item is a show saved by the user. Items are never mutated after they are added.
type Item struct {
	tmdb.Show
	AddedAt    time.Time `json:"added_at"`
	BingeHours *float64  `json:"binge_hours,omitempty"`
}

// NewItem builds an item for show. detail may be nil when enrichment failed,
// in which case the item carries no binge hours.
func NewItem(show tmdb.Show, detail *tmdb.Detail, now time.Time) Item {
	return Item{
		Show:       show,
		AddedAt:    now.UTC(),
		BingeHours: BingeHours(detail),
	}
}

// BingeHours is the total watch time of every episode, rounded to a tenth of
// an hour. It is nil when the episode count or the runtime is unknown.
func BingeHours(d *tmdb.Detail) *float64 {
	if d == nil || d.NumberOfEpisodes == nil || *d.NumberOfEpisodes <= 0 {
		return nil
	}
	runtime, ok := d.Runtime()
	if !ok {
		return nil
	}
	hours := math.Round(float64(*d.NumberOfEpisodes)*runtime/60*10) / 10
	return &hours
}
