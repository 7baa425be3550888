package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const detailAppend = "external_ids,aggregate_credits,videos,recommendations,similar"

type Episode struct {
	AirDate       string `json:"air_date,omitempty"`
	EpisodeNumber int    `json:"episode_number"`
	SeasonNumber  int    `json:"season_number"`
	Name          string `json:"name,omitempty"`
	Runtime       *int   `json:"runtime"`
}

type ExternalIDs struct {
	IMDbID string `json:"imdb_id,omitempty"`
	TVDBID int64  `json:"tvdb_id,omitempty"`
}

// Detail is the enriched record for a single show. Only the fields the
// dashboard computes with are typed; the full payload is kept in Raw.
type Detail struct {
	Show
	Genres           []Genre     `json:"genres,omitempty"`
	Status           string      `json:"status,omitempty"`
	NumberOfEpisodes *int        `json:"number_of_episodes"`
	NumberOfSeasons  *int        `json:"number_of_seasons"`
	EpisodeRunTime   []int       `json:"episode_run_time,omitempty"`
	LastEpisodeToAir *Episode    `json:"last_episode_to_air,omitempty"`
	NextEpisodeToAir *Episode    `json:"next_episode_to_air,omitempty"`
	ExternalIDs      ExternalIDs `json:"external_ids"`

	Raw *structpb.Struct `json:"-"`
}

// Details fetches a show with its external ids, credits, videos,
// recommendations and similar titles appended.
func (c *Client) Details(ctx context.Context, id int64) (*Detail, error) {
	if id <= 0 {
		return nil, fmt.Errorf("tmdb details: invalid id %d", id)
	}
	values := url.Values{}
	values.Set("append_to_response", detailAppend)

	body, err := c.getRaw(ctx, "details", "/3/tv/"+strconv.FormatInt(id, 10), values)
	if err != nil {
		return nil, err
	}

	var d Detail
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("tmdb details: decode: %w", err)
	}
	raw := &structpb.Struct{}
	if err := (protojson.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(body, raw); err != nil {
		return nil, fmt.Errorf("tmdb details: decode payload: %w", err)
	}
	d.Raw = raw
	return &d, nil
}

// Runtime returns the typical episode length in minutes, falling back to the
// last and then the next aired episode. ok is false when nothing is known.
func (d *Detail) Runtime() (minutes float64, ok bool) {
	sum, n := 0, 0
	for _, r := range d.EpisodeRunTime {
		if r > 0 {
			sum += r
			n++
		}
	}
	if n > 0 {
		return float64(sum) / float64(n), true
	}
	for _, ep := range []*Episode{d.LastEpisodeToAir, d.NextEpisodeToAir} {
		if ep != nil && ep.Runtime != nil && *ep.Runtime > 0 {
			return float64(*ep.Runtime), true
		}
	}
	return 0, false
}
