package tmdb

import (
	"context"
	"net/url"
	"slices"
	"strings"
)

func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	var payload struct {
		Genres []Genre `json:"genres"`
	}
	if err := c.get(ctx, "genres", "/3/genre/tv/list", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

// Languages returns the upstream language list sorted by English name.
func (c *Client) Languages(ctx context.Context) ([]Language, error) {
	var payload []Language
	if err := c.get(ctx, "languages", "/3/configuration/languages", nil, &payload); err != nil {
		return nil, err
	}
	slices.SortFunc(payload, func(a, b Language) int {
		return strings.Compare(a.Name, b.Name)
	})
	return payload, nil
}

func (c *Client) SearchPeople(ctx context.Context, query string) ([]Person, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Person{}, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")

	var payload struct {
		Results []Person `json:"results"`
	}
	if err := c.get(ctx, "people", "/3/search/person", values, &payload); err != nil {
		return nil, err
	}
	if payload.Results == nil {
		return []Person{}, nil
	}
	return payload.Results, nil
}
