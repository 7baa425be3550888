// Package tmdb wraps the TMDB API for discovering, searching and enriching TV shows.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL   = "https://api.themoviedb.org"
	DefaultImageBase = "https://image.tmdb.org/t/p/w342"
)

// ErrUnauthorized is returned when TMDB rejects the credential (HTTP 401).
var ErrUnauthorized = errors.New("tmdb: invalid credential")

// StatusError is any other non-OK upstream response.
type StatusError struct {
	Op     string
	Status int
	Text   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("tmdb %s failed: %d %s", e.Op, e.Status, e.Text)
}

type Client struct {
	apiKey    string
	readToken string
	baseURL   string
	http      *http.Client
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the given credential. A v4 read token passed as the
// credential is sent as a bearer token instead of the api_key parameter.
func New(credential string, opts ...Option) *Client {
	credential = strings.TrimSpace(credential)
	c := &Client{
		apiKey:  credential,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	if looksLikeJWT(credential) {
		c.readToken = credential
		c.apiKey = ""
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover runs a discover/tv query with pre-built parameters.
func (c *Client) Discover(ctx context.Context, params url.Values) (Page, error) {
	values := cloneValues(params)
	var payload pageResponse
	if err := c.get(ctx, "discover", "/3/discover/tv", values, &payload); err != nil {
		return Page{}, err
	}
	return payload.page(), nil
}

func (c *Client) Search(ctx context.Context, query string, page int) (Page, error) {
	if strings.TrimSpace(query) == "" {
		return Page{}, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", strconv.Itoa(max(page, 1)))

	var payload pageResponse
	if err := c.get(ctx, "search", "/3/search/tv", values, &payload); err != nil {
		return Page{}, err
	}
	return payload.page(), nil
}

func (c *Client) get(ctx context.Context, op, path string, values url.Values, dst any) error {
	body, err := c.getRaw(ctx, op, path, values)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("tmdb %s: decode: %w", op, err)
	}
	return nil
}

func (c *Client) getRaw(ctx context.Context, op, path string, values url.Values) ([]byte, error) {
	if values == nil {
		values = url.Values{}
	}
	if c.apiKey != "" {
		values.Set("api_key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("tmdb %s: %w", op, err)
	}
	c.applyAuth(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tmdb %s: %w", op, err)
	}

	if resp.StatusCode != http.StatusOK {
		var statusErr error = &StatusError{Op: op, Status: resp.StatusCode, Text: http.StatusText(resp.StatusCode)}
		if resp.StatusCode == http.StatusUnauthorized {
			statusErr = ErrUnauthorized
		}
		if cerr := resp.Body.Close(); cerr != nil {
			return nil, errors.Join(statusErr, cerr)
		}
		return nil, statusErr
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, fmt.Errorf("tmdb %s: read: %w", op, err)
	}
	if err := resp.Body.Close(); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) applyAuth(req *http.Request) {
	if strings.TrimSpace(c.readToken) == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(c.readToken))
}

func looksLikeJWT(token string) bool {
	parts := strings.Split(strings.TrimSpace(token), ".")
	return len(parts) == 3 && len(token) > 80
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+1)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
