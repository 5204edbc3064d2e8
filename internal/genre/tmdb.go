// Package genre looks up movie genres so titles classified as movies can be
// placed as documentaries when TMDB says so.
package genre

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Documentary is the genre name that moves a movie to the documentaries tree
const Documentary = "Documentary"

// DocumentaryGenreID is the TMDB id of the documentary genre. Genre names are
// localized by the language parameter, ids are not.
const DocumentaryGenreID = 99

// Lookup resolves the genre names of a movie. year may be empty.
type Lookup interface {
	Genres(ctx context.Context, name, year string) ([]string, error)
}

// IsDocumentary reports whether genres contains the documentary genre
func IsDocumentary(genres []string) bool {
	for _, g := range genres {
		if strings.EqualFold(strings.TrimSpace(g), Documentary) {
			return true
		}
	}
	return false
}

// SearchResult is a single TMDB movie search match
type SearchResult struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

// SearchResponse models the TMDB paginated search response
type SearchResponse struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// MovieDetails carries the fields of /movie/{id} that are used here
type MovieDetails struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Genres []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

// Client provides access to the TMDB API
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ Lookup = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a TMDB client
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// SearchMovie searches TMDB for a title, narrowed to a release year when given
func (c *Client) SearchMovie(ctx context.Context, query, year string) (*SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}

	params := url.Values{}
	params.Set("query", query)
	if y, err := strconv.Atoi(strings.TrimSpace(year)); err == nil && y > 0 {
		params.Set("year", strconv.Itoa(y))
	}

	var payload SearchResponse
	if err := c.get(ctx, "/search/movie", params, &payload); err != nil {
		return nil, fmt.Errorf("tmdb search: %w", err)
	}
	return &payload, nil
}

// MovieDetails fetches a movie by id
func (c *Client) MovieDetails(ctx context.Context, id int64) (*MovieDetails, error) {
	var payload MovieDetails
	if err := c.get(ctx, "/movie/"+strconv.FormatInt(id, 10), url.Values{}, &payload); err != nil {
		return nil, fmt.Errorf("tmdb movie %d: %w", id, err)
	}
	return &payload, nil
}

// Genres returns the genres of the first search match. No match is an empty
// list, not an error. The documentary genre is always reported as
// Documentary, whatever language the names come back in.
func (c *Client) Genres(ctx context.Context, name, year string) ([]string, error) {
	resp, err := c.SearchMovie(ctx, name, year)
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, nil
	}

	details, err := c.MovieDetails(ctx, resp.Results[0].ID)
	if err != nil {
		return nil, err
	}

	genres := make([]string, 0, len(details.Genres))
	for _, g := range details.Genres {
		if g.ID == DocumentaryGenreID {
			genres = append(genres, Documentary)
			continue
		}
		genres = append(genres, g.Name)
	}
	return genres, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint, err := url.Parse(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("parse tmdb url: %w", err)
	}
	params.Set("api_key", c.apiKey)
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb returned %d (latency=%v)", resp.StatusCode, latency)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode tmdb response: %w", err)
	}
	return nil
}
