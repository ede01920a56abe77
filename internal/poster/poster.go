// Package poster looks up movie poster URLs on TMDB and caches the answers.
package poster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/pkg/errors"

	"github.com/mesh-intelligence/watchlist/internal/metrics"
)

// Defaults for the public TMDB endpoints.
const (
	DefaultBaseURL  = "https://api.themoviedb.org/3"
	DefaultImageURL = "https://image.tmdb.org/t/p/w500"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("poster lookup disabled: no TMDB API key configured")

// Config configures a Client.
type Config struct {
	APIKey    string
	BaseURL   string
	ImageURL  string
	CacheSize int
	CacheTTL  time.Duration
	HTTP      *http.Client
}

// Client searches TMDB by title. A nil *Client is valid and always returns
// ErrDisabled.
type Client struct {
	baseURL  string
	imageURL string
	key      string
	cl       *http.Client
	cache    *expirable.LRU[string, string]
}

type searchResponse struct {
	Results []struct {
		PosterPath string `json:"poster_path"`
	} `json:"results"`
}

// New returns a client, or nil when cfg carries no API key.
func New(cfg Config) *Client {
	if cfg.APIKey == "" {
		return nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageURL == "" {
		cfg.ImageURL = DefaultImageURL
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		imageURL: cfg.ImageURL,
		key:      cfg.APIKey,
		cl:       cfg.HTTP,
		cache:    expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

// Lookup returns the poster URL of the first search hit for title, or ""
// when TMDB knows no poster for it. Both outcomes are cached; failures are
// not.
func (c *Client) Lookup(ctx context.Context, title string) (string, error) {
	if c == nil {
		return "", ErrDisabled
	}
	key := strings.ToLower(strings.TrimSpace(title))
	if key == "" {
		return "", nil
	}
	if u, ok := c.cache.Get(key); ok {
		metrics.PosterCacheHits.Inc()
		return u, nil
	}
	metrics.PosterCacheMisses.Inc()

	u, err := c.search(ctx, title)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, u)
	return u, nil
}

func (c *Client) search(ctx context.Context, title string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/movie", nil)
	if err != nil {
		return "", errors.Wrap(err, "create request")
	}
	q := req.URL.Query()
	q.Set("api_key", c.key)
	q.Set("query", strings.TrimSpace(title))
	req.URL.RawQuery = q.Encode()

	resp, err := c.cl.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "request failed")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("tmdb search: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", errors.Wrap(err, "decode response")
	}
	if len(body.Results) == 0 || body.Results[0].PosterPath == "" {
		return "", nil
	}
	return fmt.Sprintf("%s%s", c.imageURL, body.Results[0].PosterPath), nil
}
