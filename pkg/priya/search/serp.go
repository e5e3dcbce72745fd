package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// WebResult is one organic web hit.
type WebResult struct {
	Title   string
	Snippet string
	URL     string
}

// SerpConfig configures the web search client.
type SerpConfig struct {
	BaseURL string        `yaml:"base_url"`
	Engine  string        `yaml:"engine"`
	Timeout time.Duration `yaml:"timeout"`
	Keys    []string      `yaml:"keys"`
}

// Serp searches the web through SerpAPI.
type Serp struct {
	baseURL    string
	engine     string
	pool       *failover.Pool
	httpClient *http.Client
}

// NewSerp creates a web search client.
func NewSerp(cfg SerpConfig, logger *slog.Logger) *Serp {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://serpapi.com"
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Serp{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		engine:     cfg.Engine,
		pool:       failover.NewPool("serpapi", cfg.Keys, failover.WithTimeout(cfg.Timeout), failover.WithLogger(logger)),
		httpClient: &http.Client{},
	}
}

// Enabled reports whether any API key is configured.
func (s *Serp) Enabled() bool { return s.pool.Len() > 0 }

// Search returns up to max organic results for query.
func (s *Serp) Search(ctx context.Context, query string, max int) ([]WebResult, error) {
	return failover.Call(ctx, s.pool, func(ctx context.Context, key string) ([]WebResult, error) {
		return s.searchOnce(ctx, key, query, max)
	})
}

func (s *Serp) searchOnce(ctx context.Context, key, query string, max int) ([]WebResult, error) {
	q := url.Values{}
	q.Set("engine", s.engine)
	q.Set("q", query)
	q.Set("api_key", key)
	q.Set("num", strconv.Itoa(max))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("serpapi: creating request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("serpapi: request failed: %w", err)
	}
	body, err := failover.ReadBody("serpapi", resp, 4<<20)
	if err != nil {
		return nil, err
	}

	var out struct {
		OrganicResults []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"organic_results"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("serpapi: parsing response: %w", err)
	}
	if out.Error != "" && len(out.OrganicResults) == 0 {
		return nil, fmt.Errorf("serpapi: %s", out.Error)
	}

	results := make([]WebResult, 0, len(out.OrganicResults))
	for _, r := range out.OrganicResults {
		results = append(results, WebResult{Title: r.Title, Snippet: r.Snippet, URL: r.Link})
		if len(results) == max {
			break
		}
	}
	return results, nil
}
