// Package search holds the context augmenter and the two lookup providers
// it calls: the YouTube Data API for videos and SerpAPI for web results.
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

// VideoResult is one video hit.
type VideoResult struct {
	Title   string
	Channel string
	URL     string
}

// YouTubeConfig configures the video search client.
type YouTubeConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Keys    []string      `yaml:"keys"`
}

// YouTube searches videos through search.list.
type YouTube struct {
	baseURL    string
	pool       *failover.Pool
	httpClient *http.Client
}

// NewYouTube creates a video search client.
func NewYouTube(cfg YouTubeConfig, logger *slog.Logger) *YouTube {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/youtube/v3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTube{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		pool:       failover.NewPool("youtube", cfg.Keys, failover.WithTimeout(cfg.Timeout), failover.WithLogger(logger)),
		httpClient: &http.Client{},
	}
}

// Enabled reports whether any API key is configured.
func (y *YouTube) Enabled() bool { return y.pool.Len() > 0 }

// Search returns up to max videos matching query.
func (y *YouTube) Search(ctx context.Context, query string, max int) ([]VideoResult, error) {
	return failover.Call(ctx, y.pool, func(ctx context.Context, key string) ([]VideoResult, error) {
		return y.searchOnce(ctx, key, query, max)
	})
}

func (y *YouTube) searchOnce(ctx context.Context, key, query string, max int) ([]VideoResult, error) {
	q := url.Values{}
	q.Set("part", "snippet")
	q.Set("q", query)
	q.Set("type", "video")
	q.Set("maxResults", strconv.Itoa(max))
	q.Set("key", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("youtube: creating request: %w", err)
	}
	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("youtube: request failed: %w", err)
	}
	body, err := failover.ReadBody("youtube", resp, 1<<20)
	if err != nil {
		return nil, err
	}

	var out struct {
		Items []struct {
			ID struct {
				VideoID string `json:"videoId"`
			} `json:"id"`
			Snippet struct {
				Title        string `json:"title"`
				ChannelTitle string `json:"channelTitle"`
			} `json:"snippet"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("youtube: parsing response: %w", err)
	}

	results := make([]VideoResult, 0, len(out.Items))
	for _, it := range out.Items {
		if it.ID.VideoID == "" {
			continue
		}
		results = append(results, VideoResult{
			Title:   it.Snippet.Title,
			Channel: it.Snippet.ChannelTitle,
			URL:     "https://youtu.be/" + it.ID.VideoID,
		})
		if len(results) == max {
			break
		}
	}
	return results, nil
}
