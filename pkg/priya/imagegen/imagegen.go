// Package imagegen generates images from a text prompt through the
// key-less Pollinations endpoint.
package imagegen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// ErrEmptyPrompt is returned when nothing is left of the prompt after
// sanitizing.
var ErrEmptyPrompt = errors.New("imagegen: empty prompt")

// Config configures the generator.
type Config struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	MaxSize int64         `yaml:"max_size"`
}

// Image is a generated picture.
type Image struct {
	Data     []byte
	MimeType string
	Prompt   string
}

// Generator fetches generated images.
type Generator struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a generator.
func New(cfg Config, logger *slog.Logger) *Generator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://image.pollinations.ai"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 20 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Generator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "imagegen"),
	}
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s]`)

// SanitizePrompt keeps letters, digits, underscores and spaces.
func SanitizePrompt(prompt string) string {
	return strings.TrimSpace(unsafeChars.ReplaceAllString(prompt, ""))
}

// Generate returns an image for prompt.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Image, error) {
	clean := SanitizePrompt(prompt)
	if clean == "" {
		return nil, ErrEmptyPrompt
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	endpoint := g.cfg.BaseURL + "/prompt/" + url.PathEscape(clean)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: creating request: %w", err)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: request failed: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	data, err := failover.ReadBody("pollinations", resp, g.cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("imagegen: %w", failover.ErrEmptyResponse)
	}
	if mime == "" {
		mime = http.DetectContentType(data)
	}

	g.logger.Info("image generated", "bytes", len(data), "duration_ms", time.Since(start).Milliseconds())
	return &Image{Data: data, MimeType: mime, Prompt: clean}, nil
}
