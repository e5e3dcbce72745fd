package tts

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// GoogleConfig configures the key-less fallback tier.
type GoogleConfig struct {
	// BaseURL overrides the endpoint; empty derives it from TLD.
	BaseURL  string        `yaml:"base_url"`
	Language string        `yaml:"language"`
	TLD      string        `yaml:"tld"`
	MaxChars int           `yaml:"max_chars"`
	Timeout  time.Duration `yaml:"timeout"`
}

// DefaultGoogleConfig returns the Indian English voice settings.
func DefaultGoogleConfig() GoogleConfig {
	return GoogleConfig{
		Language: "en",
		TLD:      "co.in",
		MaxChars: 500,
		Timeout:  30 * time.Second,
	}
}

// chunkRunes is the longest text the translate_tts endpoint accepts.
const chunkRunes = 100

// GoogleTranslate speaks through the public translate_tts endpoint. It
// needs no credentials and returns MP3, which chat clients play directly.
type GoogleTranslate struct {
	cfg        GoogleConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewGoogleTranslate creates the fallback tier.
func NewGoogleTranslate(cfg GoogleConfig, logger *slog.Logger) *GoogleTranslate {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultGoogleConfig()
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.TLD == "" {
		cfg.TLD = def.TLD
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://translate.google." + cfg.TLD
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GoogleTranslate{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "tts", "tier", "google"),
	}
}

// Name implements Synthesizer.
func (g *GoogleTranslate) Name() string { return "google" }

// Synthesize implements Synthesizer. The voice preference is ignored.
func (g *GoogleTranslate) Synthesize(ctx context.Context, text string, _ Voice) (*Audio, error) {
	clean := Sanitize(text, g.cfg.MaxChars)
	if clean == "" {
		return nil, fmt.Errorf("google tts: nothing to speak")
	}

	chunks := splitChunks(clean, chunkRunes)
	var out bytes.Buffer
	for i, chunk := range chunks {
		data, err := g.fetch(ctx, chunk, i, len(chunks))
		if err != nil {
			return nil, fmt.Errorf("google tts: chunk %d/%d: %w", i+1, len(chunks), err)
		}
		out.Write(data)
	}

	g.logger.Debug("fallback voice synthesized", "chunks", len(chunks), "bytes", out.Len())
	return &Audio{Data: out.Bytes(), MimeType: "audio/mpeg", Filename: "reply.mp3"}, nil
}

func (g *GoogleTranslate) fetch(ctx context.Context, chunk string, idx, total int) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.cfg.Language)
	q.Set("q", chunk)
	q.Set("idx", strconv.Itoa(idx))
	q.Set("total", strconv.Itoa(total))
	q.Set("textlen", strconv.Itoa(len([]rune(chunk))))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Referer", g.cfg.BaseURL+"/")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	data, err := failover.ReadBody("google-tts", resp, 5*1024*1024)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, failover.ErrEmptyResponse
	}
	return data, nil
}

// splitChunks cuts text into pieces of at most limit runes, preferring to
// break after whitespace or punctuation.
func splitChunks(text string, limit int) []string {
	var chunks []string
	runes := []rune(text)
	for len(runes) > 0 {
		if len(runes) <= limit {
			chunks = appendChunk(chunks, runes)
			break
		}
		cut := limit
		for i := limit; i > limit/2; i-- {
			r := runes[i-1]
			if unicode.IsSpace(r) || strings.ContainsRune(".,!?;:", r) {
				cut = i
				break
			}
		}
		chunks = appendChunk(chunks, runes[:cut])
		runes = runes[cut:]
	}
	return chunks
}

func appendChunk(chunks []string, r []rune) []string {
	s := strings.TrimSpace(string(r))
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}
