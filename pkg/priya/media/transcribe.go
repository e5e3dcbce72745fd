package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// ErrTranscriptionUnavailable means the audio could not be turned into text.
// The pipeline answers it with a neutral placeholder.
var ErrTranscriptionUnavailable = errors.New("media: transcription unavailable")

// Transcriber turns recorded speech into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// WhisperConfig configures a Whisper-compatible transcription endpoint.
type WhisperConfig struct {
	BaseURL  string        `yaml:"base_url"`
	Model    string        `yaml:"model"`
	Language string        `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
	Keys     []string      `yaml:"keys"`
}

// DefaultWhisperConfig returns the OpenAI defaults.
func DefaultWhisperConfig() WhisperConfig {
	return WhisperConfig{
		BaseURL: "https://api.openai.com/v1",
		Model:   "whisper-1",
		Timeout: 60 * time.Second,
	}
}

// Whisper posts audio to /audio/transcriptions, failing over across keys.
type Whisper struct {
	cfg        WhisperConfig
	pool       *failover.Pool
	httpClient *http.Client
	logger     *slog.Logger
}

// NewWhisper creates a transcriber.
func NewWhisper(cfg WhisperConfig, logger *slog.Logger) *Whisper {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWhisperConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logger.With("component", "transcriber")
	return &Whisper{
		cfg:        cfg,
		pool:       failover.NewPool("transcription", cfg.Keys, failover.WithTimeout(cfg.Timeout), failover.WithLogger(logger)),
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Transcribe returns the recognized text. Any failure, including an empty
// transcript, is reported as ErrTranscriptionUnavailable.
func (w *Whisper) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if filename == "" {
		filename = "voice.ogg"
	}
	if len(audio) == 0 {
		return "", ErrTranscriptionUnavailable
	}

	text, err := failover.Call(ctx, w.pool, func(ctx context.Context, key string) (string, error) {
		return w.transcribeOnce(ctx, key, audio, filename)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscriptionUnavailable, err)
	}
	return text, nil
}

func (w *Whisper) transcribeOnce(ctx context.Context, key string, audio []byte, filename string) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("writing audio data: %w", err)
	}
	if err := mw.WriteField("model", w.cfg.Model); err != nil {
		return "", fmt.Errorf("writing model field: %w", err)
	}
	if w.cfg.Language != "" {
		_ = mw.WriteField("language", w.cfg.Language)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.BaseURL+"/audio/transcriptions", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+key)

	start := time.Now()
	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	body, err := failover.ReadBody("transcription", resp, 0)
	if err != nil {
		return "", err
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("parsing transcription response: %w", err)
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", fmt.Errorf("empty transcript: %w", failover.ErrEmptyResponse)
	}

	w.logger.Debug("audio transcribed",
		"size_bytes", len(audio),
		"duration_ms", time.Since(start).Milliseconds(),
		"chars", len(text),
	)
	return text, nil
}
