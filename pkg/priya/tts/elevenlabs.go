package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/priyabot/priya/pkg/priya/failover"
	"github.com/priyabot/priya/pkg/priya/media"
)

// ElevenLabsConfig configures the voice-cloning tier.
type ElevenLabsConfig struct {
	BaseURL    string            `yaml:"base_url"`
	Model      string            `yaml:"model"`
	Stability  float64           `yaml:"stability"`
	Similarity float64           `yaml:"similarity"`
	MaxChars   int               `yaml:"max_chars"`
	Timeout    time.Duration     `yaml:"timeout"`
	Voices     map[string]string `yaml:"voices"`

	// DefaultVoice is used for identities missing from Voices.
	DefaultVoice string   `yaml:"default_voice"`
	Keys         []string `yaml:"keys"`
}

// DefaultElevenLabsConfig returns the stock voices and settings.
func DefaultElevenLabsConfig() ElevenLabsConfig {
	return ElevenLabsConfig{
		BaseURL:    "https://api.elevenlabs.io/v1",
		Model:      "eleven_monolingual_v1",
		Stability:  0.35,
		Similarity: 0.75,
		MaxChars:   800,
		Timeout:    40 * time.Second,
		Voices: map[string]string{
			"priya": "EXAVITQu4vr4xnSDxMaL",
			"rose":  "VR6AewLTigWG4xSOukaG",
		},
		DefaultVoice: "priya",
	}
}

// ElevenLabs synthesizes with a cloned voice and transcodes the MP3 result
// into a voice note.
type ElevenLabs struct {
	cfg        ElevenLabsConfig
	pool       *failover.Pool
	transcoder media.Transcoder
	httpClient *http.Client
	logger     *slog.Logger
}

// NewElevenLabs creates the tier. transcoder converts MP3 to OGG/Opus.
func NewElevenLabs(cfg ElevenLabsConfig, transcoder media.Transcoder, logger *slog.Logger) *ElevenLabs {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultElevenLabsConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Stability == 0 {
		cfg.Stability = def.Stability
	}
	if cfg.Similarity == 0 {
		cfg.Similarity = def.Similarity
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = def.MaxChars
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if len(cfg.Voices) == 0 {
		cfg.Voices = def.Voices
	}
	if cfg.DefaultVoice == "" {
		cfg.DefaultVoice = def.DefaultVoice
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	logger = logger.With("component", "tts", "tier", "elevenlabs")
	return &ElevenLabs{
		cfg:        cfg,
		pool:       failover.NewPool("elevenlabs", cfg.Keys, failover.WithTimeout(cfg.Timeout), failover.WithLogger(logger)),
		transcoder: transcoder,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// Name implements Synthesizer.
func (e *ElevenLabs) Name() string { return "elevenlabs" }

// VoiceID maps an identity name to the provider voice id.
func (e *ElevenLabs) VoiceID(identity string) string {
	if id, ok := e.cfg.Voices[strings.ToLower(identity)]; ok {
		return id
	}
	return e.cfg.Voices[e.cfg.DefaultVoice]
}

// Synthesize implements Synthesizer. It returns ErrSkipped unless the voice
// selects the cloned engine with an identity.
func (e *ElevenLabs) Synthesize(ctx context.Context, text string, voice Voice) (*Audio, error) {
	if voice.Engine != EngineCloned || voice.Identity == "" {
		return nil, ErrSkipped
	}
	clean := Sanitize(text, e.cfg.MaxChars)
	if clean == "" {
		return nil, fmt.Errorf("elevenlabs: nothing to speak")
	}

	body, err := json.Marshal(elevenRequest{
		Text:    clean,
		ModelID: e.cfg.Model,
		VoiceSettings: elevenVoiceSettings{
			Stability:       e.cfg.Stability,
			SimilarityBoost: e.cfg.Similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	voiceID := e.VoiceID(voice.Identity)
	mp3, err := failover.Call(ctx, e.pool, func(ctx context.Context, key string) ([]byte, error) {
		return e.synthesizeOnce(ctx, key, voiceID, body)
	})
	if err != nil {
		return nil, err
	}

	if e.transcoder == nil {
		return nil, fmt.Errorf("elevenlabs: no transcoder configured")
	}
	ogg, err := e.transcoder.Transcode(ctx, mp3, ".mp3", media.FormatVoiceNote)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: transcoding: %w", err)
	}

	e.logger.Info("cloned voice synthesized", "identity", voice.Identity, "mp3_bytes", len(mp3), "ogg_bytes", len(ogg))
	return &Audio{Data: ogg, MimeType: "audio/ogg", Filename: "reply.ogg"}, nil
}

func (e *ElevenLabs) synthesizeOnce(ctx context.Context, key, voiceID string, body []byte) ([]byte, error) {
	endpoint := e.cfg.BaseURL + "/text-to-speech/" + voiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: creating request: %w", err)
	}
	req.Header.Set("xi-api-key", key)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	data, err := failover.ReadBody("elevenlabs", resp, 10*1024*1024)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("elevenlabs: %w", failover.ErrEmptyResponse)
	}
	return data, nil
}

type elevenRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}
