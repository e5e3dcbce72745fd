// Package config loads the priya configuration: a YAML file with
// environment variable expansion, .env files, the deployment environment
// variables (BOT_TOKEN, OPENROUTER_API_n, ...) and secrets kept in the OS
// keyring.
//
// Precedence for the bot token: OS keyring → BOT_TOKEN → config file.
// Credential pools are the union of the config file, the numbered
// environment variables and the keyring, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/priyabot/priya/pkg/priya/bot"
	"github.com/priyabot/priya/pkg/priya/channels/telegram"
	"github.com/priyabot/priya/pkg/priya/imagegen"
	"github.com/priyabot/priya/pkg/priya/keepalive"
	"github.com/priyabot/priya/pkg/priya/llm"
	"github.com/priyabot/priya/pkg/priya/media"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/search"
	"github.com/priyabot/priya/pkg/priya/tts"
)

// ErrMissingToken is returned by Validate when no bot token was found.
var ErrMissingToken = errors.New("config: bot token not set (use BOT_TOKEN, the keyring or telegram.token)")

// Config is the full process configuration.
type Config struct {
	Telegram      telegram.Config     `yaml:"telegram"`
	Bot           bot.Config          `yaml:"bot"`
	LLM           llm.Config          `yaml:"llm"`
	Speech        SpeechConfig        `yaml:"speech"`
	Transcription media.WhisperConfig `yaml:"transcription"`
	Search        SearchConfig        `yaml:"search"`
	Images        imagegen.Config     `yaml:"images"`
	Memory        memory.SQLiteConfig `yaml:"memory"`
	KeepAlive     keepalive.Config    `yaml:"keepalive"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// SpeechConfig configures both synthesis tiers.
type SpeechConfig struct {
	// FFmpegPath is the transcoder binary. Empty means "ffmpeg" on PATH.
	FFmpegPath string               `yaml:"ffmpeg_path"`
	ElevenLabs tts.ElevenLabsConfig `yaml:"elevenlabs"`
	Google     tts.GoogleConfig     `yaml:"google"`
}

// SearchConfig configures the context lookups.
type SearchConfig struct {
	YouTube search.YouTubeConfig   `yaml:"youtube"`
	Serp    search.SerpConfig      `yaml:"serp"`
	Augment search.AugmenterConfig `yaml:"augment"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `yaml:"level"`

	// Format is the log format ("json", "text").
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Telegram:      telegram.Config{PollTimeout: 30},
		Bot:           bot.DefaultConfig(),
		LLM:           llm.DefaultConfig(),
		Speech:        SpeechConfig{ElevenLabs: tts.DefaultElevenLabsConfig(), Google: tts.DefaultGoogleConfig()},
		Transcription: media.DefaultWhisperConfig(),
		Search:        SearchConfig{Augment: search.DefaultAugmenterConfig()},
		Memory: memory.SQLiteConfig{
			Path:         "./data/priya.db",
			JournalMode:  "WAL",
			BusyTimeout:  5000,
			HistoryLimit: memory.DefaultHistoryLimit,
		},
		KeepAlive: keepalive.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info", Format: "json"},
	}
}

// Validate checks the settings `priya serve` needs.
func (c *Config) Validate() error {
	if tok := strings.TrimSpace(c.Telegram.Token); tok == "" || isEnvReference(tok) {
		return ErrMissingToken
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "text":
	default:
		return fmt.Errorf("config: unknown logging.format %q (want json or text)", c.Logging.Format)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown logging.level %q", c.Logging.Level)
	}
	return nil
}
