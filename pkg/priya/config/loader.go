package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/priyabot/priya/pkg/priya/failover"
)

// maxNumberedKeys bounds the OPENROUTER_API_n / ELEVEN_API_n scan.
const maxNumberedKeys = 32

// envVarPattern matches environment variable patterns in config values:
//   - ${VAR_NAME}          - simple variable
//   - ${VAR_NAME:-default} - default value if not set
//   - ${VAR_NAME:?error}   - error if not set
//   - $VAR_NAME            - bare variable
//
// Groups: 1 name for ${}, 2 modifier, 3 default or message, 4 bare name.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// Load reads the configuration. An empty path searches FindConfigFile; when
// no file exists the defaults are used. Environment overrides and keyring
// secrets are applied in both cases.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	if path == "" {
		path = FindConfigFile()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
		expanded, err := expandEnvVars(string(data))
		if err != nil {
			return nil, err
		}
		if cfg, err = Parse([]byte(expanded)); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	applyKeyring(cfg)
	return cfg, nil
}

// Parse overlays YAML onto the defaults. No expansion is done.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing YAML: %w", err)
	}
	return cfg, nil
}

// Save writes cfg as YAML with owner-only permissions, keeping the previous
// file as <path>.bak.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshaling: %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

// Show renders cfg as YAML with every secret masked.
func Show(cfg *Config) (string, error) {
	masked := *cfg
	masked.Telegram.Token = maskOne(cfg.Telegram.Token)
	masked.LLM.Keys = maskAll(cfg.LLM.Keys)
	masked.Speech.ElevenLabs.Keys = maskAll(cfg.Speech.ElevenLabs.Keys)
	masked.Transcription.Keys = maskAll(cfg.Transcription.Keys)
	masked.Search.YouTube.Keys = maskAll(cfg.Search.YouTube.Keys)
	masked.Search.Serp.Keys = maskAll(cfg.Search.Serp.Keys)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return "", fmt.Errorf("config: marshaling: %w", err)
	}
	return string(data), nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"priya.yaml",
		"priya.yml",
		"configs/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ---------- Internal ----------

// loadEnvFiles loads .env files without overwriting existing variables.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// applyEnv overlays the deployment environment variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("BOT_TOKEN")); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("ADMIN_IDS"); v != "" {
		cfg.Bot.Admins = dedupe(append(cfg.Bot.Admins, strings.Split(v, ",")...))
	}
	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		if _, err := strconv.Atoi(v); err == nil {
			cfg.KeepAlive.Address = ":" + v
		}
	}

	cfg.LLM.Keys = dedupe(append(cfg.LLM.Keys, numberedEnv("OPENROUTER_API_")...))
	cfg.Speech.ElevenLabs.Keys = dedupe(append(cfg.Speech.ElevenLabs.Keys, numberedEnv("ELEVEN_API_")...))
	cfg.Search.YouTube.Keys = dedupe(append(cfg.Search.YouTube.Keys, os.Getenv("YOUTUBE_API_KEY")))
	cfg.Search.Serp.Keys = dedupe(append(cfg.Search.Serp.Keys, os.Getenv("SERP_API_KEY")))
	cfg.Transcription.Keys = dedupe(append(cfg.Transcription.Keys, os.Getenv("WHISPER_API_KEY")))
}

// applyKeyring overlays secrets from the OS keyring. The keyring token wins
// over env and file; pool secrets are appended.
func applyKeyring(cfg *Config) {
	if v := strings.TrimSpace(GetSecret(SecretBotToken)); v != "" {
		cfg.Telegram.Token = v
	}
	cfg.LLM.Keys = dedupe(append(cfg.LLM.Keys, splitSecret(GetSecret(SecretOpenRouter))...))
	cfg.Speech.ElevenLabs.Keys = dedupe(append(cfg.Speech.ElevenLabs.Keys, splitSecret(GetSecret(SecretElevenLabs))...))
	cfg.Search.YouTube.Keys = dedupe(append(cfg.Search.YouTube.Keys, splitSecret(GetSecret(SecretYouTube))...))
	cfg.Search.Serp.Keys = dedupe(append(cfg.Search.Serp.Keys, splitSecret(GetSecret(SecretSerpAPI))...))
	cfg.Transcription.Keys = dedupe(append(cfg.Transcription.Keys, splitSecret(GetSecret(SecretWhisper))...))
}

// numberedEnv returns prefix1..prefix32 in order, skipping gaps and blanks.
func numberedEnv(prefix string) []string {
	var out []string
	for i := 1; i <= maxNumberedKeys; i++ {
		if v := strings.TrimSpace(os.Getenv(prefix + strconv.Itoa(i))); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// dedupe trims, drops blanks and unresolved references and removes
// repeats, keeping first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || isEnvReference(s) {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// isEnvReference reports whether s is an unexpanded ${VAR} or $VAR.
func isEnvReference(s string) bool {
	loc := envVarPattern.FindStringIndex(s)
	return loc != nil && loc[0] == 0 && loc[1] == len(s)
}

func maskOne(s string) string {
	if s == "" {
		return ""
	}
	return failover.MaskKey(s)
}

func maskAll(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = maskOne(k)
	}
	return out
}

// expandEnvVars replaces ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR
// references with their environment values. Unset plain references keep
// their placeholder. The first unset ${VAR:?error} is returned as an error.
func expandEnvVars(input string) (string, error) {
	var firstErr error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if v, ok := os.LookupEnv(bare); ok {
				return v
			}
			return match
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		switch modifier {
		case "-":
			return value
		case "?":
			if firstErr == nil {
				if value == "" {
					value = "required environment variable not set"
				}
				firstErr = fmt.Errorf("config: %s: %s", name, value)
			}
			return ""
		}
		return match
	})
	return out, firstErr
}
