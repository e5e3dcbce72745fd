package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// KeyringService is the service name used in the OS keyring.
const KeyringService = "priya"

// Secret names accepted by `priya config set-key`.
const (
	SecretBotToken   = "bot_token"
	SecretOpenRouter = "openrouter"
	SecretElevenLabs = "elevenlabs"
	SecretYouTube    = "youtube"
	SecretSerpAPI    = "serpapi"
	SecretWhisper    = "whisper"
)

// ErrUnknownSecret is returned for a secret name outside SecretNames.
var ErrUnknownSecret = errors.New("config: unknown secret name")

var secretNames = map[string]bool{
	SecretBotToken:   true,
	SecretOpenRouter: true,
	SecretElevenLabs: true,
	SecretYouTube:    true,
	SecretSerpAPI:    true,
	SecretWhisper:    true,
}

// SecretNames lists the accepted secret names, sorted.
func SecretNames() []string {
	names := make([]string, 0, len(secretNames))
	for n := range secretNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// StoreSecret saves a secret to the OS keyring. Pool secrets may hold
// several keys separated by commas or newlines.
func StoreSecret(name, value string) error {
	if !secretNames[name] {
		return fmt.Errorf("%w: %q (want one of %s)", ErrUnknownSecret, name, strings.Join(SecretNames(), ", "))
	}
	if err := keyring.Set(KeyringService, name, value); err != nil {
		return fmt.Errorf("config: storing %s in keyring: %w", name, err)
	}
	return nil
}

// GetSecret retrieves a secret from the OS keyring.
// Returns empty string if not found or the keyring is unavailable.
func GetSecret(name string) string {
	val, err := keyring.Get(KeyringService, name)
	if err != nil {
		return ""
	}
	return val
}

// DeleteSecret removes a secret from the OS keyring.
func DeleteSecret(name string) error {
	err := keyring.Delete(KeyringService, name)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("config: deleting %s from keyring: %w", name, err)
	}
	return nil
}

// ReadSecret prompts on stderr and reads a line without echo. When stdin
// is not a terminal the line is read as-is, so piping works.
func ReadSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("config: reading secret: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("config: reading secret: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// splitSecret splits a stored pool secret into keys.
func splitSecret(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})
}
