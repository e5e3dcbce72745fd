// Package tts provides the speech half of a reply: a set of synthesis
// tiers tried in order by a Cascade. Tier 1 is a voice-cloning provider
// (ElevenLabs) selected per user; tier 2 is a key-less fallback (Google
// Translate TTS) that needs no credentials.
package tts

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Engines a user profile can select.
const (
	EngineDefault = "default"
	EngineCloned  = "cloned"
)

// ErrSkipped means a tier does not apply to the requested voice. The
// cascade moves on without counting it as a failure.
var ErrSkipped = errors.New("tts: tier not applicable")

// Voice is the user's speech preference.
type Voice struct {
	Engine   string
	Identity string
}

// Audio is a synthesized clip ready to send as a voice note.
type Audio struct {
	Data     []byte
	MimeType string
	Filename string
}

// Synthesizer is one tier of the cascade.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text string, voice Voice) (*Audio, error)
}

var fencedBlock = regexp.MustCompile("(?s)```.*?```")

// CodePlaceholder replaces fenced code blocks in spoken text.
const CodePlaceholder = "Code attached."

// Sanitize replaces every fenced block with CodePlaceholder, trims the
// result and truncates it to limit runes. A limit of zero disables
// truncation.
func Sanitize(text string, limit int) string {
	clean := strings.TrimSpace(fencedBlock.ReplaceAllString(text, CodePlaceholder))
	if limit <= 0 || utf8.RuneCountInString(clean) <= limit {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:limit])
}
