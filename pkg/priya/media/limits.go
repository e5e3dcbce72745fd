// Package media holds the black boxes the pipeline uses for audio and
// image attachments: size limits, MIME detection, ffmpeg transcoding and
// Whisper-compatible speech-to-text.
package media

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
)

// Kind categorizes an attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindAudio Kind = "audio"
	KindOther Kind = "other"
)

// ErrTooLarge is returned when an attachment exceeds its size limit.
var ErrTooLarge = errors.New("media: attachment too large")

// Limits caps attachment sizes per kind. Zero disables a check.
type Limits struct {
	MaxImageSize int64 `yaml:"max_image_size"`
	MaxAudioSize int64 `yaml:"max_audio_size"`
}

// DefaultLimits returns the default attachment limits.
func DefaultLimits() Limits {
	return Limits{
		MaxImageSize: 20 * 1024 * 1024, // 20MB
		MaxAudioSize: 25 * 1024 * 1024, // 25MB (Whisper limit)
	}
}

// MaxFor returns the limit for a kind.
func (l Limits) MaxFor(k Kind) int64 {
	switch k {
	case KindImage:
		return l.MaxImageSize
	case KindAudio:
		return l.MaxAudioSize
	default:
		return 0
	}
}

// Check returns ErrTooLarge when size exceeds the limit for k.
func (l Limits) Check(k Kind, size int64) error {
	limit := l.MaxFor(k)
	if limit > 0 && size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d for %s", ErrTooLarge, size, limit, k)
	}
	return nil
}

// DetectMimeType sniffs data and falls back to the file extension when the
// content is not recognized.
func DetectMimeType(data []byte, filename string) string {
	detected := http.DetectContentType(data)
	if detected != "application/octet-stream" {
		return strings.TrimSpace(strings.Split(detected, ";")[0])
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".ogg", ".oga", ".opus":
		return "audio/ogg"
	case ".m4a":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	}
	return detected
}
