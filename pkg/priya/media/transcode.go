package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// Format is a target audio encoding.
type Format string

const (
	// FormatVoiceNote is OGG/Opus, the encoding chat clients play inline.
	FormatVoiceNote Format = "ogg"
	FormatMP3       Format = "mp3"
	FormatWAV       Format = "wav"
)

// ErrTranscoderUnavailable is returned when the ffmpeg binary is missing.
var ErrTranscoderUnavailable = errors.New("media: ffmpeg not found")

// Transcoder converts audio bytes from one encoding into another.
type Transcoder interface {
	Transcode(ctx context.Context, data []byte, inputExt string, to Format) ([]byte, error)
}

// FFmpeg transcodes by shelling out to the ffmpeg binary.
type FFmpeg struct {
	// Binary is the ffmpeg executable; empty means "ffmpeg" on PATH.
	Binary string
}

// NewFFmpeg returns a transcoder using the given binary.
func NewFFmpeg(binary string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{Binary: binary}
}

// Available reports whether the binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.binary())
	return err == nil
}

func (f *FFmpeg) binary() string {
	if f.Binary == "" {
		return "ffmpeg"
	}
	return f.Binary
}

// Transcode writes data to a temp file, runs ffmpeg and returns the output.
func (f *FFmpeg) Transcode(ctx context.Context, data []byte, inputExt string, to Format) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("media: transcode: empty input")
	}
	if _, err := exec.LookPath(f.binary()); err != nil {
		return nil, ErrTranscoderUnavailable
	}
	codecArgs, err := codecFor(to)
	if err != nil {
		return nil, err
	}

	tmpIn, err := os.CreateTemp("", "priya-audio-*"+inputExt)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmpIn.Name())
	if _, err := tmpIn.Write(data); err != nil {
		tmpIn.Close()
		return nil, err
	}
	tmpIn.Close()

	tmpOut, err := os.CreateTemp("", "priya-audio-out-*."+string(to))
	if err != nil {
		return nil, err
	}
	outPath := tmpOut.Name()
	tmpOut.Close()
	defer os.Remove(outPath)

	args := append([]string{"-y", "-loglevel", "error", "-i", tmpIn.Name(), "-vn"}, codecArgs...)
	args = append(args, outPath)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.binary(), args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, truncate(stderr.String(), 300))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ffmpeg: produced no output")
	}
	return out, nil
}

func codecFor(to Format) ([]string, error) {
	switch to {
	case FormatVoiceNote:
		return []string{"-acodec", "libopus", "-b:a", "48k", "-f", "ogg"}, nil
	case FormatMP3:
		return []string{"-acodec", "libmp3lame", "-q:a", "4"}, nil
	case FormatWAV:
		return []string{"-acodec", "pcm_s16le", "-ar", "16000", "-ac", "1"}, nil
	default:
		return nil, fmt.Errorf("media: unsupported output format %q", to)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
