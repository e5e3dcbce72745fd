package bot

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/priyabot/priya/pkg/priya/archive"
	"github.com/priyabot/priya/pkg/priya/memory"
	"github.com/priyabot/priya/pkg/priya/tts"
)

const codeReply = "Ye lo bestie:\n```python\nprint('hi')\n```\nEnjoy!"

func TestReplier_VoiceModeOffSendsOnlyText(t *testing.T) {
	ch := newFakeChannel()
	store := memory.NewMemStore(0)
	tier := &stubTier{name: "google", audio: &tts.Audio{Data: []byte("mp3")}}
	r := NewReplier(ch, store, tts.NewCascade(nil, tier), nil)

	r.Deliver(context.Background(), "chat", "42", codeReply)

	if got := ch.kinds(); strings.Join(got, ",") != "text" {
		t.Fatalf("sent kinds = %v, want only text", got)
	}
	if tier.calls != 0 {
		t.Fatalf("speech called %d times with voice mode off", tier.calls)
	}
}

func TestReplier_VoiceModeOnSendsArchiveThenVoice(t *testing.T) {
	ch := newFakeChannel()
	store := memory.NewMemStore(0)
	_ = store.SetVoiceMode(context.Background(), "42", true)
	tier := &stubTier{name: "google", audio: &tts.Audio{Data: []byte("mp3"), Filename: "reply.mp3", MimeType: "audio/mpeg"}}
	r := NewReplier(ch, store, tts.NewCascade(nil, tier), nil)

	r.Deliver(context.Background(), "chat", "42", codeReply)

	if got := ch.kinds(); strings.Join(got, ",") != "text,document,voice" {
		t.Fatalf("sent kinds = %v", got)
	}
	items := ch.items()
	if items[0].Text != codeReply {
		t.Errorf("text = %q", items[0].Text)
	}
	doc := items[1].File
	if doc.Filename != archive.Filename || doc.Caption != archive.Caption {
		t.Errorf("document = %q / %q", doc.Filename, doc.Caption)
	}
	zr, err := zip.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		t.Fatalf("archive is not a zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "src/file_1.py" {
		t.Errorf("archive entries = %v", zr.File)
	}
	if string(items[2].File.Data) != "mp3" {
		t.Errorf("voice = %+v", items[2].File)
	}
}

func TestReplier_NoCodeNoArchive(t *testing.T) {
	ch := newFakeChannel()
	store := memory.NewMemStore(0)
	_ = store.SetVoiceMode(context.Background(), "42", true)
	r := NewReplier(ch, store, tts.NewCascade(nil, &stubTier{name: "broken", err: context.DeadlineExceeded}), nil)

	r.Deliver(context.Background(), "chat", "42", "just words")

	// Every tier failed: text only, no garbage artifacts.
	if got := ch.kinds(); strings.Join(got, ",") != "text" {
		t.Fatalf("sent kinds = %v, want only text", got)
	}
}

func TestReplier_TextFailureDoesNotStopExtras(t *testing.T) {
	ch := newFakeChannel()
	store := memory.NewMemStore(0)
	_ = store.SetVoiceMode(context.Background(), "42", true)
	tier := &stubTier{name: "google", audio: &tts.Audio{Data: []byte("mp3")}}
	r := NewReplier(ch, store, tts.NewCascade(nil, tier), nil)

	ch.failChats["chat"] = true
	r.Deliver(context.Background(), "chat", "42", codeReply)

	if tier.calls != 1 {
		t.Fatalf("speech calls = %d, want 1 after a failed text send", tier.calls)
	}
}

func TestReplier_NilSpeech(t *testing.T) {
	ch := newFakeChannel()
	store := memory.NewMemStore(0)
	_ = store.SetVoiceMode(context.Background(), "42", true)
	r := NewReplier(ch, store, nil, nil)

	r.Deliver(context.Background(), "chat", "42", codeReply)

	if got := ch.kinds(); strings.Join(got, ",") != "text,document" {
		t.Fatalf("sent kinds = %v", got)
	}
}

func TestReplier_ChatActionFailureIsLogged(t *testing.T) {
	ch := newFakeChannel()
	ch.activityErr = errors.New("chat action rejected")
	store := memory.NewMemStore(0)
	_ = store.SetVoiceMode(context.Background(), "42", true)
	tier := &stubTier{name: "google", audio: &tts.Audio{Data: []byte("mp3")}}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := NewReplier(ch, store, tts.NewCascade(nil, tier), logger)

	r.Deliver(context.Background(), "chat", "42", codeReply)

	if got := ch.kinds(); strings.Join(got, ",") != "text,document,voice" {
		t.Fatalf("sent kinds = %v", got)
	}
	out := logs.String()
	for _, a := range []string{"upload_document", "record_voice"} {
		if !strings.Contains(out, "activity="+a) || !strings.Contains(out, "chat action rejected") {
			t.Errorf("failed %s action not logged:\n%s", a, out)
		}
	}
}
