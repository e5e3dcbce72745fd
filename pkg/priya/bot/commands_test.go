package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/priyabot/priya/pkg/priya/channels"
	"github.com/priyabot/priya/pkg/priya/imagegen"
	"github.com/priyabot/priya/pkg/priya/memory"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		wantName string
		wantArgs string
		wantOK   bool
	}{
		{"/start", "/start", "", true},
		{"  /Start@PriyaBot  hi there ", "/start", "hi there", true},
		{"/all_send\nline one\nline two", "/all_send", "line one\nline two", true},
		{"/user_send 42 hello  bestie", "/user_send", "42 hello  bestie", true},
		{"hello /start", "", "", false},
		{"/", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		name, args, ok := parseCommand(tt.in)
		if name != tt.wantName || args != tt.wantArgs || ok != tt.wantOK {
			t.Errorf("parseCommand(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.in, name, args, ok, tt.wantName, tt.wantArgs, tt.wantOK)
		}
	}
}

func TestUserCommands_Voice(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	steps := []struct {
		cmd      string
		reply    string
		mode     bool
		engine   memory.VoiceEngine
		identity string
	}{
		{"/start", textStart, false, memory.VoiceDefault, ""},
		{"/voice", textVoiceOn, true, memory.VoiceDefault, ""},
		{"/voiceoff", textVoiceOff, false, memory.VoiceDefault, ""},
		{"/onrose", textRoseOn, true, memory.VoiceCloned, "rose"},
		{"/onpriya", textPriyaOn, true, memory.VoiceCloned, "priya"},
		{"/offpriya", textPriyaOff, true, memory.VoiceDefault, ""},
		{"/onrose", textRoseOn, true, memory.VoiceCloned, "rose"},
		{"/offrose", textRoseOff, true, memory.VoiceDefault, ""},
	}
	for _, s := range steps {
		h.ch.reset()
		h.text("42", s.cmd)

		if got := h.ch.texts(); len(got) != 1 || got[0] != s.reply {
			t.Fatalf("%s: texts = %q, want %q", s.cmd, got, s.reply)
		}
		p, err := h.store.Profile(ctx, "42")
		if err != nil {
			t.Fatalf("Profile: %v", err)
		}
		if p.VoiceMode != s.mode || p.VoiceEngine != s.engine || p.VoiceIdentity != s.identity {
			t.Fatalf("%s: profile = %+v", s.cmd, p)
		}
	}
	if h.llm.callCount() != 0 {
		t.Fatal("commands must not reach the model")
	}
}

func TestImageCommand(t *testing.T) {
	gen := &fakeImages{img: &imagegen.Image{Data: []byte("jpg"), MimeType: "image/jpeg"}}
	h := newHarness(t, func(_ *Config, d *Deps) { d.Images = gen })

	h.text("42", "/image")
	h.text("42", "/image cute anime girl")

	items := h.ch.items()
	if len(items) != 2 || items[0].Text != textImageUsage {
		t.Fatalf("sent = %+v", items)
	}
	photo := items[1]
	if photo.Kind != "photo" || photo.File.Filename != "image.jpg" {
		t.Fatalf("photo = %+v", photo)
	}
	if photo.File.Caption != "🖼️ Generated by Priya\n✨ Prompt: cute anime girl" {
		t.Errorf("caption = %q", photo.File.Caption)
	}
	if gen.prompt != "cute anime girl" {
		t.Errorf("prompt = %q", gen.prompt)
	}
}

func TestImageCommand_Failure(t *testing.T) {
	h := newHarness(t, func(_ *Config, d *Deps) {
		d.Images = &fakeImages{err: fmt.Errorf("502")}
	})
	h.text("42", "/image cat")

	if got := h.ch.texts(); len(got) != 1 || got[0] != textImageFailed {
		t.Fatalf("texts = %q", got)
	}

	noGen := newHarness(t, nil)
	noGen.text("42", "/image cat")
	if got := noGen.ch.texts(); len(got) != 1 || got[0] != textImageFailed {
		t.Fatalf("texts without generator = %q", got)
	}
}

func TestAdminMenu(t *testing.T) {
	h := newHarness(t, nil)
	h.text(adminID, "/menu")

	got := h.ch.texts()
	if len(got) != 1 || !strings.HasPrefix(got[0], "👑") || !strings.Contains(got[0], "/user_send <id>") {
		t.Fatalf("menu = %q", got)
	}
	if strings.Contains(got[0], "*") {
		t.Errorf("menu carries Markdown markers but is sent as plain text: %q", got[0])
	}
}

func seedUsers(t *testing.T, store memory.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if err := store.Append(context.Background(), id, memory.RoleUser, "hi"); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBroadcast_TextSkipsFailures(t *testing.T) {
	h := newHarness(t, nil)
	seedUsers(t, h.store, "a", "b", "c")
	h.ch.failChats["b"] = true

	h.text(adminID, "/all_send Diwali mubarak 🪔")

	var got []string
	for _, it := range h.ch.items() {
		got = append(got, it.ChatID+":"+it.Text)
	}
	want := []string{"a:Diwali mubarak 🪔", "c:Diwali mubarak 🪔", adminID + ":" + textBroadcastDone}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("sent = %q, want %q", got, want)
	}
}

func TestBroadcast_ReplyToMedia(t *testing.T) {
	h := newHarness(t, nil)
	seedUsers(t, h.store, "a", "b")

	h.send(&channels.IncomingMessage{
		From:    adminID,
		Content: "/all_send",
		ReplyTo: &channels.IncomingMessage{
			Type:    channels.MessageVideo,
			Content: "new video!",
			Media:   &channels.MediaInfo{Type: channels.MessageVideo, FileID: "vid-1"},
		},
	})

	items := h.ch.items()
	if len(items) != 3 {
		t.Fatalf("sent = %+v", items)
	}
	for _, it := range items[:2] {
		if it.Kind != "ref" || it.Ref.FileID != "vid-1" || it.Ref.Type != channels.MessageVideo || it.Ref.Caption != "new video!" {
			t.Errorf("broadcast item = %+v", it)
		}
	}
	if items[2].Text != textBroadcastDone {
		t.Errorf("last = %+v", items[2])
	}
}

func TestBroadcast_ReplyToText(t *testing.T) {
	h := newHarness(t, nil)
	seedUsers(t, h.store, "a")

	h.send(&channels.IncomingMessage{
		From:    adminID,
		Content: "/all_send",
		ReplyTo: &channels.IncomingMessage{Type: channels.MessageText, Content: "forwarded"},
	})

	if got := h.ch.texts(); fmt.Sprint(got) != fmt.Sprint([]string{"forwarded", textBroadcastDone}) {
		t.Fatalf("texts = %q", got)
	}
}

func TestBroadcast_NothingToSend(t *testing.T) {
	h := newHarness(t, nil)
	seedUsers(t, h.store, "a")
	h.text(adminID, "/all_send")

	if got := h.ch.texts(); len(got) != 1 || got[0] != textBroadcastUsage {
		t.Fatalf("texts = %q", got)
	}
}

func TestBroadcast_StopsWhenContextEnds(t *testing.T) {
	h := newHarness(t, func(c *Config, _ *Deps) { c.BroadcastDelay = 0 })
	seedUsers(t, h.store, "a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	sent, failed := h.bot.broadcast(ctx, h.bot.logger, func(context.Context, string) error {
		calls++
		cancel()
		return nil
	})
	if calls != 1 || sent != 1 || failed != 0 {
		t.Fatalf("calls=%d sent=%d failed=%d, want a single send", calls, sent, failed)
	}
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepCtx(ctx, 0) {
		t.Error("sleepCtx(cancelled, 0) = true")
	}
	if sleepCtx(ctx, time.Hour) {
		t.Error("sleepCtx(cancelled, 1h) = true")
	}
	if !sleepCtx(context.Background(), time.Millisecond) {
		t.Error("sleepCtx(background) = false")
	}
}

func TestUserSend(t *testing.T) {
	h := newHarness(t, nil)

	h.text(adminID, "/user_send")
	h.text(adminID, "/user_send 7")
	h.text(adminID, "/user_send 7 hello bestie")
	h.send(&channels.IncomingMessage{
		From:    adminID,
		Type:    channels.MessageImage,
		Content: "/user_send 7 dekho",
		Media:   &channels.MediaInfo{Type: channels.MessageImage, FileID: "photo-1"},
	})

	items := h.ch.items()
	if len(items) != 6 {
		t.Fatalf("sent = %+v", items)
	}
	if items[0].Text != textUserSendUsage || items[1].Text != textUserSendUsage {
		t.Errorf("usage replies = %q / %q", items[0].Text, items[1].Text)
	}
	if items[2].ChatID != "7" || items[2].Text != "hello bestie" || items[3].Text != textUserSendDone {
		t.Errorf("text send = %+v / %+v", items[2], items[3])
	}
	if items[4].Kind != "ref" || items[4].ChatID != "7" || items[4].Ref.FileID != "photo-1" || items[4].Ref.Caption != "dekho" {
		t.Errorf("media send = %+v", items[4])
	}
	if items[5].Text != textUserSendDone {
		t.Errorf("confirmation = %+v", items[5])
	}
}

func TestUserSend_Failure(t *testing.T) {
	h := newHarness(t, nil)
	h.ch.failChats["7"] = true

	h.text(adminID, "/user_send 7 hi")

	got := h.ch.texts()
	if len(got) != 1 || got[0] != fmt.Sprintf(textUserSendFailed, errSendFailed) {
		t.Fatalf("texts = %q", got)
	}
}
