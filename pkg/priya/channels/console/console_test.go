package console

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/priyabot/priya/pkg/priya/channels"
)

// newOffline returns a console that writes to a buffer without opening a
// terminal.
func newOffline(t *testing.T) (*Console, *bytes.Buffer) {
	t.Helper()
	c := New(Config{OutDir: t.TempDir()}, nil)
	buf := &bytes.Buffer{}
	c.out = buf
	c.connected.Store(true)
	return c, buf
}

func TestSendText(t *testing.T) {
	c, buf := newOffline(t)
	if err := c.SendText(context.Background(), UserID, "namaste"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if buf.String() != "priya> namaste\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestSendDocument_WritesFileAndDownloads(t *testing.T) {
	c, buf := newOffline(t)
	ctx := context.Background()

	if err := c.SendDocument(ctx, UserID, channels.File{Data: []byte("PK"), Filename: "code.zip", Caption: "zip ready"}); err != nil {
		t.Fatalf("SendDocument: %v", err)
	}
	entries, _ := os.ReadDir(c.cfg.OutDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "-code.zip") {
		t.Fatalf("out dir = %v", entries)
	}
	if !strings.Contains(buf.String(), "zip ready") {
		t.Errorf("caption not printed: %q", buf.String())
	}

	data, err := c.Download(ctx, "1")
	if err != nil || string(data) != "PK" {
		t.Errorf("Download() = %q, %v", data, err)
	}
	if _, err := c.Download(ctx, "missing"); err == nil {
		t.Error("expected error for unknown file id")
	}
}

func TestSendVoice_DefaultName(t *testing.T) {
	c, _ := newOffline(t)
	if err := c.SendVoice(context.Background(), UserID, channels.File{Data: []byte("ogg")}); err != nil {
		t.Fatalf("SendVoice: %v", err)
	}
	entries, _ := os.ReadDir(c.cfg.OutDir)
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), "-voice") {
		t.Errorf("out dir = %v", entries)
	}
}

func TestSend_Disconnected(t *testing.T) {
	c := New(Config{OutDir: t.TempDir()}, nil)
	if err := c.SendText(context.Background(), UserID, "x"); err != channels.ErrChannelDisconnected {
		t.Errorf("SendText = %v", err)
	}
	if err := c.SendPhoto(context.Background(), UserID, channels.File{Data: []byte("x")}); err != channels.ErrChannelDisconnected {
		t.Errorf("SendPhoto = %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect before Connect = %v", err)
	}
}
