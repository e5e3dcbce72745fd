package imagegen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSanitizePrompt(t *testing.T) {
	tests := []struct{ in, want string }{
		{"cute anime girl", "cute anime girl"},
		{"  cat!!! on a mat?? ", "cat on a mat"},
		{"नमस्ते दुनिया", "नमस्ते दुनिया"},
		{"../../etc/passwd", "etcpasswd"},
		{"?!#", ""},
	}
	for _, tt := range tests {
		if got := SanitizePrompt(tt.in); got != tt.want {
			t.Errorf("SanitizePrompt(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerate(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte{0xff, 0xd8, 0xff})
	}))
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, nil)
	img, err := g.Generate(context.Background(), "cute anime girl!")
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if gotPath != "/prompt/cute anime girl" {
		t.Errorf("path = %q", gotPath)
	}
	if img.MimeType != "image/jpeg" || len(img.Data) != 3 || img.Prompt != "cute anime girl" {
		t.Errorf("image = %+v", img)
	}
}

func TestGenerate_Failures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := New(Config{BaseURL: srv.URL}, nil)
	if _, err := g.Generate(context.Background(), "cat"); err == nil {
		t.Error("expected error on 502")
	}
	if _, err := g.Generate(context.Background(), "!!!"); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("expected ErrEmptyPrompt, got %v", err)
	}
}
