package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recordedCall struct {
	auth string
	body chatRequest
	raw  map[string]any
}

func newFakeProvider(t *testing.T, handler func(key string) (int, string)) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var mu sync.Mutex
	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var raw map[string]any
		var req chatRequest
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &req)
		_ = json.Unmarshal(data, &raw)

		key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		mu.Lock()
		*calls = append(*calls, recordedCall{auth: key, body: req, raw: raw})
		mu.Unlock()

		status, body := handler(key)
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

const okBody = `{"choices":[{"message":{"role":"assistant","content":"  namaste bestie  "},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":2}}`

func TestComplete_FailsOverToNextKey(t *testing.T) {
	srv, calls := newFakeProvider(t, func(key string) (int, string) {
		if key == "key-2" {
			return http.StatusOK, okBody
		}
		return http.StatusTooManyRequests, `{"error":{"message":"rate limit"}}`
	})

	c := New(Config{BaseURL: srv.URL, Keys: []string{"key-1", "key-2", "key-3"}}, nil)
	got := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	if got != "namaste bestie" {
		t.Errorf("Complete() = %q", got)
	}
	if len(*calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(*calls))
	}
	if (*calls)[0].auth != "key-1" || (*calls)[1].auth != "key-2" {
		t.Errorf("wrong key order: %q, %q", (*calls)[0].auth, (*calls)[1].auth)
	}
}

func TestComplete_ExhaustedReturnsFallback(t *testing.T) {
	srv, calls := newFakeProvider(t, func(key string) (int, string) {
		return http.StatusInternalServerError, "down"
	})

	c := New(Config{BaseURL: srv.URL, Keys: []string{"a", "b"}, FallbackReply: "sorry"}, nil)
	got := c.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})

	if got != "sorry" {
		t.Errorf("Complete() = %q, want fallback", got)
	}
	if len(*calls) != 2 {
		t.Errorf("expected both keys tried, got %d calls", len(*calls))
	}
}

func TestComplete_NoKeys(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:0"}, nil)
	if got := c.Complete(context.Background(), nil); got != DefaultConfig().FallbackReply {
		t.Errorf("Complete() = %q, want default fallback", got)
	}
}

func TestComplete_EmptyChoicesMovesOn(t *testing.T) {
	srv, calls := newFakeProvider(t, func(key string) (int, string) {
		if key == "a" {
			return http.StatusOK, `{"choices":[]}`
		}
		return http.StatusOK, okBody
	})

	c := New(Config{BaseURL: srv.URL, Keys: []string{"a", "b"}}, nil)
	if got := c.Complete(context.Background(), nil); got != "namaste bestie" {
		t.Errorf("Complete() = %q", got)
	}
	if len(*calls) != 2 {
		t.Errorf("expected 2 calls, got %d", len(*calls))
	}
}

func TestComplete_RequestShape(t *testing.T) {
	srv, calls := newFakeProvider(t, func(key string) (int, string) { return http.StatusOK, okBody })

	c := New(Config{BaseURL: srv.URL, Model: "openai/gpt-4o-mini", Temperature: 0.7, MaxTokens: 1000, Keys: []string{"k"}}, nil)
	c.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "be nice"},
		{Role: RoleUser, Content: "hello"},
	})

	if len(*calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(*calls))
	}
	req := (*calls)[0].body
	if req.Model != "openai/gpt-4o-mini" || req.Temperature != 0.7 || req.MaxTokens != 1000 {
		t.Errorf("unexpected request params: %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "hello" {
		t.Errorf("unexpected messages: %+v", req.Messages)
	}
}

func TestDescribeImage_SendsImagePart(t *testing.T) {
	srv, calls := newFakeProvider(t, func(key string) (int, string) { return http.StatusOK, okBody })

	c := New(Config{BaseURL: srv.URL, Keys: []string{"k"}}, nil)
	c.DescribeImage(context.Background(), []byte{0xff, 0xd8}, "image/jpeg")

	msgs, _ := (*calls)[0].raw["messages"].([]any)
	if len(msgs) != 1 {
		t.Fatalf("expected one message, got %d", len(msgs))
	}
	parts, _ := msgs[0].(map[string]any)["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text + image parts, got %v", msgs[0])
	}
	img, _ := parts[1].(map[string]any)["image_url"].(map[string]any)
	if url, _ := img["url"].(string); !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Errorf("unexpected image url %q", url)
	}
}
