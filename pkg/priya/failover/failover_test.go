package failover

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewPool_DropsEmptyKeys(t *testing.T) {
	p := NewPool("test", []string{"", "a", "", "b", "a"})
	if p.Len() != 3 {
		t.Fatalf("expected 3 keys (duplicates kept), got %d", p.Len())
	}
}

func TestCall_AllFail(t *testing.T) {
	for k := 1; k <= 5; k++ {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			keys := make([]string, k)
			for i := range keys {
				keys[i] = fmt.Sprintf("key-%d", i)
			}
			p := NewPool("test", keys)

			var tried []string
			_, err := Call(context.Background(), p, func(ctx context.Context, key string) (string, error) {
				tried = append(tried, key)
				return "", errors.New("boom")
			})

			if !errors.Is(err, ErrExhausted) {
				t.Fatalf("expected ErrExhausted, got %v", err)
			}
			if len(tried) != k {
				t.Fatalf("expected %d attempts, got %d", k, len(tried))
			}
			for i, key := range tried {
				if key != keys[i] {
					t.Errorf("attempt %d used %q, want %q", i, key, keys[i])
				}
			}
		})
	}
}

func TestCall_StopsAtFirstSuccess(t *testing.T) {
	keys := []string{"k0", "k1", "k2", "k3", "k4"}
	for i := range keys {
		t.Run(fmt.Sprintf("success_at_%d", i), func(t *testing.T) {
			p := NewPool("test", keys)
			attempts := 0
			got, err := Call(context.Background(), p, func(ctx context.Context, key string) (string, error) {
				attempts++
				if key == keys[i] {
					return "ok:" + key, nil
				}
				return "", &StatusError{Provider: "test", StatusCode: 429}
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != "ok:"+keys[i] {
				t.Errorf("got %q", got)
			}
			if attempts != i+1 {
				t.Errorf("expected %d attempts, got %d", i+1, attempts)
			}
		})
	}
}

func TestCall_EmptyPool(t *testing.T) {
	called := false
	_, err := Call(context.Background(), NewPool("none", nil), func(ctx context.Context, key string) (int, error) {
		called = true
		return 1, nil
	})
	if !errors.Is(err, ErrNoCredentials) || !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrNoCredentials wrapping ErrExhausted, got %v", err)
	}
	if called {
		t.Error("attempt must not run for an empty pool")
	}
}

func TestCall_PerAttemptTimeout(t *testing.T) {
	p := NewPool("slow", []string{"hang", "fast"}, WithTimeout(20*time.Millisecond))
	got, err := Call(context.Background(), p, func(ctx context.Context, key string) (string, error) {
		if key == "hang" {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return "fast", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "fast" {
		t.Errorf("got %q, want fast", got)
	}
}

func TestCall_CancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	_, err := Call(ctx, NewPool("test", []string{"a", "b"}), func(ctx context.Context, key string) (string, error) {
		attempts++
		return "", nil
	})
	if !errors.Is(err, ErrExhausted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected exhausted + canceled, got %v", err)
	}
	if attempts != 0 {
		t.Errorf("expected no attempts, got %d", attempts)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit", &StatusError{StatusCode: 429}, KindRateLimit},
		{"auth", &StatusError{StatusCode: 401}, KindAuth},
		{"billing body", &StatusError{StatusCode: 403, Body: "insufficient_quota"}, KindBilling},
		{"server", &StatusError{StatusCode: 502}, KindRetryable},
		{"overloaded", &StatusError{StatusCode: 529}, KindOverloaded},
		{"bad request", &StatusError{StatusCode: 400}, KindBadRequest},
		{"deadline", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), KindTimeout},
		{"empty", fmt.Errorf("x: %w", ErrEmptyResponse), KindEmpty},
		{"other", errors.New("nope"), KindFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("slow down"))
			return
		}
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ok")
	if err != nil {
		t.Fatal(err)
	}
	body, err := ReadBody("test", resp, 0)
	if err != nil || string(body) != "hello" {
		t.Fatalf("ReadBody ok = %q, %v", body, err)
	}

	resp, err = http.Get(srv.URL + "/bad")
	if err != nil {
		t.Fatal(err)
	}
	_, err = ReadBody("test", resp, 0)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Fatalf("expected StatusError 429, got %v", err)
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("sk-or-v1-abcdef123"); got != "sk-or-v1****" {
		t.Errorf("MaskKey() = %q", got)
	}
	if got := MaskKey("short"); got != "****" {
		t.Errorf("MaskKey(short) = %q", got)
	}
}
