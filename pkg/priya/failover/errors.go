package failover

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Kind classifies a failed attempt. It only feeds logs and metric labels;
// every kind moves the pool to its next credential.
type Kind int

const (
	KindRetryable  Kind = iota // transient 5xx
	KindRateLimit              // 429
	KindOverloaded             // 529 or "overloaded" in body
	KindTimeout                // deadline exceeded / network timeout
	KindAuth                   // 401, 403
	KindBilling                // 402 or quota wording
	KindBadRequest             // 400
	KindEmpty                  // success status with an unusable body
	KindFatal                  // everything else
)

// String returns the metric label for the kind.
func (k Kind) String() string {
	switch k {
	case KindRetryable:
		return "retryable"
	case KindRateLimit:
		return "rate_limit"
	case KindOverloaded:
		return "overloaded"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindBilling:
		return "billing"
	case KindBadRequest:
		return "bad_request"
	case KindEmpty:
		return "empty"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// StatusError captures a non-success HTTP response from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: API returned %d: %s", e.Provider, e.StatusCode, truncate(e.Body, 200))
}

// ErrEmptyResponse marks a success status whose body carried no usable result.
var ErrEmptyResponse = errors.New("empty provider response")

// Classify determines the kind of a failed attempt.
func Classify(err error) Kind {
	if err == nil {
		return KindRetryable
	}
	if errors.Is(err, ErrEmptyResponse) {
		return KindEmpty
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var se *StatusError
	if errors.As(err, &se) {
		return classifyStatus(se.StatusCode, se.Body)
	}
	return KindFatal
}

func classifyStatus(statusCode int, body string) Kind {
	bodyLower := strings.ToLower(body)

	if statusCode == 402 ||
		strings.Contains(bodyLower, "billing") ||
		strings.Contains(bodyLower, "quota") ||
		strings.Contains(bodyLower, "payment required") {
		return KindBilling
	}
	if statusCode == 429 ||
		strings.Contains(bodyLower, "rate_limit") ||
		strings.Contains(bodyLower, "rate limit") ||
		strings.Contains(bodyLower, "too many requests") {
		return KindRateLimit
	}
	if statusCode == 529 || strings.Contains(bodyLower, "overloaded") {
		return KindOverloaded
	}

	switch statusCode {
	case 400:
		return KindBadRequest
	case 401, 403:
		return KindAuth
	case 408, 504:
		return KindTimeout
	default:
		if statusCode >= 500 {
			return KindRetryable
		}
		return KindFatal
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
