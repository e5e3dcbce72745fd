// Package failover implements credential pools: an ordered list of secrets
// for one provider that is walked in order until a call succeeds.
//
// A failed attempt (non-success status, transport error, timeout) moves
// straight to the next credential. There is no retry or backoff on a single
// credential, so the worst-case latency of a call is len(pool) × timeout.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/priyabot/priya/pkg/priya/metrics"
)

// DefaultTimeout bounds a single attempt when no WithTimeout option is given.
const DefaultTimeout = 30 * time.Second

var (
	// ErrExhausted is returned when every credential in a pool failed.
	ErrExhausted = errors.New("failover: all credentials exhausted")

	// ErrNoCredentials is returned for an empty pool. It wraps ErrExhausted
	// so callers only need to check one sentinel.
	ErrNoCredentials = fmt.Errorf("no credentials configured: %w", ErrExhausted)
)

// Pool is an immutable, ordered set of credentials for one provider.
type Pool struct {
	name    string
	keys    []string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger used to report attempt outcomes.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPool builds a pool named after its provider. Empty keys are dropped;
// duplicates are kept and simply tried twice.
func NewPool(name string, keys []string, opts ...Option) *Pool {
	p := &Pool{
		name:    name,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, k := range keys {
		if k != "" {
			p.keys = append(p.keys, k)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "failover", "provider", name)
	return p
}

// Name returns the provider name.
func (p *Pool) Name() string { return p.name }

// Len returns the number of usable credentials.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Timeout returns the per-attempt timeout.
func (p *Pool) Timeout() time.Duration { return p.timeout }

// Attempt performs one provider call with the given credential. The context
// carries the per-attempt deadline.
type Attempt[T any] func(ctx context.Context, key string) (T, error)

// Call walks the pool in order and returns the result of the first
// successful attempt. Remaining credentials are never tried after a success.
func Call[T any](ctx context.Context, p *Pool, attempt Attempt[T]) (T, error) {
	var zero T
	if p.Len() == 0 {
		return zero, ErrNoCredentials
	}

	var lastErr error
	for i, key := range p.keys {
		if err := ctx.Err(); err != nil {
			return zero, errors.Join(ErrExhausted, err)
		}

		result, err := callOnce(ctx, p.timeout, key, attempt)
		if err == nil {
			metrics.CredentialAttempts.WithLabelValues(p.name, "success").Inc()
			p.logger.Debug("credential succeeded", "index", i, "key", MaskKey(key))
			return result, nil
		}

		kind := Classify(err)
		metrics.CredentialAttempts.WithLabelValues(p.name, kind.String()).Inc()
		p.logger.Warn("credential failed, switching to next",
			"index", i,
			"key", MaskKey(key),
			"kind", kind.String(),
			"error", err,
		)
		lastErr = err
	}

	return zero, fmt.Errorf("%w (%d tried, last: %v)", ErrExhausted, len(p.keys), lastErr)
}

// callOnce runs one attempt under its own deadline so that a hung provider
// cannot stall the whole pool.
func callOnce[T any](ctx context.Context, timeout time.Duration, key string, attempt Attempt[T]) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return attempt(attemptCtx, key)
}

// MaskKey returns the first eight characters of a secret followed by ****.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}
