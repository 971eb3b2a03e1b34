// Package retry runs transient-failure-prone calls with exponential backoff and
// jitter. Only errors classified as transient are retried.
package retry

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 300 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
)

// Classifier decides whether an error is worth another attempt.
type Classifier func(err error) bool

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// Jitter is the maximum random spread added to each wait; defaults to BaseBackoff.
	Jitter    time.Duration
	Transient Classifier
}

// Executor wraps calls with the configured backoff policy.
type Executor struct {
	opts Options
}

func New(opts Options) *Executor {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Jitter <= 0 {
		opts.Jitter = opts.BaseBackoff
	}
	if opts.Transient == nil {
		opts.Transient = IsTransient
	}
	return &Executor{opts: opts}
}

func (e *Executor) backoff() goretry.Backoff {
	b := goretry.NewExponential(e.opts.BaseBackoff)
	b = goretry.WithJitter(e.opts.Jitter, b)
	b = goretry.WithCappedDuration(e.opts.MaxBackoff, b)
	return goretry.WithMaxRetries(uint64(e.opts.MaxAttempts-1), b)
}

// Do runs fn until it succeeds, returns a non-transient error, the attempt
// budget is spent, or ctx is done. The last error from fn is returned as-is.
func (e *Executor) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return goretry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if e.opts.Transient(err) {
			return goretry.RetryableError(err)
		}
		return err
	})
}

// Attempts returns the configured attempt budget.
func (e *Executor) Attempts() int {
	return e.opts.MaxAttempts
}

// IsTransient reports 5xx responses and network-level failures: connection
// reset/refused, timeouts, DNS errors and unexpected EOF.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var coder StatusCoder
	if errors.As(err, &coder) {
		status := coder.HTTPStatus()
		if status >= 500 {
			return true
		}
		if status > 0 {
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

var transientMarkers = []string{
	"connection reset",
	"connection refused",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"temporary failure in name resolution",
	"unexpected eof",
	"tls handshake timeout",
}
