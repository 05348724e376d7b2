package history

import (
	"time"

	"github.com/okian/marksense/pkg/logger"
)

// Default adapter settings.
const (
	DefaultTimeout        = 10 * time.Second
	DefaultRetryAttempts  = 3
	DefaultInitialBackoff = 200 * time.Millisecond
	DefaultMaxBackoff     = 2 * time.Second
)

// Option applies a configuration option to the Adapter.
type Option func(*Adapter)

// WithTimeout bounds each backend attempt.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithRetryAttempts sets the total number of attempts per operation.
func WithRetryAttempts(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.attempts = n
		}
	}
}

// WithInitialBackoff sets the wait before the first retry.
func WithInitialBackoff(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.initialBackoff = d
		}
	}
}

// WithMaxBackoff caps the wait between retries.
func WithMaxBackoff(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.maxBackoff = d
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.log = l
		}
	}
}
