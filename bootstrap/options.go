package bootstrap

import (
	"time"

	"github.com/kbukum/relay/logger"
)

// DefaultGracefulTimeout bounds OnStop hooks plus component shutdown.
const DefaultGracefulTimeout = 15 * time.Second

// Option tunes NewApp. Options do not depend on the config type.
type Option func(*options)

type options struct {
	log      *logger.Logger
	graceful time.Duration
}

func newOptions(opts []Option) options {
	o := options{graceful: DefaultGracefulTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger replaces the logger built from the config's logging section.
// The global logger is left untouched.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithGracefulTimeout overrides DefaultGracefulTimeout. Non-positive values
// are ignored.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.graceful = d
		}
	}
}
