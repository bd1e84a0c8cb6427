package tlsf

import (
	"io"
	"log/slog"
)

// Option configures a Pool created with NewPool
type Option func(o *poolOptions)

type poolOptions struct {
	logger              *slog.Logger
	expectedAllocations uint32
}

func defaultOptions() poolOptions {
	return poolOptions{
		logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		expectedAllocations: 42,
	}
}

// WithLogger sets the logger the pool reports misuse and exhaustion to. By default, log output
// is discarded.
func WithLogger(logger *slog.Logger) Option {
	return func(o *poolOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExpectedAllocations presizes the pool's metadata for roughly the given number of live
// allocations
func WithExpectedAllocations(count uint32) Option {
	return func(o *poolOptions) {
		o.expectedAllocations = count
	}
}
