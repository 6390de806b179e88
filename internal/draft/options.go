package draft

import (
	"context"
	"time"

	"github.com/Iron-Ham/quickcheck/internal/event"
	"github.com/Iron-Ham/quickcheck/internal/logging"
)

// Defaults applied when an option is not given.
const (
	DefaultDebounce       = time.Second
	DefaultRequestTimeout = 15 * time.Second
)

// coordinatorConfig holds optional configuration for a Coordinator.
type coordinatorConfig struct {
	debounce       time.Duration
	requestTimeout time.Duration
	clock          Clock
	logger         *logging.Logger
	bus            *event.Bus
	baseCtx        context.Context
}

// Option configures a Coordinator.
type Option func(*coordinatorConfig)

// WithDebounce sets the autosave quiet period. Non-positive values use
// DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(c *coordinatorConfig) { c.debounce = d }
}

// WithRequestTimeout bounds each backend call made by a timer-driven autosave.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *coordinatorConfig) { c.requestTimeout = d }
}

// WithClock replaces the system clock, mostly for tests.
func WithClock(clock Clock) Option {
	return func(c *coordinatorConfig) { c.clock = clock }
}

// WithLogger sets the logger. The coordinator tags it with user and draft IDs.
func WithLogger(l *logging.Logger) Option {
	return func(c *coordinatorConfig) { c.logger = l }
}

// WithEventBus publishes lifecycle events to bus.
func WithEventBus(bus *event.Bus) Option {
	return func(c *coordinatorConfig) { c.bus = bus }
}

// WithBaseContext sets the parent context of timer-driven autosaves.
func WithBaseContext(ctx context.Context) Option {
	return func(c *coordinatorConfig) { c.baseCtx = ctx }
}

func buildConfig(opts []Option) coordinatorConfig {
	cfg := coordinatorConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.debounce <= 0 {
		cfg.debounce = DefaultDebounce
	}
	if cfg.requestTimeout <= 0 {
		cfg.requestTimeout = DefaultRequestTimeout
	}
	if cfg.clock == nil {
		cfg.clock = SystemClock()
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}
	if cfg.baseCtx == nil {
		cfg.baseCtx = context.Background()
	}
	return cfg
}
