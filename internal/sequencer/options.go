package sequencer

import (
	"time"

	"go.uber.org/zap"

	"github.com/railwayapp/yardmaster/internal/environment"
	"github.com/railwayapp/yardmaster/internal/metrics"
	"github.com/railwayapp/yardmaster/internal/readiness"
)

type options struct {
	logger       *zap.Logger
	metrics      *metrics.Metrics
	prober       readiness.Prober
	interval     time.Duration
	timeout      time.Duration
	restartDelay time.Duration
	env          environment.Environment
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEnvironment sets the variables required environment names resolve
// against. Nothing is read from the process environment implicitly.
func WithEnvironment(env environment.Environment) Option {
	return func(o *options) { o.env = env }
}

func WithProber(p readiness.Prober) Option {
	return func(o *options) { o.prober = p }
}

// WithReadiness sets the polling interval and the per-service timeout.
// Zero values keep the defaults.
func WithReadiness(interval, timeout time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
		if timeout > 0 {
			o.timeout = timeout
		}
	}
}

// WithRestartDelay sets the pause before a crashed instance is restarted.
func WithRestartDelay(d time.Duration) Option {
	return func(o *options) { o.restartDelay = d }
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		interval:     readiness.DefaultInterval,
		timeout:      readiness.DefaultTimeout,
		restartDelay: time.Second,
		env:          environment.Environment{},
	}
}
