package agent

import (
	"io"
	"time"

	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
)

const (
	DefaultMaxTurns         = 10
	DefaultMalformedRetries = 1
	DefaultModelTimeout     = 60 * time.Second
	DefaultToolTimeout      = 15 * time.Second
)

// AgentOption configures optional runtime behavior for Loop.
type AgentOption func(*loopOptions)

type loopOptions struct {
	logger           loggerpkg.Logger
	verbose          bool
	transcript       io.Writer
	maxTurns         int
	malformedRetries int
	modelTimeout     time.Duration
	toolTimeout      time.Duration
}

func defaultOptions() loopOptions {
	return loopOptions{
		logger:           loggerpkg.NopLogger{},
		transcript:       io.Discard,
		maxTurns:         DefaultMaxTurns,
		malformedRetries: DefaultMalformedRetries,
		modelTimeout:     DefaultModelTimeout,
		toolTimeout:      DefaultToolTimeout,
	}
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AgentOption {
	return func(o *loopOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithVerbose enables debug logging of every turn.
func WithVerbose(v bool) AgentOption {
	return func(o *loopOptions) {
		o.verbose = v
	}
}

// WithTranscript echoes intermediate plan, action and observation messages
// to w.
func WithTranscript(w io.Writer) AgentOption {
	return func(o *loopOptions) {
		if w != nil {
			o.transcript = w
		}
	}
}

// WithMaxTurns caps the model turns spent on one query.
func WithMaxTurns(n int) AgentOption {
	return func(o *loopOptions) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithMalformedRetries sets how many unparseable replies are re-requested
// before the query fails.
func WithMalformedRetries(n int) AgentOption {
	return func(o *loopOptions) {
		if n >= 0 {
			o.malformedRetries = n
		}
	}
}

// WithModelTimeout bounds each model call.
func WithModelTimeout(d time.Duration) AgentOption {
	return func(o *loopOptions) {
		if d > 0 {
			o.modelTimeout = d
		}
	}
}

// WithToolTimeout bounds each tool invocation.
func WithToolTimeout(d time.Duration) AgentOption {
	return func(o *loopOptions) {
		if d > 0 {
			o.toolTimeout = d
		}
	}
}
