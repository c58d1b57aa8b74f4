// Package agent drives the plan, action, observation and output cycle between
// the model and the tool layer.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/minhyannv/weather-agent-go/pkg/conversation"
	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
	"github.com/minhyannv/weather-agent-go/pkg/protocol"
	"github.com/minhyannv/weather-agent-go/pkg/tools"
)

// Failure classes returned by Run. None of them is fatal to the caller.
var (
	ErrTransport         = errors.New("transport failure")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrToolFailure       = errors.New("tool failure")
	ErrTurnLimit         = errors.New("turn limit reached")
)

// Model produces one reply for the conversation so far.
type Model interface {
	Complete(ctx context.Context, instructions string, history []conversation.Entry) (string, error)
}

// Loop holds agent runtime state. It serves one query at a time.
type Loop struct {
	model    Model
	registry *tools.Registry
	state    *conversation.State
	opts     loopOptions
}

// New builds a Loop over model, registry and state.
func New(model Model, registry *tools.Registry, state *conversation.State, opts ...AgentOption) (*Loop, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if registry == nil {
		return nil, errors.New("tool registry is required")
	}
	if state == nil {
		return nil, errors.New("conversation state is required")
	}
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	loggerpkg.Debug(o.verbose, o.logger, "agent_loop init", map[string]any{
		"session":           state.ID(),
		"max_turns":         o.maxTurns,
		"malformed_retries": o.malformedRetries,
		"model_timeout":     o.modelTimeout.String(),
		"tool_timeout":      o.toolTimeout.String(),
	})
	return &Loop{model: model, registry: registry, state: state, opts: o}, nil
}

// State exposes the conversation log.
func (l *Loop) State() *conversation.State {
	return l.state
}

// Run processes one user query and returns the model's final answer.
// Every message exchanged stays in the conversation state, including those of
// failed queries.
func (l *Loop) Run(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", errors.New("user input is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l.state.Append(conversation.AuthorUser, protocol.User{Text: query})

	for turn := 0; turn < l.opts.maxTurns; turn++ {
		l.debugf("iteration: %d/%d", turn+1, l.opts.maxTurns)
		msg, err := l.nextMessage(ctx)
		if err != nil {
			return "", err
		}
		l.state.Append(conversation.AuthorModel, msg)

		switch m := msg.(type) {
		case protocol.Output:
			l.debugf("iteration: output after %d turn(s)", turn+1)
			return m.Text, nil
		case protocol.Plan:
			l.echo(m)
		case protocol.Action:
			l.echo(m)
			obs, err := l.dispatch(ctx, m)
			l.state.Append(conversation.AuthorTool, obs)
			l.echo(obs)
			if err != nil {
				return "", err
			}
		default:
			return "", fmt.Errorf("%w: model sent a %s message", ErrProtocolViolation, msg.Kind())
		}
	}

	loggerpkg.Warn(l.opts.logger, "turn limit reached", map[string]any{
		"session":   l.state.ID(),
		"max_turns": l.opts.maxTurns,
	})
	return "", fmt.Errorf("%w: no output after %d turns", ErrTurnLimit, l.opts.maxTurns)
}

// nextMessage asks the model for a reply, re-requesting unparseable replies
// within the retry budget. Rejected replies never reach the state.
func (l *Loop) nextMessage(ctx context.Context) (protocol.Message, error) {
	for attempt := 0; ; attempt++ {
		raw, err := l.complete(ctx)
		if err != nil {
			loggerpkg.Error(l.opts.logger, "model call failed", map[string]any{
				"session": l.state.ID(),
				"error":   err,
			})
			return nil, fmt.Errorf("%w: %w", ErrTransport, err)
		}

		msg, err := protocol.Decode([]byte(raw))
		if err == nil {
			l.debugf("iteration: model replied %s", msg.Kind())
			return msg, nil
		}
		loggerpkg.Warn(l.opts.logger, "malformed model reply", map[string]any{
			"session": l.state.ID(),
			"attempt": attempt + 1,
			"error":   err,
			"content": truncate(raw, 200),
		})
		if attempt >= l.opts.malformedRetries {
			return nil, fmt.Errorf("%w: %w", ErrProtocolViolation, err)
		}
	}
}

func (l *Loop) complete(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.modelTimeout)
	defer cancel()
	return l.model.Complete(ctx, l.state.Instructions(), l.state.Snapshot())
}

// dispatch invokes the requested tool. The returned observation is recorded
// even on failure so the model sees why its action produced nothing.
func (l *Loop) dispatch(ctx context.Context, action protocol.Action) (protocol.Observation, error) {
	tool, err := l.registry.Resolve(action.Function)
	if err != nil {
		return protocol.FailedObservation(action.Function, err), fmt.Errorf("%w: %w", ErrProtocolViolation, err)
	}

	l.debugf("dispatch: %s(%q)", action.Function, action.Input)
	toolCtx, cancel := context.WithTimeout(ctx, l.opts.toolTimeout)
	defer cancel()
	result, err := tool.Invoke(toolCtx, action.Input)
	if err != nil {
		loggerpkg.Warn(l.opts.logger, "tool failed", map[string]any{
			"session": l.state.ID(),
			"tool":    action.Function,
			"error":   err,
		})
		return protocol.FailedObservation(action.Function, err), fmt.Errorf("%w: %s: %w", ErrToolFailure, action.Function, err)
	}

	obs, err := protocol.NewObservation(action.Function, result)
	if err != nil {
		return protocol.FailedObservation(action.Function, err), fmt.Errorf("%w: %s: %w", ErrToolFailure, action.Function, err)
	}
	return obs, nil
}

func (l *Loop) echo(msg protocol.Message) {
	raw, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(l.opts.transcript, "[%s] %s\n", msg.Kind(), raw)
}

func (l *Loop) debugf(format string, args ...any) {
	loggerpkg.Debugf(l.opts.verbose, l.opts.logger, format, args...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
