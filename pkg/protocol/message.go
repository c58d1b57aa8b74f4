// Package protocol defines the JSON message grammar exchanged with the model.
//
// Every message is a single JSON object whose "type" field selects one of five
// variants. Model replies are untrusted text and enter the program only
// through Decode.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed reports text that does not match the message grammar.
var ErrMalformed = errors.New("malformed message")

// Kind is the message discriminant.
type Kind string

const (
	KindUser        Kind = "user"
	KindPlan        Kind = "plan"
	KindAction      Kind = "action"
	KindObservation Kind = "observation"
	KindOutput      Kind = "output"
)

// Message is one protocol message. The set of implementations is closed.
type Message interface {
	Kind() Kind
	isMessage()
}

// User carries a query typed by the person at the prompt.
type User struct {
	Text string
}

// Plan carries the model's rationale; it requests nothing.
type Plan struct {
	Text string
}

// Action asks the tool layer to invoke Function with Input.
type Action struct {
	Function string
	Input    string
}

// Observation feeds a tool result, or its failure, back to the model.
type Observation struct {
	Function string
	Result   map[string]any
	Error    string
}

// Output is the final answer for the current query.
type Output struct {
	Text string
}

func (User) Kind() Kind        { return KindUser }
func (Plan) Kind() Kind        { return KindPlan }
func (Action) Kind() Kind      { return KindAction }
func (Observation) Kind() Kind { return KindObservation }
func (Output) Kind() Kind      { return KindOutput }

func (User) isMessage()        {}
func (Plan) isMessage()        {}
func (Action) isMessage()      {}
func (Observation) isMessage() {}
func (Output) isMessage()      {}

// NewObservation converts any JSON-encodable tool result into a structured
// record.
func NewObservation(function string, result any) (Observation, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Observation{}, fmt.Errorf("encode observation: %w", err)
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return Observation{}, fmt.Errorf("observation must be a JSON object: %w", err)
	}
	if record == nil {
		record = map[string]any{}
	}
	return Observation{Function: function, Result: record}, nil
}

// Clone returns a copy whose Result shares no maps or slices with o.
func (o Observation) Clone() Observation {
	if o.Result != nil {
		o.Result = cloneValue(o.Result).(map[string]any)
	}
	return o
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, inner := range t {
			out[k] = cloneValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, inner := range t {
			out[i] = cloneValue(inner)
		}
		return out
	default:
		return v
	}
}

// FailedObservation records a tool failure so the history stays complete.
func FailedObservation(function string, err error) Observation {
	reason := "unknown error"
	if err != nil && err.Error() != "" {
		reason = err.Error()
	}
	return Observation{Function: function, Error: reason}
}

type wireMessage struct {
	Type        Kind            `json:"type"`
	User        string          `json:"user,omitempty"`
	Plan        string          `json:"plan,omitempty"`
	Function    string          `json:"function,omitempty"`
	Input       *string         `json:"input,omitempty"`
	Observation json.RawMessage `json:"observation,omitempty"`
	Error       string          `json:"error,omitempty"`
	Output      string          `json:"output,omitempty"`
}

// Encode renders a message in its wire form. It enforces the same grammar as
// Decode, so every message it accepts decodes back to an equal value.
func Encode(msg Message) ([]byte, error) {
	var w wireMessage
	switch m := msg.(type) {
	case User:
		if err := checkText("user", m.Text); err != nil {
			return nil, err
		}
		w = wireMessage{Type: KindUser, User: m.Text}
	case Plan:
		if err := checkText("plan", m.Text); err != nil {
			return nil, err
		}
		w = wireMessage{Type: KindPlan, Plan: m.Text}
	case Action:
		if strings.TrimSpace(m.Function) == "" {
			return nil, fmt.Errorf("%w: action function is empty", ErrMalformed)
		}
		input := m.Input
		w = wireMessage{Type: KindAction, Function: m.Function, Input: &input}
	case Observation:
		w = wireMessage{Type: KindObservation, Function: m.Function, Error: m.Error}
		switch {
		case m.Error != "" && m.Result != nil:
			return nil, fmt.Errorf("%w: observation has both a result and an error", ErrMalformed)
		case m.Error == "" && m.Result == nil:
			return nil, fmt.Errorf("%w: observation has neither a result nor an error", ErrMalformed)
		case m.Result != nil:
			raw, err := json.Marshal(m.Result)
			if err != nil {
				return nil, fmt.Errorf("encode observation: %w", err)
			}
			w.Observation = raw
		}
	case Output:
		if err := checkText("output", m.Text); err != nil {
			return nil, err
		}
		w = wireMessage{Type: KindOutput, Output: m.Text}
	default:
		return nil, fmt.Errorf("%w: unsupported message %T", ErrMalformed, msg)
	}
	return json.Marshal(w)
}

// MustEncode is Encode for messages built by the program itself.
func MustEncode(msg Message) string {
	b, err := Encode(msg)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// Decode validates raw text against the grammar and returns the typed message.
func Decode(raw []byte) (Message, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformed)
	}

	var kind string
	if err := field(fields, "type", &kind); err != nil {
		return nil, err
	}

	switch Kind(kind) {
	case KindUser:
		text, err := textField(fields, "user")
		if err != nil {
			return nil, err
		}
		return User{Text: text}, nil
	case KindPlan:
		text, err := textField(fields, "plan")
		if err != nil {
			return nil, err
		}
		return Plan{Text: text}, nil
	case KindAction:
		return decodeAction(fields)
	case KindObservation:
		return decodeObservation(fields)
	case KindOutput:
		text, err := textField(fields, "output")
		if err != nil {
			return nil, err
		}
		return Output{Text: text}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, kind)
	}
}

func decodeAction(fields map[string]json.RawMessage) (Message, error) {
	var fn, input string
	if err := field(fields, "function", &fn); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fn) == "" {
		return nil, fmt.Errorf("%w: action function is empty", ErrMalformed)
	}
	if err := field(fields, "input", &input); err != nil {
		return nil, err
	}
	return Action{Function: fn, Input: input}, nil
}

func decodeObservation(fields map[string]json.RawMessage) (Message, error) {
	var obs Observation
	if _, ok := fields["function"]; ok {
		if err := field(fields, "function", &obs.Function); err != nil {
			return nil, err
		}
	}
	if _, ok := fields["error"]; ok {
		if err := field(fields, "error", &obs.Error); err != nil {
			return nil, err
		}
		if obs.Error != "" {
			return obs, nil
		}
	}
	if err := field(fields, "observation", &obs.Result); err != nil {
		return nil, err
	}
	if obs.Result == nil {
		return nil, fmt.Errorf("%w: observation must be an object", ErrMalformed)
	}
	return obs, nil
}

func textField(fields map[string]json.RawMessage, name string) (string, error) {
	var text string
	if err := field(fields, name, &text); err != nil {
		return "", err
	}
	if err := checkText(name, text); err != nil {
		return "", err
	}
	return text, nil
}

func checkText(name, text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %q is empty", ErrMalformed, name)
	}
	return nil
}

func field(fields map[string]json.RawMessage, name string, dst any) error {
	raw, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformed, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: field %q: %v", ErrMalformed, name, err)
	}
	return nil
}
