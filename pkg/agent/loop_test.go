package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/minhyannv/weather-agent-go/pkg/conversation"
	"github.com/minhyannv/weather-agent-go/pkg/protocol"
	"github.com/minhyannv/weather-agent-go/pkg/tools"
	"github.com/minhyannv/weather-agent-go/pkg/weather"
)

// scriptedModel replays canned replies and records what it was sent.
type scriptedModel struct {
	replies   []string
	err       error
	calls     int
	histories [][]conversation.Entry
}

func (m *scriptedModel) Complete(ctx context.Context, instructions string, history []conversation.Entry) (string, error) {
	m.calls++
	m.histories = append(m.histories, history)
	if m.err != nil {
		return "", m.err
	}
	if len(m.replies) == 0 {
		return "", errors.New("script exhausted")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

type plannerModel struct{ calls int }

func (m *plannerModel) Complete(context.Context, string, []conversation.Entry) (string, error) {
	m.calls++
	return `{"type":"plan","plan":"still thinking"}`, nil
}

type blockingModel struct{}

func (blockingModel) Complete(ctx context.Context, _ string, _ []conversation.Entry) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type stubLookup struct {
	result weather.Result
	err    error
	calls  int
}

func (s *stubLookup) Fetch(_ context.Context, _ string) (weather.Result, error) {
	s.calls++
	return s.result, s.err
}

func newRegistry(t *testing.T, lookup tools.WeatherLookup) *tools.Registry {
	t.Helper()
	catalog, err := tools.LoadCatalog()
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	tool, err := tools.NewWeatherTool(lookup, catalog)
	if err != nil {
		t.Fatalf("NewWeatherTool: %v", err)
	}
	registry, err := tools.NewRegistry(tool)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return registry
}

func newLoop(t *testing.T, model Model, lookup tools.WeatherLookup, opts ...AgentOption) *Loop {
	t.Helper()
	loop, err := New(model, newRegistry(t, lookup), conversation.New("instructions"), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return loop
}

func kinds(entries []conversation.Entry) []protocol.Kind {
	out := make([]protocol.Kind, len(entries))
	for i, e := range entries {
		out[i] = e.Message.Kind()
	}
	return out
}

func equalKinds(got []protocol.Kind, want ...protocol.Kind) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestRunFullWeatherCycle(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"type":"plan","plan":"I will call getWeatherDetails for Bengaluru"}`,
		`{"type":"action","function":"getWeatherDetails","input":"Bengaluru"}`,
		`{"type":"output","output":"It is 29.54°C with few clouds in Bengaluru."}`,
	}}
	lookup := &stubLookup{result: weather.Result{Temperature: 29.54, Description: "few clouds", Humidity: 23, WindSpeed: 5.53}}
	var transcript bytes.Buffer
	loop := newLoop(t, model, lookup, WithTranscript(&transcript))

	answer, err := loop.Run(context.Background(), "What is the weather like in Bengaluru?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "It is 29.54°C with few clouds in Bengaluru." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if lookup.calls != 1 {
		t.Fatalf("expected one lookup, got %d", lookup.calls)
	}

	entries := loop.State().Snapshot()
	if !equalKinds(kinds(entries), protocol.KindUser, protocol.KindPlan, protocol.KindAction, protocol.KindObservation, protocol.KindOutput) {
		t.Fatalf("unexpected history %v", kinds(entries))
	}
	obs := entries[3].Message.(protocol.Observation)
	if entries[3].Author != conversation.AuthorTool || obs.Result["temperature"] != 29.54 || obs.Result["windSpeed"] != 5.53 {
		t.Fatalf("unexpected observation entry %#v", entries[3])
	}

	// the model saw the observation on its final turn
	if got := len(model.histories[2]); got != 4 {
		t.Fatalf("expected 4 entries on the final turn, got %d", got)
	}

	out := transcript.String()
	for _, want := range []string{"[plan]", "[action]", "[observation]"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in transcript, got %q", want, out)
		}
	}
	if strings.Contains(out, "[output]") {
		t.Fatalf("final output must be left to the caller, got %q", out)
	}
}

func TestRunOutputEndsInnerLoop(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"type":"output","output":"It is sunny."}`}}
	loop := newLoop(t, model, &stubLookup{})

	answer, err := loop.Run(context.Background(), "weather?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if answer != "It is sunny." {
		t.Fatalf("unexpected answer %q", answer)
	}
	if model.calls != 1 {
		t.Fatalf("expected one model call, got %d", model.calls)
	}
}

func TestRunUnknownToolIsProtocolViolation(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"type":"action","function":"getStockPrice","input":"ACME"}`,
		`{"type":"output","output":"It is sunny."}`,
	}}
	lookup := &stubLookup{}
	loop := newLoop(t, model, lookup)

	_, err := loop.Run(context.Background(), "stock price?")
	if !errors.Is(err, ErrProtocolViolation) || !errors.Is(err, tools.ErrNotFound) {
		t.Fatalf("expected protocol violation for unknown tool, got %v", err)
	}
	if lookup.calls != 0 || model.calls != 1 {
		t.Fatalf("expected no lookup and one model call, got lookups=%d calls=%d", lookup.calls, model.calls)
	}

	// the loop is usable for the next query
	answer, err := loop.Run(context.Background(), "weather?")
	if err != nil || answer != "It is sunny." {
		t.Fatalf("expected recovery on next query, got %q, %v", answer, err)
	}
}

func TestRunToolFailureStopsQuery(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`{"type":"action","function":"getWeatherDetails","input":"Nowhereville"}`,
	}}
	lookup := &stubLookup{err: &weather.LookupError{City: "Nowhereville", Reason: "city not found"}}
	loop := newLoop(t, model, lookup)

	_, err := loop.Run(context.Background(), "weather in Nowhereville?")
	if !errors.Is(err, ErrToolFailure) || !errors.Is(err, weather.ErrLookup) {
		t.Fatalf("expected tool failure, got %v", err)
	}
	entries := loop.State().Snapshot()
	if !equalKinds(kinds(entries), protocol.KindUser, protocol.KindAction, protocol.KindObservation) {
		t.Fatalf("unexpected history %v", kinds(entries))
	}
	obs := entries[2].Message.(protocol.Observation)
	if !strings.Contains(obs.Error, "city not found") {
		t.Fatalf("expected failure recorded in observation, got %#v", obs)
	}
}

func TestRunPlanOnlyHitsTurnLimit(t *testing.T) {
	model := &plannerModel{}
	loop := newLoop(t, model, &stubLookup{}, WithMaxTurns(3))

	_, err := loop.Run(context.Background(), "weather?")
	if !errors.Is(err, ErrTurnLimit) {
		t.Fatalf("expected turn limit, got %v", err)
	}
	if model.calls != 3 {
		t.Fatalf("expected 3 model calls, got %d", model.calls)
	}
}

func TestRunRetriesMalformedReply(t *testing.T) {
	model := &scriptedModel{replies: []string{
		`The weather is nice`,
		`{"type":"output","output":"It is sunny."}`,
	}}
	loop := newLoop(t, model, &stubLookup{}, WithMalformedRetries(1))

	answer, err := loop.Run(context.Background(), "weather?")
	if err != nil || answer != "It is sunny." {
		t.Fatalf("expected recovery after retry, got %q, %v", answer, err)
	}
	if !equalKinds(kinds(loop.State().Snapshot()), protocol.KindUser, protocol.KindOutput) {
		t.Fatalf("malformed reply must not enter the state, got %v", kinds(loop.State().Snapshot()))
	}
}

func TestRunMalformedBeyondBudgetIsProtocolViolation(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"type":"answer"}`, `not json`}}
	loop := newLoop(t, model, &stubLookup{}, WithMalformedRetries(1))

	_, err := loop.Run(context.Background(), "weather?")
	if !errors.Is(err, ErrProtocolViolation) || !errors.Is(err, protocol.ErrMalformed) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	if model.calls != 2 {
		t.Fatalf("expected 2 model calls, got %d", model.calls)
	}
}

func TestRunModelSendingUserIsProtocolViolation(t *testing.T) {
	model := &scriptedModel{replies: []string{`{"type":"user","user":"hi"}`}}
	loop := newLoop(t, model, &stubLookup{})

	_, err := loop.Run(context.Background(), "weather?")
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	entries := loop.State().Snapshot()
	if len(entries) != 2 || entries[1].Author != conversation.AuthorModel {
		t.Fatalf("expected the offending reply recorded, got %#v", entries)
	}
}

func TestRunTransportFailure(t *testing.T) {
	model := &scriptedModel{err: errors.New("connection refused")}
	loop := newLoop(t, model, &stubLookup{})

	_, err := loop.Run(context.Background(), "weather?")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if model.calls != 1 {
		t.Fatalf("transport failures are not retried, got %d calls", model.calls)
	}
}

func TestRunModelTimeout(t *testing.T) {
	loop := newLoop(t, blockingModel{}, &stubLookup{}, WithModelTimeout(20*time.Millisecond))

	_, err := loop.Run(context.Background(), "weather?")
	if !errors.Is(err, ErrTransport) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected transport timeout, got %v", err)
	}
}

func TestRunRejectsEmptyQuery(t *testing.T) {
	model := &scriptedModel{}
	loop := newLoop(t, model, &stubLookup{})

	if _, err := loop.Run(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
	if loop.State().Len() != 0 || model.calls != 0 {
		t.Fatal("empty query must not touch state or model")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	registry := newRegistry(t, &stubLookup{})
	state := conversation.New("instructions")
	if _, err := New(nil, registry, state); err == nil {
		t.Fatal("expected error without model")
	}
	if _, err := New(&scriptedModel{}, nil, state); err == nil {
		t.Fatal("expected error without registry")
	}
	if _, err := New(&scriptedModel{}, registry, nil); err == nil {
		t.Fatal("expected error without state")
	}
}
