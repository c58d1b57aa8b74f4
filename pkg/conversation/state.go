// Package conversation holds the append-only message log fed to every model
// call.
package conversation

import (
	"github.com/google/uuid"

	"github.com/minhyannv/weather-agent-go/pkg/protocol"
)

// Author records who produced an entry.
type Author string

const (
	AuthorUser  Author = "user"
	AuthorModel Author = "model"
	AuthorTool  Author = "tool"
)

// Entry is one message in the log together with its author.
type Entry struct {
	Author  Author
	Message protocol.Message
}

// State is the conversation log for one process. It is not safe for
// concurrent use; the agent drives it from a single goroutine.
type State struct {
	id           string
	instructions string
	entries      []Entry
}

// New creates a log whose leading entry is the protocol instructions.
func New(instructions string) *State {
	return &State{
		id:           uuid.NewString(),
		instructions: instructions,
	}
}

// ID identifies the session in logs.
func (s *State) ID() string {
	return s.id
}

// Instructions returns the protocol instructions sent ahead of every entry.
func (s *State) Instructions() string {
	return s.instructions
}

// Append adds msg to the end of the log. Observation results are copied, so
// later changes to the caller's map do not reach the log.
func (s *State) Append(author Author, msg protocol.Message) {
	s.entries = append(s.entries, Entry{Author: author, Message: detach(msg)})
}

// Len returns the number of appended entries.
func (s *State) Len() int {
	return len(s.entries)
}

// Snapshot returns a copy of every entry in append order.
func (s *State) Snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Author: e.Author, Message: detach(e.Message)}
	}
	return out
}

// detach returns msg with no references into mutable memory. Every variant
// other than Observation is a plain value already.
func detach(msg protocol.Message) protocol.Message {
	if obs, ok := msg.(protocol.Observation); ok {
		return obs.Clone()
	}
	return msg
}
