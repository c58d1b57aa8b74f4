package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dimiro1/banner"

	"github.com/minhyannv/weather-agent-go/pkg/agent"
	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
	"github.com/minhyannv/weather-agent-go/pkg/protocol"
)

const bannerTemplate = `{{ .Title "Weather Agent" "" 0 }}
Go {{ .GoVersion }} on {{ .GOOS }}/{{ .GOARCH }}
`

// maxLineBytes caps one line of input, newline included. Longer lines are
// dropped with a notice.
const maxLineBytes = 64 * 1024

// replOptions configures REPL behavior.
type replOptions struct {
	Verbose bool
	Logger  loggerpkg.Logger
	Banner  bool
}

// runREPL starts an interactive REPL session for the given loop. Failed
// queries are reported and the prompt comes back. It returns nil at end of
// input, on /quit, or once ctx is cancelled.
func runREPL(ctx context.Context, app *agent.Loop, opts replOptions, in io.Reader, out io.Writer) error {
	if app == nil {
		return fmt.Errorf("agent loop is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", map[string]any{
		"session": app.State().ID(),
	})

	done := make(chan struct{})
	defer close(done)
	lines := make(chan inputLine)
	go readLines(in, lines, done)

	printWelcome(out, opts.Banner)

	for {
		if ctx.Err() != nil {
			return nil
		}
		_, _ = fmt.Fprint(out, ">> ")

		var line inputLine
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = l
		}

		if line.err != nil {
			return fmt.Errorf("read input: %w", line.err)
		}
		if line.tooLong {
			loggerpkg.Debug(opts.Verbose, opts.Logger, "input line dropped", map[string]any{"limit": maxLineBytes})
			_, _ = fmt.Fprintf(out, "Error: input longer than %d bytes was ignored\n\n", maxLineBytes)
			continue
		}

		input := strings.TrimSpace(line.text)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if shouldQuit := handleCommand(input, app, out); shouldQuit {
				return nil
			}
			continue
		}

		answer, err := app.Run(ctx, input)
		if err != nil {
			loggerpkg.Debug(opts.Verbose, opts.Logger, "query failed", map[string]any{"error": err})
			_, _ = fmt.Fprintf(out, "Error: %v\n\n", err)
			continue
		}

		_, _ = fmt.Fprintf(out, "%s\n\n", answer)
	}
}

type inputLine struct {
	text    string
	tooLong bool
	err     error
}

// readLines sends each line of in until end of input, a read error, or done
// is closed. The channel is closed when it stops.
func readLines(in io.Reader, lines chan<- inputLine, done <-chan struct{}) {
	defer close(lines)
	r := bufio.NewReader(in)
	for {
		line := readLine(r)
		if errors.Is(line.err, io.EOF) {
			return
		}
		select {
		case lines <- line:
		case <-done:
			return
		}
		if line.err != nil {
			return
		}
	}
}

// readLine reads through the next newline. A line over maxLineBytes is
// consumed in full and reported as tooLong without its text.
func readLine(r *bufio.Reader) inputLine {
	var buf []byte
	tooLong := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !tooLong {
			if len(buf)+len(chunk) > maxLineBytes {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		switch {
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF) && (len(buf) > 0 || tooLong):
			return inputLine{text: string(buf), tooLong: tooLong}
		case err != nil:
			return inputLine{err: err}
		}
		return inputLine{text: string(buf), tooLong: tooLong}
	}
}

func printWelcome(out io.Writer, showBanner bool) {
	if showBanner {
		banner.Init(out, true, false, bytes.NewBufferString(bannerTemplate))
	}
	_, _ = fmt.Fprintln(out, "Ask about the weather in any city. Commands:")
	printCommands(out)
}

// handleCommand processes interactive commands and reports whether the REPL
// should stop.
func handleCommand(input string, app *agent.Loop, out io.Writer) bool {
	cmd := strings.ToLower(input)
	switch cmd {
	case "/help", "/h":
		_, _ = fmt.Fprintln(out, "Commands:")
		printCommands(out)
		return false
	case "/history":
		printHistory(app, out)
		return false
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n\n", input)
		return false
	}
}

func printCommands(out io.Writer) {
	_, _ = fmt.Fprintln(out, "  /help    - Show this help message")
	_, _ = fmt.Fprintln(out, "  /history - Show the conversation so far")
	_, _ = fmt.Fprintln(out, "  /quit    - Exit the program")
	_, _ = fmt.Fprintln(out)
}

func printHistory(app *agent.Loop, out io.Writer) {
	entries := app.State().Snapshot()
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No messages yet.")
		_, _ = fmt.Fprintln(out)
		return
	}
	for i, entry := range entries {
		raw, err := protocol.Encode(entry.Message)
		if err != nil {
			raw = []byte(err.Error())
		}
		_, _ = fmt.Fprintf(out, "%3d %-5s %s\n", i+1, entry.Author, raw)
	}
	_, _ = fmt.Fprintln(out)
}
