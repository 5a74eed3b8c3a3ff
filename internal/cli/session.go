// Package cli implements the interactive terminal chat loop.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"chatbridge/internal/core"
)

// Sender delivers one message and returns the reply text.
type Sender interface {
	Send(ctx context.Context, message string) (string, error)
}

// Session reads lines from in, sends each to a Sender and prints the replies.
type Session struct {
	sender Sender
	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

// NewSession creates a session. Replies go to out, errors to errOut.
func NewSession(sender Sender, in io.Reader, out, errOut io.Writer) *Session {
	return &Session{
		sender: sender,
		in:     in,
		out:    out,
		errOut: errOut,
	}
}

// Run loops until exit/quit, end of input or ctx cancellation.
func (s *Session) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "🤖 chatbridge - Interactive Mode")
	fmt.Fprintln(s.out, "Type 'exit' or 'quit' to end the conversation")
	fmt.Fprintln(s.out)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	lines, readErr := s.readLines(ctx)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		fmt.Fprint(s.out, "You: ")
		var text string
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				if err := *readErr; err != nil {
					fmt.Fprintf(s.errOut, "Error reading input: %v\n\n", err)
					return err
				}
				fmt.Fprintln(s.out)
				return nil
			}
			text = line
		}

		message := strings.TrimSpace(text)
		if message == "" {
			continue
		}
		if strings.EqualFold(message, "exit") || strings.EqualFold(message, "quit") {
			fmt.Fprintln(s.out, "👋 Goodbye!")
			return nil
		}

		reply, err := s.sender.Send(ctx, message)
		if err != nil {
			fmt.Fprintf(s.errOut, "Error: %s\n\n", FormatError(err))
			continue
		}
		fmt.Fprintf(s.out, "Bot: %s\n\n", reply)
	}
}

// readLines scans s.in on its own goroutine so a blocked read never holds up
// cancellation. The channel is closed at end of input; the returned error is
// only valid after that.
func (s *Session) readLines(ctx context.Context) (<-chan string, *error) {
	lines := make(chan string)
	var readErr error

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		// Room for a maximum length message of multi-byte characters
		scanner.Buffer(make([]byte, 0, 64*1024), 4*core.MaxMessageLength+1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr = scanner.Err()
	}()

	return lines, &readErr
}

// FormatError renders an error for a terminal, listing per-candidate reasons
// when every candidate failed.
func FormatError(err error) string {
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) {
		return err.Error()
	}
	if len(gwErr.Attempts) == 0 {
		if err != error(gwErr) {
			// Keep context added by wrappers, such as the server address.
			return err.Error()
		}
		return gwErr.Message
	}

	var sb strings.Builder
	sb.WriteString(gwErr.Message)
	for _, a := range gwErr.Attempts {
		sb.WriteString("\n  - ")
		sb.WriteString(a.String())
	}
	return sb.String()
}
