// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/forgebuild/forge/internal/shell"
)

type (
	// Handler scripts the outcome of one command. The returned string is the
	// command's standard output.
	Handler func(cmd shell.Command) (string, error)

	// FakeRunner is a shell.Runner that records every command and answers
	// with the first handler whose prefix matches the command line. Unmatched
	// commands succeed with no output.
	FakeRunner struct {
		mu       sync.Mutex
		calls    []shell.Command
		prefixes []string
		handlers []Handler
	}
)

var _ shell.Runner = (*FakeRunner)(nil)

// On registers h for command lines starting with prefix.
func (f *FakeRunner) On(prefix string, h Handler) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixes = append(f.prefixes, prefix)
	f.handlers = append(f.handlers, h)
	return f
}

// Run implements shell.Runner.
func (f *FakeRunner) Run(ctx context.Context, cmd shell.Command) error {
	_, err := f.dispatch(ctx, cmd)
	return err
}

// Output implements shell.Runner.
func (f *FakeRunner) Output(ctx context.Context, cmd shell.Command) (string, error) {
	return f.dispatch(ctx, cmd)
}

func (f *FakeRunner) dispatch(ctx context.Context, cmd shell.Command) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var h Handler
	for i, p := range f.prefixes {
		if strings.HasPrefix(cmd.Line, p) {
			h = f.handlers[i]
			break
		}
	}
	f.mu.Unlock()

	if h == nil {
		return "", nil
	}
	return h(cmd)
}

// Calls returns a copy of every recorded command.
func (f *FakeRunner) Calls() []shell.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shell.Command(nil), f.calls...)
}

// Lines returns the recorded command lines.
func (f *FakeRunner) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = c.Line
	}
	return lines
}

// Count returns how many recorded command lines start with prefix.
func (f *FakeRunner) Count(prefix string) int {
	n := 0
	for _, l := range f.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}

// Reset forgets recorded calls, keeping handlers.
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Fail returns a Handler that exits with code and output.
func Fail(code int, output string) Handler {
	return func(cmd shell.Command) (string, error) {
		return "", &shell.ExitError{Line: cmd.Line, Code: code, Output: output}
	}
}

// Reply returns a Handler that succeeds printing out.
func Reply(out string) Handler {
	return func(shell.Command) (string, error) {
		return out, nil
	}
}

// TouchOutput returns a Handler that creates the file named by the word
// following "-o" in the command line, resolved against the command's Dir.
// It stands in for a compiler or linker.
func TouchOutput() Handler {
	return func(cmd shell.Command) (string, error) {
		fields := strings.Fields(cmd.Line)
		for i := 0; i+1 < len(fields); i++ {
			if fields[i] != "-o" {
				continue
			}
			out := strings.Trim(fields[i+1], `'"`)
			if !filepath.IsAbs(out) {
				out = filepath.Join(cmd.Dir, out)
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return "", err
			}
			return "", os.WriteFile(out, []byte(cmd.Line), 0o644)
		}
		return "", &shell.ExitError{Line: cmd.Line, Code: 1, Output: "no -o argument"}
	}
}
