// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInterp_Output(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
		want string
	}{
		{
			name: "builtin echo",
			cmd:  Command{Line: "echo hello", Env: []string{}},
			want: "hello\n",
		},
		{
			name: "environment expansion",
			cmd:  Command{Line: "echo $GREETING ${TARGET}", Env: []string{"GREETING=hi", "TARGET=there"}},
			want: "hi there\n",
		},
		{
			name: "word splitting of flag variables",
			cmd:  Command{Line: `printf '%s|' $FLAGS`, Env: []string{"FLAGS=-g -Wall"}},
			want: "-g|-Wall|",
		},
	}

	r := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := r.Output(context.Background(), tt.cmd)
			if err != nil {
				t.Fatalf("Output() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Output() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestInterp_Run_Dir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var stdout bytes.Buffer
	r := New(WithStdout(&stdout))

	err := r.Run(context.Background(), Command{Line: "echo built > out.txt && echo done", Dir: dir, Env: []string{}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("expected out.txt in command dir: %v", err)
	}
	if string(data) != "built\n" {
		t.Errorf("out.txt = %q", data)
	}
	if stdout.String() != "done\n" {
		t.Errorf("stdout = %q, want %q", stdout.String(), "done\n")
	}
}

func TestInterp_ExitError(t *testing.T) {
	t.Parallel()

	r := New()
	err := r.Run(context.Background(), Command{Line: "echo broken >&2; exit 3", Env: []string{}})

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("Run() error = %v, want *ExitError", err)
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
	if !strings.Contains(exitErr.Output, "broken") {
		t.Errorf("Output = %q, want stderr captured", exitErr.Output)
	}
	if !strings.Contains(exitErr.Error(), "status 3") {
		t.Errorf("Error() = %q", exitErr.Error())
	}
}

func TestInterp_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	r := New()
	if err := r.Run(context.Background(), Command{Line: "  "}); !errors.Is(err, ErrEmptyCommand) {
		t.Errorf("Run(empty) = %v, want ErrEmptyCommand", err)
	}
	if err := r.Run(context.Background(), Command{Line: "echo 'unterminated"}); err == nil {
		t.Error("Run(unterminated quote) should fail to parse")
	}
}

func TestInterp_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New().Run(ctx, Command{Line: "echo never", Env: []string{}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestQuote(t *testing.T) {
	t.Parallel()

	line, err := Quote("a b", "it's", "$HOME")
	if err != nil {
		t.Fatalf("Quote() error = %v", err)
	}

	got, err := New().Output(context.Background(), Command{Line: "printf '%s|' " + line, Env: []string{"HOME=/nope"}})
	if err != nil {
		t.Fatalf("Output() error = %v", err)
	}
	if want := "a b|it's|$HOME|"; got != want {
		t.Errorf("quoted words = %q, want %q", got, want)
	}
}
