// Package process runs external compiler and linker executables as black boxes,
// observing only their exit code and their captured output.
package process

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Command describes one process invocation
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// String renders the command as a single command line
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, a := range c.Args {
		parts = append(parts, quote(a))
	}

	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" {
		return `""`
	}

	if !strings.ContainsAny(s, " \t\"") {
		return s
	}

	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// Result is the observed outcome of a process that ran
type Result struct {
	ExitCode int
	// Output holds stdout and stderr interleaved as written
	Output string
}

// Success returns true if the process exited with code 0
func (r *Result) Success() bool {
	return r != nil && r.ExitCode == 0
}

// Lines splits the output into lines without trailing carriage returns
func (r *Result) Lines() []string {
	if r == nil || r.Output == "" {
		return nil
	}

	lines := strings.Split(strings.TrimRight(r.Output, "\r\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, "\r")
	}

	return lines
}

// SpawnError reports a process that could not be started
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// IsSpawnError returns true if err reports a process that never started
func IsSpawnError(err error) bool {
	var se *SpawnError
	return errors.As(err, &se)
}

// Runner starts processes.
// A spawn failure is returned as an error; a non-zero exit is reported through
// Result.ExitCode with a nil error.
type Runner interface {
	// Run waits for the process and returns its whole captured output
	Run(ctx context.Context, cmd Command) (*Result, error)

	// Stream calls onLine for every output line as it is produced
	Stream(ctx context.Context, cmd Command, onLine func(string)) (*Result, error)
}

// Commander interface for testing
type Commander interface {
	Start() error
	Wait() error
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	execCommand func(ctx context.Context, cmd Command, stdout, stderr io.Writer) Commander
}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		execCommand: func(ctx context.Context, cmd Command, stdout, stderr io.Writer) Commander {
			c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
			c.Dir = cmd.Dir
			if len(cmd.Env) > 0 {
				c.Env = append(os.Environ(), cmd.Env...)
			}

			c.Stdout = stdout
			c.Stderr = stderr

			return c
		},
	}
}

// Run executes the command and captures its output
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (*Result, error) {
	var buf syncBuffer
	c := r.execCommand(ctx, cmd, &buf, &buf)

	if err := c.Start(); err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}

	code, err := exitCode(c.Wait())
	if err != nil {
		return nil, err
	}

	return &Result{ExitCode: code, Output: buf.String()}, nil
}

// Stream executes the command and reports each output line as it arrives
func (r *ExecRunner) Stream(ctx context.Context, cmd Command, onLine func(string)) (*Result, error) {
	h, err := openHandle()
	if err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}
	defer h.Close()

	c := r.execCommand(ctx, cmd, h.w, h.w)
	if err := c.Start(); err != nil {
		return nil, &SpawnError{Path: cmd.Path, Err: err}
	}

	// the child holds its own copy of the write end
	h.closeWriter()

	var out strings.Builder
	scanner := bufio.NewScanner(h.r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		out.WriteString(line)
		out.WriteByte('\n')

		if onLine != nil {
			onLine(line)
		}
	}

	code, err := exitCode(c.Wait())
	if err != nil {
		return nil, err
	}

	return &Result{ExitCode: code, Output: out.String()}, nil
}

func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}

	return -1, fmt.Errorf("failed to wait for process: %w", err)
}

// syncBuffer is a bytes.Buffer shared by stdout and stderr copiers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
