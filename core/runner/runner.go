// Package runner invokes the external typesetting, rasterising and
// conversion tools. Commands are argv lists, never shell strings, and a
// non-zero exit is reported as an ExternalToolError.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/internal/logging"
)

// Injectable functions for testing.
var (
	execCommandContext = exec.CommandContext
	osEnviron          = os.Environ
)

// stderrTail is how much of a failing tool's stderr is kept in errors.
const stderrTail = 2048

// DefaultEnv is appended to the inherited environment so tool output does
// not depend on the caller's locale or time zone.
var DefaultEnv = []string{
	"TZ=UTC",
	"LC_ALL=C",
	"LANG=C",
}

// Command is one tool invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string    // working directory, the current one when empty
	Env    []string  // extra KEY=VALUE entries
	Stdin  io.Reader // nil for no input
	Stdout io.Writer // captured into Result.Stdout when nil
}

// Result is the outcome of a successful invocation.
type Result struct {
	ExitCode int
	Duration time.Duration
	Stdout   []byte
	Stderr   []byte
}

// Runner executes commands.
type Runner struct {
	Timeout time.Duration // per command, none when zero
}

// New creates a runner with no timeout.
func New() *Runner {
	return &Runner{}
}

// Run executes c and waits for it. A tool that cannot be started or exits
// non-zero gives an ExternalToolError.
func (r *Runner) Run(ctx context.Context, c Command) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(append(osEnviron(), DefaultEnv...), c.Env...)
	cmd.Stdin = c.Stdin

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.Stdout != nil {
		cmd.Stdout = c.Stdout
	}
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	res := &Result{
		Duration: time.Since(start),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}

	if runErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			logging.ToolRun(ctx, c.Name, c.Args, -1, res.Duration, "error", ctxErr.Error())
			return nil, errors.NewExternalTool(c.Name, c.Args, -1, tail(res.Stderr), ctxErr)
		}
		exitErr, ok := runErr.(*exec.ExitError)
		if !ok {
			logging.ToolRun(ctx, c.Name, c.Args, -1, res.Duration, "error", runErr.Error())
			return nil, errors.NewExternalTool(c.Name, c.Args, -1, "", runErr)
		}
		res.ExitCode = exitErr.ExitCode()
		logging.ToolRun(ctx, c.Name, c.Args, res.ExitCode, res.Duration, "dir", c.Dir)
		return nil, errors.NewExternalTool(c.Name, c.Args, res.ExitCode, tail(res.Stderr), nil)
	}

	logging.ToolRun(ctx, c.Name, c.Args, 0, res.Duration, "dir", c.Dir)
	return res, nil
}

// Output runs c and returns its standard output.
func (r *Runner) Output(ctx context.Context, c Command) ([]byte, error) {
	c.Stdout = nil
	res, err := r.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return res.Stdout, nil
}

func tail(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
