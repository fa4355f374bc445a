package invoker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// DefaultKillGrace is how long a killed helper may keep its output pipes
// open before Run gives up on them.
const DefaultKillGrace = 5 * time.Second

// Result is the captured outcome of one helper process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// SpawnError reports a helper that could not be started at all, e.g. a
// missing or non-executable binary.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting helper %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Runner runs one helper process to completion.
type Runner interface {
	Run(ctx context.Context, path string, args []string) (*Result, error)
}

// Exec runs the helper directly, without a shell. A non-zero exit is not an
// error: it is reported through Result.ExitCode.
type Exec struct {
	// Env is appended to the current environment.
	Env []string
	// Dir is the working directory; empty means the caller's.
	Dir string
	// KillGrace bounds the wait for output after the context kills the
	// process. Zero means DefaultKillGrace.
	KillGrace time.Duration
	Logger    *slog.Logger
}

// NewExec creates an Exec with default settings.
func NewExec() *Exec {
	return &Exec{KillGrace: DefaultKillGrace, Logger: slog.Default()}
}

// Run starts path with args, waits for it to exit and captures stdout and
// stderr separately. When ctx ends first the process is killed and the
// context error is returned along with whatever output was captured.
func (e *Exec) Run(ctx context.Context, path string, args []string) (*Result, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Dir = e.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	cmd.WaitDelay = e.KillGrace
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultKillGrace
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("helper not started: %w", err)
	}
	start := time.Now()
	if err := cmd.Start(); err != nil {
		// Start reports a context that ended in the meantime as its error.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("helper not started: %w", ctxErr)
		}
		return nil, &SpawnError{Path: path, Err: err}
	}
	logger.Debug("Helper started", "path", path, "args", args, "pid", cmd.Process.Pid)

	waitErr := cmd.Wait()
	res := &Result{
		ExitCode: cmd.ProcessState.ExitCode(),
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	logger.Debug("Helper exited", "path", path, "exit_code", res.ExitCode, "duration", res.Duration)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("helper killed: %w", ctxErr)
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return res, nil
		}
		return res, fmt.Errorf("waiting for helper: %w", waitErr)
	}
	return res, nil
}
