package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"dlshell/internal/logging"
)

// DefaultMaxOutputBytes caps captured stdout and stderr each.
const DefaultMaxOutputBytes = 1 << 20

// SouffleRunner runs the souffle binary as a subprocess.
type SouffleRunner struct {
	Binary    string
	ExtraArgs []string

	// Timeout bounds a run; zero leaves it unbounded.
	Timeout time.Duration

	// FailureMarker is searched for in stderr. Empty disables the check.
	FailureMarker string

	MaxOutputBytes int64
}

// NewSouffleRunner creates a runner with default output limits.
func NewSouffleRunner(binary string, extraArgs []string, timeout time.Duration, failureMarker string) *SouffleRunner {
	logging.EngineDebug("Creating SouffleRunner: binary=%s timeout=%s marker=%q", binary, timeout, failureMarker)
	return &SouffleRunner{
		Binary:         binary,
		ExtraArgs:      extraArgs,
		Timeout:        timeout,
		FailureMarker:  failureMarker,
		MaxOutputBytes: DefaultMaxOutputBytes,
	}
}

// Args returns the command line arguments for inv.
func (r *SouffleRunner) Args(inv Invocation) []string {
	args := append([]string(nil), r.ExtraArgs...)
	return append(args, "-F", inv.FactsDir, "-D", inv.OutputDir, inv.Program)
}

// Run executes the engine and waits for it. The returned error is non-nil
// only when the engine could not be started at all; every other failure is
// reported through Result.Failed.
func (r *SouffleRunner) Run(ctx context.Context, inv Invocation) (*Result, error) {
	timer := logging.StartTimer(logging.CategoryEngine, "souffle run")
	defer timer.Stop()

	if r.Binary == "" {
		return nil, fmt.Errorf("engine binary is required")
	}

	execCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := r.Args(inv)
	logging.Engine("Executing: %s %s", r.Binary, strings.Join(args, " "))

	cmd := exec.CommandContext(execCtx, r.Binary, args...)

	maxOutput := r.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: maxOutput}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: maxOutput}
	cmd.WaitDelay = 2 * time.Second

	start := time.Now()
	err := cmd.Run()
	result := &Result{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.ExitCode = 0
	case execCtx.Err() == context.DeadlineExceeded:
		result.Failed = true
		result.Reason = fmt.Sprintf("timeout after %s", r.Timeout)
		logging.EngineWarn("Engine killed (timeout): %s after %s", r.Binary, r.Timeout)
	case execCtx.Err() == context.Canceled:
		result.Failed = true
		result.Reason = "context canceled"
	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		result.Failed = true
		result.Reason = fmt.Sprintf("exit status %d", result.ExitCode)
	default:
		logging.EngineError("Engine failed to start: %s - %v", r.Binary, err)
		return nil, fmt.Errorf("failed to run %s: %w", r.Binary, err)
	}

	if !result.Failed && r.FailureMarker != "" && strings.Contains(result.Stderr, r.FailureMarker) {
		result.Failed = true
		result.Reason = firstLineContaining(result.Stderr, r.FailureMarker)
	}

	outputs, lerr := ListRelations(inv.OutputDir, OutputExt)
	if lerr != nil {
		logging.EngineWarn("could not list outputs in %s: %v", inv.OutputDir, lerr)
	}
	result.Outputs = outputs

	logging.Engine("Engine completed: exit=%d failed=%v duration=%s outputs=%d",
		result.ExitCode, result.Failed, result.Duration, len(result.Outputs))
	return result, nil
}

func firstLineContaining(text, marker string) string {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, marker) {
			return strings.TrimSpace(line)
		}
	}
	return marker
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.written >= lw.max {
		lw.truncated = true
		return n, nil
	}
	remaining := lw.max - lw.written
	if int64(n) > remaining {
		lw.truncated = true
		written, err := lw.w.Write(p[:remaining])
		lw.written += int64(written)
		return n, err
	}
	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
