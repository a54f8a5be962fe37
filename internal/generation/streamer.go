// ABOUTME: Worker invocation boundary for the sequence model
// ABOUTME: Streamer interface plus the subprocess-backed production implementation

package generation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
)

// Job carries the parameters for one worker invocation.
type Job struct {
	ModelName   string
	ModelPath   string
	Temp        float64
	Seed        int
	PrimeTokens string
}

// Streamer invokes the external generation worker for one job and delivers
// its raw output incrementally. Implementations call emit for each increment
// in production order and return once the worker signals end of stream. A
// non-nil error from emit aborts the stream.
type Streamer interface {
	Stream(ctx context.Context, job Job, emit func(increment string) error) error
}

// SubprocessStreamer runs the worker as a child process per job and streams
// its stdout. The worker is trusted to make progress or exit; no internal
// timeout is applied here.
type SubprocessStreamer struct {
	// Bin is the worker executable.
	Bin string
	// ExtraArgs are appended after the job arguments.
	ExtraArgs []string

	Logger *slog.Logger
}

// Stream spawns the worker and emits stdout as it is produced. The worker's
// stderr tail is included in the returned error on a non-zero exit.
func (s *SubprocessStreamer) Stream(ctx context.Context, job Job, emit func(string) error) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	args := []string{
		"--model", job.ModelPath,
		"--temp", strconv.FormatFloat(job.Temp, 'f', -1, 64),
		"--seed", strconv.Itoa(job.Seed),
		"--prime", job.PrimeTokens,
	}
	args = append(args, s.ExtraArgs...)

	cmd := exec.CommandContext(ctx, s.Bin, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("opening worker stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}
	logger.Debug("worker started", "bin", s.Bin, "model", job.ModelName, "pid", cmd.Process.Pid)

	buf := make([]byte, 4096)
	var emitErr error
	for {
		n, readErr := stdout.Read(buf)
		if n > 0 {
			if emitErr = emit(string(buf[:n])); emitErr != nil {
				break
			}
		}
		if readErr != nil {
			break
		}
	}

	if emitErr != nil {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	if emitErr != nil {
		return emitErr
	}
	if waitErr != nil {
		tail := stderr.String()
		if len(tail) > 4096 {
			tail = tail[len(tail)-4096:]
		}
		return fmt.Errorf("worker exited: %w; stderr tail: %s", waitErr, tail)
	}
	return nil
}
