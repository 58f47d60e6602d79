package oracle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/viant/patchtx/internal/clock"
	"github.com/viant/patchtx/model"
)

// Shell runs each verification in a fresh `sh -c` process.
type Shell struct {
	dir       string
	waitDelay time.Duration
}

// Run implements Oracle.
func (s *Shell) Run(ctx context.Context, verification *model.Verification) (*Result, error) {
	if !verification.Enabled() {
		return &Result{}, nil
	}
	timeout := Timeout(verification)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "sh", "-c", verification.Command)
	cmd.Dir = s.workdir(verification.Workdir)
	cmd.WaitDelay = s.waitDelay
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	started := clock.Now()
	err := cmd.Run()
	result := &Result{Output: output.String(), Elapsed: clock.Since(started)}
	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.TimedOut = true
		result.ExitCode = -1
		result.Output += fmt.Sprintf("\ncommand timed out after %s", timeout)
		return result, nil
	case ctx.Err() != nil:
		result.ExitCode = -1
		return result, ctx.Err()
	case err == nil:
		return result, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	result.ExitCode = -1
	return result, fmt.Errorf("failed to run verification %q: %w", verification.Command, err)
}

func (s *Shell) workdir(workdir string) string {
	switch {
	case workdir == "":
		return s.dir
	case filepath.IsAbs(workdir) || s.dir == "":
		return workdir
	default:
		return filepath.Join(s.dir, workdir)
	}
}

// NewShell creates a shell oracle; relative workdirs resolve against dir.
func NewShell(dir string) *Shell {
	return &Shell{dir: dir, waitDelay: time.Second}
}

var _ Oracle = (*Shell)(nil)
