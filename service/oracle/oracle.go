// Package oracle runs the external verification command whose exit code
// decides whether a transaction commits or rolls back.
package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/viant/patchtx/model"
)

// DefaultTimeout bounds a verification run when none is configured.
const DefaultTimeout = 2 * time.Minute

// Result captures a verification run.
type Result struct {
	Output   string        `json:"output,omitempty"` // combined stdout and stderr
	ExitCode int           `json:"exitCode"`
	TimedOut bool          `json:"timedOut,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Passed reports whether the run allows a commit.
func (r *Result) Passed() bool {
	return r != nil && !r.TimedOut && r.ExitCode == 0
}

// Oracle runs a verification command. A returned error means the command
// could not be run at all; a failing command is reported through Result.
type Oracle interface {
	Run(ctx context.Context, verification *model.Verification) (*Result, error)
}

// Timeout returns the effective timeout of a verification.
func Timeout(verification *model.Verification) time.Duration {
	if verification == nil || verification.TimeoutMs <= 0 {
		return DefaultTimeout
	}
	return time.Duration(verification.TimeoutMs) * time.Millisecond
}

// Truncate shortens output to limit bytes for logging.
func Truncate(output string, limit int) string {
	if limit <= 0 || len(output) <= limit {
		return output
	}
	return output[:limit] + "...(truncated)"
}

func quote(text string) string {
	return "'" + strings.ReplaceAll(text, "'", `'\''`) + "'"
}
