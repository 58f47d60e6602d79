package model

import "time"

// MatchResult is the outcome of applying one ParsedDiff to a content buffer.
// It is never persisted; callers recompute it from (diff, original).
type MatchResult struct {
	Success      bool   `json:"success"`
	NewContent   string `json:"-"`
	Error        string `json:"error,omitempty"`
	LinesAdded   int    `json:"linesAdded"`
	LinesDeleted int    `json:"linesDeleted"`
	Failure      *Error `json:"failure,omitempty"`
}

// Operation describes what a transaction did to a single path.
type Operation string

const (
	OperationUpdate Operation = "update"
	OperationCreate Operation = "create"
	OperationDelete Operation = "delete"
	OperationRename Operation = "rename"
)

// FileStat holds per-file line-delta statistics.
type FileStat struct {
	Path         string    `json:"path"`
	Operation    Operation `json:"operation"`
	LinesAdded   int       `json:"linesAdded"`
	LinesDeleted int       `json:"linesDeleted"`
	RenamedFrom  string    `json:"renamedFrom,omitempty"`
}

// TransactionResult is created fresh per call and handed to the caller.
type TransactionResult struct {
	ID                 string        `json:"id"`
	Success            bool          `json:"success"`
	State              State         `json:"state"`
	ModifiedFiles      []string      `json:"modifiedFiles,omitempty"`
	Files              []*FileStat   `json:"files,omitempty"`
	RollbackPerformed  bool          `json:"rollbackPerformed"`
	VerificationOutput string        `json:"verificationOutput,omitempty"`
	ExitCode           int           `json:"exitCode"`
	Error              *Error        `json:"error,omitempty"`
	StartedAt          time.Time     `json:"startedAt"`
	Elapsed            time.Duration `json:"elapsed"`
}

// NetLines returns the total lines added and deleted across written files.
func (r *TransactionResult) NetLines() (added, deleted int) {
	for _, stat := range r.Files {
		added += stat.LinesAdded
		deleted += stat.LinesDeleted
	}
	return added, deleted
}

// CheckResult reports a dry run: per-change match outcomes, nothing written.
type CheckResult struct {
	Success bool         `json:"success"`
	Matches []*FileMatch `json:"matches,omitempty"`
	Error   *Error       `json:"error,omitempty"`
}

// FileMatch pairs a change path with its dry-run outcome.
type FileMatch struct {
	Path   string       `json:"path"`
	Result *MatchResult `json:"result"`
}
