package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind categorises engine failures so that callers can tell
// "retry with a better patch" apart from "infrastructure is broken".
type ErrorKind string

const (
	KindParse           ErrorKind = "parse"
	KindContextMismatch ErrorKind = "context_mismatch"
	KindGuardrail       ErrorKind = "guardrail"
	KindApply           ErrorKind = "apply"
	KindVerification    ErrorKind = "verification"
	KindRollback        ErrorKind = "rollback"
)

// Sentinel errors matched by (*Error).Is for the corresponding kind.
var (
	ErrParse           = errors.New("patch: parse error")
	ErrContextMismatch = errors.New("patch: context mismatch")
	ErrGuardrail       = errors.New("patch: guardrail violation")
	ErrApply           = errors.New("patch: apply failure")
	ErrVerification    = errors.New("patch: verification failure")
	ErrRollbackFailed  = errors.New("patch: rollback failed")
)

var sentinels = map[ErrorKind]error{
	KindParse:           ErrParse,
	KindContextMismatch: ErrContextMismatch,
	KindGuardrail:       ErrGuardrail,
	KindApply:           ErrApply,
	KindVerification:    ErrVerification,
	KindRollback:        ErrRollbackFailed,
}

// Error carries the diagnostic payload a retry loop needs to regenerate a patch.
type Error struct {
	Kind      ErrorKind `json:"kind"`
	Path      string    `json:"path,omitempty"`
	HunkIndex int       `json:"hunkIndex"`
	Line      int       `json:"line,omitempty"`   // 1-based line of the candidate position
	Offset    int       `json:"offset,omitempty"` // character offset of the candidate position
	Expected  string    `json:"expected,omitempty"`
	Found     string    `json:"found,omitempty"`
	Rule      string    `json:"rule,omitempty"`
	ExitCode  int       `json:"exitCode,omitempty"`
	Message   string    `json:"message"`
	Err       error     `json:"-"`
}

// Error implements error.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Path != "" {
		sb.WriteString(" ")
		sb.WriteString(e.Path)
	}
	if e.HunkIndex >= 0 && (e.Kind == KindParse || e.Kind == KindContextMismatch) {
		sb.WriteString(fmt.Sprintf(" hunk #%d", e.HunkIndex+1))
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := sentinels[e.Kind]
	return ok && sentinel == target
}

// NewError creates an error of the supplied kind.
func NewError(kind ErrorKind, path, message string) *Error {
	return &Error{Kind: kind, Path: path, HunkIndex: -1, Message: message}
}

// NewParseError creates a parse error for the given hunk index (-1 for headers).
func NewParseError(path string, hunkIndex int, message string) *Error {
	return &Error{Kind: KindParse, Path: path, HunkIndex: hunkIndex, Message: message}
}

// NewGuardrailError creates a guardrail violation naming the rule.
func NewGuardrailError(path, rule, message string) *Error {
	return &Error{Kind: KindGuardrail, Path: path, HunkIndex: -1, Rule: rule, Message: message}
}

// NewApplyError wraps an unexpected I/O failure during the write phase.
func NewApplyError(path string, err error) *Error {
	return &Error{Kind: KindApply, Path: path, HunkIndex: -1, Message: "write failed", Err: err}
}

// AsError extracts *Error from err, if any.
func AsError(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
