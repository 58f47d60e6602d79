package model

import "fmt"

// Change is one batch entry: exactly one of Patch (unified diff) or Content
// (full replacement), or Delete to remove the file.
type Change struct {
	Path    string  `json:"path" yaml:"path"`
	Patch   string  `json:"patch,omitempty" yaml:"patch,omitempty"`
	Content *string `json:"content,omitempty" yaml:"content,omitempty"`
	Delete  bool    `json:"delete,omitempty" yaml:"delete,omitempty"`
}

// IsReplacement returns true when the change carries full file content.
func (c *Change) IsReplacement() bool {
	return c.Content != nil
}

// Validate checks that exactly one change form is set.
func (c *Change) Validate() error {
	if c == nil {
		return fmt.Errorf("change is empty")
	}
	forms := 0
	if c.Patch != "" {
		forms++
	}
	if c.Content != nil {
		forms++
	}
	if c.Delete {
		forms++
	}
	if forms != 1 {
		return fmt.Errorf("change %q: exactly one of patch, content or delete is required", c.Path)
	}
	return nil
}

// Verification describes the external build/test oracle invocation.
type Verification struct {
	Command   string `json:"command" yaml:"command"`
	Workdir   string `json:"workdir,omitempty" yaml:"workdir,omitempty"`
	TimeoutMs int    `json:"timeoutMs,omitempty" yaml:"timeoutMs,omitempty"`
}

// Enabled returns true when a command was supplied.
func (v *Verification) Enabled() bool {
	return v != nil && v.Command != ""
}

// Request is an ordered batch of changes applied as one transaction.
type Request struct {
	Changes []*Change     `json:"changes" yaml:"changes"`
	Verify  *Verification `json:"verify,omitempty" yaml:"verify,omitempty"`
}

// Paths returns change paths in batch order; a nil change yields "".
func (r *Request) Paths() []string {
	result := make([]string, 0, len(r.Changes))
	for _, change := range r.Changes {
		if change == nil {
			result = append(result, "")
			continue
		}
		result = append(result, change.Path)
	}
	return result
}

// NewPatchChange creates a unified-diff change.
func NewPatchChange(path, patch string) *Change {
	return &Change{Path: path, Patch: patch}
}

// NewContentChange creates a full replacement change.
func NewContentChange(path, content string) *Change {
	return &Change{Path: path, Content: &content}
}
