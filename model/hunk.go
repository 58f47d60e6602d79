package model

import (
	"fmt"
	"strings"
)

// LineKind tags a single hunk body line.
type LineKind string

const (
	// LineContext is an unchanged line that must match the original.
	LineContext LineKind = "context"
	// LineDelete must be present in the original and is removed.
	LineDelete LineKind = "delete"
	// LineInsert is added and is not present in the original.
	LineInsert LineKind = "insert"
)

// Prefix returns the unified-diff prefix for the kind.
func (k LineKind) Prefix() string {
	switch k {
	case LineDelete:
		return "-"
	case LineInsert:
		return "+"
	default:
		return " "
	}
}

// NoNewlineMarker follows a body line that has no terminator in its file.
const NoNewlineMarker = "\\ No newline at end of file"

// Line is a tagged hunk body line; Text never carries a line terminator.
type Line struct {
	Kind LineKind `json:"kind"`
	Text string   `json:"text"`
}

// Hunk represents one contiguous change region of a unified diff.
type Hunk struct {
	OldStart int    `json:"oldStart"`
	OldCount int    `json:"oldCount"`
	NewStart int    `json:"newStart"`
	NewCount int    `json:"newCount"`
	Section  string `json:"section,omitempty"` // optional text after the closing @@
	Lines    []Line `json:"lines"`

	// OldNoNewline and NewNoNewline reflect "\ No newline at end of file"
	// markers on the respective side of the hunk.
	OldNoNewline bool `json:"oldNoNewline,omitempty"`
	NewNoNewline bool `json:"newNoNewline,omitempty"`
}

// Header returns the unified diff header for this hunk.
func (h *Hunk) Header() string {
	header := fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
	if h.Section != "" {
		header += " " + h.Section
	}
	return header
}

// OldLines returns the context and delete lines, i.e. what the original must contain.
func (h *Hunk) OldLines() []string {
	result := make([]string, 0, h.OldCount)
	for _, line := range h.Lines {
		if line.Kind != LineInsert {
			result = append(result, line.Text)
		}
	}
	return result
}

// NewLines returns the context and insert lines, i.e. what replaces the old side.
func (h *Hunk) NewLines() []string {
	result := make([]string, 0, h.NewCount)
	for _, line := range h.Lines {
		if line.Kind != LineDelete {
			result = append(result, line.Text)
		}
	}
	return result
}

// Counts returns the number of old-side and new-side lines actually present in the body.
func (h *Hunk) Counts() (old, new int) {
	for _, line := range h.Lines {
		switch line.Kind {
		case LineContext:
			old++
			new++
		case LineDelete:
			old++
		case LineInsert:
			new++
		}
	}
	return old, new
}

// Added returns the number of insert lines.
func (h *Hunk) Added() int {
	count := 0
	for _, line := range h.Lines {
		if line.Kind == LineInsert {
			count++
		}
	}
	return count
}

// Deleted returns the number of delete lines.
func (h *Hunk) Deleted() int {
	count := 0
	for _, line := range h.Lines {
		if line.Kind == LineDelete {
			count++
		}
	}
	return count
}

// StartIndex returns the zero-based buffer index where the old side begins.
// Pure additions (OldCount == 0) name the line after which text is inserted.
func (h *Hunk) StartIndex() int {
	if h.OldCount == 0 {
		return h.OldStart
	}
	return h.OldStart - 1
}

// Body renders hunk lines with their unified-diff prefixes, LF terminated.
func (h *Hunk) Body() string {
	var sb strings.Builder
	lastOld, lastNew := h.lastIndexes()
	for i, line := range h.Lines {
		sb.WriteString(line.Kind.Prefix())
		sb.WriteString(line.Text)
		sb.WriteByte('\n')
		oldMarker := h.OldNoNewline && i == lastOld
		if oldMarker || (h.NewNoNewline && i == lastNew) {
			sb.WriteString(NoNewlineMarker + "\n")
		}
	}
	return sb.String()
}

func (h *Hunk) lastIndexes() (lastOld, lastNew int) {
	lastOld, lastNew = -1, -1
	for i, line := range h.Lines {
		if line.Kind != LineInsert {
			lastOld = i
		}
		if line.Kind != LineDelete {
			lastNew = i
		}
	}
	return lastOld, lastNew
}
