package model

// ParsedDiff is one file's diff: header paths plus ordered hunks.
// An empty OldPath denotes creation (/dev/null source), an empty NewPath a deletion.
type ParsedDiff struct {
	OldPath   string  `json:"oldPath,omitempty"`
	NewPath   string  `json:"newPath,omitempty"`
	Hunks     []*Hunk `json:"hunks,omitempty"`
	Valid     bool    `json:"valid"`
	Error     string  `json:"error,omitempty"`
	HunkIndex int     `json:"hunkIndex"` // offending hunk when !Valid, -1 otherwise
}

// IsCreate returns true when the diff creates a new file.
func (d *ParsedDiff) IsCreate() bool {
	return d.OldPath == "" && d.NewPath != ""
}

// IsDelete returns true when the diff removes the file.
func (d *ParsedDiff) IsDelete() bool {
	return d.NewPath == "" && d.OldPath != ""
}

// IsRename returns true when source and destination paths differ.
func (d *ParsedDiff) IsRename() bool {
	return d.OldPath != "" && d.NewPath != "" && d.OldPath != d.NewPath
}

// Target returns the path the diff writes to, or the removed path for deletions.
func (d *ParsedDiff) Target() string {
	if d.NewPath != "" {
		return d.NewPath
	}
	return d.OldPath
}

// Stats returns insert/delete line totals across all hunks.
func (d *ParsedDiff) Stats() DiffStats {
	stats := DiffStats{Hunks: len(d.Hunks)}
	for _, h := range d.Hunks {
		stats.Added += h.Added()
		stats.Removed += h.Deleted()
	}
	return stats
}

// DiffStats captures basic statistics about a unified diff.
type DiffStats struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Hunks   int `json:"hunks,omitempty"`
}
