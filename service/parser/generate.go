package parser

import (
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/viant/patchtx/model"
)

// ErrNoChange is returned by GenerateDiff for identical inputs.
var ErrNoChange = errors.New("no change between old and new")

// GenerateDiff produces a unified diff between old and new file contents,
// with statistics taken from parsing the generated text back.
func GenerateDiff(oldContent, newContent []byte, path string, contextLines int) (string, model.DiffStats, error) {
	if string(oldContent) == string(newContent) {
		return "", model.DiffStats{}, ErrNoChange
	}
	if path == "" {
		path = "file"
	}
	if contextLines <= 0 {
		contextLines = 3
	}

	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldContent)),
		B:        difflib.SplitLines(string(newContent)),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  contextLines,
	}
	patch, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", model.DiffStats{}, fmt.Errorf("diff generation: %w", err)
	}
	diff := Parse(patch)
	if !diff.Valid {
		return patch, model.DiffStats{}, fmt.Errorf("diff generation: %v", diff.Error)
	}
	return patch, diff.Stats(), nil
}
