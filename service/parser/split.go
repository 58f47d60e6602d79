package parser

import (
	"strings"

	sgdiff "github.com/sourcegraph/go-diff/diff"
	"github.com/viant/patchtx/model"
)

// FilePatch is one file's slice of a multi-file patch.
type FilePatch struct {
	Path string // destination path, or source path for deletions
	Text string
}

// Split breaks multi-file unified-diff text into per-file patches. Strictly
// formed input is split with go-diff; anything it rejects (stale counts are
// common in generated patches) is split on file header boundaries instead.
func Split(text string) []*FilePatch {
	if patches, ok := splitStrict(text); ok {
		return patches
	}
	return splitHeaders(text)
}

// Changes turns multi-file patch text into batch entries in file order.
func Changes(text string) []*model.Change {
	patches := Split(text)
	result := make([]*model.Change, 0, len(patches))
	for _, patch := range patches {
		result = append(result, model.NewPatchChange(patch.Path, patch.Text))
	}
	return result
}

func splitStrict(text string) ([]*FilePatch, bool) {
	fileDiffs, err := sgdiff.ParseMultiFileDiff([]byte(normalize(text)))
	if err != nil || len(fileDiffs) == 0 {
		return nil, false
	}
	var result []*FilePatch
	for _, fileDiff := range fileDiffs {
		if len(fileDiff.Hunks) == 0 && fileDiff.OrigName == fileDiff.NewName {
			return nil, false
		}
		data, err := sgdiff.PrintFileDiff(fileDiff)
		if err != nil {
			return nil, false
		}
		diff := Parse(string(data))
		if !diff.Valid {
			return nil, false
		}
		result = append(result, &FilePatch{Path: diff.Target(), Text: string(data)})
	}
	return result, true
}

func splitHeaders(text string) []*FilePatch {
	lines := strings.SplitAfter(normalize(text), "\n")
	var starts []int
	gitOpen := false
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "diff --git "):
			starts = append(starts, i)
			gitOpen = true
		case strings.HasPrefix(line, "--- ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], "+++ "):
			if !gitOpen {
				starts = append(starts, i)
			}
			gitOpen = false
		case strings.HasPrefix(line, "@@"):
			gitOpen = false
		}
	}
	if len(starts) <= 1 {
		return []*FilePatch{{Path: Parse(text).Target(), Text: text}}
	}
	starts[0] = 0 // preamble belongs to the first file
	result := make([]*FilePatch, 0, len(starts))
	for i, start := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		chunk := strings.Join(lines[start:end], "")
		result = append(result, &FilePatch{Path: Parse(chunk).Target(), Text: chunk})
	}
	return result
}
