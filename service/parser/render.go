package parser

import (
	"fmt"

	sgdiff "github.com/sourcegraph/go-diff/diff"
	"github.com/viant/patchtx/model"
)

// Render re-emits diff as canonical unified-diff text with a/ b/ headers
// and explicit hunk counts.
func Render(diff *model.ParsedDiff) (string, error) {
	if diff == nil {
		return "", fmt.Errorf("render: diff was nil")
	}
	fileDiff := &sgdiff.FileDiff{
		OrigName: headerName("a/", diff.OldPath),
		NewName:  headerName("b/", diff.NewPath),
	}
	for _, hunk := range diff.Hunks {
		fileDiff.Hunks = append(fileDiff.Hunks, &sgdiff.Hunk{
			OrigStartLine: int32(hunk.OldStart),
			OrigLines:     int32(hunk.OldCount),
			NewStartLine:  int32(hunk.NewStart),
			NewLines:      int32(hunk.NewCount),
			Section:       hunk.Section,
			Body:          []byte(hunk.Body()),
		})
	}
	data, err := sgdiff.PrintFileDiff(fileDiff)
	if err != nil {
		return "", fmt.Errorf("render %v: %w", diff.Target(), err)
	}
	return string(data), nil
}

func headerName(prefix, path string) string {
	if path == "" {
		return "/dev/null"
	}
	return prefix + path
}
