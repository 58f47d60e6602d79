package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/patchtx/model"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name      string
		text      string
		valid     bool
		hunkIndex int
		errorPart string
		oldPath   string
		newPath   string
		hunks     int
		check     func(t *testing.T, diff *model.ParsedDiff)
	}{
		{
			name:    "single hunk replace",
			text:    "--- a/f.txt\n+++ b/f.txt\n@@ -1,4 +1,5 @@\n A\n B\n-C\n+C2\n+C3\n D\n",
			valid:   true,
			oldPath: "f.txt",
			newPath: "f.txt",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				hunk := diff.Hunks[0]
				assert.EqualValues(t, []string{"A", "B", "C", "D"}, hunk.OldLines())
				assert.EqualValues(t, []string{"A", "B", "C2", "C3", "D"}, hunk.NewLines())
				assert.Equal(t, model.DiffStats{Added: 2, Removed: 1, Hunks: 1}, diff.Stats())
			},
		},
		{
			name:    "crlf input",
			text:    "--- a/f.txt\r\n+++ b/f.txt\r\n@@ -1,2 +1,2 @@\r\n x\r\n-y\r\n+z\r\n",
			valid:   true,
			oldPath: "f.txt",
			newPath: "f.txt",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.EqualValues(t, []string{"x", "y"}, diff.Hunks[0].OldLines())
				assert.EqualValues(t, []string{"x", "z"}, diff.Hunks[0].NewLines())
			},
		},
		{
			name:    "omitted counts default to one",
			text:    "--- a/f.txt\n+++ b/f.txt\n@@ -3 +3 @@ func main()\n-old\n+new\n",
			valid:   true,
			oldPath: "f.txt",
			newPath: "f.txt",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				hunk := diff.Hunks[0]
				assert.Equal(t, 3, hunk.OldStart)
				assert.Equal(t, 1, hunk.OldCount)
				assert.Equal(t, 1, hunk.NewCount)
				assert.Equal(t, "func main()", hunk.Section)
			},
		},
		{
			name:    "git preamble and timestamps",
			text:    "diff --git a/x.go b/x.go\nindex 83db48f..bf269f4 100644\n--- a/x.go\t2024-01-01 10:00:00\n+++ b/x.go\t2024-01-02 10:00:00\n@@ -1,1 +1,1 @@\n-a\n+b\n",
			valid:   true,
			oldPath: "x.go",
			newPath: "x.go",
			hunks:   1,
		},
		{
			name:    "headerless diff",
			text:    "@@ -1,1 +1,1 @@\n-a\n+b\n",
			valid:   true,
			hunks:   1,
		},
		{
			name:    "creation",
			text:    "--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1,2 @@\n+one\n+two\n",
			valid:   true,
			newPath: "new.txt",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.True(t, diff.IsCreate())
			},
		},
		{
			name:    "deletion",
			text:    "--- a/old.txt\n+++ /dev/null\n@@ -1,2 +0,0 @@\n-one\n-two\n",
			valid:   true,
			oldPath: "old.txt",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.True(t, diff.IsDelete())
			},
		},
		{
			name:    "pure rename without hunks",
			text:    "diff --git a/a.txt b/b.txt\nsimilarity index 100%\nrename from a.txt\nrename to b.txt\n",
			valid:   true,
			oldPath: "a.txt",
			newPath: "b.txt",
			hunks:   0,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.True(t, diff.IsRename())
			},
		},
		{
			name:    "no newline markers",
			text:    "--- a/f\n+++ b/f\n@@ -1,2 +1,2 @@\n a\n-b\n\\ No newline at end of file\n+c\n\\ No newline at end of file\n",
			valid:   true,
			oldPath: "f",
			newPath: "f",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.True(t, diff.Hunks[0].OldNoNewline)
				assert.True(t, diff.Hunks[0].NewNoNewline)
			},
		},
		{
			name:    "blank context line without prefix",
			text:    "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n a\n\n-b\n+c\n\n",
			valid:   true,
			oldPath: "f",
			newPath: "f",
			hunks:   1,
			check: func(t *testing.T, diff *model.ParsedDiff) {
				assert.EqualValues(t, []string{"a", "", "b"}, diff.Hunks[0].OldLines())
			},
		},
		{
			name:    "two hunks",
			text:    "--- a/f\n+++ b/f\n@@ -1,2 +1,3 @@\n a\n+a1\n b\n@@ -10,2 +11,2 @@\n j\n-k\n+K\n",
			valid:   true,
			oldPath: "f",
			newPath: "f",
			hunks:   2,
		},
		{
			name:      "count mismatch names the hunk",
			text:      "--- a/f\n+++ b/f\n@@ -1,1 +1,1 @@\n-a\n+b\n@@ -10,3 +10,4 @@\n x\n-y\n+y1\n+y2\n+y3\n",
			hunkIndex: 1,
			errorPart: "hunk #2: declared -10,3 +10,4 but body has 2 old / 4 new lines",
		},
		{
			name:      "zero hunks",
			text:      "--- a/f\n+++ b/f\n",
			hunkIndex: -1,
			errorPart: "no hunks",
		},
		{
			name:      "old header without new header",
			text:      "--- a/f\n@@ -1 +1 @@\n-a\n+b\n",
			hunkIndex: -1,
			errorPart: "not followed by a '+++' line",
		},
		{
			name:      "malformed hunk header",
			text:      "--- a/f\n+++ b/f\n@@ -x +1 @@\n-a\n+b\n",
			hunkIndex: 0,
			errorPart: "malformed hunk header",
		},
		{
			name:      "hunks out of order",
			text:      "--- a/f\n+++ b/f\n@@ -10 +10 @@\n-a\n+b\n@@ -2 +2 @@\n-c\n+d\n",
			hunkIndex: 1,
			errorPart: "out of order",
		},
		{
			name:      "overlapping hunks",
			text:      "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n a\n-b\n+B\n c\n@@ -3,2 +3,2 @@\n c\n-d\n+D\n",
			hunkIndex: 1,
			errorPart: "overlaps",
		},
		{
			name:      "unknown body prefix",
			text:      "--- a/f\n+++ b/f\n@@ -1,2 +1,2 @@\n a\n*b\n",
			hunkIndex: 0,
			errorPart: "unexpected body line",
		},
		{
			name:      "multiple files",
			text:      "--- a/f\n+++ b/f\n@@ -1 +1 @@\n-a\n+b\n--- a/g\n+++ b/g\n@@ -1 +1 @@\n-c\n+d\n",
			hunkIndex: -1,
			errorPart: "more than one file",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			diff := Parse(testCase.text)
			require.NotNil(t, diff)
			if !testCase.valid {
				assert.False(t, diff.Valid)
				assert.Equal(t, testCase.hunkIndex, diff.HunkIndex)
				assert.Contains(t, diff.Error, testCase.errorPart)
				return
			}
			require.True(t, diff.Valid, diff.Error)
			assert.Equal(t, -1, diff.HunkIndex)
			assert.Equal(t, testCase.oldPath, diff.OldPath)
			assert.Equal(t, testCase.newPath, diff.NewPath)
			assert.Len(t, diff.Hunks, testCase.hunks)
			if testCase.check != nil {
				testCase.check(t, diff)
			}
		})
	}
}

func TestFailure(t *testing.T) {
	diff := Parse("--- a/f\n+++ b/f\n@@ -1,2 +1,1 @@\n-a\n+b\n")
	failure := Failure("f", diff)
	require.NotNil(t, failure)
	assert.Equal(t, model.KindParse, failure.Kind)
	assert.Equal(t, 0, failure.HunkIndex)
	assert.ErrorIs(t, failure, model.ErrParse)
	assert.Nil(t, Failure("f", Parse("@@ -1 +1 @@\n-a\n+b\n")))
}

func TestSplit(t *testing.T) {
	testCases := []struct {
		name  string
		text  string
		paths []string
	}{
		{
			name:  "strict multi-file",
			text:  "diff --git a/one.txt b/one.txt\n--- a/one.txt\n+++ b/one.txt\n@@ -1 +1 @@\n-a\n+b\ndiff --git a/two.txt b/two.txt\n--- a/two.txt\n+++ b/two.txt\n@@ -1 +1 @@\n-c\n+d\n",
			paths: []string{"one.txt", "two.txt"},
		},
		{
			name:  "stale counts fall back to header split",
			text:  "--- a/one.txt\n+++ b/one.txt\n@@ -1,5 +1,5 @@\n-a\n+b\n--- a/two.txt\n+++ b/two.txt\n@@ -1 +1 @@\n-c\n+d\n",
			paths: []string{"one.txt", "two.txt"},
		},
		{
			name:  "single file",
			text:  "--- a/one.txt\n+++ b/one.txt\n@@ -1 +1 @@\n-a\n+b\n",
			paths: []string{"one.txt"},
		},
		{
			name:  "deletion uses source path",
			text:  "--- a/gone.txt\n+++ /dev/null\n@@ -1 +0,0 @@\n-a\n",
			paths: []string{"gone.txt"},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			patches := Split(testCase.text)
			var paths []string
			for _, patch := range patches {
				paths = append(paths, patch.Path)
				assert.NotEmpty(t, patch.Text)
			}
			assert.EqualValues(t, testCase.paths, paths)
		})
	}
}

func TestChanges(t *testing.T) {
	changes := Changes("--- a/one.txt\n+++ b/one.txt\n@@ -1 +1 @@\n-a\n+b\n--- /dev/null\n+++ b/two.txt\n@@ -0,0 +1 @@\n+c\n")
	require.Len(t, changes, 2)
	assert.Equal(t, "one.txt", changes[0].Path)
	assert.Equal(t, "two.txt", changes[1].Path)
	for _, change := range changes {
		assert.NoError(t, change.Validate())
		assert.True(t, Parse(change.Patch).Valid)
	}
}

func TestRender(t *testing.T) {
	text := "--- a/f.txt\n+++ b/f.txt\n@@ -1,4 +1,5 @@ section\n A\n B\n-C\n+C2\n+C3\n D\n"
	diff := Parse(text)
	require.True(t, diff.Valid, diff.Error)

	rendered, err := Render(diff)
	require.NoError(t, err)
	assert.Equal(t, text, rendered)

	again := Parse(rendered)
	require.True(t, again.Valid, again.Error)
	assert.EqualValues(t, diff.Hunks, again.Hunks)
}

func TestGenerateDiff(t *testing.T) {
	oldText := "line1\nline2\nline3\n"
	newText := "line1\nline2 changed\nline3\n+added\n"

	patch, stats, err := GenerateDiff([]byte(oldText), []byte(newText), "sample.txt", 3)
	require.NoError(t, err)
	assert.Contains(t, patch, "--- a/sample.txt")
	assert.Equal(t, 2, stats.Added)
	assert.Equal(t, 1, stats.Removed)

	_, _, err = GenerateDiff([]byte(oldText), []byte(oldText), "sample.txt", 3)
	assert.ErrorIs(t, err, ErrNoChange)
}
