package transaction

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/patchtx/cache"
	"github.com/viant/patchtx/model"
	"github.com/viant/patchtx/policy"
	"github.com/viant/patchtx/progress"
	"github.com/viant/patchtx/service/matcher"
	"github.com/viant/patchtx/service/oracle"
	"github.com/viant/patchtx/service/parser"
	"github.com/viant/patchtx/service/storage"
)

type oracleFunc func(ctx context.Context, verification *model.Verification) (*oracle.Result, error)

func (f oracleFunc) Run(ctx context.Context, verification *model.Verification) (*oracle.Result, error) {
	return f(ctx, verification)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		location := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(location), 0o755))
		require.NoError(t, os.WriteFile(location, []byte(content), 0o644))
	}
	return root
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	result := map[string]string{}
	err := filepath.WalkDir(root, func(location string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		data, err := os.ReadFile(location)
		if err != nil {
			return err
		}
		relative, _ := filepath.Rel(root, location)
		result[filepath.ToSlash(relative)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return result
}

func readDirs(t *testing.T, root string) []string {
	t.Helper()
	var result []string
	err := filepath.WalkDir(root, func(location string, entry fs.DirEntry, err error) error {
		if err != nil || !entry.IsDir() || location == root {
			return err
		}
		relative, _ := filepath.Rel(root, location)
		result = append(result, filepath.ToSlash(relative))
		return nil
	})
	require.NoError(t, err)
	return result
}

const (
	insertPatch = "--- a/a.txt\n+++ b/a.txt\n@@ -2,2 +2,3 @@\n B\n+X\n C\n"
	stalePatch  = "--- a/b.txt\n+++ b/b.txt\n@@ -1,2 +1,2 @@\n-nope\n+yes\n also-nope\n"
	createPatch = "--- /dev/null\n+++ b/new.txt\n@@ -0,0 +1,2 @@\n+one\n+two\n"
	deletePatch = "--- a/old.txt\n+++ /dev/null\n@@ -1,2 +0,0 @@\n-one\n-two\n"
	renamePatch = "diff --git a/old.txt b/moved/new.txt\nsimilarity index 100%\nrename from old.txt\nrename to moved/new.txt\n"
)

func TestApplier_Apply(t *testing.T) {
	var testCases = []struct {
		description    string
		files          map[string]string
		request        *model.Request
		options        []Option
		expectTree     map[string]string
		expectState    model.State
		expectKind     model.ErrorKind
		expectRule     string
		expectRollback bool
		expectModified []string
		expectExitCode int
	}{
		{
			description:    "single hunk update",
			files:          map[string]string{"a.txt": "A\nB\nC\nD\n"},
			request:        &model.Request{Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch)}},
			expectTree:     map[string]string{"a.txt": "A\nB\nX\nC\nD\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"a.txt"},
		},
		{
			description: "failing second file leaves every file untouched",
			files:       map[string]string{"a.txt": "A\nB\nC\nD\n", "b.txt": "x\ny\n"},
			request: &model.Request{Changes: []*model.Change{
				model.NewPatchChange("a.txt", insertPatch),
				model.NewPatchChange("b.txt", stalePatch),
			}},
			expectTree:  map[string]string{"a.txt": "A\nB\nC\nD\n", "b.txt": "x\ny\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindContextMismatch,
		},
		{
			description: "forbidden env file",
			files:       map[string]string{".env": "SECRET=1\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewContentChange(".env", "SECRET=2\n")}},
			expectTree:  map[string]string{".env": "SECRET=1\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindGuardrail,
			expectRule:  policy.RuleForbidden,
		},
		{
			description: "path escaping the root",
			files:       map[string]string{"a.txt": "A\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewContentChange("../a.txt", "B\n")}},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindGuardrail,
			expectRule:  policy.RulePath,
		},
		{
			description: "batch above file limit",
			files:       map[string]string{"a.txt": "A\n"},
			request: &model.Request{Changes: []*model.Change{
				model.NewContentChange("a.txt", "B\n"),
				model.NewContentChange("b.txt", "B\n"),
			}},
			options:     []Option{WithPolicy(&policy.Policy{MaxFiles: 1})},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindGuardrail,
			expectRule:  policy.RuleMaxFiles,
		},
		{
			description: "duplicate path",
			files:       map[string]string{"a.txt": "A\n"},
			request: &model.Request{Changes: []*model.Change{
				model.NewContentChange("a.txt", "B\n"),
				model.NewContentChange("./a.txt", "C\n"),
			}},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindGuardrail,
			expectRule:  policy.RuleDuplicate,
		},
		{
			description: "invalid diff",
			files:       map[string]string{"a.txt": "A\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewPatchChange("a.txt", "--- a/a.txt\n+++ b/a.txt\n")}},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindParse,
		},
		{
			description:    "create from diff",
			files:          map[string]string{"a.txt": "A\n"},
			request:        &model.Request{Changes: []*model.Change{model.NewPatchChange("new.txt", createPatch)}},
			expectTree:     map[string]string{"a.txt": "A\n", "new.txt": "one\ntwo\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"new.txt"},
		},
		{
			description: "create over existing file",
			files:       map[string]string{"new.txt": "here\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewPatchChange("new.txt", createPatch)}},
			expectTree:  map[string]string{"new.txt": "here\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindContextMismatch,
		},
		{
			description:    "delete from diff",
			files:          map[string]string{"a.txt": "A\n", "old.txt": "one\ntwo\n"},
			request:        &model.Request{Changes: []*model.Change{model.NewPatchChange("old.txt", deletePatch)}},
			expectTree:     map[string]string{"a.txt": "A\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"old.txt"},
		},
		{
			description:    "pure rename",
			files:          map[string]string{"old.txt": "one\ntwo\n"},
			request:        &model.Request{Changes: []*model.Change{model.NewPatchChange("old.txt", renamePatch)}},
			expectTree:     map[string]string{"moved/new.txt": "one\ntwo\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"moved/new.txt", "old.txt"},
		},
		{
			description: "rename onto forbidden destination",
			files:       map[string]string{"old.txt": "one\n"},
			request: &model.Request{Changes: []*model.Change{model.NewPatchChange("old.txt",
				"diff --git a/old.txt b/.env\nrename from old.txt\nrename to .env\n")}},
			expectTree:  map[string]string{"old.txt": "one\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindGuardrail,
			expectRule:  policy.RuleForbidden,
		},
		{
			description:    "full replacement and delete",
			files:          map[string]string{"a.txt": "A\n", "b.txt": "B\n"},
			request:        &model.Request{Changes: []*model.Change{model.NewContentChange("a.txt", "Z\n"), {Path: "b.txt", Delete: true}}},
			expectTree:     map[string]string{"a.txt": "Z\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"a.txt", "b.txt"},
		},
		{
			description: "change with no form",
			files:       map[string]string{"a.txt": "A\n"},
			request:     &model.Request{Changes: []*model.Change{{Path: "a.txt"}}},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindParse,
		},
		{
			description: "nil change in batch",
			files:       map[string]string{"a.txt": "A\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewContentChange("a.txt", "Z\n"), nil}},
			expectTree:  map[string]string{"a.txt": "A\n"},
			expectState: model.StateRolledBack,
			expectKind:  model.KindParse,
		},
		{
			description: "verification exit 1 rolls back",
			files:       map[string]string{"a.txt": "A\nB\nC\nD\n"},
			request: &model.Request{
				Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch), model.NewContentChange("added.txt", "new\n")},
				Verify:  &model.Verification{Command: "exit 1"},
			},
			expectTree:     map[string]string{"a.txt": "A\nB\nC\nD\n"},
			expectState:    model.StateRolledBack,
			expectKind:     model.KindVerification,
			expectRollback: true,
			expectModified: []string{"a.txt", "added.txt"},
			expectExitCode: 1,
		},
		{
			description: "verification passes",
			files:       map[string]string{"a.txt": "A\nB\nC\nD\n"},
			request: &model.Request{
				Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch)},
				Verify:  &model.Verification{Command: "grep -q X a.txt"},
			},
			expectTree:     map[string]string{"a.txt": "A\nB\nX\nC\nD\n"},
			expectState:    model.StateCommitted,
			expectModified: []string{"a.txt"},
		},
		{
			description: "verification timeout rolls back",
			files:       map[string]string{"a.txt": "A\n"},
			request: &model.Request{
				Changes: []*model.Change{model.NewContentChange("a.txt", "B\n")},
				Verify:  &model.Verification{Command: "sleep 5", TimeoutMs: 100},
			},
			expectTree:     map[string]string{"a.txt": "A\n"},
			expectState:    model.StateRolledBack,
			expectKind:     model.KindVerification,
			expectRollback: true,
			expectModified: []string{"a.txt"},
			expectExitCode: -1,
		},
		{
			description: "configured verification used when request has none",
			files:       map[string]string{"a.txt": "A\n"},
			request:     &model.Request{Changes: []*model.Change{model.NewContentChange("a.txt", "B\n")}},
			options: []Option{
				WithVerification(&model.Verification{Command: "check"}),
				WithOracle(oracleFunc(func(ctx context.Context, verification *model.Verification) (*oracle.Result, error) {
					return &oracle.Result{Output: "failed: " + verification.Command, ExitCode: 2}, nil
				})),
			},
			expectTree:     map[string]string{"a.txt": "A\n"},
			expectState:    model.StateRolledBack,
			expectKind:     model.KindVerification,
			expectRollback: true,
			expectModified: []string{"a.txt"},
			expectExitCode: 2,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			root := writeTree(t, testCase.files)
			applier := New(storage.New(root), testCase.options...)
			result, err := applier.Apply(context.Background(), testCase.request)
			require.NoError(t, err)
			require.NotNil(t, result)

			assert.EqualValues(t, testCase.expectTree, readTree(t, root))
			assert.EqualValues(t, testCase.expectState, result.State)
			assert.EqualValues(t, testCase.expectRollback, result.RollbackPerformed)
			assert.EqualValues(t, testCase.expectModified, result.ModifiedFiles)
			assert.EqualValues(t, testCase.expectExitCode, result.ExitCode)
			assert.NotEmpty(t, result.ID)
			if testCase.expectKind == "" {
				assert.True(t, result.Success)
				assert.Nil(t, result.Error)
				return
			}
			assert.False(t, result.Success)
			require.NotNil(t, result.Error)
			assert.EqualValues(t, testCase.expectKind, result.Error.Kind)
			if testCase.expectRule != "" {
				assert.EqualValues(t, testCase.expectRule, result.Error.Rule)
			}
		})
	}
}

func TestApplier_ValidationIsIdempotent(t *testing.T) {
	files := map[string]string{"a.txt": "A\nB\nC\nD\n", "b.txt": "x\ny\n"}
	root := writeTree(t, files)
	applier := New(storage.New(root))
	request := &model.Request{Changes: []*model.Change{
		model.NewPatchChange("a.txt", insertPatch),
		model.NewPatchChange("b.txt", stalePatch),
	}}
	for i := 0; i < 3; i++ {
		result, err := applier.Apply(context.Background(), request)
		require.NoError(t, err)
		assert.False(t, result.Success)
		assert.False(t, result.RollbackPerformed)
		require.NotNil(t, result.Error)
		assert.EqualValues(t, "b.txt", result.Error.Path)
		assert.True(t, errors.Is(result.Error, model.ErrContextMismatch))
		assert.EqualValues(t, files, readTree(t, root))
	}
}

func TestApplier_RollbackIsByteExact(t *testing.T) {
	files := map[string]string{
		"crlf.txt":    "A\r\nB\r\nC\r\nD",
		"binary.dat":  "\x00\x01\xff\n\x00",
		"empty.txt":   "",
		"nested/x.go": "package x\n",
	}
	root := writeTree(t, files)
	applier := New(storage.New(root))
	request := &model.Request{
		Changes: []*model.Change{
			model.NewPatchChange("crlf.txt", "--- a/crlf.txt\n+++ b/crlf.txt\n@@ -2,2 +2,3 @@\n B\n+X\n C\n"),
			model.NewContentChange("binary.dat", "replaced"),
			model.NewContentChange("empty.txt", "now full\n"),
			{Path: "nested/x.go", Delete: true},
			model.NewContentChange("created/y.txt", "y\n"),
		},
		Verify: &model.Verification{Command: "test -f created/y.txt && exit 1"},
	}
	result, err := applier.Apply(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, result.RollbackPerformed)
	assert.EqualValues(t, 1, result.ExitCode)

	actual := readTree(t, root)
	assert.EqualValues(t, files, actual)
	assert.EqualValues(t, []string{"nested"}, readDirs(t, root))
	for name, content := range files {
		assert.Equal(t, []byte(content), []byte(actual[name]), name)
	}
}

func TestApplier_RollbackRemovesCreatedDirs(t *testing.T) {
	files := map[string]string{"a.txt": "A\n", "pkg/b.txt": "B\n"}
	root := writeTree(t, files)
	applier := New(storage.New(root))
	result, err := applier.Apply(context.Background(), &model.Request{
		Changes: []*model.Change{
			model.NewContentChange("newdir/sub/x.txt", "x\n"),
			model.NewPatchChange("pkg/deep/y.txt", "--- /dev/null\n+++ b/pkg/deep/y.txt\n@@ -0,0 +1 @@\n+y\n"),
			model.NewContentChange("a.txt", "changed\n"),
		},
		Verify: &model.Verification{Command: "test -f newdir/sub/x.txt && exit 1"},
	})
	require.NoError(t, err)
	assert.True(t, result.RollbackPerformed)
	assert.EqualValues(t, model.StateRolledBack, result.State)
	assert.EqualValues(t, 1, result.ExitCode)
	assert.EqualValues(t, files, readTree(t, root))
	assert.EqualValues(t, []string{"pkg"}, readDirs(t, root))
}

func TestApplier_RollbackFailure(t *testing.T) {
	root := writeTree(t, map[string]string{"dir/a.txt": "A\n"})
	breakTree := oracleFunc(func(ctx context.Context, verification *model.Verification) (*oracle.Result, error) {
		if err := os.RemoveAll(filepath.Join(root, "dir")); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(root, "dir"), []byte("blocker"), 0o644); err != nil {
			return nil, err
		}
		return &oracle.Result{ExitCode: 1}, nil
	})
	applier := New(storage.New(root), WithOracle(breakTree))
	result, err := applier.Apply(context.Background(), &model.Request{
		Changes: []*model.Change{model.NewContentChange("dir/a.txt", "B\n")},
		Verify:  &model.Verification{Command: "break"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrRollbackFailed))
	require.NotNil(t, result)
	assert.True(t, result.RollbackPerformed)
	assert.EqualValues(t, model.StateRolledBack, result.State)
	require.NotNil(t, result.Error)
	assert.EqualValues(t, model.KindVerification, result.Error.Kind)
}

func TestApplier_ContextPolicy(t *testing.T) {
	root := writeTree(t, map[string]string{".env": "A=1\n"})
	applier := New(storage.New(root))
	ctx := policy.WithPolicy(context.Background(), &policy.Policy{AllowList: []string{".env"}})
	result, err := applier.Apply(ctx, &model.Request{Changes: []*model.Change{model.NewContentChange(".env", "A=2\n")}})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.EqualValues(t, map[string]string{".env": "A=2\n"}, readTree(t, root))
}

func TestApplier_Check(t *testing.T) {
	var testCases = []struct {
		description   string
		request       *model.Request
		expectSuccess bool
		expectMatches int
		expectKind    model.ErrorKind
	}{
		{
			description:   "valid batch",
			request:       &model.Request{Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch), model.NewContentChange("c.txt", "c\n")}},
			expectSuccess: true,
			expectMatches: 2,
		},
		{
			description:   "stale patch",
			request:       &model.Request{Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch), model.NewPatchChange("b.txt", stalePatch)}},
			expectMatches: 2,
			expectKind:    model.KindContextMismatch,
		},
		{
			description: "forbidden",
			request:     &model.Request{Changes: []*model.Change{model.NewContentChange("go.sum", "")}},
			expectKind:  model.KindGuardrail,
		},
	}

	files := map[string]string{"a.txt": "A\nB\nC\nD\n", "b.txt": "x\ny\n"}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			root := writeTree(t, files)
			applier := New(storage.New(root))
			result := applier.Check(context.Background(), testCase.request)
			assert.EqualValues(t, testCase.expectSuccess, result.Success)
			assert.Len(t, result.Matches, testCase.expectMatches)
			assert.EqualValues(t, files, readTree(t, root))
			if testCase.expectKind != "" {
				require.NotNil(t, result.Error)
				assert.EqualValues(t, testCase.expectKind, result.Error.Kind)
			}
		})
	}
}

func TestApplier_Stats(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "A\nB\nC\nD\n", "b.txt": "1\n2\n3\n"})
	applier := New(storage.New(root))
	result, err := applier.Apply(context.Background(), &model.Request{Changes: []*model.Change{
		model.NewPatchChange("a.txt", insertPatch),
		model.NewContentChange("b.txt", "1\nthree\n"),
	}})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Len(t, result.Files, 2)
	assert.EqualValues(t, &model.FileStat{Path: "a.txt", Operation: model.OperationUpdate, LinesAdded: 1}, result.Files[0])
	assert.EqualValues(t, &model.FileStat{Path: "b.txt", Operation: model.OperationUpdate, LinesAdded: 1, LinesDeleted: 2}, result.Files[1])
	added, deleted := result.NetLines()
	assert.EqualValues(t, 2, added)
	assert.EqualValues(t, 2, deleted)
}

func TestApplier_Progress(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "A\nB\nC\nD\n"})
	var states []model.State
	var last progress.Counters
	applier := New(storage.New(root), WithProgress(func(counters progress.Counters) {
		if len(states) == 0 || states[len(states)-1] != counters.State {
			states = append(states, counters.State)
		}
		last = counters
	}))
	result, err := applier.Apply(context.Background(), &model.Request{
		Changes: []*model.Change{model.NewPatchChange("a.txt", insertPatch)},
		Verify:  &model.Verification{Command: "true"},
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	assert.EqualValues(t, []model.State{
		model.StateIdle,
		model.StateValidating,
		model.StateSnapshotting,
		model.StateApplying,
		model.StateVerifying,
		model.StateCommitted,
	}, states)
	assert.EqualValues(t, result.ID, last.TransactionID)
	assert.EqualValues(t, 1, last.TotalFiles)
	assert.EqualValues(t, 1, last.ValidatedFiles)
	assert.EqualValues(t, 1, last.AppliedFiles)
}

func TestApplier_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "A\n"})
	applier := New(storage.New(root))
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	result, err := applier.Apply(ctx, &model.Request{
		Changes: []*model.Change{model.NewContentChange("a.txt", "B\n")},
		Verify:  &model.Verification{Command: "sleep 5"},
	})
	require.NoError(t, err)
	assert.True(t, result.RollbackPerformed)
	assert.EqualValues(t, map[string]string{"a.txt": "A\n"}, readTree(t, root))
}

func TestApplier_CachedFailureNotShared(t *testing.T) {
	files := map[string]string{"b.txt": "x\ny\n"}
	root := writeTree(t, files)
	store, err := cache.New(16)
	require.NoError(t, err)
	defer store.Close()
	applier := New(storage.New(root), WithMatcher(matcher.New(matcher.WithCache(store))))

	for _, path := range []string{"./b.txt", "b.txt"} {
		result := applier.Check(context.Background(), &model.Request{Changes: []*model.Change{model.NewPatchChange(path, stalePatch)}})
		require.NotNil(t, result.Error)
		assert.EqualValues(t, path, result.Error.Path)
	}

	rendered, err := parser.Render(parser.Parse(stalePatch))
	require.NoError(t, err)
	cached, ok := store.Get(cache.Key(files["b.txt"], rendered, matcher.DefaultWindow))
	require.True(t, ok)
	require.NotNil(t, cached.Failure)
	assert.EqualValues(t, "b.txt", cached.Failure.Path)
}
