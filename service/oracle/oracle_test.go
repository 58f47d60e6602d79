package oracle

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/patchtx/model"
)

func TestShell_Run(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	testCases := []struct {
		name         string
		verification *model.Verification
		exitCode     int
		timedOut     bool
		output       string
		passed       bool
	}{
		{name: "success", verification: &model.Verification{Command: "true"}, passed: true},
		{name: "exit 1", verification: &model.Verification{Command: "exit 1"}, exitCode: 1},
		{name: "combined output", verification: &model.Verification{Command: "echo out; echo err 1>&2; exit 3"}, exitCode: 3, output: "out\nerr\n"},
		{name: "relative workdir", verification: &model.Verification{Command: "basename \"$(pwd)\"", Workdir: "sub"}, output: "sub\n", passed: true},
		{name: "timeout", verification: &model.Verification{Command: "sleep 5", TimeoutMs: 200}, exitCode: -1, timedOut: true},
		{name: "disabled", verification: &model.Verification{}, passed: true},
	}

	shell := NewShell(dir)
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			started := time.Now()
			result, err := shell.Run(context.Background(), testCase.verification)
			require.NoError(t, err)
			assert.Equal(t, testCase.exitCode, result.ExitCode)
			assert.Equal(t, testCase.timedOut, result.TimedOut)
			assert.Equal(t, testCase.passed, result.Passed())
			if testCase.output != "" {
				assert.Equal(t, testCase.output, result.Output)
			}
			assert.Less(t, time.Since(started), 4*time.Second)
		})
	}
}

func TestShell_RunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := NewShell(t.TempDir()).Run(ctx, &model.Verification{Command: "sleep 5"})
	assert.Error(t, err)
	assert.False(t, result.Passed())
}

func TestSession_Run(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash is not available")
	}
	ctx := context.Background()
	session, err := NewSession(ctx, WithDir(t.TempDir()))
	require.NoError(t, err)
	defer session.Close()

	result, err := session.Run(ctx, &model.Verification{Command: "echo hello"})
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.Contains(t, result.Output, "hello")

	result, err = session.Run(ctx, &model.Verification{Command: "exit 1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExitCode)
	assert.False(t, result.Passed())

	result, err = session.Run(ctx, &model.Verification{Command: "echo still-alive"})
	require.NoError(t, err)
	assert.True(t, result.Passed())
	assert.Contains(t, result.Output, "still-alive")
}

func TestSession_RunMissingWorkdir(t *testing.T) {
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash is not available")
	}
	ctx := context.Background()
	session, err := NewSession(ctx, WithDir(t.TempDir()))
	require.NoError(t, err)
	defer session.Close()

	result, err := session.Run(ctx, &model.Verification{Command: "true", Workdir: "missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status")
	assert.NotContains(t, err.Error(), "<nil>")
	require.NotNil(t, result)
	assert.NotEqual(t, 0, result.ExitCode)
	assert.False(t, result.Passed())

	result, err = session.Run(ctx, &model.Verification{Command: "echo recovered"})
	require.NoError(t, err)
	assert.Contains(t, result.Output, "recovered")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.True(t, strings.HasPrefix(Truncate("abcdef", 2), "ab..."))
}

func TestTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Timeout(nil))
	assert.Equal(t, DefaultTimeout, Timeout(&model.Verification{Command: "x"}))
	assert.Equal(t, 1500*time.Millisecond, Timeout(&model.Verification{TimeoutMs: 1500}))
}
