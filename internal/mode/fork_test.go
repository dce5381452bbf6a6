package mode

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/runstore"
)

// sleeperScript writes a tiny shell script that ignores its argv and
// sleeps, standing in for the real huskycat binary Fork would normally
// re-exec: it gives the spawned child a pid that stays alive long
// enough to assert against.
func sleeperScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sleeper.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nsleep 2\n"), 0o755))
	return path
}

// noopScript exits immediately regardless of argv, for cases where the
// test only cares about Fork's return value, not the child's liveness.
func noopScript(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "noop.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func withExecutable(t *testing.T, path string) {
	t.Helper()
	prev := osExecutable
	osExecutable = func() (string, error) { return path, nil }
	t.Cleanup(func() { osExecutable = prev })
}

func withPromptInput(t *testing.T, answer string) {
	t.Helper()
	prev := promptReader
	promptReader = strings.NewReader(answer)
	t.Cleanup(func() { promptReader = prev })
}

func TestForkReassignsRecordToChildPid(t *testing.T) {
	withExecutable(t, sleeperScript(t))

	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	result, err := Fork(context.Background(), store, []string{"a.go"}, false, false)
	require.NoError(t, err)
	assert.Equal(t, runstore.DecisionAllow, result.Decision)

	// Open returns the existing in-flight record rather than allocating
	// a new one; it also runs reclaimOrphans first, so if the record
	// still carried the parent's (now-dead, per the ~100ms budget) pid
	// it would have already been misclassified as Aborted here.
	handle, err := store.Open(nil)
	require.NoError(t, err)

	assert.Equal(t, huskycat.OverallInFlight, handle.Record.OverallStatus, "a live child's run must not be reclaimed as orphaned")
	assert.NotZero(t, handle.Record.PID)
	assert.NotEqual(t, os.Getpid(), handle.Record.PID, "the record must carry the child's pid, not the parent's")
}

func TestForkBlocksOnRecentFailure(t *testing.T) {
	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	h, err := store.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallFailed))

	result, err := Fork(context.Background(), store, nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, runstore.DecisionBlock, result.Decision)
}

func TestForkAutoApproveBypassesPromptWithoutReadingStdin(t *testing.T) {
	withExecutable(t, noopScript(t))
	// A reader that errors on any read proves confirmPrompt is never
	// reached: autoApprove must short-circuit before promptReader is
	// touched.
	prev := promptReader
	promptReader = errReader{}
	t.Cleanup(func() { promptReader = prev })

	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	h, err := store.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallAborted))

	result, err := Fork(context.Background(), store, nil, true, true)
	require.NoError(t, err)
	assert.Equal(t, runstore.DecisionAllow, result.Decision)
}

func TestForkPromptYesAllowsAnotherRun(t *testing.T) {
	withExecutable(t, noopScript(t))
	withPromptInput(t, "y\n")

	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	h, err := store.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallAborted))

	result, err := Fork(context.Background(), store, nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, runstore.DecisionAllow, result.Decision)
}

func TestForkPromptNoBlocks(t *testing.T) {
	withPromptInput(t, "n\n")

	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	h, err := store.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallAborted))

	result, err := Fork(context.Background(), store, nil, true, false)
	require.NoError(t, err)
	assert.Equal(t, runstore.DecisionBlock, result.Decision)
}

func TestForkAllowMessageNamesRun(t *testing.T) {
	withExecutable(t, noopScript(t))

	repo := t.TempDir()
	store := runstore.New(repo, runstore.Config{})

	result, err := Fork(context.Background(), store, nil, false, false)
	require.NoError(t, err)
	assert.Contains(t, result.Message, "run ")
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, os.ErrClosed }
