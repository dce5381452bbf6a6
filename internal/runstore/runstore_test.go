package runstore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

func TestOpenAppendFinalize(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{})

	h, err := s.Open([]string{"a.go"})
	require.NoError(t, err)
	assert.Equal(t, huskycat.OverallInFlight, h.Record.OverallStatus)

	err = h.AppendResult(huskycat.ToolResult{Tool: "gofmt", Status: huskycat.StatusSuccess})
	require.NoError(t, err)

	err = h.Finalize(huskycat.OverallSuccess)
	require.NoError(t, err)

	latest, err := s.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, huskycat.OverallSuccess, latest.OverallStatus)
	assert.NotNil(t, latest.FinishedAt)
	assert.Zero(t, latest.PID)
}

func TestOpenRefusesSecondInFlight(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{})

	h1, err := s.Open(nil)
	require.NoError(t, err)

	h2, err := s.Open(nil)
	require.NoError(t, err)
	assert.Equal(t, h1.Record.RunID, h2.Record.RunID, "second Open returns the existing in-flight record")
}

func TestLatestNeverReturnsUnrelatedInFlight(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{})

	h, err := s.Open(nil)
	require.NoError(t, err)
	_ = h

	latest, err := s.Latest()
	require.NoError(t, err)
	assert.Nil(t, latest, "no finalized record exists yet")
}

func TestDeadPidReclassifiesAsAborted(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{})

	h, err := s.Open(nil)
	require.NoError(t, err)

	// Simulate the owning process having died: rewrite the record with a
	// pid that cannot be alive, then force reclamation via a fresh Open.
	h.store.mu.Lock()
	h.Record.PID = deadPidForTest(t)
	_ = h.store.writeRecord(&h.Record)
	h.store.mu.Unlock()

	s2 := New(repo, Config{})
	_, err = s2.Open(nil)
	require.NoError(t, err)

	latest, err := s2.Latest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, huskycat.OverallAborted, latest.OverallStatus)
}

func TestShouldGate(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{})

	d, err := s.ShouldGate()
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, d)

	h, err := s.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallFailed))

	d, err = s.ShouldGate()
	require.NoError(t, err)
	assert.Equal(t, DecisionBlock, d)
}

func TestDecisionResolveNonInteractivePromptBecomesBlock(t *testing.T) {
	assert.Equal(t, DecisionBlock, DecisionPrompt.Resolve(false))
	assert.Equal(t, DecisionPrompt, DecisionPrompt.Resolve(true))
	assert.Equal(t, DecisionAllow, DecisionAllow.Resolve(false))
}

func TestRetentionSweepRemovesOldRecords(t *testing.T) {
	repo := t.TempDir()
	s := New(repo, Config{Retention: time.Millisecond})

	h, err := s.Open(nil)
	require.NoError(t, err)
	require.NoError(t, h.Finalize(huskycat.OverallSuccess))

	time.Sleep(5 * time.Millisecond)

	// A second Open triggers the sweep.
	_, err = s.Open(nil)
	require.NoError(t, err)

	_, statErr := os.Stat(s.runDir(h.Record.RunID))
	assert.True(t, os.IsNotExist(statErr), "old run directory should have been swept")
}

// deadPidForTest returns a pid value overwhelmingly likely to be dead
// on the test host: the max of a very high number, deliberately chosen
// outside typical live-process ranges.
func deadPidForTest(t *testing.T) int {
	t.Helper()
	return 1 << 30
}
