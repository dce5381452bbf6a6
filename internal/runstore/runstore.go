// Package runstore implements the Run Store (C2): persistence,
// retrieval, and gating of run records per repository.
//
// Grounded on jrossi/ccfeedback's toolcache.CacheManager for the
// on-disk-JSON-state-machine idiom, upgraded to proper
// write-to-temp-then-rename atomicity (ccfeedback's save() is a
// plain os.WriteFile) and generalized from a single cache file into a
// directory of numbered run records per spec §6's layout.
package runstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

// Decision is should_gate's answer.
type Decision string

const (
	DecisionBlock  Decision = "Block"
	DecisionAllow  Decision = "Allow"
	DecisionPrompt Decision = "Prompt"
)

// Resolve applies Open Question 1's decision: Prompt is never
// returned to a non-interactive caller, it downgrades to Block.
func (d Decision) Resolve(interactive bool) Decision {
	if d == DecisionPrompt && !interactive {
		return DecisionBlock
	}
	return d
}

// Config tunes retention and the Aborted-recency window used by
// should_gate.
type Config struct {
	Retention      time.Duration // default 7 days, per Open Question 3
	AbortedRecency time.Duration // how recently an aborted run still triggers Prompt
}

func (c Config) withDefaults() Config {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.AbortedRecency <= 0 {
		c.AbortedRecency = 24 * time.Hour
	}
	return c
}

// Store is the Run Store for a single repository root.
type Store struct {
	root   string // <repo>/.huskycat/runs
	cfg    Config
	mu     sync.Mutex
}

// New opens (without creating an in-flight record) the Run Store
// rooted at <repoRoot>/.huskycat/runs.
func New(repoRoot string, cfg Config) *Store {
	return &Store{root: filepath.Join(repoRoot, ".huskycat", "runs"), cfg: cfg.withDefaults()}
}

func (s *Store) runDir(id string) string   { return filepath.Join(s.root, id) }
func (s *Store) recordPath(id string) string { return filepath.Join(s.runDir(id), "record.json") }
func (s *Store) logPath(id string) string    { return filepath.Join(s.runDir(id), "log") }
func (s *Store) latestPath() string          { return filepath.Join(s.root, "latest") }
func (s *Store) pidPath(pid int) string      { return filepath.Join(s.root, "pids", fmt.Sprintf("%d", pid)) }

// Handle represents an open, owned, in-progress run.
type Handle struct {
	store  *Store
	Record huskycat.RunRecord
}

// Open allocates a new run id and writes an InFlight record with the
// current process's pid, unless another in-flight record already
// exists for this repository, in which case it returns that record's
// handle instead (spec §4.2: "refuses ... if another in-flight record
// exists"). Orphan reclamation runs first, and the retention sweep is
// triggered here (not on its own schedule), per spec §4.2.
func (s *Store) Open(files []string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.root, "pids"), 0o755); err != nil {
		return nil, huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}

	s.reclaimOrphans()
	s.sweepRetention()

	if existing, ok := s.inFlightRecord(); ok {
		return &Handle{store: s, Record: *existing}, nil
	}

	id := newRunID()
	rec := huskycat.RunRecord{
		RunID:         id,
		StartedAt:     time.Now(),
		OverallStatus: huskycat.OverallInFlight,
		PerTool:       map[string]huskycat.ToolResult{},
		Files:         files,
		PID:           os.Getpid(),
	}

	if err := os.MkdirAll(s.runDir(id), 0o755); err != nil {
		return nil, huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}
	if err := s.writeRecord(&rec); err != nil {
		return nil, huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}
	if err := touchFile(s.pidPath(rec.PID)); err != nil {
		return nil, huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}

	return &Handle{store: s, Record: rec}, nil
}

func newRunID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), uuid.NewString()[:8])
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

// LogPath is the per-run captured-output log file used by
// GitHooksNonBlocking's child (spec §6).
func (h *Handle) LogPath() string { return h.store.logPath(h.Record.RunID) }

// Reassign rewrites the in-flight record's pid, retiring the old pid
// sentinel and touching one for newPID. The Fork Controller calls this
// immediately after starting its detached child: Open() stamped the
// record with the parent's own pid, which is about to exit, and
// without this rewrite reclaimOrphans would see a dead pid on the very
// next Open()/Latest() call and misclassify the still-running child's
// run as Aborted (spec §4.2, §4.6).
func (h *Handle) Reassign(newPID int) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	oldPID := h.Record.PID
	h.Record.PID = newPID
	if err := h.store.writeRecord(&h.Record); err != nil {
		return huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}
	if err := touchFile(h.store.pidPath(newPID)); err != nil {
		return huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}
	if oldPID != 0 && oldPID != newPID {
		_ = os.Remove(h.store.pidPath(oldPID))
	}
	return nil
}

// AppendResult is a streamed write: order of appends corresponds to
// completion order, not dispatch order. I/O failures here are logged
// by the caller and do not abort the run (spec §4.2, §7).
func (h *Handle) AppendResult(result huskycat.ToolResult) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	h.Record.PerTool[result.Tool] = result
	if err := h.store.writeRecord(&h.Record); err != nil {
		return huskyerr.NewRunStoreError(huskyerr.AppendFailed, err)
	}
	return nil
}

// Finalize sets finished_at, the overall status, clears pid, and
// atomically replaces the "latest" pointer. A failure here is fatal
// to the run's reportability (ExitInternal) even though tool
// execution has already happened.
func (h *Handle) Finalize(status huskycat.OverallStatus) error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	now := time.Now()
	h.Record.FinishedAt = &now
	h.Record.OverallStatus = status
	pid := h.Record.PID
	h.Record.PID = 0

	if err := h.store.writeRecord(&h.Record); err != nil {
		return huskyerr.NewRunStoreError(huskyerr.FinalizeFailed, err)
	}
	if err := h.store.writeLatestPointer(h.Record.RunID); err != nil {
		return huskyerr.NewRunStoreError(huskyerr.FinalizeFailed, err)
	}
	if pid != 0 {
		_ = os.Remove(h.store.pidPath(pid))
	}
	return nil
}

func (s *Store) writeRecord(rec *huskycat.RunRecord) error {
	data, err := gojson.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.recordPath(rec.RunID), data)
}

func (s *Store) writeLatestPointer(id string) error {
	return atomicWrite(s.latestPath(), []byte(id))
}

// atomicWrite implements write-to-temp-then-rename, tolerating crashes
// of the scheduler or host mid-write (spec §4.2).
func atomicWrite(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

// Latest returns the most recent finalized or aborted record, or nil
// if none exists. It never returns an in-flight record belonging to
// another (possibly dead) process — readers re-classify those via
// reclaimOrphans before reading "latest".
func (s *Store) Latest() (*huskycat.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reclaimOrphans()

	data, err := os.ReadFile(s.latestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	id := string(data)
	return s.readRecord(id)
}

func (s *Store) readRecord(id string) (*huskycat.RunRecord, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var rec huskycat.RunRecord
	if err := gojson.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("parse run record %s: %w", id, err)
	}
	return &rec, nil
}

// inFlightRecord scans run directories for one whose in-memory state
// is still InFlight and whose pid is live. Called with s.mu held.
func (s *Store) inFlightRecord() (*huskycat.RunRecord, bool) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := s.readRecord(e.Name())
		if err != nil || rec == nil {
			continue
		}
		if rec.OverallStatus == huskycat.OverallInFlight && rec.PID != 0 && pidAlive(rec.PID) {
			return rec, true
		}
	}
	return nil, false
}

// reclaimOrphans reclassifies any InFlight record whose pid no longer
// refers to a live process as Aborted (spec §4.2, §4.6 "orphan
// reclamation"). Called with s.mu held.
func (s *Store) reclaimOrphans() {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := s.readRecord(e.Name())
		if err != nil || rec == nil {
			continue
		}
		if rec.OverallStatus != huskycat.OverallInFlight {
			continue
		}
		if rec.PID != 0 && pidAlive(rec.PID) {
			continue
		}
		rec.OverallStatus = huskycat.OverallAborted
		now := time.Now()
		rec.FinishedAt = &now
		pid := rec.PID
		rec.PID = 0
		if err := s.writeRecord(rec); err == nil {
			_ = s.writeLatestPointer(rec.RunID)
		}
		if pid != 0 {
			_ = os.Remove(s.pidPath(pid))
		}
	}
}

// sweepRetention removes run directories older than the configured
// horizon and orphaned pid sentinels. Triggered on Open, not on its
// own schedule (spec §4.2).
func (s *Store) sweepRetention() {
	horizon := time.Now().Add(-s.cfg.Retention)
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		rec, err := s.readRecord(e.Name())
		if err != nil || rec == nil {
			continue
		}
		if rec.OverallStatus == huskycat.OverallInFlight {
			continue
		}
		ts := rec.StartedAt
		if rec.FinishedAt != nil {
			ts = *rec.FinishedAt
		}
		if ts.Before(horizon) {
			_ = os.RemoveAll(s.runDir(e.Name()))
		}
	}

	pidsDir := filepath.Join(s.root, "pids")
	pidEntries, err := os.ReadDir(pidsDir)
	if err != nil {
		return
	}
	for _, e := range pidEntries {
		var pid int
		if _, err := fmt.Sscanf(e.Name(), "%d", &pid); err != nil {
			continue
		}
		if !pidAlive(pid) {
			_ = os.Remove(filepath.Join(pidsDir, e.Name()))
		}
	}
}

// ShouldGate implements should_gate(repo) -> Decision.
func (s *Store) ShouldGate() (Decision, error) {
	rec, err := s.Latest()
	if err != nil {
		return DecisionAllow, err
	}
	if rec == nil {
		return DecisionAllow, nil
	}
	switch rec.OverallStatus {
	case huskycat.OverallFailed:
		return DecisionBlock, nil
	case huskycat.OverallAborted:
		if rec.FinishedAt != nil && time.Since(*rec.FinishedAt) <= s.cfg.withDefaults().AbortedRecency {
			return DecisionPrompt, nil
		}
		return DecisionAllow, nil
	default:
		return DecisionAllow, nil
	}
}
