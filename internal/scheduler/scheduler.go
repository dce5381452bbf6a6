// Package scheduler implements the DAG Scheduler (C4): it computes
// topological levels over a selected validator subgraph and executes
// each level with bounded parallelism, per-tool timeouts, fail-fast,
// skip-on-dependency-failure, and cancellation.
//
// The per-level worker pool is grounded on jrossi/ccfeedback's
// linters.ParallelExecutor (bounded goroutines draining a task
// channel, single result-collector fan-in), reimplemented on top of
// golang.org/x/sync/errgroup, whose SetLimit bounds each level's
// concurrency and whose Wait is the level barrier. Worker functions
// never return an error, so errgroup never cancels a level; fail-fast
// is a flag checked between levels, and cancellation comes from the
// caller's ctx. The dependency-aware walk is grounded on
// other_examples/.../killallgit-ryan pkg/tools/batch_executor.go's
// BatchExecutor, replacing its polling-based waitForDependencies with
// a hard level barrier (spec §4.4 Phase 1/2 require every tool in a
// level to complete before the next level dispatches).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/registry"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/resolver"
)

// EventType is the closed set of progress notifications the scheduler
// emits, matching spec §4.5's event vocabulary exactly.
type EventType string

const (
	ToolQueued   EventType = "ToolQueued"
	ToolStarted  EventType = "ToolStarted"
	ToolFinished EventType = "ToolFinished"
	Tick         EventType = "Tick"
)

// Event is the serialized notification sent to the single event sink
// (TUI + Run Store); producers never write state directly, only send
// events (spec §4.5, §5).
type Event struct {
	Type     EventType
	Tool     string
	Status   huskycat.Status
	Errors   int
	Warnings int
}

// Resolve is the narrow surface the scheduler needs from the Tool
// Resolver; satisfied by *resolver.Resolver.
type Resolve func(ctx context.Context, executable string) (resolver.Resolution, error)

// ResultSink receives each tool's finalized result as it completes, in
// completion order (spec §4.4's "Result total order", P5). The
// scheduler's caller typically wires this to the Run Store's
// AppendResult.
type ResultSink func(huskycat.ToolResult)

// Scheduler executes a run request against a resolved registry.
type Scheduler struct {
	reg     *registry.Registry
	resolve Resolve
}

func New(reg *registry.Registry, resolve Resolve) *Scheduler {
	return &Scheduler{reg: reg, resolve: resolve}
}

// Outcome is the result of a full scheduler run.
type Outcome struct {
	OverallStatus huskycat.OverallStatus
	PerTool       map[string]huskycat.ToolResult
}

// Run executes req against dag, emitting Events to events (if
// non-nil) and results to sink (if non-nil). ctx cancellation
// implements the logical cancel signal of spec §5: in-flight
// processes are SIGTERM/SIGKILL'd on the timeout grace schedule,
// queued tools are Skipped("cancelled"), and the run finalizes
// Aborted.
func (s *Scheduler) Run(ctx context.Context, req huskycat.RunRequest, dag *registry.Dag, events chan<- Event, sink ResultSink) Outcome {
	levels := computeLevels(dag)

	var mu sync.Mutex
	results := make(map[string]huskycat.ToolResult, len(dag.Names))

	emit := func(ev Event) {
		if events != nil {
			select {
			case events <- ev:
			default:
			}
		}
	}

	record := func(r huskycat.ToolResult) {
		mu.Lock()
		results[r.Tool] = r
		mu.Unlock()
		emit(Event{Type: ToolFinished, Tool: r.Tool, Status: r.Status, Errors: r.ErrorCount, Warnings: r.WarningCount})
		if sink != nil {
			sink(r)
		}
	}

	maxWorkers := req.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	cancelled := false
	failFastTriggered := false

	for _, level := range levels {
		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}

		if cancelled {
			s.skipAll(level, results, "cancelled", record)
			continue
		}
		if failFastTriggered {
			s.skipAll(level, results, "fail-fast", record)
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(maxWorkers)

		levelFailed := false
		var levelMu sync.Mutex

		for _, name := range level {
			name := name
			desc := s.reg.Get(name)
			if desc == nil {
				continue
			}

			if dep, failed := failedDependency(desc, results); failed {
				r := huskycat.ToolResult{
					Tool:       name,
					Status:     huskycat.StatusSkipped,
					StartedAt:  time.Now(),
					SkipReason: fmt.Sprintf("dependency %s failed", dep),
				}
				record(r)
				continue
			}

			emit(Event{Type: ToolQueued, Tool: name})
			g.Go(func() error {
				emit(Event{Type: ToolStarted, Tool: name})
				r := s.dispatch(gctx, desc, req)
				record(r)
				if r.Status.CountsAsFailure() {
					levelMu.Lock()
					levelFailed = true
					levelMu.Unlock()
				}
				return nil
			})
		}

		_ = g.Wait()

		select {
		case <-ctx.Done():
			cancelled = true
		default:
		}
		if req.FailFast && levelFailed {
			failFastTriggered = true
		}
	}

	overall := huskycat.OverallSuccess
	switch {
	case cancelled:
		overall = huskycat.OverallAborted
	default:
		for _, r := range results {
			if !(r.Status == huskycat.StatusSuccess || r.Status == huskycat.StatusNotApplicable) {
				overall = huskycat.OverallFailed
				break
			}
		}
	}

	return Outcome{OverallStatus: overall, PerTool: results}
}

// failedDependency reports the first dependency of desc whose result
// is already known and counts as a failure.
func failedDependency(desc *huskycat.ToolDescriptor, results map[string]huskycat.ToolResult) (string, bool) {
	for _, dep := range desc.DependsOn {
		if r, ok := results[dep]; ok && r.Status.CountsAsFailure() {
			return dep, true
		}
	}
	return "", false
}

func (s *Scheduler) skipAll(level []string, results map[string]huskycat.ToolResult, reason string, record func(huskycat.ToolResult)) {
	for _, name := range level {
		if _, already := results[name]; already {
			continue
		}
		record(huskycat.ToolResult{
			Tool:       name,
			Status:     huskycat.StatusSkipped,
			StartedAt:  time.Now(),
			SkipReason: reason,
		})
	}
}

// dispatch runs a single tool descriptor to completion, handling
// NotFound (NotApplicable, not a failure), spawn errors, timeouts, and
// per-file vs per-files… placeholder expansion (Open Question 2:
// sequential per-file within a tool, parallel across tools within a
// level - the tool-level parallelism is already provided by the
// errgroup in Run).
func (s *Scheduler) dispatch(ctx context.Context, desc *huskycat.ToolDescriptor, req huskycat.RunRequest) huskycat.ToolResult {
	started := time.Now()

	res, err := s.resolve(ctx, desc.Executable)
	if err != nil {
		// ResolverError is recovered locally by the resolver itself; by
		// contract it never reaches here, but treat defensively as
		// NotFound rather than propagating.
		res.Kind = resolver.KindNotFound
	}
	if res.Kind == resolver.KindNotFound {
		return huskycat.ToolResult{
			Tool:      desc.Name,
			Status:    huskycat.StatusNotApplicable,
			StartedAt: started,
			Duration:  time.Since(started),
			Output:    []byte(fmt.Sprintf("%s: executable %q not found", desc.Name, desc.Executable)),
		}
	}

	invocations := s.buildInvocations(desc, req, res)
	if len(invocations) == 0 {
		return huskycat.ToolResult{
			Tool:      desc.Name,
			Status:    huskycat.StatusNotApplicable,
			StartedAt: started,
			Duration:  time.Since(started),
		}
	}

	var combinedOutput []byte
	worstExit := 0
	hasExit := false
	var timedOut, cancelled bool
	var spawnErr error

	for _, argv := range invocations {
		outcome := runProcess(ctx, argv[0], argv[1:], req.PerToolTimeout)
		combinedOutput = append(combinedOutput, outcome.output...)
		if outcome.timedOut {
			timedOut = true
		}
		if outcome.cancelled {
			cancelled = true
		}
		if outcome.spawnErr != nil {
			spawnErr = outcome.spawnErr
		}
		if outcome.hasExit {
			hasExit = true
			if outcome.exitCode != 0 {
				worstExit = outcome.exitCode
			}
		}
		if timedOut || cancelled || spawnErr != nil {
			break // sequential per-file dispatch stops at the first timeout, cancellation or spawn error; a non-zero exit does not stop it
		}
	}

	duration := time.Since(started)
	combinedOutput = huskycat.CapOutput(combinedOutput)

	if cancelled {
		return huskycat.ToolResult{
			Tool: desc.Name, Status: huskycat.StatusCancelled,
			StartedAt: started, Duration: duration, Output: combinedOutput,
			ErrorCount: 1,
		}
	}
	if timedOut {
		return huskycat.ToolResult{
			Tool: desc.Name, Status: huskycat.StatusTimedOut,
			StartedAt: started, Duration: duration, Output: combinedOutput,
			ErrorCount: 1,
		}
	}
	if spawnErr != nil {
		return huskycat.ToolResult{
			Tool: desc.Name, Status: huskycat.StatusFailed,
			StartedAt: started, Duration: duration,
			Output:     append(combinedOutput, []byte("\n"+spawnErr.Error())...),
			ErrorCount: 1,
		}
	}

	parse := desc.ParseCounts
	if parse == nil {
		parse = func(output []byte, exitCode int) (int, int) {
			if exitCode != 0 {
				return 1, 0
			}
			return 0, 0
		}
	}
	errs, warns := parse(combinedOutput, worstExit)

	status := huskycat.StatusSuccess
	if worstExit != 0 {
		status = huskycat.StatusFailed
	}

	exitCode := worstExit
	var exitPtr *int
	if hasExit {
		exitPtr = &exitCode
	}

	return huskycat.ToolResult{
		Tool: desc.Name, Status: status,
		StartedAt: started, Duration: duration,
		ExitCode: exitPtr, Output: combinedOutput,
		ErrorCount: errs, WarningCount: warns,
	}
}

// buildInvocations expands argv_template into one or more concrete
// argv slices (argv[0] is the resolved executable path).
func (s *Scheduler) buildInvocations(desc *huskycat.ToolDescriptor, req huskycat.RunRequest, res resolver.Resolution) [][]string {
	files := matchingFiles(desc, req.Files)

	hasFileTok := false
	hasFilesTok := false
	for _, tok := range desc.ArgvTemplate {
		switch tok {
		case string(huskycat.PlaceholderFile):
			hasFileTok = true
		case string(huskycat.PlaceholderFiles):
			hasFilesTok = true
		}
	}

	expand := func(fileArgs []string) []string {
		out := []string{res.Path}
		if res.Kind == resolver.KindDelegated {
			out = res.Launcher.Rewrite(".", []string{desc.Executable})
		}
		for _, tok := range desc.ArgvTemplate {
			switch tok {
			case string(huskycat.PlaceholderFile):
				out = append(out, fileArgs...)
			case string(huskycat.PlaceholderFiles):
				out = append(out, fileArgs...)
			case string(huskycat.PlaceholderFix):
				if req.Fix && desc.Fixable {
					out = append(out, "--fix")
				}
			default:
				out = append(out, tok)
			}
		}
		return out
	}

	if hasFilesTok || (!hasFileTok && !hasFilesTok) {
		if len(files) == 0 && (hasFilesTok || len(desc.AppliesTo) > 0) {
			return nil
		}
		return [][]string{expand(files)}
	}

	// {file}: sequential per-file invocation, one argv per file.
	invocations := make([][]string, 0, len(files))
	for _, f := range files {
		invocations = append(invocations, expand([]string{f}))
	}
	return invocations
}

func matchingFiles(desc *huskycat.ToolDescriptor, files []string) []string {
	return registry.MatchingFiles(desc, files)
}
