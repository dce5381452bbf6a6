// Package engine implements the HuskyCat Validation Orchestration
// Engine: tool resolution, a dependency-DAG scheduler, a progress
// display, and a run store that gates future git-hook invocations on
// prior results.
package engine

import (
	"context"
	"io"
	"os"
	"time"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/config"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/mode"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/progress"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/registry"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/resolver"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/runstore"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/scheduler"
)

// Engine wires together the Validator Registry, Tool Resolver, Run
// Store, and DAG Scheduler for one repository. It is explicitly not a
// singleton (unlike ccfeedback's package-level globalCacheManager):
// a caller that validates two repositories in one process constructs
// two Engines.
//
// Grounded on jrossi/ccfeedback's api.go API/Builder/QuickStart
// pattern, generalized from a hook-message-processing facade into a
// validation-run facade: ProcessMessage/ProcessStdin become Validate,
// the RuleEngine plug point becomes the Registry/Resolver pair handed
// in at construction.
type Engine struct {
	reg   *registry.Registry
	res   *resolver.Resolver
	store *runstore.Store
	sched *scheduler.Scheduler
	cfg   *config.Config
}

// New constructs an Engine with the built-in tool catalog and default
// resolver/store options, equivalent to ccfeedback's New().
func New(repoRoot string) (*Engine, error) {
	return NewBuilder().WithRepoRoot(repoRoot).Build()
}

// Builder provides a fluent interface for constructing an Engine,
// mirroring jrossi/ccfeedback's Builder (WithTimeout/WithRuleEngine/
// RegisterHook/Build).
type Builder struct {
	repoRoot string
	descs    []huskycat.ToolDescriptor
	resOpts  resolver.Options
	runCfg   runstore.Config
	cfg      *config.Config
}

// NewBuilder creates a Builder seeded with the built-in tool catalog,
// matching ccfeedback's NewBuilder defaulting its registry.
func NewBuilder() *Builder {
	return &Builder{descs: registry.Builtin()}
}

func (b *Builder) WithRepoRoot(root string) *Builder {
	b.repoRoot = root
	return b
}

// WithTools replaces the builtin catalog entirely; most callers
// instead want RegisterTool to add to it.
func (b *Builder) WithTools(descs []huskycat.ToolDescriptor) *Builder {
	b.descs = descs
	return b
}

// RegisterTool appends a single descriptor (e.g. from configuration),
// mirroring ccfeedback's Builder.RegisterHook.
func (b *Builder) RegisterTool(d huskycat.ToolDescriptor) *Builder {
	b.descs = append(b.descs, d)
	return b
}

func (b *Builder) WithResolverOptions(opts resolver.Options) *Builder {
	b.resOpts = opts
	return b
}

func (b *Builder) WithRunStoreConfig(cfg runstore.Config) *Builder {
	b.runCfg = cfg
	return b
}

func (b *Builder) WithConfig(cfg *config.Config) *Builder {
	b.cfg = cfg
	return b
}

// Build constructs the Engine, validating the tool catalog (cycle and
// placeholder checks happen here, surfacing as a *huskyerr.ConfigError
// before any run starts).
func (b *Builder) Build() (*Engine, error) {
	reg, err := registry.New(b.descs)
	if err != nil {
		return nil, err
	}
	cfg := b.cfg
	if cfg == nil {
		cfg = config.New()
	}

	runCfg := b.runCfg
	if runCfg.Retention <= 0 && cfg.Retention != nil {
		runCfg.Retention = cfg.Retention.Duration
	}

	res := resolver.New(b.resOpts)
	store := runstore.New(b.repoRoot, runCfg)
	sched := scheduler.New(reg, res.Resolve)

	return &Engine{reg: reg, res: res, store: store, sched: sched, cfg: cfg}, nil
}

// Registry exposes the validator catalog, e.g. for `show-tools`.
func (e *Engine) Registry() *registry.Registry { return e.reg }

// Store exposes the Run Store, e.g. for the `gate` subcommand's
// standalone should_gate query.
func (e *Engine) Store() *runstore.Store { return e.store }

// Result is the outcome of a single blocking Validate call: the
// finalized record plus, for convenience, the scheduler's raw Outcome.
type Result struct {
	Record  huskycat.RunRecord
	Outcome scheduler.Outcome
}

// Validate runs the full synchronous path: select tools for files
// under m's profile, open a Run Store handle, schedule and execute the
// DAG, stream results into the store as they complete, attach the
// Progress TUI when progressOut is a terminal and wantProgress is true,
// and finalize the record. It is the code path every mode except
// GitHooksNonBlocking uses directly (GitHooksNonBlocking instead calls
// mode.Fork, whose detached child re-enters here). progressOut, if
// non-nil, is the terminal the Progress TUI attaches to (typically
// os.Stderr); renderOut receives the finalized posture-formatted
// report and may be any io.Writer (a file, a buffer, os.Stdout).
func (e *Engine) Validate(ctx context.Context, m mode.Mode, req huskycat.RunRequest, renderOut io.Writer, progressOut *os.File, wantProgress bool) (*Result, error) {
	posture := mode.Resolve(m)
	req.FailFast = req.FailFast || posture.FailFast
	req = e.cfg.ApplyDefaults(req)
	if req.MaxWorkers <= 0 {
		req.MaxWorkers = posture.MaxWorkers
	}
	if req.PerToolTimeout <= 0 {
		req.PerToolTimeout = 2 * time.Minute
	}

	// With no explicit `configured` list, the Configured profile falls
	// back to every registered tool the configuration leaves enabled.
	allowed := e.cfg.ConfiguredSet
	if len(allowed) == 0 {
		for _, d := range e.reg.All() {
			if e.cfg.IsToolEnabled(d.Name) {
				allowed = append(allowed, d.Name)
			}
		}
	}
	req.ToolSelection = e.reg.Select(req.Files, posture.Profile, allowed)
	dag := e.reg.Subgraph(req.ToolSelection)

	handle, err := e.store.Open(req.Files)
	if err != nil {
		return nil, err
	}

	events := make(chan scheduler.Event, 256)
	tui := progress.New(progressOut, len(req.ToolSelection), wantProgress)
	done := make(chan struct{})
	go func() {
		tui.Run(events)
		close(done)
	}()

	outcome := e.sched.Run(ctx, req, dag, events, func(r huskycat.ToolResult) {
		_ = handle.AppendResult(r)
	})
	close(events)
	<-done
	tui.Stop()

	overall := outcome.OverallStatus
	if err := handle.Finalize(overall); err != nil {
		return nil, err
	}

	if renderOut != nil {
		_ = mode.Render(renderOut, &handle.Record, posture.Format)
	}

	if m == mode.CI {
		writeStepSummary(&handle.Record)
	}

	return &Result{Record: handle.Record, Outcome: outcome}, nil
}

// writeStepSummary appends a markdown-shaped run summary to
// $GITHUB_STEP_SUMMARY when present, GitHub Actions' convention for a
// job's rendered summary panel. CI's primary Format stays JUnit (the
// de facto format CI test reporters consume); this is a secondary,
// best-effort artifact alongside it, so a write failure here never
// fails the run.
func writeStepSummary(rec *huskycat.RunRecord) {
	path := os.Getenv("GITHUB_STEP_SUMMARY")
	if path == "" {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_ = mode.Render(f, rec, mode.FormatMarkdown)
}
