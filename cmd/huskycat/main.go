// Command huskycat is the HuskyCat Validation Orchestration Engine's
// CLI entry point: a `validate` default command plus `init`,
// `show-tools`, and `gate` subcommands.
//
// Grounded almost directly on jrossi/ccfeedback's cmd/ccfeedback/main.go
// (ldflags version vars, custom flag.Usage, flag.NewFlagSet per
// subcommand, os.Stdout.Sync()/os.Stderr.Sync() before os.Exit), with
// four historical entry points (ccfeedback, ccfeedback-show,
// gismo, gismo-init) collapsed into this one binary's subcommands.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/config"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/engine"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/mode"
)

// Build variables injected via ldflags, matching ccfeedback exactly.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = ""
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) > 0 {
		if runID, ok := mode.ChildRunID(args); ok {
			return runChild(runID)
		}
		switch args[0] {
		case "init":
			return runInit(args[1:])
		case "show-tools":
			return runShowTools(args[1:])
		case "gate":
			return runGate(args[1:])
		case "version", "--version":
			printVersion()
			return 0
		}
	}
	return runValidate(args)
}

func printVersion() {
	fmt.Printf("huskycat version %s\n", version)
	if commit != "none" {
		fmt.Printf("  commit: %s\n", commit)
	}
	if date != "unknown" {
		fmt.Printf("  built at: %s\n", date)
	}
	if builtBy != "" {
		fmt.Printf("  built by: %s\n", builtBy)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "HuskyCat - Local Code Validation Orchestration Engine\n\n")
	fmt.Fprintf(os.Stderr, "Usage: %s [validate] [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s init [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s show-tools\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s gate\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  init        Install a git pre-commit hook that invokes huskycat\n")
	fmt.Fprintf(os.Stderr, "  show-tools  Print the registered validator catalog\n")
	fmt.Fprintf(os.Stderr, "  gate        Print should_gate's decision for this repository and exit accordingly\n")
	fmt.Fprintf(os.Stderr, "\nExit codes:\n")
	fmt.Fprintf(os.Stderr, "  0 - Success; 1 - Failed; 2 - Aborted/cancelled; 3 - configuration error; 4 - internal error\n")
}

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	staged := fs.Bool("staged", false, "Validate only staged files (git diff --cached)")
	all := fs.Bool("all", false, "Validate every tracked file")
	fix := fs.Bool("fix", false, "Expand {fix?} to --fix for fixable tools whose argv template contains it")
	modeFlag := fs.String("mode", "", "Invocation mode: GitHooksBlocking|GitHooksNonBlocking|CI|CLI|Pipeline (default CLI, overridable by $HUSKYCAT_MODE)")
	failFast := fs.Bool("fail-fast", false, "Stop scheduling new tools after the first failure")
	workers := fs.Int("workers", 0, "Max concurrent tools per level (0 = mode default)")
	timeout := fs.Duration("timeout", 0, "Per-tool timeout (0 = config per_tool_timeout, else 2m)")
	fork := fs.Bool("fork", false, "Force GitHooksNonBlocking's detached-child behavior regardless of --mode")
	debug := fs.Bool("debug", false, "Enable debug logging")
	configFile := fs.String("config", "", "Path to an explicit .huskycat.toml config file")
	fs.Usage = usage

	if err := fs.Parse(args); err != nil {
		return int(huskyerr.ExitConfig)
	}

	files := fs.Args()
	var err error
	if *staged {
		files, err = stagedFiles()
	} else if *all {
		files, err = trackedFiles()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return int(huskyerr.ExitConfig)
	}

	repoRoot, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return int(huskyerr.ExitInternal)
	}

	cfg, cfgErr := loadConfig(*configFile, *debug)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", cfgErr)
		return int(huskyerr.ExitConfig)
	}

	m := resolveMode(*modeFlag, cfg.Mode)
	if *fork {
		m = mode.GitHooksNonBlocking
	}
	if m == mode.GitHooksBlocking && envTruthy("HUSKYCAT_NONBLOCKING") {
		m = mode.GitHooksNonBlocking
	}

	if (m == mode.GitHooksBlocking || m == mode.GitHooksNonBlocking) && envTruthy("SKIP_HOOKS") {
		fmt.Fprintln(os.Stderr, "huskycat: SKIP_HOOKS set, skipping validation")
		return int(huskyerr.ExitSuccess)
	}

	eng, err := engine.NewBuilder().
		WithRepoRoot(repoRoot).
		WithConfig(cfg).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return int(huskyerr.ExitCodeFor(err))
	}

	req := huskycat.RunRequest{
		Files:          files,
		Fix:            *fix,
		FailFast:       *failFast,
		MaxWorkers:     *workers,
		PerToolTimeout: *timeout,
	}

	if m.ChangesTopology() {
		result, forkErr := mode.Fork(context.Background(), eng.Store(), files, isInteractive(), envTruthy("HUSKYCAT_AUTO_APPROVE"))
		if forkErr != nil {
			fmt.Fprintf(os.Stderr, "huskycat: %v\n", forkErr)
			return int(huskyerr.ExitCodeFor(forkErr))
		}
		fmt.Fprintln(os.Stderr, result.Message)
		os.Stdout.Sync()
		os.Stderr.Sync()
		return int(huskyerr.ExitSuccess)
	}

	wantProgress := isInteractive()
	if cfg.Progress != nil {
		wantProgress = *cfg.Progress
	}

	// GitHooksBlocking's minimal failure report goes to stderr.
	renderOut := os.Stdout
	if m == mode.GitHooksBlocking {
		renderOut = os.Stderr
	}

	ctx := context.Background()
	res, err := eng.Validate(ctx, m, req, renderOut, os.Stderr, wantProgress)
	os.Stdout.Sync()
	os.Stderr.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "huskycat: %v\n", err)
		return int(huskyerr.ExitCodeFor(err))
	}

	switch res.Record.OverallStatus {
	case huskycat.OverallSuccess:
		return int(huskyerr.ExitSuccess)
	case huskycat.OverallAborted:
		return int(huskyerr.ExitAborted)
	default:
		return int(huskyerr.ExitFailed)
	}
}

// runChild is the detached worker GitHooksNonBlocking's parent re-execs
// into (spec §4.6): it resumes at the same Validate path the parent
// would have taken synchronously, writing its own stdout/stderr, which
// the parent has already redirected to the run's log file.
func runChild(runID string) int {
	repoRoot, err := os.Getwd()
	if err != nil {
		return int(huskyerr.ExitInternal)
	}
	cfg, _ := loadConfig("", false)
	eng, err := engine.NewBuilder().WithRepoRoot(repoRoot).WithConfig(cfg).Build()
	if err != nil {
		return int(huskyerr.ExitCodeFor(err))
	}

	files, err := stagedFiles()
	if err != nil {
		files = nil
	}
	req := huskycat.RunRequest{Files: files}
	res, err := eng.Validate(context.Background(), mode.GitHooksNonBlocking, req, os.Stdout, os.Stderr, false)
	_ = runID // the run id is already fixed by the parent's Run Store handle; re-derivation is unnecessary since Open() finds the existing in-flight record
	if err != nil {
		return int(huskyerr.ExitCodeFor(err))
	}
	if res.Record.OverallStatus == huskycat.OverallSuccess {
		return int(huskyerr.ExitSuccess)
	}
	return int(huskyerr.ExitFailed)
}

func loadConfig(explicitPath string, debug bool) (*config.Config, error) {
	if explicitPath != "" {
		return config.LoadTOML(explicitPath)
	}
	loader, err := config.NewLoader()
	if err != nil {
		if debug {
			fmt.Fprintf(os.Stderr, "huskycat: config loader init failed: %v\n", err)
		}
		return config.New(), nil
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func stagedFiles() ([]string, error) {
	out, err := exec.Command("git", "diff", "--cached", "--name-only", "--diff-filter=ACM").Output()
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return splitLines(out), nil
}

func trackedFiles() ([]string, error) {
	out, err := exec.Command("git", "ls-files").Output()
	if err != nil {
		return nil, fmt.Errorf("git ls-files: %w", err)
	}
	return splitLines(out), nil
}

func splitLines(out []byte) []string {
	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			files = append(files, line)
		}
	}
	return files
}

// resolveMode applies spec.md §6's precedence for mode selection: an
// explicit --mode flag always wins; otherwise $HUSKYCAT_MODE (already
// parsed into cfg.Mode by the config loader's env-override layer)
// overrides the "CLI" default.
func resolveMode(flagValue, cfgMode string) mode.Mode {
	if flagValue != "" {
		return mode.Mode(flagValue)
	}
	if cfgMode != "" {
		return mode.Mode(cfgMode)
	}
	return mode.CLI
}

// envTruthy reports whether the named environment variable is set to a
// value strconv.ParseBool accepts as true ("1", "t", "true", and so on).
func envTruthy(name string) bool {
	v, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	return err == nil && b
}

func isInteractive() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

const childExecBudget = 100 * time.Millisecond // documents P7; see mode.childStartupBudget
