package mode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/runstore"
)

// osExecutable is os.Executable, overridable in tests so Fork's
// re-exec target can be pointed at a harmless binary instead of the
// test binary itself.
var osExecutable = os.Executable

// promptReader is where confirmPrompt reads a "yes"/"no" answer from,
// overridable in tests; in production it is always os.Stdin.
var promptReader io.Reader = os.Stdin

// tracer spans the parent's fork decision so a host process that wires
// a real exporter (none is configured here; the default is a no-op)
// can see where the ≤100ms budget actually goes.
var tracer = otel.Tracer("github.com/tinyland-inc/tinyland-huskycat-sub004/internal/mode")

// childFlag is the internal, undocumented flag the Fork Controller
// passes to a re-exec of its own binary to mark it as the detached
// worker rather than a fresh top-level invocation. It is never a
// user-facing CLI contract.
const childFlag = "--child"

// ForkResult describes what the parent half of GitHooksNonBlocking
// should report to its caller (the git hook); it never carries the
// child's eventual outcome, which the *next* invocation consults via
// the Run Store (spec §6).
type ForkResult struct {
	Decision runstore.Decision
	Message  string
}

// Fork implements the GitHooksNonBlocking split described in spec
// §4.6. It performs, in order: orphan reclamation and a should_gate
// consultation (store.ShouldGate reads Latest, which reclaims before
// reading), and -
// on Allow - a detached re-exec of the current binary with childFlag
// set to the new run's id, redirecting the child's stdout/stderr to
// the run's log file. It deliberately never touches the registry,
// resolver, or scheduler: those belong to the child, keeping the
// parent's budget near the process-spawn floor (spec §4.6 P7, "<=100ms
// measured from hook entry to parent exit").
//
// Grounded on jrossi/ccfeedback's own hook-invocation posture
// (git-hook callers never waited for ccfeedback's own linting engine
// in its daemon mode) and generalized into an explicit re-exec, since
// Go cannot safely fork a live multi-goroutine process
// (runtime.GOMAXPROCS threads plus the GC would be left in an
// inconsistent state in the child - documented as the Open Question
// this design resolves).
//
// When should_gate answers Prompt (a recent Aborted run) in an
// interactive context, Fork asks the user directly unless autoApprove
// is set (spec §6, HUSKYCAT_AUTO_APPROVE: "in interactive paths, treat
// all prompts as yes"); a non-interactive caller never sees Prompt at
// all, since Decision.Resolve already downgrades it to Block.
func Fork(ctx context.Context, store *runstore.Store, files []string, interactive, autoApprove bool) (ForkResult, error) {
	ctx, span := tracer.Start(ctx, "mode.Fork")
	defer span.End()
	_ = ctx

	decision, err := store.ShouldGate()
	if err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "should_gate")
	}
	decision = decision.Resolve(interactive)

	if decision == runstore.DecisionPrompt {
		if autoApprove || confirmPrompt() {
			decision = runstore.DecisionAllow
		} else {
			decision = runstore.DecisionBlock
		}
	}

	if decision == runstore.DecisionBlock {
		return ForkResult{Decision: decision, Message: "huskycat: blocking commit on prior validation failure"}, nil
	}

	handle, err := store.Open(files)
	if err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "open run store")
	}

	exe, err := osExecutable()
	if err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "resolve own executable path")
	}

	logFile, err := os.OpenFile(handle.LogPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "open run log")
	}
	defer logFile.Close()

	cmd := exec.Command(exe, childFlag, handle.Record.RunID)
	cmd.Stdin = nil
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Dir = currentDir()
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "spawn detached child")
	}

	// The record was opened (and persisted) with the parent's own pid.
	// The parent is about to exit within its ~100ms budget, so the
	// record must point at the child's pid before that happens, or the
	// next reclaimOrphans() call sees a dead pid and wrongly reclassifies
	// the still-running child's run as Aborted (spec §4.2, §4.6).
	if err := handle.Reassign(cmd.Process.Pid); err != nil {
		return ForkResult{}, huskyerr.NewInternalError(err, "reassign run record to child pid")
	}

	// The parent never waits: reaping is the responsibility of the
	// process that calls Process.Release, since the child is session
	// leader and fully detached (spec §5, "Fork boundary").
	_ = cmd.Process.Release()

	return ForkResult{
		Decision: runstore.DecisionAllow,
		Message:  fmt.Sprintf("huskycat: validating in background (run %s)", handle.Record.RunID),
	}, nil
}

// confirmPrompt asks the user whether to proceed past a recently
// aborted run, using the same bufio.NewReader(os.Stdin) y/N
// confirmation idiom as init.go's processHookFile.
func confirmPrompt() bool {
	fmt.Fprint(os.Stderr, "huskycat: the previous validation run aborted abnormally. Continue anyway? [y/N]: ")
	reader := bufio.NewReader(promptReader)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func currentDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// ChildRunID inspects os.Args for the hidden re-exec flag, returning
// the run id and true if this process was spawned by Fork.
func ChildRunID(args []string) (string, bool) {
	for i, a := range args {
		if a == childFlag && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

// childStartupBudget documents P7's ≤100ms parent-exit target; it is
// not enforced in code (enforcing a deadline on exec.Command.Start
// would only ever make the measurement worse), and no test measures it.
const childStartupBudget = 100 * time.Millisecond
