package scheduler

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
)

// gracePeriod is the delay between SIGTERM and SIGKILL on timeout or
// cancellation, per spec §5 ("after a grace of ~2s -> SIGKILL").
const gracePeriod = 2 * time.Second

type processOutcome struct {
	exitCode  int
	hasExit   bool
	output    []byte
	timedOut  bool
	cancelled bool
	spawnErr  error
}

// runProcess spawns path with argv, capturing combined stdout+stderr
// up to huskycat.MaxCapturedOutput, and enforces timeout via
// SIGTERM-then-grace-then-SIGKILL to the whole process group.
// Grounded on jrossi/ccfeedback's executor.go HookRunner.RunHook
// (stdin-free variant) and
// other_examples/.../buildkite-agent's cancel-signal grace handling.
func runProcess(ctx context.Context, path string, argv []string, timeout time.Duration) processOutcome {
	cmd := exec.Command(path, argv...)
	setProcGroup(cmd)

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	if err := cmd.Start(); err != nil {
		return processOutcome{spawnErr: err}
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return finish(cmd, &buf, err, false, false)
	case <-timer.C:
		_ = signalProcessGroup(cmd, sigterm)
		return waitOutGrace(cmd, &buf, done, true)
	case <-ctx.Done():
		_ = signalProcessGroup(cmd, sigterm)
		return waitOutGrace(cmd, &buf, done, false)
	}
}

func waitOutGrace(cmd *exec.Cmd, buf *bytes.Buffer, done chan error, timedOut bool) processOutcome {
	grace := time.NewTimer(gracePeriod)
	defer grace.Stop()
	select {
	case err := <-done:
		return finish(cmd, buf, err, timedOut, !timedOut)
	case <-grace.C:
		_ = signalProcessGroup(cmd, sigkill)
		err := <-done
		return finish(cmd, buf, err, timedOut, !timedOut)
	}
}

func finish(cmd *exec.Cmd, buf *bytes.Buffer, waitErr error, timedOut, cancelled bool) processOutcome {
	out := huskycat.CapOutput(buf.Bytes())
	outcome := processOutcome{output: out, timedOut: timedOut, cancelled: cancelled}
	if waitErr == nil {
		outcome.exitCode = 0
		outcome.hasExit = true
		return outcome
	}
	if exitErr, ok := waitErr.(*exec.ExitError); ok {
		outcome.exitCode = exitErr.ExitCode()
		outcome.hasExit = true
		return outcome
	}
	outcome.spawnErr = waitErr
	return outcome
}
