//go:build !windows

package scheduler

import (
	"os/exec"
	"syscall"
)

// setProcGroup makes the child its own process group leader so the
// timeout/cancel grace-kill can target the whole group (killing any
// grandchildren a validator spawns), grounded on
// other_examples/.../buildkite-agent clicommand/bootstrap.go's
// process-group signal handling.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalProcessGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	return syscall.Kill(-cmd.Process.Pid, sig)
}

const sigterm = syscall.SIGTERM
const sigkill = syscall.SIGKILL
