//go:build windows

package scheduler

import "os/exec"

// Windows has no process-group SIGTERM/SIGKILL equivalent; this
// degrades to killing the direct child only, a documented gap
// (ccfeedback's own process handling is POSIX-only throughout).
func setProcGroup(cmd *exec.Cmd) {}

type fakeSignal int

func signalProcessGroup(cmd *exec.Cmd, _ fakeSignal) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

const sigterm = fakeSignal(0)
const sigkill = fakeSignal(1)
