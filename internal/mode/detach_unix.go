//go:build !windows

package mode

import (
	"os/exec"
	"syscall"
)

// setDetached makes cmd a session leader so it survives the git hook's
// parent shell exiting (spec §5, "the child MUST call the functional
// equivalent of setsid/setpgid").
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
