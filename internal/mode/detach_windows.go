//go:build windows

package mode

import "os/exec"

// Windows has no setsid equivalent exposed through os/exec's
// SysProcAttr in a form this engine depends on; the child still
// detaches stdio, which is the part that matters for the git hook's
// parent shell to exit cleanly.
func setDetached(cmd *exec.Cmd) {}
