//go:build !windows

package update

import (
	"os/exec"
	"syscall"
)

// restartPlatform replaces the current process image via exec.
func restartPlatform(exe string, args, env []string) error {
	return syscall.Exec(exe, args, env)
}

// Detach puts the child in its own session so it survives the
// parent's exit and any controlling terminal going away.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
