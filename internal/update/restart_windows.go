//go:build windows

package update

import (
	"os"
	"os/exec"
	"syscall"
)

// restartPlatform starts a fresh copy and exits; Windows has no exec.
func restartPlatform(exe string, args, env []string) error {
	cmd := exec.Command(exe, args[1:]...)
	cmd.Env = env
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	os.Exit(0)
	return nil
}

const createNewProcessGroup = 0x00000200
const detachedProcess = 0x00000008

// Detach starts the child outside our console and process group.
func Detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNewProcessGroup | detachedProcess,
	}
}
