//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package render

import (
	"os/exec"
	"syscall"
)

// configureProcess starts the renderer in its own process group and makes
// context cancellation kill the whole group, so helpers the renderer spawns
// (ffmpeg, latex) do not outlive it.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
}

// killGroup kills whatever is left of the renderer's process group after the
// renderer itself has exited.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
}
