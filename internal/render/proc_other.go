//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package render

import "os/exec"

// configureProcess keeps exec's default cancellation, which kills only the
// direct child.
func configureProcess(cmd *exec.Cmd) {}

// killGroup is a no-op: without process groups only the direct child is
// tracked, and it has already exited.
func killGroup(cmd *exec.Cmd) {}
