//go:build !unix

package process

import (
	"os"
	"os/exec"
)

func detach(_ *exec.Cmd) {}

func terminateGroup(pid int) error {
	if pid <= 0 {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return proc.Kill()
}

func groupLeaderAlive(_ int) bool {
	return false
}
