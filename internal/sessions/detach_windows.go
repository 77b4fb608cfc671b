//go:build windows

package sessions

import (
	"os/exec"
	"syscall"
)

const createNoWindow = 0x08000000

// detach hides the intermediate cmd window
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: createNoWindow}
}
