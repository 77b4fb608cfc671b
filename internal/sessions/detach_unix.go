//go:build !windows

package sessions

import (
	"os/exec"
	"syscall"
)

// detach puts the child in its own process group so it survives our exit
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
