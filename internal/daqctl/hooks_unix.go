//go:build unix

package daqctl

import (
	"log"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup puts a hook command in its own process group so a timed-
// out hook that has spawned children of its own can be cleaned up as a
// unit rather than leaving orphans behind once exec.CommandContext kills
// only the direct child.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup signals every process in cmd's group. Used when a hook
// command's context deadline fires; best-effort, errors are logged and
// swallowed since the hook has already failed from the caller's point of
// view.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		log.Printf("daqctl: killing hook process group %d: %v", cmd.Process.Pid, err)
	}
}
