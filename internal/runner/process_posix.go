//go:build !windows

package runner

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcessGroup marks cmd to start in a new process group so the
// stop protocol can signal the whole group, not just the direct child
// (§4.6: "spawn the child in a new process group").
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// stopProcessGroup implements §4.6's stop protocol: group-SIGTERM,
// wait up to grace, then group-SIGKILL if still alive. pid is the
// child's pid (the process group leader, since Setpgid was used at
// spawn); a negative pid targets the whole group.
func stopProcessGroup(pid int, grace time.Duration, alive func() bool) {
	_ = syscall.Kill(-pid, syscall.SIGTERM)

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		if !alive() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	if alive() {
		_ = syscall.Kill(-pid, syscall.SIGKILL)
	}
}
