package daqctl

import (
	"context"
	"log"
	"os/exec"
	"time"
)

const hookTimeout = 30 * time.Second

// runHook runs an optional shell command and logs, rather than propagates,
// any failure: hooks are best-effort instrumentation (pre-setup, post-start,
// post-stop), matching the teacher's treatment of its own on-kill command
// (log and continue, never abort the run over it).
func runHook(ctx context.Context, point string, argv []string) {
	if len(argv) == 0 {
		return
	}

	hctx, cancel := context.WithTimeout(ctx, hookTimeout)
	defer cancel()

	log.Printf("daqctl: running %s hook: %v", point, argv)

	cmd := exec.CommandContext(hctx, argv[0], argv[1:]...)
	setProcessGroup(cmd)
	err := cmd.Run()
	if hctx.Err() != nil {
		killProcessGroup(cmd)
	}
	if err != nil {
		log.Printf("daqctl: %s hook %v failed: %v", point, argv, err)
		return
	}
	log.Printf("daqctl: %s hook completed", point)
}
