// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"fmt"
	"os/exec"
)

type (
	// Runner starts the target executable as an independent process.
	Runner interface {
		// Start spawns exePath with the given working directory and returns
		// the child's pid. The child must not die with the launcher.
		Start(exePath, workDir string) (int, error)
	}

	// DetachedRunner spawns through os/exec with no inherited stdio,
	// detached from the launcher's process group so the launcher can exit
	// immediately after a successful start.
	DetachedRunner struct{}
)

// Start implements Runner.
func (DetachedRunner) Start(exePath, workDir string) (int, error) {
	cmd := exec.Command(exePath)
	cmd.Dir = workDir
	configureDetached(cmd)

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting %s: %w", exePath, err)
	}

	pid := cmd.Process.Pid
	// Drop the handle; the child is never waited on.
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("releasing process handle: %w", err)
	}
	return pid, nil
}
