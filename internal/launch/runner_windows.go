// SPDX-License-Identifier: MPL-2.0

//go:build windows

package launch

import (
	"os/exec"
	"syscall"
)

// DETACHED_PROCESS is not exported by the syscall package.
const detachedProcess = 0x00000008

// configureDetached severs the child from the launcher's console and process
// group so the launcher can exit while the application keeps running.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: syscall.CREATE_NEW_PROCESS_GROUP | detachedProcess,
	}
}
