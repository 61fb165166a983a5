// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package launch

import (
	"os/exec"
	"syscall"
)

// configureDetached puts the child in its own session so closing the
// launcher's terminal does not signal it.
func configureDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
