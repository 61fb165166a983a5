// SPDX-License-Identifier: MPL-2.0

package main

import "vlaunch-cli/cmd/vlaunch"

func main() {
	cmd.Execute()
}
