// SPDX-License-Identifier: MPL-2.0

// Package tui holds the launcher's terminal components: the update confirm
// prompt, the download progress line, and notice rendering.
package tui
