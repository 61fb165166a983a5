// SPDX-License-Identifier: MPL-2.0

// Package launch orchestrates the end-to-end check, update, launch flow as an
// explicit state machine and owns the fallback policy: any update problem
// degrades to launching the last known good version, and only a process spawn
// failure is fatal.
package launch
