// SPDX-License-Identifier: MPL-2.0

// Package store owns all persistent launcher state: the current-version
// record, enumeration of installed version directories, and the cross-process
// install lock.
//
// The package is organized into three concerns:
//   - paths.go: launcher directory layout resolution (base, data, versions)
//   - store.go: atomic read/write of the current-version record and version
//     directory enumeration
//   - lock.go: mutual-exclusion marker preventing concurrent installs
//
// The current-version record is the sole source of truth for "what should I
// launch". It is rewritten only through WriteCurrent, which stages the new
// content in a temp file and renames it into place so a crash mid-write can
// never corrupt the pointer.
package store
