// SPDX-License-Identifier: MPL-2.0

// Package update implements the launcher's update pipeline: querying the
// remote authority for the latest version, downloading and verifying the
// release artifact, materializing it as an immutable version directory, and
// promoting it to active.
//
// The package is organized into four concerns:
//   - client.go: HTTP client for the launcher update API (latest-version check,
//     artifact download)
//   - checksum.go: SHA256 digest and byte-size verification of downloads
//   - installer.go: staged install (stage, download, verify, expand, finalize)
//     with the finalize rename as the single commit point
//   - swap.go: promotion of a finalized version to active and retention pruning
//
// Every failure before finalize leaves the versions tree exactly as it was;
// every failure after finalize but before promotion leaves a finalized
// directory that can be promoted later without re-downloading.
package update
