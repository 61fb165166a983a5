// SPDX-License-Identifier: MPL-2.0

// Package notice fetches operator notices from the update server and tracks
// local acknowledgements so a dismissed notice stays hidden for a while.
package notice
