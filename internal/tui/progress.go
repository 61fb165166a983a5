// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"fmt"

	"vlaunch-cli/internal/update"
)

// FormatProgress renders a progress event as a single status line suitable
// for carriage-return overwriting.
func FormatProgress(ev update.ProgressEvent) string {
	switch ev.Phase {
	case update.PhaseDownloading:
		if ev.BytesTotal > 0 {
			return fmt.Sprintf("downloading %3.0f%% (%s / %s)",
				ev.Percent, formatBytes(ev.BytesDone), formatBytes(ev.BytesTotal))
		}
		return fmt.Sprintf("downloading %s", formatBytes(ev.BytesDone))
	case update.PhaseVerifying:
		return "verifying artifact"
	case update.PhaseExpanding:
		return "expanding archive"
	case update.PhaseFinalizing:
		return "finalizing install"
	default:
		return string(ev.Phase)
	}
}

// formatBytes renders a byte count with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
