// SPDX-License-Identifier: MPL-2.0

package update

// Phase identifies which step of the update pipeline a progress event
// belongs to.
type Phase string

const (
	// PhaseChecking covers the remote latest-version query.
	PhaseChecking Phase = "checking"
	// PhaseDownloading covers the artifact transfer.
	PhaseDownloading Phase = "downloading"
	// PhaseVerifying covers digest and size verification.
	PhaseVerifying Phase = "verifying"
	// PhaseExpanding covers archive extraction into the staging directory.
	PhaseExpanding Phase = "expanding"
	// PhaseFinalizing covers the staging-to-finalized rename.
	PhaseFinalizing Phase = "finalizing"
)

// ProgressEvent describes the current state of an in-flight update step.
// BytesTotal is zero when the total is unknown; Percent is only meaningful
// when BytesTotal is set.
type ProgressEvent struct {
	Phase      Phase
	BytesDone  int64
	BytesTotal int64
	Percent    float64
	Message    string
}

// ProgressFunc receives progress updates. Implementations must be fast and
// must not block; they are called inline from the download loop.
type ProgressFunc func(ProgressEvent)

// emit invokes the callback if one is set, computing Percent from the byte
// counters.
func (f ProgressFunc) emit(ev ProgressEvent) {
	if f == nil {
		return
	}
	if ev.BytesTotal > 0 {
		ev.Percent = float64(ev.BytesDone) / float64(ev.BytesTotal) * 100
	}
	f(ev)
}
