// SPDX-License-Identifier: MPL-2.0

package launch

// State names every point of the launch flow. Modeling the flow as explicit
// states forces every failure path to declare where it lands instead of
// branching ad hoc.
type State string

const (
	StateIdle            State = "Idle"
	StateChecking        State = "Checking"
	StateUpToDate        State = "UpToDate"
	StateUpdateAvailable State = "UpdateAvailable"
	StateCheckFailed     State = "CheckFailed"
	StatePrompting       State = "Prompting"
	StateDeclined        State = "Declined"
	StateAccepted        State = "Accepted"
	StateDownloading     State = "Downloading"
	StateVerifying       State = "Verifying"
	StateInstalling      State = "Installing"
	StatePromoting       State = "Promoting"
	StateCleaning        State = "Cleaning"
	StateLaunching       State = "Launching"
	StateRunning         State = "Running"
	StateLaunchFailed    State = "LaunchFailed"
)

// validNext enumerates the legal transitions. Every update-phase failure
// lands on Launching with the prior version; CheckFailed and Declined reach
// Launching the same way an up-to-date check does.
var validNext = map[State][]State{
	StateIdle:            {StateChecking},
	StateChecking:        {StateUpToDate, StateUpdateAvailable, StateCheckFailed},
	StateUpToDate:        {StateLaunching},
	StateCheckFailed:     {StateLaunching},
	StateUpdateAvailable: {StatePrompting},
	StatePrompting:       {StateDeclined, StateAccepted},
	StateDeclined:        {StateLaunching},
	StateAccepted:        {StateDownloading, StateLaunching},
	StateDownloading:     {StateVerifying, StateLaunching},
	StateVerifying:       {StateInstalling, StateLaunching},
	StateInstalling:      {StatePromoting, StateLaunching},
	StatePromoting:       {StateCleaning, StateLaunching},
	StateCleaning:        {StateLaunching},
	StateLaunching:       {StateRunning, StateLaunchFailed},
}

// ValidTransition reports whether moving from one state to the next is legal.
// Running and LaunchFailed are terminal.
func ValidTransition(from, to State) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}
