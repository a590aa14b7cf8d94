// Copyright © 2026 ソニーレベル <C7kali3@gmail.com>
// Run state machine

package pipeline

// State tracks one run through the pipeline. Aborted and MetadataWritten
// are terminal; there is no retry state. A failed run is a completed run,
// and a retry is an entirely new run with its own workspace.
type State int

const (
	StateNotStarted State = iota
	StateVerifying
	StateAborted
	StateStagingEnv
	StatePatching
	StateLaunched
	StateExited
	StateHarvesting
	StateMetadataWritten
)

// String returns the state's label.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateVerifying:
		return "verifying"
	case StateAborted:
		return "aborted"
	case StateStagingEnv:
		return "staging-env"
	case StatePatching:
		return "patching"
	case StateLaunched:
		return "launched"
	case StateExited:
		return "exited"
	case StateHarvesting:
		return "harvesting"
	case StateMetadataWritten:
		return "metadata-written"
	default:
		return "unknown"
	}
}
