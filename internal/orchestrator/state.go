package orchestrator

import "fmt"

// State is the lifecycle state of one batch.
type State int

const (
	Pending State = iota
	Fetched
	Reviewed
	Built
	Installed
	Failed
	Pruned
	Aborted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fetched:
		return "fetched"
	case Reviewed:
		return "reviewed"
	case Built:
		return "built"
	case Installed:
		return "installed"
	case Failed:
		return "failed"
	case Pruned:
		return "pruned"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	switch s {
	case Installed, Failed, Pruned, Aborted:
		return true
	default:
		return false
	}
}

// isAllowedTransition encodes the batch lifecycle. Repo batches go straight
// from Pending to Installed.
func isAllowedTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	switch to {
	case Failed, Pruned, Aborted:
		return true
	}
	switch from {
	case Pending:
		return to == Fetched || to == Installed
	case Fetched:
		return to == Reviewed
	case Reviewed:
		return to == Built
	case Built:
		return to == Installed
	default:
		return false
	}
}
