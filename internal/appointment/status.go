package appointment

import "fmt"

// statusEdges is the forward DAG of administrative statuses. A terminal
// status has no entry; nothing leaves completed, cancelled or no-show.
// no-show is only ever entered through an explicit mark-no-show action.
var statusEdges = map[Status]map[Status]bool{
	StatusScheduled: {
		StatusConfirmed: true,
		StatusCancelled: true,
		StatusNoShow:    true,
	},
	StatusConfirmed: {
		StatusInProgress: true,
		StatusCancelled:  true,
		StatusNoShow:     true,
	},
	StatusInProgress: {
		StatusCompleted: true,
	},
}

// CanTransition reports whether from -> to is a legal forward edge.
func CanTransition(from, to Status) bool {
	return statusEdges[from][to]
}

func checkTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidStatus, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
