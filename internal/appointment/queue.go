package appointment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

var (
	ErrNotActive     = errors.New("appointment is not in the active queue")
	ErrQueueConflict = errors.New("queue conflict")
	ErrQueueCorrupt  = errors.New("queue positions violate the contiguity invariant")
)

type queueOpKind int

const (
	opEnqueue queueOpKind = iota
	opDequeue
	opSwapUp
	opSwapDown
	opBulkReorder
)

// queueOp is the single internal command type every mutation funnels
// through, so renumbering has exactly one code path.
type queueOp struct {
	kind       queueOpKind
	id         uuid.UUID
	appt       *Appointment // enqueue only
	orderedIDs []uuid.UUID  // bulk reorder only
}

// Queue is the in-memory active queue of one scope, ordered by position.
// Terminal appointments never enter a Queue; they keep their last active
// position on the record for audit.
type Queue struct {
	scope ScopeKey
	items []*Appointment
}

// NewQueue builds the active queue from all appointments of a scope and
// verifies the positions form exactly 1..N. A violation is reported as
// ErrQueueCorrupt so the caller can run the repair path.
func NewQueue(scope ScopeKey, appts []*Appointment) (*Queue, error) {
	var active []*Appointment
	for _, a := range appts {
		if a.Status.Active() {
			active = append(active, a)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].QueuePosition < active[j].QueuePosition
	})
	for i, a := range active {
		if a.QueuePosition != i+1 {
			return nil, fmt.Errorf("%w: scope %s position %d at rank %d",
				ErrQueueCorrupt, scope, a.QueuePosition, i+1)
		}
	}
	return &Queue{scope: scope, items: active}, nil
}

func (q *Queue) Len() int { return len(q.items) }

// Items returns the active queue in order.
func (q *Queue) Items() []*Appointment {
	out := make([]*Appointment, len(q.items))
	copy(out, q.items)
	return out
}

// Enqueue appends the appointment at the tail of the active queue.
func (q *Queue) Enqueue(a *Appointment) ([]*Appointment, error) {
	return q.apply(queueOp{kind: opEnqueue, appt: a})
}

// Dequeue removes the appointment from active numbering and closes the
// gap. The removed record's own position is left untouched.
func (q *Queue) Dequeue(id uuid.UUID) ([]*Appointment, error) {
	return q.apply(queueOp{kind: opDequeue, id: id})
}

// MoveUp swaps the appointment with its predecessor; no-op when first.
func (q *Queue) MoveUp(id uuid.UUID) ([]*Appointment, error) {
	return q.apply(queueOp{kind: opSwapUp, id: id})
}

// MoveDown swaps the appointment with its successor; no-op when last.
func (q *Queue) MoveDown(id uuid.UUID) ([]*Appointment, error) {
	return q.apply(queueOp{kind: opSwapDown, id: id})
}

// Reorder replaces the whole ordering. orderedIDs must be exactly the
// current active membership, otherwise nothing is applied and
// ErrQueueConflict is returned.
func (q *Queue) Reorder(orderedIDs []uuid.UUID) ([]*Appointment, error) {
	return q.apply(queueOp{kind: opBulkReorder, orderedIDs: orderedIDs})
}

// apply executes one command and renumbers. It returns the appointments
// whose position changed.
func (q *Queue) apply(op queueOp) ([]*Appointment, error) {
	switch op.kind {
	case opEnqueue:
		q.items = append(q.items, op.appt)

	case opDequeue:
		idx := q.indexOf(op.id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotActive, op.id)
		}
		q.items = append(q.items[:idx], q.items[idx+1:]...)

	case opSwapUp, opSwapDown:
		idx := q.indexOf(op.id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotActive, op.id)
		}
		other := idx - 1
		if op.kind == opSwapDown {
			other = idx + 1
		}
		if other < 0 || other >= len(q.items) {
			return nil, nil // already at the edge
		}
		q.items[idx], q.items[other] = q.items[other], q.items[idx]

	case opBulkReorder:
		reordered, err := q.matchMembership(op.orderedIDs)
		if err != nil {
			return nil, err
		}
		q.items = reordered

	default:
		return nil, fmt.Errorf("unknown queue op %d", op.kind)
	}

	return q.renumber(), nil
}

// renumber assigns 1..N in queue order and reports which records changed.
func (q *Queue) renumber() []*Appointment {
	var changed []*Appointment
	for i, a := range q.items {
		if a.QueuePosition != i+1 {
			a.QueuePosition = i + 1
			changed = append(changed, a)
		}
	}
	return changed
}

func (q *Queue) indexOf(id uuid.UUID) int {
	for i, a := range q.items {
		if a.ID == id {
			return i
		}
	}
	return -1
}

// matchMembership validates that orderedIDs is a permutation of the
// current active queue and returns the items in the requested order.
func (q *Queue) matchMembership(orderedIDs []uuid.UUID) ([]*Appointment, error) {
	if len(orderedIDs) != len(q.items) {
		return nil, fmt.Errorf("%w: reorder has %d ids, active queue has %d",
			ErrQueueConflict, len(orderedIDs), len(q.items))
	}
	byID := make(map[uuid.UUID]*Appointment, len(q.items))
	for _, a := range q.items {
		byID[a.ID] = a
	}
	reordered := make([]*Appointment, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		a, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s is not in the active queue", ErrQueueConflict, id)
		}
		delete(byID, id)
		reordered = append(reordered, a)
	}
	return reordered, nil
}
