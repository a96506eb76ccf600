package appointment

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testScope() ScopeKey {
	return ScopeKey{DoctorID: uuid.New(), Date: Date("2026-03-02")}
}

func activeAppt(scope ScopeKey, pos int) *Appointment {
	return &Appointment{
		ID:            uuid.New(),
		PatientID:     uuid.New(),
		DoctorID:      scope.DoctorID,
		Date:          scope.Date,
		Type:          TypeConsultation,
		Status:        StatusScheduled,
		Phase:         PhaseWaiting,
		QueuePosition: pos,
		CreatedAt:     time.Now().Add(time.Duration(pos) * time.Minute),
	}
}

func buildScope(t *testing.T, scope ScopeKey, n int) (*Queue, []*Appointment) {
	t.Helper()
	appts := make([]*Appointment, 0, n)
	for i := 1; i <= n; i++ {
		appts = append(appts, activeAppt(scope, i))
	}
	q, err := NewQueue(scope, appts)
	require.NoError(t, err)
	return q, appts
}

func positions(appts []*Appointment) []int {
	out := make([]int, len(appts))
	for i, a := range appts {
		out[i] = a.QueuePosition
	}
	return out
}

func ids(appts []*Appointment) []uuid.UUID {
	out := make([]uuid.UUID, len(appts))
	for i, a := range appts {
		out[i] = a.ID
	}
	return out
}

func assertContiguous(t *testing.T, q *Queue) {
	t.Helper()
	for i, a := range q.Items() {
		require.Equal(t, i+1, a.QueuePosition, "position at rank %d", i)
	}
}

func TestNewQueueRejectsCorruptPositions(t *testing.T) {
	scope := testScope()

	appts := []*Appointment{activeAppt(scope, 1), activeAppt(scope, 3)}
	_, err := NewQueue(scope, appts)
	require.ErrorIs(t, err, ErrQueueCorrupt)

	appts = []*Appointment{activeAppt(scope, 2), activeAppt(scope, 2)}
	_, err = NewQueue(scope, appts)
	require.ErrorIs(t, err, ErrQueueCorrupt)
}

func TestNewQueueIgnoresTerminalPositions(t *testing.T) {
	scope := testScope()
	done := activeAppt(scope, 7)
	done.Status = StatusCompleted

	q, err := NewQueue(scope, []*Appointment{activeAppt(scope, 1), done})
	require.NoError(t, err)
	assert.Equal(t, 1, q.Len())
	// audit position untouched
	assert.Equal(t, 7, done.QueuePosition)
}

func TestEnqueueAppendsAtTail(t *testing.T) {
	scope := testScope()
	q, _ := buildScope(t, scope, 3)

	next := activeAppt(scope, 0)
	changed, err := q.Enqueue(next)
	require.NoError(t, err)

	assert.Equal(t, 4, next.QueuePosition)
	assert.Equal(t, []*Appointment{next}, changed)
	assertContiguous(t, q)
}

func TestDequeueClosesGap(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 4)

	removed := appts[1] // position 2
	changed, err := q.Dequeue(removed.ID)
	require.NoError(t, err)

	// every remaining position above the removed one shifts down by one
	assert.Equal(t, []int{1, 2, 3}, positions(q.Items()))
	assert.Equal(t, []uuid.UUID{appts[0].ID, appts[2].ID, appts[3].ID}, ids(q.Items()))
	assert.Len(t, changed, 2)
	// the removed record keeps its last active position for audit
	assert.Equal(t, 2, removed.QueuePosition)
}

func TestDequeueUnknownID(t *testing.T) {
	scope := testScope()
	q, _ := buildScope(t, scope, 2)

	_, err := q.Dequeue(uuid.New())
	require.ErrorIs(t, err, ErrNotActive)
}

func TestMoveUpThenMoveDownRestoresOrder(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 5)
	before := ids(q.Items())

	x := appts[2]
	_, err := q.MoveUp(x.ID)
	require.NoError(t, err)
	_, err = q.MoveDown(x.ID)
	require.NoError(t, err)

	assert.Equal(t, before, ids(q.Items()))
	assertContiguous(t, q)
}

func TestMoveAtEdgesIsNoOp(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 3)

	changed, err := q.MoveUp(appts[0].ID)
	require.NoError(t, err)
	assert.Empty(t, changed)

	changed, err = q.MoveDown(appts[2].ID)
	require.NoError(t, err)
	assert.Empty(t, changed)

	assert.Equal(t, ids(appts), ids(q.Items()))
}

func TestMoveSwapsAdjacentPositions(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 3)

	_, err := q.MoveDown(appts[0].ID)
	require.NoError(t, err)

	assert.Equal(t, []uuid.UUID{appts[1].ID, appts[0].ID, appts[2].ID}, ids(q.Items()))
	assertContiguous(t, q)
}

func TestReorderAppliesFullOrdering(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 3)

	want := []uuid.UUID{appts[2].ID, appts[0].ID, appts[1].ID}
	_, err := q.Reorder(want)
	require.NoError(t, err)

	assert.Equal(t, want, ids(q.Items()))
	assertContiguous(t, q)
}

func TestReorderIsIdempotent(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 4)

	want := []uuid.UUID{appts[3].ID, appts[1].ID, appts[0].ID, appts[2].ID}
	_, err := q.Reorder(want)
	require.NoError(t, err)
	first := ids(q.Items())

	changed, err := q.Reorder(want)
	require.NoError(t, err)
	assert.Empty(t, changed)
	assert.Equal(t, first, ids(q.Items()))
}

func TestReorderRejectsPartialSets(t *testing.T) {
	scope := testScope()
	q, appts := buildScope(t, scope, 3)
	before := ids(q.Items())

	// missing a member
	_, err := q.Reorder([]uuid.UUID{appts[0].ID, appts[1].ID})
	require.ErrorIs(t, err, ErrQueueConflict)

	// unknown id
	_, err = q.Reorder([]uuid.UUID{appts[0].ID, appts[1].ID, uuid.New()})
	require.ErrorIs(t, err, ErrQueueConflict)

	// duplicate id
	_, err = q.Reorder([]uuid.UUID{appts[0].ID, appts[1].ID, appts[1].ID})
	require.ErrorIs(t, err, ErrQueueConflict)

	// nothing was applied
	assert.Equal(t, before, ids(q.Items()))
	assertContiguous(t, q)
}

// TestRandomOpSequenceKeepsContiguity drives the engine with a random but
// reproducible mix of every mutation and checks positions stay exactly
// 1..N throughout.
func TestRandomOpSequenceKeepsContiguity(t *testing.T) {
	scope := testScope()
	rng := rand.New(rand.NewSource(42))

	q, _ := buildScope(t, scope, 5)

	for step := 0; step < 500; step++ {
		items := q.Items()
		switch rng.Intn(5) {
		case 0:
			_, err := q.Enqueue(activeAppt(scope, 0))
			require.NoError(t, err)
		case 1:
			if len(items) > 0 {
				_, err := q.Dequeue(items[rng.Intn(len(items))].ID)
				require.NoError(t, err)
			}
		case 2:
			if len(items) > 0 {
				_, err := q.MoveUp(items[rng.Intn(len(items))].ID)
				require.NoError(t, err)
			}
		case 3:
			if len(items) > 0 {
				_, err := q.MoveDown(items[rng.Intn(len(items))].ID)
				require.NoError(t, err)
			}
		case 4:
			shuffled := ids(items)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
			_, err := q.Reorder(shuffled)
			require.NoError(t, err)
		}
		assertContiguous(t, q)
	}
}
