package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexAppt(status Status, pos int, createdAt time.Time) *Appointment {
	return &Appointment{
		ID:            uuid.New(),
		Status:        status,
		QueuePosition: pos,
		CreatedAt:     createdAt,
	}
}

func TestCanonicalOrderByStatusPriority(t *testing.T) {
	now := time.Now()
	scheduled := indexAppt(StatusScheduled, 0, now)
	inProgress := indexAppt(StatusInProgress, 0, now.Add(time.Hour))
	confirmed := indexAppt(StatusConfirmed, 0, now.Add(2*time.Hour))
	done := indexAppt(StatusCompleted, 1, now)

	got := CanonicalOrder([]*Appointment{scheduled, done, confirmed, inProgress})

	require.Len(t, got, 3)
	assert.Equal(t, inProgress.ID, got[0].ID)
	assert.Equal(t, confirmed.ID, got[1].ID)
	assert.Equal(t, scheduled.ID, got[2].ID)
}

func TestCanonicalOrderTiebreaksByCreationTime(t *testing.T) {
	now := time.Now()
	older := indexAppt(StatusScheduled, 0, now)
	newer := indexAppt(StatusScheduled, 0, now.Add(time.Minute))

	got := CanonicalOrder([]*Appointment{newer, older})
	require.Len(t, got, 2)
	assert.Equal(t, older.ID, got[0].ID)
	assert.Equal(t, newer.ID, got[1].ID)
}

func TestRepairRenumbersGappedAndDuplicatedPositions(t *testing.T) {
	now := time.Now()
	a := indexAppt(StatusInProgress, 4, now)
	b := indexAppt(StatusScheduled, 4, now.Add(time.Minute))
	c := indexAppt(StatusConfirmed, 0, now.Add(2*time.Minute))
	terminal := indexAppt(StatusCancelled, 9, now)

	changed := Repair([]*Appointment{a, b, c, terminal})

	assert.Equal(t, 1, a.QueuePosition)
	assert.Equal(t, 2, c.QueuePosition)
	assert.Equal(t, 3, b.QueuePosition)
	assert.Equal(t, 9, terminal.QueuePosition, "terminal positions are never repaired")
	assert.Len(t, changed, 3)
}

func TestRepairIsStableWhenAlreadyCanonical(t *testing.T) {
	now := time.Now()
	a := indexAppt(StatusInProgress, 1, now)
	b := indexAppt(StatusConfirmed, 2, now.Add(time.Minute))

	changed := Repair([]*Appointment{a, b})
	assert.Empty(t, changed)
}

func TestNeedsRepair(t *testing.T) {
	now := time.Now()

	ok := []*Appointment{
		indexAppt(StatusScheduled, 1, now),
		indexAppt(StatusScheduled, 2, now),
		indexAppt(StatusCancelled, 2, now), // terminal duplicate is fine
	}
	assert.False(t, NeedsRepair(ok))

	gapped := []*Appointment{
		indexAppt(StatusScheduled, 1, now),
		indexAppt(StatusScheduled, 3, now),
	}
	assert.True(t, NeedsRepair(gapped))

	duplicated := []*Appointment{
		indexAppt(StatusScheduled, 1, now),
		indexAppt(StatusScheduled, 1, now),
	}
	assert.True(t, NeedsRepair(duplicated))

	missing := []*Appointment{
		indexAppt(StatusScheduled, 0, now),
	}
	assert.True(t, NeedsRepair(missing))
}
