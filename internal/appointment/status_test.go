package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusDAG(t *testing.T) {
	allowed := []struct {
		from, to Status
	}{
		{StatusScheduled, StatusConfirmed},
		{StatusScheduled, StatusCancelled},
		{StatusScheduled, StatusNoShow},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCancelled},
		{StatusConfirmed, StatusNoShow},
		{StatusInProgress, StatusCompleted},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	forbidden := []struct {
		from, to Status
	}{
		{StatusScheduled, StatusInProgress},
		{StatusScheduled, StatusCompleted},
		{StatusConfirmed, StatusCompleted},
		{StatusInProgress, StatusCancelled},
		{StatusInProgress, StatusNoShow},
		{StatusCompleted, StatusScheduled},
		{StatusCancelled, StatusScheduled},
		{StatusCancelled, StatusConfirmed},
		{StatusNoShow, StatusScheduled},
		{StatusCompleted, StatusInProgress},
	}
	for _, tc := range forbidden {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	all := []Status{
		StatusScheduled, StatusConfirmed, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow,
	}
	for _, terminal := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		for _, to := range all {
			assert.False(t, CanTransition(terminal, to), "%s must not leave terminal state", terminal)
		}
	}
}

func TestCheckTransitionErrors(t *testing.T) {
	err := checkTransition(StatusCompleted, StatusScheduled)
	require.ErrorIs(t, err, ErrInvalidTransition)

	err = checkTransition(StatusScheduled, Status("archived"))
	require.ErrorIs(t, err, ErrInvalidStatus)

	require.NoError(t, checkTransition(StatusScheduled, StatusConfirmed))
}

func TestStatusClassification(t *testing.T) {
	for _, s := range []Status{StatusScheduled, StatusConfirmed, StatusInProgress} {
		assert.True(t, s.Active())
		assert.False(t, s.Terminal())
	}
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, s.Terminal())
		assert.False(t, s.Active())
	}
	assert.False(t, Status("archived").Valid())
}
