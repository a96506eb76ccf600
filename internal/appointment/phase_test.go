package appointment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreePhasePolicyAllowsAnything(t *testing.T) {
	p := FreePhasePolicy{}
	assert.True(t, p.Allowed(PhaseDischarge, PhaseWaiting))
	assert.True(t, p.Allowed(PhaseWaiting, PhaseSurgery))
}

func TestOrderedPhasePolicyOnlyMovesForward(t *testing.T) {
	p := OrderedPhasePolicy{}
	assert.True(t, p.Allowed(PhaseWaiting, PhaseDataCollection))
	assert.True(t, p.Allowed(PhaseExamination, PhaseDischarge))
	assert.True(t, p.Allowed(PhaseDiagnosis, PhaseDiagnosis), "staying put is allowed")
	assert.False(t, p.Allowed(PhaseTreatment, PhaseWaiting))
	assert.False(t, p.Allowed(PhaseDischarge, PhaseRecovery))
}

func TestPhasePolicyFromName(t *testing.T) {
	p, err := PhasePolicyFromName("")
	require.NoError(t, err)
	assert.Equal(t, "free", p.Name())

	p, err = PhasePolicyFromName("ordered")
	require.NoError(t, err)
	assert.Equal(t, "ordered", p.Name())

	_, err = PhasePolicyFromName("strict")
	require.Error(t, err)
}

func TestCheckPhaseChangeRequiresConfirmedOrInProgress(t *testing.T) {
	a := &Appointment{Status: StatusScheduled, Phase: PhaseWaiting}
	err := checkPhaseChange(a, PhaseExamination)
	require.ErrorIs(t, err, ErrInvalidTransition)

	a.Status = StatusCompleted
	err = checkPhaseChange(a, PhaseExamination)
	require.ErrorIs(t, err, ErrInvalidTransition)

	a.Status = StatusConfirmed
	require.NoError(t, checkPhaseChange(a, PhaseExamination))

	a.Status = StatusInProgress
	require.NoError(t, checkPhaseChange(a, PhaseDischarge))

	err = checkPhaseChange(a, SessionPhase("triage"))
	require.ErrorIs(t, err, ErrInvalidPhase)
}
