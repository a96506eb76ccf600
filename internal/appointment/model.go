package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

// Active reports whether the status participates in queue numbering.
func (s Status) Active() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress:
		return true
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	return s.Active() || s.Terminal()
}

type SessionPhase string

const (
	PhaseWaiting           SessionPhase = "waiting"
	PhaseDataCollection    SessionPhase = "data-collection"
	PhaseInitialAssessment SessionPhase = "initial-assessment"
	PhaseExamination       SessionPhase = "examination"
	PhaseDiagnosis         SessionPhase = "diagnosis"
	PhaseTreatment         SessionPhase = "treatment"
	PhaseSurgery           SessionPhase = "surgery"
	PhaseRecovery          SessionPhase = "recovery"
	PhaseFollowUp          SessionPhase = "follow-up"
	PhaseDischarge         SessionPhase = "discharge"
)

// phaseRank is the clinical ordering used by the ordered phase policy.
var phaseRank = map[SessionPhase]int{
	PhaseWaiting:           0,
	PhaseDataCollection:    1,
	PhaseInitialAssessment: 2,
	PhaseExamination:       3,
	PhaseDiagnosis:         4,
	PhaseTreatment:         5,
	PhaseSurgery:           6,
	PhaseRecovery:          7,
	PhaseFollowUp:          8,
	PhaseDischarge:         9,
}

func (p SessionPhase) Valid() bool {
	_, ok := phaseRank[p]
	return ok
}

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeFollowUp     AppointmentType = "follow-up"
	TypeEmergency    AppointmentType = "emergency"
	TypeRoutine      AppointmentType = "routine"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeRoutine:
		return true
	}
	return false
}

const dateLayout = "2006-01-02"

// Date is a calendar day without time-of-day; together with a doctor it
// identifies a queue scope.
type Date string

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return "", fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date(t.Format(dateLayout)), nil
}

func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) Time() time.Time {
	t, _ := time.Parse(dateLayout, string(d))
	return t
}

// ScopeKey identifies one doctor's queue for one calendar day.
type ScopeKey struct {
	DoctorID uuid.UUID
	Date     Date
}

func (k ScopeKey) String() string {
	return fmt.Sprintf("%s:%s", k.DoctorID, k.Date)
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	HospitalID uuid.UUID
	Date       Date
	Time       string // HH:MM, informational
	Type       AppointmentType
	Status     Status
	Phase      SessionPhase

	// QueuePosition is meaningful while Status is active; a terminal
	// appointment keeps its last active position for audit.
	QueuePosition int

	Symptoms  string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a *Appointment) Scope() ScopeKey {
	return ScopeKey{DoctorID: a.DoctorID, Date: a.Date}
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type QueueEvent struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	DoctorID      *uuid.UUID
	ScopeDate     *Date
	Payload       []byte
	CreatedAt     time.Time
}
