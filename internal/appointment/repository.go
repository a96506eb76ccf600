package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// GetScopeAppointments returns every appointment of a scope, active
	// and terminal, ordered by queue position then creation time.
	GetScopeAppointments(ctx context.Context, key ScopeKey) ([]*Appointment, error)

	InsertAppointment(ctx context.Context, a *Appointment) error

	// SaveScope persists a set of mutated records of one scope in a
	// single transaction. Status, phase and position writes of one
	// engine operation must all land or none of them.
	SaveScope(ctx context.Context, key ScopeKey, changed []*Appointment) error

	// FindCorruptScopes lists scopes whose active positions are not
	// exactly 1..N; used by the repair worker.
	FindCorruptScopes(ctx context.Context, limit int) ([]ScopeKey, error)

	// Event logging
	InsertEvent(ctx context.Context, ev QueueEvent) error
}
