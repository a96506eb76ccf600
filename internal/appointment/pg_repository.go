package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of pgxpool.Pool the repository needs; narrowing it to
// an interface lets tests substitute a pgxmock pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool DB
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// NewPgRepositoryWithDB allows injecting mocks for tests.
func NewPgRepositoryWithDB(db DB) *PgRepository {
	return &PgRepository{pool: db}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(&p.ID, &p.Name, &email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(&d.ID, &d.Name, &specialty, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var scopeDate time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.HospitalID,
		&scopeDate,
		&a.Time,
		&a.Type,
		&a.Status,
		&a.Phase,
		&a.QueuePosition,
		&a.Symptoms,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = DateOf(scopeDate)
	return &a, nil
}

const appointmentColumns = `
	id, patient_id, doctor_id, hospital_id, scope_date, visit_time,
	type, status, session_phase, queue_position, symptoms, notes,
	created_at, updated_at`

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetScopeAppointments(ctx context.Context, key ScopeKey) ([]*Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND scope_date = $2
		ORDER BY queue_position, created_at
	`, key.DoctorID, key.Date.Time())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertAppointment(ctx context.Context, a *Appointment) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointments (
			id, patient_id, doctor_id, hospital_id, scope_date, visit_time,
			type, status, session_phase, queue_position, symptoms, notes,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())
	`, a.ID, a.PatientID, a.DoctorID, a.HospitalID, a.Date.Time(), a.Time,
		a.Type, a.Status, a.Phase, a.QueuePosition, a.Symptoms, a.Notes)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// SaveScope commits every mutated record of one engine operation in one
// transaction so a status write and the renumbering it caused can never
// be observed apart.
func (r *PgRepository) SaveScope(ctx context.Context, key ScopeKey, changed []*Appointment) error {
	if len(changed) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin scope tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, a := range changed {
		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2,
			    session_phase = $3,
			    queue_position = $4,
			    notes = $5,
			    updated_at = now()
			WHERE id = $1
		`, a.ID, a.Status, a.Phase, a.QueuePosition, a.Notes)
		if err != nil {
			return fmt.Errorf("update appointment %s: %w", a.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("update appointment %s: %w", a.ID, ErrAppointmentNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit scope tx: %w", err)
	}
	return nil
}

func (r *PgRepository) FindCorruptScopes(ctx context.Context, limit int) ([]ScopeKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT doctor_id, scope_date
		FROM appointments
		WHERE status IN ('scheduled', 'confirmed', 'in-progress')
		GROUP BY doctor_id, scope_date
		HAVING COUNT(*) <> COUNT(DISTINCT queue_position)
		    OR MIN(queue_position) <> 1
		    OR MAX(queue_position) <> COUNT(*)
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScopeKey
	for rows.Next() {
		var doctorID uuid.UUID
		var scopeDate time.Time
		if err := rows.Scan(&doctorID, &scopeDate); err != nil {
			return nil, err
		}
		result = append(result, ScopeKey{DoctorID: doctorID, Date: DateOf(scopeDate)})
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev QueueEvent) error {
	var scopeDate *time.Time
	if ev.ScopeDate != nil {
		t := ev.ScopeDate.Time()
		scopeDate = &t
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO queue_events (event_type, appointment_id, doctor_id, scope_date, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`, ev.EventType, ev.AppointmentID, ev.DoctorID, scopeDate, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert queue event: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
