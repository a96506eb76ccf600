package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/appointment-queue/internal/config"
	"github.com/clinicore/appointment-queue/internal/observability/metrics"
	redisclient "github.com/clinicore/appointment-queue/internal/redis"
	"github.com/clinicore/appointment-queue/pkg/logging"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventStatusChanged      = "STATUS_CHANGED"
	EventPhaseChanged       = "PHASE_CHANGED"
	EventQueueMoved         = "QUEUE_MOVED"
	EventQueueReordered     = "QUEUE_REORDERED"
	EventQueueRepaired      = "QUEUE_REPAIRED"
)

var (
	ErrInvalidStatus     = errors.New("invalid status")
	ErrInvalidPhase      = errors.New("invalid session phase")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrInvalidDraft      = errors.New("invalid appointment draft")
	ErrNotAuthorized     = errors.New("not authorized")
	ErrScopeBusy         = errors.New("scope is busy, please retry")
)

type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RoleOperator Role = "operator"
)

// Actor is the authenticated caller on whose behalf a mutation runs.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// CreateDraft is the caller-supplied part of a new appointment.
type CreateDraft struct {
	PatientID  uuid.UUID
	DoctorID   uuid.UUID
	HospitalID uuid.UUID
	Date       Date
	Time       string
	Type       AppointmentType
	Symptoms   string
	Notes      string
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	policy  PhasePolicy
	cfg     config.Config
	log     *logging.Logger
	metrics *metrics.QueueMetrics
}

func NewService(repo Repository, locker redisclient.Locker, policy PhasePolicy, cfg config.Config, log *logging.Logger, m *metrics.QueueMetrics) *Service {
	if policy == nil {
		policy = FreePhasePolicy{}
	}
	if log == nil {
		log = logging.Default()
	}
	return &Service{
		repo:    repo,
		locker:  locker,
		policy:  policy,
		cfg:     cfg,
		log:     log,
		metrics: m,
	}
}

// Create books an appointment at the tail of its scope's active queue.
func (s *Service) Create(ctx context.Context, actor Actor, draft CreateDraft) (created *Appointment, err error) {
	defer s.observe("create", time.Now(), &err)

	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	if actor.Role == RolePatient && actor.UserID != draft.PatientID {
		return nil, fmt.Errorf("%w: patients can only book for themselves", ErrNotAuthorized)
	}

	if _, err := s.repo.GetPatientByID(ctx, draft.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if _, err := s.repo.GetDoctorByID(ctx, draft.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	key := ScopeKey{DoctorID: draft.DoctorID, Date: draft.Date}

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err := s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return fmt.Errorf("load scope: %w", err)
		}
		repaired := s.repairIfNeeded(lockCtx, key, appts)

		queue, err := NewQueue(key, appts)
		if err != nil {
			return err
		}

		appt := &Appointment{
			ID:         uuid.New(),
			PatientID:  draft.PatientID,
			DoctorID:   draft.DoctorID,
			HospitalID: draft.HospitalID,
			Date:       draft.Date,
			Time:       draft.Time,
			Type:       draft.Type,
			Status:     StatusScheduled,
			Phase:      PhaseWaiting,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if _, err := queue.Enqueue(appt); err != nil {
			return err
		}

		if err := s.repo.InsertAppointment(lockCtx, appt); err != nil {
			return err
		}
		if err := s.repo.SaveScope(lockCtx, key, repaired); err != nil {
			return err
		}

		created = appt
		s.logEvent(lockCtx, EventAppointmentCreated, appt, map[string]any{
			"queue_position": appt.QueuePosition,
			"type":           string(appt.Type),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// SetStatus applies an administrative status transition. A transition
// into a terminal state removes the appointment from its scope's active
// numbering in the same transaction.
func (s *Service) SetStatus(ctx context.Context, actor Actor, id uuid.UUID, target Status) (updated *Appointment, err error) {
	defer s.observe("set_status", time.Now(), &err)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeStatusChange(actor, appt, target); err != nil {
		return nil, err
	}

	// Re-cancelling is a no-op, not an error.
	if target == StatusCancelled && appt.Status == StatusCancelled {
		return appt, nil
	}

	if err := checkTransition(appt.Status, target); err != nil {
		return nil, err
	}

	key := appt.Scope()

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err := s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return fmt.Errorf("load scope: %w", err)
		}
		fresh := findByID(appts, id)
		if fresh == nil {
			return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
		}

		// The record may have moved while we waited for the lock.
		if target == StatusCancelled && fresh.Status == StatusCancelled {
			updated = fresh
			return nil
		}
		if err := checkTransition(fresh.Status, target); err != nil {
			return err
		}

		changed := s.repairIfNeeded(lockCtx, key, appts)
		from := fresh.Status

		if target.Terminal() {
			queue, err := NewQueue(key, appts)
			if err != nil {
				return err
			}
			renumbered, err := queue.Dequeue(id)
			if err != nil {
				return err
			}
			changed = mergeChanged(changed, renumbered)
		}

		fresh.Status = target
		changed = mergeChanged(changed, []*Appointment{fresh})

		if err := s.repo.SaveScope(lockCtx, key, changed); err != nil {
			return err
		}

		updated = fresh
		s.logEvent(lockCtx, EventStatusChanged, fresh, map[string]any{
			"from": string(from),
			"to":   string(target),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Cancel is sugar for a transition to cancelled.
func (s *Service) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, actor, id, StatusCancelled)
}

// MarkNoShow records that the patient did not turn up. It is an explicit
// staff action, never applied automatically.
func (s *Service) MarkNoShow(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.SetStatus(ctx, actor, id, StatusNoShow)
}

// SetSessionPhase moves the clinical sub-state of a confirmed or
// in-progress visit. Which moves are legal is decided by the configured
// phase policy.
func (s *Service) SetSessionPhase(ctx context.Context, actor Actor, id uuid.UUID, target SessionPhase) (updated *Appointment, err error) {
	defer s.observe("set_phase", time.Now(), &err)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeScope(actor, appt.DoctorID); err != nil {
		return nil, err
	}
	if err := checkPhaseChange(appt, target); err != nil {
		return nil, err
	}
	if !s.policy.Allowed(appt.Phase, target) {
		return nil, fmt.Errorf("%w: %s phase policy forbids %s -> %s",
			ErrInvalidTransition, s.policy.Name(), appt.Phase, target)
	}

	key := appt.Scope()

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err := s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return fmt.Errorf("load scope: %w", err)
		}
		fresh := findByID(appts, id)
		if fresh == nil {
			return fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
		}

		// The visit may have changed state while we waited for the lock;
		// everything is re-checked against the fresh record so the save
		// can never write back a stale status or position.
		if err := checkPhaseChange(fresh, target); err != nil {
			return err
		}
		if !s.policy.Allowed(fresh.Phase, target) {
			return fmt.Errorf("%w: %s phase policy forbids %s -> %s",
				ErrInvalidTransition, s.policy.Name(), fresh.Phase, target)
		}

		changed := s.repairIfNeeded(lockCtx, key, appts)
		from := fresh.Phase
		fresh.Phase = target
		changed = mergeChanged(changed, []*Appointment{fresh})

		if err := s.repo.SaveScope(lockCtx, key, changed); err != nil {
			return err
		}

		updated = fresh
		s.logEvent(lockCtx, EventPhaseChanged, fresh, map[string]any{
			"from": string(from),
			"to":   string(target),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// MoveUp swaps the appointment with the one ahead of it.
func (s *Service) MoveUp(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.move(ctx, actor, id, "up")
}

// MoveDown swaps the appointment with the one behind it.
func (s *Service) MoveDown(ctx context.Context, actor Actor, id uuid.UUID) (*Appointment, error) {
	return s.move(ctx, actor, id, "down")
}

func (s *Service) move(ctx context.Context, actor Actor, id uuid.UUID, direction string) (moved *Appointment, err error) {
	defer s.observe("move_"+direction, time.Now(), &err)

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeScope(actor, appt.DoctorID); err != nil {
		return nil, err
	}

	key := appt.Scope()

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err := s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return fmt.Errorf("load scope: %w", err)
		}
		changed := s.repairIfNeeded(lockCtx, key, appts)

		queue, err := NewQueue(key, appts)
		if err != nil {
			return err
		}

		var swapped []*Appointment
		if direction == "up" {
			swapped, err = queue.MoveUp(id)
		} else {
			swapped, err = queue.MoveDown(id)
		}
		if err != nil {
			return err
		}
		changed = mergeChanged(changed, swapped)

		if err := s.repo.SaveScope(lockCtx, key, changed); err != nil {
			return err
		}

		moved = findByID(appts, id)
		if len(swapped) > 0 {
			s.logEvent(lockCtx, EventQueueMoved, moved, map[string]any{
				"direction":      direction,
				"queue_position": moved.QueuePosition,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return moved, nil
}

// Reorder replaces the full ordering of a scope's active queue. The id
// list must match the current active membership exactly; a stale client
// view is rejected rather than partially applied.
func (s *Service) Reorder(ctx context.Context, actor Actor, key ScopeKey, orderedIDs []uuid.UUID) (result []*Appointment, err error) {
	defer s.observe("reorder", time.Now(), &err)

	if err := s.authorizeScope(actor, key.DoctorID); err != nil {
		return nil, err
	}

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err := s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return fmt.Errorf("load scope: %w", err)
		}
		changed := s.repairIfNeeded(lockCtx, key, appts)

		queue, err := NewQueue(key, appts)
		if err != nil {
			return err
		}
		reordered, err := queue.Reorder(orderedIDs)
		if err != nil {
			return err
		}
		changed = mergeChanged(changed, reordered)

		if err := s.repo.SaveScope(lockCtx, key, changed); err != nil {
			return err
		}

		result = queue.Items()
		s.logEvent(lockCtx, EventQueueReordered, nil, map[string]any{
			"doctor_id": key.DoctorID.String(),
			"date":      key.Date.String(),
			"size":      len(result),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// Get returns one appointment by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// GetScope returns every appointment of a doctor-day, repairing the
// active numbering first if it is corrupt.
func (s *Service) GetScope(ctx context.Context, key ScopeKey) ([]*Appointment, error) {
	appts, err := s.repo.GetScopeAppointments(ctx, key)
	if err != nil {
		return nil, err
	}
	if !NeedsRepair(appts) {
		return appts, nil
	}

	err = s.withScope(ctx, key, func(lockCtx context.Context) error {
		appts, err = s.repo.GetScopeAppointments(lockCtx, key)
		if err != nil {
			return err
		}
		changed := s.repairIfNeeded(lockCtx, key, appts)
		return s.repo.SaveScope(lockCtx, key, changed)
	})
	if err != nil {
		return nil, err
	}
	return appts, nil
}

// RepairScopes scans for scopes violating the contiguity invariant and
// renumbers them; called periodically by the repair worker.
func (s *Service) RepairScopes(ctx context.Context, limit int) (int, error) {
	keys, err := s.repo.FindCorruptScopes(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("find corrupt scopes: %w", err)
	}

	repaired := 0
	for _, key := range keys {
		err := s.withScope(ctx, key, func(lockCtx context.Context) error {
			appts, err := s.repo.GetScopeAppointments(lockCtx, key)
			if err != nil {
				return err
			}
			changed := s.repairIfNeeded(lockCtx, key, appts)
			return s.repo.SaveScope(lockCtx, key, changed)
		})
		if err != nil {
			s.log.Warn("scope repair failed", "scope", key.String(), "error", err)
			continue
		}
		repaired++
	}

	return repaired, nil
}

// withScope serializes a scope mutation behind the distributed lock,
// retrying contention a bounded number of times. A retry only ever
// happens when the lock was not acquired, so the critical section can
// never run twice.
func (s *Service) withScope(ctx context.Context, key ScopeKey, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.QueueOpTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		err := s.locker.WithScopeLock(opCtx, key.String(), fn)
		if !errors.Is(err, redisclient.ErrLockNotAcquired) {
			return err
		}
		if attempt >= s.cfg.LockRetries {
			return fmt.Errorf("%w: scope %s", ErrScopeBusy, key)
		}
		select {
		case <-opCtx.Done():
			return fmt.Errorf("%w: %v", ErrScopeBusy, opCtx.Err())
		case <-time.After(s.cfg.LockRetryDelay):
		}
	}
}

// repairIfNeeded rebuilds a corrupt scope in place and returns the
// renumbered records; the caller persists them with its own changes.
func (s *Service) repairIfNeeded(ctx context.Context, key ScopeKey, appts []*Appointment) []*Appointment {
	if !NeedsRepair(appts) {
		return nil
	}
	changed := Repair(appts)
	s.metrics.ObserveRepair()
	s.log.Warn("repaired corrupt queue scope", "scope", key.String(), "renumbered", len(changed))
	s.logEvent(ctx, EventQueueRepaired, nil, map[string]any{
		"doctor_id":  key.DoctorID.String(),
		"date":       key.Date.String(),
		"renumbered": len(changed),
	})
	return changed
}

func (s *Service) authorizeScope(actor Actor, doctorID uuid.UUID) error {
	if actor.Role == RoleOperator {
		return nil
	}
	if actor.Role == RoleDoctor && actor.UserID == doctorID {
		return nil
	}
	return fmt.Errorf("%w: only the scope's doctor or an operator may do this", ErrNotAuthorized)
}

func (s *Service) authorizeStatusChange(actor Actor, appt *Appointment, target Status) error {
	if actor.Role == RolePatient {
		if target != StatusCancelled {
			return fmt.Errorf("%w: patients may only cancel", ErrNotAuthorized)
		}
		if actor.UserID != appt.PatientID {
			return fmt.Errorf("%w: patients may only cancel their own appointment", ErrNotAuthorized)
		}
		return nil
	}
	return s.authorizeScope(actor, appt.DoctorID)
}

func validateDraft(d CreateDraft) error {
	if d.PatientID == uuid.Nil || d.DoctorID == uuid.Nil {
		return fmt.Errorf("%w: patient and doctor are required", ErrInvalidDraft)
	}
	if d.Date == "" {
		return fmt.Errorf("%w: date is required", ErrInvalidDraft)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: unknown appointment type %q", ErrInvalidDraft, d.Type)
	}
	if d.Time != "" {
		if _, err := time.Parse("15:04", d.Time); err != nil {
			return fmt.Errorf("%w: time must be HH:MM", ErrInvalidDraft)
		}
	}
	return nil
}

func findByID(appts []*Appointment, id uuid.UUID) *Appointment {
	for _, a := range appts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

// mergeChanged unions changed-record sets by id, keeping first insertion
// order, so one record is written once per scope transaction.
func mergeChanged(base, extra []*Appointment) []*Appointment {
	seen := make(map[uuid.UUID]bool, len(base))
	for _, a := range base {
		seen[a.ID] = true
	}
	for _, a := range extra {
		if !seen[a.ID] {
			seen[a.ID] = true
			base = append(base, a)
		}
	}
	return base
}

func (s *Service) observe(op string, start time.Time, err *error) {
	outcome := "success"
	switch {
	case *err == nil:
	case errors.Is(*err, ErrQueueConflict), errors.Is(*err, ErrScopeBusy):
		outcome = "conflict"
	case errors.Is(*err, ErrInvalidTransition), errors.Is(*err, ErrNotAuthorized),
		errors.Is(*err, ErrInvalidDraft), errors.Is(*err, ErrInvalidStatus),
		errors.Is(*err, ErrInvalidPhase), errors.Is(*err, ErrNotActive),
		errors.Is(*err, ErrAppointmentNotFound), errors.Is(*err, ErrPatientNotFound),
		errors.Is(*err, ErrDoctorNotFound):
		outcome = "rejected"
	default:
		outcome = "error"
	}
	s.metrics.ObserveOp(op, outcome, time.Since(start).Seconds())
}

func (s *Service) logEvent(ctx context.Context, eventType string, appt *Appointment, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("marshal event payload failed", "event", eventType, "error", err)
		data = nil
	}

	ev := QueueEvent{
		EventType: eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}
	if appt != nil {
		id := appt.ID
		doctorID := appt.DoctorID
		date := appt.Date
		ev.AppointmentID = &id
		ev.DoctorID = &doctorID
		ev.ScopeDate = &date
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn("insert queue event failed", "event", eventType, "error", err)
	}
}
