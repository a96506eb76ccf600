package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/appointment-queue/internal/appointment"
)

// QueueService is the engine surface the handlers need; the concrete
// implementation is appointment.Service.
type QueueService interface {
	Create(ctx context.Context, actor appointment.Actor, draft appointment.CreateDraft) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	GetScope(ctx context.Context, key appointment.ScopeKey) ([]*appointment.Appointment, error)
	SetStatus(ctx context.Context, actor appointment.Actor, id uuid.UUID, target appointment.Status) (*appointment.Appointment, error)
	SetSessionPhase(ctx context.Context, actor appointment.Actor, id uuid.UUID, target appointment.SessionPhase) (*appointment.Appointment, error)
	MoveUp(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	MoveDown(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	Reorder(ctx context.Context, actor appointment.Actor, key appointment.ScopeKey, orderedIDs []uuid.UUID) ([]*appointment.Appointment, error)
	Cancel(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
	MarkNoShow(ctx context.Context, actor appointment.Actor, id uuid.UUID) (*appointment.Appointment, error)
}

func createAppointmentHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		var hospitalID uuid.UUID
		if req.HospitalID != "" {
			hospitalID, err = uuid.Parse(req.HospitalID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_hospital_id", "hospital_id must be a valid UUID")
				return
			}
		}
		date, err := appointment.ParseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		appt, err := svc.Create(r.Context(), actor, appointment.CreateDraft{
			PatientID:  patientID,
			DoctorID:   doctorID,
			HospitalID: hospitalID,
			Date:       date,
			Time:       req.Time,
			Type:       appointment.AppointmentType(req.Type),
			Symptoms:   req.Symptoms,
			Notes:      req.Notes,
		})
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getQueueHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseScopeParams(w, r)
		if !ok {
			return
		}

		appts, err := svc.GetScope(r.Context(), key)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(key, appts))
	}
}

func setStatusHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req SetStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.SetStatus(r.Context(), actor, id, appointment.Status(req.Status))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func setPhaseHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req SetPhaseRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.SetSessionPhase(r.Context(), actor, id, appointment.SessionPhase(req.Phase))
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func moveHandler(svc QueueService, up bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var appt *appointment.Appointment
		var err error
		if up {
			appt, err = svc.MoveUp(r.Context(), actor, id)
		} else {
			appt, err = svc.MoveDown(r.Context(), actor, id)
		}
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		appt, err := svc.Cancel(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func noShowHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		appt, err := svc.MarkNoShow(r.Context(), actor, id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func reorderQueueHandler(svc QueueService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActor(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
			return
		}
		key, ok := parseScopeParams(w, r)
		if !ok {
			return
		}

		var req ReorderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		orderedIDs := make([]uuid.UUID, 0, len(req.OrderedIDs))
		for _, raw := range req.OrderedIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_ordered_ids", "every id must be a valid UUID")
				return
			}
			orderedIDs = append(orderedIDs, id)
		}

		appts, err := svc.Reorder(r.Context(), actor, key, orderedIDs)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toQueueResponse(key, appts))
	}
}

// Param helpers

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func parseScopeParams(w http.ResponseWriter, r *http.Request) (appointment.ScopeKey, bool) {
	doctorID, err := uuid.Parse(chi.URLParam(r, "doctorID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorID must be a valid UUID")
		return appointment.ScopeKey{}, false
	}
	date, err := appointment.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return appointment.ScopeKey{}, false
	}
	return appointment.ScopeKey{DoctorID: doctorID, Date: date}, true
}

func actorAndID(w http.ResponseWriter, r *http.Request) (appointment.Actor, uuid.UUID, bool) {
	actor, ok := GetActor(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "no actor in context")
		return appointment.Actor{}, uuid.Nil, false
	}
	id, ok := parseIDParam(w, r)
	if !ok {
		return appointment.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}

// handleServiceError maps engine errors onto the HTTP error taxonomy.
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotActive):
		writeError(w, http.StatusNotFound, "appointment_not_active", err.Error())
	case errors.Is(err, appointment.ErrInvalidDraft),
		errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, appointment.ErrInvalidPhase):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrNotAuthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, appointment.ErrQueueConflict):
		writeError(w, http.StatusConflict, "queue_conflict", err.Error())
	case errors.Is(err, appointment.ErrScopeBusy):
		writeError(w, http.StatusConflict, "scope_busy", "queue is being modified, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
