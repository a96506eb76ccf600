package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/appointment-queue/internal/appointment"
)

type CreateAppointmentRequest struct {
	PatientID  string `json:"patient_id"`
	DoctorID   string `json:"doctor_id"`
	HospitalID string `json:"hospital_id"`
	Date       string `json:"date"`
	Time       string `json:"time,omitempty"`
	Type       string `json:"type"`
	Symptoms   string `json:"symptoms,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
}

type SetPhaseRequest struct {
	Phase string `json:"phase"`
}

type ReorderRequest struct {
	OrderedIDs []string `json:"ordered_ids"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	PatientID     uuid.UUID `json:"patient_id"`
	DoctorID      uuid.UUID `json:"doctor_id"`
	HospitalID    uuid.UUID `json:"hospital_id"`
	Date          string    `json:"date"`
	Time          string    `json:"time,omitempty"`
	Type          string    `json:"type"`
	Status        string    `json:"status"`
	SessionPhase  string    `json:"session_phase"`
	QueuePosition int       `json:"queue_position"`
	Symptoms      string    `json:"symptoms,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type QueueResponse struct {
	DoctorID     uuid.UUID             `json:"doctor_id"`
	Date         string                `json:"date"`
	Appointments []AppointmentResponse `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		DoctorID:      a.DoctorID,
		HospitalID:    a.HospitalID,
		Date:          a.Date.String(),
		Time:          a.Time,
		Type:          string(a.Type),
		Status:        string(a.Status),
		SessionPhase:  string(a.Phase),
		QueuePosition: a.QueuePosition,
		Symptoms:      a.Symptoms,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toQueueResponse(key appointment.ScopeKey, appts []*appointment.Appointment) QueueResponse {
	resp := QueueResponse{
		DoctorID:     key.DoctorID,
		Date:         key.Date.String(),
		Appointments: make([]AppointmentResponse, 0, len(appts)),
	}
	for _, a := range appts {
		resp.Appointments = append(resp.Appointments, toAppointmentResponse(a))
	}
	return resp
}
