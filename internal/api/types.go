package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/ehr-appointment-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	Patient    string  `json:"patient" validate:"required,uuid"`
	ProviderID string  `json:"providerId" validate:"required"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Reason     *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
	Location   *string `json:"location,omitempty" validate:"omitempty,max=255"`
}

// UpdateAppointmentRequest is a partial update; absent fields are left alone.
type UpdateAppointmentRequest struct {
	Start    *string `json:"start,omitempty"`
	End      *string `json:"end,omitempty"`
	Reason   *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
	Location *string `json:"location,omitempty" validate:"omitempty,max=255"`
	Status   *string `json:"status,omitempty" validate:"omitempty,oneof=booked rescheduled completed cancelled"`
}

type AppointmentResponse struct {
	ID         uuid.UUID `json:"id"`
	PatientID  uuid.UUID `json:"patientId"`
	ProviderID string    `json:"providerId"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Status     string    `json:"status"`
	Reason     *string   `json:"reason,omitempty"`
	Location   *string   `json:"location,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type ListAppointmentsResponse struct {
	Items []AppointmentResponse `json:"items"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
	Total int                   `json:"total"`
}

type CancelAppointmentResponse struct {
	Success     bool                `json:"success"`
	Appointment AppointmentResponse `json:"appointment"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	ProviderID string         `json:"providerId"`
	Date       string         `json:"date"`
	SlotMins   int            `json:"slotMins"`
	Slots      []SlotResponse `json:"slots"`
}

type ErrorResponse struct {
	Error         string     `json:"error"`
	Details       string     `json:"details,omitempty"`
	ConflictID    *uuid.UUID `json:"conflictId,omitempty"`
	ConflictStart *time.Time `json:"conflictStart,omitempty"`
	ConflictEnd   *time.Time `json:"conflictEnd,omitempty"`
	ConflictType  string     `json:"conflictType,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         a.ID,
		PatientID:  a.PatientID,
		ProviderID: a.ProviderID,
		Start:      a.Start.UTC(),
		End:        a.End.UTC(),
		Status:     string(a.Status),
		Reason:     a.Reason,
		Location:   a.Location,
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
	}
}

func toAvailabilityResponse(av *appointment.Availability) AvailabilityResponse {
	slots := make([]SlotResponse, 0, len(av.Slots))
	for _, s := range av.Slots {
		slots = append(slots, SlotResponse{Start: s.Start.UTC(), End: s.End.UTC()})
	}
	return AvailabilityResponse{
		ProviderID: av.ProviderID,
		Date:       av.Date.Format("2006-01-02"),
		SlotMins:   av.SlotMinutes,
		Slots:      slots,
	}
}
