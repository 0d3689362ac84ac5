package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ConflictQuery is the scope-union overlap predicate evaluated by the store:
// status <> cancelled AND interval overlaps Range AND
// (provider_id = ProviderID OR patient_id = PatientID) AND id <> ExcludeID.
type ConflictQuery struct {
	Range      TimeRange
	ProviderID string
	PatientID  uuid.UUID
	ExcludeID  *uuid.UUID
}

// PatientDirectory is the external patient store, used only for existence checks.
type PatientDirectory interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// For conflict checks. Returns ErrAppointmentNotFound when nothing overlaps;
	// otherwise the earliest-starting match.
	FindConflict(ctx context.Context, q ConflictQuery) (*Appointment, error)

	// Non-cancelled appointments of a provider overlapping the window, ordered by start.
	ListProviderBusy(ctx context.Context, providerID string, window TimeRange) ([]Appointment, error)

	// Creation and updates. Both return ErrSchedulingConflict when the store
	// itself rejects an overlapping interval.
	CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error)
	// UpdateAppointment writes a only if the stored status still equals expected;
	// otherwise it returns ErrAppointmentNotFound.
	UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error)

	ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
