package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked      Status = "booked"
	StatusRescheduled Status = "rescheduled"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
)

// Valid reports whether s is one of the known appointment statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusRescheduled, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

type ConflictType string

const (
	ConflictProvider ConflictType = "provider"
	ConflictPatient  ConflictType = "patient"
)

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	ProviderID string
	Start      time.Time
	End        time.Time
	Status     Status
	Reason     *string
	Location   *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Range returns the appointment interval.
func (a *Appointment) Range() TimeRange {
	return TimeRange{Start: a.Start, End: a.End}
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// Slot is a free fixed-length window produced by the availability generator.
type Slot struct {
	Start time.Time
	End   time.Time
}

type Availability struct {
	ProviderID  string
	Date        time.Time
	SlotMinutes int
	Slots       []Slot
}

// ListFilter narrows a List call. Nil/empty fields are not applied.
type ListFilter struct {
	PatientID  *uuid.UUID
	ProviderID string
	Status     Status
	Date       *time.Time
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
	Sort       string
	Order      string
}

type ListResult struct {
	Items []Appointment
	Page  int
	Limit int
	Total int
}

// BookRequest carries the fields accepted by Service.Book.
type BookRequest struct {
	PatientID  uuid.UUID
	ProviderID string
	Start      string
	End        string
	Reason     *string
	Location   *string
}

// RescheduleRequest carries the optional fields accepted by Service.Reschedule.
type RescheduleRequest struct {
	Start    *string
	End      *string
	Reason   *string
	Location *string
	Status   *Status
}
