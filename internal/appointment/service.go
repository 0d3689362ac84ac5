package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/events"
	redisclient "github.com/hackgods/ehr-appointment-scheduling/internal/redis"
)

const (
	EventAppointmentBooked      = "APPOINTMENT_BOOKED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentCancelled   = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted   = "APPOINTMENT_COMPLETED"
)

var (
	ErrValidation              = errors.New("validation error")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrSchedulingBusy          = errors.New("provider or patient schedule is being modified, please retry")
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

var sortableFields = map[string]bool{
	"start":     true,
	"end":       true,
	"createdAt": true,
	"updatedAt": true,
	"status":    true,
}

// Service is the only writer of appointments. Book and Reschedule serialize
// their conflict check and write under per-provider and per-patient locks.
type Service struct {
	repo         Repository
	patients     PatientDirectory
	locker       redisclient.Locker
	publisher    events.Publisher
	conflicts    *ConflictDetector
	availability *AvailabilityGenerator
	logger       zerolog.Logger
}

func NewService(repo Repository, patients PatientDirectory, locker redisclient.Locker, publisher events.Publisher, logger zerolog.Logger) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		locker:       locker,
		publisher:    publisher,
		conflicts:    NewConflictDetector(repo),
		availability: NewAvailabilityGenerator(repo),
		logger:       logger.With().Str("component", "appointment_service").Logger(),
	}
}

// Book creates a new appointment in status booked.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	providerID := strings.TrimSpace(req.ProviderID)
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: invalid patient id", ErrValidation)
	}
	if providerID == "" {
		return nil, fmt.Errorf("%w: providerId is required", ErrValidation)
	}

	if _, err := s.patients.GetPatientByID(ctx, req.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) || errors.Is(err, ErrPatientDirectoryUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	rng, err := ParseTimeRange(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	var created *Appointment
	err = s.withSchedulingLocks(ctx, providerID, req.PatientID, func(lockCtx context.Context) error {
		// Inside the critical section nobody else can write to either scope
		if err := s.conflicts.Check(lockCtx, rng, providerID, req.PatientID, nil); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, &Appointment{
			ID:         uuid.New(),
			PatientID:  req.PatientID,
			ProviderID: providerID,
			Start:      rng.Start,
			End:        rng.End,
			Status:     StatusBooked,
			Reason:     trimmed(req.Reason),
			Location:   trimmed(req.Location),
		})
		if err != nil {
			if errors.Is(err, ErrSchedulingConflict) {
				return s.explainConflict(lockCtx, rng, providerID, req.PatientID, nil)
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, created, EventAppointmentBooked, nil)
	s.logger.Info().
		Str("appointment_id", created.ID.String()).
		Str("provider_id", created.ProviderID).
		Str("range", created.Range().String()).
		Msg("appointment booked")

	return created, nil
}

// Reschedule moves and/or updates an existing appointment.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req RescheduleRequest) (*Appointment, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, *req.Status)
	}

	req.Start, req.End = presentTime(req.Start), presentTime(req.End)

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		previous    Appointment
		updated     *Appointment
		timeChanged bool
	)
	err = s.withSchedulingLocks(ctx, current.ProviderID, current.PatientID, func(lockCtx context.Context) error {
		// Re-read inside the lock so the plan is built on the latest state
		cur, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		previous = *cur

		next, changed, err := planReschedule(cur, req)
		if err != nil {
			return err
		}
		timeChanged = changed

		timesGiven := req.Start != nil || req.End != nil
		if timesGiven && next.Status != StatusCancelled {
			if err := s.conflicts.Check(lockCtx, next.Range(), next.ProviderID, next.PatientID, &next.ID); err != nil {
				return err
			}
		}

		res, err := s.repo.UpdateAppointment(lockCtx, next, cur.Status)
		if err != nil {
			switch {
			case errors.Is(err, ErrSchedulingConflict):
				return s.explainConflict(lockCtx, next.Range(), next.ProviderID, next.PatientID, &next.ID)
			case errors.Is(err, ErrAppointmentNotFound):
				return fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
			}
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	event := EventAppointmentUpdated
	switch {
	case updated.Status == StatusCancelled && previous.Status != StatusCancelled:
		event = EventAppointmentCancelled
	case updated.Status == StatusCompleted && previous.Status != StatusCompleted:
		event = EventAppointmentCompleted
	case timeChanged:
		event = EventAppointmentRescheduled
	}
	s.logEvent(ctx, updated, event, map[string]any{
		"previous_start":  previous.Start,
		"previous_end":    previous.End,
		"previous_status": previous.Status,
	})

	return updated, nil
}

// planReschedule applies req to a copy of cur, enforcing the state machine.
// It reports whether the interval changed.
func planReschedule(cur *Appointment, req RescheduleRequest) (*Appointment, bool, error) {
	if cur.Status == StatusCancelled {
		return nil, false, fmt.Errorf("%w: appointment is cancelled", ErrInvalidStatusTransition)
	}

	next := *cur
	if req.Start != nil || req.End != nil {
		if cur.Status == StatusCompleted {
			return nil, false, fmt.Errorf("%w: appointment is completed", ErrInvalidStatusTransition)
		}
		start, end := cur.Start, cur.End
		if req.Start != nil {
			t, err := ParseInstant(*req.Start)
			if err != nil {
				return nil, false, fmt.Errorf("%w: start and end must be valid ISO datetimes", ErrInvalidRange)
			}
			start = t
		}
		if req.End != nil {
			t, err := ParseInstant(*req.End)
			if err != nil {
				return nil, false, fmt.Errorf("%w: start and end must be valid ISO datetimes", ErrInvalidRange)
			}
			end = t
		}
		rng, err := NewTimeRange(start, end)
		if err != nil {
			return nil, false, err
		}
		next.Start, next.End = rng.Start, rng.End
	}
	changed := !next.Start.Equal(cur.Start) || !next.End.Equal(cur.End)

	if req.Reason != nil {
		next.Reason = trimmed(req.Reason)
	}
	if req.Location != nil {
		next.Location = trimmed(req.Location)
	}

	if req.Status != nil {
		if err := checkTransition(cur.Status, *req.Status); err != nil {
			return nil, false, err
		}
		next.Status = *req.Status
	}
	if changed && (req.Status == nil || !req.Status.Terminal()) {
		next.Status = StatusRescheduled
	}

	return &next, changed, nil
}

func checkTransition(from, to Status) error {
	if from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	switch to {
	case StatusRescheduled, StatusCancelled, StatusCompleted:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
}

// Cancel moves an appointment to cancelled. Cancelling twice is a no-op.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, EventAppointmentCancelled)
}

// Complete moves an appointment to completed. Completing twice is a no-op.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, EventAppointmentCompleted)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, event string) (*Appointment, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	var (
		updated *Appointment
		noop    bool
	)
	err = s.withSchedulingLocks(ctx, current.ProviderID, current.PatientID, func(lockCtx context.Context) error {
		cur, err := s.repo.GetAppointmentByID(lockCtx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if cur.Status == to {
			updated, noop = cur, true
			return nil
		}
		if err := checkTransition(cur.Status, to); err != nil {
			return err
		}

		next := *cur
		next.Status = to
		res, err := s.repo.UpdateAppointment(lockCtx, &next, cur.Status)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("%w: appointment changed concurrently", ErrInvalidStatusTransition)
			}
			return fmt.Errorf("%s appointment: %w", to, err)
		}
		updated = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !noop {
		s.logEvent(ctx, updated, event, map[string]any{"previous_status": current.Status})
	}
	return updated, nil
}

// Get retrieves an appointment by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// List returns one page of appointments matching f, ordered deterministically.
func (s *Service) List(ctx context.Context, f ListFilter) (*ListResult, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrValidation, f.Status)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 1
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if !sortableFields[f.Sort] {
		f.Sort = "start"
	}
	if f.Order != "desc" {
		f.Order = "asc"
	}

	items, total, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	if items == nil {
		items = []Appointment{}
	}
	return &ListResult{Items: items, Page: f.Page, Limit: f.Limit, Total: total}, nil
}

// Availability returns the free slots of a provider on a calendar day.
func (s *Service) Availability(ctx context.Context, providerID, date string, slotMinutes int) (*Availability, error) {
	return s.availability.Compute(ctx, strings.TrimSpace(providerID), date, slotMinutes)
}

func (s *Service) withSchedulingLocks(ctx context.Context, providerID string, patientID uuid.UUID, fn func(ctx context.Context) error) error {
	keys := []string{redisclient.ProviderKey(providerID), redisclient.PatientKey(patientID)}
	err := s.locker.WithLocks(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrSchedulingBusy
	}
	return err
}

// explainConflict turns a store-level exclusion violation into a detailed
// ConflictError when the blocking row is visible.
func (s *Service) explainConflict(ctx context.Context, rng TimeRange, providerID string, patientID uuid.UUID, excludeID *uuid.UUID) error {
	if err := s.conflicts.Check(ctx, rng, providerID, patientID, excludeID); err != nil {
		return err
	}
	return ErrSchedulingConflict
}

func (s *Service) logEvent(ctx context.Context, appt *Appointment, eventType string, extra map[string]any) {
	payload := map[string]any{
		"event_type":     eventType,
		"appointment_id": appt.ID.String(),
		"patient_id":     appt.PatientID.String(),
		"provider_id":    appt.ProviderID,
		"start":          appt.Start,
		"end":            appt.End,
		"status":         appt.Status,
		"occurred_at":    time.Now().UTC(),
	}
	for k, v := range extra {
		payload[k] = v
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appt.ID
	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.logger.Error().Err(err).
			Str("event_type", eventType).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to insert event log")
	}

	if data == nil {
		return
	}
	routingKey := "appointment." + strings.ToLower(strings.TrimPrefix(eventType, "APPOINTMENT_"))
	if err := s.publisher.Publish(ctx, routingKey, data); err != nil {
		s.logger.Error().Err(err).
			Str("routing_key", routingKey).
			Str("appointment_id", appt.ID.String()).
			Msg("failed to publish event")
	}
}

// presentTime treats an empty start or end as not supplied.
func presentTime(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
