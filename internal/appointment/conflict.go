package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSchedulingConflict = errors.New("conflict_with_existing_appointment")

// ConflictError reports which existing appointment blocked a booking.
type ConflictError struct {
	ConflictID    uuid.UUID
	ConflictStart time.Time
	ConflictEnd   time.Time
	ConflictType  ConflictType
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s conflict with appointment %s [%s, %s)",
		ErrSchedulingConflict, e.ConflictType, e.ConflictID,
		e.ConflictStart.Format(time.RFC3339), e.ConflictEnd.Format(time.RFC3339))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrSchedulingConflict
}

// ConflictDetector finds existing appointments overlapping a candidate interval
// on either the provider or the patient dimension. It never writes.
type ConflictDetector struct {
	repo Repository
}

func NewConflictDetector(repo Repository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// FindConflict returns the earliest-starting blocking appointment, or nil.
func (d *ConflictDetector) FindConflict(ctx context.Context, candidate TimeRange, providerID string, patientID uuid.UUID, excludeID *uuid.UUID) (*Appointment, error) {
	found, err := d.repo.FindConflict(ctx, ConflictQuery{
		Range:      candidate,
		ProviderID: providerID,
		PatientID:  patientID,
		ExcludeID:  excludeID,
	})
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find conflict: %w", err)
	}
	return found, nil
}

// Check runs FindConflict and converts a hit into a *ConflictError.
func (d *ConflictDetector) Check(ctx context.Context, candidate TimeRange, providerID string, patientID uuid.UUID, excludeID *uuid.UUID) error {
	found, err := d.FindConflict(ctx, candidate, providerID, patientID, excludeID)
	if err != nil {
		return err
	}
	if found == nil {
		return nil
	}
	return newConflictError(found, providerID)
}

func newConflictError(found *Appointment, providerID string) *ConflictError {
	kind := ConflictPatient
	if found.ProviderID == providerID {
		kind = ConflictProvider
	}
	return &ConflictError{
		ConflictID:    found.ID,
		ConflictStart: found.Start,
		ConflictEnd:   found.End,
		ConflictType:  kind,
	}
}
