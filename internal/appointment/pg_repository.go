package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	pgExclusionViolation  = "23P01"
	pgForeignKeyViolation = "23503"
)

const appointmentColumns = `id, patient_id, provider_id, start_at, end_at, status, reason, location, created_at, updated_at`

var pgDialect = sqlDialect{
	placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	timeArg:     func(t time.Time) any { return t.UTC() },
	idArg:       func(v any) any { return v },
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProviderID,
		&a.Start,
		&a.End,
		&a.Status,
		&a.Reason,
		&a.Location,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = a.Start.UTC()
	a.End = a.End.UTC()
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// mapWriteError translates constraint violations into domain errors.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgExclusionViolation:
			return ErrSchedulingConflict
		case pgForeignKeyViolation:
			return ErrPatientNotFound
		}
	}
	return err
}

// Interface methods

func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
		RETURNING id, name, email, created_at, updated_at
	`, p.ID, p.Name, p.Email)
	return scanPatient(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) FindConflict(ctx context.Context, q ConflictQuery) (*Appointment, error) {
	w := conflictWhere(pgDialect, q)
	row := r.pool.QueryRow(ctx,
		`SELECT `+appointmentColumns+` FROM appointments`+w.sql()+` ORDER BY start_at ASC, id ASC LIMIT 1`,
		w.args...)
	return scanAppointment(row)
}

func (r *PgRepository) ListProviderBusy(ctx context.Context, providerID string, window TimeRange) ([]Appointment, error) {
	w := busyWhere(pgDialect, providerID, window)
	rows, err := r.pool.Query(ctx,
		`SELECT `+appointmentColumns+` FROM appointments`+w.sql()+` ORDER BY start_at ASC`,
		w.args...)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, start_at, end_at, status, reason, location, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProviderID, a.Start.UTC(), a.End.UTC(), a.Status, a.Reason, a.Location)

	created, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET start_at = $2,
		    end_at = $3,
		    status = $4,
		    reason = $5,
		    location = $6,
		    updated_at = now()
		WHERE id = $1
		  AND status = $7
		RETURNING `+appointmentColumns,
		a.ID, a.Start.UTC(), a.End.UTC(), a.Status, a.Reason, a.Location, expected)

	updated, err := scanAppointment(row)
	if err != nil {
		return nil, mapWriteError(err)
	}
	return updated, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	w := listWhere(pgDialect, f)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM appointments`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args := append(append([]any{}, w.args...), f.Limit, (f.Page-1)*f.Limit)
	query := `SELECT ` + appointmentColumns + ` FROM appointments` + w.sql() + listOrder(f) +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(w.args)+1, len(w.args)+2)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
