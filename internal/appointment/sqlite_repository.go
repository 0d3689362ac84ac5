package appointment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Raised by the overlap triggers in the sqlite schema.
const sqliteOverlapMessage = "appointment_overlap"

var sqliteDialect = sqlDialect{
	placeholder: func(int) string { return "?" },
	timeArg:     func(t time.Time) any { return t.UTC().UnixMicro() },
	idArg: func(v any) any {
		if id, ok := v.(uuid.UUID); ok {
			return id.String()
		}
		return v
	},
}

// SQLiteRepository stores appointments in a single-file or in-memory sqlite
// database. Instants are stored as unix microseconds so range predicates
// compare numerically and every year from 0001 to 9999 round-trips.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func fromMicros(n int64) time.Time {
	return time.UnixMicro(n).UTC()
}

func scanSQLiteAppointment(row rowScanner) (*Appointment, error) {
	var (
		a                                Appointment
		id, patientID, status            string
		start, end, createdAt, updatedAt int64
	)

	err := row.Scan(&id, &patientID, &a.ProviderID, &start, &end, &status, &a.Reason, &a.Location, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if a.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse appointment id: %w", err)
	}
	if a.PatientID, err = uuid.Parse(patientID); err != nil {
		return nil, fmt.Errorf("parse patient id: %w", err)
	}
	a.Status = Status(status)
	a.Start = fromMicros(start)
	a.End = fromMicros(end)
	a.CreatedAt = fromMicros(createdAt)
	a.UpdatedAt = fromMicros(updatedAt)
	return &a, nil
}

func collectSQLiteAppointments(rows *sql.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanSQLiteAppointment(rows)
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

func mapSQLiteWriteError(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, sqliteOverlapMessage):
		return ErrSchedulingConflict
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return ErrPatientNotFound
	}
	return err
}

func (r *SQLiteRepository) CreatePatient(ctx context.Context, p *Patient) (*Patient, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID.String(), p.Name, p.Email, now.UnixMicro(), now.UnixMicro())
	if err != nil {
		return nil, fmt.Errorf("insert patient: %w", err)
	}
	return r.GetPatientByID(ctx, p.ID)
}

func (r *SQLiteRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var (
		p                    Patient
		createdAt, updatedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT name, email, created_at, updated_at
		FROM patients
		WHERE id = ?
	`, id.String()).Scan(&p.Name, &p.Email, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.ID = id
	p.CreatedAt = fromMicros(createdAt)
	p.UpdatedAt = fromMicros(updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = ?`, id.String())
	return scanSQLiteAppointment(row)
}

func (r *SQLiteRepository) FindConflict(ctx context.Context, q ConflictQuery) (*Appointment, error) {
	w := conflictWhere(sqliteDialect, q)
	row := r.db.QueryRowContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments`+w.sql()+` ORDER BY start_at ASC, id ASC LIMIT 1`,
		w.args...)
	return scanSQLiteAppointment(row)
}

func (r *SQLiteRepository) ListProviderBusy(ctx context.Context, providerID string, window TimeRange) ([]Appointment, error) {
	w := busyWhere(sqliteDialect, providerID, window)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments`+w.sql()+` ORDER BY start_at ASC`,
		w.args...)
	if err != nil {
		return nil, err
	}
	return collectSQLiteAppointments(rows)
}

func (r *SQLiteRepository) CreateAppointment(ctx context.Context, a *Appointment) (*Appointment, error) {
	now := time.Now().UTC().UnixMicro()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO appointments (id, patient_id, provider_id, start_at, end_at, status, reason, location, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID.String(), a.PatientID.String(), a.ProviderID, a.Start.UTC().UnixMicro(), a.End.UTC().UnixMicro(),
		string(a.Status), a.Reason, a.Location, now, now)
	if err != nil {
		return nil, mapSQLiteWriteError(err)
	}
	return r.GetAppointmentByID(ctx, a.ID)
}

func (r *SQLiteRepository) UpdateAppointment(ctx context.Context, a *Appointment, expected Status) (*Appointment, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE appointments
		SET start_at = ?, end_at = ?, status = ?, reason = ?, location = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`, a.Start.UTC().UnixMicro(), a.End.UTC().UnixMicro(), string(a.Status), a.Reason, a.Location,
		time.Now().UTC().UnixMicro(), a.ID.String(), string(expected))
	if err != nil {
		return nil, mapSQLiteWriteError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrAppointmentNotFound
	}
	return r.GetAppointmentByID(ctx, a.ID)
}

func (r *SQLiteRepository) ListAppointments(ctx context.Context, f ListFilter) ([]Appointment, int, error) {
	w := listWhere(sqliteDialect, f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM appointments`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	args := append(append([]any{}, w.args...), f.Limit, (f.Page-1)*f.Limit)
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+appointmentColumns+` FROM appointments`+w.sql()+listOrder(f)+` LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectSQLiteAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *SQLiteRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	var apptID any
	if ev.AppointmentID != nil {
		apptID = ev.AppointmentID.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES (?, ?, ?, ?)
	`, ev.EventType, apptID, string(ev.Payload), createdAt.UTC().UnixMicro())
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

// ListEvents returns the event log of one appointment in insertion order.
func (r *SQLiteRepository) ListEvents(ctx context.Context, appointmentID uuid.UUID) ([]EventLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_type, payload, created_at
		FROM event_logs
		WHERE appointment_id = ?
		ORDER BY id ASC
	`, appointmentID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []EventLog
	for rows.Next() {
		var (
			ev        EventLog
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &payload, &createdAt); err != nil {
			return nil, err
		}
		id := appointmentID
		ev.AppointmentID = &id
		ev.Payload = []byte(payload)
		ev.CreatedAt = fromMicros(createdAt)
		result = append(result, ev)
	}
	return result, rows.Err()
}
