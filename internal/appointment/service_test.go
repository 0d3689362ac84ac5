package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/ehr-appointment-scheduling/internal/db"
	redisclient "github.com/hackgods/ehr-appointment-scheduling/internal/redis"
)

type recordingPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type fixture struct {
	svc  *Service
	repo *SQLiteRepository
	pub  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conn, err := db.OpenSQLite(ctx, db.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.MigrateSQLite(ctx, conn))

	repo := NewSQLiteRepository(conn)
	pub := &recordingPublisher{}
	svc := NewService(repo, repo, redisclient.NewLocalLocker(5*time.Second), pub, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, pub: pub}
}

func (f *fixture) patient(t *testing.T) uuid.UUID {
	t.Helper()
	email := gofakeit.Email()
	p, err := f.repo.CreatePatient(context.Background(), &Patient{Name: gofakeit.Name(), Email: &email})
	require.NoError(t, err)
	return p.ID
}

func (f *fixture) book(t *testing.T, patientID uuid.UUID, providerID, start, end string) *Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  patientID,
		ProviderID: providerID,
		Start:      start,
		End:        end,
	})
	require.NoError(t, err)
	return appt
}

// at returns an instant on the fixed test day.
func at(hour, minute int) string {
	return fmt.Sprintf("2025-03-10T%02d:%02d:00Z", hour, minute)
}

func ptr[T any](v T) *T { return &v }

func TestBook_Success(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)

	appt, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  pat,
		ProviderID: "  dr-house ",
		Start:      at(9, 0),
		End:        at(10, 0),
		Reason:     ptr("  follow-up "),
	})
	require.NoError(t, err)

	assert.Equal(t, StatusBooked, appt.Status)
	assert.Equal(t, "dr-house", appt.ProviderID)
	assert.Equal(t, pat, appt.PatientID)
	require.NotNil(t, appt.Reason)
	assert.Equal(t, "follow-up", *appt.Reason)

	got, err := f.svc.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.True(t, got.Range().Equal(appt.Range()))
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), got.Start)

	evs, err := f.repo.ListEvents(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, EventAppointmentBooked, evs[0].EventType)
	assert.Contains(t, string(evs[0].Payload), appt.ID.String())
	assert.Equal(t, []string{"appointment.booked"}, f.pub.published())
}

func TestBook_Validation(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)

	tests := []struct {
		name string
		req  BookRequest
		want error
	}{
		{"nil patient", BookRequest{ProviderID: "p", Start: at(9, 0), End: at(10, 0)}, ErrValidation},
		{"missing provider", BookRequest{PatientID: pat, ProviderID: " ", Start: at(9, 0), End: at(10, 0)}, ErrValidation},
		{"unknown patient", BookRequest{PatientID: uuid.New(), ProviderID: "p", Start: at(9, 0), End: at(10, 0)}, ErrPatientNotFound},
		{"unparseable start", BookRequest{PatientID: pat, ProviderID: "p", Start: "tomorrow", End: at(10, 0)}, ErrInvalidRange},
		{"inverted", BookRequest{PatientID: pat, ProviderID: "p", Start: at(10, 0), End: at(9, 0)}, ErrInvalidRange},
		{"empty range", BookRequest{PatientID: pat, ProviderID: "p", Start: at(9, 0), End: at(9, 0)}, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Book(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	res, err := f.svc.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func TestBook_ProviderConflict(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	_, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  f.patient(t),
		ProviderID: "dr-p",
		Start:      at(9, 30),
		End:        at(10, 30),
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.ErrorIs(t, err, ErrSchedulingConflict)
	assert.Equal(t, ConflictProvider, conflict.ConflictType)
	assert.Equal(t, first.ID, conflict.ConflictID)
	assert.True(t, conflict.ConflictStart.Equal(first.Start))
	assert.True(t, conflict.ConflictEnd.Equal(first.End))
}

func TestBook_PatientConflict(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)
	first := f.book(t, pat, "dr-a", at(9, 0), at(10, 0))

	_, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  pat,
		ProviderID: "dr-b",
		Start:      at(9, 30),
		End:        at(10, 30),
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, ConflictPatient, conflict.ConflictType)
	assert.Equal(t, first.ID, conflict.ConflictID)
}

func TestBook_ConflictTieBreakIsEarliestStart(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)

	// patient-scope blocker starts first, provider-scope blocker second
	patientBlock := f.book(t, pat, "dr-other", at(9, 0), at(9, 30))
	f.book(t, f.patient(t), "dr-p", at(9, 30), at(10, 0))

	_, err := f.svc.Book(context.Background(), BookRequest{
		PatientID:  pat,
		ProviderID: "dr-p",
		Start:      at(9, 0),
		End:        at(10, 0),
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, patientBlock.ID, conflict.ConflictID)
	assert.Equal(t, ConflictPatient, conflict.ConflictType)
}

func TestBook_TouchingIntervalsDoNotConflict(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)

	f.book(t, pat, "dr-p", at(9, 0), at(10, 0))
	f.book(t, pat, "dr-p", at(10, 0), at(11, 0))
	f.book(t, pat, "dr-p", at(8, 0), at(9, 0))

	res, err := f.svc.List(context.Background(), ListFilter{ProviderID: "dr-p"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
}

func TestBook_ConcurrentOverlapsYieldOneWinner(t *testing.T) {
	f := newFixture(t)

	const n = 10
	patients := make([]uuid.UUID, n)
	for i := range patients {
		patients[i] = f.patient(t)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// staggered but pairwise-overlapping intervals
			_, err := f.svc.Book(context.Background(), BookRequest{
				PatientID:  patients[i],
				ProviderID: "dr-race",
				Start:      at(9, i),
				End:        at(10, i),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrSchedulingConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
}

func TestCancel_FreesSlotAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)
	appt := f.book(t, pat, "dr-p", at(9, 0), at(10, 0))

	cancelled, err := f.svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	again, err := f.svc.Cancel(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, again.Status)

	evs, err := f.repo.ListEvents(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, EventAppointmentCancelled, evs[1].EventType)

	// the interval is free again
	f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	_, err = f.svc.Cancel(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestCompleteAndCancel_TerminalStates(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)

	done := f.book(t, pat, "dr-p", at(9, 0), at(10, 0))
	completed, err := f.svc.Complete(context.Background(), done.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, completed.Status)

	_, err = f.svc.Complete(context.Background(), done.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(context.Background(), done.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	dropped := f.book(t, pat, "dr-p", at(11, 0), at(12, 0))
	_, err = f.svc.Cancel(context.Background(), dropped.ID)
	require.NoError(t, err)

	_, err = f.svc.Complete(context.Background(), dropped.ID)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)

	assert.Contains(t, f.pub.published(), "appointment.completed")
	assert.Contains(t, f.pub.published(), "appointment.cancelled")
}

func TestReschedule_MovesToFreeInterval(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	moved, err := f.svc.Reschedule(context.Background(), appt.ID, RescheduleRequest{
		Start: ptr(at(13, 0)),
		End:   ptr(at(14, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, moved.Status)
	assert.Equal(t, time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC), moved.Start)

	// the old interval is free
	f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	evs, err := f.repo.ListEvents(context.Background(), appt.ID)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, EventAppointmentRescheduled, evs[1].EventType)
	assert.Contains(t, string(evs[1].Payload), "previous_start")
}

func TestReschedule_ExtendingOwnIntervalIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	moved, err := f.svc.Reschedule(context.Background(), appt.ID, RescheduleRequest{End: ptr(at(10, 30))})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), moved.Start)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), moved.End)
}

func TestReschedule_IntoConflictLeavesOriginal(t *testing.T) {
	f := newFixture(t)
	blocker := f.book(t, f.patient(t), "dr-p", at(11, 0), at(12, 0))
	appt := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	_, err := f.svc.Reschedule(context.Background(), appt.ID, RescheduleRequest{
		Start: ptr(at(11, 30)),
		End:   ptr(at(12, 30)),
	})
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, blocker.ID, conflict.ConflictID)
	assert.Equal(t, ConflictProvider, conflict.ConflictType)

	got, err := f.svc.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, got.Status)
	assert.True(t, got.Range().Equal(appt.Range()))
}

func TestReschedule_StateMachine(t *testing.T) {
	f := newFixture(t)
	pat := f.patient(t)
	ctx := context.Background()

	t.Run("reason only keeps status", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(8, 0), at(8, 30))
		got, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Reason: ptr("labs")})
		require.NoError(t, err)
		assert.Equal(t, StatusBooked, got.Status)
		require.NotNil(t, got.Reason)
		assert.Equal(t, "labs", *got.Reason)
	})

	t.Run("invalid status", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(9, 0), at(9, 30))
		_, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Status: ptr(Status("pending"))})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("cancel with times skips conflict check", func(t *testing.T) {
		f.book(t, f.patient(t), "dr-p", at(15, 0), at(16, 0))
		appt := f.book(t, pat, "dr-p", at(10, 0), at(10, 30))
		got, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{
			Start:  ptr(at(15, 0)),
			End:    ptr(at(16, 0)),
			Status: ptr(StatusCancelled),
		})
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, got.Status)
	})

	t.Run("cancelled rejects every change", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(11, 0), at(11, 30))
		_, err := f.svc.Cancel(ctx, appt.ID)
		require.NoError(t, err)

		_, err = f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Reason: ptr("x")})
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("completed accepts notes but not times", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(12, 0), at(12, 30))
		_, err := f.svc.Complete(ctx, appt.ID)
		require.NoError(t, err)

		got, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Location: ptr("Room 4")})
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)

		_, err = f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Start: ptr(at(13, 0)), End: ptr(at(13, 30))})
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("back to booked is rejected", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(13, 0), at(13, 30))
		moved, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Start: ptr(at(13, 30)), End: ptr(at(14, 0))})
		require.NoError(t, err)
		require.Equal(t, StatusRescheduled, moved.Status)

		_, err = f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{Status: ptr(StatusBooked)})
		assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	})

	t.Run("inverted range", func(t *testing.T) {
		appt := f.book(t, pat, "dr-p", at(14, 0), at(14, 30))
		_, err := f.svc.Reschedule(ctx, appt.ID, RescheduleRequest{End: ptr(at(13, 0))})
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := f.svc.Reschedule(ctx, uuid.New(), RescheduleRequest{Reason: ptr("x")})
		assert.ErrorIs(t, err, ErrAppointmentNotFound)
	})
}

func TestAvailability_SubtractsBusyAppointments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))
	cancelled := f.book(t, f.patient(t), "dr-p", at(12, 0), at(13, 0))
	_, err := f.svc.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	f.book(t, f.patient(t), "dr-other", at(14, 0), at(15, 0))

	av, err := f.svc.Availability(ctx, "dr-p", "2025-03-10", 60)
	require.NoError(t, err)

	assert.Equal(t, 60, av.SlotMinutes)
	require.Len(t, av.Slots, 7)
	for _, s := range av.Slots {
		assert.False(t, s.Start.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	}
	assert.Equal(t, time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC), av.Slots[0].Start)
}

func TestAvailability_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Availability(context.Background(), "", "2025-03-10", 30)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Availability(context.Background(), "dr-p", "", 30)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.svc.Availability(context.Background(), "dr-p", "10/03/2025", 30)
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestList_FiltersAndPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pat := f.patient(t)

	var booked []*Appointment
	for h := 9; h < 14; h++ {
		booked = append(booked, f.book(t, f.patient(t), "dr-p", at(h, 0), at(h, 30)))
	}
	other := f.book(t, pat, "dr-q", "2025-03-11T09:00:00Z", "2025-03-11T10:00:00Z")
	_, err := f.svc.Cancel(ctx, booked[4].ID)
	require.NoError(t, err)

	var paged []uuid.UUID
	for page := 1; page <= 3; page++ {
		res, err := f.svc.List(ctx, ListFilter{ProviderID: "dr-p", Page: page, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, 5, res.Total)
		for _, a := range res.Items {
			paged = append(paged, a.ID)
		}
	}
	require.Len(t, paged, 5)
	for i, a := range booked {
		assert.Equal(t, a.ID, paged[i])
	}

	desc, err := f.svc.List(ctx, ListFilter{ProviderID: "dr-p", Order: "desc", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, booked[4].ID, desc.Items[0].ID)

	cancelled, err := f.svc.List(ctx, ListFilter{Status: StatusCancelled, Limit: DefaultPageLimit})
	require.NoError(t, err)
	require.Len(t, cancelled.Items, 1)
	assert.Equal(t, booked[4].ID, cancelled.Items[0].ID)

	day := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	byDay, err := f.svc.List(ctx, ListFilter{Date: &day, Limit: DefaultPageLimit})
	require.NoError(t, err)
	require.Len(t, byDay.Items, 1)
	assert.Equal(t, other.ID, byDay.Items[0].ID)

	byPatient, err := f.svc.List(ctx, ListFilter{PatientID: &pat})
	require.NoError(t, err)
	assert.Equal(t, 1, byPatient.Total)

	from := time.Date(2025, 3, 10, 12, 15, 0, 0, time.UTC)
	to := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	window, err := f.svc.List(ctx, ListFilter{From: &from, To: &to, Limit: DefaultPageLimit})
	require.NoError(t, err)
	require.Len(t, window.Items, 1)
	assert.Equal(t, booked[3].ID, window.Items[0].ID)
}

func TestList_Normalization(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.List(context.Background(), ListFilter{Page: -3, Limit: 5000, Sort: "bogus", Order: "sideways"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, MaxPageLimit, res.Limit)
	assert.NotNil(t, res.Items)

	for _, limit := range []int{0, -5} {
		res, err = f.svc.List(context.Background(), ListFilter{Limit: limit})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Limit, "limit %d", limit)
	}

	_, err = f.svc.List(context.Background(), ListFilter{Status: "pending"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBook_FarFutureInstantsRoundTrip(t *testing.T) {
	for _, year := range []int{1600, 2300, 9000} {
		t.Run(fmt.Sprint(year), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			day := fmt.Sprintf("%04d-01-01", year)
			start := time.Date(year, 1, 1, 10, 0, 0, 0, time.UTC)

			appt := f.book(t, f.patient(t), "dr-far", day+"T10:00:00Z", day+"T11:00:00Z")

			got, err := f.svc.Get(ctx, appt.ID)
			require.NoError(t, err)
			assert.Equal(t, start, got.Start)
			assert.Equal(t, start.Add(time.Hour), got.End)

			av, err := f.svc.Availability(ctx, "dr-far", day, 60)
			require.NoError(t, err)
			require.Len(t, av.Slots, 7)
			for _, s := range av.Slots {
				assert.False(t, s.Start.Equal(start))
			}

			_, err = f.svc.Book(ctx, BookRequest{
				PatientID:  f.patient(t),
				ProviderID: "dr-far",
				Start:      day + "T10:30:00Z",
				End:        day + "T11:30:00Z",
			})
			assert.ErrorIs(t, err, ErrSchedulingConflict)
		})
	}
}

func TestReschedule_EmptyTimesAreNotSupplied(t *testing.T) {
	f := newFixture(t)
	appt := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	got, err := f.svc.Reschedule(context.Background(), appt.ID, RescheduleRequest{
		Start:  ptr(""),
		End:    ptr(""),
		Reason: ptr("bring labs"),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusBooked, got.Status)
	assert.True(t, got.Range().Equal(appt.Range()))
	require.NotNil(t, got.Reason)
	assert.Equal(t, "bring labs", *got.Reason)

	// one side empty still moves the other
	got, err = f.svc.Reschedule(context.Background(), appt.ID, RescheduleRequest{
		Start: ptr(""),
		End:   ptr(at(10, 30)),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusRescheduled, got.Status)
	assert.Equal(t, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC), got.End)
}

// staleReadRepo serves one outdated copy of an appointment, as a read that
// raced with a concurrent writer would.
type staleReadRepo struct {
	*SQLiteRepository
	mu    sync.Mutex
	stale *Appointment
}

func (r *staleReadRepo) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	st := r.stale
	r.stale = nil
	r.mu.Unlock()
	if st != nil {
		cp := *st
		return &cp, nil
	}
	return r.SQLiteRepository.GetAppointmentByID(ctx, id)
}

func TestReschedule_EventRecordsLockedPreviousState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	original := f.book(t, f.patient(t), "dr-p", at(9, 0), at(10, 0))

	_, err := f.svc.Reschedule(ctx, original.ID, RescheduleRequest{Start: ptr(at(11, 0)), End: ptr(at(12, 0))})
	require.NoError(t, err)

	repo := &staleReadRepo{SQLiteRepository: f.repo, stale: original}
	svc := NewService(repo, f.repo, redisclient.NewLocalLocker(5*time.Second), f.pub, zerolog.Nop())

	_, err = svc.Reschedule(ctx, original.ID, RescheduleRequest{Reason: ptr("moved by phone")})
	require.NoError(t, err)

	evs, err := f.repo.ListEvents(ctx, original.ID)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	last := evs[2]
	assert.Equal(t, EventAppointmentUpdated, last.EventType)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(last.Payload, &payload))
	assert.Equal(t, "2025-03-10T11:00:00Z", payload["previous_start"])
	assert.Equal(t, "2025-03-10T12:00:00Z", payload["previous_end"])
	assert.Equal(t, string(StatusRescheduled), payload["previous_status"])
}
