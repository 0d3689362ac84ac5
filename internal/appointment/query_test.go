package appointment

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestConflictWhere_PostgresPlaceholders(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	exclude := uuid.New()
	q := ConflictQuery{
		Range:      TimeRange{Start: start, End: start.Add(time.Hour)},
		ProviderID: "dr-p",
		PatientID:  uuid.New(),
		ExcludeID:  &exclude,
	}

	w := conflictWhere(pgDialect, q)

	assert.Equal(t,
		" WHERE status <> 'cancelled' AND start_at < $1 AND end_at > $2 AND (provider_id = $3 OR patient_id = $4) AND id <> $5",
		w.sql())
	assert.Len(t, w.args, 5)
	assert.Equal(t, exclude, w.args[4])
}

func TestListWhere_SQLiteArgs(t *testing.T) {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	w := listWhere(sqliteDialect, ListFilter{ProviderID: "dr-p", Status: StatusBooked, Date: &day})

	assert.Equal(t, " WHERE provider_id = ? AND status = ? AND start_at < ? AND end_at > ?", w.sql())
	assert.Equal(t, []any{"dr-p", "booked", day.Add(24 * time.Hour).UnixMicro(), day.UnixMicro()}, w.args)

	assert.Empty(t, listWhere(sqliteDialect, ListFilter{}).sql())
}

func TestListOrder(t *testing.T) {
	assert.Equal(t, " ORDER BY start_at ASC, id ASC", listOrder(ListFilter{}))
	assert.Equal(t, " ORDER BY updated_at DESC, id DESC", listOrder(ListFilter{Sort: "updatedAt", Order: "desc"}))
	assert.Equal(t, " ORDER BY start_at ASC, id ASC", listOrder(ListFilter{Sort: "id; DROP TABLE"}))
}
