package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRange(t *testing.T) {
	tests := []struct {
		name    string
		start   string
		end     string
		wantErr bool
	}{
		{"utc", "2025-03-10T09:00:00Z", "2025-03-10T10:00:00Z", false},
		{"offset", "2025-03-10T11:00:00+02:00", "2025-03-10T12:00:00+02:00", false},
		{"fractional", "2025-03-10T09:00:00.000Z", "2025-03-10T10:00:00.500Z", false},
		{"no zone", "2025-03-10T09:00", "2025-03-10T10:00", false},
		{"empty start", "", "2025-03-10T10:00:00Z", true},
		{"garbage end", "2025-03-10T09:00:00Z", "soon", true},
		{"equal", "2025-03-10T09:00:00Z", "2025-03-10T09:00:00Z", true},
		{"inverted", "2025-03-10T10:00:00Z", "2025-03-10T09:00:00Z", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ParseTimeRange(tt.start, tt.end)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidRange)
				return
			}
			require.NoError(t, err)
			assert.True(t, r.Start.Before(r.End))
			assert.Equal(t, time.UTC, r.Start.Location())
		})
	}
}

func TestParseTimeRange_NormalizesToUTC(t *testing.T) {
	r, err := ParseTimeRange("2025-03-10T11:00:00+02:00", "2025-03-10T12:30:00+02:00")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, 90*time.Minute, r.Duration())
	assert.Equal(t, "2025-03-10T09:00:00Z/2025-03-10T10:30:00Z", r.String())
}

func TestOverlaps_HalfOpen(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	hm := func(h, m int) time.Time { return base.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute) }
	nine := TimeRange{Start: hm(0, 0), End: hm(1, 0)}

	tests := []struct {
		name  string
		other TimeRange
		want  bool
	}{
		{"identical", nine, true},
		{"partial tail", TimeRange{hm(0, 30), hm(1, 30)}, true},
		{"partial head", TimeRange{hm(-1, 0), hm(0, 1)}, true},
		{"contained", TimeRange{hm(0, 10), hm(0, 20)}, true},
		{"containing", TimeRange{hm(-1, 0), hm(2, 0)}, true},
		{"touching after", TimeRange{hm(1, 0), hm(2, 0)}, false},
		{"touching before", TimeRange{hm(-1, 0), hm(0, 0)}, false},
		{"disjoint", TimeRange{hm(3, 0), hm(4, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nine.Overlaps(tt.other))
			assert.Equal(t, tt.want, tt.other.Overlaps(nine), "overlap must be symmetric")
		})
	}
}

func TestNewTimeRange_ZeroValues(t *testing.T) {
	_, err := NewTimeRange(time.Time{}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidRange)
}
