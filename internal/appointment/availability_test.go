package appointment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSlotMinutes(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 30},
		{"abc", 30},
		{"0", 30},
		{"1", 5},
		{"-20", 5},
		{"5", 5},
		{"45", 45},
		{" 60 ", 60},
		{"15abc", 15},
		{"45.5", 45},
		{"+20", 20},
		{"-", 30},
		{"x15", 30},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeSlotMinutes(tt.raw))
		})
	}
}

func TestParseDay(t *testing.T) {
	day, err := ParseDay("2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), day)

	day, err = ParseDay("2025-03-10T15:45:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDay("March 10")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestSlotGrid(t *testing.T) {
	window := WorkingWindow(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, 9, window.Start.Hour())
	assert.Equal(t, 17, window.End.Hour())

	hourly := SlotGrid(window, time.Hour)
	require.Len(t, hourly, 8)
	assert.Equal(t, window.Start, hourly[0].Start)
	assert.Equal(t, window.End, hourly[7].End)

	// 480 / 45 leaves a partial trailing slot, which is dropped
	uneven := SlotGrid(window, 45*time.Minute)
	require.Len(t, uneven, 10)
	assert.False(t, uneven[9].End.After(window.End))

	for i := 1; i < len(uneven); i++ {
		assert.Equal(t, uneven[i-1].End, uneven[i].Start, "slots must be contiguous")
	}

	assert.Nil(t, SlotGrid(window, 0))
}

func TestFreeSlots(t *testing.T) {
	window := WorkingWindow(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	grid := SlotGrid(window, 30*time.Minute)

	busy := []Appointment{
		// blocks 09:00 and 09:30
		{Start: window.Start.Add(15 * time.Minute), End: window.Start.Add(45 * time.Minute)},
		// ends exactly at 12:00, blocks only 11:30
		{Start: window.Start.Add(150 * time.Minute), End: window.Start.Add(180 * time.Minute)},
	}

	free := FreeSlots(grid, busy)
	assert.Len(t, free, len(grid)-3)
	for _, s := range free {
		for _, b := range busy {
			assert.False(t, Overlaps(s.Start, s.End, b.Start, b.End))
		}
	}
}
