package appointment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const (
	DefaultSlotMinutes = 30
	MinSlotMinutes     = 5

	workdayStartHour = 9
	workdayEndHour   = 17
)

// NormalizeSlotMinutes applies the slot length rules to a raw query value.
// Only the leading integer counts ("45.5" is 45). Input without one, or zero,
// falls back to the default, then the 5 minute floor is enforced.
func NormalizeSlotMinutes(raw string) int {
	n, ok := leadingInt(raw)
	if !ok {
		n = DefaultSlotMinutes
	}
	return clampSlotMinutes(n)
}

// leadingInt parses an optional sign and the digits that follow it, ignoring
// anything after the first non-digit.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, false
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func clampSlotMinutes(n int) int {
	if n == 0 {
		n = DefaultSlotMinutes
	}
	if n < MinSlotMinutes {
		n = MinSlotMinutes
	}
	return n
}

// ParseDay parses a calendar day from either YYYY-MM-DD or a full timestamp
// and returns midnight UTC of that day.
func ParseDay(v string) (time.Time, error) {
	t, err := ParseInstant(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, v)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// WorkingWindow returns the fixed 09:00-17:00 window of the given day.
func WorkingWindow(day time.Time) TimeRange {
	y, m, d := day.Date()
	return TimeRange{
		Start: time.Date(y, m, d, workdayStartHour, 0, 0, 0, day.Location()),
		End:   time.Date(y, m, d, workdayEndHour, 0, 0, 0, day.Location()),
	}
}

// SlotGrid splits the window into contiguous slots of the given length.
// A trailing partial slot is dropped.
func SlotGrid(window TimeRange, length time.Duration) []Slot {
	if length <= 0 {
		return nil
	}
	var slots []Slot
	for t := window.Start; !t.Add(length).After(window.End); t = t.Add(length) {
		slots = append(slots, Slot{Start: t, End: t.Add(length)})
	}
	return slots
}

// FreeSlots removes every slot overlapping any busy appointment.
func FreeSlots(grid []Slot, busy []Appointment) []Slot {
	free := make([]Slot, 0, len(grid))
	for _, s := range grid {
		blocked := false
		for i := range busy {
			if Overlaps(s.Start, s.End, busy[i].Start, busy[i].End) {
				blocked = true
				break
			}
		}
		if !blocked {
			free = append(free, s)
		}
	}
	return free
}

// AvailabilityGenerator computes free slots for a provider on a day. Read-only.
type AvailabilityGenerator struct {
	repo Repository
}

func NewAvailabilityGenerator(repo Repository) *AvailabilityGenerator {
	return &AvailabilityGenerator{repo: repo}
}

func (g *AvailabilityGenerator) Compute(ctx context.Context, providerID, date string, slotMinutes int) (*Availability, error) {
	if strings.TrimSpace(providerID) == "" {
		return nil, fmt.Errorf("%w: providerId is required", ErrValidation)
	}
	if strings.TrimSpace(date) == "" {
		return nil, fmt.Errorf("%w: date (YYYY-MM-DD) is required", ErrValidation)
	}
	day, err := ParseDay(date)
	if err != nil {
		return nil, err
	}
	mins := clampSlotMinutes(slotMinutes)

	window := WorkingWindow(day)
	busy, err := g.repo.ListProviderBusy(ctx, providerID, window)
	if err != nil {
		return nil, fmt.Errorf("load provider appointments: %w", err)
	}

	grid := SlotGrid(window, time.Duration(mins)*time.Minute)
	return &Availability{
		ProviderID:  providerID,
		Date:        day,
		SlotMinutes: mins,
		Slots:       FreeSlots(grid, busy),
	}, nil
}
