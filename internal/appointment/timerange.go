package appointment

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidRange = errors.New("invalid time range")

// Layouts accepted for instants on the wire, tried in order. Layouts without a
// zone are interpreted as UTC.
var instantLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// NewTimeRange validates start < end and normalises both instants to UTC at
// microsecond precision, the resolution both stores keep.
func NewTimeRange(start, end time.Time) (TimeRange, error) {
	if start.IsZero() || end.IsZero() {
		return TimeRange{}, fmt.Errorf("%w: start and end must be valid ISO datetimes", ErrInvalidRange)
	}
	start, end = start.Truncate(time.Microsecond), end.Truncate(time.Microsecond)
	if !start.Before(end) {
		return TimeRange{}, fmt.Errorf("%w: end must be after start", ErrInvalidRange)
	}
	return TimeRange{Start: start.UTC(), End: end.UTC()}, nil
}

// ParseTimeRange parses two ISO-8601 strings and validates them as a range.
func ParseTimeRange(start, end string) (TimeRange, error) {
	s, err := ParseInstant(start)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: start and end must be valid ISO datetimes", ErrInvalidRange)
	}
	e, err := ParseInstant(end)
	if err != nil {
		return TimeRange{}, fmt.Errorf("%w: start and end must be valid ISO datetimes", ErrInvalidRange)
	}
	return NewTimeRange(s, e)
}

// ParseInstant parses an ISO-8601 timestamp and returns it in UTC.
func ParseInstant(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", v)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (r TimeRange) Overlaps(other TimeRange) bool {
	return Overlaps(r.Start, r.End, other.Start, other.End)
}

func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

func (r TimeRange) Equal(other TimeRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

func (r TimeRange) String() string {
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}
