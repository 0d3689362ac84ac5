package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

var ErrPatientDirectoryUnavailable = errors.New("patient directory unavailable")

type BreakerSettings struct {
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// BreakerDirectory wraps a PatientDirectory in a circuit breaker. A missing
// patient is a normal answer and does not count against the breaker.
type BreakerDirectory struct {
	next    PatientDirectory
	breaker *gobreaker.CircuitBreaker[*Patient]
}

func NewBreakerDirectory(next PatientDirectory, st BreakerSettings, logger zerolog.Logger) *BreakerDirectory {
	if st.FailureThreshold == 0 {
		st.FailureThreshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "patient-directory",
		MaxRequests: 1,
		Timeout:     st.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPatientNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	}
	return &BreakerDirectory{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*Patient](settings),
	}
}

func (d *BreakerDirectory) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := d.breaker.Execute(func() (*Patient, error) {
		return d.next.GetPatientByID(ctx, id)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrPatientDirectoryUnavailable
	}
	return p, err
}
