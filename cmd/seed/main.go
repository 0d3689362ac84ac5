package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/appointment"
	"github.com/hackgods/ehr-appointment-scheduling/internal/config"
	"github.com/hackgods/ehr-appointment-scheduling/internal/db"
	"github.com/hackgods/ehr-appointment-scheduling/internal/events"
	"github.com/hackgods/ehr-appointment-scheduling/internal/logging"
	redisclient "github.com/hackgods/ehr-appointment-scheduling/internal/redis"
)

type seedStore interface {
	appointment.Repository
	appointment.PatientDirectory
	CreatePatient(ctx context.Context, p *appointment.Patient) (*appointment.Patient, error)
}

var reasons = []string{
	"Annual physical",
	"Follow-up visit",
	"Lab review",
	"Medication check",
	"Vaccination",
	"Dermatology consult",
	"Blood pressure check",
	"Post-op review",
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("cmd", "seed").Logger()
	logger.Info().Str("store", cfg.StoreDriver).Msg("seed starting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer closeStore()

	// zero seeds from crypto/rand
	gofakeit.Seed(0)

	patients, err := seedPatients(ctx, store, getInt("SEED_PATIENTS", 500), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	svc := appointment.NewService(store, store, redisclient.NewLocalLocker(cfg.LockWait), events.NewNoopPublisher(logger), logger)
	if err := seedAppointments(ctx, svc, patients, getInt("SEED_PROVIDERS", 20), getInt("SEED_DAYS", 5), logger); err != nil {
		logger.Fatal().Err(err).Msg("seed appointments")
	}

	logger.Info().Msg("seed complete")
}

func openStore(ctx context.Context, cfg config.Config) (seedStore, func(), error) {
	if cfg.StoreDriver == config.StoreSQLite {
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := db.MigrateSQLite(ctx, conn); err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return appointment.NewSQLiteRepository(conn), func() { _ = conn.Close() }, nil
	}

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresPool)
	if err != nil {
		return nil, nil, err
	}
	if err := db.MigratePostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return appointment.NewPgRepository(pool), pool.Close, nil
}

func seedPatients(ctx context.Context, store seedStore, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding patients")

	const progressEvery = 500

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		email := gofakeit.Email()
		p, err := store.CreatePatient(ctx, &appointment.Patient{
			Name:  gofakeit.Name(),
			Email: &email,
		})
		if err != nil {
			return nil, err
		}
		ids = append(ids, p.ID)

		if (i+1)%progressEvery == 0 {
			logger.Info().Int("seeded", i+1).Int("total", count).Msg("patients progress")
		}
	}

	logger.Info().Int("count", len(ids)).Msg("patients seeded")
	return ids, nil
}

// seedAppointments books random half-hour visits through the service so the
// seeded data honours the same overlap rules as live traffic.
func seedAppointments(ctx context.Context, svc *appointment.Service, patients []uuid.UUID, providers, days int, logger zerolog.Logger) error {
	if len(patients) == 0 {
		return nil
	}
	logger.Info().Int("providers", providers).Int("days", days).Msg("seeding appointments")

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var booked, skipped int

	for p := 1; p <= providers; p++ {
		providerID := fmt.Sprintf("dr-%03d", p)
		for d := 1; d <= days; d++ {
			day := today.AddDate(0, 0, d)
			visits := gofakeit.Number(3, 8)
			for n := 0; n < visits; n++ {
				start := day.Add(9*time.Hour + time.Duration(gofakeit.Number(0, 15))*30*time.Minute)
				reason := reasons[gofakeit.Number(0, len(reasons)-1)]

				_, err := svc.Book(ctx, appointment.BookRequest{
					PatientID:  patients[gofakeit.Number(0, len(patients)-1)],
					ProviderID: providerID,
					Start:      start.Format(time.RFC3339),
					End:        start.Add(30 * time.Minute).Format(time.RFC3339),
					Reason:     &reason,
				})
				switch {
				case err == nil:
					booked++
				case errors.Is(err, appointment.ErrSchedulingConflict):
					skipped++
				default:
					return err
				}
			}
		}
	}

	logger.Info().Int("booked", booked).Int("skipped_conflicts", skipped).Msg("appointments seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}
