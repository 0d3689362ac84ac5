package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/ehr-appointment-scheduling/internal/auth"
	"github.com/hackgods/ehr-appointment-scheduling/internal/config"
	"github.com/hackgods/ehr-appointment-scheduling/internal/db"
	"github.com/hackgods/ehr-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL      string
	Duration        time.Duration
	Workers         int
	BookingRatio    float64
	RescheduleRatio float64
	CancelRatio     float64
	ReadRatio       float64
	PatientLimit    int
	Providers       int
	Days            int
	Token           string
}

type DataPool struct {
	Patients     []uuid.UUID
	Providers    []string
	Days         []time.Time
	mu           sync.RWMutex
	appointments []uuid.UUID // Thread-safe list of created appointment IDs
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

// randomSlot picks a 30 minute aligned interval inside the working day.
func (dp *DataPool) randomSlot(rng *rand.Rand) (time.Time, time.Time) {
	day := dp.Days[rng.Intn(len(dp.Days))]
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(16))*30*time.Minute)
	return start, start.Add(time.Duration(1+rng.Intn(2)) * 30 * time.Minute)
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	pick := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}

	return sum / time.Duration(len(latencies)), latencies[0], latencies[len(latencies)-1], pick(50), pick(95)
}

type Metrics struct {
	Booking       OperationMetrics
	Reschedule    OperationMetrics
	Cancel        OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
	Availability  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	logger  zerolog.Logger
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel).With().Str("cmd", "simulate").Logger()

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid simulator config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("reschedule", cfg.RescheduleRatio).
		Float64("cancel", cfg.CancelRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	patients, err := loadPatients(ctx, baseCfg, cfg.PatientLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("load patients")
	}

	dataPool := newDataPool(patients, cfg)
	logger.Info().Int("patients", len(dataPool.Patients)).Int("providers", len(dataPool.Providers)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL:      strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:"+base.HTTPPort), "/"),
		Duration:        getDuration("SIM_DURATION", 30*time.Second),
		Workers:         getInt("SIM_WORKERS", 10),
		BookingRatio:    getFloat("SIM_BOOKING_RATIO", 0.4),
		RescheduleRatio: getFloat("SIM_RESCHEDULE_RATIO", 0.15),
		CancelRatio:     getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:       getFloat("SIM_READ_RATIO", 0.35),
		PatientLimit:    getInt("SIM_PATIENT_LIMIT", 4000),
		Providers:       getInt("SIM_PROVIDERS", 20),
		Days:            getInt("SIM_DAYS", 5),
	}

	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Providers <= 0 || cfg.Days <= 0 {
		return cfg, fmt.Errorf("SIM_PROVIDERS and SIM_DAYS must be > 0")
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.RescheduleRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.RescheduleRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	token, err := auth.IssueToken([]byte(base.JWTSecret), auth.Principal{ID: "simulator", Role: auth.RoleProvider}, cfg.Duration+time.Hour)
	if err != nil {
		return cfg, err
	}
	cfg.Token = token

	return cfg, nil
}

// loadPatients reads patient ids straight from the configured store.
func loadPatients(ctx context.Context, cfg config.Config, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	switch cfg.StoreDriver {
	case config.StoreSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		defer conn.Close()

		rows, err := conn.QueryContext(ctx, `SELECT id FROM patients LIMIT ?`, limit)
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
		ids, err = scanIDs(rows)
		if err != nil {
			return nil, err
		}
	default:
		pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, cfg.PostgresPool)
		if err != nil {
			return nil, err
		}
		defer pool.Close()

		rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
		if err != nil {
			return nil, fmt.Errorf("load patients: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var id uuid.UUID
			if err := rows.Scan(&id); err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("no patients loaded, run the seed command first")
	}
	return ids, nil
}

func scanIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func newDataPool(patients []uuid.UUID, cfg SimConfig) *DataPool {
	dp := &DataPool{Patients: patients}
	for i := 1; i <= cfg.Providers; i++ {
		dp.Providers = append(dp.Providers, fmt.Sprintf("dr-%03d", i))
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for i := 1; i <= cfg.Days; i++ {
		dp.Days = append(dp.Days, today.AddDate(0, 0, i))
	}
	return dp
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio:
			s.doReschedule(ctx, rng)
		case r < s.config.BookingRatio+s.config.RescheduleRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			switch rng.Intn(3) {
			case 0:
				s.doReadByID(ctx, rng)
			case 1:
				s.doListByPatient(ctx, rng)
			case 2:
				s.doAvailability(ctx, rng)
			}
		}
	}
}

// call performs one authenticated request and returns status and body.
func (s *Simulator) call(ctx context.Context, method, path string, body any) (int, []byte, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return 0, nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+s.config.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, nil, latency, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	return resp.StatusCode, data, latency, err
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	start, end := s.pool.randomSlot(rng)
	reqBody := map[string]string{
		"patient":    s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"providerId": s.pool.Providers[rng.Intn(len(s.pool.Providers))],
		"start":      start.Format(time.RFC3339),
		"end":        end.Format(time.RFC3339),
		"reason":     "simulated visit",
	}

	status, body, latency, err := s.call(ctx, http.MethodPost, "/appointments", reqBody)
	if err == nil && status == http.StatusCreated {
		var apptResp struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(body, &apptResp) == nil && apptResp.ID != uuid.Nil {
			s.pool.AddAppointment(apptResp.ID)
		}
	}
	s.metrics.Booking.Record(latency, status, err)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}
	start, end := s.pool.randomSlot(rng)
	reqBody := map[string]string{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}

	status, _, latency, err := s.call(ctx, http.MethodPut, "/appointments/"+apptID.String(), reqBody)
	s.metrics.Reschedule.Record(latency, status, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	status, _, latency, err := s.call(ctx, http.MethodDelete, "/appointments/"+apptID.String(), nil)
	s.metrics.Cancel.Record(latency, status, err)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	apptID, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	status, _, latency, err := s.call(ctx, http.MethodGet, "/appointments/"+apptID.String(), nil)
	s.metrics.ReadByID.Record(latency, status, err)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	status, _, latency, err := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/appointments?patient=%s&limit=20&page=1", patientID), nil)
	s.metrics.ListByPatient.Record(latency, status, err)
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	provider := s.pool.Providers[rng.Intn(len(s.pool.Providers))]
	day := s.pool.Days[rng.Intn(len(s.pool.Days))]

	status, _, latency, err := s.call(ctx, http.MethodGet,
		fmt.Sprintf("/appointments/availability?providerId=%s&date=%s&slotMins=30", provider, day.Format("2006-01-02")), nil)
	s.metrics.Availability.Record(latency, status, err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Read by ID", &s.metrics.ReadByID)
	printOperationReport("List by Patient", &s.metrics.ListByPatient)
	printOperationReport("Availability", &s.metrics.Availability)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
