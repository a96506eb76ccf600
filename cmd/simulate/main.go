// simulate hammers one day of queues with concurrent moves, reorders and
// cancellations to exercise the per-scope conflict contract. It expects a
// dev api-server (header auth) and a seeded database.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/appointment-queue/internal/appointment"
	"github.com/clinicore/appointment-queue/internal/config"
	"github.com/clinicore/appointment-queue/internal/db"
)

type simConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
}

type opMetrics struct {
	total     int64
	success   int64
	conflict  int64
	rejected  int64
	errored   int64
	latencies []time.Duration
	mu        sync.Mutex
}

func (m *opMetrics) record(latency time.Duration, status int) {
	atomic.AddInt64(&m.total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&m.success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.conflict, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&m.rejected, 1)
	default:
		atomic.AddInt64(&m.errored, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *opMetrics) summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.latencies) == 0 {
		return "no operations"
	}
	sorted := make([]time.Duration, len(m.latencies))
	copy(sorted, m.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	p := func(q float64) time.Duration {
		idx := int(q * float64(len(sorted)-1))
		return sorted[idx]
	}
	return fmt.Sprintf("total=%d success=%d conflict=%d rejected=%d error=%d p50=%s p95=%s",
		m.total, m.success, m.conflict, m.rejected, m.errored, p(0.5), p(0.95))
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := simConfig{
		APIBaseURL: envOr("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:   envDuration("SIM_DURATION", 30*time.Second),
		Workers:    envInt("SIM_WORKERS", 8),
	}

	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.Connect(ctx, appCfg)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	scopes, err := loadScopes(context.Background(), pool)
	pool.Close()
	if err != nil {
		log.Fatalf("load scopes: %v", err)
	}
	if len(scopes) == 0 {
		log.Fatal("no scopes for today, run the seed first")
	}
	log.Printf("simulating %d workers over %d scopes for %s", cfg.Workers, len(scopes), cfg.Duration)

	operator := uuid.New()
	metricsByOp := map[string]*opMetrics{
		"move":    {},
		"reorder": {},
		"status":  {},
	}

	runCtx, stop := context.WithTimeout(context.Background(), cfg.Duration)
	defer stop()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			client := &http.Client{Timeout: 10 * time.Second}
			for runCtx.Err() == nil {
				scope := scopes[rng.Intn(len(scopes))]
				runOp(runCtx, client, cfg.APIBaseURL, operator, scope, rng, metricsByOp)
			}
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	for op, m := range metricsByOp {
		log.Printf("%-8s %s", op, m.summary())
	}
}

type simScope struct {
	DoctorID uuid.UUID
	Date     appointment.Date
}

func loadScopes(ctx context.Context, pool *pgxpool.Pool) ([]simScope, error) {
	rows, err := pool.Query(ctx, `
		SELECT DISTINCT doctor_id, scope_date
		FROM appointments
		WHERE scope_date = CURRENT_DATE
		  AND status IN ('scheduled', 'confirmed', 'in-progress')
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scopes []simScope
	for rows.Next() {
		var doctorID uuid.UUID
		var scopeDate time.Time
		if err := rows.Scan(&doctorID, &scopeDate); err != nil {
			return nil, err
		}
		scopes = append(scopes, simScope{DoctorID: doctorID, Date: appointment.DateOf(scopeDate)})
	}
	return scopes, rows.Err()
}

func runOp(ctx context.Context, client *http.Client, baseURL string, operator uuid.UUID, scope simScope, rng *rand.Rand, metricsByOp map[string]*opMetrics) {
	queueURL := fmt.Sprintf("%s/queues/%s/%s", baseURL, scope.DoctorID, scope.Date)

	status, body := doRequest(ctx, client, operator, http.MethodGet, queueURL, nil)
	if status != http.StatusOK {
		return
	}
	var queue struct {
		Appointments []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"appointments"`
	}
	if err := json.Unmarshal(body, &queue); err != nil {
		return
	}
	var activeIDs []string
	for _, a := range queue.Appointments {
		switch a.Status {
		case "scheduled", "confirmed", "in-progress":
			activeIDs = append(activeIDs, a.ID)
		}
	}
	if len(activeIDs) == 0 {
		return
	}

	start := time.Now()
	switch rng.Intn(3) {
	case 0: // single-step move
		id := activeIDs[rng.Intn(len(activeIDs))]
		direction := "move-up"
		if rng.Intn(2) == 0 {
			direction = "move-down"
		}
		url := fmt.Sprintf("%s/appointments/%s/%s", baseURL, id, direction)
		status, _ := doRequest(ctx, client, operator, http.MethodPost, url, nil)
		metricsByOp["move"].record(time.Since(start), status)

	case 1: // bulk reorder with a shuffled view
		shuffled := make([]string, len(activeIDs))
		copy(shuffled, activeIDs)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		payload, _ := json.Marshal(map[string]any{"ordered_ids": shuffled})
		status, _ := doRequest(ctx, client, operator, http.MethodPut, queueURL+"/order", payload)
		metricsByOp["reorder"].record(time.Since(start), status)

	default: // status transition, occasionally terminal
		id := activeIDs[rng.Intn(len(activeIDs))]
		target := "confirmed"
		if rng.Intn(10) == 0 {
			target = "cancelled"
		}
		payload, _ := json.Marshal(map[string]string{"status": target})
		url := fmt.Sprintf("%s/appointments/%s/status", baseURL, id)
		status, _ := doRequest(ctx, client, operator, http.MethodPost, url, payload)
		metricsByOp["status"].record(time.Since(start), status)
	}
}

func doRequest(ctx context.Context, client *http.Client, operator uuid.UUID, method, url string, payload []byte) (int, []byte) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", operator.String())
	req.Header.Set("X-User-Role", "operator")

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, body
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
