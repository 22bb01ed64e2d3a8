package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/jobs"
	"github.com/use-agent/harvest/metrics"
	"github.com/use-agent/harvest/models"
)

const apiKey = "test-key"

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{apiKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

// idleRunner is never started, so submitted jobs stay queued.
func idleRunner(queueSize int) *jobs.Runner {
	return jobs.NewRunner(nil, nil, jobs.NewStore(16, time.Hour), jobs.Options{QueueSize: queueSize})
}

func do(t *testing.T, h http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestHealth_NoAuth(t *testing.T) {
	r := NewRouter(idleRunner(4), nil, testConfig(), time.Now())

	w := do(t, r, http.MethodGet, "/api/v1/health", "", false)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[models.HealthResponse](t, w)
	if got.Status != "healthy" || got.QueueSize != 4 {
		t.Errorf("health = %+v", got)
	}
}

func TestPostHarvest(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		authed   bool
		wantCode int
		wantErr  string
	}{
		{"accepted", `{"search_url":"https://shop.test/search?q=panels"}`, true, http.StatusAccepted, ""},
		{"missing key", `{"search_url":"https://shop.test/search"}`, false, http.StatusUnauthorized, models.ErrCodeUnauthorized},
		{"missing url", `{}`, true, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"non-http url", `{"search_url":"ftp://shop.test/search"}`, true, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"limit out of range", `{"search_url":"https://shop.test/search","max_entries":5000}`, true, http.StatusBadRequest, models.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(idleRunner(4), nil, testConfig(), time.Now())

			w := do(t, r, http.MethodPost, "/api/v1/harvest", tt.body, tt.authed)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantCode, w.Body.String())
			}
			got := decode[models.HarvestResponse](t, w)
			if tt.wantErr == "" {
				if got.ID == "" || got.Status != models.JobQueued {
					t.Errorf("response = %+v, want a queued job", got)
				}
				return
			}
			if got.Error == nil || got.Error.Code != tt.wantErr {
				t.Errorf("error = %+v, want %s", got.Error, tt.wantErr)
			}
		})
	}
}

func TestGetHarvest(t *testing.T) {
	r := NewRouter(idleRunner(4), nil, testConfig(), time.Now())

	w := do(t, r, http.MethodPost, "/api/v1/harvest", `{"search_url":"https://shop.test/search"}`, true)
	id := decode[models.HarvestResponse](t, w).ID

	w = do(t, r, http.MethodGet, "/api/v1/harvest/"+id, "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got := decode[models.HarvestStatusResponse](t, w)
	if got.ID != id || got.Status != models.JobQueued || got.SearchURL != "https://shop.test/search" {
		t.Errorf("status response = %+v", got)
	}

	w = do(t, r, http.MethodGet, "/api/v1/harvest/unknown", "", true)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d, want 404", w.Code)
	}
}

func TestPostHarvest_QueueFull(t *testing.T) {
	r := NewRouter(idleRunner(1), nil, testConfig(), time.Now())
	body := `{"search_url":"https://shop.test/search"}`

	if w := do(t, r, http.MethodPost, "/api/v1/harvest", body, true); w.Code != http.StatusAccepted {
		t.Fatalf("first submit status = %d", w.Code)
	}
	w := do(t, r, http.MethodPost, "/api/v1/harvest", body, true)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if got := decode[models.HarvestResponse](t, w); got.Error == nil || got.Error.Code != models.ErrCodeQueueFull {
		t.Errorf("error = %+v, want %s", got.Error, models.ErrCodeQueueFull)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.5, Burst: 1}
	r := NewRouter(idleRunner(4), nil, cfg, time.Now())

	if w := do(t, r, http.MethodGet, "/api/v1/harvest/x", "", true); w.Code != http.StatusNotFound {
		t.Fatalf("first request status = %d, want 404", w.Code)
	}
	w := do(t, r, http.MethodGet, "/api/v1/harvest/x", "", true)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, want 2", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.IncRun(models.JobCompleted)
	r := NewRouter(idleRunner(4), m, testConfig(), time.Now())

	w := do(t, r, http.MethodGet, "/metrics", "", false)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `harvest_runs_total{status="completed"} 1`) {
		t.Errorf("metrics output missing run counter:\n%s", w.Body.String())
	}
}
