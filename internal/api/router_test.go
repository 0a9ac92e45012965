package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/eligibility"
	processcheck "eligibility-service/internal/workers/eligibility/process-check"
)

// ==========================
// Test Helpers
// ==========================

type fakeSubmitter struct {
	mu        sync.Mutex
	submitted []processcheck.CheckRequest
	err       error
}

func (f *fakeSubmitter) Submit(req processcheck.CheckRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, req)
	return nil
}

func newTestRouter(t *testing.T, submitter Submitter) *Router {
	registry := eligibility.NewRegistry(eligibility.GenericCheckerFunc(
		func(ctx context.Context, cardID, planLabel string) (eligibility.Status, error) {
			return eligibility.NotEligible, nil
		}), logger.NewNoOpLogger())
	registry.Register("amil", eligibility.CheckerFunc(func(ctx context.Context, cardID string) (eligibility.Status, error) {
		return eligibility.Eligible, nil
	}))

	router := NewRouter(Options{
		Info:      ServiceInfo{Name: "robo_veia", Version: "1.0.0", Environment: "test"},
		Submitter: submitter,
		Plans:     registry,
		Gatherer:  prometheus.NewRegistry(),
	}, logger.NewTestLogger(t))
	router.RegisterRoutes()
	return router
}

func doRequest(t *testing.T, r *Router, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := r.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

// ==========================
// POST /webhook/in
// ==========================

func TestWebhookIn_Accepted(t *testing.T) {
	submitter := &fakeSubmitter{}
	router := newTestRouter(t, submitter)

	resp, body := doRequest(t, router, http.MethodPost, "/webhook/in",
		`{"numero_carterinha":"086955681","plan_name":"amil","numero":"77"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got WebhookResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, WebhookResponse{Success: true, Message: "Processamento iniciado"}, got)

	require.Len(t, submitter.submitted, 1)
	req := submitter.submitted[0]
	assert.Equal(t, "086955681", req.CardID)
	assert.Equal(t, "amil", req.PlanName)
	assert.Equal(t, "77", req.CallbackID)
	assert.NotEmpty(t, req.RequestID)
}

func TestWebhookIn_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"missing card", `{"plan_name":"amil","numero":"1"}`, "numero_carterinha"},
		{"missing plan", `{"numero_carterinha":"1","numero":"1"}`, "plan_name"},
		{"missing callback id", `{"numero_carterinha":"1","plan_name":"amil"}`, "numero"},
		{"numeric card", `{"numero_carterinha":123,"plan_name":"amil","numero":"1"}`, "numero_carterinha"},
		{"malformed json", `{"numero_carterinha":`, "body"},
		{"empty body", ``, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			submitter := &fakeSubmitter{}
			router := newTestRouter(t, submitter)

			resp, body := doRequest(t, router, http.MethodPost, "/webhook/in", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
			var got ValidationErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, "VALIDATION_FAILED", got.Code)
			require.NotEmpty(t, got.Detail)
			fields := make([]string, 0, len(got.Detail))
			for _, d := range got.Detail {
				fields = append(fields, d.Field)
			}
			assert.Contains(t, fields, tt.wantField)
			assert.Empty(t, submitter.submitted)
		})
	}
}

func TestWebhookIn_SchedulerClosed(t *testing.T) {
	router := newTestRouter(t, &fakeSubmitter{err: errors.New("RUNNER_CLOSED")})

	resp, _ := doRequest(t, router, http.MethodPost, "/webhook/in",
		`{"numero_carterinha":"1","plan_name":"amil","numero":"1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebhookIn_RespondsBeforeProcessing(t *testing.T) {
	release := make(chan struct{})
	done := make(chan struct{})
	submitter := submitterFunc(func(req processcheck.CheckRequest) error {
		go func() {
			<-release
			close(done)
		}()
		return nil
	})
	router := newTestRouter(t, submitter)

	resp, _ := doRequest(t, router, http.MethodPost, "/webhook/in",
		`{"numero_carterinha":"1","plan_name":"amil","numero":"1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-done:
		t.Fatal("processing finished before the acknowledgment")
	default:
	}
	close(release)
	<-done
}

type submitterFunc func(req processcheck.CheckRequest) error

func (f submitterFunc) Submit(req processcheck.CheckRequest) error { return f(req) }

// ==========================
// Metadata endpoints
// ==========================

func TestHealthCheck(t *testing.T) {
	resp, body := doRequest(t, newTestRouter(t, &fakeSubmitter{}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got HealthResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "healthy", got.Status)
	assert.Equal(t, "robo_veia", got.Service)
	assert.Equal(t, []string{"amil", eligibility.GenericPlanSentinel}, got.SupportedPlans)
}

func TestListPlans(t *testing.T) {
	resp, body := doRequest(t, newTestRouter(t, &fakeSubmitter{}), http.MethodGet, "/plans", "")

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got PlansResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, []string{"amil", eligibility.GenericPlanSentinel}, got.SupportedPlans)
}

func TestMetadataEndpoints(t *testing.T) {
	router := newTestRouter(t, &fakeSubmitter{})

	tests := []struct {
		path     string
		contains string
	}{
		{"/", `"service":"robo_veia"`},
		{"/ready", `"status":"ready"`},
		{"/debug", `"environment":"test"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := doRequest(t, router, http.MethodGet, tt.path, "")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	resp, _ := doRequest(t, newTestRouter(t, &fakeSubmitter{}), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	router := newTestRouter(t, &fakeSubmitter{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://example.com")

	resp, err := router.App.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
