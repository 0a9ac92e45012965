// test/e2e/e2e_test.go
package e2e

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"eligibility-service/internal/api"
	"eligibility-service/internal/common/config"
	"eligibility-service/internal/common/database"
	"eligibility-service/internal/common/logger"
	"eligibility-service/internal/common/observability"
	"eligibility-service/internal/common/tasks"
	"eligibility-service/internal/eligibility"
	processcheck "eligibility-service/internal/workers/eligibility/process-check"
	sendcallback "eligibility-service/internal/workers/eligibility/send-callback"
)

// ==========================
// Stack
// ==========================

type collector struct {
	mu       sync.Mutex
	payloads []map[string]string
	failures int
}

func (c *collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var payload map[string]string
	_ = json.Unmarshal(body, &payload)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failures > 0 {
		c.failures--
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	c.payloads = append(c.payloads, payload)
	w.WriteHeader(http.StatusOK)
}

func (c *collector) received() []map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]string(nil), c.payloads...)
}

type stack struct {
	router    *api.Router
	runner    *tasks.Runner
	collector *collector
	redis     *database.RedisClient
	spans     *tracetest.SpanRecorder
	cfg       *config.Config
}

const stackYAML = `
app:
  name: robo_veia
  environment: e2e
callback:
  url: %s
  timeout: 2
  max_retries: 3
checker:
  provider: simulated
  min_delay: 0
  max_delay: 0
  step_delay: 0
  always_eligible:
    - "086955681"
plans:
  amil:
    enabled: true
    login: e2e-user
    password: e2e-secret
redis:
  enabled: true
  address: %s
  overrides_key: eligibility:always_eligible
logging:
  level: debug
  format: console
`

func newStack(t *testing.T, col *collector) *stack {
	t.Helper()

	srv := httptest.NewServer(col)
	t.Cleanup(srv.Close)
	mr := miniredis.RunT(t)
	t.Setenv("WEBHOOK_CALLBACK_URL", srv.URL)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fmt.Sprintf(stackYAML, srv.URL, mr.Addr())), 0o600))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)

	log := logger.NewTestLogger(t)

	spans := tracetest.NewSpanRecorder()
	obs, err := observability.New(cfg.App.Name, observability.Options{
		MetricsEnabled: true,
		TracingEnabled: true,
		SampleRatio:    1,
		Registerer:     prometheus.NewRegistry(),
		SpanProcessors: []sdktrace.SpanProcessor{spans},
	})
	require.NoError(t, err)
	t.Cleanup(obs.Shutdown)

	redis, err := database.NewRedis(cfg.Redis)
	require.NoError(t, err)
	require.NoError(t, redis.Ping(context.Background()))
	t.Cleanup(func() { _ = redis.Close() })

	static := eligibility.NewStaticOverrides(cfg.Checker.AlwaysEligible...)
	overrides := eligibility.NewRedisOverrides(static, redis, cfg.Redis.OverridesKey, log)

	provider, err := eligibility.NewProvider(cfg.Checker, overrides, log)
	require.NoError(t, err)
	registry, err := eligibility.BuildRegistry(cfg, provider, log)
	require.NoError(t, err)

	sender := sendcallback.NewHandler(sendcallback.LoadConfig(cfg.Callback), log,
		sendcallback.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	runner := tasks.NewRunner(log)
	orchestrator := processcheck.NewHandler(registry, sender, runner, log,
		processcheck.WithTracer(obs.Tracer()),
		processcheck.WithRecorder(obs),
		processcheck.WithOverrides(overrides),
	)

	router := api.NewRouter(api.Options{
		Info:      api.ServiceInfo{Name: cfg.App.Name, Version: cfg.App.Version, Environment: cfg.App.Environment},
		Submitter: orchestrator,
		Plans:     registry,
	}, log)
	router.RegisterRoutes()

	return &stack{router: router, runner: runner, collector: col, redis: redis, spans: spans, cfg: cfg}
}

func (s *stack) post(t *testing.T, body string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/in", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.router.App.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func (s *stack) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, s.runner.Shutdown(ctx))
}

func webhook(card, plan, callback string) string {
	return fmt.Sprintf(`{"numero_carterinha":%q,"plan_name":%q,"numero":%q}`, card, plan, callback)
}

// ==========================
// Scenarios
// ==========================

func TestFullE2E(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping E2E tests in short mode")
	}

	t.Run("override card on registered plan", func(t *testing.T) {
		s := newStack(t, &collector{})

		assert.Equal(t, http.StatusOK, s.post(t, webhook("086955681", "amil", "77")))
		s.drain(t)

		assert.Equal(t, []map[string]string{{"numero": "77", "status": "elegivel"}}, s.collector.received())
	})

	t.Run("redis override card on unknown plan", func(t *testing.T) {
		s := newStack(t, &collector{})
		require.NoError(t, s.redis.AddMembers(context.Background(), s.cfg.Redis.OverridesKey, "555000111"))

		assert.Equal(t, http.StatusOK, s.post(t, webhook("555000111", "Bradesco Saude", "cb-9")))
		s.drain(t)

		assert.Equal(t, []map[string]string{{"numero": "cb-9", "status": "elegivel"}}, s.collector.received())
	})

	t.Run("seeded card gets its deterministic status", func(t *testing.T) {
		s := newStack(t, &collector{})
		card := "123456789"

		assert.Equal(t, http.StatusOK, s.post(t, webhook(card, "AMIL", "cb-1")))
		s.drain(t)

		want := string(eligibility.SeededStatus(card, eligibility.DefaultEligibleWeight))
		assert.Equal(t, []map[string]string{{"numero": "cb-1", "status": want}}, s.collector.received())
	})

	t.Run("invalid body schedules nothing", func(t *testing.T) {
		s := newStack(t, &collector{})

		assert.Equal(t, http.StatusUnprocessableEntity, s.post(t, `{"plan_name":"amil","numero":"1"}`))
		s.drain(t)

		assert.Empty(t, s.collector.received())
	})

	t.Run("callback retried until accepted", func(t *testing.T) {
		s := newStack(t, &collector{failures: 2})

		assert.Equal(t, http.StatusOK, s.post(t, webhook("086955681", "amil", "retry-1")))
		s.drain(t)

		assert.Equal(t, []map[string]string{{"numero": "retry-1", "status": "elegivel"}}, s.collector.received())
	})

	t.Run("concurrent requests each get one callback", func(t *testing.T) {
		s := newStack(t, &collector{})

		const n = 25
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.Equal(t, http.StatusOK, s.post(t, webhook(fmt.Sprintf("%09d", i), "amil", fmt.Sprintf("cb-%d", i))))
			}(i)
		}
		wg.Wait()
		s.drain(t)

		got := s.collector.received()
		require.Len(t, got, n)
		seen := make(map[string]bool, n)
		for _, p := range got {
			seen[p["numero"]] = true
			assert.Contains(t, []string{"elegivel", "nao_elegivel"}, p["status"])
		}
		assert.Len(t, seen, n)
	})

	t.Run("pipeline is traced", func(t *testing.T) {
		s := newStack(t, &collector{})

		assert.Equal(t, http.StatusOK, s.post(t, webhook("086955681", "amil", "trace-1")))
		s.drain(t)

		names := make(map[string]bool)
		for _, span := range s.spans.Ended() {
			names[span.Name()] = true
		}
		assert.True(t, names["eligibility.process"])
		assert.True(t, names["eligibility.check"])
		assert.True(t, names["eligibility.deliver"])
	})
}
