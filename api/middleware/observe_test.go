package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

func testActor(role enums.ActorRole) types.Actor {
	actor := types.Actor{ID: uuid.New(), Role: role}
	if role == enums.ActorRoleProvider {
		id := uuid.New()
		actor.ProviderID = &id
	}
	return actor
}

func TestObserveLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(Observe(nil, m))
	r.Get("/api/v1/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/orders/def", nil))

	if n := testutil.CollectAndCount(reg, "kitstock_http_request_duration_seconds"); n != 1 {
		t.Fatalf("expected a single route series, got %d", n)
	}
}

func TestObserveLogsAccessLine(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: &buf})

	r := chi.NewRouter()
	r.Use(Observe(logg, nil))
	r.Post("/api/v1/cart/reservations", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("busy"))
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/cart/reservations", nil))

	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["level"] != "warn" {
		t.Fatalf("5xx should log at warn, got %v", entry["level"])
	}
	if entry["route"] != "/api/v1/cart/reservations" || entry["status"] != float64(503) || entry["bytes"] != float64(4) {
		t.Fatalf("unexpected access fields %v", entry)
	}
}

func TestObserveUnmatchedRoute(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	if got := routePattern(r); got != "unmatched" {
		t.Fatalf("route pattern %q", got)
	}
}
