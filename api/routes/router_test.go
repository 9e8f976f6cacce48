package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/kitstock-backend/internal/availability"
	"github.com/angelmondragon/kitstock-backend/internal/cart"
	"github.com/angelmondragon/kitstock-backend/internal/checkout"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/orders"
	"github.com/angelmondragon/kitstock-backend/internal/providers"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	pkgAuth "github.com/angelmondragon/kitstock-backend/pkg/auth"
	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/db/dbtest"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	"github.com/angelmondragon/kitstock-backend/pkg/outbox"
	"github.com/angelmondragon/kitstock-backend/pkg/types"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type memoryIdempotency struct {
	data map[string]string
}

func (m *memoryIdempotency) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryIdempotency) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryIdempotency) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryIdempotency) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryIdempotency) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

type counterSequence struct{ n atomic.Int64 }

func (c *counterSequence) NextSequence(context.Context, string) (int64, error) {
	return c.n.Add(1), nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "kitstock-test", ExpirationMinutes: 30},
	}
}

type harness struct {
	cfg    *config.Config
	router http.Handler
	reg    *prometheus.Registry
}

func newHarness(t *testing.T) harness {
	t.Helper()
	cfg := testConfig()
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	reg := prometheus.NewRegistry()
	inventory := metrics.NewInventoryMetrics(reg)

	client := dbtest.Client(t)
	conn := client.DB()
	pub := outbox.NewService(outbox.NewRepository(conn), logg)
	setRepo := sets.NewRepository(conn)
	ledgerRepo := ledger.NewRepository(conn)
	holds := availability.NewRepository(conn)

	ledgerSvc, err := ledger.NewService(client, ledgerRepo, pub, logg, inventory)
	require.NoError(t, err)
	catalog, err := sets.NewService(client, setRepo, ledgerSvc)
	require.NoError(t, err)
	avail, err := availability.NewService(setRepo, holds)
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.Deps{
		Tx:           client,
		Reservations: cart.NewRepository(conn),
		Sets:         setRepo,
		Parts:        ledgerRepo,
		Holds:        holds,
		Outbox:       pub,
		Logger:       logg,
		Metrics:      inventory,
	})
	require.NoError(t, err)
	providerSvc, err := providers.NewService(client, providers.NewRepository(conn), setRepo, pub, uuid.Nil, logg)
	require.NoError(t, err)
	stock := orders.Stock{Sets: setRepo, Ledger: ledgerSvc, Usage: providerSvc}
	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(client, orderRepo, stock, pub, logg, inventory)
	require.NoError(t, err)
	checkoutSvc, err := checkout.NewService(checkout.Deps{
		Tx:        client,
		Orders:    orderRepo,
		Sets:      setRepo,
		Stock:     stock,
		Holds:     cartSvc,
		Offerings: providerSvc,
		Sequence:  &counterSequence{},
		Outbox:    pub,
		Logger:    logg,
		Metrics:   inventory,
	})
	require.NoError(t, err)

	router := NewRouter(cfg, logg, Infra{
		DB:          client,
		Redis:       stubPinger{},
		Idempotency: &memoryIdempotency{data: map[string]string{}},
		Gatherer:    reg,
		HTTPMetrics: metrics.NewHTTPMetrics(reg),
	}, Services{
		Availability: avail,
		Cart:         cartSvc,
		Checkout:     checkoutSvc,
		Orders:       orderSvc,
		Ledger:       ledgerSvc,
		Catalog:      catalog,
		Providers:    providerSvc,
	})
	return harness{cfg: cfg, router: router, reg: reg}
}

func (h harness) token(t *testing.T, role enums.ActorRole, providerID *uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.Mint(h.cfg.JWT, time.Now(), types.Actor{
		ID:         uuid.New(),
		Role:       role,
		ProviderID: providerID,
	})
	require.NoError(t, err)
	return token
}

func (h harness) do(method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp := httptest.NewRecorder()
	h.router.ServeHTTP(resp, req)
	return resp
}

func data(t *testing.T, resp *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope), resp.Body.String())
	return envelope.Data
}

func TestHealthAndMetrics(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/live", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/health/ready", "", "", nil).Code)

	resp := h.do(http.MethodGet, "/metrics", "", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "kitstock_http_request_duration_seconds")
}

func TestPrivateRoutesRequireJWT(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/orders", "", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/cart/reservations", "", "", nil).Code)
}

func TestRoleGroups(t *testing.T) {
	h := newHarness(t)
	customer := h.token(t, enums.ActorRoleCustomer, nil)
	providerID := uuid.New()
	provider := h.token(t, enums.ActorRoleProvider, &providerID)

	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/admin/orders", customer, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/provider/offerings", customer, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/api/v1/cart/reservations", provider, "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/provider/offerings", provider, "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/provider/orders", provider, "", nil).Code)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, enums.ActorRoleAdmin, nil)
	customer := h.token(t, enums.ActorRoleCustomer, nil)

	resp := h.do(http.MethodPost, "/api/v1/admin/parts", admin, `{"sku":"BRK-1","name":"Bracket","initial_stock":10}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	partID := data(t, resp)["id"].(string)

	resp = h.do(http.MethodPost, "/api/v1/admin/sets", admin, `{"name":"Shelf kit","base_price":"25","lines":[{"part_id":"`+partID+`","quantity_per_set":2}]}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	setID := data(t, resp)["id"].(string)

	resp = h.do(http.MethodGet, "/api/v1/sets/"+setID+"/availability", "", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.EqualValues(t, 5, data(t, resp)["available"])

	resp = h.do(http.MethodPost, "/api/v1/cart/reservations", customer, `{"set_id":"`+setID+`","quantity":2}`, map[string]string{"Idempotency-Key": "hold-1"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = h.do(http.MethodGet, "/api/v1/sets/"+setID+"/availability", "", "", nil)
	assert.EqualValues(t, 3, data(t, resp)["available"])

	orderBody := `{"items":[{"set_id":"` + setID + `","quantity":2,"unit_price":"25"}]}`
	resp = h.do(http.MethodPost, "/api/v1/orders", customer, orderBody, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code, "idempotency key is required")

	headers := map[string]string{"Idempotency-Key": "order-1"}
	first := h.do(http.MethodPost, "/api/v1/orders", customer, orderBody, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	orderID := data(t, first)["order_id"].(string)
	assert.Equal(t, "KS-00000001", data(t, first)["order_number"])

	replay := h.do(http.MethodPost, "/api/v1/orders", customer, orderBody, headers)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, first.Body.String(), replay.Body.String())

	resp = h.do(http.MethodGet, "/api/v1/sets/"+setID+"/availability", "", "", nil)
	assert.EqualValues(t, 3, data(t, resp)["available"], "hold consumed, stock 6")

	resp = h.do(http.MethodGet, "/api/v1/orders/"+orderID, customer, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, string(enums.OrderStatusPendingPayment), data(t, resp)["status"])

	other := h.token(t, enums.ActorRoleCustomer, nil)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/orders/"+orderID, other, "", nil).Code)

	cancel := map[string]string{"Idempotency-Key": "cancel-1"}
	resp = h.do(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", customer, `{"status":"cancelled"}`, cancel)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, true, data(t, resp)["stock_restored"])

	resp = h.do(http.MethodPatch, "/api/v1/orders/"+orderID+"/status", customer, `{"status":"cancelled"}`, map[string]string{"Idempotency-Key": "cancel-2"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = h.do(http.MethodGet, "/api/v1/sets/"+setID+"/availability", "", "", nil)
	assert.EqualValues(t, 5, data(t, resp)["available"])

	resp = h.do(http.MethodGet, "/api/v1/admin/parts/"+partID+"/transactions", admin, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, data(t, resp)["items"], 3)

	resp = h.do(http.MethodDelete, "/api/v1/admin/orders/"+orderID+"?restore_stock=true", admin, "", nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, false, data(t, resp)["stock_restored"])
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/v1/orders/"+orderID, admin, "", nil).Code)
}

func TestReserveBeyondStockConflicts(t *testing.T) {
	h := newHarness(t)
	admin := h.token(t, enums.ActorRoleAdmin, nil)
	customer := h.token(t, enums.ActorRoleCustomer, nil)

	resp := h.do(http.MethodPost, "/api/v1/admin/parts", admin, `{"sku":"S-1","name":"Spring","initial_stock":3}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	partID := data(t, resp)["id"].(string)
	resp = h.do(http.MethodPost, "/api/v1/admin/sets", admin, `{"name":"Spring kit","lines":[{"part_id":"`+partID+`","quantity_per_set":1}]}`, nil)
	require.Equal(t, http.StatusCreated, resp.Code)
	setID := data(t, resp)["id"].(string)

	resp = h.do(http.MethodPost, "/api/v1/cart/reservations", customer, `{"set_id":"`+setID+`","quantity":4}`, map[string]string{"Idempotency-Key": "k"})
	require.Equal(t, http.StatusConflict, resp.Code)
	assert.Contains(t, resp.Body.String(), "INSUFFICIENT_STOCK")
}
