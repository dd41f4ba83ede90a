package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rl1809/inventory-reservation/internal/adapter/lock"
	"github.com/rl1809/inventory-reservation/internal/adapter/storage"
	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/core/service"
	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/resilience"
)

// Mock PaymentConfirmer
type mockPayments struct {
	approve atomic.Bool
}

func (m *mockPayments) Confirm(ctx context.Context, transactionID string) bool {
	return m.approve.Load()
}

type fixedState resilience.State

func (s fixedState) State() resilience.State { return resilience.State(s) }

type failingReader struct{}

func (failingReader) GetStock(context.Context, string, string) (*domain.StockRecord, error) {
	return nil, errors.New("dial tcp 10.0.0.5:3306: connection refused")
}

type testServer struct {
	mux      *http.ServeMux
	payments *mockPayments
	metrics  *observability.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ledger := service.NewLedger(storage.NewMemoryStockStore())
	_, err := ledger.Seed(context.Background(), []domain.StockRecord{
		{ProductID: "P001", LocationID: "S001", Quantity: 10},
		{ProductID: "P001", LocationID: "S002", Quantity: 5},
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	payments := &mockPayments{}
	payments.approve.Store(true)
	locks := lock.NewKeyedMutex(nil)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	h := NewHTTPHandler(
		service.NewQueryService(ledger),
		service.NewReservationService(ledger, locks, payments, service.WithIdempotency(storage.NewMemoryIdempotencyStore())),
		service.NewAdjustmentService(ledger, locks),
		fixedState(resilience.StateClosed),
		nil,
		metrics,
	)
	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{mux: mux, payments: payments, metrics: metrics}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestGetStock(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/inventory/stores/S001/products/P001", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	body := decode[stockResponse](t, rec)
	if body.StockLevel != 10 || body.StoreID != "S001" || body.SkuID != "S001_P001" {
		t.Errorf("unexpected body %+v", body)
	}
	if rec.Header().Get(headerRequestID) == "" {
		t.Error("expected a generated request id")
	}
}

func TestGetStock_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodGet, "/inventory/stores/S009/products/P001", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decode[errorResponse](t, rec)
	if body.Status != http.StatusNotFound || body.Error != "Not Found" || body.Message == "" {
		t.Errorf("unexpected error body %+v", body)
	}
}

func TestReserve_Success(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/inventory/reservations",
		`{"transactionId":"tx-1","productId":"P001","storeId":"S001","quantity":3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	body := decode[ReservationHTTPResponse](t, rec)
	if body.StockLevel != 7 || body.TransactionID != "tx-1" || body.Message != msgReserved {
		t.Errorf("unexpected body %+v", body)
	}

	if v := testutil.ToFloat64(s.metrics.HTTPRequests.WithLabelValues(http.MethodPost, "POST /inventory/reservations", "200")); v != 1 {
		t.Errorf("expected request metric 1, got %v", v)
	}
}

func TestReserve_StatusMapping(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		approve bool
		want    int
	}{
		{"insufficient stock", `{"transactionId":"tx-a","productId":"P001","storeId":"S001","quantity":12}`, true, http.StatusConflict},
		{"unknown key", `{"transactionId":"tx-b","productId":"P404","storeId":"S001","quantity":1}`, true, http.StatusNotFound},
		{"payment unavailable", `{"transactionId":"tx-c","productId":"P001","storeId":"S001","quantity":1}`, false, http.StatusServiceUnavailable},
		{"zero quantity", `{"transactionId":"tx-d","productId":"P001","storeId":"S001","quantity":0}`, true, http.StatusBadRequest},
		{"missing transaction", `{"productId":"P001","storeId":"S001","quantity":1}`, true, http.StatusBadRequest},
		{"malformed body", `{"quantity":"three"}`, true, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.payments.approve.Store(tc.approve)

			rec := s.do(http.MethodPost, "/inventory/reservations", tc.body)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body)
			}

			stock := decode[stockResponse](t, s.do(http.MethodGet, "/inventory/stores/S001/products/P001", ""))
			if stock.StockLevel != 10 {
				t.Errorf("rejected reservation changed stock to %d", stock.StockLevel)
			}
		})
	}
}

func TestReserve_ValidationNamesWireField(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPost, "/inventory/reservations", `{"transactionId":"tx-1","productId":"P001","quantity":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decode[errorResponse](t, rec); body.Message != "storeId is required" {
		t.Errorf("expected message to name storeId, got %q", body.Message)
	}

	rec = s.do(http.MethodPut, "/inventory/stock-updates", `{"productId":"P001","quantityChange":1}`)
	if body := decode[errorResponse](t, rec); rec.Code != http.StatusBadRequest || body.Message != "storeId is required" {
		t.Errorf("expected 400 naming storeId, got %d %q", rec.Code, body.Message)
	}
}

func TestReserve_DuplicateTransaction(t *testing.T) {
	s := newTestServer(t)
	body := `{"transactionId":"tx-1","productId":"P001","storeId":"S001","quantity":1}`

	if rec := s.do(http.MethodPost, "/inventory/reservations", body); rec.Code != http.StatusOK {
		t.Fatalf("first reservation: expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodPost, "/inventory/reservations", body); rec.Code != http.StatusConflict {
		t.Errorf("duplicate: expected 409, got %d", rec.Code)
	}
}

func TestUpdateStock(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(http.MethodPut, "/inventory/stock-updates", `{"productId":"P003","storeId":"S001","quantityChange":20}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if body := decode[stockResponse](t, rec); body.StockLevel != 20 {
		t.Errorf("expected created record with 20, got %+v", body)
	}

	rec = s.do(http.MethodPut, "/inventory/stock-updates", `{"productId":"P001","storeId":"S002","quantityChange":-10}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for negative result, got %d", rec.Code)
	}
}

func TestInternalErrorIsGeneric(t *testing.T) {
	h := NewHTTPHandler(failingReader{}, nil, nil, nil, nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inventory/stores/S001/products/P001", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "10.0.0.5") {
		t.Errorf("internal detail leaked: %s", rec.Body)
	}
	if body := decode[errorResponse](t, rec); body.Message != msgInternal {
		t.Errorf("expected generic message, got %q", body.Message)
	}
}

func TestHealthCheck_ReportsBreaker(t *testing.T) {
	h := NewHTTPHandler(nil, nil, nil, fixedState(resilience.StateOpen), nil, nil)
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	body := decode[map[string]string](t, rec)
	if body["payment"] != "open" || body["status"] != "degraded" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodDelete, "/inventory/reservations", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
