package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/resilience"
)

const (
	componentHTTPHandler = "http_server"

	msgReserved           = "reservation confirmed"
	msgPaymentUnavailable = "payment could not be confirmed, reservation cancelled"
	msgInternal           = "an unexpected error occurred"
)

type StockReader interface {
	GetStock(ctx context.Context, productID, locationID string) (*domain.StockRecord, error)
}

type Reserver interface {
	Reserve(ctx context.Context, req domain.ReservationRequest) (*domain.StockRecord, error)
}

type Adjuster interface {
	Adjust(ctx context.Context, req domain.AdjustmentRequest) (*domain.StockRecord, error)
}

// StateReporter exposes a dependency's breaker state for /health.
type StateReporter interface {
	State() resilience.State
}

type HTTPHandler struct {
	query        StockReader
	reservations Reserver
	adjustments  Adjuster
	payment      StateReporter
	log          *zap.Logger
	metrics      *observability.Metrics
}

func NewHTTPHandler(query StockReader, reservations Reserver, adjustments Adjuster, payment StateReporter, log *zap.Logger, metrics *observability.Metrics) *HTTPHandler {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NewMetrics(nil)
	}
	return &HTTPHandler{
		query:        query,
		reservations: reservations,
		adjustments:  adjustments,
		payment:      payment,
		log:          log.With(zap.String("component", componentHTTPHandler)),
		metrics:      metrics,
	}
}

// Register mounts the inventory routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	h.handle(mux, "GET /inventory/stores/{locationId}/products/{productId}", h.GetStock)
	h.handle(mux, "POST /inventory/reservations", h.Reserve)
	h.handle(mux, "PUT /inventory/stock-updates", h.UpdateStock)
	h.handle(mux, "GET /health", h.HealthCheck)
}

type stockResponse struct {
	SkuID      string    `json:"skuId"`
	ProductID  string    `json:"productId"`
	StoreID    string    `json:"storeId"`
	StockLevel int       `json:"stockLevel"`
	Version    int64     `json:"version"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toStockResponse(rec *domain.StockRecord) stockResponse {
	return stockResponse{
		SkuID:      rec.Key().String(),
		ProductID:  rec.ProductID,
		StoreID:    rec.LocationID,
		StockLevel: rec.Quantity,
		Version:    rec.Version,
		UpdatedAt:  rec.UpdatedAt,
	}
}

func (h *HTTPHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	rec, err := h.query.GetStock(r.Context(), r.PathValue("productId"), r.PathValue("locationId"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockResponse(rec))
}

type ReservationHTTPRequest struct {
	TransactionID string `json:"transactionId"`
	ProductID     string `json:"productId"`
	StoreID       string `json:"storeId"`
	Quantity      int    `json:"quantity"`
}

type ReservationHTTPResponse struct {
	Message       string `json:"message"`
	StockLevel    int    `json:"stockLevel"`
	TransactionID string `json:"transactionId"`
}

func (h *HTTPHandler) Reserve(w http.ResponseWriter, r *http.Request) {
	var req ReservationHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.reservations.Reserve(r.Context(), domain.ReservationRequest{
		TransactionID: req.TransactionID,
		ProductID:     req.ProductID,
		LocationID:    req.StoreID,
		Quantity:      req.Quantity,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ReservationHTTPResponse{
		Message:       msgReserved,
		StockLevel:    rec.Quantity,
		TransactionID: req.TransactionID,
	})
}

type StockUpdateHTTPRequest struct {
	ProductID      string `json:"productId"`
	StoreID        string `json:"storeId"`
	QuantityChange int    `json:"quantityChange"`
}

func (h *HTTPHandler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var req StockUpdateHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, err := h.adjustments.Adjust(r.Context(), domain.AdjustmentRequest{
		ProductID:  req.ProductID,
		LocationID: req.StoreID,
		Delta:      req.QuantityChange,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toStockResponse(rec))
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	if h.payment != nil {
		state := h.payment.State()
		body["payment"] = state.String()
		if state == resilience.StateOpen {
			body["status"] = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, body)
}

type errorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
}

// writeDomainError maps business errors to statuses. Anything unrecognized is
// logged and answered with a generic message.
func (h *HTTPHandler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, validationMessage(err))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrWouldGoNegative),
		errors.Is(err, domain.ErrDuplicateTransaction):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPaymentUnavailable):
		writeError(w, http.StatusServiceUnavailable, msgPaymentUnavailable)
	default:
		observability.LoggerFrom(r.Context(), h.log).Error("http_internal_error",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// wireFields renames domain fields to the names clients send.
var wireFields = map[string]string{
	"locationId": "storeId",
}

func validationMessage(err error) string {
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		return err.Error()
	}
	field := verr.Field
	if wire, ok := wireFields[field]; ok {
		field = wire
	}
	return field + " " + verr.Reason
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
	})
}
