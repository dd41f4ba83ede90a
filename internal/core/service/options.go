package service

import (
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-reservation/internal/observability"
	"github.com/rl1809/inventory-reservation/internal/port"
)

const (
	spanPrefix = "Inventory."

	opQuery   = "query"
	opReserve = "reserve"
	opAdjust  = "adjust"
)

var tracer = otel.Tracer("github.com/rl1809/inventory-reservation/internal/core/service")

type Option func(*options)

type options struct {
	log         *zap.Logger
	metrics     *observability.Metrics
	idempotency port.IdempotencyStore
	events      port.EventPublisher
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithIdempotency enables transaction-id deduplication for reservations.
func WithIdempotency(store port.IdempotencyStore) Option {
	return func(o *options) { o.idempotency = store }
}

// WithEvents publishes a StockEvent after every persisted mutation.
func WithEvents(pub port.EventPublisher) Option {
	return func(o *options) { o.events = pub }
}

func newOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if o.metrics == nil {
		o.metrics = observability.NewMetrics(nil)
	}
	return o
}
