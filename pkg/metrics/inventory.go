package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InventoryMetrics covers the stock ledger, reservations, and order commits.
// A nil *InventoryMetrics is a valid no-op recorder.
type InventoryMetrics struct {
	clamps       *prometheus.CounterVec
	lowStock     prometheus.Counter
	reservations *prometheus.CounterVec
	swept        prometheus.Counter
	orders       *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	restores     prometheus.Counter
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	m := &InventoryMetrics{
		clamps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_inventory_stock_clamps_total",
			Help: "Stock decrements clamped at zero, by ledger reason.",
		}, []string{"reason"}),
		lowStock: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitstock_inventory_low_stock_total",
			Help: "Ledger mutations that left a part at or below its minimum stock level.",
		}),
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_cart_reservations_total",
			Help: "Reservation attempts by outcome.",
		}, []string{"outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitstock_cart_reservations_swept_total",
			Help: "Expired reservations deleted by the sweeper.",
		}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_orders_created_total",
			Help: "Orders committed, by sales channel.",
		}, []string{"channel"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitstock_order_transitions_total",
			Help: "Accepted order status transitions.",
		}, []string{"from", "to"}),
		restores: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitstock_order_stock_restores_total",
			Help: "Orders whose committed stock was restored.",
		}),
	}
	reg.MustRegister(m.clamps, m.lowStock, m.reservations, m.swept, m.orders, m.transitions, m.restores)
	return m
}

func (m *InventoryMetrics) IncClamp(reason string) {
	if m == nil || m.clamps == nil {
		return
	}
	m.clamps.WithLabelValues(normalizeLabel(reason)).Inc()
}

func (m *InventoryMetrics) IncLowStock() {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Inc()
}

// ObserveReservation records "created" or "rejected".
func (m *InventoryMetrics) ObserveReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *InventoryMetrics) AddSwept(n int64) {
	if m == nil || m.swept == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

// IncOrderCreated records "direct" or "provider".
func (m *InventoryMetrics) IncOrderCreated(channel string) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.WithLabelValues(normalizeLabel(channel)).Inc()
}

func (m *InventoryMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

func (m *InventoryMetrics) IncRestore() {
	if m == nil || m.restores == nil {
		return
	}
	m.restores.Inc()
}
