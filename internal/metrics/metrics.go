// Package metrics exposes Prometheus counters/gauges for the ambient
// GET /api/metrics endpoint (SPEC_FULL.md supplement), grounded on
// Emibrown-HLS-Playlist-Orchestrator's internal/platform/metrics package.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	wsMessagesTotal     *prometheus.CounterVec
	activeRooms         prometheus.Gauge
	activeConnections   prometheus.Gauge
	roomsDestroyedTotal prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watchtogether_http_requests_total",
		Help: "Total number of HTTP requests received, by path and status class",
	}, []string{"path", "status_class"})

	wsMessagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "watchtogether_ws_messages_total",
		Help: "Total number of websocket command frames dispatched, by message type",
	}, []string{"message_type"})

	activeRooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watchtogether_active_rooms",
		Help: "Number of rooms currently held in the registry",
	})

	activeConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "watchtogether_active_connections",
		Help: "Number of live websocket connections",
	})

	roomsDestroyedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "watchtogether_rooms_destroyed_total",
		Help: "Total number of rooms destroyed by the idle sweep",
	})

	registry.MustRegister(httpRequestsTotal, wsMessagesTotal, activeRooms, activeConnections, roomsDestroyedTotal)

	return &Metrics{
		registry:            registry,
		httpRequestsTotal:   httpRequestsTotal,
		wsMessagesTotal:     wsMessagesTotal,
		activeRooms:         activeRooms,
		activeConnections:   activeConnections,
		roomsDestroyedTotal: roomsDestroyedTotal,
	}
}

func (m *Metrics) IncHTTPRequest(path, statusClass string) {
	m.httpRequestsTotal.WithLabelValues(path, statusClass).Inc()
}

func (m *Metrics) IncWSMessage(messageType string) {
	m.wsMessagesTotal.WithLabelValues(messageType).Inc()
}

func (m *Metrics) SetActiveRooms(n int) {
	m.activeRooms.Set(float64(n))
}

func (m *Metrics) SetActiveConnections(n int) {
	m.activeConnections.Set(float64(n))
}

func (m *Metrics) IncRoomsDestroyed() {
	m.roomsDestroyedTotal.Inc()
}

// Handler serves the Prometheus exposition format, refreshing gauges via
// updateGauges immediately before every scrape.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
