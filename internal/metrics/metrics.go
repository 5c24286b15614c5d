// Package metrics exposes Prometheus collectors for the chat and HTTP layers.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcomes recorded for each inbound private message.
const (
	OutcomeDelivered     = "delivered"
	OutcomeStoredOffline = "stored_offline"
	OutcomeUnauthorized  = "unauthorized"
	OutcomeMalformed     = "malformed"
	OutcomeStoreError    = "store_error"
)

// Metrics groups the collectors used across the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	wsConnections prometheus.Gauge
	onlineUsers   prometheus.Gauge
	chatMessages  *prometheus.CounterVec
	droppedEvents prometheus.Counter
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "palchat_ws_connections",
			Help: "Number of open websocket connections",
		}),
		onlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "palchat_presence_online",
			Help: "Number of users currently present",
		}),
		chatMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palchat_chat_messages_total",
			Help: "Private messages handled, by outcome",
		}, []string{"outcome"}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "palchat_ws_dropped_clients_total",
			Help: "Connections closed because their send buffer was full",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "palchat_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "palchat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.wsConnections.Inc()
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.wsConnections.Dec()
}

// SetOnline records the size of the latest presence snapshot.
func (m *Metrics) SetOnline(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

// Message counts one private message outcome.
func (m *Metrics) Message(outcome string) {
	if m == nil {
		return
	}
	m.chatMessages.WithLabelValues(outcome).Inc()
}

// SlowClientDropped counts a connection dropped for falling behind.
func (m *Metrics) SlowClientDropped() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

// ObserveHTTP records one completed HTTP request. Upgraded connections are
// counted but kept out of the latency histogram; their duration is the
// websocket lifetime.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	if status == switchingProtocols {
		return
	}
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

var switchingProtocols = strconv.Itoa(http.StatusSwitchingProtocols)

// Handler serves the collectors registered on gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
