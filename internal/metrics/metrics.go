// Package metrics declares the Prometheus instruments exported on
// /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ocppd"

var (
	// ConnectedClients tracks how many charge points hold an open
	// socket.
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connected_clients",
		Help:      "Number of charge points currently connected.",
	})

	// MessagesTotal counts frames by direction ("inbound", "outbound").
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "The total number of OCPP frames handled.",
	}, []string{"direction"})

	// CallsTotal counts dispatched inbound Calls by action.
	CallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calls_total",
		Help:      "The total number of inbound Calls dispatched, by action.",
	}, []string{"action"})

	// CallErrorsTotal counts CallError responses sent, by error code.
	CallErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_errors_total",
		Help:      "The total number of CallError responses sent, by code.",
	}, []string{"code"})

	// CallTimeoutsTotal counts server-initiated Calls that timed out.
	CallTimeoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "call_timeouts_total",
		Help:      "The total number of server-initiated Calls that timed out.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectedClients,
		MessagesTotal,
		CallsTotal,
		CallErrorsTotal,
		CallTimeoutsTotal,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
