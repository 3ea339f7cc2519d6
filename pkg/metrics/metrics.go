// Package metrics defines the Prometheus collectors for the ledger. All
// collectors register with the default registry on package init and are
// exposed through promhttp on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeReplay  = "replay"
)

// OperationsTotal counts dispatched operations.
// Labels:
//   - kind: cash_in, utility_payment, cash_out, purchase
//   - outcome: "success", "replay", or the failure error kind
var OperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Total number of ledger operations, by kind and outcome.",
	},
	[]string{"kind", "outcome"},
)

// OperationDuration measures end-to-end operation latency.
var OperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Duration of ledger operations from dispatch to result.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"kind"},
)

// TransferRetriesTotal counts transfer attempts repeated after a transient conflict.
var TransferRetriesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfer_retries_total",
		Help:      "Total number of transfer retries caused by lock or serialization conflicts.",
	},
)

// IdempotencyChecksTotal counts idempotency key lookups.
// Label:
//   - result: "hit" (cached result replayed), "miss", or "in_flight"
var IdempotencyChecksTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "idempotency_checks_total",
		Help:      "Total number of idempotency key checks, by result.",
	},
	[]string{"result"},
)

// HTTPRequestDuration measures request latency at the transport edge.
// Labels:
//   - method: HTTP method
//   - route: matched route pattern, or "unmatched"
//   - status: response status code
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route", "status"},
)
