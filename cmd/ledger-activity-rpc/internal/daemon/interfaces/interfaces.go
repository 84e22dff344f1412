package interfaces

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusNamespace is the namespace of every metric exported by the daemon.
const PrometheusNamespace = "ledger_activity_rpc"

// Daemon defines the interface that the Daemon would be implementing.
// this would be useful for decoupling purposes, allowing to test components without
// the actual daemon.
type Daemon interface {
	MetricsRegistry() *prometheus.Registry
	MetricsNamespace() string
}
