package daemon

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	supportlog "github.com/stellar/go/support/log"
	"github.com/stellar/go/support/logmetrics"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/config"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/methods"
)

func (d *Daemon) registerMetrics() {
	// LogMetricsHook is a metric which counts log lines emitted by the server
	logMetricsHook := logmetrics.New(interfaces.PrometheusNamespace)
	d.logger.AddHook(logMetricsHook)
	for _, counter := range logMetricsHook {
		d.metricsRegistry.MustRegister(counter)
	}

	buildInfoGauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: interfaces.PrometheusNamespace, Subsystem: "build", Name: "info"},
		[]string{"version", "goversion", "commit", "branch", "build_timestamp"},
	)
	buildInfoGauge.With(prometheus.Labels{
		"version":         config.Version,
		"commit":          config.CommitHash,
		"branch":          config.Branch,
		"build_timestamp": config.BuildTimestamp,
		"goversion":       runtime.Version(),
	}).Inc()

	d.metricsRegistry.MustRegister(collectors.NewGoCollector())
	d.metricsRegistry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	d.metricsRegistry.MustRegister(buildInfoGauge)
	d.metricsRegistry.MustRegister(newConnectivityGauge(d.gate))
}

// newConnectivityGauge exports the seconds elapsed since the ledger server
// last closed a ledger, or -1 before the first one is seen.
func newConnectivityGauge(tracker methods.LedgerCloseTracker) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: interfaces.PrometheusNamespace, Subsystem: "ledger_server", Name: "seconds_since_last_close",
		Help: "seconds since the ledger server last closed a ledger",
	}, func() float64 {
		since, _ := tracker.SinceLastLedgerClose()
		if since < 0 {
			return -1
		}
		return since.Seconds()
	})
}

func (d *Daemon) MetricsRegistry() *prometheus.Registry {
	return d.metricsRegistry
}

func (d *Daemon) MetricsNamespace() string {
	return interfaces.PrometheusNamespace
}

func (d *Daemon) Logger() *supportlog.Entry {
	return d.logger
}
