package internal

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/config"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/methods"
)

// Handler is the HTTP handler which serves the JSON RPC methods
type Handler struct {
	bridge jhttp.Bridge
	logger *log.Entry
	http.Handler
}

// Close closes all the resources held by the Handler instances.
// After Close is called the Handler instance will stop accepting JSON RPC requests.
func (h Handler) Close() {
	if err := h.bridge.Close(); err != nil {
		h.logger.WithError(err).Warn("could not close bridge")
	}
}

type HandlerParams struct {
	Daemon     interfaces.Daemon
	Logger     *log.Entry
	Paginator  methods.HistoryPaginator
	Lookup     methods.TransactionLookup
	ServerInfo methods.ServerInfoGetter
	Neighbors  methods.NeighborResolver
	Tracker    methods.LedgerCloseTracker
}

//nolint:gochecknoglobals
var prometheusLabelReplacer = strings.NewReplacer(" ", "_", "-", "_", "(", "", ")", "")

func decorateHandlers(daemon interfaces.Daemon, logger *log.Entry, m handler.Map) handler.Map {
	requestMetric := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  daemon.MetricsNamespace(),
		Subsystem:  "json_rpc",
		Name:       "request_duration_seconds",
		Help:       "JSON RPC request duration",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}, //nolint:mnd
	}, []string{"endpoint", "status"})
	decorated := handler.Map{}
	for endpoint, h := range m {
		h := h
		decorated[endpoint] = func(ctx context.Context, r *jrpc2.Request) (any, error) {
			reqID := strconv.FormatUint(middleware.NextRequestID(), 10)
			logger.WithFields(log.F{
				"subsys": "jsonrpc",
				"req":    reqID,
				"json":   r.Method(),
			}).Info("starting JSONRPC request")

			startTime := time.Now()
			result, err := h(ctx, r)
			duration := time.Since(startTime)

			label := prometheus.Labels{"endpoint": r.Method(), "status": "ok"}
			var rpcErr *jrpc2.Error
			if errors.As(err, &rpcErr) {
				label["status"] = prometheusLabelReplacer.Replace(rpcErr.Code.String())
			} else if err != nil {
				label["status"] = "error"
			}
			requestMetric.With(label).Observe(duration.Seconds())
			logger.WithFields(log.F{
				"subsys":   "jsonrpc",
				"req":      reqID,
				"duration": duration.String(),
				"status":   label["status"],
			}).Info("finished JSONRPC request")
			return result, err
		}
	}
	daemon.MetricsRegistry().MustRegister(requestMetric)
	return decorated
}

// NewJSONRPCHandler constructs a Handler instance
func NewJSONRPCHandler(cfg *config.Config, params HandlerParams) Handler {
	bridgeOptions := jhttp.BridgeOptions{
		Server: &jrpc2.ServerOptions{
			Logger: func(text string) { params.Logger.Debug(text) },
		},
	}
	handlersMap := handler.Map{
		"getAccountTransactions": methods.NewGetAccountTransactionsHandler(
			params.Logger, params.Paginator, cfg.MaxPageSize, cfg.RequestTimeout),
		"getAccountPayments": methods.NewGetAccountPaymentsHandler(
			params.Logger, params.Paginator, cfg.DefaultPageSize, cfg.MaxPageSize, cfg.RequestTimeout),
		"getTransaction": methods.NewGetTransactionHandler(params.Logger, params.Lookup, cfg.RequestTimeout),
		"getNotification": methods.NewGetNotificationHandler(
			params.Logger, params.Lookup, params.ServerInfo, params.Neighbors, cfg.RequestTimeout),
		"getHealth": methods.NewHealthCheck(params.Tracker, cfg.ConnectionTimeout),
	}
	bridge := jhttp.NewBridge(decorateHandlers(params.Daemon, params.Logger, handlersMap), &bridgeOptions)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedHeaders: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "POST", "PATCH", "DELETE", "HEAD", "OPTIONS"},
	})

	return Handler{
		bridge:  bridge,
		logger:  params.Logger,
		Handler: corsMiddleware.Handler(bridge),
	}
}
