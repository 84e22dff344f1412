package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof" //nolint:gosec
	"os"
	"os/signal"
	runtimePprof "runtime/pprof"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	supporthttp "github.com/stellar/go/support/http"
	supportlog "github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/config"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
)

const (
	defaultReadTimeout         = 5 * time.Second
	defaultShutdownGracePeriod = 10 * time.Second
)

type Daemon struct {
	logger          *supportlog.Entry
	db              *db.DB
	ledgerClient    *ledger.Client
	monitor         *ledger.Monitor
	gate            *ledger.Gate
	jsonRPCHandler  *internal.Handler
	listener        net.Listener
	server          *http.Server
	adminListener   net.Listener
	adminServer     *http.Server
	closeOnce       sync.Once
	closeError      error
	done            chan struct{}
	metricsRegistry *prometheus.Registry
}

func (d *Daemon) GetDB() *db.DB {
	return d.db
}

func (d *Daemon) GetEndpointAddrs() (net.TCPAddr, *net.TCPAddr) {
	addr := d.listener.Addr().(*net.TCPAddr)
	var adminAddr *net.TCPAddr
	if d.adminListener != nil {
		adminAddr = d.adminListener.Addr().(*net.TCPAddr)
	}
	return *addr, adminAddr
}

func (d *Daemon) close() {
	shutdownCtx, shutdownRelease := context.WithTimeout(context.Background(), defaultShutdownGracePeriod)
	defer shutdownRelease()
	var closeErrors []error

	if err := d.server.Shutdown(shutdownCtx); err != nil {
		d.logger.WithError(err).Error("error during JSON RPC server Shutdown")
		closeErrors = append(closeErrors, err)
	}
	if d.adminServer != nil {
		if err := d.adminServer.Shutdown(shutdownCtx); err != nil {
			d.logger.WithError(err).Error("error during admin server Shutdown")
			closeErrors = append(closeErrors, err)
		}
	}

	d.jsonRPCHandler.Close()
	if err := d.monitor.Close(); err != nil {
		d.logger.WithError(err).Error("error closing ledger monitor")
		closeErrors = append(closeErrors, err)
	}
	if err := d.ledgerClient.Close(); err != nil {
		d.logger.WithError(err).Error("error closing ledger server client")
		closeErrors = append(closeErrors, err)
	}
	if err := d.db.Close(); err != nil {
		d.logger.WithError(err).Error("Error closing db")
		closeErrors = append(closeErrors, err)
	}
	d.closeError = errors.Join(closeErrors...)
	close(d.done)
}

func (d *Daemon) Close() error {
	d.closeOnce.Do(d.close)
	return d.closeError
}

//nolint:funlen
func MustNew(cfg *config.Config, logger *supportlog.Entry) *Daemon {
	logger.SetLevel(cfg.LogLevel)
	if cfg.LogFormat == config.LogFormatJSON {
		logger.UseJSONFormatter()
	}

	logger.WithFields(supportlog.F{
		"version": config.Version,
		"commit":  config.CommitHash,
	}).Info("starting ledger activity RPC")

	metricsRegistry := prometheus.NewRegistry()
	dbConn, err := db.OpenWithPrometheusMetrics(
		cfg.DBDriver, cfg.DBPath, interfaces.PrometheusNamespace, "db", metricsRegistry)
	if err != nil {
		logger.WithError(err).Fatal("could not open database")
	}

	daemon := &Daemon{
		logger:          logger,
		db:              dbConn,
		done:            make(chan struct{}),
		metricsRegistry: metricsRegistry,
	}

	daemon.ledgerClient = ledger.NewClient(cfg.LedgerServerURL, cfg.LedgerRequestTimeout, daemon)
	daemon.monitor = ledger.NewMonitor(ledger.MonitorConfig{
		Logger:       logger.WithField("subservice", "ledger-monitor"),
		Source:       daemon.ledgerClient,
		PollInterval: cfg.LedgerPollInterval,
		Daemon:       daemon,
	})
	daemon.gate = ledger.NewGate(daemon.monitor, cfg.ConnectionTimeout)

	store := db.NewTransactionStore(logger, dbConn, daemon)
	paginator := history.NewPaginator(history.PaginatorConfig{
		Logger:          logger.WithField("subservice", "pagination"),
		Gate:            daemon.gate,
		Remote:          daemon.ledgerClient,
		Local:           store,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxRounds:       cfg.MaxPaginationRounds,
		Daemon:          daemon,
	})
	remoteSiblings, err := ledger.NewSiblingCounter(daemon.ledgerClient, cfg.SiblingCacheSize)
	if err != nil {
		logger.WithError(err).Fatal("could not create sibling counter")
	}

	jsonRPCHandler := internal.NewJSONRPCHandler(cfg, internal.HandlerParams{
		Daemon:     daemon,
		Logger:     logger,
		Paginator:  paginator,
		Lookup:     history.NewLookup(daemon.gate, daemon.ledgerClient, store),
		ServerInfo: daemon.ledgerClient,
		Neighbors:  history.NewNeighborResolver(paginator, remoteSiblings, store),
		Tracker:    daemon.gate,
	})
	daemon.jsonRPCHandler = &jsonRPCHandler

	httpHandler := supporthttp.NewAPIMux(logger)
	httpHandler.Handle("/", jsonRPCHandler)

	// Use a separate listener in order to obtain the actual TCP port
	// when using dynamic ports during testing (e.g. endpoint="localhost:0")
	daemon.listener, err = net.Listen("tcp", cfg.Endpoint)
	if err != nil {
		daemon.logger.WithError(err).WithField("endpoint", cfg.Endpoint).Fatal("cannot listen on endpoint")
	}
	daemon.server = &http.Server{
		Handler:     httpHandler,
		ReadTimeout: defaultReadTimeout,
	}
	if cfg.AdminEndpoint != "" {
		adminMux := supporthttp.NewMux(logger)
		adminMux.HandleFunc("/debug/pprof/", pprof.Index)
		adminMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		adminMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		adminMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		adminMux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		// add the entry points for:
		// goroutine, threadcreate, heap, allocs, block, mutex
		for _, profile := range runtimePprof.Profiles() {
			adminMux.Handle("/debug/pprof/"+profile.Name(), pprof.Handler(profile.Name()))
		}
		adminMux.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
		daemon.adminListener, err = net.Listen("tcp", cfg.AdminEndpoint)
		if err != nil {
			daemon.logger.WithError(err).WithField("endpoint", cfg.AdminEndpoint).Fatal("cannot listen on admin endpoint")
		}
		daemon.adminServer = &http.Server{Handler: adminMux, ReadTimeout: defaultReadTimeout}
	}
	daemon.registerMetrics()
	return daemon
}

func (d *Daemon) Run() {
	d.monitor.Start()

	d.logger.WithFields(supportlog.F{
		"addr": d.listener.Addr().String(),
	}).Info("starting HTTP server")

	go func() {
		if err := d.server.Serve(d.listener); !errors.Is(err, http.ErrServerClosed) {
			d.logger.WithError(err).Fatal("JSON RPC server encountered fatal error")
		}
	}()

	if d.adminServer != nil {
		d.logger.WithFields(supportlog.F{
			"addr": d.adminListener.Addr().String(),
		}).Info("starting Admin HTTP server")
		go func() {
			if err := d.adminServer.Serve(d.adminListener); !errors.Is(err, http.ErrServerClosed) {
				d.logger.WithError(err).Error("admin server encountered fatal error")
			}
		}()
	}

	// Shutdown gracefully when we receive an interrupt signal.
	// First server.Shutdown closes all open listeners, then closes all idle connections.
	// Finally, it waits a grace period (10s here) for connections to return to idle and then shut down.
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-signals:
		d.Close()
	case <-d.done:
		return
	}
}
