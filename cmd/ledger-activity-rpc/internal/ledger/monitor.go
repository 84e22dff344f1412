package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
)

const maxPollBackoff = 30 * time.Second

// LedgerCloser is the part of the ledger server the Monitor watches.
type LedgerCloser interface {
	LedgerClosed(ctx context.Context) (uint32, error)
	Reconnect()
}

type MonitorConfig struct {
	Logger       *log.Entry
	Source       LedgerCloser
	PollInterval time.Duration
	Daemon       interfaces.Daemon
}

// Monitor polls the ledger server for closed ledgers and tells subscribers
// whenever a new one shows up. It is the liveness signal behind the Gate.
type Monitor struct {
	logger       *log.Entry
	source       LedgerCloser
	pollInterval time.Duration

	mu          sync.RWMutex
	latest      uint32
	lastClose   time.Time
	subscribers map[int]func(uint32)
	nextID      int

	reconnect chan struct{}
	done      context.CancelFunc
	wg        sync.WaitGroup

	latestLedgerMetric prometheus.Gauge
}

func NewMonitor(cfg MonitorConfig) *Monitor {
	latestLedgerMetric := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: cfg.Daemon.MetricsNamespace(), Subsystem: "ledger_server", Name: "latest_ledger",
		Help: "sequence of the latest ledger closed by the ledger server",
	})
	cfg.Daemon.MetricsRegistry().MustRegister(latestLedgerMetric)

	return &Monitor{
		logger:             cfg.Logger,
		source:             cfg.Source,
		pollInterval:       cfg.PollInterval,
		subscribers:        map[int]func(uint32){},
		reconnect:          make(chan struct{}, 1),
		latestLedgerMetric: latestLedgerMetric,
	}
}

// Start begins polling in the background until Close is called.
func (m *Monitor) Start() {
	ctx, done := context.WithCancel(context.Background())
	m.done = done
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.run(ctx)
	}()
}

func (m *Monitor) Close() error {
	if m.done != nil {
		m.done()
	}
	m.wg.Wait()
	return nil
}

func (m *Monitor) run(ctx context.Context) {
	errBackoff := backoff.NewExponentialBackOff()
	errBackoff.InitialInterval = m.pollInterval
	errBackoff.MaxInterval = maxPollBackoff
	errBackoff.MaxElapsedTime = 0

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.reconnect:
			m.logger.Info("Reconnecting to the ledger server")
			m.source.Reconnect()
		case <-timer.C:
		}

		next := m.pollInterval
		if err := m.poll(ctx); err != nil {
			next = errBackoff.NextBackOff()
			m.logger.WithError(err).WithField("retry_in", next).
				Warn("could not reach the ledger server")
		} else {
			errBackoff.Reset()
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(next)
	}
}

func (m *Monitor) poll(ctx context.Context) error {
	latest, err := m.source.LedgerClosed(ctx)
	if err != nil {
		return err
	}
	m.recordLedgerClose(latest, time.Now())
	return nil
}

func (m *Monitor) recordLedgerClose(latest uint32, at time.Time) {
	m.mu.Lock()
	if latest <= m.latest {
		m.mu.Unlock()
		return
	}
	m.latest = latest
	m.lastClose = at
	subscribers := make([]func(uint32), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		subscribers = append(subscribers, fn)
	}
	m.mu.Unlock()

	m.latestLedgerMetric.Set(float64(latest))
	m.logger.WithField("ledger", latest).Debug("Ledger closed")
	for _, fn := range subscribers {
		fn(latest)
	}
}

// LastLedgerClose returns when the latest ledger was observed, and its index.
func (m *Monitor) LastLedgerClose() (time.Time, uint32) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastClose, m.latest
}

// OnLedgerClosed registers fn to be called with every new ledger index. The
// returned function removes the subscription.
func (m *Monitor) OnLedgerClosed(fn func(uint32)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Reconnect asks the polling loop to rebuild its connection and poll
// immediately. It never blocks.
func (m *Monitor) Reconnect() {
	select {
	case m.reconnect <- struct{}{}:
	default:
	}
}
