package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultConnectionTimeout is both how recent a ledger close must be for the
// connection to count as live and how long EnsureConnected waits for one.
const DefaultConnectionTimeout = 20 * time.Second

var ErrNotConnected = errors.New("not connected to the ledger server")

// Signal is the liveness signal of the ledger server connection.
type Signal interface {
	LastLedgerClose() (time.Time, uint32)
	OnLedgerClosed(fn func(uint32)) func()
	Reconnect()
}

// Gate decides whether the ledger server may be queried.
type Gate struct {
	signal Signal
	window time.Duration
	now    func() time.Time
}

func NewGate(signal Signal, window time.Duration) *Gate {
	if window <= 0 {
		window = DefaultConnectionTimeout
	}
	return &Gate{signal: signal, window: window, now: time.Now}
}

// IsConnected reports whether a ledger closed within the staleness window.
func (g *Gate) IsConnected() bool {
	lastClose, _ := g.signal.LastLedgerClose()
	return !lastClose.IsZero() && g.now().Sub(lastClose) <= g.window
}

// SinceLastLedgerClose returns the time elapsed since the latest ledger close
// and that ledger's index. The duration is negative when no ledger was seen.
func (g *Gate) SinceLastLedgerClose() (time.Duration, uint32) {
	lastClose, latest := g.signal.LastLedgerClose()
	if lastClose.IsZero() {
		return -1, latest
	}
	return g.now().Sub(lastClose), latest
}

// EnsureConnected returns nil when the connection is live. Otherwise it asks
// for a reconnect and waits up to the staleness window for a ledger to close.
func (g *Gate) EnsureConnected(ctx context.Context) error {
	if g.IsConnected() {
		return nil
	}

	closed := make(chan struct{}, 1)
	unsubscribe := g.signal.OnLedgerClosed(func(uint32) {
		select {
		case closed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	// a ledger may have closed before we subscribed
	if g.IsConnected() {
		return nil
	}
	g.signal.Reconnect()

	timer := time.NewTimer(g.window)
	defer timer.Stop()
	select {
	case <-closed:
		return nil
	case <-timer.C:
		return ErrNotConnected
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
	}
}
