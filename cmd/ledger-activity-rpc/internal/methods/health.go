package methods

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"
)

type HealthCheckResult struct {
	Status                string  `json:"status"`
	LatestLedger          uint32  `json:"latestLedger"`
	SecondsSinceLastClose float64 `json:"secondsSinceLastClose"`
}

type LedgerCloseTracker interface {
	SinceLastLedgerClose() (time.Duration, uint32)
}

// NewHealthCheck returns a health check json rpc handler
func NewHealthCheck(tracker LedgerCloseTracker, maxHealthyLedgerLatency time.Duration) jrpc2.Handler {
	return handler.New(func(context.Context) (HealthCheckResult, error) {
		latency, latest := tracker.SinceLastLedgerClose()
		if latency < 0 {
			return HealthCheckResult{}, jrpc2.Error{
				Code:    jrpc2.InternalError,
				Message: "no ledger close observed yet",
			}
		}
		if latency > maxHealthyLedgerLatency {
			roundedLatency := latency.Round(time.Second)
			msg := fmt.Sprintf("latency (%s) since last known ledger closed is too high (>%s)", roundedLatency, maxHealthyLedgerLatency)
			return HealthCheckResult{}, jrpc2.Error{
				Code:    jrpc2.InternalError,
				Message: msg,
			}
		}
		return HealthCheckResult{
			Status:                "healthy",
			LatestLedger:          latest,
			SecondsSinceLastClose: latency.Seconds(),
		}, nil
	})
}
