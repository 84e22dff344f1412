package methods

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/handler"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
)

const (
	// LedgerUnavailable tells the client the request may succeed once the
	// ledger server is reachable again.
	LedgerUnavailable jrpc2.Code = -32001
	// NotFound is returned when the requested transaction does not exist.
	NotFound jrpc2.Code = -32002
)

func NewHandler(fn any) jrpc2.Handler {
	fi, err := handler.Check(fn)
	if err != nil {
		panic(err)
	}
	// explicitly disable array arguments since otherwise we cannot add
	// new method arguments without breaking backwards compatibility with clients
	fi.AllowArray(false)
	return fi.Wrap()
}

func invalidParams(format string, args ...any) error {
	return &jrpc2.Error{
		Code:    jrpc2.InvalidParams,
		Message: fmt.Sprintf(format, args...),
	}
}

// withTimeout bounds a whole resolution, including every continuation round.
func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// toRPCError converts a resolver error into the error reported to the client.
func toRPCError(logger *log.Entry, method string, err error) error {
	var rpcErr *jrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	switch {
	case errors.Is(err, history.ErrTransactionNotFound):
		return &jrpc2.Error{Code: NotFound, Message: err.Error()}
	case errors.Is(err, history.ErrNotRelated), errors.Is(err, history.ErrBaseNotOrdered):
		return &jrpc2.Error{Code: jrpc2.InvalidParams, Message: err.Error()}
	case errors.Is(err, ledger.ErrNotConnected),
		errors.Is(err, history.ErrSourceQueryFailed),
		errors.Is(err, history.ErrLedgerGap),
		errors.Is(err, context.DeadlineExceeded):
		logger.WithError(err).WithField("method", method).Warn("ledger unavailable")
		return &jrpc2.Error{Code: LedgerUnavailable, Message: err.Error()}
	default:
		logger.WithError(err).WithField("method", method).Error("request failed")
		return &jrpc2.Error{Code: jrpc2.InternalError, Message: err.Error()}
	}
}
