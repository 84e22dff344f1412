package methods

import (
	"context"
	"fmt"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

type NeighborResolver interface {
	Resolve(ctx context.Context, account string, base transactions.Transaction, filter history.Filter) (history.Neighbors, error)
}

type ServerInfoGetter interface {
	ServerInfo(ctx context.Context) (ledger.ServerInfo, error)
}

type GetNotificationRequest struct {
	Account       string   `json:"account"`
	Identifier    string   `json:"identifier"`
	Types         []string `json:"types,omitempty"`
	ExcludeFailed bool     `json:"excludeFailed,omitempty"`
}

// GetNotificationResponse is a transaction along with its neighbors in the
// account history, which lets clients walk the history one step at a time.
type GetNotificationResponse struct {
	Transaction transactions.Transaction `json:"transaction"`
	history.Neighbors
}

type notificationHandler struct {
	logger    *log.Entry
	lookup    TransactionLookup
	info      ServerInfoGetter
	neighbors NeighborResolver
	timeout   time.Duration
}

// ensureLedger checks the ledger server still holds the ledger of the base
// transaction, so that neighbors are not computed across a gap.
func (h notificationHandler) ensureLedger(ctx context.Context, ledgerIndex uint32) error {
	info, err := h.info.ServerInfo(ctx)
	if err != nil {
		return &history.SourceError{Source: history.SourceRemote, Err: err}
	}
	ok, err := info.HasLedger(ledgerIndex)
	if err != nil {
		return &history.SourceError{Source: history.SourceRemote, Err: err}
	}
	if !ok {
		return fmt.Errorf("%w: ledger %d not in %s", history.ErrLedgerGap, ledgerIndex, info.CompleteLedgers)
	}
	return nil
}

func (h notificationHandler) getNotification(ctx context.Context, request GetNotificationRequest) (GetNotificationResponse, error) {
	if err := validateAccount(request.Account); err != nil {
		return GetNotificationResponse{}, err
	}
	if request.Identifier == "" {
		return GetNotificationResponse{}, invalidParams("identifier is required")
	}
	filter, err := FilterOptions{Types: request.Types, ExcludeFailed: request.ExcludeFailed}.filter()
	if err != nil {
		return GetNotificationResponse{}, err
	}

	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()
	logger := h.logger.WithFields(log.F{"account": request.Account, "identifier": request.Identifier})

	base, err := h.lookup.Get(ctx, request.Account, request.Identifier)
	if err != nil {
		return GetNotificationResponse{}, toRPCError(logger, "getNotification", err)
	}
	if !base.Ordered() {
		return GetNotificationResponse{}, toRPCError(logger, "getNotification", history.ErrBaseNotOrdered)
	}
	if err := h.ensureLedger(ctx, base.LedgerIndex); err != nil {
		return GetNotificationResponse{}, toRPCError(logger, "getNotification", err)
	}
	neighbors, err := h.neighbors.Resolve(ctx, request.Account, base, filter)
	if err != nil {
		return GetNotificationResponse{}, toRPCError(logger, "getNotification", err)
	}
	return GetNotificationResponse{Transaction: base, Neighbors: neighbors}, nil
}

// NewGetNotificationHandler returns a json rpc handler resolving a transaction
// and its previous and next transactions.
func NewGetNotificationHandler(logger *log.Entry, lookup TransactionLookup, info ServerInfoGetter,
	neighbors NeighborResolver, timeout time.Duration,
) jrpc2.Handler {
	h := notificationHandler{
		logger:    logger,
		lookup:    lookup,
		info:      info,
		neighbors: neighbors,
		timeout:   timeout,
	}
	return NewHandler(h.getNotification)
}
