package methods

import (
	"context"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

type TransactionLookup interface {
	Get(ctx context.Context, account, identifier string) (transactions.Transaction, error)
}

type GetTransactionRequest struct {
	Account string `json:"account"`
	// Identifier is either a transaction hash or a client resource id.
	Identifier string `json:"identifier"`
}

type GetTransactionResponse struct {
	Transaction transactions.Transaction `json:"transaction"`
}

func (r GetTransactionRequest) valid() error {
	if err := validateAccount(r.Account); err != nil {
		return err
	}
	if r.Identifier == "" {
		return invalidParams("identifier is required")
	}
	return nil
}

func GetTransaction(
	ctx context.Context,
	logger *log.Entry,
	lookup TransactionLookup,
	request GetTransactionRequest,
) (GetTransactionResponse, error) {
	if err := request.valid(); err != nil {
		return GetTransactionResponse{}, err
	}
	tx, err := lookup.Get(ctx, request.Account, request.Identifier)
	if err != nil {
		return GetTransactionResponse{}, toRPCError(logger.WithFields(log.F{
			"account":    request.Account,
			"identifier": request.Identifier,
		}), "getTransaction", err)
	}
	return GetTransactionResponse{Transaction: tx}, nil
}

// NewGetTransactionHandler returns a get transaction json rpc handler
func NewGetTransactionHandler(logger *log.Entry, lookup TransactionLookup, timeout time.Duration) jrpc2.Handler {
	return NewHandler(func(ctx context.Context, request GetTransactionRequest) (GetTransactionResponse, error) {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		return GetTransaction(ctx, logger, lookup, request)
	})
}
