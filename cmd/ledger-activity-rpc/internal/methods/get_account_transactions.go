package methods

import (
	"context"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

type HistoryPaginator interface {
	Paginate(ctx context.Context, request history.PageRequest) ([]transactions.Transaction, error)
}

type GetAccountTransactionsRequest struct {
	Account        string `json:"account"`
	LedgerIndexMin *int64 `json:"ledgerIndexMin,omitempty"`
	LedgerIndexMax *int64 `json:"ledgerIndexMax,omitempty"`
	// EarliestFirst returns the oldest transactions first. The newest come
	// first by default.
	EarliestFirst bool `json:"earliestFirst,omitempty"`
	FilterOptions
	// Min asks for continuation rounds until that many records matched.
	Min    int `json:"min,omitempty"`
	Max    int `json:"max,omitempty"`
	Offset int `json:"offset,omitempty"`
}

type GetAccountTransactionsResponse struct {
	Transactions []transactions.Transaction `json:"transactions"`
}

type accountTransactionsHandler struct {
	logger      *log.Entry
	paginator   HistoryPaginator
	maxPageSize int
	timeout     time.Duration
}

func (h accountTransactionsHandler) pageRequest(request GetAccountTransactionsRequest) (history.PageRequest, error) {
	if err := validateAccount(request.Account); err != nil {
		return history.PageRequest{}, err
	}
	lower, upper, err := ledgerRange(request.LedgerIndexMin, request.LedgerIndexMax)
	if err != nil {
		return history.PageRequest{}, err
	}
	filter, err := request.filter()
	if err != nil {
		return history.PageRequest{}, err
	}
	if request.Min < 0 || request.Max < 0 || request.Offset < 0 {
		return history.PageRequest{}, invalidParams("min, max and offset cannot be negative")
	}
	if request.Max > h.maxPageSize {
		return history.PageRequest{}, invalidParams("max (%d) exceeds the limit (%d)", request.Max, h.maxPageSize)
	}
	if request.Min > h.maxPageSize {
		return history.PageRequest{}, invalidParams("min (%d) exceeds the limit (%d)", request.Min, h.maxPageSize)
	}
	if request.Max > 0 && request.Min > request.Max {
		return history.PageRequest{}, invalidParams("min (%d) exceeds max (%d)", request.Min, request.Max)
	}
	return history.PageRequest{
		Account:        request.Account,
		Filter:         filter,
		LedgerIndexMin: lower,
		LedgerIndexMax: upper,
		Descending:     !request.EarliestFirst,
		Min:            request.Min,
		Max:            request.Max,
		Offset:         request.Offset,
	}, nil
}

func (h accountTransactionsHandler) getAccountTransactions(ctx context.Context, request GetAccountTransactionsRequest) (GetAccountTransactionsResponse, error) {
	pageRequest, err := h.pageRequest(request)
	if err != nil {
		return GetAccountTransactionsResponse{}, err
	}

	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()
	records, err := h.paginator.Paginate(ctx, pageRequest)
	if err != nil {
		return GetAccountTransactionsResponse{}, toRPCError(h.logger, "getAccountTransactions", err)
	}
	if records == nil {
		records = []transactions.Transaction{}
	}
	return GetAccountTransactionsResponse{Transactions: records}, nil
}

// NewGetAccountTransactionsHandler returns a json rpc handler paginating
// through the merged history of an account.
func NewGetAccountTransactionsHandler(logger *log.Entry, paginator HistoryPaginator, maxPageSize int,
	timeout time.Duration,
) jrpc2.Handler {
	h := accountTransactionsHandler{
		logger:      logger,
		paginator:   paginator,
		maxPageSize: maxPageSize,
		timeout:     timeout,
	}
	return NewHandler(h.getAccountTransactions)
}
