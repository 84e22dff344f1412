package methods

import (
	"context"
	"time"

	"github.com/creachadair/jrpc2"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// GetAccountPaymentsRequest pages through payments only. Pages are numbered
// from 1 and always hold ResultsPerPage records unless the history runs out.
type GetAccountPaymentsRequest struct {
	Account            string `json:"account"`
	SourceAccount      string `json:"sourceAccount,omitempty"`
	DestinationAccount string `json:"destinationAccount,omitempty"`
	Direction          string `json:"direction,omitempty"`
	StartLedger        *int64 `json:"startLedger,omitempty"`
	EndLedger          *int64 `json:"endLedger,omitempty"`
	EarliestFirst      bool   `json:"earliestFirst,omitempty"`
	ExcludeFailed      bool   `json:"excludeFailed,omitempty"`
	ResultsPerPage     int    `json:"resultsPerPage,omitempty"`
	Page               int    `json:"page,omitempty"`
}

type GetAccountPaymentsResponse struct {
	Payments []transactions.Transaction `json:"payments"`
}

type accountPaymentsHandler struct {
	logger          *log.Entry
	paginator       HistoryPaginator
	defaultPageSize int
	maxPageSize     int
	timeout         time.Duration
}

func (h accountPaymentsHandler) pageRequest(request GetAccountPaymentsRequest) (history.PageRequest, error) {
	if err := validateAccount(request.Account); err != nil {
		return history.PageRequest{}, err
	}
	lower, upper, err := ledgerRange(request.StartLedger, request.EndLedger)
	if err != nil {
		return history.PageRequest{}, err
	}
	filter, err := FilterOptions{
		ExcludeFailed:      request.ExcludeFailed,
		Types:              []string{string(transactions.TypePayment)},
		SourceAccount:      request.SourceAccount,
		DestinationAccount: request.DestinationAccount,
		Direction:          request.Direction,
	}.filter()
	if err != nil {
		return history.PageRequest{}, err
	}

	perPage := request.ResultsPerPage
	switch {
	case perPage < 0:
		return history.PageRequest{}, invalidParams("resultsPerPage cannot be negative")
	case perPage == 0:
		perPage = h.defaultPageSize
	case perPage > h.maxPageSize:
		return history.PageRequest{}, invalidParams("resultsPerPage (%d) exceeds the limit (%d)", perPage, h.maxPageSize)
	}
	page := request.Page
	if page < 0 {
		return history.PageRequest{}, invalidParams("page cannot be negative")
	} else if page == 0 {
		page = 1
	}

	return history.PageRequest{
		Account:        request.Account,
		Filter:         filter,
		LedgerIndexMin: lower,
		LedgerIndexMax: upper,
		Descending:     !request.EarliestFirst,
		Min:            perPage,
		Max:            perPage,
		Offset:         (page - 1) * perPage,
	}, nil
}

func (h accountPaymentsHandler) getAccountPayments(ctx context.Context, request GetAccountPaymentsRequest) (GetAccountPaymentsResponse, error) {
	pageRequest, err := h.pageRequest(request)
	if err != nil {
		return GetAccountPaymentsResponse{}, err
	}

	ctx, cancel := withTimeout(ctx, h.timeout)
	defer cancel()
	records, err := h.paginator.Paginate(ctx, pageRequest)
	if err != nil {
		return GetAccountPaymentsResponse{}, toRPCError(h.logger, "getAccountPayments", err)
	}
	if records == nil {
		records = []transactions.Transaction{}
	}
	return GetAccountPaymentsResponse{Payments: records}, nil
}

// NewGetAccountPaymentsHandler returns a json rpc handler listing an account's
// payments page by page.
func NewGetAccountPaymentsHandler(logger *log.Entry, paginator HistoryPaginator, defaultPageSize, maxPageSize int,
	timeout time.Duration,
) jrpc2.Handler {
	h := accountPaymentsHandler{
		logger:          logger,
		paginator:       paginator,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		timeout:         timeout,
	}
	return NewHandler(h.getAccountPayments)
}
