package history

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// RemoteSource is the cursor based account history of the ledger server.
type RemoteSource interface {
	AccountTransactions(ctx context.Context, request ledger.AccountTxRequest) (ledger.AccountTxPage, error)
}

// LocalStore holds the failed transactions submitted through this service.
type LocalStore interface {
	GetFailedTransactions(ctx context.Context, query db.FailedTransactionsQuery) ([]transactions.Transaction, error)
}

type FetchRequest struct {
	Account        string
	LedgerIndexMin int64
	LedgerIndexMax int64
	Forward        bool
	Limit          int
	Marker         transactions.Marker
	ExcludeFailed  bool
}

type FetchResult struct {
	Remote []transactions.Transaction
	Local  []transactions.Transaction
	// Marker continues the remote query. It is zero once the remote is exhausted.
	Marker transactions.Marker
}

// Records returns the remote records followed by the local ones.
func (r FetchResult) Records() []transactions.Transaction {
	records := make([]transactions.Transaction, 0, len(r.Remote)+len(r.Local))
	records = append(records, r.Remote...)
	return append(records, r.Local...)
}

// Fetcher queries the remote ledger and the local store side by side.
type Fetcher struct {
	Remote RemoteSource
	Local  LocalStore
}

// Fetch runs one round against both sources. The local store is skipped when
// failed transactions are excluded. Unvalidated remote entries are dropped.
// Any source failure fails the whole fetch.
func (f *Fetcher) Fetch(ctx context.Context, request FetchRequest) (FetchResult, error) {
	var result FetchResult
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		page, err := f.Remote.AccountTransactions(ctx, ledger.AccountTxRequest{
			Account:        request.Account,
			LedgerIndexMin: request.LedgerIndexMin,
			LedgerIndexMax: request.LedgerIndexMax,
			Limit:          request.Limit,
			Forward:        request.Forward,
			Marker:         request.Marker,
		})
		if err != nil {
			return sourceError(SourceRemote, err)
		}
		remote := make([]transactions.Transaction, 0, len(page.Entries))
		for _, entry := range page.Entries {
			if !entry.Validated {
				continue
			}
			tx := entry.Transaction
			tx.Origin = transactions.OriginRemote
			remote = append(remote, tx)
		}
		result.Remote = remote
		result.Marker = page.Marker
		return nil
	})

	if !request.ExcludeFailed {
		g.Go(func() error {
			local, err := f.Local.GetFailedTransactions(ctx, db.FailedTransactionsQuery{
				Account:        request.Account,
				LedgerIndexMin: request.LedgerIndexMin,
				LedgerIndexMax: request.LedgerIndexMax,
			})
			if err != nil {
				return sourceError(SourceLocal, err)
			}
			for i := range local {
				local[i].Origin = transactions.OriginLocal
			}
			result.Local = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return FetchResult{}, err
	}
	return result, nil
}
