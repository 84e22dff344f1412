package methods

import (
	"context"
	"strings"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const (
	alice = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	bob   = "rPMh7Pi9ct699iZUTWaytJUoHcJ7cgyziK"
)

//nolint:gochecknoglobals
var (
	t1 = strings.Repeat("1", 64)
	t2 = strings.Repeat("2", 64)
	t3 = strings.Repeat("3", 64)
)

type openGate struct{}

func (openGate) EnsureConnected(context.Context) error { return nil }

func payment(hash string, ledgerIndex uint32, timestamp int64) ledger.Entry {
	return ledger.Entry{
		Validated: true,
		Transaction: transactions.Transaction{
			Hash:        hash,
			LedgerIndex: ledgerIndex,
			Timestamp:   timestamp,
			Type:        transactions.TypePayment,
			Account:     alice,
			Destination: bob,
			State:       transactions.StateValidated,
			Result:      transactions.ResultSuccess,
		},
	}
}

func failedOrder(crid string, ledgerIndex uint32, timestamp int64) transactions.Transaction {
	return transactions.Transaction{
		ClientResourceID: crid,
		LedgerIndex:      ledgerIndex,
		Timestamp:        timestamp,
		Type:             transactions.TypeOfferCreate,
		Account:          alice,
		State:            transactions.StateFailed,
		Result:           "tecUNFUNDED_OFFER",
	}
}

// scenario is an account with three payments and one failed order.
func scenario() (*ledger.MockLedger, *db.MockTransactionStore) {
	remote := ledger.NewMockLedger(
		payment(t1, 100, 1000),
		payment(t2, 100, 1001),
		payment(t3, 105, 1010),
	)
	remote.CompleteLedgers = "10-20,90-110"
	local := db.NewMockTransactionStore(failedOrder("order", 105, 1005))
	return remote, local
}

func newPaginator(remote history.RemoteSource, local history.LocalStore) *history.Paginator {
	return history.NewPaginator(history.PaginatorConfig{
		Logger: log.DefaultLogger,
		Gate:   openGate{},
		Remote: remote,
		Local:  local,
		Daemon: interfaces.MakeNoOpDeamon(),
	})
}

func identifiers(txs []transactions.Transaction) []string {
	result := make([]string, 0, len(txs))
	for _, tx := range txs {
		result = append(result, tx.Identifier())
	}
	return result
}

func requireCode(t *testing.T, err error, code jrpc2.Code) *jrpc2.Error {
	t.Helper()
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	require.Equal(t, code, rpcErr.Code, rpcErr.Message)
	return rpcErr
}

type recordingPaginator struct {
	requests []history.PageRequest
	result   []transactions.Transaction
	err      error
}

func (p *recordingPaginator) Paginate(_ context.Context, request history.PageRequest) ([]transactions.Transaction, error) {
	p.requests = append(p.requests, request)
	return p.result, p.err
}
