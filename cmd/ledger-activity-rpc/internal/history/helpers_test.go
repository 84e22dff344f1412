package history

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const (
	alice = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	bob   = "rPMh7Pi9ct699iZUTWaytJUoHcJ7cgyziK"
	carol = "rLNaPoKeeBjZe2qs6x52yVPZpZ8td4dc6w"
)

type stubGate struct {
	err   error
	calls atomic.Int32
}

func (g *stubGate) EnsureConnected(context.Context) error {
	g.calls.Add(1)
	return g.err
}

// scriptedRemote serves a fixed sequence of pages, repeating the last one.
type scriptedRemote struct {
	mu       sync.Mutex
	pages    []ledger.AccountTxPage
	requests []ledger.AccountTxRequest
}

func (s *scriptedRemote) AccountTransactions(_ context.Context, request ledger.AccountTxRequest) (ledger.AccountTxPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page := s.pages[min(len(s.requests), len(s.pages)-1)]
	s.requests = append(s.requests, request)
	return page, nil
}

func (s *scriptedRemote) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func newTx(hash string, ledgerIndex uint32, timestamp int64, txType transactions.Type, from, to string) transactions.Transaction {
	return transactions.Transaction{
		Hash:        hash,
		LedgerIndex: ledgerIndex,
		Timestamp:   timestamp,
		Type:        txType,
		Account:     from,
		Destination: to,
		State:       transactions.StateValidated,
		Result:      transactions.ResultSuccess,
		Origin:      transactions.OriginRemote,
	}
}

func payment(hash string, ledgerIndex uint32, timestamp int64) transactions.Transaction {
	return newTx(hash, ledgerIndex, timestamp, transactions.TypePayment, alice, bob)
}

func failedLocal(crid string, ledgerIndex uint32, timestamp int64, txType transactions.Type) transactions.Transaction {
	tx := newTx("", ledgerIndex, timestamp, txType, alice, "")
	tx.ClientResourceID = crid
	tx.State = transactions.StateFailed
	tx.Result = "tecUNFUNDED_OFFER"
	tx.Origin = transactions.OriginLocal
	return tx
}

func validated(txs ...transactions.Transaction) []ledger.Entry {
	entries := make([]ledger.Entry, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, ledger.Entry{Transaction: tx, Validated: true})
	}
	return entries
}

func hashes(txs []transactions.Transaction) []string {
	result := make([]string, 0, len(txs))
	for _, tx := range txs {
		result = append(result, tx.Identifier())
	}
	return result
}

func newTestPaginator(gate Gate, remote RemoteSource, local LocalStore) *Paginator {
	return NewPaginator(PaginatorConfig{
		Logger: log.DefaultLogger,
		Gate:   gate,
		Remote: remote,
		Local:  local,
		Daemon: interfaces.MakeNoOpDeamon(),
	})
}
