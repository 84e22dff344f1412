package internal

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/config"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/methods"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const (
	alice = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"
	bob   = "rPMh7Pi9ct699iZUTWaytJUoHcJ7cgyziK"
)

type openGate struct{}

func (openGate) EnsureConnected(context.Context) error { return nil }

type fixedTracker struct {
	since  time.Duration
	latest uint32
}

func (f fixedTracker) SinceLastLedgerClose() (time.Duration, uint32) { return f.since, f.latest }

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

func newTestClient(t *testing.T, tracker methods.LedgerCloseTracker) *jrpc2.Client {
	hashes := []string{strings.Repeat("a", 64), strings.Repeat("b", 64), strings.Repeat("c", 64)}
	remote := ledger.NewMockLedger(
		payment(hashes[0], 100, 1000),
		payment(hashes[1], 100, 1001),
		payment(hashes[2], 105, 1010),
	)
	remote.CompleteLedgers = "90-110"
	local := db.NewMockTransactionStore(transactions.Transaction{
		ClientResourceID: "order",
		LedgerIndex:      105,
		Timestamp:        1005,
		Type:             transactions.TypeOfferCreate,
		Account:          alice,
		State:            transactions.StateFailed,
		Result:           "tecUNFUNDED_OFFER",
	})

	daemon := interfaces.MakeNoOpDeamon()
	paginator := history.NewPaginator(history.PaginatorConfig{
		Logger: log.DefaultLogger,
		Gate:   openGate{},
		Remote: remote,
		Local:  local,
		Daemon: daemon,
	})
	siblings, err := ledger.NewSiblingCounter(remote, 16)
	require.NoError(t, err)

	cfg := &config.Config{
		DefaultPageSize:    10,
		MaxPageSize:        200,
		RequestTimeout:     time.Second,
		ConnectionTimeout:  20 * time.Second,
		CORSAllowedOrigins: []string{"*"},
	}
	handler := NewJSONRPCHandler(cfg, HandlerParams{
		Daemon:     daemon,
		Logger:     log.DefaultLogger,
		Paginator:  paginator,
		Lookup:     history.NewLookup(openGate{}, remote, local),
		ServerInfo: remote,
		Neighbors:  history.NewNeighborResolver(paginator, siblings, local),
		Tracker:    tracker,
	})
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
		handler.Close()
	})

	client := jrpc2.NewClient(jhttp.NewChannel(server.URL, nil), nil)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestJSONRPCAccountTransactions(t *testing.T) {
	client := newTestClient(t, fixedTracker{since: time.Second, latest: 110})
	ctx := context.Background()

	var response methods.GetAccountTransactionsResponse
	require.NoError(t, client.CallResult(ctx, "getAccountTransactions", methods.GetAccountTransactionsRequest{
		Account:       alice,
		EarliestFirst: true,
		FilterOptions: methods.FilterOptions{ExcludeFailed: true},
	}, &response))
	require.Len(t, response.Transactions, 3)
	assert.Equal(t, strings.Repeat("a", 64), response.Transactions[0].Hash)
	assert.Equal(t, strings.Repeat("c", 64), response.Transactions[2].Hash)

	require.NoError(t, client.CallResult(ctx, "getAccountTransactions", methods.GetAccountTransactionsRequest{
		Account: alice,
		Max:     2,
	}, &response))
	require.Len(t, response.Transactions, 2)
	assert.Equal(t, strings.Repeat("c", 64), response.Transactions[0].Hash)
	assert.Equal(t, "order", response.Transactions[1].ClientResourceID)
}

func TestJSONRPCErrors(t *testing.T) {
	client := newTestClient(t, fixedTracker{since: time.Second, latest: 110})
	ctx := context.Background()

	var response methods.GetAccountTransactionsResponse
	err := client.CallResult(ctx, "getAccountTransactions", methods.GetAccountTransactionsRequest{
		Account: "not-an-account",
	}, &response)
	var rpcErr *jrpc2.Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jrpc2.InvalidParams, rpcErr.Code)

	var tx methods.GetTransactionResponse
	err = client.CallResult(ctx, "getTransaction", methods.GetTransactionRequest{
		Account:    alice,
		Identifier: strings.Repeat("f", 64),
	}, &tx)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, methods.NotFound, rpcErr.Code)

	err = client.CallResult(ctx, "noSuchMethod", nil, &tx)
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, jrpc2.MethodNotFound, rpcErr.Code)
}

func TestJSONRPCNotification(t *testing.T) {
	client := newTestClient(t, fixedTracker{since: time.Second, latest: 110})

	var response methods.GetNotificationResponse
	require.NoError(t, client.CallResult(context.Background(), "getNotification", methods.GetNotificationRequest{
		Account:       alice,
		Identifier:    strings.Repeat("b", 64),
		ExcludeFailed: true,
	}, &response))
	assert.Equal(t, strings.Repeat("b", 64), response.Transaction.Hash)
	assert.Equal(t, strings.Repeat("a", 64), response.PreviousHash)
	assert.Equal(t, strings.Repeat("c", 64), response.NextHash)
}

func TestJSONRPCHealth(t *testing.T) {
	client := newTestClient(t, fixedTracker{since: 2 * time.Second, latest: 110})
	var health methods.HealthCheckResult
	require.NoError(t, client.CallResult(context.Background(), "getHealth", nil, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, uint32(110), health.LatestLedger)
	assert.InDelta(t, 2.0, health.SecondsSinceLastClose, 0.001)

	stale := newTestClient(t, fixedTracker{since: time.Minute, latest: 110})
	err := stale.CallResult(context.Background(), "getHealth", nil, &health)
	require.ErrorContains(t, err, "since last known ledger closed is too high")
}
