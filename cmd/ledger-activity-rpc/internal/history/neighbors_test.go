package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

func newTestResolver(t require.TestingT, remote *ledger.MockLedger, local *db.MockTransactionStore) *NeighborResolver {
	siblings, err := ledger.NewSiblingCounter(remote, 16)
	require.NoError(t, err)
	return NewNeighborResolver(newTestPaginator(&stubGate{}, remote, local), siblings, local)
}

func TestResolveNeighborsScenario(t *testing.T) {
	t1, t2, t3 := payment("T1", 100, 1000), payment("T2", 100, 1001), payment("T3", 105, 1010)
	remote := ledger.NewMockLedger(validated(t1, t2, t3)...)
	local := db.NewMockTransactionStore(failedLocal("order", 105, 1005, transactions.TypeOfferCreate))
	resolver := newTestResolver(t, remote, local)

	neighbors, err := resolver.Resolve(context.Background(), alice, t2, Filter{ExcludeFailed: true})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{
		PreviousIdentifier: "T1",
		PreviousHash:       "T1",
		NextIdentifier:     "T3",
		NextHash:           "T3",
	}, neighbors)

	neighbors, err = resolver.Resolve(context.Background(), alice, t2, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{
		PreviousIdentifier: "T1",
		PreviousHash:       "T1",
		NextIdentifier:     "order",
	}, neighbors)

	// the ends of the history have a single neighbor
	neighbors, err = resolver.Resolve(context.Background(), alice, t1, Filter{ExcludeFailed: true})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{NextIdentifier: "T2", NextHash: "T2"}, neighbors)

	neighbors, err = resolver.Resolve(context.Background(), alice, t3, Filter{ExcludeFailed: true})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{PreviousIdentifier: "T2", PreviousHash: "T2"}, neighbors)
}

func TestResolveNeighborsOfLocalBase(t *testing.T) {
	t1, t3 := payment("T1", 100, 1000), payment("T3", 105, 1010)
	order := failedLocal("order", 105, 1005, transactions.TypeOfferCreate)
	remote := ledger.NewMockLedger(validated(t1, t3)...)
	local := db.NewMockTransactionStore(order)
	resolver := newTestResolver(t, remote, local)

	neighbors, err := resolver.Resolve(context.Background(), alice, order, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{
		PreviousIdentifier: "T1",
		PreviousHash:       "T1",
		NextIdentifier:     "T3",
		NextHash:           "T3",
	}, neighbors)
}

func TestResolveNeighborsSameLedgerSiblings(t *testing.T) {
	// every sibling of the base lands on the same side of it
	var txs []transactions.Transaction
	txs = append(txs, payment("EARLY", 90, 0))
	for i := 0; i < 5; i++ {
		txs = append(txs, payment(fmt.Sprintf("S%d", i), 100, int64(i)))
	}
	txs = append(txs, payment("LATE", 110, 0))
	remote := ledger.NewMockLedger(validated(txs...)...)
	resolver := newTestResolver(t, remote, db.NewMockTransactionStore())

	neighbors, err := resolver.Resolve(context.Background(), alice, txs[1], Filter{})
	require.NoError(t, err)
	assert.Equal(t, "EARLY", neighbors.PreviousHash)
	assert.Equal(t, "S1", neighbors.NextHash)

	neighbors, err = resolver.Resolve(context.Background(), alice, txs[5], Filter{})
	require.NoError(t, err)
	assert.Equal(t, "S3", neighbors.PreviousHash)
	assert.Equal(t, "LATE", neighbors.NextHash)
}

func TestResolveNeighborsErrors(t *testing.T) {
	remote := ledger.NewMockLedger(validated(payment("T1", 100, 0))...)
	resolver := newTestResolver(t, remote, db.NewMockTransactionStore())

	_, err := resolver.Resolve(context.Background(), alice, failedLocal("pending", 0, 0, transactions.TypePayment), Filter{})
	require.ErrorIs(t, err, ErrBaseNotOrdered)

	anonymous := payment("", 100, 5)
	_, err = resolver.Resolve(context.Background(), alice, anonymous, Filter{})
	require.ErrorIs(t, err, ErrNeighborContractViolation)

	broken := db.NewMockTransactionStore()
	broken.Err = errors.New("disk on fire")
	resolver = newTestResolver(t, remote, broken)
	_, err = resolver.Resolve(context.Background(), alice, payment("T1", 100, 0), Filter{})
	require.ErrorIs(t, err, ErrSourceQueryFailed)

	remote.Err = errors.New("connection reset")
	resolver = newTestResolver(t, remote, db.NewMockTransactionStore())
	_, err = resolver.Resolve(context.Background(), alice, payment("T1", 100, 0), Filter{})
	require.ErrorIs(t, err, ErrSourceQueryFailed)
}

func TestResolveNeighborsHashlessSiblings(t *testing.T) {
	// both halves of the window include ledger 105, hashless records included
	t1, t3 := payment("T1", 100, 1000), payment("T3", 105, 1010)
	first := failedLocal("first", 105, 1003, transactions.TypeOfferCreate)
	second := failedLocal("second", 105, 1005, transactions.TypeOfferCreate)
	remote := ledger.NewMockLedger(validated(t1, t3)...)
	resolver := newTestResolver(t, remote, db.NewMockTransactionStore(first, second))
	ctx := context.Background()

	neighbors, err := resolver.Resolve(ctx, alice, first, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{PreviousIdentifier: "T1", PreviousHash: "T1", NextIdentifier: "second"}, neighbors)

	neighbors, err = resolver.Resolve(ctx, alice, second, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{PreviousIdentifier: "first", NextIdentifier: "T3", NextHash: "T3"}, neighbors)

	neighbors, err = resolver.Resolve(ctx, alice, t3, Filter{})
	require.NoError(t, err)
	assert.Equal(t, Neighbors{PreviousIdentifier: "second"}, neighbors)
}

// TestResolveNeighborsSymmetric checks that the successor's predecessor is the
// base, over histories mixing ledger payments with local failed records that
// share ledgers, with and without a hash.
func TestResolveNeighborsSymmetric(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(2, 12).Draw(t, "n")
		var all, remoteTxs, localTxs []transactions.Transaction
		ledgerIndex := uint32(100)
		for i := 0; i < n; i++ {
			ledgerIndex += uint32(rapid.IntRange(0, 2).Draw(t, "gap"))
			var tx transactions.Transaction
			switch rapid.IntRange(0, 2).Draw(t, "kind") {
			case 0:
				tx = payment(fmt.Sprintf("H%02d", i), ledgerIndex, int64(i))
				remoteTxs = append(remoteTxs, tx)
			case 1:
				tx = failedLocal(fmt.Sprintf("crid-%02d", i), ledgerIndex, int64(i), transactions.TypeOfferCreate)
				localTxs = append(localTxs, tx)
			default:
				tx = failedLocal(fmt.Sprintf("crid-%02d", i), ledgerIndex, int64(i), transactions.TypePayment)
				tx.Hash = fmt.Sprintf("F%02d", i)
				localTxs = append(localTxs, tx)
			}
			all = append(all, tx)
		}
		remote := ledger.NewMockLedger(validated(remoteTxs...)...)
		resolver := newTestResolver(t, remote, db.NewMockTransactionStore(localTxs...))
		ctx := context.Background()

		i := rapid.IntRange(0, n-2).Draw(t, "base")
		neighbors, err := resolver.Resolve(ctx, alice, all[i], Filter{})
		require.NoError(t, err)
		require.Equal(t, all[i+1].Identifier(), neighbors.NextIdentifier)
		require.Equal(t, all[i+1].Hash, neighbors.NextHash)

		neighbors, err = resolver.Resolve(ctx, alice, all[i+1], Filter{})
		require.NoError(t, err)
		assert.Equal(t, all[i].Identifier(), neighbors.PreviousIdentifier)
		assert.Equal(t, all[i].Hash, neighbors.PreviousHash)
	})
}
