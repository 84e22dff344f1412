package db

import (
	"context"
	"path"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const account = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func NewTestDB(tb testing.TB) *DB {
	tmp := tb.TempDir()
	dbPath := path.Join(tmp, "db.sqlite")
	db, err := OpenSQLiteDB(dbPath)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		require.NoError(tb, db.Close())
	})
	return db
}

func newTestStore(t *testing.T) TransactionReadWriter {
	logger := log.DefaultLogger
	logger.SetLevel(logrus.TraceLevel)
	return NewTransactionStore(logger, NewTestDB(t), interfaces.MakeNoOpDeamon())
}

func outgoing(crid string, ledger uint32, state transactions.State) transactions.Transaction {
	return transactions.Transaction{
		ClientResourceID: crid,
		Account:          account,
		Type:             transactions.TypePayment,
		Destination:      "rPMh7Pi9ct699iZUTWaytJUoHcJ7cgyziK",
		State:            state,
		LedgerIndex:      ledger,
		Timestamp:        int64(ledger) * 10,
	}
}

func TestTransactionNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.TODO()

	_, err := store.GetTransaction(ctx, account, Identifier{ClientResourceID: "missing"})
	require.ErrorIs(t, err, ErrNoTransaction)

	_, err = store.GetTransaction(ctx, account, Identifier{})
	require.ErrorIs(t, err, ErrNoIdentifier)

	require.ErrorIs(t, store.UpdateTransaction(ctx, outgoing("missing", 1, transactions.StateFailed)), ErrNoTransaction)
}

func TestTransactionFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.TODO()

	tx := outgoing("crid-1", 0, "")
	require.NoError(t, store.InsertTransaction(ctx, tx))

	stored, err := store.GetTransaction(ctx, account, Identifier{ClientResourceID: "crid-1"})
	require.NoError(t, err)
	assert.Equal(t, transactions.StatePending, stored.State)
	assert.Equal(t, transactions.OriginLocal, stored.Origin)
	assert.False(t, stored.Ordered())

	tx.Hash = "A1B2"
	tx.State = transactions.StateFailed
	tx.Result = "tecPATH_DRY"
	tx.LedgerIndex = 105
	require.NoError(t, store.UpdateTransaction(ctx, tx))

	stored, err = store.GetTransaction(ctx, account, Identifier{Hash: "A1B2"})
	require.NoError(t, err)
	assert.Equal(t, "crid-1", stored.ClientResourceID)
	assert.Equal(t, uint32(105), stored.LedgerIndex)
	assert.True(t, stored.Failed())

	// another account can't see it
	_, err = store.GetTransaction(ctx, "rOther", Identifier{Hash: "A1B2"})
	require.ErrorIs(t, err, ErrNoTransaction)
}

func TestGetFailedTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.TODO()

	for _, tx := range []transactions.Transaction{
		outgoing("a", 100, transactions.StateFailed),
		outgoing("b", 105, transactions.StateFailed),
		outgoing("c", 105, transactions.StateValidated),
		outgoing("d", 110, transactions.StateFailed),
	} {
		require.NoError(t, store.InsertTransaction(ctx, tx))
	}
	other := outgoing("e", 105, transactions.StateFailed)
	other.Account = "rOther"
	require.NoError(t, store.InsertTransaction(ctx, other))

	for _, testCase := range []struct {
		name     string
		min, max int64
		expected []string
	}{
		{"unbounded", -1, -1, []string{"a", "b", "d"}},
		{"lower bound", 105, -1, []string{"b", "d"}},
		{"upper bound", -1, 105, []string{"a", "b"}},
		{"single ledger", 105, 105, []string{"b"}},
		{"empty", 200, -1, nil},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			txs, err := store.GetFailedTransactions(ctx, FailedTransactionsQuery{
				Account:        account,
				LedgerIndexMin: testCase.min,
				LedgerIndexMax: testCase.max,
			})
			require.NoError(t, err)
			var crids []string
			for _, tx := range txs {
				crids = append(crids, tx.ClientResourceID)
			}
			assert.Equal(t, testCase.expected, crids)
		})
	}

	count, err := store.SiblingCount(ctx, account, 105)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = store.SiblingCount(ctx, account, 999)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMockMatchesStore(t *testing.T) {
	ctx := context.TODO()
	seed := []transactions.Transaction{
		outgoing("a", 100, transactions.StateFailed),
		outgoing("b", 105, transactions.StateFailed),
		outgoing("c", 105, transactions.StateValidated),
	}
	store := newTestStore(t)
	for _, tx := range seed {
		require.NoError(t, store.InsertTransaction(ctx, tx))
	}
	mock := NewMockTransactionStore(seed...)

	query := FailedTransactionsQuery{Account: account, LedgerIndexMin: -1, LedgerIndexMax: -1}
	fromStore, err := store.GetFailedTransactions(ctx, query)
	require.NoError(t, err)
	fromMock, err := mock.GetFailedTransactions(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, fromStore, fromMock)
}
