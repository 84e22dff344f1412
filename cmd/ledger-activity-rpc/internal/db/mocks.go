package db

import (
	"context"
	"sort"
	"sync"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// MockTransactionStore is an in-memory TransactionReadWriter.
type MockTransactionStore struct {
	mu  sync.Mutex
	txs []transactions.Transaction

	// Err, when set, is returned by every read.
	Err error
}

// NewMockTransactionStore returns a store holding txs as local records.
func NewMockTransactionStore(txs ...transactions.Transaction) *MockTransactionStore {
	store := &MockTransactionStore{}
	for _, tx := range txs {
		tx.Origin = transactions.OriginLocal
		store.txs = append(store.txs, tx)
	}
	return store
}

func (m *MockTransactionStore) GetFailedTransactions(_ context.Context, query FailedTransactionsQuery) (
	[]transactions.Transaction, error,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}

	var result []transactions.Transaction
	for _, tx := range m.txs {
		if tx.Account != query.Account || tx.State != transactions.StateFailed {
			continue
		}
		if query.LedgerIndexMin >= 0 && int64(tx.LedgerIndex) < query.LedgerIndexMin {
			continue
		}
		if query.LedgerIndexMax >= 0 && int64(tx.LedgerIndex) > query.LedgerIndexMax {
			continue
		}
		result = append(result, tx)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LedgerIndex < result[j].LedgerIndex
	})
	return result, nil
}

func (m *MockTransactionStore) SiblingCount(_ context.Context, account string, ledgerIndex uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	count := 0
	for _, tx := range m.txs {
		if tx.Account == account && tx.State == transactions.StateFailed && tx.LedgerIndex == ledgerIndex {
			count++
		}
	}
	return count, nil
}

func (m *MockTransactionStore) GetTransaction(_ context.Context, account string, id Identifier) (
	transactions.Transaction, error,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return transactions.Transaction{}, m.Err
	}
	if id.Hash == "" && id.ClientResourceID == "" {
		return transactions.Transaction{}, ErrNoIdentifier
	}
	for _, tx := range m.txs {
		if tx.Account != account {
			continue
		}
		if id.Hash != "" && tx.Hash == id.Hash {
			return tx, nil
		}
		if id.Hash == "" && tx.ClientResourceID == id.ClientResourceID {
			return tx, nil
		}
	}
	return transactions.Transaction{}, ErrNoTransaction
}

func (m *MockTransactionStore) InsertTransaction(_ context.Context, tx transactions.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.Origin = transactions.OriginLocal
	m.txs = append(m.txs, tx)
	return nil
}

func (m *MockTransactionStore) UpdateTransaction(_ context.Context, tx transactions.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.txs {
		if m.txs[i].Account == tx.Account && m.txs[i].ClientResourceID == tx.ClientResourceID {
			m.txs[i].Hash = tx.Hash
			m.txs[i].State = tx.State
			m.txs[i].Result = tx.Result
			m.txs[i].LedgerIndex = tx.LedgerIndex
			return nil
		}
	}
	return ErrNoTransaction
}

var _ TransactionReadWriter = &MockTransactionStore{}
