package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const mockDefaultLimit = 200

// MockLedger is an in-memory ledger server. Its markers are positions in the
// account's history.
type MockLedger struct {
	mu       sync.Mutex
	entries  []Entry
	requests []AccountTxRequest

	CompleteLedgers string
	// Err, when set, is returned by every request.
	Err error
}

func NewMockLedger(entries ...Entry) *MockLedger {
	m := &MockLedger{}
	m.Add(entries...)
	return m
}

// Add appends entries to the ledger.
func (m *MockLedger) Add(entries ...Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		entry.Transaction.Origin = transactions.OriginRemote
		m.entries = append(m.entries, entry)
	}
	sort.SliceStable(m.entries, func(i, j int) bool {
		a, b := m.entries[i].Transaction, m.entries[j].Transaction
		if a.LedgerIndex != b.LedgerIndex {
			return a.LedgerIndex < b.LedgerIndex
		}
		return a.Timestamp < b.Timestamp
	})
}

// Requests returns every account_tx request served so far.
func (m *MockLedger) Requests() []AccountTxRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]AccountTxRequest(nil), m.requests...)
}

func (m *MockLedger) AccountTransactions(_ context.Context, request AccountTxRequest) (AccountTxPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, request)
	if m.Err != nil {
		return AccountTxPage{}, m.Err
	}

	var history []Entry
	for _, entry := range m.entries {
		tx := entry.Transaction
		if !tx.Involves(request.Account) {
			continue
		}
		if request.LedgerIndexMin >= 0 && int64(tx.LedgerIndex) < request.LedgerIndexMin {
			continue
		}
		if request.LedgerIndexMax >= 0 && int64(tx.LedgerIndex) > request.LedgerIndexMax {
			continue
		}
		history = append(history, entry)
	}
	if !request.Forward {
		for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
			history[i], history[j] = history[j], history[i]
		}
	}

	start := 0
	if !request.Marker.IsZero() {
		var position string
		if err := json.Unmarshal(request.Marker, &position); err != nil {
			return AccountTxPage{}, fmt.Errorf("invalid marker %s: %w", request.Marker, err)
		}
		var err error
		if start, err = strconv.Atoi(position); err != nil {
			return AccountTxPage{}, fmt.Errorf("invalid marker %s: %w", request.Marker, err)
		}
	}
	limit := request.Limit
	if limit <= 0 {
		limit = mockDefaultLimit
	}
	start = min(start, len(history))
	end := min(start+limit, len(history))

	page := AccountTxPage{Entries: append([]Entry(nil), history[start:end]...)}
	if end < len(history) {
		page.Marker = transactions.MarkerFromString(strconv.Itoa(end))
	}
	return page, nil
}

func (m *MockLedger) Transaction(_ context.Context, hash string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Entry{}, m.Err
	}
	for _, entry := range m.entries {
		if entry.Transaction.Hash == hash {
			return entry, nil
		}
	}
	return Entry{}, ErrTransactionNotFound
}

func (m *MockLedger) ServerInfo(context.Context) (ServerInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return ServerInfo{}, m.Err
	}
	info := ServerInfo{CompleteLedgers: m.CompleteLedgers}
	for _, entry := range m.entries {
		info.ValidatedLedger = max(info.ValidatedLedger, entry.Transaction.LedgerIndex)
	}
	return info, nil
}

func (m *MockLedger) LedgerClosed(ctx context.Context) (uint32, error) {
	info, err := m.ServerInfo(ctx)
	return info.ValidatedLedger, err
}

func (m *MockLedger) Reconnect() {}
