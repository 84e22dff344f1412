package history

import (
	"sort"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// Order sorts records by ledger index then timestamp, inverting both when
// descending. The sort is stable. Records without a ledger index go last in
// either direction.
func Order(records []transactions.Transaction, descending bool) []transactions.Transaction {
	result := make([]transactions.Transaction, len(records))
	copy(result, records)
	sort.SliceStable(result, func(i, j int) bool {
		return before(result[i], result[j], descending)
	})
	return result
}

func before(a, b transactions.Transaction, descending bool) bool {
	if a.Ordered() != b.Ordered() {
		return a.Ordered()
	}
	if a.LedgerIndex != b.LedgerIndex {
		return (a.LedgerIndex < b.LedgerIndex) != descending
	}
	if a.Timestamp != b.Timestamp {
		return (a.Timestamp < b.Timestamp) != descending
	}
	return false
}

func dropUnordered(records []transactions.Transaction) []transactions.Transaction {
	result := records[:0:0]
	for _, tx := range records {
		if tx.Ordered() {
			result = append(result, tx)
		}
	}
	return result
}
