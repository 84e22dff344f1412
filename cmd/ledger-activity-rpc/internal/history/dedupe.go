package history

import (
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// Dedupe collapses records sharing a hash into one, keeping the position of
// the first occurrence. A remote copy replaces a local one. Records without a
// hash are never considered duplicates.
func Dedupe(records []transactions.Transaction) []transactions.Transaction {
	return dedupeBy(records, func(tx transactions.Transaction) string { return tx.Hash })
}

// dedupeByKey is Dedupe extended to hashless records, which collapse on their
// client resource id. It is for windows whose sources may overlap, such as the
// two halves of a neighbor window sharing the base ledger.
func dedupeByKey(records []transactions.Transaction) []transactions.Transaction {
	return dedupeBy(records, transactions.Transaction.Key)
}

func dedupeBy(records []transactions.Transaction, key func(transactions.Transaction) string) []transactions.Transaction {
	result := make([]transactions.Transaction, 0, len(records))
	seen := make(map[string]int, len(records))
	for _, tx := range records {
		k := key(tx)
		if k == "" {
			result = append(result, tx)
			continue
		}
		i, ok := seen[k]
		if !ok {
			seen[k] = len(result)
			result = append(result, tx)
			continue
		}
		if result[i].Origin != transactions.OriginRemote && tx.Origin == transactions.OriginRemote {
			if tx.ClientResourceID == "" {
				tx.ClientResourceID = result[i].ClientResourceID
			}
			result[i] = tx
		}
	}
	return result
}
