package history

import (
	"fmt"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

func ParseDirection(s string) (Direction, error) {
	switch d := Direction(s); d {
	case "", DirectionIncoming, DirectionOutgoing:
		return d, nil
	default:
		return "", fmt.Errorf("direction must be %q or %q", DirectionIncoming, DirectionOutgoing)
	}
}

// Filter holds the optional predicates a caller may apply. Unset fields
// match everything and set fields are ANDed.
//
// A payment the account only relays (it is neither source nor destination)
// matches neither direction.
type Filter struct {
	ExcludeFailed      bool
	Types              []transactions.Type
	SourceAccount      string
	DestinationAccount string
	Direction          Direction
}

// Narrow reports whether the type predicate excludes any known type.
func (f Filter) Narrow() bool {
	if len(f.Types) == 0 {
		return false
	}
	for _, known := range transactions.AllTypes {
		if !f.hasType(known) {
			return true
		}
	}
	return false
}

func (f Filter) hasType(t transactions.Type) bool {
	for _, allowed := range f.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// Match reports whether tx passes every predicate for account.
func (f Filter) Match(account string, tx transactions.Transaction) bool {
	if f.ExcludeFailed && tx.Failed() {
		return false
	}
	if len(f.Types) > 0 && !f.hasType(tx.Type) {
		return false
	}
	if f.SourceAccount != "" && tx.Account != f.SourceAccount {
		return false
	}
	if f.DestinationAccount != "" && tx.Destination != f.DestinationAccount {
		return false
	}
	switch f.Direction {
	case DirectionOutgoing:
		return tx.Account == account
	case DirectionIncoming:
		return tx.Destination == account
	}
	return true
}

// Apply returns the records matching the filter, in input order.
func (f Filter) Apply(account string, records []transactions.Transaction) []transactions.Transaction {
	result := make([]transactions.Transaction, 0, len(records))
	for _, tx := range records {
		if f.Match(account, tx) {
			result = append(result, tx)
		}
	}
	return result
}
