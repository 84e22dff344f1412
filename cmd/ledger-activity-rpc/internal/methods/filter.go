package methods

import (
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/history"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// FilterOptions are the record predicates shared by the history methods.
type FilterOptions struct {
	ExcludeFailed      bool     `json:"excludeFailed,omitempty"`
	Types              []string `json:"types,omitempty"`
	SourceAccount      string   `json:"sourceAccount,omitempty"`
	DestinationAccount string   `json:"destinationAccount,omitempty"`
	Direction          string   `json:"direction,omitempty"`
}

func (o FilterOptions) filter() (history.Filter, error) {
	filter := history.Filter{
		ExcludeFailed:      o.ExcludeFailed,
		SourceAccount:      o.SourceAccount,
		DestinationAccount: o.DestinationAccount,
	}
	for _, name := range o.Types {
		t, err := transactions.ParseType(name)
		if err != nil {
			return history.Filter{}, invalidParams("%v", err)
		}
		filter.Types = append(filter.Types, t)
	}
	if o.SourceAccount != "" && !transactions.ValidAccount(o.SourceAccount) {
		return history.Filter{}, invalidParams("invalid source account %q", o.SourceAccount)
	}
	if o.DestinationAccount != "" && !transactions.ValidAccount(o.DestinationAccount) {
		return history.Filter{}, invalidParams("invalid destination account %q", o.DestinationAccount)
	}
	direction, err := history.ParseDirection(o.Direction)
	if err != nil {
		return history.Filter{}, invalidParams("%v", err)
	}
	filter.Direction = direction
	return filter, nil
}

func validateAccount(account string) error {
	if account == "" {
		return invalidParams("account is required")
	}
	if !transactions.ValidAccount(account) {
		return invalidParams("invalid account %q", account)
	}
	return nil
}

// ledgerRange turns optional request bounds into ledger query bounds.
func ledgerRange(minIndex, maxIndex *int64) (int64, int64, error) {
	lower, upper := ledger.Unbounded, ledger.Unbounded
	if minIndex != nil {
		if *minIndex < 0 {
			return 0, 0, invalidParams("ledger index cannot be negative")
		}
		lower = *minIndex
	}
	if maxIndex != nil {
		if *maxIndex < 0 {
			return 0, 0, invalidParams("ledger index cannot be negative")
		}
		upper = *maxIndex
	}
	if lower != ledger.Unbounded && upper != ledger.Unbounded && upper < lower {
		return 0, 0, invalidParams("ledger index max (%d) is below ledger index min (%d)", upper, lower)
	}
	return lower, upper, nil
}
