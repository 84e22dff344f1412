package transactions

import (
	"fmt"
	"strings"
)

// Type is the kind of a ledger transaction.
type Type string

const (
	TypePayment     Type = "payment"
	TypeOfferCreate Type = "offercreate"
	TypeOfferCancel Type = "offercancel"
	TypeTrustSet    Type = "trustset"
	TypeAccountSet  Type = "accountset"
)

// AllTypes lists every transaction type known to the resolver.
//
//nolint:gochecknoglobals
var AllTypes = []Type{TypePayment, TypeOfferCreate, TypeOfferCancel, TypeTrustSet, TypeAccountSet}

// ParseType accepts both the lower case API spelling ("offercreate") and the
// ledger spelling ("OfferCreate").
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(s))
	for _, known := range AllTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// State is the lifecycle state of a transaction record.
type State string

const (
	StateValidated State = "validated"
	StateFailed    State = "failed"
	StatePending   State = "pending"
)

// Origin tells which source produced a record.
type Origin string

const (
	OriginRemote Origin = "remote"
	OriginLocal  Origin = "local"
)

// ResultSuccess is the result code of a transaction which applied successfully.
const ResultSuccess = "tesSUCCESS"

// Transaction is a single account transaction, either reported by the remote
// ledger or recorded locally when it was submitted.
type Transaction struct {
	// Hash is unset for local records which never made it to the ledger.
	Hash string `json:"hash,omitempty"`
	// ClientResourceID is the caller supplied correlation key.
	ClientResourceID string `json:"clientResourceId,omitempty"`
	// LedgerIndex is zero until the transaction is part of a validated ledger.
	LedgerIndex uint32 `json:"ledgerIndex,omitempty"`
	// Timestamp (unix seconds) only breaks ties between transactions of one ledger.
	Timestamp   int64  `json:"timestamp,omitempty"`
	Type        Type   `json:"type"`
	Account     string `json:"account"`
	Destination string `json:"destination,omitempty"`
	State       State  `json:"state"`
	Result      string `json:"result,omitempty"`
	Origin      Origin `json:"origin"`
	// AffectedAccounts are accounts touched by the transaction other than the
	// source and destination, e.g. intermediaries of a rippling payment.
	AffectedAccounts []string `json:"affectedAccounts,omitempty"`
}

// Ordered reports whether the record has a position in the global order.
func (tx Transaction) Ordered() bool {
	return tx.LedgerIndex != 0
}

// Failed reports whether the transaction did not apply successfully.
func (tx Transaction) Failed() bool {
	if tx.State == StateFailed {
		return true
	}
	return tx.Result != "" && tx.Result != ResultSuccess
}

// Identifier returns the identifier clients use to address the record: local
// records are addressed by client resource id, ledger records by hash.
func (tx Transaction) Identifier() string {
	if tx.Origin == OriginLocal && tx.ClientResourceID != "" {
		return tx.ClientResourceID
	}
	return tx.Hash
}

// Key identifies a record across continuation rounds. It is empty for a record
// carrying neither a hash nor a client resource id.
func (tx Transaction) Key() string {
	if tx.Hash != "" {
		return tx.Hash
	}
	if tx.ClientResourceID != "" {
		return "client:" + tx.ClientResourceID
	}
	return ""
}

// Involves reports whether account is the source, destination or otherwise
// affected by the transaction.
func (tx Transaction) Involves(account string) bool {
	if tx.Account == account || tx.Destination == account {
		return true
	}
	for _, affected := range tx.AffectedAccounts {
		if affected == account {
			return true
		}
	}
	return false
}

// Same reports whether other refers to the same transaction as tx, by hash or,
// failing that, by client resource id.
func (tx Transaction) Same(other Transaction) bool {
	if tx.Hash != "" && other.Hash == tx.Hash {
		return true
	}
	return tx.ClientResourceID != "" && other.ClientResourceID == tx.ClientResourceID
}
