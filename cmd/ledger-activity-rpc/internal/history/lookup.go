package history

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/db"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const hashLength = 64

// TransactionSource fetches single transactions from the ledger server.
type TransactionSource interface {
	Transaction(ctx context.Context, hash string) (ledger.Entry, error)
}

// LocalLookup finds locally recorded transactions.
type LocalLookup interface {
	GetTransaction(ctx context.Context, account string, id db.Identifier) (transactions.Transaction, error)
}

// IsHash reports whether identifier looks like a transaction hash rather than
// a client resource id.
func IsHash(identifier string) bool {
	if len(identifier) != hashLength {
		return false
	}
	_, err := hex.DecodeString(identifier)
	return err == nil
}

type Lookup struct {
	gate   Gate
	remote TransactionSource
	local  LocalLookup
}

func NewLookup(gate Gate, remote TransactionSource, local LocalLookup) *Lookup {
	return &Lookup{gate: gate, remote: remote, local: local}
}

// Get resolves identifier, a hash or a client resource id, to one of the
// account's transactions. The local store is consulted first. A local record
// stands on its own when it failed or never got a hash; otherwise the ledger
// server copy is returned.
func (l *Lookup) Get(ctx context.Context, account, identifier string) (transactions.Transaction, error) {
	id := db.Identifier{ClientResourceID: identifier}
	if IsHash(identifier) {
		id = db.Identifier{Hash: identifier}
	}

	if err := l.gate.EnsureConnected(ctx); err != nil {
		return transactions.Transaction{}, err
	}

	local, err := l.local.GetTransaction(ctx, account, id)
	found := err == nil
	if err != nil && !errors.Is(err, db.ErrNoTransaction) {
		return transactions.Transaction{}, sourceError(SourceLocal, err)
	}

	var tx transactions.Transaction
	switch {
	case found && (local.Failed() || local.Hash == ""):
		tx = local
	case found:
		if tx, err = l.fetchRemote(ctx, local.Hash); err != nil {
			return transactions.Transaction{}, err
		}
		tx.ClientResourceID = local.ClientResourceID
	case id.Hash != "":
		if tx, err = l.fetchRemote(ctx, id.Hash); err != nil {
			return transactions.Transaction{}, err
		}
	default:
		return transactions.Transaction{}, ErrTransactionNotFound
	}

	if !tx.Involves(account) {
		return transactions.Transaction{}, ErrNotRelated
	}
	if id.ClientResourceID != "" {
		tx.ClientResourceID = id.ClientResourceID
	}
	return tx, nil
}

func (l *Lookup) fetchRemote(ctx context.Context, hash string) (transactions.Transaction, error) {
	entry, err := l.remote.Transaction(ctx, hash)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return transactions.Transaction{}, ErrTransactionNotFound
	} else if err != nil {
		return transactions.Transaction{}, sourceError(SourceRemote, err)
	}
	tx := entry.Transaction
	tx.Origin = transactions.OriginRemote
	return tx, nil
}
