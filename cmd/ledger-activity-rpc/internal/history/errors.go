package history

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceQueryFailed matches every error raised by the remote ledger or
	// the local store while fetching records.
	ErrSourceQueryFailed = errors.New("source query failed")
	// ErrNeighborContractViolation means the base transaction was absent from
	// its own neighbor window. It always indicates a bug.
	ErrNeighborContractViolation = errors.New("base transaction missing from its neighbor window")
	ErrBaseNotOrdered            = errors.New("base transaction has no ledger index yet")
	ErrTransactionNotFound       = errors.New("transaction not found")
	ErrNotRelated                = errors.New("transaction did not affect the given account")
	ErrLedgerGap                 = errors.New("ledger server is missing the ledger of the transaction")
)

const (
	SourceRemote = "remote"
	SourceLocal  = "local"
)

// SourceError is a failed query against one of the two transaction sources.
type SourceError struct {
	Source string
	Err    error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s source query failed: %v", e.Source, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

func (e *SourceError) Is(target error) bool {
	return target == ErrSourceQueryFailed
}

func sourceError(source string, err error) error {
	var already *SourceError
	if errors.As(err, &already) {
		return err
	}
	return &SourceError{Source: source, Err: err}
}
