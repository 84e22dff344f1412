package history

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/ledger"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// SiblingCounter counts an account's transactions within one ledger.
type SiblingCounter interface {
	SiblingCount(ctx context.Context, account string, ledgerIndex uint32) (int, error)
}

// Neighbors are the transactions right before and after a base transaction in
// an account's history. Empty fields mean there is no such neighbor.
type Neighbors struct {
	PreviousIdentifier string `json:"previousIdentifier,omitempty"`
	PreviousHash       string `json:"previousHash,omitempty"`
	NextIdentifier     string `json:"nextIdentifier,omitempty"`
	NextHash           string `json:"nextHash,omitempty"`
}

type NeighborResolver struct {
	paginator      *Paginator
	remoteSiblings SiblingCounter
	localSiblings  SiblingCounter
}

func NewNeighborResolver(paginator *Paginator, remoteSiblings, localSiblings SiblingCounter) *NeighborResolver {
	return &NeighborResolver{
		paginator:      paginator,
		remoteSiblings: remoteSiblings,
		localSiblings:  localSiblings,
	}
}

// siblingCount returns how many of the account's transactions share the base
// transaction's ledger, across both sources.
func (r *NeighborResolver) siblingCount(ctx context.Context, account string, ledgerIndex uint32, filter Filter) (int, error) {
	if err := r.paginator.gate.EnsureConnected(ctx); err != nil {
		return 0, err
	}
	remote, err := r.remoteSiblings.SiblingCount(ctx, account, ledgerIndex)
	if err != nil {
		return 0, sourceError(SourceRemote, err)
	}
	if filter.ExcludeFailed {
		return remote, nil
	}
	local, err := r.localSiblings.SiblingCount(ctx, account, ledgerIndex)
	if err != nil {
		return 0, sourceError(SourceLocal, err)
	}
	return remote + local, nil
}

// Resolve finds the predecessor and successor of base in the account's
// history, as seen through filter. It fetches k+1 records on each side of the
// base ledger, k being the number of the account's transactions in that
// ledger, so that the neighbors are present even if every sibling falls on
// one side.
func (r *NeighborResolver) Resolve(ctx context.Context, account string, base transactions.Transaction, filter Filter) (Neighbors, error) {
	if !base.Ordered() {
		return Neighbors{}, ErrBaseNotOrdered
	}

	k, err := r.siblingCount(ctx, account, base.LedgerIndex, filter)
	if err != nil {
		return Neighbors{}, err
	}
	window := k + 1

	var backward, forward []transactions.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		backward, err = r.paginator.Paginate(gctx, PageRequest{
			Account:        account,
			Filter:         filter,
			LedgerIndexMin: ledger.Unbounded,
			LedgerIndexMax: int64(base.LedgerIndex),
			Descending:     true,
			Min:            window,
			Max:            window,
		})
		return err
	})
	g.Go(func() error {
		var err error
		forward, err = r.paginator.Paginate(gctx, PageRequest{
			Account:        account,
			Filter:         filter,
			LedgerIndexMin: int64(base.LedgerIndex),
			LedgerIndexMax: ledger.Unbounded,
			Descending:     false,
			Min:            window,
			Max:            window,
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return Neighbors{}, err
	}

	candidates := make([]transactions.Transaction, 0, len(backward)+len(forward)+1)
	candidates = append(candidates, backward...)
	candidates = append(candidates, forward...)
	if !containsTransaction(candidates, base) {
		candidates = append(candidates, base)
	}
	// both halves include the base ledger, so its records come back twice
	candidates = Order(dedupeByKey(candidates), false)

	position := -1
	for i, tx := range candidates {
		if base.Same(tx) {
			position = i
			break
		}
	}
	if position < 0 {
		return Neighbors{}, fmt.Errorf("%w: %s", ErrNeighborContractViolation, base.Identifier())
	}

	var neighbors Neighbors
	if position > 0 {
		previous := candidates[position-1]
		neighbors.PreviousIdentifier = previous.Identifier()
		neighbors.PreviousHash = previous.Hash
	}
	if position+1 < len(candidates) {
		next := candidates[position+1]
		neighbors.NextIdentifier = next.Identifier()
		neighbors.NextHash = next.Hash
	}
	return neighbors, nil
}

func containsTransaction(records []transactions.Transaction, tx transactions.Transaction) bool {
	for _, candidate := range records {
		if tx.Same(candidate) {
			return true
		}
	}
	return false
}
