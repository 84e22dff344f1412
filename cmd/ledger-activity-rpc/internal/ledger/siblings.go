package ledger

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const siblingPageLimit = 200

// AccountTxSource issues account_tx requests.
type AccountTxSource interface {
	AccountTransactions(ctx context.Context, request AccountTxRequest) (AccountTxPage, error)
}

type siblingKey struct {
	account     string
	ledgerIndex uint32
}

// SiblingCounter counts an account's validated transactions within one ledger.
// Validated ledgers never change, so counts are cached.
type SiblingCounter struct {
	source AccountTxSource
	cache  *lru.Cache[siblingKey, int]
}

func NewSiblingCounter(source AccountTxSource, cacheSize int) (*SiblingCounter, error) {
	cache, err := lru.New[siblingKey, int](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("could not create sibling count cache: %w", err)
	}
	return &SiblingCounter{source: source, cache: cache}, nil
}

func (s *SiblingCounter) SiblingCount(ctx context.Context, account string, ledgerIndex uint32) (int, error) {
	key := siblingKey{account: account, ledgerIndex: ledgerIndex}
	if count, ok := s.cache.Get(key); ok {
		return count, nil
	}

	request := AccountTxRequest{
		Account:        account,
		LedgerIndexMin: int64(ledgerIndex),
		LedgerIndexMax: int64(ledgerIndex),
		Limit:          siblingPageLimit,
		Forward:        true,
	}
	count := 0
	for {
		page, err := s.source.AccountTransactions(ctx, request)
		if err != nil {
			return 0, err
		}
		for _, entry := range page.Entries {
			if entry.Validated {
				count++
			}
		}
		if page.Marker.IsZero() {
			break
		}
		request.Marker = page.Marker
	}

	s.cache.Add(key, count)
	return count, nil
}
