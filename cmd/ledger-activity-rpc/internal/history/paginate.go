package history

import (
	"context"
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const (
	DefaultPageSize  = 10
	DefaultMaxRounds = 50
	// narrowFetchFactor over-fetches when the type filter will discard records.
	narrowFetchFactor = 2
)

// Gate is consulted before every round touching the ledger server.
type Gate interface {
	EnsureConnected(ctx context.Context) error
}

// PageRequest describes one window of an account's history. Min, when set,
// makes the paginator continue through the remote history until that many
// records matched or the history is exhausted. Max defaults to the larger of
// Min and the default page size. A Min above an explicit Max is clamped to Max.
type PageRequest struct {
	Account        string
	Filter         Filter
	LedgerIndexMin int64
	LedgerIndexMax int64
	Descending     bool
	Min            int
	Max            int
	Offset         int
}

type PaginatorConfig struct {
	Logger          *log.Entry
	Gate            Gate
	Remote          RemoteSource
	Local           LocalStore
	DefaultPageSize int
	MaxRounds       int
	Daemon          interfaces.Daemon
}

type Paginator struct {
	logger          *log.Entry
	gate            Gate
	fetcher         *Fetcher
	defaultPageSize int
	maxRounds       int

	roundsMetric prometheus.Summary
}

func NewPaginator(cfg PaginatorConfig) *Paginator {
	roundsMetric := prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: cfg.Daemon.MetricsNamespace(), Subsystem: "pagination", Name: "rounds",
		Help:       "number of fetch rounds needed to fill a page, sliding window = 10m",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	cfg.Daemon.MetricsRegistry().MustRegister(roundsMetric)

	p := &Paginator{
		logger:          cfg.Logger,
		gate:            cfg.Gate,
		fetcher:         &Fetcher{Remote: cfg.Remote, Local: cfg.Local},
		defaultPageSize: cfg.DefaultPageSize,
		maxRounds:       cfg.MaxRounds,
		roundsMetric:    roundsMetric,
	}
	if p.defaultPageSize <= 0 {
		p.defaultPageSize = DefaultPageSize
	}
	if p.maxRounds <= 0 {
		p.maxRounds = DefaultMaxRounds
	}
	return p
}

// pageState is what one round hands to the next.
type pageState struct {
	marker      transactions.Marker
	offset      int
	accumulated []transactions.Transaction
	round       int
	// frontier bounds the ledgers whose local records were already taken in,
	// so every local record joins exactly one round.
	frontier int64
}

func initialState(request PageRequest) pageState {
	state := pageState{offset: request.Offset, frontier: 0}
	if request.Descending {
		state.frontier = math.MaxInt64
	}
	return state
}

// advance folds one fetch result into the state and returns the next state.
func (s pageState) advance(request PageRequest, result FetchResult, maxCount int) pageState {
	next := pageState{
		marker: result.Marker,
		offset: s.offset,
		round:  s.round + 1,
	}
	next.frontier = s.nextFrontier(result, request.Descending)

	local := make([]transactions.Transaction, 0, len(result.Local))
	for _, tx := range result.Local {
		if covered(tx, s.frontier, next.frontier, request.Descending) {
			local = append(local, tx)
		}
	}
	fresh := make([]transactions.Transaction, 0, len(result.Remote)+len(local))
	fresh = append(fresh, result.Remote...)
	fresh = append(fresh, local...)
	fresh = request.Filter.Apply(request.Account, Dedupe(fresh))

	combined := make([]transactions.Transaction, 0, len(s.accumulated)+len(fresh))
	combined = append(combined, s.accumulated...)
	combined = append(combined, fresh...)
	combined = dropUnordered(Order(Dedupe(combined), request.Descending))

	if next.offset > 0 {
		consumed := min(next.offset, len(combined))
		combined = combined[consumed:]
		next.offset -= consumed
	}
	if len(combined) > maxCount {
		combined = combined[:maxCount]
	}
	next.accumulated = combined
	return next
}

// nextFrontier moves the frontier to the farthest ledger the remote reached
// this round, or past the end of history once the remote is exhausted.
func (s pageState) nextFrontier(result FetchResult, descending bool) int64 {
	if result.Marker.IsZero() {
		if descending {
			return 0
		}
		return math.MaxInt64
	}
	frontier := s.frontier
	for _, tx := range result.Remote {
		if !tx.Ordered() {
			continue
		}
		ledgerIndex := int64(tx.LedgerIndex)
		if descending && ledgerIndex < frontier {
			frontier = ledgerIndex
		} else if !descending && ledgerIndex > frontier {
			frontier = ledgerIndex
		}
	}
	return frontier
}

// covered reports whether tx lies between the previous and the new frontier.
// Going backward the window is [to, from), going forward (from, to].
func covered(tx transactions.Transaction, from, to int64, descending bool) bool {
	if !tx.Ordered() {
		return false
	}
	ledgerIndex := int64(tx.LedgerIndex)
	if descending {
		return ledgerIndex >= to && ledgerIndex < from
	}
	return ledgerIndex > from && ledgerIndex <= to
}

func (p *Paginator) fetchLimit(filter Filter, maxCount int) int {
	if filter.Narrow() {
		return narrowFetchFactor * max(maxCount, p.defaultPageSize)
	}
	return maxCount
}

// Paginate returns an ordered window of the account's history. Every round
// re-deduplicates and re-orders everything gathered so far. It stops when no
// minimum is requested, the minimum is reached, the remote history is
// exhausted, the ledger server hands back the marker it was given or the
// round cap is hit. The context bounds the total time spent.
func (p *Paginator) Paginate(ctx context.Context, request PageRequest) ([]transactions.Transaction, error) {
	maxCount := request.Max
	if maxCount <= 0 {
		maxCount = max(p.defaultPageSize, request.Min)
	}
	minCount := min(request.Min, maxCount)
	limit := p.fetchLimit(request.Filter, maxCount)

	logger := p.logger.WithFields(log.F{
		"account":    request.Account,
		"min":        minCount,
		"max":        maxCount,
		"descending": request.Descending,
	})

	state := initialState(request)
	for {
		if err := p.gate.EnsureConnected(ctx); err != nil {
			return nil, err
		}
		result, err := p.fetcher.Fetch(ctx, FetchRequest{
			Account:        request.Account,
			LedgerIndexMin: request.LedgerIndexMin,
			LedgerIndexMax: request.LedgerIndexMax,
			Forward:        !request.Descending,
			Limit:          limit,
			Marker:         state.marker,
			ExcludeFailed:  request.Filter.ExcludeFailed,
		})
		if err != nil {
			return nil, err
		}
		previous := state.marker
		state = state.advance(request, result, maxCount)

		logger.WithFields(log.F{
			"round":       state.round,
			"remote":      len(result.Remote),
			"local":       len(result.Local),
			"accumulated": len(state.accumulated),
		}).Debug("Pagination round done")

		if minCount <= 0 || len(state.accumulated) >= minCount || state.marker.IsZero() {
			break
		}
		if state.marker.Equal(previous) {
			logger.WithField("marker", state.marker.String()).
				Warn("Ledger server returned the marker it was given, stopping")
			break
		}
		if state.round >= p.maxRounds {
			logger.WithField("rounds", state.round).
				Warnf("Giving up after %d rounds with %d of %d records", state.round, len(state.accumulated), minCount)
			break
		}
	}

	p.roundsMetric.Observe(float64(state.round))
	return state.accumulated, nil
}
