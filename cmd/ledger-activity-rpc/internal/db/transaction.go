package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellar/go/support/db"
	"github.com/stellar/go/support/log"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

const outgoingTableName = "outgoing_transactions"

var (
	ErrNoTransaction = errors.New("no transaction with this identifier exists")
	ErrNoIdentifier  = errors.New("either a hash or a client resource id is required")
)

// FailedTransactionsQuery selects the failed transactions of one account. A
// negative bound leaves that side of the ledger range open.
type FailedTransactionsQuery struct {
	Account        string
	LedgerIndexMin int64
	LedgerIndexMax int64
}

// Identifier addresses a locally recorded transaction. Hash takes precedence
// when both are set.
type Identifier struct {
	Hash             string
	ClientResourceID string
}

// TransactionReader provides all the public ways to read from the DB.
type TransactionReader interface {
	GetFailedTransactions(ctx context.Context, query FailedTransactionsQuery) ([]transactions.Transaction, error)
	// SiblingCount counts the failed transactions of account recorded in one ledger.
	SiblingCount(ctx context.Context, account string, ledgerIndex uint32) (int, error)
	GetTransaction(ctx context.Context, account string, id Identifier) (transactions.Transaction, error)
}

// TransactionWriter is used by the submission side to record outgoing
// transactions and their eventual outcome.
type TransactionWriter interface {
	InsertTransaction(ctx context.Context, tx transactions.Transaction) error
	UpdateTransaction(ctx context.Context, tx transactions.Transaction) error
}

type TransactionReadWriter interface {
	TransactionReader
	TransactionWriter
}

type transactionRow struct {
	Account          string `db:"account"`
	ClientResourceID string `db:"client_resource_id"`
	Hash             string `db:"hash"`
	Type             string `db:"type"`
	Destination      string `db:"destination"`
	State            string `db:"state"`
	Result           string `db:"result"`
	LedgerIndex      int64  `db:"ledger_index"`
	SubmittedAt      int64  `db:"submitted_at"`
}

func (r transactionRow) toTransaction() transactions.Transaction {
	return transactions.Transaction{
		Hash:             r.Hash,
		ClientResourceID: r.ClientResourceID,
		LedgerIndex:      uint32(r.LedgerIndex),
		Timestamp:        r.SubmittedAt,
		Type:             transactions.Type(r.Type),
		Account:          r.Account,
		Destination:      r.Destination,
		State:            transactions.State(r.State),
		Result:           r.Result,
		Origin:           transactions.OriginLocal,
	}
}

//nolint:gochecknoglobals
var transactionColumns = []string{
	"account", "client_resource_id", "hash", "type", "destination",
	"state", "result", "ledger_index", "submitted_at",
}

type transactionHandler struct {
	log *log.Entry
	db  db.SessionInterface

	durationMetric *prometheus.SummaryVec
}

// NewTransactionStore constructs the local record store, hooking up a metric
// for the latency of every store operation.
func NewTransactionStore(log *log.Entry, db db.SessionInterface, daemon interfaces.Daemon) TransactionReadWriter {
	durationMetric := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: daemon.MetricsNamespace(), Subsystem: "local_store",
		Name:       "operation_duration_seconds",
		Help:       "local transaction store operation durations, sliding window = 10m",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	},
		[]string{"operation"},
	)
	daemon.MetricsRegistry().MustRegister(durationMetric)

	return &transactionHandler{
		log:            log,
		db:             db,
		durationMetric: durationMetric,
	}
}

func (txn *transactionHandler) observe(operation string, start time.Time) {
	txn.durationMetric.With(prometheus.Labels{"operation": operation}).
		Observe(time.Since(start).Seconds())
}

func (txn *transactionHandler) GetFailedTransactions(ctx context.Context, query FailedTransactionsQuery) (
	[]transactions.Transaction, error,
) {
	defer txn.observe("get_failed", time.Now())

	where := sq.And{
		sq.Eq{"account": query.Account},
		sq.Eq{"state": string(transactions.StateFailed)},
	}
	if query.LedgerIndexMin >= 0 {
		where = append(where, sq.GtOrEq{"ledger_index": query.LedgerIndexMin})
	}
	if query.LedgerIndexMax >= 0 {
		where = append(where, sq.LtOrEq{"ledger_index": query.LedgerIndexMax})
	}
	sql := sq.Select(transactionColumns...).
		From(outgoingTableName).
		Where(where).
		OrderBy("ledger_index ASC", "submitted_at ASC")

	var rows []transactionRow
	if err := txn.db.Select(ctx, &rows, sql); err != nil {
		return nil, fmt.Errorf("db read failed for failed transactions of %s: %w", query.Account, err)
	}

	result := make([]transactions.Transaction, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toTransaction())
	}
	txn.log.WithField("account", query.Account).
		Debugf("Fetched %d failed transactions from the local store", len(result))
	return result, nil
}

func (txn *transactionHandler) SiblingCount(ctx context.Context, account string, ledgerIndex uint32) (int, error) {
	defer txn.observe("sibling_count", time.Now())

	sql := sq.Select("COUNT(*)").
		From(outgoingTableName).
		Where(sq.Eq{
			"account":      account,
			"state":        string(transactions.StateFailed),
			"ledger_index": int64(ledgerIndex),
		})
	var count int
	if err := txn.db.Get(ctx, &count, sql); err != nil {
		return 0, fmt.Errorf("couldn't count transactions of %s in ledger %d: %w", account, ledgerIndex, err)
	}
	return count, nil
}

func (txn *transactionHandler) GetTransaction(ctx context.Context, account string, id Identifier) (
	transactions.Transaction, error,
) {
	defer txn.observe("get", time.Now())

	where := sq.Eq{"account": account}
	switch {
	case id.Hash != "":
		where["hash"] = id.Hash
	case id.ClientResourceID != "":
		where["client_resource_id"] = id.ClientResourceID
	default:
		return transactions.Transaction{}, ErrNoIdentifier
	}

	var rows []transactionRow
	sql := sq.Select(transactionColumns...).From(outgoingTableName).Where(where).Limit(1)
	if err := txn.db.Select(ctx, &rows, sql); err != nil {
		return transactions.Transaction{}, fmt.Errorf("db read failed for transaction of %s: %w", account, err)
	} else if len(rows) < 1 {
		return transactions.Transaction{}, ErrNoTransaction
	}
	return rows[0].toTransaction(), nil
}

func (txn *transactionHandler) InsertTransaction(ctx context.Context, tx transactions.Transaction) error {
	defer txn.observe("insert", time.Now())

	if tx.ClientResourceID == "" {
		return errors.New("a client resource id is required to record a transaction")
	}
	state := tx.State
	if state == "" {
		state = transactions.StatePending
	}
	query := sq.Insert(outgoingTableName).
		Columns(transactionColumns...).
		Values(tx.Account, tx.ClientResourceID, tx.Hash, string(tx.Type), tx.Destination,
			string(state), tx.Result, int64(tx.LedgerIndex), tx.Timestamp)
	if _, err := txn.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("could not record transaction %s: %w", tx.ClientResourceID, err)
	}
	return nil
}

// UpdateTransaction records the outcome of a previously inserted transaction.
func (txn *transactionHandler) UpdateTransaction(ctx context.Context, tx transactions.Transaction) error {
	defer txn.observe("update", time.Now())

	query := sq.Update(outgoingTableName).
		SetMap(map[string]interface{}{
			"hash":         tx.Hash,
			"state":        string(tx.State),
			"result":       tx.Result,
			"ledger_index": int64(tx.LedgerIndex),
		}).
		Where(sq.Eq{"account": tx.Account, "client_resource_id": tx.ClientResourceID})
	res, err := txn.db.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("could not update transaction %s: %w", tx.ClientResourceID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoTransaction
	}
	return nil
}
