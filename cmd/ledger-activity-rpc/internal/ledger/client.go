package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/daemon/interfaces"
	"github.com/stellar/ledger-activity-rpc/cmd/ledger-activity-rpc/internal/transactions"
)

// Unbounded leaves one side of a ledger index range open.
const Unbounded int64 = -1

var (
	ErrTransactionNotFound = errors.New("transaction not found on the ledger")
	ErrEmptyLedgerRange    = errors.New("ledger server reports no complete ledgers")
)

// AccountTxRequest asks for one batch of an account's transactions.
type AccountTxRequest struct {
	Account        string              `json:"account"`
	LedgerIndexMin int64               `json:"ledger_index_min"`
	LedgerIndexMax int64               `json:"ledger_index_max"`
	Limit          int                 `json:"limit,omitempty"`
	Forward        bool                `json:"forward"`
	Marker         transactions.Marker `json:"marker,omitempty"`
}

// Entry is one transaction of an account_tx batch.
type Entry struct {
	Transaction transactions.Transaction
	Validated   bool
}

// AccountTxPage is one batch of an account's transactions. A zero Marker
// means the ledger has nothing more to return.
type AccountTxPage struct {
	Entries []Entry
	Marker  transactions.Marker
}

// ServerInfo is the subset of server_info the resolver depends on.
type ServerInfo struct {
	CompleteLedgers string
	ValidatedLedger uint32
}

// HasLedger reports whether ledgerIndex falls within the last contiguous span
// of complete ledgers held by the server.
func (i ServerInfo) HasLedger(ledgerIndex uint32) (bool, error) {
	spans := strings.Split(strings.TrimSpace(i.CompleteLedgers), ",")
	last := strings.TrimSpace(spans[len(spans)-1])
	if last == "" || last == "empty" {
		return false, ErrEmptyLedgerRange
	}
	bounds := strings.SplitN(last, "-", 2)
	first, err := strconv.ParseUint(bounds[0], 10, 32)
	if err != nil {
		return false, fmt.Errorf("invalid complete ledgers %q: %w", i.CompleteLedgers, err)
	}
	end := first
	if len(bounds) == 2 {
		if end, err = strconv.ParseUint(bounds[1], 10, 32); err != nil {
			return false, fmt.Errorf("invalid complete ledgers %q: %w", i.CompleteLedgers, err)
		}
	}
	return uint64(ledgerIndex) >= first && uint64(ledgerIndex) <= end, nil
}

// Client is a jrpc2 client to the remote ledger server which tolerates errors
// by rebuilding its channel.
type Client struct {
	url     string
	opts    *jrpc2.ClientOptions
	timeout time.Duration

	mu  sync.RWMutex
	cli *jrpc2.Client

	durationMetric *prometheus.SummaryVec
}

func NewClient(url string, timeout time.Duration, daemon interfaces.Daemon) *Client {
	durationMetric := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: daemon.MetricsNamespace(), Subsystem: "ledger_server", Name: "request_duration_seconds",
		Help:       "ledger server request durations, sliding window = 10m",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001}, //nolint:mnd
	}, []string{"method", "status"})
	daemon.MetricsRegistry().MustRegister(durationMetric)

	c := &Client{url: url, timeout: timeout, durationMetric: durationMetric}
	c.Reconnect()
	return c
}

// Reconnect drops the current channel and builds a fresh one.
func (c *Client) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replace(nil)
}

// replace swaps the jrpc2 client, unless stale is set and no longer current.
// Callers must hold c.mu.
func (c *Client) replace(stale *jrpc2.Client) {
	if stale != nil && stale != c.cli {
		return
	}
	if c.cli != nil {
		c.cli.Close()
	}
	ch := jhttp.NewChannel(c.url, nil)
	c.cli = jrpc2.NewClient(ch, c.opts)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cli.Close()
}

func (c *Client) call(ctx context.Context, method string, params, result any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.mu.RLock()
	cli := c.cli
	c.mu.RUnlock()

	start := time.Now()
	// the ledger server expects its params wrapped in a single element array
	err := cli.CallResult(ctx, method, []any{params}, result)
	status := "ok"
	if err != nil {
		status = "error"
		// This is needed because of https://github.com/creachadair/jrpc2/issues/118
		c.mu.Lock()
		c.replace(cli)
		c.mu.Unlock()
	}
	c.durationMetric.With(prometheus.Labels{"method": method, "status": status}).
		Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	return nil
}

type resultStatus struct {
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s resultStatus) err(method string) error {
	if s.Status != "error" && s.Error == "" {
		return nil
	}
	if s.Error == "txnNotFound" {
		return ErrTransactionNotFound
	}
	return fmt.Errorf("%s returned %s: %s", method, s.Error, s.ErrorMessage)
}

type wireNode struct {
	LedgerEntryType string `json:"LedgerEntryType"`
	FinalFields     struct {
		Account string `json:"Account"`
	} `json:"FinalFields"`
	NewFields struct {
		Account string `json:"Account"`
	} `json:"NewFields"`
}

type wireMeta struct {
	TransactionResult string                `json:"TransactionResult"`
	AffectedNodes     []map[string]wireNode `json:"AffectedNodes"`
}

// rippleEpochOffset is the unix time of 2000-01-01, the epoch of ledger dates.
const rippleEpochOffset = 946684800

type wireTx struct {
	Hash            string    `json:"hash"`
	TransactionType string    `json:"TransactionType"`
	Account         string    `json:"Account"`
	Destination     string    `json:"Destination,omitempty"`
	LedgerIndex     uint32    `json:"ledger_index"`
	Date            int64     `json:"date"`
	Meta            *wireMeta `json:"meta,omitempty"`
	Validated       bool      `json:"validated"`
}

// unixTime converts a ledger date to unix seconds. A missing date stays zero.
func unixTime(date int64) int64 {
	if date == 0 {
		return 0
	}
	return date + rippleEpochOffset
}

func (w wireTx) toTransaction(meta *wireMeta, validated bool) transactions.Transaction {
	tx := transactions.Transaction{
		Hash:        w.Hash,
		LedgerIndex: w.LedgerIndex,
		Timestamp:   unixTime(w.Date),
		Type:        transactions.Type(strings.ToLower(w.TransactionType)),
		Account:     w.Account,
		Destination: w.Destination,
		State:       transactions.StatePending,
		Origin:      transactions.OriginRemote,
	}
	if meta != nil {
		tx.Result = meta.TransactionResult
		seen := map[string]bool{w.Account: true, w.Destination: true}
		for _, node := range meta.AffectedNodes {
			for _, fields := range node {
				if fields.LedgerEntryType != "AccountRoot" {
					continue
				}
				for _, account := range []string{fields.FinalFields.Account, fields.NewFields.Account} {
					if account != "" && !seen[account] {
						seen[account] = true
						tx.AffectedAccounts = append(tx.AffectedAccounts, account)
					}
				}
			}
		}
	}
	if validated {
		tx.State = transactions.StateValidated
		if tx.Failed() {
			tx.State = transactions.StateFailed
		}
	}
	return tx
}

type accountTxResult struct {
	resultStatus
	Marker       json.RawMessage `json:"marker,omitempty"`
	Transactions []struct {
		Tx        wireTx    `json:"tx"`
		Meta      *wireMeta `json:"meta"`
		Validated bool      `json:"validated"`
	} `json:"transactions"`
}

// AccountTransactions issues one account_tx request.
func (c *Client) AccountTransactions(ctx context.Context, request AccountTxRequest) (AccountTxPage, error) {
	var result accountTxResult
	if err := c.call(ctx, "account_tx", request, &result); err != nil {
		return AccountTxPage{}, err
	}
	if err := result.err("account_tx"); err != nil {
		return AccountTxPage{}, err
	}

	page := AccountTxPage{
		Entries: make([]Entry, 0, len(result.Transactions)),
		Marker:  transactions.Marker(result.Marker),
	}
	for _, entry := range result.Transactions {
		page.Entries = append(page.Entries, Entry{
			Transaction: entry.Tx.toTransaction(entry.Meta, entry.Validated),
			Validated:   entry.Validated,
		})
	}
	return page, nil
}

// Transaction fetches a single transaction by hash.
func (c *Client) Transaction(ctx context.Context, hash string) (Entry, error) {
	var result struct {
		resultStatus
		wireTx
	}
	request := struct {
		Transaction string `json:"transaction"`
	}{hash}
	if err := c.call(ctx, "tx", request, &result); err != nil {
		return Entry{}, err
	}
	if err := result.err("tx"); err != nil {
		return Entry{}, err
	}
	return Entry{
		Transaction: result.wireTx.toTransaction(result.Meta, result.Validated),
		Validated:   result.Validated,
	}, nil
}

// ServerInfo fetches the ledger server status.
func (c *Client) ServerInfo(ctx context.Context) (ServerInfo, error) {
	var result struct {
		resultStatus
		Info struct {
			CompleteLedgers string `json:"complete_ledgers"`
			ValidatedLedger struct {
				Seq uint32 `json:"seq"`
			} `json:"validated_ledger"`
		} `json:"info"`
	}
	if err := c.call(ctx, "server_info", struct{}{}, &result); err != nil {
		return ServerInfo{}, err
	}
	if err := result.err("server_info"); err != nil {
		return ServerInfo{}, err
	}
	return ServerInfo{
		CompleteLedgers: result.Info.CompleteLedgers,
		ValidatedLedger: result.Info.ValidatedLedger.Seq,
	}, nil
}

// LedgerClosed returns the index of the most recently closed ledger.
func (c *Client) LedgerClosed(ctx context.Context) (uint32, error) {
	var result struct {
		resultStatus
		LedgerIndex uint32 `json:"ledger_index"`
	}
	if err := c.call(ctx, "ledger_closed", struct{}{}, &result); err != nil {
		return 0, err
	}
	if err := result.err("ledger_closed"); err != nil {
		return 0, err
	}
	return result.LedgerIndex, nil
}
