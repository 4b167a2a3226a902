// Package ledger is the engine's narrow view of the external network: four
// logical RPC operations plus the latest-ledger query the clock needs. The
// transport speaks JSON-RPC over HTTP; everything above this package works
// with the RPC interface and never sees the wire format.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vaultdao/internal/domain"
	"vaultdao/pkg/platform/circuit"
	"vaultdao/pkg/platform/sentinel"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -source=client.go -destination=mocks/mock_rpc.go -package=mocks

// UnsignedOperation is a contract invocation before simulation and signing.
type UnsignedOperation struct {
	Contract string         `json:"contract"`
	Function string         `json:"function"`
	Args     []any          `json:"args"`
	Source   domain.Address `json:"source"`
}

// SimulationResult is the outcome of a dry run: the resources and
// authorization the network requires, plus the would-be return value.
type SimulationResult struct {
	TransactionData json.RawMessage `json:"transaction_data"`
	MinResourceFee  int64           `json:"min_resource_fee"`
	Auth            json.RawMessage `json:"auth,omitempty"`
	ReturnValue     json.RawMessage `json:"return_value,omitempty"`
	LatestLedger    uint64          `json:"latest_ledger"`
}

// SubmitStatus is the terminal disposition the network reports for a
// submitted transaction.
type SubmitStatus string

const (
	SubmitSuccess SubmitStatus = "SUCCESS"
	SubmitFailed  SubmitStatus = "FAILED"
	SubmitPending SubmitStatus = "PENDING"
)

// SubmitResult is the network's answer to a submission.
type SubmitResult struct {
	Hash         string          `json:"hash"`
	Status       SubmitStatus    `json:"status"`
	Ledger       uint64          `json:"ledger"`
	ReturnValue  json.RawMessage `json:"return_value,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// TxStatus is a follow-up status query result, used to reconcile ambiguous
// submission outcomes.
type TxStatus struct {
	Found       bool            `json:"found"`
	Status      SubmitStatus    `json:"status"`
	Ledger      uint64          `json:"ledger"`
	ReturnValue json.RawMessage `json:"return_value,omitempty"`
}

// Balance is one asset position on an account.
type Balance struct {
	Token  domain.Address  `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// Account is the engine's view of a ledger account.
type Account struct {
	Address  domain.Address `json:"address"`
	Balances []Balance      `json:"balances"`
}

// RawEvent is one entry from the contract event log, before typing.
type RawEvent struct {
	EventID     string          `json:"event_id"`
	Type        string          `json:"type"`
	Ledger      uint64          `json:"ledger"`
	Index       uint32          `json:"index"`
	Timestamp   time.Time       `json:"timestamp"`
	Actor       string          `json:"actor"`
	TxHash      string          `json:"tx_hash"`
	Data        json.RawMessage `json:"data"`
	PagingToken string          `json:"paging_token"`
}

// EventPage is one page of the event log plus the cursor to resume from.
type EventPage struct {
	Events       []RawEvent `json:"events"`
	Cursor       string     `json:"cursor"`
	LatestLedger uint64     `json:"latest_ledger"`
}

// RPC is the complete operation contract the engine requires from the ledger
// network. Implementations own transport, timeouts live with the caller's
// context.
type RPC interface {
	SimulateTransaction(ctx context.Context, op UnsignedOperation) (SimulationResult, error)
	SubmitTransaction(ctx context.Context, signedTx []byte) (SubmitResult, error)
	TransactionStatus(ctx context.Context, hash string) (TxStatus, error)
	GetAccount(ctx context.Context, addr domain.Address) (Account, error)
	GetLatestLedger(ctx context.Context) (uint64, error)
	Events(ctx context.Context, cursor string, limit int) (EventPage, error)
}

// Signer requests a signature from the caller's external key-holding agent.
// A declined or unreachable agent is reported as an error; nothing has been
// submitted at that point, so retrying is always safe.
type Signer interface {
	Sign(ctx context.Context, unsignedTx []byte, networkPassphrase string) ([]byte, error)
}

// Client is the HTTP JSON-RPC implementation of RPC. A circuit breaker guards
// every call: while open, calls fail fast with ErrUnavailable and never touch
// the network.
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *circuit.Breaker
}

// NewClient builds a client against the given RPC endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		breaker:  circuit.New("ledger-rpc"),
	}
}

// Breaker exposes the client's circuit breaker for metrics and health checks.
func (c *Client) Breaker() *circuit.Breaker { return c.breaker }

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// call performs one JSON-RPC round trip under the breaker. RPC-level errors
// (the network answered, it just said no) do not count against the breaker;
// transport failures do.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	if c.breaker.IsOpen() {
		return fmt.Errorf("ledger rpc %s: circuit open: %w", method, sentinel.ErrUnavailable)
	}

	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("ledger rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breaker.RecordFailure()
		return fmt.Errorf("ledger rpc %s: status %d: %w", method, resp.StatusCode, sentinel.ErrUnavailable)
	}
	c.breaker.RecordSuccess()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return fmt.Errorf("ledger rpc %s: %w", method, rpcResp.Error)
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("unmarshal %s result: %w", method, err)
		}
	}
	return nil
}

func (c *Client) SimulateTransaction(ctx context.Context, op UnsignedOperation) (SimulationResult, error) {
	var result SimulationResult
	err := c.call(ctx, "simulateTransaction", op, &result)
	return result, err
}

func (c *Client) SubmitTransaction(ctx context.Context, signedTx []byte) (SubmitResult, error) {
	var result SubmitResult
	err := c.call(ctx, "sendTransaction", map[string]any{"transaction": signedTx}, &result)
	return result, err
}

func (c *Client) TransactionStatus(ctx context.Context, hash string) (TxStatus, error) {
	var result TxStatus
	err := c.call(ctx, "getTransaction", map[string]any{"hash": hash}, &result)
	return result, err
}

func (c *Client) GetAccount(ctx context.Context, addr domain.Address) (Account, error) {
	var result Account
	err := c.call(ctx, "getAccount", map[string]any{"address": addr}, &result)
	return result, err
}

func (c *Client) GetLatestLedger(ctx context.Context) (uint64, error) {
	var result struct {
		Sequence uint64 `json:"sequence"`
	}
	err := c.call(ctx, "getLatestLedger", nil, &result)
	return result.Sequence, err
}

func (c *Client) Events(ctx context.Context, cursor string, limit int) (EventPage, error) {
	var result EventPage
	params := map[string]any{"limit": limit}
	if cursor != "" {
		params["cursor"] = cursor
	}
	err := c.call(ctx, "getEvents", params, &result)
	return result, err
}
