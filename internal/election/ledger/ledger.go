// Package ledger reads election state from the deployed election contract
// over Ethereum JSON-RPC. It never sends transactions.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/ethclient"

	id "electa/pkg/domain"
	"electa/pkg/platform/circuit"
	"electa/pkg/platform/sentinel"
)

// electionABI covers the two view functions the service reads.
const electionABI = `[
	{"type":"function","name":"started","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"ended","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]}
]`

const (
	methodStarted = "started"
	methodEnded   = "ended"

	defaultTimeout = 5 * time.Second
)

// Reader is the ledger interface consumed by reconciliation.
type Reader interface {
	IsStarted(ctx context.Context, address id.Address) (bool, error)
	IsEnded(ctx context.Context, address id.Address) (bool, error)
}

// ContractCaller executes a read-only contract call. *ethclient.Client
// satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client reads the election contract through a circuit breaker so a dead
// node fails fast instead of stalling every status request.
type Client struct {
	caller  ContractCaller
	abi     abi.ABI
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
	close   func()
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds each contract call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func New(caller ContractCaller, opts ...Option) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(electionABI))
	if err != nil {
		return nil, fmt.Errorf("parse election abi: %w", err)
	}
	c := &Client{
		caller:  caller,
		abi:     parsed,
		breaker: circuit.New("ledger"),
		timeout: defaultTimeout,
	}
	if closer, ok := caller.(interface{ Close() }); ok {
		c.close = closer.Close
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string, opts ...Option) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial ledger: %w", err)
	}
	return New(eth, opts...)
}

// Close releases the RPC connection when the caller owns one. Safe to call twice.
func (c *Client) Close() {
	if c.close != nil {
		c.close()
		c.close = nil
	}
}

func (c *Client) IsStarted(ctx context.Context, address id.Address) (bool, error) {
	return c.readBool(ctx, address, methodStarted)
}

func (c *Client) IsEnded(ctx context.Context, address id.Address) (bool, error) {
	return c.readBool(ctx, address, methodEnded)
}

func (c *Client) readBool(ctx context.Context, address id.Address, method string) (bool, error) {
	if address.IsNull() {
		return false, fmt.Errorf("ledger %s: null address: %w", method, sentinel.ErrNotFound)
	}
	if !c.breaker.Allow() {
		return false, fmt.Errorf("ledger %s: circuit open: %w", method, sentinel.ErrUnavailable)
	}

	data, err := c.abi.Pack(method)
	if err != nil {
		return false, fmt.Errorf("pack %s: %w", method, err)
	}
	to := address.Common()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	out, err := c.caller.CallContract(callCtx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		c.recordFailure(ctx, method, err)
		return false, fmt.Errorf("ledger %s: %v: %w", method, err, sentinel.ErrUnavailable)
	}
	c.recordSuccess(ctx)

	values, err := c.abi.Unpack(method, out)
	if err != nil {
		// Usually no contract at the address.
		return false, fmt.Errorf("decode %s from %s: %w", method, address, err)
	}
	if len(values) != 1 {
		return false, fmt.Errorf("decode %s: expected 1 value, got %d", method, len(values))
	}
	v, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("decode %s: unexpected type %T", method, values[0])
	}
	return v, nil
}

func (c *Client) recordFailure(ctx context.Context, method string, err error) {
	_, change := c.breaker.RecordFailure()
	if change.Opened && c.logger != nil {
		c.logger.WarnContext(ctx, "ledger circuit opened",
			"method", method,
			"error", err,
		)
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	_, change := c.breaker.RecordSuccess()
	if change.Closed && c.logger != nil {
		c.logger.InfoContext(ctx, "ledger circuit closed")
	}
}

// Disabled is used when no RPC endpoint is configured. Every read reports
// the ledger unavailable, so reconciliation fails closed.
type Disabled struct{}

func (Disabled) IsStarted(context.Context, id.Address) (bool, error) {
	return false, fmt.Errorf("ledger not configured: %w", sentinel.ErrUnavailable)
}

func (Disabled) IsEnded(context.Context, id.Address) (bool, error) {
	return false, fmt.Errorf("ledger not configured: %w", sentinel.ErrUnavailable)
}
