package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// Defaults of RetryConfig. A wallet request is interactive, so a call is tried once per
// endpoint before failing over.
const (
	DefaultCallAttempts = 1
	DefaultCallDelay    = time.Second
	DefaultCallTimeout  = 10 * time.Second

	DefaultDialAttempts = 1
	DefaultDialDelay    = time.Second
	DefaultDialTimeout  = 10 * time.Second

	healthCheckTimeout = 2 * time.Second
)

// RetryConfig controls how often calls and dials are retried on one endpoint.
type RetryConfig struct {
	Attempts uint
	Delay    time.Duration
	// Timeout bounds a single attempt when the caller's context has no deadline.
	Timeout time.Duration

	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

// DefaultRetryConfig returns the retry configuration used by NewMultiClient.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     DefaultCallAttempts,
		Delay:        DefaultCallDelay,
		Timeout:      DefaultCallTimeout,
		DialAttempts: DefaultDialAttempts,
		DialDelay:    DefaultDialDelay,
		DialTimeout:  DefaultDialTimeout,
	}
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

var _ OnchainClient = (*MultiClient)(nil)

// MultiClient talks to a chain through every RPC URL of its descriptor. A call is retried on
// the primary endpoint, then on the backups in order, and the first backup that answers is
// promoted to primary.
//
// Methods not overridden here, such as SubscribeFilterLogs, go to the primary only.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig

	desc chain.ChainDescriptor
	lggr logger.Logger
	mu   sync.RWMutex
}

// NewMultiClient dials every RPC URL of desc. Endpoints that cannot be dialed or that serve
// another chain are skipped, with a warning. At least one endpoint must remain.
func NewMultiClient(lggr logger.Logger, desc chain.ChainDescriptor, opts ...func(*MultiClient)) (*MultiClient, error) {
	if len(desc.RPCURLs) == 0 {
		return nil, fmt.Errorf("network %s has no RPC URLs", desc)
	}

	mc := &MultiClient{
		RetryConfig: DefaultRetryConfig(),
		desc:        desc,
		lggr:        lggr.Named("multiclient").With("chain", desc.String()),
	}
	for _, opt := range opts {
		opt(mc)
	}

	clients := make([]*ethclient.Client, 0, len(desc.RPCURLs))
	for i, url := range desc.RPCURLs {
		client, err := mc.dial(url)
		if err != nil {
			mc.lggr.Warnw("Skipping RPC endpoint", "index", i, "url", url, "err", err)
			continue
		}

		if err := mc.checkChainID(client); err != nil {
			mc.lggr.Warnw("Skipping RPC endpoint", "index", i, "url", url, "err", err)
			client.Close()

			continue
		}

		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, fmt.Errorf("no usable RPC endpoint for network %s", desc)
	}

	mc.Client = clients[0]
	mc.Backups = clients[1:]

	return mc, nil
}

// checkChainID makes sure the endpoint serves the chain of the descriptor.
func (mc *MultiClient) checkChainID(client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	id, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != mc.desc.ID {
		return fmt.Errorf("health check failed: endpoint serves chain %s, want %d", id, mc.desc.ID)
	}

	return nil
}

func (mc *MultiClient) dial(url string) (*ethclient.Client, error) {
	traceID := uuid.NewString()

	var client *ethclient.Client
	err := retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		c, err := ethclient.DialContext(ctx, url)
		if err != nil {
			return err
		}
		client = c

		return nil
	},
		retry.Attempts(mc.RetryConfig.DialAttempts),
		retry.Delay(mc.RetryConfig.DialDelay),
		retry.OnRetry(func(n uint, err error) {
			mc.lggr.Debugw("Retrying dial", "traceID", traceID, "url", url, "attempt", n+1, "err", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	return client, nil
}

// call runs op against the primary endpoint and then the backups until one of them answers.
// JSON-RPC errors and missing results are answers: another endpoint would return the same, so
// they end the call.
func call[T any](ctx context.Context, mc *MultiClient, op string, fn func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	traceID := uuid.NewString()

	var (
		result T
		errs   []error
	)
	for i, client := range mc.clients() {
		var lastErr error
		err := retry.Do(func() error {
			attemptCtx, cancel := withDefaultTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			var err error
			result, err = fn(attemptCtx, client)
			lastErr = err

			switch {
			case err == nil:
				return nil
			case isAnswer(err):
				return retry.Unrecoverable(err)
			default:
				return err
			}
		},
			retry.Context(ctx),
			retry.Attempts(mc.RetryConfig.Attempts),
			retry.Delay(mc.RetryConfig.Delay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				mc.lggr.Warnw("Retrying RPC call", "traceID", traceID, "op", op, "client", i, "attempt", n+1, "err", withErrorData(err))
			}),
		)
		if err == nil {
			if i > 0 {
				mc.lggr.Infow("Backup RPC endpoint answered, promoting it", "traceID", traceID, "op", op, "client", i)
				mc.promote(i)
			}

			return result, nil
		}

		if lastErr == nil {
			lastErr = err
		}
		if isAnswer(lastErr) || ctx.Err() != nil {
			var zero T
			return zero, lastErr
		}

		errs = append(errs, fmt.Errorf("client %d: %w", i, lastErr))
	}

	var zero T

	return zero, fmt.Errorf("%s failed on every RPC endpoint of %s: %w", op, mc.desc, errors.Join(errs...))
}

// exec is call for operations without a result.
func exec(ctx context.Context, mc *MultiClient, op string, fn func(context.Context, *ethclient.Client) error) error {
	_, err := call(ctx, mc, op, func(ctx context.Context, c *ethclient.Client) (struct{}, error) {
		return struct{}{}, fn(ctx, c)
	})

	return err
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return exec(ctx, mc, "SendTransaction", func(ctx context.Context, c *ethclient.Client) error {
		return c.SendTransaction(ctx, tx)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, mc, "CallContract", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, mc, "CodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return call(ctx, mc, "PendingCodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.PendingCodeAt(ctx, account)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return call(ctx, mc, "NonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.NonceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, mc, "PendingNonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(ctx, mc, "BalanceAt", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return call(ctx, mc, "HeaderByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, mc, "EstimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, msg)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(ctx, mc, "TransactionReceipt", func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, txHash)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return call(ctx, mc, "FilterLogs", func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, q)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, mc, "SuggestGasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return call(ctx, mc, "SuggestGasTipCap", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
}

func (mc *MultiClient) ChainID(ctx context.Context) (*big.Int, error) {
	return call(ctx, mc, "ChainID", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.ChainID(ctx)
	})
}

func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, mc, "BlockNumber", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

// Close closes every endpoint.
func (mc *MultiClient) Close() {
	for _, c := range mc.clients() {
		c.Close()
	}
}

// promote makes the client at index i of clients() the primary. The clients that failed before
// it move to the end of the backups, in order.
func (mc *MultiClient) promote(i int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if i < 1 || i > len(mc.Backups) {
		return
	}

	next := mc.Backups[i-1]

	backups := make([]*ethclient.Client, 0, len(mc.Backups))
	backups = append(backups, mc.Backups[i:]...)
	backups = append(backups, mc.Backups[:i-1]...)
	backups = append(backups, mc.Client)

	mc.Client = next
	mc.Backups = backups
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

// withDefaultTimeout keeps the deadline of ctx, or sets timeout when it has none.
func withDefaultTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

// isAnswer reports whether err came from the node rather than the transport.
func isAnswer(err error) bool {
	if err == nil {
		return false
	}

	var rerr rpc.Error

	return errors.Is(err, ethereum.NotFound) || errors.As(err, &rerr)
}

func withErrorData(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) && d.ErrorData() != nil {
		return fmt.Errorf("%w: %v", err, d.ErrorData())
	}

	return err
}
