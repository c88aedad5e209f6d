// Package rpcprovider implements an EIP-1193 provider which forwards every request to a remote
// wallet over JSON-RPC (HTTP or WebSocket).
package rpcprovider

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

const (
	DefaultPollInterval     = 4 * time.Second
	DefaultDialAttempts     = 3
	DefaultDialDelay        = 500 * time.Millisecond
	DefaultDialTimeout      = 10 * time.Second
	DefaultFailureThreshold = 3

	pollTimeout = 5 * time.Second
)

var _ eip1193.Provider = (*Provider)(nil)

// Config holds the configuration of a Provider.
type Config struct {
	// Required: URL is the JSON-RPC endpoint of the wallet.
	URL string
	// Optional: PollInterval is how often eth_accounts and eth_chainId are polled to detect
	// account and chain changes. Defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Optional: DialAttempts and DialDelay control the retries when dialing the wallet.
	DialAttempts uint
	DialDelay    time.Duration
	// Optional: FailureThreshold is the number of consecutive failed polls after which a
	// disconnect notification is emitted. Defaults to DefaultFailureThreshold.
	FailureThreshold int
	// Optional: Logger is the logger to use. If not provided, a default logger will be used.
	Logger logger.Logger
}

func (c Config) validate() error {
	if c.URL == "" {
		return errors.New("wallet RPC URL is required")
	}

	return nil
}

func (c *Config) applyDefaults() error {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DialAttempts == 0 {
		c.DialAttempts = DefaultDialAttempts
	}
	if c.DialDelay <= 0 {
		c.DialDelay = DefaultDialDelay
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Logger == nil {
		lggr, err := logger.New()
		if err != nil {
			return fmt.Errorf("failed to create default logger: %w", err)
		}
		c.Logger = lggr
	}

	return nil
}

// Provider forwards EIP-1193 requests to a remote wallet. Account and chain changes are
// detected by polling, since plain JSON-RPC has no push channel for them.
type Provider struct {
	cfg    Config
	lggr   logger.Logger
	client *rpc.Client

	feed  event.Feed
	scope event.SubscriptionScope

	startOnce sync.Once
	quit      chan struct{}
	wg        sync.WaitGroup
}

// Dial connects to the wallet at cfg.URL, retrying failed dials.
func Dial(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid provider config: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	traceID := uuid.New()
	var client *rpc.Client
	err := retry.Do(func() error {
		dialCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
		defer cancel()

		var err error
		client, err = rpc.DialContext(dialCtx, cfg.URL)
		if err != nil {
			cfg.Logger.Warnf("traceID %q: dialing wallet '%s' failed - retryable error: %v", traceID.String(), cfg.URL, err)
			return err
		}

		return nil
	}, retry.Attempts(cfg.DialAttempts), retry.Delay(cfg.DialDelay), retry.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet '%s': %w", cfg.URL, err)
	}

	return newProvider(client, cfg), nil
}

// New returns a Provider over an already connected client.
func New(client *rpc.Client, cfg Config) (*Provider, error) {
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	return newProvider(client, cfg), nil
}

func newProvider(client *rpc.Client, cfg Config) *Provider {
	return &Provider{
		cfg:    cfg,
		lggr:   cfg.Logger.Named("rpcprovider"),
		client: client,
		quit:   make(chan struct{}),
	}
}

// Request forwards the method to the wallet. JSON-RPC error objects are returned as
// *eip1193.RPCError; transport failures are wrapped as is.
func (p *Provider) Request(ctx context.Context, method string, params any, result any) error {
	err := p.client.CallContext(ctx, result, method, eip1193.PositionalArgs(params)...)
	if err == nil {
		return nil
	}

	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return eip1193.AsRPCError(err)
	}

	return fmt.Errorf("%s: %w", method, err)
}

// Subscribe registers ch for notifications. The first subscription starts the poller.
func (p *Provider) Subscribe(ch chan<- eip1193.Notification) event.Subscription {
	p.startOnce.Do(func() {
		p.wg.Add(1)
		go p.poll()
	})

	return p.scope.Track(p.feed.Subscribe(ch))
}

// Close stops the poller, ends every subscription and closes the connection.
func (p *Provider) Close() {
	select {
	case <-p.quit:
		return
	default:
		close(p.quit)
	}

	p.wg.Wait()
	p.scope.Close()
	p.client.Close()
}

// walletState is what the poller compares between ticks.
type walletState struct {
	accounts []common.Address
	chainID  string
}

func (p *Provider) poll() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	var (
		last         *walletState
		failures     int
		disconnected bool
	)

	for {
		state, err := p.fetchState()
		switch {
		case err != nil:
			failures++
			p.lggr.Debugw("Polling wallet failed", "failures", failures, "error", err)
			if failures >= p.cfg.FailureThreshold && !disconnected {
				disconnected = true
				last = nil
				p.lggr.Warnw("Wallet unreachable, emitting disconnect", "url", p.cfg.URL, "error", err)
				p.send(eip1193.Notification{
					Kind: eip1193.Disconnect,
					Err:  eip1193.NewError(eip1193.CodeDisconnected, "wallet disconnected: %v", err),
				})
			}
		default:
			failures = 0
			disconnected = false
			if last != nil {
				if !slices.Equal(last.accounts, state.accounts) {
					p.send(eip1193.Notification{Kind: eip1193.AccountsChanged, Accounts: state.accounts})
				}
				if last.chainID != state.chainID {
					p.send(eip1193.Notification{Kind: eip1193.ChainChanged, ChainID: state.chainID})
				}
			}
			last = &state
		}

		select {
		case <-p.quit:
			return
		case <-ticker.C:
		}
	}
}

func (p *Provider) fetchState() (walletState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), pollTimeout)
	defer cancel()

	var state walletState
	if err := p.client.CallContext(ctx, &state.accounts, eip1193.MethodAccounts); err != nil {
		return walletState{}, err
	}
	if err := p.client.CallContext(ctx, &state.chainID, eip1193.MethodChainID); err != nil {
		return walletState{}, err
	}

	return state, nil
}

// send delivers n to every subscriber, giving up when the provider is closed.
func (p *Provider) send(n eip1193.Notification) {
	p.lggr.Debugw("Provider notification", "notification", n.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		p.feed.Send(n)
	}()

	select {
	case <-done:
	case <-p.quit:
	}
}
