// Package keyed implements an in-process EIP-1193 wallet. The wallet holds its own signing key
// (a raw private key or an AWS KMS key), talks to chain RPC endpoints directly and answers the
// wallet methods SagaSynth uses the same way a browser wallet would, including the error codes
// for rejected requests and unknown chains.
package keyed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/chain/evm"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

// Approver decides whether the user approves a request. Returning an error rejects the request
// with code 4001. It is consulted for account access, signing, transactions and chain changes.
type Approver func(ctx context.Context, method string, params []json.RawMessage) error

// AutoApprove approves every request.
func AutoApprove(context.Context, string, []json.RawMessage) error {
	return nil
}

// Dialer returns the chain client used for a network.
type Dialer func(ctx context.Context, desc chain.ChainDescriptor) (evm.OnchainClient, error)

// Config holds the configuration of a Wallet.
type Config struct {
	// Required: Signer holds the wallet key. Use SignerFromRawKey or NewKMSSigner.
	Signer Signer
	// Required: Chains are the networks the wallet knows at start.
	Chains []chain.ChainDescriptor
	// Optional: ActiveChainID selects the initial network. Defaults to the first chain.
	ActiveChainID uint64
	// Optional: Approver confirms requests. Defaults to AutoApprove.
	Approver Approver
	// Optional: Dialer creates chain clients. Defaults to a MultiClient over the RPC URLs of
	// the network.
	Dialer Dialer
	// Optional: Logger is the logger to use. If not provided, a default logger will be used.
	Logger logger.Logger
}

func (c Config) validate() error {
	if c.Signer == nil {
		return errors.New("signer is required")
	}
	if len(c.Chains) == 0 {
		return errors.New("at least one chain is required")
	}

	return nil
}

var _ eip1193.Provider = (*Wallet)(nil)

// Wallet is an in-process EIP-1193 provider.
type Wallet struct {
	lggr     logger.Logger
	signer   Signer
	address  common.Address
	approver Approver
	dialer   Dialer
	handlers map[string]handlerFunc

	mu         sync.Mutex
	chains     map[uint64]chain.ChainDescriptor
	clients    map[uint64]evm.OnchainClient
	active     uint64
	authorized bool

	feed  event.Feed
	scope event.SubscriptionScope
}

type handlerFunc func(ctx context.Context, params []json.RawMessage) (any, error)

// New returns a wallet for the key of cfg.Signer.
func New(cfg Config) (*Wallet, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid wallet config: %w", err)
	}

	lggr := cfg.Logger
	if lggr == nil {
		var err error
		if lggr, err = logger.New(); err != nil {
			return nil, fmt.Errorf("failed to create default logger: %w", err)
		}
	}

	address, err := cfg.Signer.Address()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wallet address: %w", err)
	}

	w := &Wallet{
		lggr:     lggr.Named("keyed").With("address", address.Hex()),
		signer:   cfg.Signer,
		address:  address,
		approver: cfg.Approver,
		dialer:   cfg.Dialer,
		chains:   make(map[uint64]chain.ChainDescriptor, len(cfg.Chains)),
		clients:  make(map[uint64]evm.OnchainClient),
		active:   cfg.ActiveChainID,
	}

	if w.approver == nil {
		w.approver = AutoApprove
	}

	if w.dialer == nil {
		w.dialer = func(_ context.Context, desc chain.ChainDescriptor) (evm.OnchainClient, error) {
			return evm.NewMultiClient(lggr, desc)
		}
	}

	for _, desc := range cfg.Chains {
		if err := desc.Validate(); err != nil {
			return nil, fmt.Errorf("invalid chain %d: %w", desc.ID, err)
		}
		w.chains[desc.ID] = desc
	}

	if w.active == 0 {
		w.active = cfg.Chains[0].ID
	}
	if _, ok := w.chains[w.active]; !ok {
		return nil, fmt.Errorf("active chain %d is not a known chain", w.active)
	}

	w.handlers = map[string]handlerFunc{
		eip1193.MethodRequestAccounts:    w.requestAccounts,
		eip1193.MethodAccounts:           w.accounts,
		eip1193.MethodChainID:            w.chainID,
		eip1193.MethodNetVersion:         w.netVersion,
		eip1193.MethodGetBalance:         w.getBalance,
		eip1193.MethodBlockNumber:        w.blockNumber,
		eip1193.MethodGetCode:            w.getCode,
		eip1193.MethodSendTransaction:    w.sendTransaction,
		eip1193.MethodTransactionReceipt: w.transactionReceipt,
		eip1193.MethodCall:               w.call,
		eip1193.MethodPersonalSign:       w.personalSign,
		MethodSignTypedDataV4:            w.signTypedDataV4,
		eip1193.MethodSwitchChain:        w.switchChain,
		eip1193.MethodAddChain:           w.addChain,
	}

	return w, nil
}

// Address returns the account of the wallet.
func (w *Wallet) Address() common.Address {
	return w.address
}

// Request dispatches an EIP-1193 request. Every error is an *eip1193.RPCError.
func (w *Wallet) Request(ctx context.Context, method string, params any, result any) error {
	handler, ok := w.handlers[method]
	if !ok {
		return eip1193.NewError(eip1193.CodeUnsupportedMethod, "the method %s does not exist/is not available", method)
	}

	raw, err := eip1193.DecodeParams(params)
	if err != nil {
		return eip1193.NewError(eip1193.CodeInvalidParams, "%v", err)
	}

	w.lggr.Debugw("Handling request", "method", method, "params", len(raw))

	value, err := handler(ctx, raw)
	if err != nil {
		rerr := eip1193.AsRPCError(err)
		w.lggr.Debugw("Request failed", "method", method, "code", rerr.Code, "error", rerr.Message)

		return rerr
	}

	if err := eip1193.SetResult(value, result); err != nil {
		return eip1193.NewError(eip1193.CodeInternal, "%v", err)
	}

	return nil
}

// Subscribe registers ch for chainChanged and accountsChanged notifications.
func (w *Wallet) Subscribe(ch chan<- eip1193.Notification) event.Subscription {
	return w.scope.Track(w.feed.Subscribe(ch))
}

// Lock revokes account access, as a user disconnecting the site in their wallet would. An
// accountsChanged notification with no accounts is emitted.
func (w *Wallet) Lock() {
	w.mu.Lock()
	was := w.authorized
	w.authorized = false
	w.mu.Unlock()

	if was {
		w.feed.Send(eip1193.Notification{Kind: eip1193.AccountsChanged, Accounts: []common.Address{}})
	}
}

// Close ends every subscription.
func (w *Wallet) Close() {
	w.scope.Close()
}

func (w *Wallet) approve(ctx context.Context, method string, params []json.RawMessage) error {
	if err := w.approver(ctx, method, params); err != nil {
		w.lggr.Infow("Request rejected", "method", method, "reason", err)

		return eip1193.NewError(eip1193.CodeUserRejected, "User rejected the request.")
	}

	return nil
}

func (w *Wallet) isAuthorized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.authorized
}

// activeChain returns the active network and its client, dialing it on first use.
func (w *Wallet) activeChain(ctx context.Context) (chain.ChainDescriptor, evm.OnchainClient, error) {
	w.mu.Lock()
	desc := w.chains[w.active]
	client, ok := w.clients[desc.ID]
	w.mu.Unlock()

	if ok {
		return desc, client, nil
	}

	client, err := w.dialer(ctx, desc)
	if err != nil {
		return desc, nil, eip1193.NewError(eip1193.CodeChainDisconnected, "not connected to %s: %v", desc, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// another request may have dialed concurrently, keep the first client
	if existing, ok := w.clients[desc.ID]; ok {
		return desc, existing, nil
	}
	w.clients[desc.ID] = client

	return desc, client, nil
}
