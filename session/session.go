// Package session tracks the wallet connection of the running process: the connected account,
// its balance, the chain the wallet is on and whether that is the expected network.
//
// The Manager is the only writer of the session. It is changed by Connect and Disconnect and by
// the provider notifications, which are queued in a mailbox and applied in arrival order by a
// single goroutine. Readers take immutable Snapshots or Watch for changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/internal/pointer"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/walleterr"
)

// mailboxSize is the number of provider notifications buffered before the provider blocks.
const mailboxSize = 16

// DefaultConnectTimeout bounds a connect attempt, including the time the user takes to approve
// it in the wallet.
const DefaultConnectTimeout = 2 * time.Minute

// MsgDisconnected is the message of a connect that was ended by Disconnect.
const MsgDisconnected = "Wallet was disconnected while connecting"

// Config holds the configuration of a Manager.
type Config struct {
	// Optional: Provider is the wallet provider. Without one every wallet action fails with
	// walleterr.ProviderUnavailable.
	Provider eip1193.Provider
	// Optional: ProviderName is recorded in the marker, e.g. "rpc" or "keyed".
	ProviderName string
	// Required: Registry resolves network names and holds the expected network.
	Registry *chain.Registry
	// Optional: Marker persists the last provider. Defaults to a MemoryMarker.
	Marker MarkerStore
	// Optional: Logger is the logger to use. Defaults to a no-op logger.
	Logger logger.Logger
	// Optional: ConnectTimeout bounds a shared connect attempt. Defaults to DefaultConnectTimeout.
	ConnectTimeout time.Duration
}

// Snapshot is an immutable view of the session.
type Snapshot struct {
	Address    *common.Address
	ChainID    *uint64
	Balance    *string
	Connecting bool
	LastError  error

	CorrectNetwork bool
	NetworkName    string
}

// IsConnected reports whether an account is connected.
func (s Snapshot) IsConnected() bool {
	return s.Address != nil
}

// state is the mutable session, guarded by Manager.mu.
type state struct {
	address    *common.Address
	chainID    *uint64
	balance    *string
	connecting bool
	lastErr    error
}

// Manager owns the session of the process.
type Manager struct {
	provider     eip1193.Provider
	providerName string
	registry     *chain.Registry
	marker       MarkerStore
	lggr         logger.Logger

	group          singleflight.Group
	connectTimeout time.Duration

	mu    sync.RWMutex
	state state
	// generation is bumped by every reset. A connect only commits when it is unchanged.
	generation uint64

	mbMu   sync.Mutex
	sub    event.Subscription
	stopMb chan struct{}
	mbDone chan struct{}

	feed  event.Feed
	scope event.SubscriptionScope
	bg    sync.WaitGroup
}

// NewManager returns a Manager with an empty session.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, errors.New("chain registry is required")
	}

	m := &Manager{
		provider:     cfg.Provider,
		providerName: cfg.ProviderName,
		registry:     cfg.Registry,
		marker:       cfg.Marker,
		lggr:           cfg.Logger,
		connectTimeout: cfg.ConnectTimeout,
	}

	if m.marker == nil {
		m.marker = &MemoryMarker{}
	}
	if m.lggr == nil {
		m.lggr = logger.Nop()
	}
	if m.connectTimeout <= 0 {
		m.connectTimeout = DefaultConnectTimeout
	}
	m.lggr = m.lggr.Named("session")

	return m, nil
}

// Snapshot returns the current session.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Snapshot {
	s := Snapshot{
		Address:     pointer.Copy(m.state.address),
		ChainID:     pointer.Copy(m.state.chainID),
		Balance:     pointer.Copy(m.state.balance),
		Connecting:  m.state.connecting,
		LastError:   m.state.lastErr,
		NetworkName: chain.UnknownNetworkName,
	}

	if s.ChainID != nil {
		s.CorrectNetwork = m.registry.IsExpected(*s.ChainID)
		s.NetworkName = m.registry.Label(*s.ChainID)
	}

	return s
}

// ChainID returns the chain id the wallet reported last.
func (m *Manager) ChainID() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.chainID == nil {
		return 0, false
	}

	return *m.state.chainID, true
}

// Watch subscribes ch to a Snapshot after every session change. Session changes block until
// every subscriber received the snapshot, so receivers must keep reading until they unsubscribe.
func (m *Manager) Watch(ch chan<- Snapshot) event.Subscription {
	return m.scope.Track(m.feed.Subscribe(ch))
}

// Account is the capability to act as the connected account.
type Account struct {
	Provider eip1193.Provider
	Address  common.Address
}

// Signer returns the provider and account to send transactions with.
func (m *Manager) Signer() (Account, error) {
	if m.provider == nil {
		return Account{}, walleterr.New(walleterr.ProviderUnavailable, "signer", walleterr.MsgProviderUnavailable)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.address == nil {
		return Account{}, walleterr.New(walleterr.NoAccounts, "signer", "Wallet not connected")
	}

	return Account{Provider: m.provider, Address: *m.state.address}, nil
}

// update applies fn to the state and publishes the resulting snapshot.
func (m *Manager) update(fn func(s *state)) {
	m.mu.Lock()
	fn(&m.state)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.feed.Send(snap)
}

// Connect requests account access, then resolves the chain and balance of the first account.
// Concurrent calls share the request in flight and return the same session.
//
// The shared attempt is bounded by the connect timeout, not by ctx. A caller whose ctx ends
// stops waiting with a ProviderError while the attempt continues for the other callers.
func (m *Manager) Connect(ctx context.Context) (Snapshot, error) {
	ch := m.group.DoChan("connect", func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.connectTimeout)
		defer cancel()

		return m.connect(cctx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			m.lggr.Debug("Joined connect in flight")
		}

		return res.Val.(Snapshot), res.Err
	case <-ctx.Done():
		return m.Snapshot(), walleterr.Wrap(walleterr.ProviderError, "connect", ctx.Err())
	}
}

func (m *Manager) connect(ctx context.Context) (Snapshot, error) {
	const op = "connect"

	if m.provider == nil {
		err := walleterr.New(walleterr.ProviderUnavailable, op, walleterr.MsgProviderUnavailable)
		m.update(func(s *state) { s.lastErr = err })

		return m.Snapshot(), err
	}

	var gen uint64
	m.update(func(s *state) {
		s.connecting = true
		s.lastErr = nil
		gen = m.generation
	})

	fail := func(err error) (Snapshot, error) {
		werr := walleterr.Classify(op, err)
		if werr.Kind == walleterr.Unknown {
			werr = &walleterr.Error{Kind: walleterr.ProviderError, Op: op, Message: werr.Message, Err: err}
		}
		m.lggr.Warnw("Connect failed", "kind", werr.Kind.String(), "error", err)
		m.update(func(s *state) {
			if m.generation != gen {
				return
			}
			s.connecting = false
			s.lastErr = werr
		})

		return m.Snapshot(), werr
	}
	superseded := func() (Snapshot, error) {
		m.lggr.Info("Dropped connect ended by disconnect")

		return m.Snapshot(), walleterr.New(walleterr.ProviderError, op, MsgDisconnected)
	}

	var accounts []common.Address
	if err := m.provider.Request(ctx, eip1193.MethodRequestAccounts, nil, &accounts); err != nil {
		return fail(err)
	}
	if len(accounts) == 0 {
		return fail(walleterr.New(walleterr.NoAccounts, op, walleterr.MsgNoAccounts))
	}
	address := accounts[0]

	var (
		chainID uint64
		balance string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		chainID, err = m.fetchChainID(gctx)

		return err
	})
	g.Go(func() error {
		var err error
		balance, err = m.fetchBalance(gctx, address)

		return err
	})
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	if !m.isGeneration(gen) {
		return superseded()
	}

	if err := m.marker.Save(Marker{Provider: m.providerName, Address: address.Hex(), SavedAt: time.Now().UTC()}); err != nil {
		m.lggr.Warnw("Failed to save session marker", "error", err)
	}

	m.startMailbox()

	committed := false
	m.update(func(s *state) {
		if m.generation != gen {
			return
		}
		s.address = pointer.To(address)
		s.chainID = pointer.To(chainID)
		s.balance = pointer.To(balance)
		s.connecting = false
		s.lastErr = nil
		committed = true
	})
	if !committed {
		// a Disconnect ran between the check and the commit
		m.stopMailbox()
		if err := m.marker.Clear(); err != nil {
			m.lggr.Warnw("Failed to clear session marker", "error", err)
		}

		return superseded()
	}

	snap := m.Snapshot()
	m.lggr.Infow("Wallet connected", "address", address.Hex(), "network", snap.NetworkName, "correctNetwork", snap.CorrectNetwork)

	return snap, nil
}

func (m *Manager) isGeneration(gen uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.generation == gen
}

func (m *Manager) fetchChainID(ctx context.Context) (uint64, error) {
	var hexID string
	if err := m.provider.Request(ctx, eip1193.MethodChainID, nil, &hexID); err != nil {
		return 0, err
	}

	id, err := chain.ParseChainID(hexID)
	if err != nil {
		return 0, fmt.Errorf("wallet reported an invalid chain id: %w", err)
	}

	return id, nil
}

func (m *Manager) fetchBalance(ctx context.Context, address common.Address) (string, error) {
	var wei hexutil.Big
	if err := m.provider.Request(ctx, eip1193.MethodGetBalance, []any{address, "latest"}, &wei); err != nil {
		return "", err
	}

	return chain.FormatEther((*big.Int)(&wei)), nil
}

// Disconnect ends the session: notifications stop, every field is cleared and the marker is
// removed. The session is cleared even when removing the marker fails.
func (m *Manager) Disconnect() error {
	m.stopMailbox()

	return m.reset()
}

func (m *Manager) reset() error {
	m.update(func(s *state) {
		*s = state{}
		m.generation++
	})

	if err := m.marker.Clear(); err != nil {
		return fmt.Errorf("failed to clear session marker: %w", err)
	}

	m.lggr.Info("Wallet disconnected")

	return nil
}

// AutoReconnect starts Connect in the background when a marker from a previous connection is
// present and reports whether it did. The outcome is only visible through the session.
func (m *Manager) AutoReconnect(ctx context.Context) bool {
	marker, ok, err := m.marker.Load()
	if err != nil {
		m.lggr.Warnw("Failed to load session marker", "error", err)
		return false
	}
	if !ok {
		return false
	}

	m.lggr.Debugw("Reconnecting previous session", "provider", marker.Provider, "address", marker.Address)

	m.bg.Add(1)
	go func() {
		defer m.bg.Done()

		if _, err := m.Connect(ctx); err != nil {
			m.lggr.Infow("Auto reconnect failed", "error", err)
		}
	}()

	return true
}

// Close stops the notification mailbox, waits for background reconnects and ends every
// Watch subscription.
func (m *Manager) Close() {
	m.stopMailbox()
	m.bg.Wait()
	m.scope.Close()
}
