package session

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/internal/pointer"
	"github.com/sagasynth/sagasynth/walleterr"
)

// refreshTimeout bounds the balance refresh after a notification.
const refreshTimeout = 30 * time.Second

func (m *Manager) startMailbox() {
	m.mbMu.Lock()
	defer m.mbMu.Unlock()

	if m.sub != nil {
		return
	}

	ch := make(chan eip1193.Notification, mailboxSize)
	m.sub = m.provider.Subscribe(ch)
	m.stopMb = make(chan struct{})
	m.mbDone = make(chan struct{})

	go m.runMailbox(ch, m.sub, m.stopMb, m.mbDone)
}

// stopMailbox stops the mailbox goroutine and waits for it to exit. It must not be called
// from the mailbox goroutine.
func (m *Manager) stopMailbox() {
	m.mbMu.Lock()
	stop, done := m.stopMb, m.mbDone
	m.sub, m.stopMb, m.mbDone = nil, nil, nil
	m.mbMu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-done
}

// detachMailbox forgets sub when the mailbox ends itself.
func (m *Manager) detachMailbox(sub event.Subscription) {
	m.mbMu.Lock()
	defer m.mbMu.Unlock()

	if m.sub == sub {
		m.sub, m.stopMb, m.mbDone = nil, nil, nil
	}
}

func (m *Manager) runMailbox(ch <-chan eip1193.Notification, sub event.Subscription, stop, done chan struct{}) {
	defer close(done)
	defer sub.Unsubscribe()

	for {
		select {
		case <-stop:
			return
		case err := <-sub.Err():
			if err != nil {
				m.lggr.Warnw("Provider subscription failed", "error", err)
			}
			m.detachMailbox(sub)

			return
		case n := <-ch:
			if ended := m.handle(n); ended {
				m.detachMailbox(sub)

				return
			}
		}
	}
}

// handle applies a notification and reports whether it ended the session.
func (m *Manager) handle(n eip1193.Notification) bool {
	m.lggr.Debugw("Provider notification", "notification", n.String())

	switch n.Kind {
	case eip1193.AccountsChanged:
		if len(n.Accounts) == 0 {
			m.endSession()

			return true
		}

		address := n.Accounts[0]
		m.update(func(s *state) { s.address = pointer.To(address) })
		if err := m.marker.Save(Marker{Provider: m.providerName, Address: address.Hex(), SavedAt: time.Now().UTC()}); err != nil {
			m.lggr.Warnw("Failed to save session marker", "error", err)
		}
		m.refreshBalance(address)
	case eip1193.ChainChanged:
		id, err := chain.ParseChainID(n.ChainID)
		if err != nil {
			m.lggr.Warnw("Ignoring chainChanged with invalid chain id", "chainID", n.ChainID, "error", err)
			m.update(func(s *state) { s.lastErr = walleterr.Wrap(walleterr.ProviderError, "chainChanged", err) })

			return false
		}

		m.update(func(s *state) { s.chainID = pointer.To(id) })
		if snap := m.Snapshot(); snap.Address != nil {
			m.refreshBalance(*snap.Address)
		}
	case eip1193.Disconnect:
		m.endSession()

		return true
	default:
		m.lggr.Debugw("Ignoring unknown notification", "kind", string(n.Kind))
	}

	return false
}

func (m *Manager) endSession() {
	if err := m.reset(); err != nil {
		m.lggr.Warnw("Failed to end session", "error", err)
		m.update(func(s *state) { s.lastErr = err })
	}
}

func (m *Manager) refreshBalance(address common.Address) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	balance, err := m.fetchBalance(ctx, address)
	if err != nil {
		werr := walleterr.Classify("refreshBalance", err)
		m.lggr.Warnw("Failed to refresh balance", "error", err)
		m.update(func(s *state) { s.lastErr = werr })

		return
	}

	m.update(func(s *state) {
		// the account may have changed again while the balance was fetched
		if s.address != nil && *s.address == address {
			s.balance = pointer.To(balance)
		}
	})
}
