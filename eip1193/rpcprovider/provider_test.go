package rpcprovider

import (
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

// fakeWallet is served under the eth namespace by a go-ethereum rpc.Server.
type fakeWallet struct {
	mu       sync.Mutex
	accounts []common.Address
	chainID  string
}

func (w *fakeWallet) Accounts() []common.Address {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.accounts
}

func (w *fakeWallet) RequestAccounts() ([]common.Address, error) {
	return w.Accounts(), nil
}

// ChainId serves eth_chainId.
func (w *fakeWallet) ChainId() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.chainID
}

func (w *fakeWallet) SendTransaction(eip1193.TransactionArgs) (common.Hash, error) {
	return common.Hash{}, eip1193.NewError(eip1193.CodeUserRejected, "User rejected the request.")
}

func (w *fakeWallet) set(accounts []common.Address, chainID string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.accounts = accounts
	w.chainID = chainID
}

// newFakeWallet serves a fake wallet over HTTP. The server is closed when the test ends.
func newFakeWallet(t *testing.T) (*fakeWallet, *httptest.Server) {
	t.Helper()

	w := &fakeWallet{accounts: []common.Address{alice}, chainID: "0x9c770d8cd4640"}

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", w))

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
	})

	return w, ts
}

func dialFake(t *testing.T, url string) *Provider {
	t.Helper()

	p, err := Dial(t.Context(), Config{
		URL:              url,
		PollInterval:     10 * time.Millisecond,
		FailureThreshold: 2,
		Logger:           logger.Test(t),
	})
	require.NoError(t, err)
	t.Cleanup(p.Close)

	return p
}

func waitFor(t *testing.T, ch <-chan eip1193.Notification, kind eip1193.NotificationKind) eip1193.Notification {
	t.Helper()

	timeout := time.After(5 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.Kind == kind {
				return n
			}
		case <-timeout:
			require.FailNow(t, "timed out waiting for notification", string(kind))
		}
	}
}

func Test_Dial(t *testing.T) {
	t.Parallel()

	_, err := Dial(t.Context(), Config{})
	require.ErrorContains(t, err, "wallet RPC URL is required")

	_, err = Dial(t.Context(), Config{URL: "ftp://wallet", DialAttempts: 1, Logger: logger.Nop()})
	require.ErrorContains(t, err, "failed to dial wallet")
}

func Test_Provider_Request(t *testing.T) {
	t.Parallel()

	_, ts := newFakeWallet(t)
	p := dialFake(t, ts.URL)

	var accounts []common.Address
	require.NoError(t, p.Request(t.Context(), eip1193.MethodRequestAccounts, nil, &accounts))
	assert.Equal(t, []common.Address{alice}, accounts)

	var chainID string
	require.NoError(t, p.Request(t.Context(), eip1193.MethodChainID, nil, &chainID))
	assert.Equal(t, "0x9c770d8cd4640", chainID)

	var hash common.Hash
	err := p.Request(t.Context(), eip1193.MethodSendTransaction, []any{eip1193.TransactionArgs{
		From:  &alice,
		To:    &bob,
		Value: (*hexutil.Big)(hexutil.MustDecodeBig("0x1")),
	}}, &hash)

	var perr *eip1193.RPCError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, eip1193.CodeUserRejected, perr.Code)
	assert.Equal(t, "User rejected the request.", perr.Message)

	err = p.Request(t.Context(), eip1193.MethodPersonalSign, []any{"0x68656c6c6f", alice}, nil)
	code, ok := eip1193.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, eip1193.CodeMethodNotFound, code)
}

func Test_Provider_Notifications(t *testing.T) {
	t.Parallel()

	w, ts := newFakeWallet(t)
	p := dialFake(t, ts.URL)

	ch := make(chan eip1193.Notification, 8)
	sub := p.Subscribe(ch)
	defer sub.Unsubscribe()

	// let the poller record the initial state
	time.Sleep(50 * time.Millisecond)

	w.set([]common.Address{bob}, "0x9c770d8cd4640")
	n := waitFor(t, ch, eip1193.AccountsChanged)
	assert.Equal(t, []common.Address{bob}, n.Accounts)

	w.set([]common.Address{bob}, "0x1")
	n = waitFor(t, ch, eip1193.ChainChanged)
	assert.Equal(t, "0x1", n.ChainID)

	w.set(nil, "0x1")
	n = waitFor(t, ch, eip1193.AccountsChanged)
	assert.Empty(t, n.Accounts)
}

func Test_Provider_DisconnectOnRepeatedFailures(t *testing.T) {
	t.Parallel()

	_, ts := newFakeWallet(t)
	p := dialFake(t, ts.URL)

	ch := make(chan eip1193.Notification, 8)
	sub := p.Subscribe(ch)
	defer sub.Unsubscribe()

	ts.Close()

	n := waitFor(t, ch, eip1193.Disconnect)
	require.NotNil(t, n.Err)
	assert.Equal(t, eip1193.CodeDisconnected, n.Err.Code)
}
