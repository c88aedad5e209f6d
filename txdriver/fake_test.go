package txdriver

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/require"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/network"
	"github.com/sagasynth/sagasynth/session"
	"github.com/sagasynth/sagasynth/walleterr"
)

var (
	contractAddr = common.HexToAddress("0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6")
	sender       = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	txHash       = common.HexToHash("0x1111111111111111111111111111111111111111111111111111111111111111")
)

// fakeWallet is a wallet provider backed by scripted answers.
type fakeWallet struct {
	mu sync.Mutex

	sent    []eip1193.TransactionArgs
	calls   map[string]int
	sendErr error
	// pendingPolls is the number of receipt polls answered with null
	pendingPolls int
	// receipt builds the receipt of the sent transaction
	receipt func(args eip1193.TransactionArgs) *types.Receipt
	// views answers eth_call by method name
	views   map[string][]any
	callErr error
	signErr error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		calls: make(map[string]int),
		receipt: func(eip1193.TransactionArgs) *types.Receipt {
			return minedReceipt(types.ReceiptStatusSuccessful)
		},
		views: make(map[string][]any),
	}
}

func (w *fakeWallet) Request(_ context.Context, method string, params any, result any) error {
	raw, err := eip1193.DecodeParams(params)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls[method]++

	switch method {
	case eip1193.MethodSendTransaction:
		if w.sendErr != nil {
			return w.sendErr
		}

		var args eip1193.TransactionArgs
		if err := json.Unmarshal(raw[0], &args); err != nil {
			return err
		}
		w.sent = append(w.sent, args)

		return eip1193.SetResult(txHash, result)
	case eip1193.MethodTransactionReceipt:
		if w.pendingPolls > 0 {
			w.pendingPolls--
			return eip1193.SetResult(nil, result)
		}

		return eip1193.SetResult(w.receipt(w.sent[len(w.sent)-1]), result)
	case eip1193.MethodCall:
		if w.callErr != nil {
			return w.callErr
		}

		var args eip1193.TransactionArgs
		if err := json.Unmarshal(raw[0], &args); err != nil {
			return err
		}

		out, err := w.answerView(*args.Data)
		if err != nil {
			return err
		}

		return eip1193.SetResult(hexutil.Bytes(out), result)
	case eip1193.MethodPersonalSign:
		if w.signErr != nil {
			return w.signErr
		}

		return eip1193.SetResult(hexutil.Bytes{0xde, 0xad}, result)
	default:
		return eip1193.NewError(eip1193.CodeUnsupportedMethod, "unsupported method %s", method)
	}
}

func (w *fakeWallet) answerView(data []byte) ([]byte, error) {
	contractABI, err := ContractABI()
	if err != nil {
		return nil, err
	}

	m, err := contractABI.MethodById(data)
	if err != nil {
		return nil, err
	}

	values, ok := w.views[m.Name]
	if !ok {
		return nil, eip1193.NewError(eip1193.CodeExecutionReverted, "execution reverted")
	}

	return m.Outputs.Pack(values...)
}

func (w *fakeWallet) Subscribe(ch chan<- eip1193.Notification) event.Subscription {
	var feed event.Feed

	return feed.Subscribe(ch)
}

func (w *fakeWallet) set(fn func(w *fakeWallet)) {
	w.mu.Lock()
	defer w.mu.Unlock()

	fn(w)
}

func (w *fakeWallet) sentTxs() []eip1193.TransactionArgs {
	w.mu.Lock()
	defer w.mu.Unlock()

	return append([]eip1193.TransactionArgs(nil), w.sent...)
}

func (w *fakeWallet) callCount(method string) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.calls[method]
}

// accountWallet is a fakeWallet that also answers the requests of a connecting session.
type accountWallet struct {
	*fakeWallet
}

func (w accountWallet) Request(ctx context.Context, method string, params any, result any) error {
	switch method {
	case eip1193.MethodRequestAccounts, eip1193.MethodAccounts:
		return eip1193.SetResult([]common.Address{sender}, result)
	case eip1193.MethodChainID:
		return eip1193.SetResult(hexutil.EncodeUint64(chain.QSagaChainID), result)
	case eip1193.MethodGetBalance:
		return eip1193.SetResult("0xde0b6b3a7640000", result)
	default:
		return w.fakeWallet.Request(ctx, method, params, result)
	}
}

// fakeSession is a connected session on the QSaga network.
type fakeSession struct {
	provider eip1193.Provider
	err      error
}

func (s fakeSession) ChainID() (uint64, bool) { return chain.QSagaChainID, true }

func (s fakeSession) Signer() (session.Account, error) {
	if s.err != nil {
		return session.Account{}, s.err
	}

	return session.Account{Provider: s.provider, Address: sender}, nil
}

// fakeNegotiator records negotiations and fails with err.
type fakeNegotiator struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (n *fakeNegotiator) EnsureExpectedChain(context.Context, network.ChainView) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.calls++

	return n.err
}

func (n *fakeNegotiator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.calls
}

type testDriver struct {
	*Driver
	wallet     *fakeWallet
	negotiator *fakeNegotiator

	mu     sync.Mutex
	states []State
}

func (d *testDriver) observed() []State {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]State(nil), d.states...)
}

func newTestDriver(t *testing.T, opts ...func(cfg *Config)) *testDriver {
	t.Helper()

	td := &testDriver{
		wallet:     newFakeWallet(),
		negotiator: &fakeNegotiator{},
	}

	cfg := Config{
		Session:    fakeSession{provider: td.wallet},
		Negotiator: td.negotiator,
		Contract:   contractAddr,
		Observer: func(tx PendingTransaction) {
			td.mu.Lock()
			defer td.mu.Unlock()

			td.states = append(td.states, tx.State)
		},
		PollInterval: 5 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	d, err := New(cfg)
	require.NoError(t, err)
	td.Driver = d

	return td
}

func minedReceipt(status uint64, logs ...*types.Log) *types.Receipt {
	if logs == nil {
		logs = []*types.Log{}
	}

	return &types.Receipt{
		Type:              types.DynamicFeeTxType,
		Status:            status,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              logs,
		TxHash:            txHash,
		BlockNumber:       big.NewInt(7),
	}
}

// eventLog encodes an event of the contract as emitted by address.
func eventLog(t *testing.T, address common.Address, name string, values map[string]any) *types.Log {
	t.Helper()

	contractABI, err := ContractABI()
	require.NoError(t, err)

	ev, ok := contractABI.Events[name]
	require.True(t, ok, name)

	topics := []common.Hash{ev.ID}
	var data []any
	for _, arg := range ev.Inputs {
		v, ok := values[arg.Name]
		require.True(t, ok, arg.Name)

		if !arg.Indexed {
			data = append(data, v)
			continue
		}

		switch tv := v.(type) {
		case *big.Int:
			topics = append(topics, common.BigToHash(tv))
		case common.Address:
			topics = append(topics, common.BytesToHash(tv.Bytes()))
		default:
			t.Fatalf("unsupported indexed value %T", v)
		}
	}

	encoded, err := ev.Inputs.NonIndexed().Pack(data...)
	require.NoError(t, err)

	return &types.Log{
		Address: address,
		Topics:  topics,
		Data:    encoded,
		TxHash:  txHash,
	}
}

var errNotConnected = walleterr.New(walleterr.NoAccounts, "signer", "Wallet not connected")

// selector returns the 4 byte selector of a function signature.
func selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}
