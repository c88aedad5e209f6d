package keyed

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/chain/evm"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/pkg/logger"
)

var (
	oneEther = big.NewInt(1e18)

	simulatedChain = chain.ChainDescriptor{
		ID:             1337,
		Name:           "Simulated",
		NativeCurrency: chain.NativeCurrency{Name: "Ether", Symbol: "ETH", Decimals: 18},
		RPCURLs:        []string{"http://simulated.invalid"},
	}
)

type testWallet struct {
	*Wallet
	sim *simulated.Backend
	key *ecdsa.PrivateKey
}

// newTestWallet returns a wallet funded with 100 ether on a simulated backend. The QSaga
// network is known to the wallet but never dialed.
func newTestWallet(t *testing.T, opts ...func(*Config)) *testWallet {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	sim := simulated.NewBackend(types.GenesisAlloc{
		crypto.PubkeyToAddress(key.PublicKey): {Balance: new(big.Int).Mul(big.NewInt(100), oneEther)},
	})
	t.Cleanup(func() { _ = sim.Close() })

	cfg := Config{
		Signer: SignerFromKey(key),
		Chains: []chain.ChainDescriptor{simulatedChain, chain.QSaga()},
		Dialer: func(_ context.Context, desc chain.ChainDescriptor) (evm.OnchainClient, error) {
			if desc.ID != simulatedChain.ID {
				return nil, errors.New("unreachable")
			}

			return sim.Client(), nil
		},
		Logger: logger.Test(t),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	w, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(w.Close)

	return &testWallet{Wallet: w, sim: sim, key: key}
}

func (tw *testWallet) connect(t *testing.T) {
	t.Helper()

	var got []common.Address
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodRequestAccounts, nil, &got))
	require.Equal(t, []common.Address{tw.Address()}, got)
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()

	var perr *eip1193.RPCError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, code, perr.Code, perr.Message)
}

func Test_New(t *testing.T) {
	t.Parallel()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	tests := []struct {
		name    string
		give    Config
		wantErr string
	}{
		{
			name:    "missing signer",
			give:    Config{Chains: []chain.ChainDescriptor{chain.QSaga()}},
			wantErr: "signer is required",
		},
		{
			name:    "missing chains",
			give:    Config{Signer: SignerFromKey(key)},
			wantErr: "at least one chain is required",
		},
		{
			name:    "unknown active chain",
			give:    Config{Signer: SignerFromKey(key), Chains: []chain.ChainDescriptor{chain.QSaga()}, ActiveChainID: 1},
			wantErr: "active chain 1 is not a known chain",
		},
		{
			name:    "invalid chain",
			give:    Config{Signer: SignerFromKey(key), Chains: []chain.ChainDescriptor{{ID: 5}}},
			wantErr: "invalid chain 5",
		},
		{
			name: "valid",
			give: Config{Signer: SignerFromKey(key), Chains: []chain.ChainDescriptor{chain.QSaga()}, Logger: logger.Nop()},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w, err := New(tt.give)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), w.Address())
		})
	}
}

func Test_Wallet_Accounts(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t)

	var got []common.Address
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodAccounts, nil, &got))
	assert.Empty(t, got)

	tw.connect(t)

	require.NoError(t, tw.Request(t.Context(), eip1193.MethodAccounts, nil, &got))
	assert.Equal(t, []common.Address{tw.Address()}, got)

	ch := make(chan eip1193.Notification, 1)
	sub := tw.Subscribe(ch)
	defer sub.Unsubscribe()

	tw.Lock()
	n := <-ch
	assert.Equal(t, eip1193.AccountsChanged, n.Kind)
	assert.Empty(t, n.Accounts)

	require.NoError(t, tw.Request(t.Context(), eip1193.MethodAccounts, nil, &got))
	assert.Empty(t, got)
}

func Test_Wallet_RejectedByUser(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t, func(c *Config) {
		c.Approver = func(context.Context, string, []json.RawMessage) error {
			return errors.New("denied in test")
		}
	})

	err := tw.Request(t.Context(), eip1193.MethodRequestAccounts, nil, nil)
	requireCode(t, err, eip1193.CodeUserRejected)
}

func Test_Wallet_ChainInfo(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t)

	var chainID string
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodChainID, nil, &chainID))
	assert.Equal(t, "0x539", chainID)

	var version string
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodNetVersion, nil, &version))
	assert.Equal(t, "1337", version)

	var balance hexutil.Big
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodGetBalance, []any{tw.Address(), "latest"}, &balance))
	assert.Equal(t, 0, new(big.Int).Mul(big.NewInt(100), oneEther).Cmp(balance.ToInt()))

	tw.sim.Commit()

	var block hexutil.Uint64
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodBlockNumber, nil, &block))
	assert.Equal(t, hexutil.Uint64(1), block)

	var out hexutil.Bytes
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodCall, []any{eip1193.TransactionArgs{To: &common.Address{}}, "latest"}, &out))
	assert.Empty(t, out)

	err := tw.Request(t.Context(), "eth_coinbase", nil, nil)
	requireCode(t, err, eip1193.CodeUnsupportedMethod)
}

func Test_Wallet_SendTransaction(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t)
	to := common.HexToAddress("0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6")
	args := eip1193.TransactionArgs{
		To:    &to,
		Value: (*hexutil.Big)(oneEther),
	}

	var hash common.Hash
	err := tw.Request(t.Context(), eip1193.MethodSendTransaction, []any{args}, &hash)
	requireCode(t, err, eip1193.CodeUnauthorized)

	tw.connect(t)

	other := common.HexToAddress("0x01")
	err = tw.Request(t.Context(), eip1193.MethodSendTransaction, []any{eip1193.TransactionArgs{From: &other, To: &to}}, &hash)
	requireCode(t, err, eip1193.CodeUnauthorized)

	from := tw.Address()
	args.From = &from
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodSendTransaction, []any{args}, &hash))
	assert.NotEqual(t, common.Hash{}, hash)

	var receipt *types.Receipt
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodTransactionReceipt, []any{hash}, &receipt))
	assert.Nil(t, receipt, "no receipt before the block is mined")

	tw.sim.Commit()

	require.NoError(t, tw.Request(t.Context(), eip1193.MethodTransactionReceipt, []any{hash}, &receipt))
	require.NotNil(t, receipt)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, hash, receipt.TxHash)

	var balance hexutil.Big
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodGetBalance, []any{to, "latest"}, &balance))
	assert.Equal(t, 0, oneEther.Cmp(balance.ToInt()))

	// legacy pricing and mixed pricing
	gasPrice := (*hexutil.Big)(big.NewInt(2e9))
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodSendTransaction, []any{eip1193.TransactionArgs{
		To: &to, GasPrice: gasPrice,
	}}, &hash))

	err = tw.Request(t.Context(), eip1193.MethodSendTransaction, []any{eip1193.TransactionArgs{
		To: &to, GasPrice: gasPrice, MaxFeePerGas: gasPrice,
	}}, &hash)
	requireCode(t, err, eip1193.CodeInvalidParams)
}

func Test_Wallet_PersonalSign(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantMsg []byte
	}{
		{
			name:    "utf8 message",
			give:    "Sign in to SagaSynth",
			wantMsg: []byte("Sign in to SagaSynth"),
		},
		{
			name:    "hex message",
			give:    "0x68656c6c6f",
			wantMsg: []byte("hello"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tw := newTestWallet(t)
			tw.connect(t)

			var sig hexutil.Bytes
			require.NoError(t, tw.Request(t.Context(), eip1193.MethodPersonalSign, []any{tt.give, tw.Address()}, &sig))
			require.Len(t, sig, 65)
			assert.Contains(t, []byte{27, 28}, sig[64])

			sig[64] -= 27
			pub, err := crypto.SigToPub(accounts.TextHash(tt.wantMsg), sig)
			require.NoError(t, err)
			assert.Equal(t, tw.Address(), crypto.PubkeyToAddress(*pub))
		})
	}
}

func Test_Wallet_SignTypedDataV4(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t)
	tw.connect(t)

	typedData := `{
		"types": {
			"EIP712Domain": [{"name": "name", "type": "string"}, {"name": "chainId", "type": "uint256"}],
			"Donation": [{"name": "metadataId", "type": "uint256"}, {"name": "donor", "type": "address"}]
		},
		"primaryType": "Donation",
		"domain": {"name": "SagaSynth", "chainId": "1337"},
		"message": {"metadataId": "7", "donor": "0x36D65942d98b6Ed2CA01A1f85e7ca7afA1C04CE6"}
	}`

	var sig hexutil.Bytes
	require.NoError(t, tw.Request(t.Context(), MethodSignTypedDataV4, []any{tw.Address(), typedData}, &sig))

	var td apitypes.TypedData
	require.NoError(t, json.Unmarshal([]byte(typedData), &td))
	digest, _, err := apitypes.TypedDataAndHash(td)
	require.NoError(t, err)

	sig[64] -= 27
	pub, err := crypto.SigToPub(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, tw.Address(), crypto.PubkeyToAddress(*pub))
}

func Test_Wallet_SwitchAndAddChain(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t)

	ch := make(chan eip1193.Notification, 4)
	sub := tw.Subscribe(ch)
	defer sub.Unsubscribe()

	custom := chain.ChainDescriptor{
		ID:             424242,
		Name:           "Custom",
		NativeCurrency: chain.NativeCurrency{Name: "Custom", Symbol: "CST", Decimals: 18},
		RPCURLs:        []string{"https://rpc.custom.example"},
	}

	err := tw.Request(t.Context(), eip1193.MethodSwitchChain, []any{eip1193.SwitchChainParameter{ChainID: custom.HexID()}}, nil)
	requireCode(t, err, eip1193.CodeUnrecognizedChain)

	invalid := eip1193.AddChainParameterFor(custom)
	invalid.ChainID = "424242"
	err = tw.Request(t.Context(), eip1193.MethodAddChain, []any{invalid}, nil)
	requireCode(t, err, eip1193.CodeInvalidParams)

	require.NoError(t, tw.Request(t.Context(), eip1193.MethodAddChain, []any{eip1193.AddChainParameterFor(custom)}, nil))
	assert.Equal(t, eip1193.Notification{Kind: eip1193.ChainChanged, ChainID: "0x67932"}, receive(t, ch))

	var chainID string
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodChainID, nil, &chainID))
	assert.Equal(t, custom.HexID(), chainID)

	// switching to the active chain is a no-op
	require.NoError(t, tw.Request(t.Context(), eip1193.MethodSwitchChain, []any{eip1193.SwitchChainParameter{ChainID: custom.HexID()}}, nil))

	require.NoError(t, tw.Request(t.Context(), eip1193.MethodSwitchChain, []any{eip1193.SwitchChainParameter{ChainID: "0x539"}}, nil))
	assert.Equal(t, eip1193.Notification{Kind: eip1193.ChainChanged, ChainID: "0x539"}, receive(t, ch))
	assert.Empty(t, ch)
}

func Test_Wallet_UnreachableChain(t *testing.T) {
	t.Parallel()

	tw := newTestWallet(t, func(c *Config) { c.ActiveChainID = chain.QSagaChainID })

	err := tw.Request(t.Context(), eip1193.MethodBlockNumber, nil, nil)
	requireCode(t, err, eip1193.CodeChainDisconnected)
}

func receive(t *testing.T, ch <-chan eip1193.Notification) eip1193.Notification {
	t.Helper()

	select {
	case n := <-ch:
		return n
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for notification")
	}

	return eip1193.Notification{}
}
