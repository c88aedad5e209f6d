package evm

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

var (
	// SimChainID is the chain id of every simulated backend.
	SimChainID = params.AllDevChainProtocolChanges.ChainID
	// SimPrefund is the balance of the accounts funded by NewFundedSimClient, 1,000,000 ether.
	SimPrefund = new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(params.Ether))
)

var _ OnchainClient = (*SimClient)(nil)

// SimClient is a wrapper struct around a simulated backend which implements OnchainClient but
// also exposes backend methods.
type SimClient struct {
	mu sync.Mutex

	// Embed the simulated.Client to provide access to its methods and adhere to the OnchainClient interface.
	simulated.Client
	// sim is the underlying simulated backend that this client wraps.
	sim *simulated.Backend
	// autoCommit mines a block after every accepted transaction.
	autoCommit bool
}

// NewSimClient creates a new SimClient from a simulated backend. With autoCommit every accepted
// transaction is mined in its own block right away, otherwise blocks are only produced by
// Commit.
func NewSimClient(t *testing.T, sim *simulated.Backend, autoCommit bool) *SimClient {
	t.Helper()

	require.NotNil(t, sim, "simulated backend must not be nil")

	return &SimClient{
		sim:        sim,
		Client:     sim.Client(),
		autoCommit: autoCommit,
	}
}

// NewFundedSimClient starts a simulated backend funding one new account with SimPrefund. The
// backend is closed when the test ends.
func NewFundedSimClient(t *testing.T, autoCommit bool) (*SimClient, common.Address, []byte) {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err, "failed to generate account key")
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sim := simulated.NewBackend(types.GenesisAlloc{
		addr: {Balance: SimPrefund},
	})
	t.Cleanup(func() { _ = sim.Close() })

	return NewSimClient(t, sim, autoCommit), addr, crypto.FromECDSA(key)
}

// Commit mines a block.
func (b *SimClient) Commit() common.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.sim.Commit()
}

// SendTransaction submits tx and mines it when the client auto commits.
func (b *SimClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.Client.SendTransaction(ctx, tx); err != nil {
		return err
	}

	if b.autoCommit {
		b.Commit()
	}

	return nil
}
