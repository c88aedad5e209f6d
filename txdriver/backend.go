package txdriver

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/sagasynth/sagasynth/chain/evm"
	"github.com/sagasynth/sagasynth/eip1193"
)

var (
	_ bind.DeployBackend = providerBackend{}
	_ evm.ContractCaller = providerBackend{}
)

// providerBackend serves the chain reads of the driver through the wallet provider.
type providerBackend struct {
	provider eip1193.Provider
}

// TransactionReceipt returns ethereum.NotFound while the transaction is pending.
func (b providerBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	if err := b.provider.Request(ctx, eip1193.MethodTransactionReceipt, []any{txHash}, &receipt); err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ethereum.NotFound
	}

	return receipt, nil
}

func (b providerBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var code hexutil.Bytes
	if err := b.provider.Request(ctx, eip1193.MethodGetCode, []any{account, blockArg(blockNumber)}, &code); err != nil {
		return nil, err
	}

	return code, nil
}

func (b providerBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	args := eip1193.TransactionArgs{To: call.To}
	if call.From != (common.Address{}) {
		args.From = &call.From
	}
	if call.Value != nil {
		args.Value = (*hexutil.Big)(call.Value)
	}
	if len(call.Data) > 0 {
		data := hexutil.Bytes(call.Data)
		args.Data = &data
	}

	var out hexutil.Bytes
	if err := b.provider.Request(ctx, eip1193.MethodCall, []any{args, blockArg(blockNumber)}, &out); err != nil {
		return nil, err
	}

	return out, nil
}

// blockArg is the block parameter of a read, the latest block for nil.
func blockArg(blockNumber *big.Int) string {
	if blockNumber == nil {
		return rpc.LatestBlockNumber.String()
	}

	return hexutil.EncodeBig(blockNumber)
}
