package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultTickInterval is the receipt polling interval, the same value bind.WaitMined uses.
const DefaultTickInterval = 1 * time.Second

// WaitMinedWithInterval polls for the receipt of txHash every tick until it is available or ctx
// is done. There is no timeout other than the one carried by ctx.
func WaitMinedWithInterval(ctx context.Context, tick time.Duration, b bind.DeployBackend, txHash common.Hash) (*types.Receipt, error) {
	queryTicker := time.NewTicker(tick)
	defer queryTicker.Stop()
	for {
		receipt, err := b.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-queryTicker.C:
		}
	}
}

// ContractCaller is an interface that defines the CallContract method. This is copied from the
// go-ethereum package method to limit the scope of dependencies provided to the functions.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RevertReason replays a reverted call at the block it was mined in and extracts the revert
// reason from the node's error.
func RevertReason(ctx context.Context, caller ContractCaller, call ethereum.CallMsg, blockNumber *big.Int) (string, error) {
	_, err := caller.CallContract(ctx, call, blockNumber)
	if err == nil {
		return "", errors.New("call did not revert when replayed")
	}

	reason, perr := JSONErrorData(err)
	if perr == nil && reason != "" {
		return reason, nil
	}

	return err.Error(), nil
}

// JSONErrorData extracts the data field of a JSON-RPC error.
func JSONErrorData(err error) (string, error) {
	if err == nil {
		return "", errors.New("cannot parse nil error")
	}

	// Define a custom interface that matches the structure of the JSON error because it is a
	// private type in go-ethereum.
	type jsonError interface {
		Error() string
		ErrorCode() int
		ErrorData() any
	}

	var jerr jsonError
	if !errors.As(err, &jerr) {
		return "", fmt.Errorf("error must be of type jsonError: %w", err)
	}

	if jerr.ErrorData() == nil {
		if strings.Contains(jerr.Error(), "missing trie node") {
			return "", errors.New("missing trie node, likely due to not using an archive node")
		}

		return "", nil
	}

	return fmt.Sprintf("%v", jerr.ErrorData()), nil
}
