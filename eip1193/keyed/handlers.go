package keyed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/holiman/uint256"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
)

// MethodSignTypedDataV4 signs EIP-712 typed data.
const MethodSignTypedDataV4 = "eth_signTypedData_v4"

// param decodes the positional parameter i.
func param[T any](params []json.RawMessage, i int) (T, error) {
	var v T
	if i >= len(params) {
		return v, eip1193.NewError(eip1193.CodeInvalidParams, "missing value for required argument %d", i)
	}

	if err := json.Unmarshal(params[i], &v); err != nil {
		return v, eip1193.NewError(eip1193.CodeInvalidParams, "invalid argument %d: %v", i, err)
	}

	return v, nil
}

// blockParam decodes an optional block tag or number. Latest and pending map to nil, the
// "current block" of go-ethereum clients.
func blockParam(params []json.RawMessage, i int) (*big.Int, error) {
	if i >= len(params) {
		return nil, nil
	}

	bn, err := param[rpc.BlockNumber](params, i)
	if err != nil {
		return nil, err
	}

	if bn < 0 {
		return nil, nil
	}

	return big.NewInt(bn.Int64()), nil
}

func (w *Wallet) requireAccount(from *common.Address) error {
	if !w.isAuthorized() {
		return eip1193.NewError(eip1193.CodeUnauthorized, "the requested account and/or method has not been authorized by the user")
	}

	if from != nil && *from != w.address {
		return eip1193.NewError(eip1193.CodeUnauthorized, "the requested account %s has not been authorized by the user", from.Hex())
	}

	return nil
}

func (w *Wallet) requestAccounts(ctx context.Context, params []json.RawMessage) (any, error) {
	if !w.isAuthorized() {
		if err := w.approve(ctx, eip1193.MethodRequestAccounts, params); err != nil {
			return nil, err
		}

		w.mu.Lock()
		w.authorized = true
		w.mu.Unlock()
	}

	return []common.Address{w.address}, nil
}

func (w *Wallet) accounts(context.Context, []json.RawMessage) (any, error) {
	if !w.isAuthorized() {
		return []common.Address{}, nil
	}

	return []common.Address{w.address}, nil
}

func (w *Wallet) chainID(context.Context, []json.RawMessage) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return chain.FormatChainID(w.active), nil
}

func (w *Wallet) netVersion(context.Context, []json.RawMessage) (any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return strconv.FormatUint(w.active, 10), nil
}

func (w *Wallet) getBalance(ctx context.Context, params []json.RawMessage) (any, error) {
	account, err := param[common.Address](params, 0)
	if err != nil {
		return nil, err
	}

	block, err := blockParam(params, 1)
	if err != nil {
		return nil, err
	}

	_, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	balance, err := client.BalanceAt(ctx, account, block)
	if err != nil {
		return nil, err
	}

	return (*hexutil.Big)(balance), nil
}

func (w *Wallet) getCode(ctx context.Context, params []json.RawMessage) (any, error) {
	account, err := param[common.Address](params, 0)
	if err != nil {
		return nil, err
	}

	block, err := blockParam(params, 1)
	if err != nil {
		return nil, err
	}

	_, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	code, err := client.CodeAt(ctx, account, block)
	if err != nil {
		return nil, err
	}

	return hexutil.Bytes(code), nil
}

func (w *Wallet) blockNumber(ctx context.Context, _ []json.RawMessage) (any, error) {
	_, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	n, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	return hexutil.Uint64(n), nil
}

func (w *Wallet) call(ctx context.Context, params []json.RawMessage) (any, error) {
	args, err := param[eip1193.TransactionArgs](params, 0)
	if err != nil {
		return nil, err
	}

	block, err := blockParam(params, 1)
	if err != nil {
		return nil, err
	}

	_, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	out, err := client.CallContract(ctx, callMsg(args, w.address), block)
	if err != nil {
		return nil, err
	}

	return hexutil.Bytes(out), nil
}

func (w *Wallet) transactionReceipt(ctx context.Context, params []json.RawMessage) (any, error) {
	hash, err := param[common.Hash](params, 0)
	if err != nil {
		return nil, err
	}

	_, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	receipt, err := client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	// nodes always send a logs array, the receipt decoder requires one
	if receipt.Logs == nil {
		r := *receipt
		r.Logs = []*types.Log{}
		receipt = &r
	}

	return receipt, nil
}

func (w *Wallet) sendTransaction(ctx context.Context, params []json.RawMessage) (any, error) {
	args, err := param[eip1193.TransactionArgs](params, 0)
	if err != nil {
		return nil, err
	}

	if err = w.requireAccount(args.From); err != nil {
		return nil, err
	}

	if args.GasPrice != nil && (args.MaxFeePerGas != nil || args.MaxPriorityFeePerGas != nil) {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "cannot mix gasPrice with maxFeePerGas/maxPriorityFeePerGas")
	}

	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}
	if _, overflow := uint256.FromBig(value); overflow || value.Sign() < 0 {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "value %s is not a uint256", value)
	}

	if err = w.approve(ctx, eip1193.MethodSendTransaction, params); err != nil {
		return nil, err
	}

	desc, client, err := w.activeChain(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := w.buildTx(ctx, client, args, value)
	if err != nil {
		return nil, err
	}

	signed, err := signTx(w.signer, tx, desc.BigID())
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err = client.SendTransaction(ctx, signed); err != nil {
		return nil, err
	}

	w.lggr.Infow("Transaction sent", "chain", desc.Name, "hash", signed.Hash().Hex(), "nonce", signed.Nonce())

	return signed.Hash(), nil
}

// txBuilder is the part of the chain client needed to fill in a transaction.
type txBuilder interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// buildTx fills in nonce, gas and fees. A gasPrice argument yields a legacy transaction,
// otherwise a dynamic fee transaction is built unless the chain has no base fee.
func (w *Wallet) buildTx(ctx context.Context, client txBuilder, args eip1193.TransactionArgs, value *big.Int) (*types.Transaction, error) {
	var data []byte
	if args.Data != nil {
		data = *args.Data
	}

	var nonce uint64
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	} else {
		n, err := client.PendingNonceAt(ctx, w.address)
		if err != nil {
			return nil, err
		}
		nonce = n
	}

	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else {
		msg := callMsg(args, w.address)
		msg.Value = value
		g, err := client.EstimateGas(ctx, msg)
		if err != nil {
			return nil, err
		}
		gas = g
	}

	if args.GasPrice != nil {
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: args.GasPrice.ToInt(),
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     data,
		}), nil
	}

	maxFee, tip, err := resolveEIP1559Fees(ctx, client, args)
	if err != nil {
		return nil, err
	}

	if maxFee == nil {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return nil, err
		}

		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     data,
		}), nil
	}

	return types.NewTx(&types.DynamicFeeTx{
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: maxFee,
		Gas:       gas,
		To:        args.To,
		Value:     value,
		Data:      data,
	}), nil
}

// resolveEIP1559Fees fills in the fee caps that were not given: the tip from the node's
// suggestion and the max fee as twice the base fee plus the tip. A nil max fee means the chain
// has no base fee.
func resolveEIP1559Fees(ctx context.Context, client txBuilder, args eip1193.TransactionArgs) (*big.Int, *big.Int, error) {
	var maxFee, tip *big.Int
	if args.MaxFeePerGas != nil {
		maxFee = args.MaxFeePerGas.ToInt()
	}
	if args.MaxPriorityFeePerGas != nil {
		tip = args.MaxPriorityFeePerGas.ToInt()
	}

	if tip == nil {
		suggested, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, nil, err
		}
		tip = suggested
	}

	if maxFee == nil {
		head, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, nil, err
		}
		if head.BaseFee == nil {
			return nil, nil, nil
		}
		maxFee = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	}

	if maxFee.Cmp(tip) < 0 {
		return nil, nil, eip1193.NewError(eip1193.CodeInvalidParams, "maxFeePerGas (%s) < maxPriorityFeePerGas (%s)", maxFee, tip)
	}

	return maxFee, tip, nil
}

func callMsg(args eip1193.TransactionArgs, defaultFrom common.Address) ethereum.CallMsg {
	msg := ethereum.CallMsg{
		From: defaultFrom,
		To:   args.To,
	}
	if args.From != nil {
		msg.From = *args.From
	}
	if args.Gas != nil {
		msg.Gas = uint64(*args.Gas)
	}
	if args.Value != nil {
		msg.Value = args.Value.ToInt()
	}
	if args.Data != nil {
		msg.Data = *args.Data
	}

	return msg
}

func (w *Wallet) personalSign(ctx context.Context, params []json.RawMessage) (any, error) {
	msg, err := param[string](params, 0)
	if err != nil {
		return nil, err
	}

	if len(params) > 1 {
		from, perr := param[common.Address](params, 1)
		if perr != nil {
			return nil, perr
		}
		err = w.requireAccount(&from)
	} else {
		err = w.requireAccount(nil)
	}
	if err != nil {
		return nil, err
	}

	data, err := parsePersonalSignMessage(msg)
	if err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "invalid message: %v", err)
	}

	if err = w.approve(ctx, eip1193.MethodPersonalSign, params); err != nil {
		return nil, err
	}

	return w.signDigest(accounts.TextHash(data))
}

func (w *Wallet) signTypedDataV4(ctx context.Context, params []json.RawMessage) (any, error) {
	from, err := param[common.Address](params, 0)
	if err != nil {
		return nil, err
	}

	if err = w.requireAccount(&from); err != nil {
		return nil, err
	}

	if len(params) < 2 {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "missing value for required argument 1")
	}

	// the typed data is sent either as a JSON string or as an object
	raw := params[1]
	var encoded string
	if json.Unmarshal(raw, &encoded) == nil {
		raw = json.RawMessage(encoded)
	}

	var td apitypes.TypedData
	if err = json.Unmarshal(raw, &td); err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "invalid typed data: %v", err)
	}

	digest, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "invalid typed data: %v", err)
	}

	if err = w.approve(ctx, MethodSignTypedDataV4, params); err != nil {
		return nil, err
	}

	return w.signDigest(digest)
}

// signDigest signs a message digest and returns the signature with V set to 27 or 28.
func (w *Wallet) signDigest(digest []byte) (hexutil.Bytes, error) {
	sig, err := w.signer.SignHash(digest)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	sig[64] += 27

	return sig, nil
}

// parsePersonalSignMessage decodes 0x prefixed messages as hex and takes anything else as
// UTF-8 text.
func parsePersonalSignMessage(msg string) ([]byte, error) {
	m := strings.TrimSpace(msg)
	if strings.HasPrefix(m, "0x") || strings.HasPrefix(m, "0X") {
		return hexutil.Decode("0x" + m[2:])
	}

	return []byte(m), nil
}

func (w *Wallet) switchChain(ctx context.Context, params []json.RawMessage) (any, error) {
	p, err := param[eip1193.SwitchChainParameter](params, 0)
	if err != nil {
		return nil, err
	}

	id, err := chain.ParseChainID(p.ChainID)
	if err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "%v", err)
	}

	w.mu.Lock()
	_, known := w.chains[id]
	current := w.active
	w.mu.Unlock()

	if !known {
		return nil, eip1193.NewError(eip1193.CodeUnrecognizedChain,
			"Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", p.ChainID)
	}

	if id == current {
		return nil, nil
	}

	if err = w.approve(ctx, eip1193.MethodSwitchChain, params); err != nil {
		return nil, err
	}

	w.setActive(id)

	return nil, nil
}

func (w *Wallet) addChain(ctx context.Context, params []json.RawMessage) (any, error) {
	if len(params) == 0 {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "missing value for required argument 0")
	}

	if err := validateAddChainParameter(params[0]); err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "%v", err)
	}

	p, err := param[eip1193.AddChainParameter](params, 0)
	if err != nil {
		return nil, err
	}

	desc, err := p.Descriptor()
	if err != nil {
		return nil, eip1193.NewError(eip1193.CodeInvalidParams, "%v", err)
	}

	if err = w.approve(ctx, eip1193.MethodAddChain, params); err != nil {
		return nil, err
	}

	w.mu.Lock()
	existing, known := w.chains[desc.ID]
	if !known {
		w.chains[desc.ID] = desc
	}
	w.mu.Unlock()

	if known {
		w.lggr.Debugw("Chain already known, keeping existing entry", "chain", existing.String())
	} else {
		w.lggr.Infow("Chain added", "chain", desc.String())
	}

	w.setActive(desc.ID)

	return nil, nil
}

// setActive makes id the active chain and emits chainChanged when it changed.
func (w *Wallet) setActive(id uint64) {
	w.mu.Lock()
	changed := w.active != id
	w.active = id
	w.mu.Unlock()

	if changed {
		w.lggr.Infow("Active chain changed", "chainID", id)
		w.feed.Send(eip1193.Notification{Kind: eip1193.ChainChanged, ChainID: chain.FormatChainID(id)})
	}
}
