package txdriver

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/segmentio/ksuid"

	"github.com/sagasynth/sagasynth/chain/evm"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/network"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/session"
	"github.com/sagasynth/sagasynth/walleterr"
)

// Session is the part of the wallet session the driver needs.
type Session interface {
	network.ChainView
	Signer() (session.Account, error)
}

// Negotiator moves the wallet to the expected network.
type Negotiator interface {
	EnsureExpectedChain(ctx context.Context, view network.ChainView) error
}

var (
	_ Session    = (*session.Manager)(nil)
	_ Negotiator = (*network.Negotiator)(nil)
)

// Config holds the configuration of a Driver.
type Config struct {
	// Required: Session supplies the sending account and its provider.
	Session Session
	// Required: Negotiator is consulted before every write.
	Negotiator Negotiator
	// Required: Contract is the address of the SagaSynth contract.
	Contract common.Address
	// Optional: Observer is notified of every state change.
	Observer Observer
	// Optional: PollInterval is the receipt polling interval. Defaults to evm.DefaultTickInterval.
	PollInterval time.Duration
	// Optional: Logger is the logger to use. Defaults to a no-op logger.
	Logger logger.Logger
}

func (c Config) validate() error {
	if c.Session == nil {
		return errors.New("session is required")
	}
	if c.Negotiator == nil {
		return errors.New("network negotiator is required")
	}
	if c.Contract == (common.Address{}) {
		return errors.New("contract address is required")
	}

	return nil
}

// Driver submits SagaSynth contract transactions.
type Driver struct {
	session    Session
	negotiator Negotiator
	contract   common.Address
	observer   Observer
	interval   time.Duration
	lggr       logger.Logger
}

// New returns a Driver.
func New(cfg Config) (*Driver, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid driver config: %w", err)
	}

	d := &Driver{
		session:    cfg.Session,
		negotiator: cfg.Negotiator,
		contract:   cfg.Contract,
		observer:   cfg.Observer,
		interval:   cfg.PollInterval,
		lggr:       cfg.Logger,
	}

	if d.interval <= 0 {
		d.interval = evm.DefaultTickInterval
	}
	if d.lggr == nil {
		d.lggr = logger.Nop()
	}
	d.lggr = d.lggr.Named("txdriver")

	return d, nil
}

// call describes a single write.
type call struct {
	// fn is the ABI method name, empty for a plain value transfer
	fn   string
	args []any
	// to overrides the contract address
	to    *common.Address
	value *big.Int

	// prepare validates the user input and fills in args, to and value
	prepare func(c *call) error

	// resultEvent and resultField name the event argument that is the result of the call
	resultEvent string
	resultField string
}

// submit runs a call through the transaction lifecycle. The returned transaction is always
// non-nil and its Err is the returned error.
func (d *Driver) submit(ctx context.Context, c call) (*PendingTransaction, error) {
	tx := &PendingTransaction{
		ID:       ksuid.New().String(),
		Function: c.fn,
		To:       d.contract,
		State:    StateIdle,
	}
	if tx.Function == "" {
		tx.Function = "sendValue"
	}
	lggr := d.lggr.With("txID", tx.ID, "function", tx.Function)

	d.transition(tx, StatePreparing)

	account, err := d.session.Signer()
	if err != nil {
		return d.fail(lggr, tx, err)
	}

	if c.prepare != nil {
		if err = c.prepare(&c); err != nil {
			return d.fail(lggr, tx, err)
		}
	}
	if c.to != nil {
		tx.To = *c.to
	}
	tx.Value = c.value

	if c.fn != "" {
		if tx.Data, err = d.pack(c.fn, c.args...); err != nil {
			return d.fail(lggr, tx, walleterr.Wrap(walleterr.ValidationError, tx.Function, err))
		}
	}

	if err = d.negotiator.EnsureExpectedChain(ctx, d.session); err != nil {
		return d.fail(lggr, tx, err)
	}

	d.transition(tx, StateSubmitted)

	hash, err := d.send(ctx, account, tx)
	if err != nil {
		return d.fail(lggr, tx, submitError(tx.Function, err))
	}
	tx.Hash = hash
	lggr.Infow("Transaction sent", "hash", hash.Hex())

	d.transition(tx, StateConfirming)

	backend := providerBackend{provider: account.Provider}
	receipt, err := evm.WaitMinedWithInterval(ctx, d.interval, backend, hash)
	if err != nil {
		return d.fail(lggr, tx, walleterr.Wrap(walleterr.ProviderError, tx.Function, fmt.Errorf("failed to wait for transaction %s: %w", hash.Hex(), err)))
	}
	tx.Receipt = receipt

	if receipt.Status == types.ReceiptStatusFailed {
		return d.fail(lggr, tx, d.revertError(ctx, backend, account.Address, tx))
	}

	if c.resultEvent == "" {
		d.transition(tx, StateCompleted)
		lggr.Infow("Transaction confirmed", "hash", hash.Hex(), "block", receipt.BlockNumber)

		return tx, nil
	}

	result, ok := d.extractResult(receipt, c.resultEvent, c.resultField)
	if !ok {
		d.transition(tx, StateCompletedWithoutResult)
		lggr.Infow("Transaction confirmed without result event", "hash", hash.Hex(), "event", c.resultEvent)

		return tx, nil
	}

	tx.Result = result
	d.transition(tx, StateCompleted)
	lggr.Infow("Transaction confirmed", "hash", hash.Hex(), c.resultField, result.String())

	return tx, nil
}

func (d *Driver) pack(fn string, args ...any) ([]byte, error) {
	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", fn, err)
	}

	return data, nil
}

func (d *Driver) send(ctx context.Context, account session.Account, tx *PendingTransaction) (common.Hash, error) {
	args := eip1193.TransactionArgs{
		From: &account.Address,
		To:   &tx.To,
	}
	if len(tx.Data) > 0 {
		data := hexutil.Bytes(tx.Data)
		args.Data = &data
	}
	if tx.Value != nil {
		args.Value = (*hexutil.Big)(tx.Value)
	}

	var hash common.Hash
	if err := account.Provider.Request(ctx, eip1193.MethodSendTransaction, []any{args}, &hash); err != nil {
		return common.Hash{}, err
	}

	return hash, nil
}

// submitError classifies a failed eth_sendTransaction. Faults other than a user rejection are
// provider errors carrying the raw message.
func submitError(op string, err error) *walleterr.Error {
	werr := walleterr.Classify(op, err)
	if werr.Kind == walleterr.Unknown {
		werr.Kind = walleterr.ProviderError
	}

	return werr
}

// revertError describes a mined but reverted transaction, with the revert reason when the call
// can be replayed.
func (d *Driver) revertError(ctx context.Context, caller evm.ContractCaller, from common.Address, tx *PendingTransaction) *walleterr.Error {
	cause := fmt.Errorf("transaction %s reverted", tx.Hash.Hex())

	reason, err := evm.RevertReason(ctx, caller, ethereum.CallMsg{
		From:  from,
		To:    &tx.To,
		Value: tx.Value,
		Data:  tx.Data,
	}, tx.Receipt.BlockNumber)
	if err == nil && reason != "" {
		cause = fmt.Errorf("transaction %s reverted: %s", tx.Hash.Hex(), reason)
	}

	return &walleterr.Error{
		Kind:    walleterr.ProviderError,
		Op:      tx.Function,
		Message: "transaction reverted",
		Err:     cause,
	}
}

// extractResult returns the field of the first receipt log emitted by the contract that decodes
// as event.
func (d *Driver) extractResult(receipt *types.Receipt, event, field string) (*big.Int, bool) {
	contractABI, err := loadABI()
	if err != nil {
		return nil, false
	}

	ev, ok := contractABI.Events[event]
	if !ok {
		return nil, false
	}

	for _, l := range receipt.Logs {
		if l.Address != d.contract || len(l.Topics) == 0 || l.Topics[0] != ev.ID {
			continue
		}

		values, err := decodeEvent(ev, l)
		if err != nil {
			d.lggr.Debugw("Skipping undecodable log", "event", event, "index", l.Index, "error", err)
			continue
		}

		if v, ok := values[field].(*big.Int); ok {
			return v, true
		}
	}

	return nil, false
}

func decodeEvent(ev abi.Event, l *types.Log) (map[string]any, error) {
	values := make(map[string]any)

	if err := ev.Inputs.UnpackIntoMap(values, l.Data); err != nil {
		return nil, err
	}

	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}

	if err := abi.ParseTopicsIntoMap(values, indexed, l.Topics[1:]); err != nil {
		return nil, err
	}

	return values, nil
}

func (d *Driver) transition(tx *PendingTransaction, state State) {
	tx.State = state
	if d.observer != nil {
		d.observer(*tx)
	}
}

func (d *Driver) fail(lggr logger.Logger, tx *PendingTransaction, err error) (*PendingTransaction, error) {
	werr := walleterr.Classify(tx.Function, err)
	tx.Err = werr
	d.transition(tx, StateFailed)

	lggr.Warnw("Transaction failed", "kind", werr.Kind.String(), "error", werr)

	return tx, werr
}
