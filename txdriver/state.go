// Package txdriver drives SagaSynth contract transactions through the wallet provider.
//
// Every write goes through the same lifecycle:
//
//	idle -> preparing -> submitted -> confirming -> completed
//	                                             -> completed-without-result
//	(any) -> failed
//
// While preparing, the inputs are validated and the wallet is moved to the expected network.
// The call is then ABI encoded and sent with eth_sendTransaction from the session account.
// Confirming polls for the receipt until it is available or the context is done. The first
// receipt log decoding to the expected event yields the result of the call, e.g. the token id
// of a minted metadata NFT. A mined transaction without such a log is still a success.
//
// Reads are plain eth_call requests, see Reader.
package txdriver

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// State is the lifecycle state of a PendingTransaction.
type State string

const (
	StateIdle                   State = "idle"
	StatePreparing              State = "preparing"
	StateSubmitted              State = "submitted"
	StateConfirming             State = "confirming"
	StateCompleted              State = "completed"
	StateCompletedWithoutResult State = "completed-without-result"
	StateFailed                 State = "failed"
)

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateCompletedWithoutResult, StateFailed:
		return true
	default:
		return false
	}
}

// PendingTransaction is a single submission.
type PendingTransaction struct {
	ID       string
	Function string
	To       common.Address
	Data     []byte
	// Value is the amount of wei sent along, nil for none.
	Value *big.Int

	// Hash is set once the wallet accepted the transaction.
	Hash common.Hash
	// Receipt is set once the transaction is mined.
	Receipt *types.Receipt
	// Result is the value extracted from the receipt logs, if any.
	Result *big.Int

	State State
	// Err is the classified error of a failed transaction.
	Err error
}

// Submitted reports whether the wallet accepted the transaction.
func (p *PendingTransaction) Submitted() bool {
	return p.Hash != (common.Hash{})
}

// Observer is notified of every state change. It receives a copy of the transaction.
type Observer func(tx PendingTransaction)
