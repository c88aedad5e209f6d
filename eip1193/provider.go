// Package eip1193 defines the wallet provider contract used across SagaSynth: a single
// request method taking a JSON-RPC method name and parameters, plus a subscription to the
// accountsChanged, chainChanged and disconnect notifications.
//
// Two implementations live in the sub packages: rpcprovider forwards requests to a remote
// wallet over JSON-RPC, and keyed is an in-process wallet holding its own signing key.
package eip1193

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
)

// Provider is an EIP-1193 wallet provider.
type Provider interface {
	// Request performs the JSON-RPC method with the given params and decodes the response into
	// result. params is nil, a slice of positional arguments or a single argument. result may be
	// nil when the response is not needed.
	Request(ctx context.Context, method string, params any, result any) error
	// Subscribe registers ch to receive provider notifications until the subscription is
	// unsubscribed.
	Subscribe(ch chan<- Notification) event.Subscription
}

// Wallet methods used by SagaSynth.
const (
	MethodRequestAccounts    = "eth_requestAccounts"
	MethodAccounts           = "eth_accounts"
	MethodChainID            = "eth_chainId"
	MethodNetVersion         = "net_version"
	MethodGetBalance         = "eth_getBalance"
	MethodBlockNumber        = "eth_blockNumber"
	MethodGetCode            = "eth_getCode"
	MethodSendTransaction    = "eth_sendTransaction"
	MethodTransactionReceipt = "eth_getTransactionReceipt"
	MethodCall               = "eth_call"
	MethodPersonalSign       = "personal_sign"
	MethodSwitchChain        = "wallet_switchEthereumChain"
	MethodAddChain           = "wallet_addEthereumChain"
)

// NotificationKind names a provider event.
type NotificationKind string

const (
	AccountsChanged NotificationKind = "accountsChanged"
	ChainChanged    NotificationKind = "chainChanged"
	Disconnect      NotificationKind = "disconnect"
)

// Notification is a provider event. Accounts is set for AccountsChanged, ChainID (hex) for
// ChainChanged and Err for Disconnect.
type Notification struct {
	Kind     NotificationKind
	Accounts []common.Address
	ChainID  string
	Err      *RPCError
}

func (n Notification) String() string {
	switch n.Kind {
	case AccountsChanged:
		return fmt.Sprintf("%s %v", n.Kind, n.Accounts)
	case ChainChanged:
		return fmt.Sprintf("%s %s", n.Kind, n.ChainID)
	case Disconnect:
		if n.Err != nil {
			return fmt.Sprintf("%s: %v", n.Kind, n.Err)
		}
	}

	return string(n.Kind)
}

// PositionalArgs returns params as JSON-RPC positional arguments.
func PositionalArgs(params any) []any {
	if params == nil {
		return nil
	}

	if args, ok := params.([]any); ok {
		return args
	}

	v := reflect.ValueOf(params)
	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() != reflect.Uint8 {
		args := make([]any, v.Len())
		for i := range args {
			args[i] = v.Index(i).Interface()
		}

		return args
	}

	return []any{params}
}

// DecodeParams converts params to their wire form, one raw JSON message per positional
// argument.
func DecodeParams(params any) ([]json.RawMessage, error) {
	args := PositionalArgs(params)
	raw := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		b, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode param %d: %w", i, err)
		}
		raw = append(raw, b)
	}

	return raw, nil
}

// SetResult copies value into result through its JSON encoding, the way a response crosses
// the wire. A nil result discards the value.
func SetResult(value any, result any) error {
	if result == nil {
		return nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	if err := json.Unmarshal(b, result); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}

	return nil
}
