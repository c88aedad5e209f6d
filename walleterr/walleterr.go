// Package walleterr classifies wallet, network and transaction failures into a small set of
// user facing kinds.
//
// Every failure that reaches the session or the transaction driver is passed through Classify,
// so callers can branch with errors.Is on a Kind:
//
//	if errors.Is(err, walleterr.UserRejected) {
//		// the user cancelled in the wallet UI, offer to retry
//	}
package walleterr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sagasynth/sagasynth/eip1193"
)

// Kind is the category of a wallet error. A Kind is itself an error so it can be used as an
// errors.Is target.
type Kind int

const (
	Unknown Kind = iota
	ProviderUnavailable
	NoAccounts
	NetworkSwitchRejected
	ValidationError
	UserRejected
	ProviderError
)

var kindNames = map[Kind]string{
	Unknown:               "unknown",
	ProviderUnavailable:   "provider unavailable",
	NoAccounts:            "no accounts",
	NetworkSwitchRejected: "network switch rejected",
	ValidationError:       "validation error",
	UserRejected:          "user rejected",
	ProviderError:         "provider error",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) Error() string {
	return k.String()
}

// User facing messages.
const (
	MsgProviderUnavailable = "No wallet provider found. Please install a wallet to continue"
	MsgNoAccounts          = "No accounts found"
	MsgWrongNetwork        = "Please connect to the QSaga network to continue"
	MsgUserRejected        = "Transaction was rejected by the user"
	MsgChainError          = "Chain error: Please ensure you are connected to the QSaga network"
	MsgInternalRPC         = "Internal JSON-RPC error. Please try again or check your wallet configuration."
	MsgInsufficientFunds   = "Insufficient funds in your wallet"
	MsgUnknown             = "Unknown error occurred"
)

// Error is a classified wallet error.
type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "connect" or "mintMetadataNFT".
	Op string
	// Message is the user facing message.
	Message string
	// Err is the underlying error, if any.
	Err error
}

// New returns an error of the given kind with a user facing message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Message: msg}
}

// Wrap returns an error of the given kind wrapping err. The message of err is used as the user
// facing message.
func Wrap(kind Kind, op string, err error) *Error {
	e := &Error{Kind: kind, Op: op, Err: err}
	if err != nil {
		e.Message = err.Error()
	}

	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}

	if e.Op == "" {
		return msg
	}

	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the Kind of e.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)

	return ok && k == e.Kind
}

// KindOf returns the kind of a classified error, or Unknown.
func KindOf(err error) Kind {
	var werr *Error
	if errors.As(err, &werr) {
		return werr.Kind
	}

	return Unknown
}

// Classify maps any error raised by a provider or the workflow onto a classified Error. The
// checks run in order and the first match wins:
//
//   - errors already classified are returned unchanged
//   - code 4001 or a "user rejected"/"user denied" message is UserRejected
//   - an "insufficient funds" message is a ProviderError
//   - a message mentioning the chain is NetworkSwitchRejected
//   - code -32603 is a ProviderError with a generic message
//   - a nested original error message in the error data is a ProviderError with that message
//   - any other JSON-RPC error is a ProviderError with its raw message
//   - anything else is Unknown
func Classify(op string, err error) *Error {
	if err == nil {
		return nil
	}

	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	code, isRPC := eip1193.CodeOf(err)

	switch {
	case code == eip1193.CodeUserRejected,
		strings.Contains(lower, "user rejected"),
		strings.Contains(lower, "user denied"):
		return &Error{Kind: UserRejected, Op: op, Message: MsgUserRejected, Err: err}
	case strings.Contains(lower, "insufficient funds"):
		return &Error{Kind: ProviderError, Op: op, Message: MsgInsufficientFunds, Err: err}
	case strings.Contains(lower, "chain"):
		return &Error{Kind: NetworkSwitchRejected, Op: op, Message: MsgChainError, Err: err}
	case isRPC && code == eip1193.CodeInternal:
		return &Error{Kind: ProviderError, Op: op, Message: MsgInternalRPC, Err: err}
	case isRPC:
		if nested := originalErrorMessage(eip1193.DataOf(err)); nested != "" {
			return &Error{Kind: ProviderError, Op: op, Message: nested, Err: err}
		}

		return &Error{Kind: ProviderError, Op: op, Message: msg, Err: err}
	case msg == "":
		return &Error{Kind: Unknown, Op: op, Message: MsgUnknown, Err: err}
	default:
		return &Error{Kind: Unknown, Op: op, Message: msg, Err: err}
	}
}

// originalErrorMessage digs data.originalError.message out of the data of a JSON-RPC error, the
// place some wallets put the error of the node they forwarded to.
func originalErrorMessage(data any) string {
	m, ok := data.(map[string]any)
	if !ok {
		return ""
	}

	orig, ok := m["originalError"].(map[string]any)
	if !ok {
		return ""
	}

	msg, _ := orig["message"].(string)

	return msg
}
