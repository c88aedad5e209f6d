package eip1193

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Provider error codes from EIP-1193, EIP-3085/3326 and JSON-RPC 2.0.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeInvalidParams     = -32602
	CodeMethodNotFound    = -32601
	CodeInternal          = -32603
	CodeExecutionReverted = 3
)

var (
	_ rpc.Error     = (*RPCError)(nil)
	_ rpc.DataError = (*RPCError)(nil)
)

// RPCError is an error object returned by a provider. It satisfies the error interfaces of
// go-ethereum's rpc package so it keeps its code when served over JSON-RPC.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

// NewError returns an RPCError with the given code and message.
func NewError(code int, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *RPCError) Error() string {
	return e.Message
}

func (e *RPCError) ErrorCode() int {
	return e.Code
}

func (e *RPCError) ErrorData() any {
	return e.Data
}

// AsRPCError converts err to an RPCError. JSON-RPC errors keep their code and data; any other
// error becomes an internal error.
func AsRPCError(err error) *RPCError {
	if err == nil {
		return nil
	}

	var perr *RPCError
	if errors.As(err, &perr) {
		return perr
	}

	var rerr rpc.Error
	if errors.As(err, &rerr) {
		out := &RPCError{Code: rerr.ErrorCode(), Message: rerr.Error()}

		var derr rpc.DataError
		if errors.As(err, &derr) {
			out.Data = derr.ErrorData()
		}

		return out
	}

	return &RPCError{Code: CodeInternal, Message: err.Error()}
}

// CodeOf returns the JSON-RPC error code carried by err.
func CodeOf(err error) (int, bool) {
	var rerr rpc.Error
	if errors.As(err, &rerr) {
		return rerr.ErrorCode(), true
	}

	return 0, false
}

// DataOf returns the data field carried by err, if any.
func DataOf(err error) any {
	var derr rpc.DataError
	if errors.As(err, &derr) {
		return derr.ErrorData()
	}

	return nil
}
