package evm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// rpcReply is the answer of a fake RPC method: either a result or a JSON-RPC error.
type rpcReply struct {
	Result any
	Code   int
	Msg    string
	Data   any
}

// fakeRPCServer is a JSON-RPC server answering from a method table. It records how many times
// each method was called.
type fakeRPCServer struct {
	*httptest.Server

	mu      sync.Mutex
	methods map[string]func() rpcReply
	calls   map[string]int
	down    bool
}

// newFakeRPCServer returns a fake RPC server serving the given methods. Unknown methods answer
// with a method-not-found error.
//
// When the test is done, the server is closed automatically.
func newFakeRPCServer(t *testing.T, methods map[string]func() rpcReply) *fakeRPCServer {
	t.Helper()

	f := &fakeRPCServer{
		methods: methods,
		calls:   make(map[string]int),
	}

	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))

	t.Cleanup(func() {
		f.Close()
	})

	return f
}

// setDown makes the server answer every request with HTTP 503.
func (f *fakeRPCServer) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.down = down
}

func (f *fakeRPCServer) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[method]
}

func (f *fakeRPCServer) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	f.calls[req.Method]++
	down := f.down
	handler, ok := f.methods[req.Method]
	f.mu.Unlock()

	if down {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case !ok:
		resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
	default:
		reply := handler()
		if reply.Code != 0 {
			e := map[string]any{"code": reply.Code, "message": reply.Msg}
			if reply.Data != nil {
				e["data"] = reply.Data
			}
			resp["error"] = e
		} else {
			resp["result"] = reply.Result
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// result is a shorthand for a method answering a fixed result.
func result(v any) func() rpcReply {
	return func() rpcReply { return rpcReply{Result: v} }
}
