package session

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"

	"github.com/sagasynth/sagasynth/eip1193"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000A11CE")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000B0B")
)

// fakeProvider answers wallet requests from its fields and counts every call. Notifications are
// pushed with notify.
type fakeProvider struct {
	mu       sync.Mutex
	calls    map[string]int
	accounts []common.Address
	chainID  string
	balances map[common.Address]string
	errs     map[string]error

	// gate, when set, blocks eth_requestAccounts until it is closed
	gate chan struct{}

	feed event.Feed
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls:    make(map[string]int),
		accounts: []common.Address{alice},
		chainID:  "0x9c770d8cd4640",
		balances: map[common.Address]string{
			alice: "0xde0b6b3a7640000",  // 1 ether
			bob:   "0x29a2241af62c0000", // 3 ether
		},
		errs: make(map[string]error),
	}
}

func (p *fakeProvider) Request(ctx context.Context, method string, params any, result any) error {
	p.mu.Lock()
	p.calls[method]++
	gate := p.gate
	err := p.errs[method]
	p.mu.Unlock()

	if method == eip1193.MethodRequestAccounts && gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch method {
	case eip1193.MethodRequestAccounts, eip1193.MethodAccounts:
		return eip1193.SetResult(p.accounts, result)
	case eip1193.MethodChainID:
		return eip1193.SetResult(p.chainID, result)
	case eip1193.MethodGetBalance:
		args := eip1193.PositionalArgs(params)
		address, _ := args[0].(common.Address)

		return eip1193.SetResult(p.balances[address], result)
	default:
		return eip1193.NewError(eip1193.CodeUnsupportedMethod, "unsupported method %s", method)
	}
}

func (p *fakeProvider) Subscribe(ch chan<- eip1193.Notification) event.Subscription {
	return p.feed.Subscribe(ch)
}

func (p *fakeProvider) notify(n eip1193.Notification) {
	p.feed.Send(n)
}

func (p *fakeProvider) callCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.calls[method]
}

func (p *fakeProvider) set(fn func(p *fakeProvider)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(p)
}
