package environment

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/eip1193/keyed"
	"github.com/sagasynth/sagasynth/pkg/logger"
	"github.com/sagasynth/sagasynth/session"
	"github.com/sagasynth/sagasynth/txdriver"
)

// LoadConfig contains the options that affect how an environment is loaded.
type LoadConfig struct {
	// lggr is used by every component. Defaults to a logger built from the log section of the
	// configuration.
	lggr logger.Logger

	// provider replaces the wallet provider selected by the configuration. providerName is
	// recorded in the session marker.
	provider     eip1193.Provider
	providerName string

	// marker replaces the file marker at the configured path.
	marker session.MarkerStore

	// approver confirms the requests of a keyed wallet. Defaults to keyed.AutoApprove.
	approver keyed.Approver

	// dialer creates the chain clients of a keyed wallet. Defaults to a MultiClient.
	dialer keyed.Dialer

	// observer is notified of every transaction state change.
	observer txdriver.Observer
}

// LoadEnvironmentOption is a function that modifies LoadConfig.
type LoadEnvironmentOption func(*LoadConfig)

// Configure applies opts to the LoadConfig.
func (c *LoadConfig) Configure(opts []LoadEnvironmentOption) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithLogger sets the logger of the environment.
func WithLogger(lggr logger.Logger) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.lggr = lggr
	}
}

// WithProvider uses p instead of dialing the configured wallet. The environment does not close
// a provider passed this way.
func WithProvider(p eip1193.Provider, name string) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.provider = p
		c.providerName = name
	}
}

// WithMarker stores the session marker in m.
func WithMarker(m session.MarkerStore) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.marker = m
	}
}

// WithApprover sets the approver of a keyed wallet.
func WithApprover(a keyed.Approver) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.approver = a
	}
}

// WithDialer sets the chain client dialer of a keyed wallet.
func WithDialer(d keyed.Dialer) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.dialer = d
	}
}

// WithObserver sets the transaction observer of the driver.
func WithObserver(o txdriver.Observer) LoadEnvironmentOption {
	return func(c *LoadConfig) {
		c.observer = o
	}
}

// PromptApprover asks on out before every keyed wallet request and approves it when the answer
// read from in is "y" or "yes".
func PromptApprover(in io.Reader, out io.Writer) keyed.Approver {
	reader := bufio.NewReader(in)

	return func(ctx context.Context, method string, params []json.RawMessage) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Fprintf(out, "Approve %s", method)
		if len(params) > 0 {
			if b, err := json.Marshal(params); err == nil {
				fmt.Fprintf(out, " %s", b)
			}
		}
		fmt.Fprint(out, "? [y/N]: ")

		answer, err := reader.ReadString('\n')
		if err != nil && answer == "" {
			return fmt.Errorf("no answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return nil
		default:
			return fmt.Errorf("%s was not approved", method)
		}
	}
}
