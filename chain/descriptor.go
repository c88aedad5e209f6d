package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// UnknownNetworkName is the network label used while no chain id is known.
const UnknownNetworkName = "Unknown Network"

// NativeCurrency describes the native token of a network.
type NativeCurrency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// ChainDescriptor is the immutable description of a single EVM network.
type ChainDescriptor struct {
	ID             uint64         `yaml:"chain_id" json:"chainId"`
	Name           string         `yaml:"name" json:"chainName"`
	NativeCurrency NativeCurrency `yaml:"native_currency" json:"nativeCurrency"`
	RPCURLs        []string       `yaml:"rpc_urls" json:"rpcUrls"`
	ExplorerURLs   []string       `yaml:"block_explorer_urls" json:"blockExplorerUrls"`
}

// HexID returns the chain id as a 0x prefixed lowercase hex quantity, e.g. "0x1".
func (d ChainDescriptor) HexID() string {
	return FormatChainID(d.ID)
}

// BigID returns the chain id as a big.Int, as needed by go-ethereum signers.
func (d ChainDescriptor) BigID() *big.Int {
	return new(big.Int).SetUint64(d.ID)
}

// String returns "<name> (<id>)".
func (d ChainDescriptor) String() string {
	return fmt.Sprintf("%s (%d)", d.Name, d.ID)
}

// TxURL returns the link to a transaction on the first block explorer, or an empty string if
// the network has no explorer.
func (d ChainDescriptor) TxURL(txHash string) string {
	return d.explorerLink("tx", txHash)
}

// AddressURL returns the link to an account on the first block explorer, or an empty string if
// the network has no explorer.
func (d ChainDescriptor) AddressURL(address string) string {
	return d.explorerLink("address", address)
}

func (d ChainDescriptor) explorerLink(kind, ref string) string {
	if len(d.ExplorerURLs) == 0 {
		return ""
	}

	return strings.TrimRight(d.ExplorerURLs[0], "/") + "/" + kind + "/" + ref
}

// Validate ensures all required fields are set.
func (d ChainDescriptor) Validate() error {
	if d.ID == 0 {
		return errors.New("chain id is required")
	}

	if d.Name == "" {
		return errors.New("chain name is required")
	}

	if d.NativeCurrency.Name == "" || d.NativeCurrency.Symbol == "" {
		return errors.New("native currency name and symbol are required")
	}

	if len(d.RPCURLs) == 0 || d.RPCURLs[0] == "" {
		return errors.New("at least one RPC URL is required")
	}

	return nil
}

// FormatChainID formats a chain id as a 0x prefixed lowercase hex quantity without leading zeros.
func FormatChainID(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}

// ParseChainID parses a chain id given either as a decimal string or as a 0x prefixed hex
// quantity.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty chain id")
	}

	var (
		id  uint64
		err error
	)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		id, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		id, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid chain id %q: %w", s, err)
	}

	return id, nil
}
