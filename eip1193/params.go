package eip1193

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sagasynth/sagasynth/chain"
)

// SwitchChainParameter is the single parameter of wallet_switchEthereumChain.
type SwitchChainParameter struct {
	ChainID string `json:"chainId"`
}

// AddChainParameter is the single parameter of wallet_addEthereumChain (EIP-3085).
type AddChainParameter struct {
	ChainID           string               `json:"chainId"`
	ChainName         string               `json:"chainName"`
	NativeCurrency    chain.NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string             `json:"rpcUrls"`
	BlockExplorerURLs []string             `json:"blockExplorerUrls,omitempty"`
}

// AddChainParameterFor returns the wallet_addEthereumChain parameter describing desc.
func AddChainParameterFor(desc chain.ChainDescriptor) AddChainParameter {
	return AddChainParameter{
		ChainID:           desc.HexID(),
		ChainName:         desc.Name,
		NativeCurrency:    desc.NativeCurrency,
		RPCURLs:           desc.RPCURLs,
		BlockExplorerURLs: desc.ExplorerURLs,
	}
}

// Descriptor converts the parameter to a chain descriptor and validates it.
func (p AddChainParameter) Descriptor() (chain.ChainDescriptor, error) {
	id, err := chain.ParseChainID(p.ChainID)
	if err != nil {
		return chain.ChainDescriptor{}, err
	}

	desc := chain.ChainDescriptor{
		ID:             id,
		Name:           p.ChainName,
		NativeCurrency: p.NativeCurrency,
		RPCURLs:        p.RPCURLs,
		ExplorerURLs:   p.BlockExplorerURLs,
	}

	return desc, desc.Validate()
}

// TransactionArgs is the transaction object of eth_sendTransaction and eth_call.
type TransactionArgs struct {
	From                 *common.Address `json:"from,omitempty"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value,omitempty"`
	Nonce                *hexutil.Uint64 `json:"nonce,omitempty"`
	Data                 *hexutil.Bytes  `json:"data,omitempty"`
}
