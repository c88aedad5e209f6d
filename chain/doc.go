/*
Package chain describes the EVM networks sagasynth knows about and answers identity questions
about them.

# Overview

A [ChainDescriptor] is the immutable description of one network: its numeric chain id, its
human name, its native currency and the ordered RPC and block explorer URLs used to reach it.
The descriptor for the QSaga network, which the SagaSynth contract is deployed on, is built in
and returned by [QSaga].

A [Registry] holds the expected descriptor plus any other networks loaded from a manifest or
added at runtime:

	reg := chain.NewRegistry(chain.QSaga(),
		chain.WithNetworks(networks),
		chain.WithWellKnownNames(),
	)

	desc, ok := reg.Lookup("0x9c770d8cd4640") // decimal or hex chain id
	label := reg.Label(1)                      // "ethereum-mainnet" or "Chain ID: 1"

Lookups never fail hard: an unknown chain id is labelled "Chain ID: {id}".

# Chain ids

Wallets exchange chain ids as 0x prefixed lowercase hex quantities. [ChainDescriptor.HexID]
produces that form and [ParseChainID] accepts either form:

	id, _ := chain.ParseChainID("0x9c770d8cd4640") // 2752562277992000
	hex := chain.QSaga().HexID()                  // "0x9c770d8cd4640"

# Manifests

Additional networks are loaded from YAML manifests with [LoadManifest]:

	networks:
	  - chain_id: 11155111
	    name: Sepolia
	    native_currency:
	      name: Sepolia Ether
	      symbol: ETH
	      decimals: 18
	    rpc_urls:
	      - https://rpc.sepolia.org
	    block_explorer_urls:
	      - https://sepolia.etherscan.io

Multiple manifest files are merged by chain id, with later files taking precedence.
*/
package chain
