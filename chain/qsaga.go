package chain

// QSagaChainID is the chain id of the QSaga network.
const QSagaChainID uint64 = 2752562277992000

// QSaga returns the descriptor of the QSaga network, the network the SagaSynth contract lives on.
func QSaga() ChainDescriptor {
	return ChainDescriptor{
		ID:   QSagaChainID,
		Name: "QSaga",
		NativeCurrency: NativeCurrency{
			Name:     "Saga",
			Symbol:   "SQA",
			Decimals: 18,
		},
		RPCURLs:      []string{"https://asga-2752562277992000-1.jsonrpc.sagarpc.io"},
		ExplorerURLs: []string{"https://asga-2752562277992000-1.sagaexplorer.io"},
	}
}
