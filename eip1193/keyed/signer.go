package keyed

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer holds the key of a keyed wallet.
type Signer interface {
	// Address returns the account controlled by the key.
	Address() (common.Address, error)
	// SignHash signs a 32 byte digest and returns the [R || S || V] signature with V being 0
	// or 1.
	SignHash(hash []byte) ([]byte, error)
}

var (
	_ Signer = (*privateKeySigner)(nil)
	_ Signer = (*KMSSigner)(nil)
)

// SignerFromRawKey returns a signer for a hex encoded private key, with or without the 0x
// prefix.
func SignerFromRawKey(privKey string) (Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return SignerFromKey(key), nil
}

// SignerFromKey returns a signer for an in-memory private key.
func SignerFromKey(key *ecdsa.PrivateKey) Signer {
	return &privateKeySigner{key: key}
}

type privateKeySigner struct {
	key *ecdsa.PrivateKey
}

func (s *privateKeySigner) Address() (common.Address, error) {
	return crypto.PubkeyToAddress(s.key.PublicKey), nil
}

func (s *privateKeySigner) SignHash(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}

// signTx signs tx for chainID with the latest signer of that chain.
func signTx(s Signer, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(chainID)

	sig, err := s.SignHash(signer.Hash(tx).Bytes())
	if err != nil {
		return nil, err
	}

	return tx.WithSignature(signer, sig)
}
