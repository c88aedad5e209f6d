package keyed

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/sagasynth/sagasynth/internal/kms"
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// KMSSigner signs with a secp256k1 key held in AWS KMS. Only digests are sent to KMS.
type KMSSigner struct {
	client   kms.Client
	kmsKeyID string

	mu sync.Mutex
	// address is derived from the KMS public key on first use.
	address *common.Address
}

var _ Signer = (*KMSSigner)(nil)

// NewKMSSigner creates a KMSSigner for a key. An empty awsProfile leaves the credentials to the
// environment of the process.
func NewKMSSigner(keyID, keyRegion, awsProfile string) (*KMSSigner, error) {
	client, err := kms.NewClient(kms.ClientConfig{
		KeyID:      keyID,
		KeyRegion:  keyRegion,
		AWSProfile: awsProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KMS client: %w", err)
	}

	return NewKMSSignerWithClient(client, keyID), nil
}

// NewKMSSignerWithClient creates a KMSSigner over an existing KMS client.
func NewKMSSignerWithClient(client kms.Client, keyID string) *KMSSigner {
	return &KMSSigner{client: client, kmsKeyID: keyID}
}

// Address returns the address of the KMS key.
func (s *KMSSigner) Address() (common.Address, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.address != nil {
		return *s.address, nil
	}

	out, err := s.client.GetPublicKey(&kmslib.GetPublicKeyInput{KeyId: aws.String(s.kmsKeyID)})
	if err != nil {
		return common.Address{}, fmt.Errorf("cannot get public key from KMS for key %s: %w", s.kmsKeyID, err)
	}

	pub, err := kms.ParsePublicKey(out.PublicKey)
	if err != nil {
		return common.Address{}, fmt.Errorf("key %s: %w", s.kmsKeyID, err)
	}

	addr := crypto.PubkeyToAddress(*pub)
	s.address = &addr

	return addr, nil
}

// SignHash signs the digest with KMS and returns the signature in the [R || S || V] form, with
// s in the lower half of the curve order.
func (s *KMSSigner) SignHash(hash []byte) ([]byte, error) {
	addr, err := s.Address()
	if err != nil {
		return nil, err
	}

	out, err := s.client.Sign(&kmslib.SignInput{
		KeyId:            aws.String(s.kmsKeyID),
		SigningAlgorithm: aws.String(kmslib.SigningAlgorithmSpecEcdsaSha256),
		MessageType:      aws.String(kmslib.MessageTypeDigest),
		Message:          hash,
	})
	if err != nil {
		return nil, fmt.Errorf("KMS sign failed for key %s: %w", s.kmsKeyID, err)
	}

	der, err := kms.ParseSignature(out.Signature)
	if err != nil {
		return nil, err
	}

	return recoverableSignature(hash, der, addr)
}

// recoverableSignature encodes r and s and finds the recovery id under which the signature
// recovers signer.
func recoverableSignature(hash []byte, der kms.ECDSASig, signer common.Address) ([]byte, error) {
	sv := new(big.Int).Set(der.S)
	if sv.Cmp(secp256k1HalfN) > 0 {
		sv.Sub(secp256k1N, sv)
	}

	sig := make([]byte, crypto.SignatureLength)
	der.R.FillBytes(sig[:32])
	sv.FillBytes(sig[32:64])

	for _, v := range []byte{0, 1} {
		sig[crypto.RecoveryIDOffset] = v

		pub, err := crypto.SigToPub(hash, sig)
		if err == nil && crypto.PubkeyToAddress(*pub) == signer {
			return sig, nil
		}
	}

	return nil, errors.New("KMS signature does not recover the key address")
}
