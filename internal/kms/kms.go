// Package kms wraps the AWS KMS client used to sign with secp256k1 keys held in KMS.
package kms

import (
	"crypto/ecdsa"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
)

// Client is the subset of the KMS API needed to derive an address and sign digests.
type Client interface {
	GetPublicKey(input *kmslib.GetPublicKeyInput) (*kmslib.GetPublicKeyOutput, error)
	Sign(input *kmslib.SignInput) (*kmslib.SignOutput, error)
}

// ClientConfig holds the configuration for initializing a KMS client.
type ClientConfig struct {
	// KeyID is the ID of the KMS key.
	KeyID string
	// KeyRegion is the AWS region of the KMS key.
	KeyRegion string
	// AWSProfile is the name of the AWS profile. When empty the SDK resolves credentials from
	// the environment.
	AWSProfile string
}

func (c ClientConfig) validate() error {
	if c.KeyID == "" {
		return errors.New("KMS key ID is required")
	}

	if c.KeyRegion == "" {
		return errors.New("KMS key region is required")
	}

	return nil
}

// NewClient returns a KMS client for the region of the key.
func NewClient(config ClientConfig) (Client, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid KMS config: %w", err)
	}

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:  aws.Config{Region: aws.String(config.KeyRegion)},
		Profile: config.AWSProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return kmslib.New(sess), nil
}

// SPKI is the ASN.1 SubjectPublicKeyInfo structure returned by KMS GetPublicKey.
type SPKI struct {
	AlgorithmIdentifier pkix.AlgorithmIdentifier
	SubjectPublicKey    asn1.BitString
}

// ECDSASig is the ASN.1 DER signature returned by KMS Sign for ECDSA keys.
type ECDSASig struct {
	R, S *big.Int
}

// ParsePublicKey decodes the DER public key returned by GetPublicKey for a secp256k1 key.
func ParsePublicKey(der []byte) (*ecdsa.PublicKey, error) {
	var spki SPKI
	if _, err := asn1.Unmarshal(der, &spki); err != nil {
		return nil, fmt.Errorf("cannot parse asn1 public key: %w", err)
	}

	pub, err := crypto.UnmarshalPubkey(spki.SubjectPublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal public key bytes: %w", err)
	}

	return pub, nil
}

// ParseSignature decodes the DER signature returned by Sign.
func ParseSignature(der []byte) (ECDSASig, error) {
	var sig ECDSASig
	if _, err := asn1.Unmarshal(der, &sig); err != nil {
		return ECDSASig{}, fmt.Errorf("cannot parse asn1 signature: %w", err)
	}
	n := crypto.S256().Params().N
	for _, v := range []*big.Int{sig.R, sig.S} {
		if v == nil || v.Sign() <= 0 || v.Cmp(n) >= 0 {
			return ECDSASig{}, errors.New("signature values are out of range")
		}
	}

	return sig, nil
}
