package txdriver

import (
	"bytes"
	_ "embed"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/sagasynth/sagasynth/walleterr"
)

// Contract function names. SafeTransferFromWithData is the overload taking a data argument.
const (
	FnMintMetadata             = "mintMetadataNFT"
	FnCreateBounty             = "createBounty"
	FnAddContributor           = "addContributor"
	FnDistributeBounty         = "distributeBounty"
	FnDonateToCreator          = "donateToCreator"
	FnApprove                  = "approve"
	FnSetApprovalForAll        = "setApprovalForAll"
	FnTransferFrom             = "transferFrom"
	FnSafeTransferFrom         = "safeTransferFrom"
	FnSafeTransferFromWithData = "safeTransferFrom0"
	FnTransferOwnership        = "transferOwnership"
	FnRenounceOwnership        = "renounceOwnership"
)

// Events carrying the result of a call.
const (
	EventMetadataMinted = "MetadataMinted"
	EventBountyCreated  = "BountyCreated"
)

//go:embed abi/sagasynth.json
var contractABIJSON []byte

var loadABI = sync.OnceValues(func() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(contractABIJSON))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI: %w", err)
	}

	return parsed, nil
})

// ContractABI returns the parsed interface of the SagaSynth contract.
func ContractABI() (abi.ABI, error) {
	return loadABI()
}

// FormatBytes32 normalizes a 32 byte hash: the 0x prefix is added when missing and the hex digits
// are right padded with zeros to 64. Empty, longer or non-hex input is rejected.
func FormatBytes32(hash string) (string, error) {
	if hash == "" {
		return "", validationError("format", "Content hash is required")
	}

	digits := strings.TrimPrefix(hash, "0x")
	if len(digits) > 64 {
		return "", validationError("format", fmt.Sprintf("Content hash %q is longer than 32 bytes", hash))
	}

	digits += strings.Repeat("0", 64-len(digits))
	if _, err := hex.DecodeString(digits); err != nil {
		return "", validationError("format", fmt.Sprintf("Content hash %q is not hex", hash))
	}

	return "0x" + digits, nil
}

// bytes32 decodes the output of FormatBytes32.
func bytes32(formatted string) [32]byte {
	var out [32]byte
	copy(out[:], common.FromHex(formatted))

	return out
}

func validationError(op, msg string) *walleterr.Error {
	return walleterr.New(walleterr.ValidationError, op, msg)
}

// parseAddress validates a hex address argument.
func parseAddress(op, field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, validationError(op, field+" is required")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, validationError(op, fmt.Sprintf("Invalid Ethereum address for %s: %q", field, s))
	}

	return common.HexToAddress(s), nil
}

// checkUint256 validates an integer argument of a uint256 parameter.
func checkUint256(op, field string, v *big.Int) error {
	if v == nil {
		return validationError(op, field+" is required")
	}
	if v.Sign() < 0 {
		return validationError(op, field+" must not be negative")
	}
	if _, overflow := uint256.FromBig(v); overflow {
		return validationError(op, field+" does not fit in 256 bits")
	}

	return nil
}

// checkAmount validates a wei amount sent along with a call.
func checkAmount(op string, v *big.Int) error {
	if err := checkUint256(op, "Amount", v); err != nil {
		return err
	}
	if v.Sign() == 0 {
		return validationError(op, "Amount must be greater than zero")
	}

	return nil
}
