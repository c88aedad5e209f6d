package txdriver

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sagasynth/sagasynth/eip1193"
)

// Metadata is the on-chain record of a minted dataset.
type Metadata struct {
	SourceURL     string
	ContentHash   common.Hash
	ContentLink   string
	EmbedVectorID string
	CreatedAt     *big.Int
	Tags          []string
	Creator       common.Address
}

// Bounty is the on-chain record of a bounty.
type Bounty struct {
	Creator      common.Address
	Amount       *big.Int
	Contributors []common.Address
	Distributed  bool
}

// Reader reads contract state with eth_call. It needs no connected account.
type Reader struct {
	backend  providerBackend
	contract common.Address
}

// NewReader returns a Reader of the contract at address.
func NewReader(provider eip1193.Provider, contract common.Address) (*Reader, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if contract == (common.Address{}) {
		return nil, errors.New("contract address is required")
	}

	return &Reader{backend: providerBackend{provider: provider}, contract: contract}, nil
}

// call runs a view function and returns its decoded outputs.
func (r *Reader) call(ctx context.Context, fn string, args ...any) ([]any, error) {
	contractABI, err := loadABI()
	if err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(fn, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", fn, err)
	}

	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", fn, err)
	}

	values, err := contractABI.Unpack(fn, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", fn, err)
	}

	return values, nil
}

// single runs a view function with one output of type T.
func single[T any](ctx context.Context, r *Reader, fn string, args ...any) (T, error) {
	var zero T

	values, err := r.call(ctx, fn, args...)
	if err != nil {
		return zero, err
	}
	if len(values) != 1 {
		return zero, fmt.Errorf("%s returned %d values, expected 1", fn, len(values))
	}

	v, ok := values[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T, expected %T", fn, values[0], zero)
	}

	return v, nil
}

// GetMetadata returns the metadata of a token.
func (r *Reader) GetMetadata(ctx context.Context, tokenID *big.Int) (Metadata, error) {
	if err := checkUint256("getMetadata", "Token ID", tokenID); err != nil {
		return Metadata{}, err
	}

	values, err := r.call(ctx, "getMetadata", tokenID)
	if err != nil {
		return Metadata{}, err
	}
	if len(values) != 7 {
		return Metadata{}, fmt.Errorf("getMetadata returned %d values, expected 7", len(values))
	}

	sourceURL, ok1 := values[0].(string)
	contentHash, ok2 := values[1].([32]byte)
	contentLink, ok3 := values[2].(string)
	embedVectorID, ok4 := values[3].(string)
	createdAt, ok5 := values[4].(*big.Int)
	tags, ok6 := values[5].([]string)
	creator, ok7 := values[6].(common.Address)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 || !ok6 || !ok7 {
		return Metadata{}, errors.New("getMetadata returned unexpected types")
	}

	return Metadata{
		SourceURL:     sourceURL,
		ContentHash:   contentHash,
		ContentLink:   contentLink,
		EmbedVectorID: embedVectorID,
		CreatedAt:     createdAt,
		Tags:          tags,
		Creator:       creator,
	}, nil
}

// GetBounty returns a bounty.
func (r *Reader) GetBounty(ctx context.Context, bountyID *big.Int) (Bounty, error) {
	if err := checkUint256("getBounty", "Bounty ID", bountyID); err != nil {
		return Bounty{}, err
	}

	values, err := r.call(ctx, "getBounty", bountyID)
	if err != nil {
		return Bounty{}, err
	}
	if len(values) != 4 {
		return Bounty{}, fmt.Errorf("getBounty returned %d values, expected 4", len(values))
	}

	creator, ok1 := values[0].(common.Address)
	amount, ok2 := values[1].(*big.Int)
	contributors, ok3 := values[2].([]common.Address)
	distributed, ok4 := values[3].(bool)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return Bounty{}, errors.New("getBounty returned unexpected types")
	}

	return Bounty{
		Creator:      creator,
		Amount:       amount,
		Contributors: contributors,
		Distributed:  distributed,
	}, nil
}

// GetMetadataByCreator returns the token ids minted by creator.
func (r *Reader) GetMetadataByCreator(ctx context.Context, creator string) ([]*big.Int, error) {
	addr, err := parseAddress("getMetadataByCreator", "Creator address", creator)
	if err != nil {
		return nil, err
	}

	return single[[]*big.Int](ctx, r, "getMetadataByCreator", addr)
}

// NextBountyID returns the id the next bounty will get.
func (r *Reader) NextBountyID(ctx context.Context) (*big.Int, error) {
	return single[*big.Int](ctx, r, "nextBountyId")
}

// Admin returns the contract admin.
func (r *Reader) Admin(ctx context.Context) (common.Address, error) {
	return single[common.Address](ctx, r, "admin")
}

// Owner returns the contract owner.
func (r *Reader) Owner(ctx context.Context) (common.Address, error) {
	return single[common.Address](ctx, r, "owner")
}

// BalanceOf returns the number of tokens owned by owner.
func (r *Reader) BalanceOf(ctx context.Context, owner string) (*big.Int, error) {
	addr, err := parseAddress("balanceOf", "Owner address", owner)
	if err != nil {
		return nil, err
	}

	return single[*big.Int](ctx, r, "balanceOf", addr)
}

// OwnerOf returns the owner of a token.
func (r *Reader) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if err := checkUint256("ownerOf", "Token ID", tokenID); err != nil {
		return common.Address{}, err
	}

	return single[common.Address](ctx, r, "ownerOf", tokenID)
}

// TokenURI returns the metadata URI of a token.
func (r *Reader) TokenURI(ctx context.Context, tokenID *big.Int) (string, error) {
	if err := checkUint256("tokenURI", "Token ID", tokenID); err != nil {
		return "", err
	}

	return single[string](ctx, r, "tokenURI", tokenID)
}

// GetApproved returns the account approved to transfer a token.
func (r *Reader) GetApproved(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if err := checkUint256("getApproved", "Token ID", tokenID); err != nil {
		return common.Address{}, err
	}

	return single[common.Address](ctx, r, "getApproved", tokenID)
}

// IsApprovedForAll reports whether operator may transfer every token of owner.
func (r *Reader) IsApprovedForAll(ctx context.Context, owner, operator string) (bool, error) {
	ownerAddr, err := parseAddress("isApprovedForAll", "Owner address", owner)
	if err != nil {
		return false, err
	}

	operatorAddr, err := parseAddress("isApprovedForAll", "Operator address", operator)
	if err != nil {
		return false, err
	}

	return single[bool](ctx, r, "isApprovedForAll", ownerAddr, operatorAddr)
}

// Name returns the token collection name.
func (r *Reader) Name(ctx context.Context) (string, error) {
	return single[string](ctx, r, "name")
}

// Symbol returns the token collection symbol.
func (r *Reader) Symbol(ctx context.Context) (string, error) {
	return single[string](ctx, r, "symbol")
}

// SupportsInterface reports whether the contract implements an ERC-165 interface id such as
// "0x80ac58cd".
func (r *Reader) SupportsInterface(ctx context.Context, interfaceID string) (bool, error) {
	b, err := hexutil.Decode(interfaceID)
	if err != nil || len(b) != 4 {
		return false, validationError("supportsInterface", fmt.Sprintf("Invalid interface id %q", interfaceID))
	}

	var id [4]byte
	copy(id[:], b)

	return single[bool](ctx, r, "supportsInterface", id)
}
