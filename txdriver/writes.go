package txdriver

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/sagasynth/sagasynth/chain"
	"github.com/sagasynth/sagasynth/eip1193"
	"github.com/sagasynth/sagasynth/walleterr"
)

// MintRequest is the metadata of a dataset NFT.
type MintRequest struct {
	SourceURL   string
	ContentHash string
	ContentLink string
	// EmbedVectorID is optional.
	EmbedVectorID string
	// CreatedAt is a unix timestamp. Defaults to now.
	CreatedAt int64
	// Tags are optional. Blank tags are dropped.
	Tags     []string
	TokenURI string
}

// MintMetadata mints a metadata NFT. The result is the token id.
func (d *Driver) MintMetadata(ctx context.Context, req MintRequest) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnMintMetadata,
		prepare: func(c *call) error {
			const op = FnMintMetadata

			if req.SourceURL == "" {
				return validationError(op, "Source URL is required")
			}
			if req.ContentHash == "" {
				return validationError(op, "Content hash is required")
			}
			if req.ContentLink == "" {
				return validationError(op, "Content link is required")
			}

			hash, err := FormatBytes32(req.ContentHash)
			if err != nil {
				return err
			}

			createdAt := req.CreatedAt
			if createdAt == 0 {
				createdAt = time.Now().Unix()
			}
			if createdAt < 0 {
				return validationError(op, "Creation time must not be negative")
			}

			tags := make([]string, 0, len(req.Tags))
			for _, tag := range req.Tags {
				if strings.TrimSpace(tag) != "" {
					tags = append(tags, tag)
				}
			}

			c.args = []any{
				req.SourceURL,
				bytes32(hash),
				req.ContentLink,
				req.EmbedVectorID,
				big.NewInt(createdAt),
				tags,
				req.TokenURI,
			}

			return nil
		},
		resultEvent: EventMetadataMinted,
		resultField: "tokenId",
	})
}

// CreateBounty stakes amount wei in a new bounty. The result is the bounty id.
func (d *Driver) CreateBounty(ctx context.Context, amount *big.Int) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnCreateBounty,
		prepare: func(c *call) error {
			if err := checkAmount(FnCreateBounty, amount); err != nil {
				return err
			}
			c.value = amount

			return nil
		},
		resultEvent: EventBountyCreated,
		resultField: "id",
	})
}

// AddContributor adds a contributor to a bounty.
func (d *Driver) AddContributor(ctx context.Context, bountyID *big.Int, contributor string) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnAddContributor,
		prepare: func(c *call) error {
			if err := checkUint256(FnAddContributor, "Bounty ID", bountyID); err != nil {
				return err
			}

			addr, err := parseAddress(FnAddContributor, "Contributor address", contributor)
			if err != nil {
				return err
			}

			c.args = []any{bountyID, addr}

			return nil
		},
	})
}

// DistributeBounty pays out a bounty to its contributors.
func (d *Driver) DistributeBounty(ctx context.Context, bountyID *big.Int) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnDistributeBounty,
		prepare: func(c *call) error {
			if err := checkUint256(FnDistributeBounty, "Bounty ID", bountyID); err != nil {
				return err
			}
			c.args = []any{bountyID}

			return nil
		},
	})
}

// DonateToCreator sends amount wei to the creator of a metadata NFT.
func (d *Driver) DonateToCreator(ctx context.Context, metadataID, amount *big.Int) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnDonateToCreator,
		prepare: func(c *call) error {
			if err := checkUint256(FnDonateToCreator, "Metadata ID", metadataID); err != nil {
				return err
			}
			if err := checkAmount(FnDonateToCreator, amount); err != nil {
				return err
			}

			c.args = []any{metadataID}
			c.value = amount

			return nil
		},
	})
}

// Approve allows to to transfer a token.
func (d *Driver) Approve(ctx context.Context, to string, tokenID *big.Int) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnApprove,
		prepare: func(c *call) error {
			addr, err := parseAddress(FnApprove, "Approved address", to)
			if err != nil {
				return err
			}
			if err = checkUint256(FnApprove, "Token ID", tokenID); err != nil {
				return err
			}

			c.args = []any{addr, tokenID}

			return nil
		},
	})
}

// SetApprovalForAll allows or disallows operator to transfer every token of the account.
func (d *Driver) SetApprovalForAll(ctx context.Context, operator string, approved bool) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnSetApprovalForAll,
		prepare: func(c *call) error {
			addr, err := parseAddress(FnSetApprovalForAll, "Operator address", operator)
			if err != nil {
				return err
			}
			c.args = []any{addr, approved}

			return nil
		},
	})
}

// TransferFrom transfers a token.
func (d *Driver) TransferFrom(ctx context.Context, from, to string, tokenID *big.Int) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn:      FnTransferFrom,
		prepare: transferArgs(FnTransferFrom, from, to, tokenID, nil),
	})
}

// SafeTransferFrom transfers a token to an account or a contract accepting it. data is passed on
// to the receiving contract. Without data the overload without the data argument is called.
func (d *Driver) SafeTransferFrom(ctx context.Context, from, to string, tokenID *big.Int, data []byte) (*PendingTransaction, error) {
	fn := FnSafeTransferFrom
	if len(data) > 0 {
		fn = FnSafeTransferFromWithData
	}

	return d.submit(ctx, call{
		fn:      fn,
		prepare: transferArgs(fn, from, to, tokenID, data),
	})
}

func transferArgs(op, from, to string, tokenID *big.Int, data []byte) func(c *call) error {
	return func(c *call) error {
		fromAddr, err := parseAddress(op, "From address", from)
		if err != nil {
			return err
		}

		toAddr, err := parseAddress(op, "To address", to)
		if err != nil {
			return err
		}

		if err = checkUint256(op, "Token ID", tokenID); err != nil {
			return err
		}

		c.args = []any{fromAddr, toAddr, tokenID}
		if len(data) > 0 {
			c.args = append(c.args, data)
		}

		return nil
	}
}

// TransferOwnership hands the contract over to newOwner.
func (d *Driver) TransferOwnership(ctx context.Context, newOwner string) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		fn: FnTransferOwnership,
		prepare: func(c *call) error {
			addr, err := parseAddress(FnTransferOwnership, "New owner address", newOwner)
			if err != nil {
				return err
			}
			c.args = []any{addr}

			return nil
		},
	})
}

// RenounceOwnership leaves the contract without owner.
func (d *Driver) RenounceOwnership(ctx context.Context) (*PendingTransaction, error) {
	return d.submit(ctx, call{fn: FnRenounceOwnership})
}

// SendValue transfers amount, an ether decimal string, to a recipient.
func (d *Driver) SendValue(ctx context.Context, recipient, amount string) (*PendingTransaction, error) {
	return d.submit(ctx, call{
		prepare: func(c *call) error {
			const op = "sendValue"

			if !common.IsHexAddress(recipient) {
				return validationError(op, "Invalid Ethereum address")
			}

			wei, err := chain.ParseEther(amount)
			if err != nil {
				return walleterr.Wrap(walleterr.ValidationError, op, err)
			}
			if err = checkAmount(op, wei); err != nil {
				return err
			}

			to := common.HexToAddress(recipient)
			c.to = &to
			c.value = wei

			return nil
		},
	})
}

// SignMessage signs a text message with the session account (personal_sign) and returns the
// hex encoded signature.
func (d *Driver) SignMessage(ctx context.Context, message string) (string, error) {
	const op = "signMessage"

	account, err := d.session.Signer()
	if err != nil {
		return "", walleterr.Classify(op, err)
	}

	if message == "" {
		return "", validationError(op, "Message is required")
	}

	var signature hexutil.Bytes
	if err = account.Provider.Request(ctx, eip1193.MethodPersonalSign, []any{hexutil.Encode([]byte(message)), account.Address}, &signature); err != nil {
		werr := walleterr.Classify(op, err)
		d.lggr.Warnw("Failed to sign message", "kind", werr.Kind.String(), "error", err)

		return "", werr
	}

	return signature.String(), nil
}
