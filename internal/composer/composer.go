// Package composer turns a mint request into the ordered instruction set that creates one
// non-fungible token.
package composer

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/instruction"
	"solana-nft-minter/internal/pda"
)

// Mode selects which programs build the mint.
type Mode string

const (
	// ModeDirect composes token, associated token and metadata program instructions
	// client-side, with the payer as mint and freeze authority.
	ModeDirect Mode = "direct"
	// ModeProgram emits a single mint_nft instruction to the custom minting program, whose
	// derived address is the mint authority.
	ModeProgram Mode = "program"
)

// ErrInvalidRequest is returned for requests that can never compose.
var ErrInvalidRequest = errors.New("invalid mint request")

// Metadata is the descriptive record attached to the mint.
type Metadata struct {
	Name                 string `yaml:"name" json:"name"`
	Symbol               string `yaml:"symbol" json:"symbol"`
	URI                  string `yaml:"uri" json:"uri"`
	SellerFeeBasisPoints uint16 `yaml:"seller_fee_basis_points" json:"seller_fee_basis_points"`
}

// Request describes one mint.
type Request struct {
	Payer solana.PublicKey
	// Mint must be a freshly generated address.
	Mint solana.PublicKey
	// Owner of the holder account. Zero means the payer.
	Owner         solana.PublicKey
	Metadata      *Metadata
	MasterEdition bool
	// MaxSupply bounds prints of the master edition. Nil means unlimited.
	MaxSupply *uint64
	Immutable bool
}

// Composer builds plans for one mode.
type Composer struct {
	mode    Mode
	program solana.PublicKey
}

// New returns a composer. programID is required in ModeProgram and ignored otherwise.
func New(mode Mode, programID solana.PublicKey) (*Composer, error) {
	switch mode {
	case ModeDirect:
		return &Composer{mode: mode}, nil
	case ModeProgram:
		if programID.IsZero() {
			return nil, fmt.Errorf("%w: program mode needs a program id", ErrInvalidRequest)
		}
		return &Composer{mode: mode, program: programID}, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, mode)
	}
}

// Mode returns the composer's mode.
func (c *Composer) Mode() Mode { return c.mode }

// Compose builds the plan for req. rentLamports funds the mint account in direct mode.
func (c *Composer) Compose(req Request, rentLamports uint64) (*Plan, error) {
	if err := c.check(&req); err != nil {
		return nil, err
	}

	plan := &Plan{
		Mode:     c.mode,
		Payer:    req.Payer,
		Mint:     req.Mint,
		Owner:    req.Owner,
		Decimals: 0,
	}

	holder, _, err := pda.AssociatedTokenAddress(req.Owner, req.Mint)
	if err != nil {
		return nil, fmt.Errorf("derive holder account: %w", err)
	}
	plan.Holder = holder

	if req.Metadata != nil {
		if plan.Metadata, _, err = pda.MetadataAddress(req.Mint); err != nil {
			return nil, fmt.Errorf("derive metadata account: %w", err)
		}
	}
	if req.MasterEdition {
		if plan.MasterEdition, _, err = pda.MasterEditionAddress(req.Mint); err != nil {
			return nil, fmt.Errorf("derive master edition account: %w", err)
		}
	}

	var variants []instruction.Variant
	switch c.mode {
	case ModeDirect:
		plan.MintAuthority = req.Payer
		plan.FreezeAuthority = req.Payer
		variants = c.direct(req, plan, rentLamports)
	case ModeProgram:
		if plan.MintAuthority, _, err = pda.MintAuthorityAddress(c.program); err != nil {
			return nil, fmt.Errorf("derive mint authority: %w", err)
		}
		plan.FreezeAuthority = plan.MintAuthority
		variants = []instruction.Variant{instruction.MintNFT{
			Program:       c.program,
			Payer:         req.Payer,
			Mint:          req.Mint,
			Metadata:      plan.Metadata,
			MintAuthority: plan.MintAuthority,
			Holder:        holder,
			Data:          dataV2(req.Metadata, req.Payer),
		}}
	}

	for _, v := range variants {
		ix, err := v.Build()
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", v.Kind(), err)
		}
		plan.Instructions = append(plan.Instructions, ix)
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *Composer) check(req *Request) error {
	if req.Payer.IsZero() {
		return fmt.Errorf("%w: payer is unset", ErrInvalidRequest)
	}
	if req.Mint.IsZero() {
		return fmt.Errorf("%w: mint is unset", ErrInvalidRequest)
	}
	if req.Owner.IsZero() {
		req.Owner = req.Payer
	}
	if req.Mint.Equals(req.Payer) || req.Mint.Equals(req.Owner) {
		return fmt.Errorf("%w: mint address must be freshly generated", ErrInvalidRequest)
	}
	if (req.MasterEdition || req.Immutable) && req.Metadata == nil {
		return fmt.Errorf("%w: master edition and immutability need metadata", ErrInvalidRequest)
	}
	if req.MaxSupply != nil && !req.MasterEdition {
		return fmt.Errorf("%w: max supply needs a master edition", ErrInvalidRequest)
	}
	if c.mode == ModeProgram {
		if req.Metadata == nil {
			return fmt.Errorf("%w: program mode always attaches metadata", ErrInvalidRequest)
		}
		if !req.Owner.Equals(req.Payer) {
			return fmt.Errorf("%w: program mode mints to the payer only", ErrInvalidRequest)
		}
		if req.MasterEdition {
			return fmt.Errorf("%w: program mode does not create master editions", ErrInvalidRequest)
		}
	}
	return nil
}

func (c *Composer) direct(req Request, plan *Plan, rentLamports uint64) []instruction.Variant {
	payer := req.Payer
	variants := []instruction.Variant{
		instruction.CreateMintAccount{Payer: payer, Mint: req.Mint, Lamports: rentLamports},
		instruction.InitializeMint{Mint: req.Mint, Decimals: plan.Decimals, MintAuthority: payer, FreezeAuthority: &payer},
		instruction.CreateHolderAccount{Payer: payer, Holder: plan.Holder, Owner: req.Owner, Mint: req.Mint},
		instruction.MintTo{Mint: req.Mint, Holder: plan.Holder, Authority: payer, Amount: 1},
	}
	if req.Metadata == nil {
		return variants
	}
	variants = append(variants, instruction.CreateMetadata{
		Metadata:        plan.Metadata,
		Mint:            req.Mint,
		MintAuthority:   payer,
		Payer:           payer,
		UpdateAuthority: payer,
		Data:            dataV2(req.Metadata, payer),
		IsMutable:       true,
	})
	if req.MasterEdition {
		variants = append(variants, instruction.CreateMasterEdition{
			Edition:         plan.MasterEdition,
			Mint:            req.Mint,
			UpdateAuthority: payer,
			MintAuthority:   payer,
			Payer:           payer,
			Metadata:        plan.Metadata,
			MaxSupply:       req.MaxSupply,
		})
	}
	if req.Immutable {
		variants = append(variants, instruction.FreezeMetadata{Metadata: plan.Metadata, UpdateAuthority: payer})
	}
	return variants
}

// dataV2 carries a single verified creator, the update authority, with the full share.
func dataV2(md *Metadata, creator solana.PublicKey) instruction.DataV2 {
	return instruction.DataV2{
		Name:                 md.Name,
		Symbol:               md.Symbol,
		URI:                  md.URI,
		SellerFeeBasisPoints: md.SellerFeeBasisPoints,
		Creators:             []instruction.Creator{{Address: creator, Verified: true, Share: 100}},
	}
}
