package composer

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/instruction"
)

// ErrOrdering is returned when a plan's instructions are out of dependency order.
var ErrOrdering = errors.New("instruction ordering violated")

// Plan is the ordered instruction set for one mint, with the addresses it touches.
type Plan struct {
	Mode            Mode
	Payer           solana.PublicKey
	Mint            solana.PublicKey
	Owner           solana.PublicKey
	Holder          solana.PublicKey
	Metadata        solana.PublicKey
	MasterEdition   solana.PublicKey
	MintAuthority   solana.PublicKey
	FreezeAuthority solana.PublicKey
	Decimals        uint8

	Instructions []instruction.Instruction
}

// HasMetadata reports whether the plan attaches a metadata account.
func (p *Plan) HasMetadata() bool { return !p.Metadata.IsZero() }

// Signers returns every account any instruction marks as signer, payer first.
func (p *Plan) Signers() []solana.PublicKey {
	out := []solana.PublicKey{p.Payer}
	for _, ix := range p.Instructions {
		for _, s := range ix.Signers() {
			if !contains(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

// Validate checks account flags, decimal precision and dependency order.
func (p *Plan) Validate() error {
	if len(p.Instructions) == 0 {
		return fmt.Errorf("%w: empty plan", ErrInvalidRequest)
	}
	if p.Decimals != 0 {
		return fmt.Errorf("%w: decimals must be 0, got %d", ErrInvalidRequest, p.Decimals)
	}

	first := map[instruction.Kind]int{}
	for i, ix := range p.Instructions {
		if err := instruction.Validate(ix); err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		if _, seen := first[ix.Kind]; !seen {
			first[ix.Kind] = i
		}
	}

	if _, ok := first[instruction.KindMintNFT]; ok {
		if len(p.Instructions) != 1 {
			return fmt.Errorf("%w: mint_nft must be the only instruction", ErrOrdering)
		}
		return nil
	}

	order := []instruction.Kind{
		instruction.KindCreateMintAccount,
		instruction.KindInitializeMint,
		instruction.KindMintTo,
	}
	for _, k := range order {
		if _, ok := first[k]; !ok {
			return fmt.Errorf("%w: missing %s", ErrOrdering, k)
		}
	}
	if _, ok := first[instruction.KindCreateHolderAccount]; !ok {
		return fmt.Errorf("%w: missing %s", ErrOrdering, instruction.KindCreateHolderAccount)
	}

	before := [][2]instruction.Kind{
		{instruction.KindCreateMintAccount, instruction.KindInitializeMint},
		{instruction.KindInitializeMint, instruction.KindMintTo},
		{instruction.KindCreateHolderAccount, instruction.KindMintTo},
		{instruction.KindInitializeMint, instruction.KindCreateMetadata},
		{instruction.KindMintTo, instruction.KindCreateMasterEdition},
		{instruction.KindCreateMetadata, instruction.KindCreateMasterEdition},
		{instruction.KindCreateMetadata, instruction.KindFreezeMetadata},
	}
	for _, pair := range before {
		a, okA := first[pair[0]]
		b, okB := first[pair[1]]
		if okB && (!okA || a > b) {
			return fmt.Errorf("%w: %s must precede %s", ErrOrdering, pair[0], pair[1])
		}
	}
	return nil
}

func contains(keys []solana.PublicKey, k solana.PublicKey) bool {
	for _, existing := range keys {
		if existing.Equals(k) {
			return true
		}
	}
	return false
}
