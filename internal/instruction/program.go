package instruction

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// MintNFTDiscriminator is the Anchor selector of the minting program's mint_nft handler.
var MintNFTDiscriminator = discriminator("mint_nft")

func discriminator(name string) [8]byte {
	sum := sha256.Sum256([]byte("global:" + name))
	var out [8]byte
	copy(out[:], sum[:8])
	return out
}

// MintNFT delegates the whole mint to the custom minting program in one instruction.
// The program signs as MintAuthority (a derived address) and freezes the metadata itself.
type MintNFT struct {
	Program       solana.PublicKey
	Payer         solana.PublicKey
	Mint          solana.PublicKey
	Metadata      solana.PublicKey
	MintAuthority solana.PublicKey
	Holder        solana.PublicKey
	Data          DataV2
}

func (MintNFT) Kind() Kind { return KindMintNFT }

func (m MintNFT) Build() (Instruction, error) {
	if m.Program.IsZero() {
		return Instruction{}, fmt.Errorf("%w: program id is unset", ErrInvalidAccountFlags)
	}
	if err := m.Data.Validate(); err != nil {
		return Instruction{}, err
	}
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteBytes(MintNFTDiscriminator[:], false); err != nil {
			return err
		}
		for _, s := range []string{m.Data.Name, m.Data.Symbol, m.Data.URI} {
			if err := writeString(enc, s); err != nil {
				return err
			}
		}
		return enc.WriteUint16(m.Data.SellerFeeBasisPoints, binary.LittleEndian)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode mint_nft: %w", err)
	}
	return Instruction{
		Kind:    KindMintNFT,
		Program: m.Program,
		Metas: solana.AccountMetaSlice{
			meta(m.Payer, true, true),
			meta(m.Mint, true, true),
			meta(m.Metadata, true, false),
			meta(m.MintAuthority, false, false),
			meta(m.Holder, true, false),
			meta(solana.SystemProgramID, false, false),
			meta(solana.TokenProgramID, false, false),
			meta(solana.SPLAssociatedTokenAccountProgramID, false, false),
			meta(solana.SysVarRentPubkey, false, false),
			meta(solana.TokenMetadataProgramID, false, false),
		},
		Payload: data,
	}, nil
}
