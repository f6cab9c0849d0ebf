package pda

import (
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// Seed tags used by the token metadata program and the mint program.
var (
	MetadataSeed      = []byte("metadata")
	EditionSeed       = []byte("edition")
	MintAuthoritySeed = []byte("mint-authority")
)

// MetadataAddress derives the metadata account for a mint.
// Seeds: ["metadata", metadata_program_id, mint]
func MetadataAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{
			MetadataSeed,
			solana.TokenMetadataProgramID.Bytes(),
			mint.Bytes(),
		},
		solana.TokenMetadataProgramID,
	)
}

// MasterEditionAddress derives the master edition account for a mint.
// Seeds: ["metadata", metadata_program_id, mint, "edition"]
func MasterEditionAddress(mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{
			MetadataSeed,
			solana.TokenMetadataProgramID.Bytes(),
			mint.Bytes(),
			EditionSeed,
		},
		solana.TokenMetadataProgramID,
	)
}

// MintAuthorityAddress derives the mint program's authority account.
// Seeds: ["mint-authority"]
func MintAuthorityAddress(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress([][]byte{MintAuthoritySeed}, programID)
}

// AssociatedTokenAddress derives the canonical holder account for (owner, mint).
// Seeds: [owner, token_program_id, mint]
func AssociatedTokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return FindProgramAddress(
		[][]byte{
			owner.Bytes(),
			solana.TokenProgramID.Bytes(),
			mint.Bytes(),
		},
		solana.SPLAssociatedTokenAccountProgramID,
	)
}

// SeedsFromStrings converts CLI-style seeds into byte seeds.
// A seed prefixed with "base58:" is decoded as an address; anything else is used verbatim.
func SeedsFromStrings(in []string) ([][]byte, error) {
	seeds := make([][]byte, 0, len(in))
	for _, s := range in {
		if len(s) > 7 && s[:7] == "base58:" {
			b, err := base58.Decode(s[7:])
			if err != nil {
				return nil, err
			}
			seeds = append(seeds, b)
			continue
		}
		seeds = append(seeds, []byte(s))
	}
	return seeds, nil
}
