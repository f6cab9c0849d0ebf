// Package instruction defines the typed instructions a mint is composed of.
//
// Each kind is a struct whose fields name every account the target program reads, so an
// instruction cannot be built with a missing account. Build compiles a kind into an
// Instruction, which carries the ordered account metas and encoded payload and can be
// handed to solana.NewTransaction directly.
package instruction

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Kind identifies an instruction variant.
type Kind string

// Instruction kinds, in the order a direct mint emits them.
const (
	KindCreateMintAccount   Kind = "create_mint_account"
	KindInitializeMint      Kind = "initialize_mint"
	KindCreateHolderAccount Kind = "create_holder_account"
	KindMintTo              Kind = "mint_to"
	KindCreateMetadata      Kind = "create_metadata"
	KindCreateMasterEdition Kind = "create_master_edition"
	KindFreezeMetadata      Kind = "freeze_metadata"
	KindMintNFT             Kind = "mint_nft"
)

// Variant is implemented by every typed instruction.
type Variant interface {
	Kind() Kind
	Build() (Instruction, error)
}

// Instruction is a compiled instruction ready for transaction assembly.
type Instruction struct {
	Kind    Kind
	Program solana.PublicKey
	Metas   solana.AccountMetaSlice
	Payload []byte
}

var _ solana.Instruction = Instruction{}

// ProgramID implements solana.Instruction.
func (ix Instruction) ProgramID() solana.PublicKey { return ix.Program }

// Accounts implements solana.Instruction.
func (ix Instruction) Accounts() []*solana.AccountMeta { return ix.Metas }

// Data implements solana.Instruction.
func (ix Instruction) Data() ([]byte, error) { return ix.Payload, nil }

// Signers returns the accounts this instruction requires signatures from, in account order.
func (ix Instruction) Signers() []solana.PublicKey {
	var out []solana.PublicKey
	for _, m := range ix.Metas {
		if m.IsSigner && !containsKey(out, m.PublicKey) {
			out = append(out, m.PublicKey)
		}
	}
	return out
}

// Clone returns a deep copy, so callers can adjust metas without touching the original.
func (ix Instruction) Clone() Instruction {
	metas := make(solana.AccountMetaSlice, len(ix.Metas))
	for i, m := range ix.Metas {
		c := *m
		metas[i] = &c
	}
	payload := make([]byte, len(ix.Payload))
	copy(payload, ix.Payload)
	return Instruction{Kind: ix.Kind, Program: ix.Program, Metas: metas, Payload: payload}
}

func meta(key solana.PublicKey, writable, signer bool) *solana.AccountMeta {
	return &solana.AccountMeta{PublicKey: key, IsWritable: writable, IsSigner: signer}
}

func containsKey(keys []solana.PublicKey, k solana.PublicKey) bool {
	for _, existing := range keys {
		if existing.Equals(k) {
			return true
		}
	}
	return false
}

// encode runs fn against a borsh encoder and returns the bytes written.
func encode(fn func(enc *bin.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	if err := fn(bin.NewBorshEncoder(&buf)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
