package instruction

import (
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account sizes fixed by the SPL Token program.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

const (
	systemCreateAccount    uint32 = 0
	tokenInitializeMint    uint8  = 0
	tokenMintTo            uint8  = 7
	associatedCreateIdempt uint8  = 1
)

// CreateMintAccount allocates the mint account, funded rent-exempt and owned by the token program.
type CreateMintAccount struct {
	Payer    solana.PublicKey
	Mint     solana.PublicKey
	Lamports uint64
}

func (CreateMintAccount) Kind() Kind { return KindCreateMintAccount }

func (c CreateMintAccount) Build() (Instruction, error) {
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint32(systemCreateAccount, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(c.Lamports, binary.LittleEndian); err != nil {
			return err
		}
		if err := enc.WriteUint64(MintAccountSize, binary.LittleEndian); err != nil {
			return err
		}
		return enc.WriteBytes(solana.TokenProgramID[:], false)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode create account: %w", err)
	}
	return Instruction{
		Kind:    KindCreateMintAccount,
		Program: solana.SystemProgramID,
		Metas: solana.AccountMetaSlice{
			meta(c.Payer, true, true),
			meta(c.Mint, true, true),
		},
		Payload: data,
	}, nil
}

// InitializeMint sets decimals and authorities on a freshly allocated mint account.
type InitializeMint struct {
	Mint            solana.PublicKey
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

func (InitializeMint) Kind() Kind { return KindInitializeMint }

func (i InitializeMint) Build() (Instruction, error) {
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(tokenInitializeMint); err != nil {
			return err
		}
		if err := enc.WriteUint8(i.Decimals); err != nil {
			return err
		}
		if err := enc.WriteBytes(i.MintAuthority[:], false); err != nil {
			return err
		}
		if i.FreezeAuthority == nil {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return enc.WriteBytes(i.FreezeAuthority[:], false)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode initialize mint: %w", err)
	}
	return Instruction{
		Kind:    KindInitializeMint,
		Program: solana.TokenProgramID,
		Metas: solana.AccountMetaSlice{
			meta(i.Mint, true, false),
			meta(solana.SysVarRentPubkey, false, false),
		},
		Payload: data,
	}, nil
}

// CreateHolderAccount creates the owner's associated token account for the mint.
// The idempotent variant succeeds when the account already exists.
type CreateHolderAccount struct {
	Payer  solana.PublicKey
	Holder solana.PublicKey
	Owner  solana.PublicKey
	Mint   solana.PublicKey
}

func (CreateHolderAccount) Kind() Kind { return KindCreateHolderAccount }

func (c CreateHolderAccount) Build() (Instruction, error) {
	return Instruction{
		Kind:    KindCreateHolderAccount,
		Program: solana.SPLAssociatedTokenAccountProgramID,
		Metas: solana.AccountMetaSlice{
			meta(c.Payer, true, true),
			meta(c.Holder, true, false),
			meta(c.Owner, false, false),
			meta(c.Mint, false, false),
			meta(solana.SystemProgramID, false, false),
			meta(solana.TokenProgramID, false, false),
		},
		Payload: []byte{associatedCreateIdempt},
	}, nil
}

// MintTo issues Amount units of the mint into the holder account.
type MintTo struct {
	Mint      solana.PublicKey
	Holder    solana.PublicKey
	Authority solana.PublicKey
	Amount    uint64
}

func (MintTo) Kind() Kind { return KindMintTo }

func (m MintTo) Build() (Instruction, error) {
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(tokenMintTo); err != nil {
			return err
		}
		return enc.WriteUint64(m.Amount, binary.LittleEndian)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode mint to: %w", err)
	}
	return Instruction{
		Kind:    KindMintTo,
		Program: solana.TokenProgramID,
		Metas: solana.AccountMetaSlice{
			meta(m.Mint, true, false),
			meta(m.Holder, true, false),
			meta(m.Authority, false, true),
		},
		Payload: data,
	}, nil
}
