package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Limits enforced by the token metadata program.
const (
	MaxNameLength           = 32
	MaxSymbolLength         = 10
	MaxURILength            = 200
	MaxSellerFeeBasisPoints = 10000
	MaxCreators             = 5
)

const (
	metadataCreateV3        uint8 = 33
	metadataMasterEditionV3 uint8 = 17
	metadataUpdateV2        uint8 = 15
)

// ErrInvalidMetadata is returned when descriptive metadata breaks a program limit.
var ErrInvalidMetadata = errors.New("invalid metadata")

// Creator is one entry of the metadata creators list.
type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// DataV2 is the descriptive metadata attached to a mint.
type DataV2 struct {
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
}

// Validate checks d against the metadata program limits.
func (d DataV2) Validate() error {
	if !utf8.ValidString(d.Name) || !utf8.ValidString(d.Symbol) || !utf8.ValidString(d.URI) {
		return fmt.Errorf("%w: fields must be valid utf-8", ErrInvalidMetadata)
	}
	if len(d.Name) > MaxNameLength {
		return fmt.Errorf("%w: name is %d bytes, max %d", ErrInvalidMetadata, len(d.Name), MaxNameLength)
	}
	if len(d.Symbol) > MaxSymbolLength {
		return fmt.Errorf("%w: symbol is %d bytes, max %d", ErrInvalidMetadata, len(d.Symbol), MaxSymbolLength)
	}
	if len(d.URI) > MaxURILength {
		return fmt.Errorf("%w: uri is %d bytes, max %d", ErrInvalidMetadata, len(d.URI), MaxURILength)
	}
	if d.SellerFeeBasisPoints > MaxSellerFeeBasisPoints {
		return fmt.Errorf("%w: seller fee %d exceeds %d basis points", ErrInvalidMetadata, d.SellerFeeBasisPoints, MaxSellerFeeBasisPoints)
	}
	if len(d.Creators) > MaxCreators {
		return fmt.Errorf("%w: %d creators, max %d", ErrInvalidMetadata, len(d.Creators), MaxCreators)
	}
	if len(d.Creators) > 0 {
		total := 0
		for _, c := range d.Creators {
			total += int(c.Share)
		}
		if total != 100 {
			return fmt.Errorf("%w: creator shares sum to %d, want 100", ErrInvalidMetadata, total)
		}
	}
	return nil
}

func writeString(enc *bin.Encoder, s string) error {
	if err := enc.WriteUint32(uint32(len(s)), binary.LittleEndian); err != nil {
		return err
	}
	return enc.WriteBytes([]byte(s), false)
}

func (d DataV2) encode(enc *bin.Encoder) error {
	for _, s := range []string{d.Name, d.Symbol, d.URI} {
		if err := writeString(enc, s); err != nil {
			return err
		}
	}
	if err := enc.WriteUint16(d.SellerFeeBasisPoints, binary.LittleEndian); err != nil {
		return err
	}
	if len(d.Creators) == 0 {
		if err := enc.WriteUint8(0); err != nil {
			return err
		}
	} else {
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		if err := enc.WriteUint32(uint32(len(d.Creators)), binary.LittleEndian); err != nil {
			return err
		}
		for _, c := range d.Creators {
			if err := enc.WriteBytes(c.Address[:], false); err != nil {
				return err
			}
			if err := enc.WriteBool(c.Verified); err != nil {
				return err
			}
			if err := enc.WriteUint8(c.Share); err != nil {
				return err
			}
		}
	}
	// collection: None, uses: None
	if err := enc.WriteUint8(0); err != nil {
		return err
	}
	return enc.WriteUint8(0)
}

// CreateMetadata attaches a metadata account to the mint (CreateMetadataAccountV3).
type CreateMetadata struct {
	Metadata        solana.PublicKey
	Mint            solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	UpdateAuthority solana.PublicKey
	Data            DataV2
	IsMutable       bool
}

func (CreateMetadata) Kind() Kind { return KindCreateMetadata }

func (c CreateMetadata) Build() (Instruction, error) {
	if err := c.Data.Validate(); err != nil {
		return Instruction{}, err
	}
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(metadataCreateV3); err != nil {
			return err
		}
		if err := c.Data.encode(enc); err != nil {
			return err
		}
		if err := enc.WriteBool(c.IsMutable); err != nil {
			return err
		}
		// collection_details: None
		return enc.WriteUint8(0)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode create metadata: %w", err)
	}
	return Instruction{
		Kind:    KindCreateMetadata,
		Program: solana.TokenMetadataProgramID,
		Metas: solana.AccountMetaSlice{
			meta(c.Metadata, true, false),
			meta(c.Mint, false, false),
			meta(c.MintAuthority, false, true),
			meta(c.Payer, true, true),
			meta(c.UpdateAuthority, false, true),
			meta(solana.SystemProgramID, false, false),
			meta(solana.SysVarRentPubkey, false, false),
		},
		Payload: data,
	}, nil
}

// CreateMasterEdition makes the mint a master edition (CreateMasterEditionV3).
// A nil MaxSupply allows unlimited prints.
type CreateMasterEdition struct {
	Edition         solana.PublicKey
	Mint            solana.PublicKey
	UpdateAuthority solana.PublicKey
	MintAuthority   solana.PublicKey
	Payer           solana.PublicKey
	Metadata        solana.PublicKey
	MaxSupply       *uint64
}

func (CreateMasterEdition) Kind() Kind { return KindCreateMasterEdition }

func (c CreateMasterEdition) Build() (Instruction, error) {
	data, err := encode(func(enc *bin.Encoder) error {
		if err := enc.WriteUint8(metadataMasterEditionV3); err != nil {
			return err
		}
		if c.MaxSupply == nil {
			return enc.WriteUint8(0)
		}
		if err := enc.WriteUint8(1); err != nil {
			return err
		}
		return enc.WriteUint64(*c.MaxSupply, binary.LittleEndian)
	})
	if err != nil {
		return Instruction{}, fmt.Errorf("encode master edition: %w", err)
	}
	return Instruction{
		Kind:    KindCreateMasterEdition,
		Program: solana.TokenMetadataProgramID,
		Metas: solana.AccountMetaSlice{
			meta(c.Edition, true, false),
			meta(c.Mint, true, false),
			meta(c.UpdateAuthority, false, true),
			meta(c.MintAuthority, false, true),
			meta(c.Payer, true, true),
			meta(c.Metadata, true, false),
			meta(solana.TokenProgramID, false, false),
			meta(solana.SystemProgramID, false, false),
			meta(solana.SysVarRentPubkey, false, false),
		},
		Payload: data,
	}, nil
}

// FreezeMetadata marks the metadata account immutable (UpdateMetadataAccountV2).
type FreezeMetadata struct {
	Metadata        solana.PublicKey
	UpdateAuthority solana.PublicKey
}

func (FreezeMetadata) Kind() Kind { return KindFreezeMetadata }

func (f FreezeMetadata) Build() (Instruction, error) {
	// data: None, update_authority: None, primary_sale_happened: None, is_mutable: Some(false)
	payload := []byte{metadataUpdateV2, 0, 0, 0, 1, 0}
	return Instruction{
		Kind:    KindFreezeMetadata,
		Program: solana.TokenMetadataProgramID,
		Metas: solana.AccountMetaSlice{
			meta(f.Metadata, true, false),
			meta(f.UpdateAuthority, false, true),
		},
		Payload: payload,
	}, nil
}
