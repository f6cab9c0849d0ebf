package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// ErrMalformedData is returned when an instruction payload cannot be decoded.
var ErrMalformedData = errors.New("malformed instruction data")

// CreateAccountArgs are the decoded arguments of a system CreateAccount.
type CreateAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    solana.PublicKey
}

// InitializeMintArgs are the decoded arguments of a token InitializeMint.
type InitializeMintArgs struct {
	Decimals        uint8
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
}

// CreateMetadataArgs are the decoded arguments of CreateMetadataAccountV3.
type CreateMetadataArgs struct {
	Data      DataV2
	IsMutable bool
}

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrMalformedData, what, err)
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}

func readString(dec *bin.Decoder) (string, error) {
	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return "", err
	}
	b, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeCreateAccount parses a system CreateAccount payload.
func DecodeCreateAccount(data []byte) (CreateAccountArgs, error) {
	dec := bin.NewBorshDecoder(data)
	var args CreateAccountArgs
	op, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil || op != systemCreateAccount {
		return args, malformed("create account", fmt.Errorf("op %d: %v", op, err))
	}
	if args.Lamports, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return args, malformed("create account lamports", err)
	}
	if args.Space, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return args, malformed("create account space", err)
	}
	if args.Owner, err = readKey(dec); err != nil {
		return args, malformed("create account owner", err)
	}
	return args, nil
}

// DecodeInitializeMint parses a token InitializeMint payload.
func DecodeInitializeMint(data []byte) (InitializeMintArgs, error) {
	var args InitializeMintArgs
	if len(data) < 2 || data[0] != tokenInitializeMint {
		return args, malformed("initialize mint", errors.New("bad header"))
	}
	dec := bin.NewBorshDecoder(data[1:])
	var err error
	if args.Decimals, err = dec.ReadUint8(); err != nil {
		return args, malformed("initialize mint decimals", err)
	}
	if args.MintAuthority, err = readKey(dec); err != nil {
		return args, malformed("initialize mint authority", err)
	}
	tag, err := dec.ReadUint8()
	if err != nil {
		return args, malformed("initialize mint freeze tag", err)
	}
	if tag == 1 {
		k, err := readKey(dec)
		if err != nil {
			return args, malformed("initialize mint freeze authority", err)
		}
		args.FreezeAuthority = &k
	}
	return args, nil
}

// DecodeMintTo parses a token MintTo payload and returns the amount.
func DecodeMintTo(data []byte) (uint64, error) {
	if len(data) != 9 || data[0] != tokenMintTo {
		return 0, malformed("mint to", errors.New("bad header"))
	}
	return binary.LittleEndian.Uint64(data[1:]), nil
}

// DecodeCreateMetadata parses a CreateMetadataAccountV3 payload.
func DecodeCreateMetadata(data []byte) (CreateMetadataArgs, error) {
	var args CreateMetadataArgs
	if len(data) < 1 || data[0] != metadataCreateV3 {
		return args, malformed("create metadata", errors.New("bad header"))
	}
	dec := bin.NewBorshDecoder(data[1:])
	d, err := decodeDataV2(dec)
	if err != nil {
		return args, malformed("create metadata data", err)
	}
	args.Data = d
	if args.IsMutable, err = dec.ReadBool(); err != nil {
		return args, malformed("create metadata is_mutable", err)
	}
	return args, nil
}

func decodeDataV2(dec *bin.Decoder) (DataV2, error) {
	var d DataV2
	var err error
	if d.Name, err = readString(dec); err != nil {
		return d, err
	}
	if d.Symbol, err = readString(dec); err != nil {
		return d, err
	}
	if d.URI, err = readString(dec); err != nil {
		return d, err
	}
	if d.SellerFeeBasisPoints, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return d, err
	}
	tag, err := dec.ReadUint8()
	if err != nil {
		return d, err
	}
	if tag == 1 {
		n, err := dec.ReadUint32(binary.LittleEndian)
		if err != nil {
			return d, err
		}
		if n > MaxCreators {
			return d, fmt.Errorf("%d creators", n)
		}
		for i := uint32(0); i < n; i++ {
			var c Creator
			if c.Address, err = readKey(dec); err != nil {
				return d, err
			}
			if c.Verified, err = dec.ReadBool(); err != nil {
				return d, err
			}
			if c.Share, err = dec.ReadUint8(); err != nil {
				return d, err
			}
			d.Creators = append(d.Creators, c)
		}
	}
	// collection and uses are always None in what this module emits.
	for _, field := range []string{"collection", "uses"} {
		tag, err := dec.ReadUint8()
		if err != nil {
			return d, err
		}
		if tag != 0 {
			return d, fmt.Errorf("unsupported %s", field)
		}
	}
	return d, nil
}

// DecodeMasterEdition parses a CreateMasterEditionV3 payload and returns max supply.
func DecodeMasterEdition(data []byte) (*uint64, error) {
	if len(data) < 2 || data[0] != metadataMasterEditionV3 {
		return nil, malformed("master edition", errors.New("bad header"))
	}
	if data[1] == 0 {
		return nil, nil
	}
	if len(data) != 10 {
		return nil, malformed("master edition max supply", errors.New("short"))
	}
	v := binary.LittleEndian.Uint64(data[2:])
	return &v, nil
}

// IsFreezeMetadata reports whether data is an UpdateMetadataAccountV2 that only sets is_mutable false.
func IsFreezeMetadata(data []byte) bool {
	return len(data) == 6 && data[0] == metadataUpdateV2 &&
		data[1] == 0 && data[2] == 0 && data[3] == 0 && data[4] == 1 && data[5] == 0
}

// DecodeMintNFT parses a mint_nft payload of the custom minting program.
func DecodeMintNFT(data []byte) (DataV2, error) {
	var d DataV2
	if len(data) < 8 || [8]byte(data[:8]) != MintNFTDiscriminator {
		return d, malformed("mint_nft", errors.New("bad discriminator"))
	}
	dec := bin.NewBorshDecoder(data[8:])
	var err error
	if d.Name, err = readString(dec); err != nil {
		return d, malformed("mint_nft name", err)
	}
	if d.Symbol, err = readString(dec); err != nil {
		return d, malformed("mint_nft symbol", err)
	}
	if d.URI, err = readString(dec); err != nil {
		return d, malformed("mint_nft uri", err)
	}
	if d.SellerFeeBasisPoints, err = dec.ReadUint16(binary.LittleEndian); err != nil {
		return d, malformed("mint_nft fee", err)
	}
	return d, nil
}

// Opcode returns the leading selector byte of a token or metadata payload.
func Opcode(data []byte) (uint8, bool) {
	if len(data) == 0 {
		return 0, false
	}
	return data[0], true
}

// Token and metadata opcodes understood by Opcode callers.
const (
	OpInitializeMint      = tokenInitializeMint
	OpMintTo              = tokenMintTo
	OpCreateMetadata      = metadataCreateV3
	OpCreateMasterEdition = metadataMasterEditionV3
	OpUpdateMetadata      = metadataUpdateV2
	OpCreateIdempotent    = associatedCreateIdempt
)
