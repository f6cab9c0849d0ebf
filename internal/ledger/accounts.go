package ledger

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// MintAccount is the decoded state of an SPL Token mint.
type MintAccount struct {
	MintAuthority   string
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority string
}

// TokenAccount is the decoded state of an SPL Token holder account.
type TokenAccount struct {
	Mint   string
	Owner  string
	Amount uint64
}

// MetadataAccount is the decoded prefix of a token metadata account.
type MetadataAccount struct {
	UpdateAuthority      string
	Mint                 string
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
}

// ParseMintAccount parses SPL Token Mint account data.
// SPL Token Mint layout (82 bytes):
// - mintAuthority: COption<Pubkey> (36 bytes: 4 + 32)
// - supply: u64 (8 bytes)
// - decimals: u8 (1 byte)
// - isInitialized: bool (1 byte)
// - freezeAuthority: COption<Pubkey> (36 bytes: 4 + 32)
func ParseMintAccount(data []byte) (*MintAccount, error) {
	if len(data) < 82 {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}
	return &MintAccount{
		MintAuthority:   cOptionKey(data[0:36]),
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] == 1,
		FreezeAuthority: cOptionKey(data[46:82]),
	}, nil
}

// ParseTokenAccount parses the leading fields of an SPL Token account:
// mint (32), owner (32), amount u64.
func ParseTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) < 72 {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}
	return &TokenAccount{
		Mint:   base58.Encode(data[0:32]),
		Owner:  base58.Encode(data[32:64]),
		Amount: binary.LittleEndian.Uint64(data[64:72]),
	}, nil
}

// metadataKeyV1 is the account discriminator of a metadata account.
const metadataKeyV1 = 4

// ParseMetadataAccount parses a token metadata account.
// Layout:
// - key: u8 (1 byte, 4 for MetadataV1)
// - updateAuthority: Pubkey (32 bytes)
// - mint: Pubkey (32 bytes)
// - name, symbol, uri: String (4 + length bytes, zero padded)
// - sellerFeeBasisPoints: u16
// ...and more fields
func ParseMetadataAccount(data []byte) (*MetadataAccount, error) {
	if len(data) < 65 {
		return nil, fmt.Errorf("metadata data too short: %d", len(data))
	}
	if data[0] != metadataKeyV1 {
		return nil, fmt.Errorf("unexpected metadata key %d", data[0])
	}
	md := &MetadataAccount{
		UpdateAuthority: base58.Encode(data[1:33]),
		Mint:            base58.Encode(data[33:65]),
	}

	offset := 65
	fields := []*string{&md.Name, &md.Symbol, &md.URI}
	for _, field := range fields {
		if offset+4 > len(data) {
			return nil, fmt.Errorf("metadata truncated at %d", offset)
		}
		n := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
		if n > 256 || offset+n > len(data) {
			return nil, fmt.Errorf("metadata string length %d at %d", n, offset)
		}
		*field = strings.TrimRight(string(data[offset:offset+n]), "\x00")
		offset += n
	}
	if offset+2 > len(data) {
		return nil, fmt.Errorf("metadata truncated at %d", offset)
	}
	md.SellerFeeBasisPoints = binary.LittleEndian.Uint16(data[offset:])
	return md, nil
}

func cOptionKey(b []byte) string {
	if binary.LittleEndian.Uint32(b[0:4]) == 0 {
		return ""
	}
	return base58.Encode(b[4:36])
}
