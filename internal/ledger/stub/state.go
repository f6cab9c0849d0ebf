package stub

import (
	"bytes"
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/instruction"
)

type mintState struct {
	authority       solana.PublicKey
	freezeAuthority *solana.PublicKey
	supply          uint64
	decimals        uint8
	initialized     bool
}

type tokenState struct {
	mint   solana.PublicKey
	owner  solana.PublicKey
	amount uint64
}

type metadataState struct {
	updateAuthority solana.PublicKey
	mint            solana.PublicKey
	data            instruction.DataV2
	mutable         bool
}

type editionState struct {
	maxSupply *uint64
}

type account struct {
	lamports uint64
	owner    solana.PublicKey
	space    uint64
	mint     *mintState
	token    *tokenState
	metadata *metadataState
	edition  *editionState
}

func (a *account) clone() *account {
	c := *a
	if a.mint != nil {
		m := *a.mint
		c.mint = &m
	}
	if a.token != nil {
		t := *a.token
		c.token = &t
	}
	if a.metadata != nil {
		md := *a.metadata
		md.data.Creators = append([]instruction.Creator(nil), a.metadata.data.Creators...)
		c.metadata = &md
	}
	if a.edition != nil {
		e := *a.edition
		c.edition = &e
	}
	return &c
}

// state is a copy-on-write view of the account set used while executing one transaction.
type state struct {
	base    map[solana.PublicKey]*account
	touched map[solana.PublicKey]*account
}

func newState(base map[solana.PublicKey]*account) *state {
	return &state{base: base, touched: map[solana.PublicKey]*account{}}
}

// get returns the account for reading, or nil.
func (s *state) get(k solana.PublicKey) *account {
	if a, ok := s.touched[k]; ok {
		return a
	}
	return s.base[k]
}

// edit returns a mutable account, creating an empty system-owned one if missing.
func (s *state) edit(k solana.PublicKey) *account {
	if a, ok := s.touched[k]; ok {
		return a
	}
	var a *account
	if existing := s.base[k]; existing != nil {
		a = existing.clone()
	} else {
		a = &account{owner: solana.SystemProgramID}
	}
	s.touched[k] = a
	return a
}

func (s *state) commit() {
	for k, a := range s.touched {
		s.base[k] = a
	}
}

func (a *account) exists() bool {
	return a != nil && (a.lamports > 0 || a.space > 0 || !a.owner.Equals(solana.SystemProgramID))
}

// encode renders the account data in on-chain layout.
func (a *account) encode() []byte {
	switch {
	case a.mint != nil:
		return encodeMint(a.mint)
	case a.token != nil:
		return encodeToken(a.token)
	case a.metadata != nil:
		return encodeMetadata(a.metadata)
	case a.edition != nil:
		out := []byte{6} // MasterEditionV2 key
		out = binary.LittleEndian.AppendUint64(out, 0)
		if a.edition.maxSupply == nil {
			return append(out, 0)
		}
		out = append(out, 1)
		return binary.LittleEndian.AppendUint64(out, *a.edition.maxSupply)
	default:
		return make([]byte, a.space)
	}
}

func cOption(k *solana.PublicKey) []byte {
	out := make([]byte, 36)
	if k != nil {
		binary.LittleEndian.PutUint32(out, 1)
		copy(out[4:], k[:])
	}
	return out
}

func encodeMint(m *mintState) []byte {
	var buf bytes.Buffer
	var auth *solana.PublicKey
	if !m.authority.IsZero() {
		a := m.authority
		auth = &a
	}
	buf.Write(cOption(auth))
	buf.Write(binary.LittleEndian.AppendUint64(nil, m.supply))
	buf.WriteByte(m.decimals)
	if m.initialized {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.Write(cOption(m.freezeAuthority))
	return buf.Bytes()
}

func encodeToken(t *tokenState) []byte {
	out := make([]byte, instruction.TokenAccountSize)
	copy(out[0:], t.mint[:])
	copy(out[32:], t.owner[:])
	binary.LittleEndian.PutUint64(out[64:], t.amount)
	out[108] = 1 // AccountState::Initialized
	return out
}

func encodeMetadata(m *metadataState) []byte {
	var buf bytes.Buffer
	buf.WriteByte(4) // MetadataV1 key
	buf.Write(m.updateAuthority[:])
	buf.Write(m.mint[:])
	for _, s := range []string{m.data.Name, m.data.Symbol, m.data.URI} {
		buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(s))))
		buf.WriteString(s)
	}
	buf.Write(binary.LittleEndian.AppendUint16(nil, m.data.SellerFeeBasisPoints))
	if len(m.data.Creators) == 0 {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(len(m.data.Creators))))
		for _, c := range m.data.Creators {
			buf.Write(c.Address[:])
			if c.Verified {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
			buf.WriteByte(c.Share)
		}
	}
	buf.WriteByte(0) // primary_sale_happened
	if m.mutable {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	return buf.Bytes()
}
