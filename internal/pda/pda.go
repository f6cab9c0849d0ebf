// Package pda derives program-derived addresses.
//
// A program-derived address is sha256(seeds || bump || program_id || "ProgramDerivedAddress")
// with the bump chosen so that the hash is not a valid ed25519 point, which guarantees no
// private key controls it.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"
)

// Protocol limits.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
	// BumpAttempts is the size of the bump search space (255 down to 0).
	BumpAttempts = 256
)

const pdaMarker = "ProgramDerivedAddress"

var (
	// ErrDerivationExhausted is returned when no bump in the search space yields an off-curve address.
	ErrDerivationExhausted = errors.New("address derivation exhausted")

	// ErrInvalidSeeds is returned when seeds violate the protocol limits.
	ErrInvalidSeeds = errors.New("invalid seeds")

	// ErrOnCurve is returned by CreateProgramAddress when the hash lands on the curve.
	ErrOnCurve = errors.New("derived address is on the ed25519 curve")
)

// Deriver computes program-derived addresses.
type Deriver struct {
	onCurve func([]byte) bool
}

// Default uses the real ed25519 curve check.
var Default = Deriver{onCurve: IsOnCurve}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first off-curve address.
func FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return Default.FindProgramAddress(seeds, programID)
}

// CreateProgramAddress derives an address from seeds that already include the bump.
func CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	return Default.CreateProgramAddress(seeds, programID)
}

// FindProgramAddress searches bumps from 255 down to 0 and returns the first off-curve address.
func (d Deriver) FindProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return solana.PublicKey{}, 0, err
	}

	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bumpSeed := []byte{0}
	withBump[len(seeds)] = bumpSeed

	for i := 0; i < BumpAttempts; i++ {
		bump := uint8(255 - i)
		bumpSeed[0] = bump

		addr, err := d.CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return solana.PublicKey{}, 0, err
		}
	}

	return solana.PublicKey{}, 0, fmt.Errorf("%w: program %s, %d seeds", ErrDerivationExhausted, programID, len(seeds))
}

// CreateProgramAddress derives an address from seeds that already include the bump.
func (d Deriver) CreateProgramAddress(seeds [][]byte, programID solana.PublicKey) (solana.PublicKey, error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return solana.PublicKey{}, err
	}

	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	hash := h.Sum(nil)

	if d.onCurve(hash) {
		return solana.PublicKey{}, ErrOnCurve
	}
	return solana.PublicKeyFromBytes(hash), nil
}

// IsOnCurve reports whether b decodes to a valid ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

func checkSeeds(seeds [][]byte, max int) error {
	if len(seeds) > max {
		return fmt.Errorf("%w: %d seeds exceeds limit %d", ErrInvalidSeeds, len(seeds), max)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: seed %d is %d bytes, limit %d", ErrInvalidSeeds, i, len(seed), MaxSeedLength)
		}
	}
	return nil
}
