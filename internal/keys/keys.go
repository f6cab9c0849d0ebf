// Package keys loads existing signing identities. It never writes or logs secret material.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidKey is returned for secret material that is not a 64-byte ed25519 keypair.
var ErrInvalidKey = errors.New("invalid keypair")

// LoadFile reads a keypair file written by solana-keygen: a JSON array of 64 bytes.
// A file holding a base58 secret is accepted too.
func LoadFile(path string) (solana.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keypair %s: %w", path, err)
	}
	key, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("keypair %s: %w", path, err)
	}
	return key, nil
}

// Parse decodes a keygen JSON byte array or a base58 string.
func Parse(secret string) (solana.PrivateKey, error) {
	secret = strings.TrimSpace(secret)

	var (
		key solana.PrivateKey
		err error
	)
	if strings.HasPrefix(secret, "[") {
		key, err = solana.PrivateKeyFromSolanaKeygenFileBytes([]byte(secret))
	} else {
		key, err = solana.PrivateKeyFromBase58(secret)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if err := checkPair(key); err != nil {
		return nil, err
	}
	return key, nil
}

// checkPair verifies the trailing public half was derived from the seed.
// solana.ValidatePrivateKey only checks that the public half is on the curve.
func checkPair(key solana.PrivateKey) error {
	derived := ed25519.NewKeyFromSeed(key[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], key[ed25519.SeedSize:]) {
		return fmt.Errorf("%w: public key does not match seed", ErrInvalidKey)
	}
	return nil
}

// Encode returns the base58 form of key, as accepted by Parse.
func Encode(key solana.PrivateKey) string {
	return key.String()
}
