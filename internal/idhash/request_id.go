package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-nft-minter/internal/domain"
)

// ComputeRequestID computes a deterministic request_id using SHA256.
// Formula: SHA256(mode|payer|owner|mint)
// Returns hex-encoded hash (64 characters).
func ComputeRequestID(
	mode domain.MintMode,
	payer string,
	owner string,
	mint string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		string(mode),
		payer,
		owner,
		mint,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
