package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"solana-nft-minter/internal/domain"
)

// ComputeEventID computes a deterministic event_id using SHA256.
// Formula: SHA256(request_id|tx_index|attempt|state|signature)
// Returns hex-encoded hash (64 characters).
func ComputeEventID(
	requestID string,
	txIndex int,
	attempt int,
	state domain.SubmissionState,
	signature string,
) string {
	data := fmt.Sprintf("%s|%d|%d|%s|%s",
		requestID,
		txIndex,
		attempt,
		string(state),
		signature,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
