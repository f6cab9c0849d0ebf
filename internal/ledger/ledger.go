// Package ledger is the boundary to a Solana cluster: balance queries, transaction
// submission and confirmation over JSON-RPC, and signature notifications over WebSocket.
package ledger

import (
	"context"
	"fmt"
)

// Commitment is the durability level a read or confirmation is evaluated at.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	default:
		return 0
	}
}

// Reaches reports whether a transaction observed at c satisfies want.
func (c Commitment) Reaches(want Commitment) bool {
	return c.rank() > 0 && c.rank() >= want.rank()
}

// ParseCommitment validates s as a commitment level.
func ParseCommitment(s string) (Commitment, error) {
	c := Commitment(s)
	if c.rank() == 0 {
		return "", fmt.Errorf("unknown commitment %q", s)
	}
	return c, nil
}

// Status is the outcome of a confirmation query.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Confirmation is the ledger's view of one signature.
type Confirmation struct {
	Status Status
	Slot   uint64
	// Reached is the highest commitment level observed.
	Reached Commitment
	// Err is the ledger's raw transaction error, set when Status is StatusFailed.
	Err string
}

// Blockhash is a recent blockhash and the last block height it stays valid for.
type Blockhash struct {
	Hash                 string
	LastValidBlockHeight uint64
}

// TokenAmount is an SPL token account balance.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
}

// SendOptions tune sendTransaction.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment Commitment
}

// Client is the ledger surface the mint orchestrator consumes.
type Client interface {
	// GetBalance returns the lamport balance of address.
	GetBalance(ctx context.Context, address string, commitment Commitment) (uint64, error)

	// GetLatestBlockhash returns a blockhash to sign new transactions against.
	GetLatestBlockhash(ctx context.Context, commitment Commitment) (Blockhash, error)

	// GetMinimumBalanceForRentExemption returns the lamports an account of size bytes needs.
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)

	// SendTransaction submits a signed wire transaction and returns its signature.
	// Protocol-level rejections are returned as *RejectedError.
	SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (string, error)

	// Confirm reports whether signature has reached commitment.
	Confirm(ctx context.Context, signature string, commitment Commitment) (Confirmation, error)

	// GetTokenAccountBalance returns the balance of an SPL token account, or nil if the
	// account does not exist.
	GetTokenAccountBalance(ctx context.Context, address string, commitment Commitment) (*TokenAmount, error)
}

// AccountReader reads raw account state.
type AccountReader interface {
	// GetAccountInfo returns the account at address, or nil if it does not exist.
	GetAccountInfo(ctx context.Context, address string) (*AccountInfo, error)
}

// TransactionReader fetches confirmed transactions.
type TransactionReader interface {
	// GetTransaction returns the transaction for signature, or nil if not found.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
}

// Notifier delivers a signal when a signature is processed.
type Notifier interface {
	// SubscribeSignature returns a channel that receives one Confirmation and is then closed.
	SubscribeSignature(ctx context.Context, signature string, commitment Commitment) (<-chan Confirmation, error)

	// Close closes the underlying connection.
	Close() error
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       []byte `json:"data"`
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Transaction represents a confirmed Solana transaction.
type Transaction struct {
	Slot      uint64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Err       string
	Logs      []string
}
