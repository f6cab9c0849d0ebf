package orchestrator

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/instruction"
)

// pack splits the plan's instructions, in order, into transactions that respect the size
// and instruction-count limits. A transaction closes only when the next instruction would not
// fit, so dependent instructions share a transaction whenever the limits allow.
func pack(plan *composer.Plan, maxSize, maxInstructions int) ([][]instruction.Instruction, error) {
	var (
		out     [][]instruction.Instruction
		current []instruction.Instruction
	)
	for _, ix := range plan.Instructions {
		candidate := append(append([]instruction.Instruction(nil), current...), ix)
		size, err := wireSize(plan.Payer, candidate)
		if err != nil {
			return nil, err
		}
		fits := size <= maxSize && (maxInstructions <= 0 || len(candidate) <= maxInstructions)
		if fits {
			current = candidate
			continue
		}
		if len(current) == 0 {
			return nil, fmt.Errorf("%w: %s alone is %d bytes, limit %d", composer.ErrInvalidRequest, ix.Kind, size, maxSize)
		}
		out = append(out, current)
		current = []instruction.Instruction{ix}
		if size, err = wireSize(plan.Payer, current); err != nil {
			return nil, err
		}
		if size > maxSize {
			return nil, fmt.Errorf("%w: %s alone is %d bytes, limit %d", composer.ErrInvalidRequest, ix.Kind, size, maxSize)
		}
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out, nil
}

// wireSize returns the serialized size of a signed transaction over ixs.
func wireSize(payer solana.PublicKey, ixs []instruction.Instruction) (int, error) {
	tx, err := newTransaction(payer, ixs, solana.Hash{})
	if err != nil {
		return 0, err
	}
	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}
	n := int(tx.Message.Header.NumRequiredSignatures)
	return compactLen(n) + n*signatureLength + len(msg), nil
}

const signatureLength = 64

// compactLen is the size of n in the wire format's compact-u16 encoding.
func compactLen(n int) int {
	switch {
	case n < 0x80:
		return 1
	case n < 0x4000:
		return 2
	default:
		return 3
	}
}

func newTransaction(payer solana.PublicKey, ixs []instruction.Instruction, hash solana.Hash) (*solana.Transaction, error) {
	list := make([]solana.Instruction, len(ixs))
	for i := range ixs {
		list[i] = ixs[i]
	}
	tx, err := solana.NewTransaction(list, hash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("assemble transaction: %w", err)
	}
	return tx, nil
}

// signersOf returns the keys a transaction over ixs must be signed by, payer first.
func signersOf(payer solana.PublicKey, ixs []instruction.Instruction) []solana.PublicKey {
	out := []solana.PublicKey{payer}
	for _, ix := range ixs {
		for _, s := range ix.Signers() {
			if !hasKey(out, s) {
				out = append(out, s)
			}
		}
	}
	return out
}

func hasKey(keys []solana.PublicKey, k solana.PublicKey) bool {
	for _, existing := range keys {
		if existing.Equals(k) {
			return true
		}
	}
	return false
}
