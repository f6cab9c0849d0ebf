package orchestrator

import (
	"context"

	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/instruction"
)

// TxProgress is the submission state of one packed transaction.
type TxProgress struct {
	Index        int
	Instructions []instruction.Kind
	State        domain.SubmissionState
	// Signature and Payload are set once the transaction is signed. Payload is the exact
	// wire transaction that every resend reuses.
	Signature string
	Payload   []byte
	Attempts  int
	Reason    string
}

// Progress tracks a mint across its packed transactions.
type Progress struct {
	RequestID    string
	Mint         string
	Transactions []*TxProgress
}

// Next returns the index of the first transaction that is not confirmed, or -1.
func (p *Progress) Next() int {
	for i, tx := range p.Transactions {
		if tx.State != domain.SubmissionConfirmed {
			return i
		}
	}
	return -1
}

// Done reports whether every transaction is confirmed.
func (p *Progress) Done() bool { return p.Next() == -1 }

// Signatures returns the signatures of all signed transactions in order.
func (p *Progress) Signatures() []string {
	var out []string
	for _, tx := range p.Transactions {
		if tx.Signature != "" {
			out = append(out, tx.Signature)
		}
	}
	return out
}

// matches reports whether p was produced from the same packing of the same mint.
func (p *Progress) matches(requestID string, batches [][]instruction.Instruction) bool {
	if p.RequestID != requestID || len(p.Transactions) != len(batches) {
		return false
	}
	for i, tx := range p.Transactions {
		if len(tx.Instructions) != len(batches[i]) {
			return false
		}
		for j, ix := range batches[i] {
			if tx.Instructions[j] != ix.Kind {
				return false
			}
		}
	}
	return true
}

// EventSink receives every submission state transition.
type EventSink interface {
	Publish(ctx context.Context, event domain.SubmissionEvent) error
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(ctx context.Context, event domain.SubmissionEvent) error

// Publish implements EventSink.
func (f EventSinkFunc) Publish(ctx context.Context, event domain.SubmissionEvent) error {
	return f(ctx, event)
}
