package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/instruction"
	"solana-nft-minter/internal/ledger"
	"solana-nft-minter/internal/pda"
)

// Kind classifies a mint failure.
type Kind string

const (
	KindAddressDerivationExhausted Kind = "AddressDerivationExhausted"
	KindInvalidAccountFlags        Kind = "InvalidAccountFlags"
	KindInvalidRequest             Kind = "InvalidRequest"
	KindMissingSigner              Kind = "MissingSigner"
	KindInsufficientFunds          Kind = "InsufficientFunds"
	KindRejectedByLedger           Kind = "RejectedByLedger"
	KindNetworkError               Kind = "NetworkError"
	KindTimedOut                   Kind = "TimedOut"
	KindSubmissionExhausted        Kind = "SubmissionExhausted"
	KindCanceled                   Kind = "Canceled"
	KindBalanceInvariant           Kind = "BalanceInvariant"
	KindUnknown                    Kind = "Unknown"
)

// Sentinel errors for failures raised by the orchestrator itself.
var (
	ErrMissingSigner       = errors.New("missing signer")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	// ErrTimedOut wraps the caller's context deadline when it expires mid-mint.
	ErrTimedOut            = errors.New("mint deadline exceeded")
	ErrSubmissionExhausted = errors.New("submission attempts exhausted")
	ErrBalanceInvariant    = errors.New("holder balance invariant violated")
	ErrProgressMismatch    = errors.New("progress does not match plan")
)

// Failure is the typed error every orchestrator operation returns.
type Failure struct {
	Kind Kind
	// Reason is the ledger's message verbatim for RejectedByLedger, otherwise a summary.
	Reason string
	// Progress is the submission state at the time of failure. Pass it to Resume to continue
	// from the first unconfirmed transaction.
	Progress *Progress
	Err      error
}

func (f *Failure) Error() string {
	if f.Reason == "" {
		return fmt.Sprintf("%s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether a failure of kind k may succeed if tried again unchanged.
func Retryable(k Kind) bool {
	return k == KindNetworkError || k == KindTimedOut
}

// KindOf classifies err.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}

	var rej *ledger.RejectedError
	var netErr *ledger.NetworkError
	switch {
	case errors.Is(err, pda.ErrDerivationExhausted):
		return KindAddressDerivationExhausted
	case errors.Is(err, instruction.ErrInvalidAccountFlags):
		return KindInvalidAccountFlags
	case errors.Is(err, composer.ErrInvalidRequest),
		errors.Is(err, composer.ErrOrdering),
		errors.Is(err, instruction.ErrInvalidMetadata),
		errors.Is(err, pda.ErrInvalidSeeds),
		errors.Is(err, ErrProgressMismatch):
		return KindInvalidRequest
	case errors.Is(err, ErrMissingSigner):
		return KindMissingSigner
	case errors.Is(err, ErrInsufficientFunds):
		return KindInsufficientFunds
	case errors.Is(err, ErrSubmissionExhausted):
		return KindSubmissionExhausted
	case errors.Is(err, ErrTimedOut):
		return KindTimedOut
	case errors.Is(err, ErrBalanceInvariant):
		return KindBalanceInvariant
	case errors.As(err, &rej):
		return KindRejectedByLedger
	case errors.As(err, &netErr):
		return KindNetworkError
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// fail wraps err into a Failure, keeping the ledger's reason verbatim for rejections.
func fail(err error, progress *Progress) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		if f.Progress == nil {
			f.Progress = progress
		}
		return f
	}
	out := &Failure{Kind: KindOf(err), Reason: err.Error(), Progress: progress, Err: err}
	var rej *ledger.RejectedError
	if errors.As(err, &rej) {
		out.Reason = rej.Reason
	}
	return out
}
