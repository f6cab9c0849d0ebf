package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed is returned by a Notifier after Close.
var ErrClosed = errors.New("ledger connection closed")

// RejectedError is a protocol-level refusal reported by the ledger. Reason is the
// ledger's message, unmodified.
type RejectedError struct {
	Code   int
	Reason string
	Logs   []string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected by ledger (%d): %s", e.Code, e.Reason)
}

// NetworkError is a transport failure that persisted through the client's retries.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// alreadyProcessed is the ledger's message for a duplicate signature.
const alreadyProcessed = "This transaction has already been processed"

// IsAlreadyProcessed reports whether err is the ledger refusing a replayed signature.
func IsAlreadyProcessed(err error) bool {
	var rej *RejectedError
	if !errors.As(err, &rej) {
		return false
	}
	return strings.Contains(rej.Reason, alreadyProcessed) || strings.Contains(rej.Reason, "AlreadyProcessed")
}

// NewAlreadyProcessed returns the rejection a ledger reports for a duplicate signature.
func NewAlreadyProcessed() *RejectedError {
	return &RejectedError{Code: codeSimulationFailed, Reason: "Transaction simulation failed: " + alreadyProcessed}
}

// codeSimulationFailed is the JSON-RPC code for a failed preflight simulation.
const codeSimulationFailed = -32002
