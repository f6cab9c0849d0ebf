package domain

// SubmissionState is a packed transaction's position in the submission state machine.
type SubmissionState string

const (
	SubmissionBuilt     SubmissionState = "BUILT"
	SubmissionSubmitted SubmissionState = "SUBMITTED"
	SubmissionConfirmed SubmissionState = "CONFIRMED"
	SubmissionFailed    SubmissionState = "FAILED"
	SubmissionTimedOut  SubmissionState = "TIMED_OUT"
)

// Terminal reports whether no further transition is possible from s.
func (s SubmissionState) Terminal() bool {
	return s == SubmissionConfirmed || s == SubmissionFailed
}

// SubmissionEvent records one state transition of one packed transaction.
// Corresponds to submission_events table in ClickHouse.
type SubmissionEvent struct {
	EventID   string // deterministic hash
	RequestID string
	Mint      string
	TxIndex   int // position of the transaction within the mint
	Attempt   int // 1-based submission attempt
	State     SubmissionState
	Signature string // empty while BUILT
	Reason    string // ledger or local failure reason
	Timestamp int64  // Unix timestamp in milliseconds
}
