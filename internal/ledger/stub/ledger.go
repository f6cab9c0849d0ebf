// Package stub provides an in-memory ledger that decodes signed transactions and executes
// the system, token, associated token, token metadata and minting program instructions
// against its own account set. It exists to drive the orchestrator in tests.
package stub

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/ledger"
)

// LamportsPerSignature is the fee charged per transaction signature.
const LamportsPerSignature = 5000

type txRecord struct {
	slot  uint64
	err   string
	logs  []string
	polls int
}

// Ledger implements ledger.Client, ledger.AccountReader and ledger.TransactionReader.
type Ledger struct {
	mu sync.Mutex

	accounts    map[solana.PublicKey]*account
	txs         map[string]*txRecord
	blockhashes map[solana.Hash]bool
	slot        uint64
	mintProgram solana.PublicKey

	hideConfirmations int
	failSends         int
	failApplied       bool
	dropSends         int
	balanceErr        error

	sends         int
	balanceCalls  int
	confirmCalls  int
	rejectedSends int
}

var (
	_ ledger.Client            = (*Ledger)(nil)
	_ ledger.AccountReader     = (*Ledger)(nil)
	_ ledger.TransactionReader = (*Ledger)(nil)
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithMintProgram deploys the custom minting program at id.
func WithMintProgram(id solana.PublicKey) Option {
	return func(l *Ledger) { l.mintProgram = id }
}

// New returns an empty ledger.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts:    make(map[solana.PublicKey]*account),
		txs:         make(map[string]*txRecord),
		blockhashes: make(map[solana.Hash]bool),
		slot:        1,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Fund credits lamports to a system account.
func (l *Ledger) Fund(address solana.PublicKey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acct, ok := l.accounts[address]
	if !ok {
		acct = &account{owner: solana.SystemProgramID}
		l.accounts[address] = acct
	}
	acct.lamports += lamports
}

// HideConfirmations makes Confirm report pending for the first n queries of every signature.
func (l *Ledger) HideConfirmations(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hideConfirmations = n
}

// FailSends makes the next n sends return a network error. When applied is true the
// transaction still executes, as if the response was lost.
func (l *Ledger) FailSends(n int, applied bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failSends = n
	l.failApplied = applied
}

// DropSends makes the next n sends return a signature without the transaction ever landing.
func (l *Ledger) DropSends(n int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.dropSends = n
}

// FailBalance makes GetBalance return err until cleared with nil.
func (l *Ledger) FailBalance(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceErr = err
}

// Sends returns how many times SendTransaction was called.
func (l *Ledger) Sends() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sends
}

// Rejections returns how many sends the ledger refused.
func (l *Ledger) Rejections() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rejectedSends
}

// BalanceCalls returns how many times GetBalance was called.
func (l *Ledger) BalanceCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceCalls
}

// Landed returns how many transactions were recorded on the ledger.
func (l *Ledger) Landed() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

// HolderBalances returns the balance of every token account of mint, keyed by address.
func (l *Ledger) HolderBalances(mint solana.PublicKey) map[solana.PublicKey]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := map[solana.PublicKey]uint64{}
	for k, a := range l.accounts {
		if a.token != nil && a.token.mint.Equals(mint) {
			out[k] = a.token.amount
		}
	}
	return out
}

// Lamports returns the balance of address.
func (l *Ledger) Lamports(address solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a := l.accounts[address]; a != nil {
		return a.lamports
	}
	return 0
}

// GetBalance implements ledger.Client.
func (l *Ledger) GetBalance(ctx context.Context, address string, _ ledger.Commitment) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, &ledger.RejectedError{Code: -32602, Reason: "Invalid param: " + err.Error()}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceCalls++
	if l.balanceErr != nil {
		return 0, &ledger.NetworkError{Op: "getBalance", Err: l.balanceErr}
	}
	if a := l.accounts[pk]; a != nil {
		return a.lamports, nil
	}
	return 0, nil
}

// GetLatestBlockhash implements ledger.Client.
func (l *Ledger) GetLatestBlockhash(ctx context.Context, _ ledger.Commitment) (ledger.Blockhash, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Blockhash{}, err
	}
	var h solana.Hash
	if _, err := rand.Read(h[:]); err != nil {
		return ledger.Blockhash{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockhashes[h] = true
	return ledger.Blockhash{Hash: h.String(), LastValidBlockHeight: l.slot + 150}, nil
}

// GetMinimumBalanceForRentExemption implements ledger.Client with the cluster's default
// rent parameters.
func (l *Ledger) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return rentExempt(size), nil
}

func rentExempt(size uint64) uint64 {
	// (128 bytes of account overhead + data) * 3480 lamports per byte-year * 2 years
	return (size + 128) * 3480 * 2
}

// SendTransaction implements ledger.Client. The transaction is decoded, its signatures are
// verified and its instructions are executed atomically.
func (l *Ledger) SendTransaction(ctx context.Context, raw []byte, opts ledger.SendOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sends++

	if l.failSends > 0 {
		l.failSends--
		if l.failApplied {
			_, _ = l.apply(raw, opts)
		}
		return "", &ledger.NetworkError{Op: "sendTransaction", Err: errors.New("connection reset by peer")}
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", &ledger.RejectedError{Code: -32602, Reason: "failed to deserialize solana_sdk::transaction::versioned::VersionedTransaction: " + err.Error()}
	}
	if len(tx.Signatures) == 0 {
		return "", &ledger.RejectedError{Code: -32602, Reason: "transaction has no signatures"}
	}
	if l.dropSends > 0 {
		l.dropSends--
		return tx.Signatures[0].String(), nil
	}

	sig, err := l.apply(raw, opts)
	if err != nil {
		l.rejectedSends++
		return "", err
	}
	return sig, nil
}

// apply executes raw and records it. The caller holds l.mu.
func (l *Ledger) apply(raw []byte, opts ledger.SendOptions) (string, error) {
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", &ledger.RejectedError{Code: -32602, Reason: err.Error()}
	}
	if err := tx.VerifySignatures(); err != nil {
		return "", &ledger.RejectedError{Code: -32003, Reason: "Transaction signature verification failure"}
	}
	sig := tx.Signatures[0].String()
	if _, seen := l.txs[sig]; seen {
		return "", ledger.NewAlreadyProcessed()
	}
	if !l.blockhashes[tx.Message.RecentBlockhash] {
		return "", &ledger.RejectedError{Code: -32002, Reason: "Transaction simulation failed: Blockhash not found"}
	}

	msg := tx.Message
	keys := msg.AccountKeys
	h := msg.Header
	nSigned := int(h.NumRequiredSignatures)
	signer := make([]bool, len(keys))
	writable := make([]bool, len(keys))
	for i := range keys {
		signer[i] = i < nSigned
		if i < nSigned {
			writable[i] = i < nSigned-int(h.NumReadonlySignedAccounts)
		} else {
			writable[i] = i < len(keys)-int(h.NumReadonlyUnsignedAccounts)
		}
	}

	// Fees are charged even when execution fails on-chain.
	feeState := newState(l.accounts)
	fee := uint64(LamportsPerSignature * len(tx.Signatures))
	payer := feeState.edit(keys[0])
	if !writable[0] || payer.lamports < fee {
		return "", &ledger.RejectedError{Code: -32002, Reason: "Transaction simulation failed: Attempt to debit an account but found no record of a prior credit."}
	}
	payer.lamports -= fee

	exec := &executor{st: newState(l.accounts), rent: rentExempt, mintProgram: l.mintProgram}
	exec.st.touched[keys[0]] = payer.clone()

	var logs []string
	for i, ci := range msg.Instructions {
		ic := &ixContext{program: keys[ci.ProgramIDIndex], data: ci.Data}
		for _, idx := range ci.Accounts {
			ic.keys = append(ic.keys, keys[idx])
			ic.signer = append(ic.signer, signer[idx])
			ic.writable = append(ic.writable, writable[idx])
		}
		logs = append(logs, fmt.Sprintf("Program %s invoke [1]", ic.program))
		if err := exec.execute(ic); err != nil {
			var pe *programError
			if !errors.As(err, &pe) {
				pe = failure(err.Error())
			}
			if pe.log != "" {
				logs = append(logs, "Program log: "+pe.log)
			}
			logs = append(logs, fmt.Sprintf("Program %s failed: %s", ic.program, pe.reason))
			reason := fmt.Sprintf("Error processing Instruction %d: %s", i, pe.reason)
			if !opts.SkipPreflight {
				return "", &ledger.RejectedError{Code: -32002, Reason: "Transaction simulation failed: " + reason, Logs: logs}
			}
			feeState.commit()
			l.record(sig, &txRecord{err: fmt.Sprintf(`{"InstructionError":[%d,%q]}`, i, pe.reason), logs: logs})
			return sig, nil
		}
		logs = append(logs, fmt.Sprintf("Program %s success", ic.program))
	}

	exec.st.commit()
	l.record(sig, &txRecord{logs: logs})
	return sig, nil
}

func (l *Ledger) record(sig string, rec *txRecord) {
	l.slot++
	rec.slot = l.slot
	l.txs[sig] = rec
}

// Confirm implements ledger.Client.
func (l *Ledger) Confirm(ctx context.Context, signature string, commitment ledger.Commitment) (ledger.Confirmation, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Confirmation{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.confirmCalls++
	rec, ok := l.txs[signature]
	if !ok {
		return ledger.Confirmation{Status: ledger.StatusPending}, nil
	}
	rec.polls++
	if rec.polls <= l.hideConfirmations {
		return ledger.Confirmation{Status: ledger.StatusPending, Slot: rec.slot, Reached: ledger.CommitmentProcessed}, nil
	}
	if rec.err != "" {
		return ledger.Confirmation{Status: ledger.StatusFailed, Slot: rec.slot, Reached: ledger.CommitmentFinalized, Err: rec.err}, nil
	}
	return ledger.Confirmation{Status: ledger.StatusConfirmed, Slot: rec.slot, Reached: ledger.CommitmentFinalized}, nil
}

// GetTokenAccountBalance implements ledger.Client.
func (l *Ledger) GetTokenAccountBalance(ctx context.Context, address string, _ ledger.Commitment) (*ledger.TokenAmount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, &ledger.RejectedError{Code: -32602, Reason: "Invalid param: " + err.Error()}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accounts[pk]
	if a == nil || a.token == nil {
		return nil, nil
	}
	var decimals uint8
	if m := l.accounts[a.token.mint]; m != nil && m.mint != nil {
		decimals = m.mint.decimals
	}
	return &ledger.TokenAmount{Amount: a.token.amount, Decimals: decimals}, nil
}

// GetAccountInfo implements ledger.AccountReader.
func (l *Ledger) GetAccountInfo(ctx context.Context, address string) (*ledger.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, &ledger.RejectedError{Code: -32602, Reason: "Invalid param: " + err.Error()}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.accounts[pk]
	if !a.exists() {
		return nil, nil
	}
	return &ledger.AccountInfo{Lamports: a.lamports, Owner: a.owner.String(), Data: a.encode()}, nil
}

// GetTransaction implements ledger.TransactionReader.
func (l *Ledger) GetTransaction(ctx context.Context, signature string) (*ledger.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.txs[signature]
	if !ok {
		return nil, nil
	}
	return &ledger.Transaction{
		Slot:      rec.slot,
		Signature: signature,
		Err:       rec.err,
		Logs:      append([]string(nil), rec.logs...),
	}, nil
}
