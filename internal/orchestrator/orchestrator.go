// Package orchestrator drives a composed mint to a terminal outcome.
// Flow: pack → pre-flight balance → sign → submit → confirm → verify holding
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/idhash"
	"solana-nft-minter/internal/instruction"
	"solana-nft-minter/internal/ledger"
	"solana-nft-minter/internal/observability"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultMinBalance         uint64 = 50_000_000 // 0.05 SOL
	DefaultMaxAttempts               = 3
	DefaultConfirmTimeout            = 60 * time.Second
	DefaultPollInitialDelay          = 500 * time.Millisecond
	DefaultPollMaxDelay              = 5 * time.Second
	DefaultMaxTransactionSize        = 1232
)

// finalCheckTimeout bounds the status query made after the caller cancels.
const finalCheckTimeout = 10 * time.Second

// Orchestrator packs, signs, submits and confirms mint plans. It holds no per-mint state
// and is safe for concurrent use by independent mints.
type Orchestrator struct {
	ledger   ledger.Client
	notifier ledger.Notifier
	composer *composer.Composer
	sink     EventSink
	logger   zerolog.Logger

	commitment       ledger.Commitment
	minBalance       uint64
	maxAttempts      int
	confirmTimeout   time.Duration
	pollInitialDelay time.Duration
	pollMaxDelay     time.Duration
	maxTxSize        int
	maxInstructions  int
	skipPreflight    bool
	skipHoldingCheck bool
	now              func() time.Time
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	Ledger ledger.Client

	// Optional collaborators
	Notifier ledger.Notifier    // wakes confirmation polling early
	Composer *composer.Composer // required by Mint only
	Sink     EventSink          // receives every submission state transition
	Logger   *zerolog.Logger

	Commitment           ledger.Commitment // default confirmed
	MinBalance           uint64            // pre-flight payer threshold in lamports
	MaxAttempts          int               // sends per transaction, also network retries per read
	ConfirmTimeout       time.Duration     // per attempt
	PollInitialDelay     time.Duration
	PollMaxDelay         time.Duration
	MaxTransactionSize   int // serialized bytes, signatures included
	MaxInstructionsPerTx int // 0 means no count limit
	SkipPreflight        bool
	SkipHoldingCheck     bool
	Now                  func() time.Time
}

// New creates a new Orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Ledger == nil {
		return nil, errors.New("orchestrator: ledger client is required")
	}
	o := &Orchestrator{
		ledger:           opts.Ledger,
		notifier:         opts.Notifier,
		composer:         opts.Composer,
		sink:             opts.Sink,
		logger:           zerolog.Nop(),
		commitment:       opts.Commitment,
		minBalance:       opts.MinBalance,
		maxAttempts:      opts.MaxAttempts,
		confirmTimeout:   opts.ConfirmTimeout,
		pollInitialDelay: opts.PollInitialDelay,
		pollMaxDelay:     opts.PollMaxDelay,
		maxTxSize:        opts.MaxTransactionSize,
		maxInstructions:  opts.MaxInstructionsPerTx,
		skipPreflight:    opts.SkipPreflight,
		skipHoldingCheck: opts.SkipHoldingCheck,
		now:              opts.Now,
	}
	if opts.Logger != nil {
		o.logger = opts.Logger.With().Str("component", "orchestrator").Logger()
	}
	if o.commitment == "" {
		o.commitment = ledger.CommitmentConfirmed
	}
	if o.minBalance == 0 {
		o.minBalance = DefaultMinBalance
	}
	if o.maxAttempts <= 0 {
		o.maxAttempts = DefaultMaxAttempts
	}
	if o.confirmTimeout <= 0 {
		o.confirmTimeout = DefaultConfirmTimeout
	}
	if o.pollInitialDelay <= 0 {
		o.pollInitialDelay = DefaultPollInitialDelay
	}
	if o.pollMaxDelay < o.pollInitialDelay {
		o.pollMaxDelay = max(DefaultPollMaxDelay, o.pollInitialDelay)
	}
	if o.maxTxSize <= 0 {
		o.maxTxSize = DefaultMaxTransactionSize
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Mint composes req and executes the resulting plan. signers must hold the payer and the
// freshly generated mint key.
func (o *Orchestrator) Mint(ctx context.Context, req composer.Request, signers []solana.PrivateKey) (*domain.MintResult, error) {
	if o.composer == nil {
		return nil, fail(fmt.Errorf("%w: no composer configured", composer.ErrInvalidRequest), nil)
	}

	var rent uint64
	err := o.withRetry(ctx, "getMinimumBalanceForRentExemption", func(ctx context.Context) error {
		var err error
		rent, err = o.ledger.GetMinimumBalanceForRentExemption(ctx, instruction.MintAccountSize)
		return err
	})
	if err != nil {
		return nil, fail(err, nil)
	}

	plan, err := o.composer.Compose(req, rent)
	if err != nil {
		return nil, fail(err, nil)
	}
	for _, ix := range plan.Instructions {
		observability.RecordInstruction(string(ix.Kind))
	}
	return o.Execute(ctx, plan, signers)
}

// Execute packs plan into transactions and drives each to confirmation in order.
// On failure the returned *Failure carries the Progress needed by Resume.
func (o *Orchestrator) Execute(ctx context.Context, plan *composer.Plan, signers []solana.PrivateKey) (*domain.MintResult, error) {
	batches, requestID, err := o.prepare(plan)
	if err != nil {
		return nil, fail(err, nil)
	}

	progress := &Progress{RequestID: requestID, Mint: plan.Mint.String()}
	for i, batch := range batches {
		kinds := make([]instruction.Kind, len(batch))
		for j, ix := range batch {
			kinds[j] = ix.Kind
		}
		progress.Transactions = append(progress.Transactions, &TxProgress{
			Index:        i,
			Instructions: kinds,
			State:        domain.SubmissionBuilt,
		})
	}
	return o.run(ctx, plan, batches, progress, signers)
}

// Resume continues a mint from the first unconfirmed transaction in progress. Transactions
// that were already submitted are checked on the ledger before their payload is resent.
func (o *Orchestrator) Resume(ctx context.Context, plan *composer.Plan, progress *Progress, signers []solana.PrivateKey) (*domain.MintResult, error) {
	if progress == nil {
		return o.Execute(ctx, plan, signers)
	}
	batches, requestID, err := o.prepare(plan)
	if err != nil {
		return nil, fail(err, progress)
	}
	if !progress.matches(requestID, batches) {
		return nil, fail(fmt.Errorf("%w: request %s", ErrProgressMismatch, progress.RequestID), progress)
	}
	return o.run(ctx, plan, batches, progress, signers)
}

func (o *Orchestrator) prepare(plan *composer.Plan) ([][]instruction.Instruction, string, error) {
	if plan == nil {
		return nil, "", fmt.Errorf("%w: nil plan", composer.ErrInvalidRequest)
	}
	if err := plan.Validate(); err != nil {
		return nil, "", err
	}
	batches, err := pack(plan, o.maxTxSize, o.maxInstructions)
	if err != nil {
		return nil, "", err
	}
	requestID := idhash.ComputeRequestID(domain.MintMode(plan.Mode), plan.Payer.String(), plan.Owner.String(), plan.Mint.String())
	return batches, requestID, nil
}

func (o *Orchestrator) run(ctx context.Context, plan *composer.Plan, batches [][]instruction.Instruction, progress *Progress, signers []solana.PrivateKey) (*domain.MintResult, error) {
	start := o.now()
	r := &mintRun{
		o:        o,
		plan:     plan,
		batches:  batches,
		progress: progress,
		log: o.logger.With().
			Str("request_id", progress.RequestID).
			Str("mint", progress.Mint).
			Str("mode", string(plan.Mode)).
			Logger(),
	}

	result, err := r.execute(ctx, signers)

	seconds := o.now().Sub(start).Seconds()
	if err != nil {
		f := fail(err, progress)
		observability.RecordMint(string(plan.Mode), string(f.Kind), seconds, len(batches))
		ev := r.log.Error()
		if Retryable(f.Kind) || f.Kind == KindCanceled {
			ev = r.log.Warn()
		}
		ev.Str("kind", string(f.Kind)).Str("reason", f.Reason).Int("next_tx", progress.Next()).Msg("mint failed")
		return nil, f
	}

	observability.RecordMint(string(plan.Mode), "success", seconds, len(batches))
	observability.RecordMintSuccess(o.now().Unix())
	r.log.Info().
		Str("holder", result.Holder.Address).
		Strs("signatures", result.Signatures).
		Float64("seconds", seconds).
		Msg("mint confirmed")
	return result, nil
}

// keyring indexes signers by public key.
func keyring(signers []solana.PrivateKey) map[solana.PublicKey]solana.PrivateKey {
	keys := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, k := range signers {
		keys[k.PublicKey()] = k
	}
	return keys
}

// withRetry retries fn on network errors with exponential backoff, up to maxAttempts calls.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	delay := o.pollInitialDelay
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil || KindOf(err) != KindNetworkError || attempt >= o.maxAttempts {
			return err
		}
		o.logger.Warn().Err(err).Str("op", op).Int("attempt", attempt).Dur("backoff", delay).Msg("ledger call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = min(delay*2, o.pollMaxDelay)
	}
}

// mintRun is the state of one Execute or Resume call.
type mintRun struct {
	o        *Orchestrator
	plan     *composer.Plan
	batches  [][]instruction.Instruction
	progress *Progress
	keys     map[solana.PublicKey]solana.PrivateKey
	log      zerolog.Logger
}

func (r *mintRun) execute(ctx context.Context, signers []solana.PrivateKey) (*domain.MintResult, error) {
	r.keys = keyring(signers)
	if err := r.checkSigners(); err != nil {
		return nil, err
	}

	if !r.progress.Done() {
		if err := r.preflight(ctx); err != nil {
			return nil, err
		}
		r.log.Info().
			Str("payer", r.plan.Payer.String()).
			Int("transactions", len(r.batches)).
			Int("next_tx", r.progress.Next()).
			Msg("submitting mint")
	}

	for i, tp := range r.progress.Transactions {
		if tp.State == domain.SubmissionConfirmed {
			continue
		}
		if err := r.drive(ctx, r.batches[i], tp); err != nil {
			return nil, err
		}
	}

	balance := uint64(1)
	if !r.o.skipHoldingCheck {
		if ctx.Err() != nil {
			// Canceled, but the last transaction confirmed: report the mint anyway.
			checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCheckTimeout)
			defer cancel()
			ctx = checkCtx
		}
		amount, err := r.verifyHolding(ctx)
		if err != nil {
			return nil, err
		}
		balance = amount
	}
	return r.result(balance), nil
}

// checkSigners ensures every transaction still to be signed has all its signing keys.
func (r *mintRun) checkSigners() error {
	for i, tp := range r.progress.Transactions {
		if tp.State == domain.SubmissionConfirmed || (tp.Payload != nil && tp.State != domain.SubmissionFailed) {
			continue
		}
		for _, k := range signersOf(r.plan.Payer, r.batches[i]) {
			if _, ok := r.keys[k]; !ok {
				return fmt.Errorf("%w: %s for transaction %d", ErrMissingSigner, k, i)
			}
		}
	}
	return nil
}

// preflight fails fast when the payer cannot cover the mint.
func (r *mintRun) preflight(ctx context.Context) error {
	var balance uint64
	err := r.o.withRetry(ctx, "getBalance", func(ctx context.Context) error {
		var err error
		balance, err = r.o.ledger.GetBalance(ctx, r.plan.Payer.String(), r.o.commitment)
		return err
	})
	if err != nil {
		return err
	}
	if balance < r.o.minBalance {
		observability.RecordPreflightRejection()
		return fmt.Errorf("%w: payer %s holds %d lamports, minimum is %d",
			ErrInsufficientFunds, r.plan.Payer, balance, r.o.minBalance)
	}
	r.log.Debug().Uint64("balance", balance).Msg("pre-flight balance ok")
	return nil
}

// drive takes one transaction from its current state to Confirmed.
func (r *mintRun) drive(ctx context.Context, ixs []instruction.Instruction, tp *TxProgress) error {
	if tp.State == domain.SubmissionFailed {
		// A failed transaction changed nothing on the ledger; it is rebuilt and signed afresh.
		tp.Payload, tp.Signature, tp.Attempts, tp.Reason = nil, "", 0, ""
		tp.State = domain.SubmissionBuilt
	}
	if tp.Payload == nil {
		if err := r.build(ctx, ixs, tp); err != nil {
			return err
		}
	}

	opts := ledger.SendOptions{SkipPreflight: r.o.skipPreflight, PreflightCommitment: r.o.commitment}
	// Every Execute or Resume call gets maxAttempts sends per transaction.
	// tp.Attempts keeps counting across calls.
	sent := 0
	for {
		if tp.State == domain.SubmissionSubmitted || tp.State == domain.SubmissionTimedOut {
			// An earlier attempt may have landed.
			conf, err := r.o.ledger.Confirm(ctx, tp.Signature, r.o.commitment)
			switch {
			case err == nil && conf.Status == ledger.StatusConfirmed:
				r.transition(ctx, tp, domain.SubmissionConfirmed, "")
				return nil
			case err == nil && conf.Status == ledger.StatusFailed:
				return r.rejected(ctx, tp, conf)
			case ctx.Err() != nil:
				return r.canceled(ctx, tp)
			case err != nil:
				r.log.Warn().Err(err).Int("tx", tp.Index).Msg("status check before resend failed")
			}
		}

		if sent >= r.o.maxAttempts {
			return fmt.Errorf("%w: transaction %d after %d attempts", ErrSubmissionExhausted, tp.Index, tp.Attempts)
		}
		if ctx.Err() != nil {
			return r.canceled(ctx, tp)
		}

		sent++
		tp.Attempts++
		sentAt := r.o.now()
		sig, err := r.o.ledger.SendTransaction(ctx, tp.Payload, opts)
		switch {
		case err == nil || ledger.IsAlreadyProcessed(err):
			if err == nil && sig != tp.Signature {
				r.log.Warn().Str("returned", sig).Str("signature", tp.Signature).Msg("ledger returned an unexpected signature")
			}
			r.transition(ctx, tp, domain.SubmissionSubmitted, "")
		case ctx.Err() != nil:
			return r.canceled(ctx, tp)
		case KindOf(err) == KindNetworkError:
			// The payload may or may not have landed.
			r.transition(ctx, tp, domain.SubmissionTimedOut, err.Error())
			continue
		default:
			var rej *ledger.RejectedError
			reason := err.Error()
			if errors.As(err, &rej) {
				reason = rej.Reason
			}
			r.transition(ctx, tp, domain.SubmissionFailed, reason)
			return err
		}

		conf, err := r.await(ctx, tp.Signature)
		switch {
		case err != nil && ctx.Err() != nil:
			return r.canceled(ctx, tp)
		case err != nil:
			return err
		case conf.Status == ledger.StatusConfirmed:
			observability.RecordConfirmationLatency(r.o.now().Sub(sentAt).Seconds())
			r.transition(ctx, tp, domain.SubmissionConfirmed, "")
			return nil
		case conf.Status == ledger.StatusFailed:
			return r.rejected(ctx, tp, conf)
		default:
			r.transition(ctx, tp, domain.SubmissionTimedOut,
				fmt.Sprintf("not confirmed at %s within %s", r.o.commitment, r.o.confirmTimeout))
		}
	}
}

// build signs the transaction against a fresh blockhash and verifies it locally.
func (r *mintRun) build(ctx context.Context, ixs []instruction.Instruction, tp *TxProgress) error {
	var bh ledger.Blockhash
	err := r.o.withRetry(ctx, "getLatestBlockhash", func(ctx context.Context) error {
		var err error
		bh, err = r.o.ledger.GetLatestBlockhash(ctx, r.o.commitment)
		return err
	})
	if err != nil {
		return err
	}
	hash, err := solana.HashFromBase58(bh.Hash)
	if err != nil {
		return fmt.Errorf("parse blockhash %q: %w", bh.Hash, err)
	}

	tx, err := newTransaction(r.plan.Payer, ixs, hash)
	if err != nil {
		return err
	}
	_, err = tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		key, ok := r.keys[pub]
		if !ok {
			return nil
		}
		return &key
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingSigner, err)
	}
	if err := tx.VerifySignatures(); err != nil {
		return fmt.Errorf("verify signatures of transaction %d: %w", tp.Index, err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return fmt.Errorf("serialize transaction %d: %w", tp.Index, err)
	}

	tp.Payload = raw
	tp.Signature = tx.Signatures[0].String()
	r.transition(ctx, tp, domain.SubmissionBuilt, "")
	return nil
}

// await polls the signature with exponential backoff until it resolves or the confirm
// timeout passes, in which case a pending confirmation is returned.
func (r *mintRun) await(ctx context.Context, signature string) (ledger.Confirmation, error) {
	o := r.o
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wake <-chan ledger.Confirmation
	if o.notifier != nil {
		ch, err := o.notifier.SubscribeSignature(waitCtx, signature, o.commitment)
		if err != nil {
			r.log.Warn().Err(err).Str("signature", signature).Msg("signature subscription failed, polling only")
		} else {
			wake = ch
		}
	}

	deadline := time.NewTimer(o.confirmTimeout)
	defer deadline.Stop()
	delay := o.pollInitialDelay
	for {
		conf, err := o.ledger.Confirm(ctx, signature, o.commitment)
		switch {
		case err == nil && conf.Status != ledger.StatusPending:
			return conf, nil
		case err == nil:
			r.log.Debug().Str("signature", signature).Str("reached", string(conf.Reached)).Msg("pending")
		case ctx.Err() != nil:
			return ledger.Confirmation{}, ctx.Err()
		case KindOf(err) == KindNetworkError:
			r.log.Warn().Err(err).Str("signature", signature).Msg("confirmation poll failed")
		default:
			return ledger.Confirmation{}, err
		}

		poll := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			poll.Stop()
			return ledger.Confirmation{}, ctx.Err()
		case <-deadline.C:
			poll.Stop()
			return ledger.Confirmation{Status: ledger.StatusPending}, nil
		case <-wake:
			poll.Stop()
			wake = nil
		case <-poll.C:
		}
		delay = min(delay*2, o.pollMaxDelay)
	}
}

// canceled makes a last status check of an in-flight transaction before reporting the
// cancellation, so the caller learns whether it landed.
func (r *mintRun) canceled(ctx context.Context, tp *TxProgress) error {
	kind, cause := KindCanceled, ctx.Err()
	if errors.Is(cause, context.DeadlineExceeded) {
		kind, cause = KindTimedOut, fmt.Errorf("%w: %w", ErrTimedOut, cause)
	}
	if tp.Attempts == 0 {
		return &Failure{Kind: kind, Reason: fmt.Sprintf("%s before transaction %d was sent", stopped(kind), tp.Index), Err: cause}
	}

	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalCheckTimeout)
	defer cancel()
	conf, err := r.o.ledger.Confirm(checkCtx, tp.Signature, r.o.commitment)

	reason := fmt.Sprintf("%s with transaction %d (%s) in flight", stopped(kind), tp.Index, tp.Signature)
	switch {
	case err != nil:
		reason = fmt.Sprintf("%s; final status check of transaction %d failed: %v", stopped(kind), tp.Index, err)
	case conf.Status == ledger.StatusConfirmed:
		r.transition(checkCtx, tp, domain.SubmissionConfirmed, "")
		if r.progress.Done() {
			r.log.Warn().Str("signature", tp.Signature).Msg("stopped after the last transaction confirmed")
			return nil
		}
		reason = fmt.Sprintf("%s after transaction %d (%s) confirmed", stopped(kind), tp.Index, tp.Signature)
	case conf.Status == ledger.StatusFailed:
		r.transition(checkCtx, tp, domain.SubmissionFailed, conf.Err)
		reason = fmt.Sprintf("%s after transaction %d failed: %s", stopped(kind), tp.Index, conf.Err)
	}
	r.log.Warn().Str("signature", tp.Signature).Str("state", string(tp.State)).Msg("stopped after submission")
	return &Failure{Kind: kind, Reason: reason, Err: cause}
}

func stopped(kind Kind) string {
	if kind == KindTimedOut {
		return "deadline exceeded"
	}
	return "canceled"
}

// rejected turns a failed confirmation into a ledger rejection, with logs when available.
func (r *mintRun) rejected(ctx context.Context, tp *TxProgress, conf ledger.Confirmation) error {
	rej := &ledger.RejectedError{Reason: conf.Err}
	if reader, ok := r.o.ledger.(ledger.TransactionReader); ok {
		tx, err := reader.GetTransaction(ctx, tp.Signature)
		if err != nil {
			r.log.Warn().Err(err).Str("signature", tp.Signature).Msg("fetch failed transaction")
		} else if tx != nil {
			rej.Logs = tx.Logs
		}
	}
	r.transition(ctx, tp, domain.SubmissionFailed, conf.Err)
	return rej
}

// verifyHolding checks that the holder account carries exactly one indivisible unit.
func (r *mintRun) verifyHolding(ctx context.Context) (uint64, error) {
	var amount *ledger.TokenAmount
	err := r.o.withRetry(ctx, "getTokenAccountBalance", func(ctx context.Context) error {
		var err error
		amount, err = r.o.ledger.GetTokenAccountBalance(ctx, r.plan.Holder.String(), r.o.commitment)
		return err
	})
	if err != nil {
		return 0, err
	}
	if amount == nil {
		return 0, fmt.Errorf("%w: holder account %s not found", ErrBalanceInvariant, r.plan.Holder)
	}
	if amount.Amount != 1 || amount.Decimals != 0 {
		return 0, fmt.Errorf("%w: holder %s has amount %d with %d decimals",
			ErrBalanceInvariant, r.plan.Holder, amount.Amount, amount.Decimals)
	}
	return amount.Amount, nil
}

// transition records a state change and publishes it.
func (r *mintRun) transition(ctx context.Context, tp *TxProgress, state domain.SubmissionState, reason string) {
	tp.State = state
	tp.Reason = reason

	if state != domain.SubmissionBuilt {
		observability.RecordSubmission(string(state), state == domain.SubmissionSubmitted && tp.Attempts == 1)
	}

	ev := r.log.Info()
	switch state {
	case domain.SubmissionTimedOut:
		ev = r.log.Warn().Str("reason", reason)
	case domain.SubmissionFailed:
		ev = r.log.Error().Str("reason", reason)
	}
	ev.Int("tx", tp.Index).Int("attempt", tp.Attempts).Str("signature", tp.Signature).Str("state", string(state)).Msg("transaction state")

	if r.o.sink == nil {
		return
	}
	event := domain.SubmissionEvent{
		EventID:   idhash.ComputeEventID(r.progress.RequestID, tp.Index, tp.Attempts, state, tp.Signature),
		RequestID: r.progress.RequestID,
		Mint:      r.progress.Mint,
		TxIndex:   tp.Index,
		Attempt:   tp.Attempts,
		State:     state,
		Signature: tp.Signature,
		Reason:    reason,
		Timestamp: r.o.now().UnixMilli(),
	}
	if err := r.o.sink.Publish(ctx, event); err != nil {
		r.log.Warn().Err(err).Str("event_id", event.EventID).Msg("publish submission event")
	}
}

// result assembles the success descriptor.
func (r *mintRun) result(balance uint64) *domain.MintResult {
	p := r.plan
	res := &domain.MintResult{
		Mint: domain.MintDescriptor{
			Address:         p.Mint.String(),
			Decimals:        p.Decimals,
			MintAuthority:   p.MintAuthority.String(),
			FreezeAuthority: p.FreezeAuthority.String(),
		},
		Holder: domain.HolderAccount{
			Address: p.Holder.String(),
			Owner:   p.Owner.String(),
			Mint:    p.Mint.String(),
			Balance: balance,
		},
		Signatures: r.progress.Signatures(),
	}
	if !p.MasterEdition.IsZero() {
		// The edition takes over both authorities.
		res.MasterEdition = p.MasterEdition.String()
		res.Mint.MintAuthority = res.MasterEdition
		res.Mint.FreezeAuthority = res.MasterEdition
	}
	if p.HasMetadata() {
		res.Metadata = metadataRecord(p)
	}
	return res
}

// metadataRecord reads the descriptive fields back out of the plan's payloads.
func metadataRecord(p *composer.Plan) *domain.MetadataRecord {
	rec := &domain.MetadataRecord{Address: p.Metadata.String()}
	for _, ix := range p.Instructions {
		switch ix.Kind {
		case instruction.KindCreateMetadata:
			if args, err := instruction.DecodeCreateMetadata(ix.Payload); err == nil {
				fillMetadata(rec, args.Data)
				rec.Mutable = args.IsMutable
			}
		case instruction.KindFreezeMetadata:
			rec.Mutable = false
		case instruction.KindMintNFT:
			if data, err := instruction.DecodeMintNFT(ix.Payload); err == nil {
				fillMetadata(rec, data)
			}
			rec.Mutable = false
		}
	}
	return rec
}

func fillMetadata(rec *domain.MetadataRecord, d instruction.DataV2) {
	rec.Name = d.Name
	rec.Symbol = d.Symbol
	rec.URI = d.URI
	rec.SellerFeeBasisPoints = d.SellerFeeBasisPoints
}
