package stub

import (
	"context"
	"strings"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/instruction"
	"solana-nft-minter/internal/ledger"
	"solana-nft-minter/internal/pda"
)

var testProgram = solana.MustPublicKeyFromBase58("FHPZSYygxX52f3op5TndwoN5Cadyixu4zTc2g13HAasP")

func testMetadata() *composer.Metadata {
	return &composer.Metadata{Name: "My Test NFT", Symbol: "TNFT", URI: "https://example.com/nft.json", SellerFeeBasisPoints: 500}
}

// signed builds and signs one transaction over ixs.
func signed(t *testing.T, l *Ledger, ixs []instruction.Instruction, payer solana.PrivateKey, others ...solana.PrivateKey) []byte {
	t.Helper()
	bh, err := l.GetLatestBlockhash(context.Background(), ledger.CommitmentConfirmed)
	require.NoError(t, err)
	hash, err := solana.HashFromBase58(bh.Hash)
	require.NoError(t, err)

	list := make([]solana.Instruction, len(ixs))
	for i := range ixs {
		list[i] = ixs[i]
	}
	tx, err := solana.NewTransaction(list, hash, solana.TransactionPayer(payer.PublicKey()))
	require.NoError(t, err)

	keys := append([]solana.PrivateKey{payer}, others...)
	_, err = tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	})
	require.NoError(t, err)
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func directPlan(t *testing.T, req composer.Request) *composer.Plan {
	t.Helper()
	c, err := composer.New(composer.ModeDirect, solana.PublicKey{})
	require.NoError(t, err)
	plan, err := c.Compose(req, rentExempt(instruction.MintAccountSize))
	require.NoError(t, err)
	return plan
}

func TestLedger_DirectMint(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{
		Payer: payer.PublicKey(), Mint: mint.PublicKey(), Metadata: testMetadata(), Immutable: true,
	})

	sig, err := l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	require.NoError(t, err)

	conf, err := l.Confirm(ctx, sig, ledger.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, conf.Status)

	amount, err := l.GetTokenAccountBalance(ctx, plan.Holder.String(), ledger.CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, amount)
	assert.Equal(t, uint64(1), amount.Amount)
	assert.Equal(t, uint8(0), amount.Decimals)

	info, err := l.GetAccountInfo(ctx, plan.Metadata.String())
	require.NoError(t, err)
	require.NotNil(t, info)
	md, err := ledger.ParseMetadataAccount(info.Data)
	require.NoError(t, err)
	assert.Equal(t, "My Test NFT", md.Name)
	assert.Equal(t, "TNFT", md.Symbol)
	assert.Equal(t, uint16(500), md.SellerFeeBasisPoints)
	assert.Equal(t, mint.PublicKey().String(), md.Mint)

	info, err = l.GetAccountInfo(ctx, mint.PublicKey().String())
	require.NoError(t, err)
	m, err := ledger.ParseMintAccount(info.Data)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.Supply)
	assert.Equal(t, payer.PublicKey().String(), m.MintAuthority)

	assert.Less(t, l.Lamports(payer.PublicKey()), uint64(1_000_000_000))
}

func TestLedger_DuplicateSignature(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})
	raw := signed(t, l, plan.Instructions, payer, mint)

	_, err := l.SendTransaction(ctx, raw, ledger.SendOptions{})
	require.NoError(t, err)
	_, err = l.SendTransaction(ctx, raw, ledger.SendOptions{})
	assert.True(t, ledger.IsAlreadyProcessed(err), "got %v", err)

	balances := l.HolderBalances(mint.PublicKey())
	assert.Equal(t, map[solana.PublicKey]uint64{plan.Holder: 1}, balances)
}

func TestLedger_MintAccountReuseRejected(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})
	_, err := l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	require.NoError(t, err)

	// Same instructions, fresh blockhash: a new signature over an existing mint.
	_, err = l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	var rej *ledger.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "already in use")
	assert.Equal(t, 1, l.Rejections())
}

func TestLedger_CorruptSignature(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})
	raw := signed(t, l, plan.Instructions, payer, mint)
	raw[70] ^= 0xff // inside the second signature

	_, err := l.SendTransaction(ctx, raw, ledger.SendOptions{})
	var rej *ledger.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "signature verification failure")
	assert.Empty(t, l.HolderBalances(mint.PublicKey()))
}

func TestLedger_MetadataAccountOrderMismatch(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey(), Metadata: testMetadata()})
	ixs := append([]instruction.Instruction(nil), plan.Instructions...)
	md := ixs[4].Clone()
	md.Metas[0].PublicKey, md.Metas[1].PublicKey = md.Metas[1].PublicKey, md.Metas[0].PublicKey
	ixs[4] = md

	_, err := l.SendTransaction(ctx, signed(t, l, ixs, payer, mint), ledger.SendOptions{})
	var rej *ledger.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, "Transaction simulation failed: Error processing Instruction 4: custom program error: 0x5", rej.Reason)
	assert.True(t, strings.Contains(strings.Join(rej.Logs, "\n"), "InvalidMetadataKey"))

	// Atomic: nothing from the rejected transaction landed.
	assert.Empty(t, l.HolderBalances(mint.PublicKey()))
	assert.Equal(t, uint64(1_000_000_000), l.Lamports(payer.PublicKey()))
}

func TestLedger_SkipPreflightRecordsFailure(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})
	// mint-to before the mint is initialized fails on-chain
	ixs := []instruction.Instruction{plan.Instructions[0], plan.Instructions[3]}
	sig, err := l.SendTransaction(ctx, signed(t, l, ixs, payer, mint), ledger.SendOptions{SkipPreflight: true})
	require.NoError(t, err)

	conf, err := l.Confirm(ctx, sig, ledger.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusFailed, conf.Status)
	assert.Contains(t, conf.Err, "InstructionError")

	tx, err := l.GetTransaction(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.NotEmpty(t, tx.Logs)

	assert.Equal(t, uint64(1_000_000_000-2*LamportsPerSignature), l.Lamports(payer.PublicKey()))
}

func TestLedger_MasterEdition(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	supply := uint64(0)
	plan := directPlan(t, composer.Request{
		Payer: payer.PublicKey(), Mint: mint.PublicKey(), Metadata: testMetadata(),
		MasterEdition: true, MaxSupply: &supply,
	})
	_, err := l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	require.NoError(t, err)

	info, err := l.GetAccountInfo(ctx, mint.PublicKey().String())
	require.NoError(t, err)
	m, err := ledger.ParseMintAccount(info.Data)
	require.NoError(t, err)
	assert.Equal(t, plan.MasterEdition.String(), m.MintAuthority)

	edition, err := l.GetAccountInfo(ctx, plan.MasterEdition.String())
	require.NoError(t, err)
	require.NotNil(t, edition)
	assert.Equal(t, solana.TokenMetadataProgramID.String(), edition.Owner)
}

func TestLedger_ProgramMint(t *testing.T) {
	ctx := context.Background()
	l := New(WithMintProgram(testProgram))
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	c, err := composer.New(composer.ModeProgram, testProgram)
	require.NoError(t, err)
	plan, err := c.Compose(composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey(), Metadata: testMetadata()}, 0)
	require.NoError(t, err)

	_, err = l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	require.NoError(t, err)

	amount, err := l.GetTokenAccountBalance(ctx, plan.Holder.String(), ledger.CommitmentConfirmed)
	require.NoError(t, err)
	require.NotNil(t, amount)
	assert.Equal(t, uint64(1), amount.Amount)

	auth, _, err := pda.MintAuthorityAddress(testProgram)
	require.NoError(t, err)
	info, err := l.GetAccountInfo(ctx, mint.PublicKey().String())
	require.NoError(t, err)
	m, err := ledger.ParseMintAccount(info.Data)
	require.NoError(t, err)
	assert.Equal(t, auth.String(), m.MintAuthority)
}

func TestLedger_ProgramNotDeployed(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)

	c, err := composer.New(composer.ModeProgram, testProgram)
	require.NoError(t, err)
	plan, err := c.Compose(composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey(), Metadata: testMetadata()}, 0)
	require.NoError(t, err)

	_, err = l.SendTransaction(ctx, signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	var rej *ledger.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "program that does not exist")
}

func TestLedger_UnfundedPayer(t *testing.T) {
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})

	_, err := l.SendTransaction(context.Background(), signed(t, l, plan.Instructions, payer, mint), ledger.SendOptions{})
	var rej *ledger.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Contains(t, rej.Reason, "no record of a prior credit")
}

func TestLedger_Knobs(t *testing.T) {
	ctx := context.Background()
	l := New()
	payer, mint := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	l.Fund(payer.PublicKey(), 1_000_000_000)
	plan := directPlan(t, composer.Request{Payer: payer.PublicKey(), Mint: mint.PublicKey()})
	raw := signed(t, l, plan.Instructions, payer, mint)

	l.FailSends(1, true)
	_, err := l.SendTransaction(ctx, raw, ledger.SendOptions{})
	var netErr *ledger.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 1, l.Landed())

	l.HideConfirmations(2)
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	require.NoError(t, err)
	sig := tx.Signatures[0].String()
	for i := 0; i < 2; i++ {
		conf, err := l.Confirm(ctx, sig, ledger.CommitmentConfirmed)
		require.NoError(t, err)
		assert.Equal(t, ledger.StatusPending, conf.Status)
	}
	conf, err := l.Confirm(ctx, sig, ledger.CommitmentConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusConfirmed, conf.Status)

	l.FailBalance(assert.AnError)
	_, err = l.GetBalance(ctx, payer.PublicKey().String(), ledger.CommitmentConfirmed)
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 1, l.Sends())
}
