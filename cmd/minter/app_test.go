package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/config"
	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/ledger/stub"
	"solana-nft-minter/internal/orchestrator"
	"solana-nft-minter/internal/pda"
	"solana-nft-minter/internal/storage/memory"
)

const oneSOL = 1_000_000_000

type testEnv struct {
	app    *app
	ledger *stub.Ledger
	payer  solana.PrivateKey
	out    *bytes.Buffer
}

func newTestEnv(t *testing.T, funded uint64) *testEnv {
	t.Helper()

	cfg := config.Default()
	cfg.ConfirmTimeout = time.Second
	cfg.PollInitialDelay = time.Millisecond
	cfg.PollMaxDelay = 5 * time.Millisecond
	cfg.KeypairPath = filepath.Join(t.TempDir(), "missing.json")

	env := &testEnv{
		ledger: stub.New(),
		payer:  solana.NewWallet().PrivateKey,
		out:    &bytes.Buffer{},
	}
	if funded > 0 {
		env.ledger.Fund(env.payer.PublicKey(), funded)
	}
	env.app = &app{
		cfg:     cfg,
		logger:  zerolog.Nop(),
		chain:   env.ledger,
		records: memory.NewMintRecordStore(),
		events:  memory.NewSubmissionEventStore(),
		out:     env.out,
	}
	require.NoError(t, env.app.build())
	return env
}

func testSpec() mintSpec {
	return mintSpec{Metadata: &composer.Metadata{
		Name:                 "My Test NFT",
		Symbol:               "TNFT",
		URI:                  "https://example.com/nft.json",
		SellerFeeBasisPoints: 500,
	}}
}

func TestMint_RecordsAndPublishes(t *testing.T) {
	env := newTestEnv(t, oneSOL)
	ctx := context.Background()

	out := env.app.mint(ctx, env.payer, testSpec())
	require.Empty(t, out.Error)
	require.NotNil(t, out.Result)
	assert.Len(t, out.RequestID, 64)
	assert.Equal(t, "https://solscan.io/token/"+out.Result.Mint.Address+"?cluster=devnet", out.Explorer)

	rec, err := env.app.records.GetByMint(ctx, out.Result.Mint.Address)
	require.NoError(t, err)
	assert.Equal(t, out.RequestID, rec.RequestID)
	assert.Equal(t, domain.MintModeDirect, rec.Mode)
	assert.Equal(t, env.payer.PublicKey().String(), rec.Payer)
	assert.Equal(t, env.payer.PublicKey().String(), rec.Owner)
	require.NotNil(t, rec.Name)
	assert.Equal(t, "My Test NFT", *rec.Name)
	assert.Equal(t, out.Result.Signatures, rec.Signatures)

	events, err := env.app.events.GetByRequestID(ctx, out.RequestID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, domain.SubmissionConfirmed, events[len(events)-1].State)
}

func TestMint_SeparateOwner(t *testing.T) {
	env := newTestEnv(t, oneSOL)
	owner := solana.NewWallet().PublicKey()

	spec := testSpec()
	spec.Owner = owner.String()
	out := env.app.mint(context.Background(), env.payer, spec)
	require.Empty(t, out.Error)

	holder, _, err := pda.AssociatedTokenAddress(owner, solana.MustPublicKeyFromBase58(out.Result.Mint.Address))
	require.NoError(t, err)
	assert.Equal(t, holder.String(), out.Result.Holder.Address)
	assert.Equal(t, owner.String(), out.Result.Holder.Owner)
}

func TestMint_Failures(t *testing.T) {
	t.Run("unfunded payer", func(t *testing.T) {
		env := newTestEnv(t, 0)
		out := env.app.mint(context.Background(), env.payer, testSpec())
		assert.Equal(t, string(orchestrator.KindInsufficientFunds), out.Kind)
		assert.Equal(t, 3, exitCode(out.err))
		assert.Equal(t, 0, env.ledger.Sends())
	})

	t.Run("bad owner", func(t *testing.T) {
		env := newTestEnv(t, oneSOL)
		spec := testSpec()
		spec.Owner = "not-an-address"
		out := env.app.mint(context.Background(), env.payer, spec)
		assert.Equal(t, string(orchestrator.KindInvalidRequest), out.Kind)
		assert.Empty(t, out.RequestID)
		assert.Equal(t, 0, env.ledger.BalanceCalls())
	})

	t.Run("metadata too long", func(t *testing.T) {
		env := newTestEnv(t, oneSOL)
		spec := testSpec()
		spec.Metadata.Name = strings.Repeat("x", 64)
		out := env.app.mint(context.Background(), env.payer, spec)
		assert.Equal(t, string(orchestrator.KindInvalidRequest), out.Kind)
		assert.Equal(t, 0, env.ledger.Sends())
	})
}

func TestMint_FailureKeepsSubmissionState(t *testing.T) {
	env := newTestEnv(t, oneSOL)
	env.app.cfg.MaxAttempts = 1
	env.app.cfg.ConfirmTimeout = 20 * time.Millisecond
	require.NoError(t, env.app.build())
	env.ledger.DropSends(1)

	out := env.app.mint(context.Background(), env.payer, testSpec())
	require.Equal(t, string(orchestrator.KindSubmissionExhausted), out.Kind)
	assert.Equal(t, 5, exitCode(out.err))
	assert.NotEmpty(t, out.Mint)
	require.Len(t, out.Transactions, 1)
	tx := out.Transactions[0]
	assert.Equal(t, string(domain.SubmissionTimedOut), tx.State)
	assert.Equal(t, 1, tx.Attempts)
	require.NotEmpty(t, tx.Signature)

	var text bytes.Buffer
	require.NoError(t, render(&text, "text", out))
	assert.Contains(t, text.String(), "Mint failed (SubmissionExhausted)")
	assert.Contains(t, text.String(), "Mint:        "+out.Mint)
	assert.Contains(t, text.String(), tx.Signature)

	var js bytes.Buffer
	require.NoError(t, render(&js, "json", out))
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	txs, ok := decoded["transactions"].([]interface{})
	require.True(t, ok)
	require.Len(t, txs, 1)
	assert.Equal(t, tx.Signature, txs[0].(map[string]interface{})["signature"])
}

func TestMintAll_IndependentOutcomes(t *testing.T) {
	env := newTestEnv(t, 10*oneSOL)
	env.app.cfg.Concurrency = 2

	bad := testSpec()
	bad.Owner = "bad"
	edition := testSpec()
	edition.MasterEdition = true
	zero := uint64(0)
	edition.MaxSupply = &zero

	outcomes := env.app.mintAll(context.Background(), env.payer, []mintSpec{testSpec(), bad, edition, {}})
	require.Len(t, outcomes, 4)

	assert.Empty(t, outcomes[0].Error)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.Empty(t, outcomes[2].Error)
	assert.NotEmpty(t, outcomes[2].Result.MasterEdition)
	assert.Empty(t, outcomes[3].Error)
	assert.Nil(t, outcomes[3].Result.Metadata)

	mints := map[string]bool{}
	for _, o := range []*mintOutcome{outcomes[0], outcomes[2], outcomes[3]} {
		mints[o.Result.Mint.Address] = true
	}
	assert.Len(t, mints, 3)

	recs, err := env.app.records.List(context.Background(), 0, time.Now().Add(time.Minute).UnixMilli())
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestVerify(t *testing.T) {
	env := newTestEnv(t, oneSOL)
	ctx := context.Background()

	out := env.app.mint(ctx, env.payer, testSpec())
	require.Empty(t, out.Error)
	mint := solana.MustPublicKeyFromBase58(out.Result.Mint.Address)

	// Owner resolved from the stored mint record
	v, err := env.app.verify(ctx, mint, "")
	require.NoError(t, err)
	assert.True(t, v.OK(), v.Problems)
	assert.Equal(t, uint64(1), v.Supply)
	assert.Equal(t, uint64(1), v.HolderBalance)
	assert.Equal(t, out.Result.Holder.Address, v.Holder)
	assert.Equal(t, "My Test NFT", v.Name)

	// A different owner has no holder account
	v, err = env.app.verify(ctx, mint, solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.False(t, v.OK())
	assert.Contains(t, v.Problems, "holder account does not exist")

	_, err = env.app.verify(ctx, solana.NewWallet().PublicKey(), "")
	assert.Error(t, err)
}

func TestBalance(t *testing.T) {
	env := newTestEnv(t, 30_000_000)

	r, err := env.app.balance(context.Background(), env.payer.PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(30_000_000), r.Lamports)
	assert.InDelta(t, 0.03, r.SOL, 1e-12)
	assert.False(t, r.Sufficient)

	var buf bytes.Buffer
	require.NoError(t, render(&buf, "text", r))
	assert.Contains(t, buf.String(), "Below the 50000000 lamport minimum")
}

func TestDerive(t *testing.T) {
	cfg := config.Default()
	mint := solana.NewWallet().PublicKey()
	owner := solana.NewWallet().PublicKey()

	d, err := derive(cfg, mint, owner.String(), nil, "")
	require.NoError(t, err)

	md, _, _ := pda.MetadataAddress(mint)
	ed, _, _ := pda.MasterEditionAddress(mint)
	holder, _, _ := pda.AssociatedTokenAddress(owner, mint)
	assert.Equal(t, md.String(), d.Metadata)
	assert.Equal(t, ed.String(), d.MasterEdition)
	assert.Equal(t, holder.String(), d.Holder)
	assert.Empty(t, d.MintAuthority)

	program := solana.NewWallet().PublicKey()
	cfg.ProgramID = program.String()
	d, err = derive(cfg, solana.PublicKey{}, "", []string{"mint-authority"}, program.String())
	require.NoError(t, err)
	authority, _, _ := pda.MintAuthorityAddress(program)
	assert.Equal(t, authority.String(), d.MintAuthority)
	assert.Equal(t, authority.String(), d.Custom)

	_, err = derive(config.Default(), solana.PublicKey{}, "", []string{"x"}, "")
	assert.Error(t, err)
	_, err = derive(config.Default(), solana.PublicKey{}, "", nil, "")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	env := newTestEnv(t, oneSOL)
	out := env.app.mint(context.Background(), env.payer, testSpec())
	require.Empty(t, out.Error)

	var text bytes.Buffer
	require.NoError(t, render(&text, "text", out))
	assert.Contains(t, text.String(), "Minted "+out.Result.Mint.Address)
	assert.Contains(t, text.String(), "Explorer:    https://solscan.io/token/")

	var js bytes.Buffer
	require.NoError(t, render(&js, "json", []*mintOutcome{out}))
	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, out.RequestID, decoded[0]["request_id"])

	assert.Error(t, render(&text, "yaml", out))
}

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mints:
  - metadata:
      name: First
      symbol: ONE
      uri: https://example.com/1.json
      seller_fee_basis_points: 250
    immutable: true
  - owner: "11111111111111111111111111111111"
    master_edition: true
    max_supply: 10
`), 0o600))

	specs, err := readBatch(path)
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "First", specs[0].Metadata.Name)
	assert.Equal(t, uint16(250), specs[0].Metadata.SellerFeeBasisPoints)
	assert.True(t, specs[0].Immutable)
	assert.Nil(t, specs[1].Metadata)
	require.NotNil(t, specs[1].MaxSupply)
	assert.Equal(t, uint64(10), *specs[1].MaxSupply)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("mints: []\n"), 0o600))
	_, err = readBatch(empty)
	assert.Error(t, err)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minter.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rpc_endpoint: http://file\nmax_attempts: 7\n"), 0o600))

	lookup := func(k string) (string, bool) {
		switch k {
		case "MINTER_RPC_ENDPOINT":
			return "http://env", true
		case "MINTER_LOG_LEVEL":
			return "debug", true
		}
		return "", false
	}

	cfg, err := loadConfig(&globalFlags{configPath: path, rpc: "http://flag", ws: "none"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, "http://flag", cfg.RPCEndpoint)
	assert.Empty(t, cfg.WSEndpoint)
	assert.Equal(t, 7, cfg.MaxAttempts)
	assert.Equal(t, "debug", cfg.LogLevel)

	_, err = loadConfig(&globalFlags{configPath: path, mode: "program"}, lookup)
	assert.Error(t, err)
}

func TestNewMintRecord(t *testing.T) {
	res := &domain.MintResult{
		Mint:          domain.MintDescriptor{Address: "Mint"},
		Holder:        domain.HolderAccount{Address: "Holder", Owner: "Owner"},
		MasterEdition: "Edition",
		Signatures:    []string{"s1", "s2"},
	}
	now := time.UnixMilli(1700000000000)

	r := newMintRecord("req", domain.MintModeProgram, "devnet", "Payer", res, now)
	assert.Equal(t, "Owner", r.Owner)
	assert.Equal(t, "Holder", r.Holder)
	require.NotNil(t, r.MasterEdition)
	assert.Equal(t, "Edition", *r.MasterEdition)
	assert.Nil(t, r.Metadata)
	assert.Nil(t, r.Name)
	assert.Equal(t, int64(1700000000000), r.CreatedAt)

	res.Signatures[0] = "changed"
	assert.Equal(t, "s1", r.Signatures[0])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(assert.AnError))
	assert.Equal(t, 4, exitCode(&orchestrator.Failure{Kind: orchestrator.KindRejectedByLedger}))
	assert.Equal(t, 5, exitCode(&orchestrator.Failure{Kind: orchestrator.KindTimedOut}))
	assert.Equal(t, 130, exitCode(&orchestrator.Failure{Kind: orchestrator.KindCanceled}))
	assert.Equal(t, 2, exitCode(&orchestrator.Failure{Kind: orchestrator.KindBalanceInvariant}))
}
