package orchestrator

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/instruction"
)

func fullPlan(t *testing.T) (*composer.Plan, *fixture) {
	t.Helper()
	f := newFixture(0)
	req := f.request(testMetadata())
	req.MasterEdition = true
	req.Immutable = true
	return compose(t, f, req), f
}

func kindsOf(batches [][]instruction.Instruction) []instruction.Kind {
	var out []instruction.Kind
	for _, b := range batches {
		for _, ix := range b {
			out = append(out, ix.Kind)
		}
	}
	return out
}

func TestPack_FullPlanFitsOneTransaction(t *testing.T) {
	plan, _ := fullPlan(t)
	batches, err := pack(plan, DefaultMaxTransactionSize, 0)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], len(plan.Instructions))

	size, err := wireSize(plan.Payer, batches[0])
	require.NoError(t, err)
	assert.LessOrEqual(t, size, DefaultMaxTransactionSize)
}

func TestPack_InstructionLimitPreservesOrder(t *testing.T) {
	plan, _ := fullPlan(t)
	batches, err := pack(plan, DefaultMaxTransactionSize, 2)
	require.NoError(t, err)
	require.Len(t, batches, 4)
	for _, b := range batches {
		assert.LessOrEqual(t, len(b), 2)
	}

	want := make([]instruction.Kind, len(plan.Instructions))
	for i, ix := range plan.Instructions {
		want[i] = ix.Kind
	}
	assert.Equal(t, want, kindsOf(batches))
	assert.Equal(t, []instruction.Kind{instruction.KindCreateMintAccount, instruction.KindInitializeMint}, kindsOf(batches[:1]))
}

func TestPack_SizeLimit(t *testing.T) {
	plan, _ := fullPlan(t)
	const limit = 600
	batches, err := pack(plan, limit, 0)
	require.NoError(t, err)
	assert.Greater(t, len(batches), 1)
	for _, b := range batches {
		size, err := wireSize(plan.Payer, b)
		require.NoError(t, err)
		assert.LessOrEqual(t, size, limit)
	}
	assert.Len(t, kindsOf(batches), len(plan.Instructions))
}

func TestPack_InstructionTooLarge(t *testing.T) {
	plan, _ := fullPlan(t)
	_, err := pack(plan, 200, 0)
	require.ErrorIs(t, err, composer.ErrInvalidRequest)
	assert.Equal(t, KindInvalidRequest, KindOf(err))
}

func TestSignersOf_MintSignsOnlyItsCreation(t *testing.T) {
	plan, f := fullPlan(t)
	batches, err := pack(plan, DefaultMaxTransactionSize, 2)
	require.NoError(t, err)

	assert.Equal(t, []solana.PublicKey{f.payer.PublicKey(), f.mint.PublicKey()}, signersOf(plan.Payer, batches[0]))
	for _, b := range batches[1:] {
		assert.Equal(t, []solana.PublicKey{f.payer.PublicKey()}, signersOf(plan.Payer, b))
	}
}

func TestCompactLen(t *testing.T) {
	assert.Equal(t, 1, compactLen(2))
	assert.Equal(t, 1, compactLen(0x7f))
	assert.Equal(t, 2, compactLen(0x80))
	assert.Equal(t, 3, compactLen(0x4000))
}
