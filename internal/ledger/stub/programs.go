package stub

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solana-nft-minter/internal/instruction"
	"solana-nft-minter/internal/pda"
)

// Account sizes used for rent of accounts the programs allocate.
const (
	metadataAccountSize = 679
	editionAccountSize  = 282
)

// programError is an instruction failure in the ledger's own words.
type programError struct {
	reason string
	log    string
}

func (e *programError) Error() string { return e.reason }

func custom(code int, log string) *programError {
	return &programError{reason: fmt.Sprintf("custom program error: 0x%x", code), log: log}
}

func failure(reason string) *programError {
	return &programError{reason: reason}
}

var (
	errMissingSignature = failure("missing required signature for instruction")
	errReadonlyModified = failure("instruction modified data of a read-only account")
	errNotEnoughKeys    = failure("insufficient account keys for instruction")
	errInvalidData      = failure("invalid instruction data")
	errAccountData      = failure("invalid account data for instruction")
	errIncorrectProgram = failure("incorrect program id for instruction")
)

// ixContext is one compiled instruction resolved against its transaction.
type ixContext struct {
	program  solana.PublicKey
	keys     []solana.PublicKey
	signer   []bool
	writable []bool
	data     []byte
}

func (c *ixContext) need(n int) error {
	if len(c.keys) < n {
		return errNotEnoughKeys
	}
	return nil
}

func (c *ixContext) mustSign(i int) error {
	if !c.signer[i] {
		return errMissingSignature
	}
	return nil
}

func (c *ixContext) mustWrite(i int) error {
	if !c.writable[i] {
		return errReadonlyModified
	}
	return nil
}

// executor applies instructions for the programs the stub knows.
type executor struct {
	st          *state
	rent        func(size uint64) uint64
	mintProgram solana.PublicKey
}

func (x *executor) execute(c *ixContext) error {
	switch {
	case c.program.Equals(solana.SystemProgramID):
		return x.system(c)
	case c.program.Equals(solana.TokenProgramID):
		return x.token(c)
	case c.program.Equals(solana.SPLAssociatedTokenAccountProgramID):
		return x.associated(c)
	case c.program.Equals(solana.TokenMetadataProgramID):
		return x.metadata(c)
	case !x.mintProgram.IsZero() && c.program.Equals(x.mintProgram):
		return x.mintNFT(c)
	default:
		return failure("Attempt to load a program that does not exist")
	}
}

func (x *executor) debit(payer solana.PublicKey, lamports uint64) error {
	acct := x.st.edit(payer)
	if acct.lamports < lamports {
		return custom(1, fmt.Sprintf("Transfer: insufficient lamports %d, need %d", acct.lamports, lamports))
	}
	acct.lamports -= lamports
	return nil
}

// allocate creates a program-owned account at addr funded by payer.
func (x *executor) allocate(payer, addr, owner solana.PublicKey, lamports, space uint64) (*account, error) {
	if x.st.get(addr).exists() {
		return nil, custom(0, fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", addr))
	}
	if lamports < x.rent(space) {
		return nil, failure(fmt.Sprintf("Transaction results in an account (%s) with insufficient funds for rent", addr))
	}
	if err := x.debit(payer, lamports); err != nil {
		return nil, err
	}
	acct := x.st.edit(addr)
	acct.lamports += lamports
	acct.owner = owner
	acct.space = space
	return acct, nil
}

func (x *executor) system(c *ixContext) error {
	args, err := instruction.DecodeCreateAccount(c.data)
	if err != nil {
		return errInvalidData
	}
	if err := c.need(2); err != nil {
		return err
	}
	for i := 0; i < 2; i++ {
		if err := c.mustSign(i); err != nil {
			return err
		}
		if err := c.mustWrite(i); err != nil {
			return err
		}
	}
	_, err = x.allocate(c.keys[0], c.keys[1], args.Owner, args.Lamports, args.Space)
	return err
}

func (x *executor) liveMint(k solana.PublicKey) (*account, error) {
	acct := x.st.get(k)
	if acct == nil || !acct.owner.Equals(solana.TokenProgramID) || acct.mint == nil || !acct.mint.initialized {
		return nil, custom(2, "Error: Invalid Mint")
	}
	return acct, nil
}

func (x *executor) token(c *ixContext) error {
	op, ok := instruction.Opcode(c.data)
	if !ok {
		return errInvalidData
	}
	switch op {
	case instruction.OpInitializeMint:
		args, err := instruction.DecodeInitializeMint(c.data)
		if err != nil {
			return errInvalidData
		}
		if err := c.need(2); err != nil {
			return err
		}
		if err := c.mustWrite(0); err != nil {
			return err
		}
		if !c.keys[1].Equals(solana.SysVarRentPubkey) {
			return errAccountData
		}
		acct := x.st.get(c.keys[0])
		if acct == nil || !acct.owner.Equals(solana.TokenProgramID) {
			return errIncorrectProgram
		}
		if acct.mint != nil && acct.mint.initialized {
			return custom(6, "Error: account or token already in use")
		}
		if acct.space != instruction.MintAccountSize {
			return errAccountData
		}
		m := x.st.edit(c.keys[0])
		m.mint = &mintState{
			authority:       args.MintAuthority,
			freezeAuthority: args.FreezeAuthority,
			decimals:        args.Decimals,
			initialized:     true,
		}
		return nil

	case instruction.OpMintTo:
		amount, err := instruction.DecodeMintTo(c.data)
		if err != nil {
			return errInvalidData
		}
		if err := c.need(3); err != nil {
			return err
		}
		if err := c.mustWrite(0); err != nil {
			return err
		}
		if err := c.mustWrite(1); err != nil {
			return err
		}
		mint, err := x.liveMint(c.keys[0])
		if err != nil {
			return err
		}
		if !mint.mint.authority.Equals(c.keys[2]) {
			return custom(4, "Error: owner does not match")
		}
		if err := c.mustSign(2); err != nil {
			return err
		}
		holder := x.st.get(c.keys[1])
		if holder == nil || holder.token == nil {
			return custom(0xd, "Error: UninitializedState")
		}
		if !holder.token.mint.Equals(c.keys[0]) {
			return custom(3, "Error: Account not associated with this Mint")
		}
		x.st.edit(c.keys[0]).mint.supply += amount
		x.st.edit(c.keys[1]).token.amount += amount
		return nil

	default:
		return errInvalidData
	}
}

func (x *executor) createHolder(payer, holder, owner, mint solana.PublicKey, idempotent bool) error {
	want, _, err := pda.AssociatedTokenAddress(owner, mint)
	if err != nil || !want.Equals(holder) {
		return failure("Provided seeds do not result in a valid address")
	}
	if _, err := x.liveMint(mint); err != nil {
		return err
	}
	if existing := x.st.get(holder); existing.exists() {
		if idempotent && existing.token != nil && existing.token.owner.Equals(owner) && existing.token.mint.Equals(mint) {
			return nil
		}
		return custom(0, fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", holder))
	}
	acct, err := x.allocate(payer, holder, solana.TokenProgramID, x.rent(instruction.TokenAccountSize), instruction.TokenAccountSize)
	if err != nil {
		return err
	}
	acct.token = &tokenState{mint: mint, owner: owner}
	return nil
}

func (x *executor) associated(c *ixContext) error {
	idempotent := len(c.data) == 1 && c.data[0] == instruction.OpCreateIdempotent
	if len(c.data) > 1 || (len(c.data) == 1 && !idempotent && c.data[0] != 0) {
		return errInvalidData
	}
	if err := c.need(6); err != nil {
		return err
	}
	if err := c.mustSign(0); err != nil {
		return err
	}
	if err := c.mustWrite(1); err != nil {
		return err
	}
	if !c.keys[4].Equals(solana.SystemProgramID) || !c.keys[5].Equals(solana.TokenProgramID) {
		return errIncorrectProgram
	}
	return x.createHolder(c.keys[0], c.keys[1], c.keys[2], c.keys[3], idempotent)
}

// Metadata program errors.
func errInvalidMetadataKey() *programError { return custom(0x5, "Error: InvalidMetadataKey") }
func errInvalidEditionKey() *programError  { return custom(0x6, "Error: InvalidEditionKey") }
func errUpdateAuthority() *programError    { return custom(0x7, "Error: UpdateAuthorityIncorrect") }
func errAlreadyInitialized() *programError { return custom(0x3, "Error: AlreadyInitialized") }
func errMintAuthority() *programError      { return custom(0x27, "Error: InvalidMintAuthority") }
func errImmutable() *programError          { return custom(0x1a, "Error: DataIsImmutable") }
func errEditionSupply() *programError      { return custom(0x3a, "Error: EditionsMustHaveExactlyOneToken") }

func (x *executor) createMetadata(payer, mdKey, mintKey, mintAuthority, updateAuthority solana.PublicKey, data instruction.DataV2, mutable bool) error {
	want, _, err := pda.MetadataAddress(mintKey)
	if err != nil || !want.Equals(mdKey) {
		return errInvalidMetadataKey()
	}
	mint, err := x.liveMint(mintKey)
	if err != nil {
		return err
	}
	if !mint.mint.authority.Equals(mintAuthority) {
		return errMintAuthority()
	}
	if x.st.get(mdKey).exists() {
		return errAlreadyInitialized()
	}
	if err := data.Validate(); err != nil {
		return custom(0xb, "Error: "+err.Error())
	}
	acct, err := x.allocate(payer, mdKey, solana.TokenMetadataProgramID, x.rent(metadataAccountSize), metadataAccountSize)
	if err != nil {
		return err
	}
	acct.metadata = &metadataState{updateAuthority: updateAuthority, mint: mintKey, data: data, mutable: mutable}
	return nil
}

func (x *executor) metadata(c *ixContext) error {
	op, ok := instruction.Opcode(c.data)
	if !ok {
		return errInvalidData
	}
	switch op {
	case instruction.OpCreateMetadata:
		args, err := instruction.DecodeCreateMetadata(c.data)
		if err != nil {
			return errInvalidData
		}
		if err := c.need(7); err != nil {
			return err
		}
		// metadata, mint, mint_authority, payer, update_authority, system, rent
		if err := c.mustWrite(0); err != nil {
			return errInvalidMetadataKey()
		}
		if err := x.createMetadata(c.keys[3], c.keys[0], c.keys[1], c.keys[2], c.keys[4], args.Data, args.IsMutable); err != nil {
			return err
		}
		if err := c.mustSign(2); err != nil {
			return err
		}
		if err := c.mustSign(3); err != nil {
			return err
		}
		return nil

	case instruction.OpCreateMasterEdition:
		maxSupply, err := instruction.DecodeMasterEdition(c.data)
		if err != nil {
			return errInvalidData
		}
		if err := c.need(9); err != nil {
			return err
		}
		// edition, mint, update_authority, mint_authority, payer, metadata, token, system, rent
		editionKey, mintKey, mdKey := c.keys[0], c.keys[1], c.keys[5]
		want, _, err := pda.MasterEditionAddress(mintKey)
		if err != nil || !want.Equals(editionKey) {
			return errInvalidEditionKey()
		}
		md := x.st.get(mdKey)
		if md == nil || md.metadata == nil || !md.metadata.mint.Equals(mintKey) {
			return errInvalidMetadataKey()
		}
		if !md.metadata.updateAuthority.Equals(c.keys[2]) {
			return errUpdateAuthority()
		}
		mint, err := x.liveMint(mintKey)
		if err != nil {
			return err
		}
		if !mint.mint.authority.Equals(c.keys[3]) {
			return errMintAuthority()
		}
		if mint.mint.supply != 1 {
			return errEditionSupply()
		}
		for _, i := range []int{2, 3, 4} {
			if err := c.mustSign(i); err != nil {
				return err
			}
		}
		acct, err := x.allocate(c.keys[4], editionKey, solana.TokenMetadataProgramID, x.rent(editionAccountSize), editionAccountSize)
		if err != nil {
			return err
		}
		acct.edition = &editionState{maxSupply: maxSupply}
		// The edition takes over both authorities of the mint.
		m := x.st.edit(mintKey).mint
		m.authority = editionKey
		m.freezeAuthority = &editionKey
		return nil

	case instruction.OpUpdateMetadata:
		if !instruction.IsFreezeMetadata(c.data) {
			return errInvalidData
		}
		if err := c.need(2); err != nil {
			return err
		}
		md := x.st.get(c.keys[0])
		if md == nil || md.metadata == nil {
			return errInvalidMetadataKey()
		}
		if !md.metadata.updateAuthority.Equals(c.keys[1]) {
			return errUpdateAuthority()
		}
		if err := c.mustSign(1); err != nil {
			return err
		}
		if !md.metadata.mutable {
			return errImmutable()
		}
		x.st.edit(c.keys[0]).metadata.mutable = false
		return nil

	default:
		return errInvalidData
	}
}

// mintNFT performs the custom minting program's single-instruction mint.
func (x *executor) mintNFT(c *ixContext) error {
	data, err := instruction.DecodeMintNFT(c.data)
	if err != nil {
		return custom(0x65, "AnchorError: InstructionFallbackNotFound")
	}
	// The program's account order is defined by its layout only.
	at := func(name string) int { return instruction.AccountIndex(instruction.KindMintNFT, name) }
	if err := c.need(len(instruction.Layouts[instruction.KindMintNFT])); err != nil {
		return err
	}
	payer, mintKey, mdKey := c.keys[at("payer")], c.keys[at("mint")], c.keys[at("metadata")]
	authority, holder := c.keys[at("mint_authority")], c.keys[at("holder")]
	if err := c.mustSign(at("payer")); err != nil {
		return err
	}
	if err := c.mustSign(at("mint")); err != nil {
		return err
	}
	wantAuth, _, err := pda.MintAuthorityAddress(x.mintProgram)
	if err != nil || !wantAuth.Equals(authority) {
		return custom(0x7d6, "AnchorError caused by account: mint_authority. Error Code: ConstraintSeeds")
	}

	if _, err := x.allocate(payer, mintKey, solana.TokenProgramID, x.rent(instruction.MintAccountSize), instruction.MintAccountSize); err != nil {
		return err
	}
	x.st.edit(mintKey).mint = &mintState{authority: authority, freezeAuthority: &authority, initialized: true}
	if err := x.createHolder(payer, holder, payer, mintKey, true); err != nil {
		return err
	}
	x.st.edit(mintKey).mint.supply++
	x.st.edit(holder).token.amount++

	data.Creators = []instruction.Creator{{Address: payer, Verified: true, Share: 100}}
	return x.createMetadata(payer, mdKey, mintKey, authority, payer, data, false)
}
