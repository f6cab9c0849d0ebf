package instruction

import (
	"errors"
	"fmt"
)

// ErrInvalidAccountFlags is returned when an instruction's accounts do not match the layout
// its program expects.
var ErrInvalidAccountFlags = errors.New("invalid account flags")

// AccountSpec describes one account position in an instruction layout.
type AccountSpec struct {
	Name     string
	Writable bool
	Signer   bool
}

// Layouts lists the account positions each kind must carry, in program order.
var Layouts = map[Kind][]AccountSpec{
	KindCreateMintAccount: {
		{Name: "payer", Writable: true, Signer: true},
		{Name: "mint", Writable: true, Signer: true},
	},
	KindInitializeMint: {
		{Name: "mint", Writable: true},
		{Name: "rent"},
	},
	KindCreateHolderAccount: {
		{Name: "payer", Writable: true, Signer: true},
		{Name: "holder", Writable: true},
		{Name: "owner"},
		{Name: "mint"},
		{Name: "system_program"},
		{Name: "token_program"},
	},
	KindMintTo: {
		{Name: "mint", Writable: true},
		{Name: "holder", Writable: true},
		{Name: "mint_authority", Signer: true},
	},
	KindCreateMetadata: {
		{Name: "metadata", Writable: true},
		{Name: "mint"},
		{Name: "mint_authority", Signer: true},
		{Name: "payer", Writable: true, Signer: true},
		{Name: "update_authority", Signer: true},
		{Name: "system_program"},
		{Name: "rent"},
	},
	KindCreateMasterEdition: {
		{Name: "edition", Writable: true},
		{Name: "mint", Writable: true},
		{Name: "update_authority", Signer: true},
		{Name: "mint_authority", Signer: true},
		{Name: "payer", Writable: true, Signer: true},
		{Name: "metadata", Writable: true},
		{Name: "token_program"},
		{Name: "system_program"},
		{Name: "rent"},
	},
	KindFreezeMetadata: {
		{Name: "metadata", Writable: true},
		{Name: "update_authority", Signer: true},
	},
	KindMintNFT: {
		{Name: "payer", Writable: true, Signer: true},
		{Name: "mint", Writable: true, Signer: true},
		{Name: "metadata", Writable: true},
		{Name: "mint_authority"},
		{Name: "holder", Writable: true},
		{Name: "system_program"},
		{Name: "token_program"},
		{Name: "associated_token_program"},
		{Name: "rent"},
		{Name: "token_metadata_program"},
	},
}

// Validate checks the account count and writable/signer flags of ix against its layout.
func Validate(ix Instruction) error {
	layout, ok := Layouts[ix.Kind]
	if !ok {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAccountFlags, ix.Kind)
	}
	if len(ix.Metas) != len(layout) {
		return fmt.Errorf("%w: %s expects %d accounts, got %d", ErrInvalidAccountFlags, ix.Kind, len(layout), len(ix.Metas))
	}
	for i, spec := range layout {
		m := ix.Metas[i]
		if m == nil {
			return fmt.Errorf("%w: %s account %s is nil", ErrInvalidAccountFlags, ix.Kind, spec.Name)
		}
		if m.PublicKey.IsZero() {
			return fmt.Errorf("%w: %s account %s is unset", ErrInvalidAccountFlags, ix.Kind, spec.Name)
		}
		if m.IsWritable != spec.Writable || m.IsSigner != spec.Signer {
			return fmt.Errorf("%w: %s account %s: writable=%t signer=%t, want writable=%t signer=%t",
				ErrInvalidAccountFlags, ix.Kind, spec.Name, m.IsWritable, m.IsSigner, spec.Writable, spec.Signer)
		}
	}
	return nil
}

// AccountIndex returns the position of the named account within kind's layout, or -1.
func AccountIndex(kind Kind, name string) int {
	for i, spec := range Layouts[kind] {
		if spec.Name == name {
			return i
		}
	}
	return -1
}
