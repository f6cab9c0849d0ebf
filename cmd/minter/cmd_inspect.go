package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"

	"solana-nft-minter/internal/config"
	"solana-nft-minter/internal/ledger"
	"solana-nft-minter/internal/pda"
)

const lamportsPerSOL = 1_000_000_000

// derivation lists the addresses derived for one mint.
type derivation struct {
	Mint          string `json:"mint,omitempty"`
	Metadata      string `json:"metadata,omitempty"`
	MasterEdition string `json:"master_edition,omitempty"`
	Holder        string `json:"holder,omitempty"`
	MintAuthority string `json:"mint_authority,omitempty"`
	Custom        string `json:"custom,omitempty"`
	CustomBump    uint8  `json:"custom_bump,omitempty"`
	CustomProgram string `json:"custom_program,omitempty"`
}

func newDeriveCmd(flags *globalFlags) *cobra.Command {
	var (
		owner   string
		seeds   []string
		program string
	)
	cmd := &cobra.Command{
		Use:   "derive [mint]",
		Short: "Print the addresses derived for a mint, or for arbitrary seeds",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, os.LookupEnv)
			if err != nil {
				return err
			}
			var mint solana.PublicKey
			if len(args) == 1 {
				if mint, err = solana.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("mint: %w", err)
				}
			}
			d, err := derive(cfg, mint, owner, seeds, program)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), flags.output, d)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Owner whose holder account to derive")
	cmd.Flags().StringArrayVar(&seeds, "seed", nil, "Seed for a custom derivation (prefix base58: for addresses)")
	cmd.Flags().StringVar(&program, "program", "", "Program for the custom derivation")
	return cmd
}

func derive(cfg config.Config, mint solana.PublicKey, owner string, seeds []string, program string) (*derivation, error) {
	d := &derivation{}

	if !mint.IsZero() {
		d.Mint = mint.String()
		md, _, err := pda.MetadataAddress(mint)
		if err != nil {
			return nil, err
		}
		d.Metadata = md.String()
		ed, _, err := pda.MasterEditionAddress(mint)
		if err != nil {
			return nil, err
		}
		d.MasterEdition = ed.String()
		if owner != "" {
			o, err := solana.PublicKeyFromBase58(owner)
			if err != nil {
				return nil, fmt.Errorf("owner: %w", err)
			}
			holder, _, err := pda.AssociatedTokenAddress(o, mint)
			if err != nil {
				return nil, err
			}
			d.Holder = holder.String()
		}
	}

	if cfg.ProgramID != "" {
		p, err := cfg.Program()
		if err != nil {
			return nil, fmt.Errorf("program_id: %w", err)
		}
		authority, _, err := pda.MintAuthorityAddress(p)
		if err != nil {
			return nil, err
		}
		d.MintAuthority = authority.String()
	}

	if len(seeds) > 0 {
		if program == "" {
			return nil, fmt.Errorf("--seed needs --program")
		}
		p, err := solana.PublicKeyFromBase58(program)
		if err != nil {
			return nil, fmt.Errorf("program: %w", err)
		}
		raw, err := pda.SeedsFromStrings(seeds)
		if err != nil {
			return nil, fmt.Errorf("seeds: %w", err)
		}
		addr, bump, err := pda.FindProgramAddress(raw, p)
		if err != nil {
			return nil, err
		}
		d.Custom, d.CustomBump, d.CustomProgram = addr.String(), bump, p.String()
	}

	if d.Mint == "" && d.MintAuthority == "" && d.Custom == "" {
		return nil, fmt.Errorf("nothing to derive: pass a mint, --program-id or --seed")
	}
	return d, nil
}

func (d *derivation) printText(w io.Writer) {
	line := func(label, v string) {
		if v != "" {
			fmt.Fprintf(w, "%-16s %s\n", label+":", v)
		}
	}
	line("Mint", d.Mint)
	line("Metadata", d.Metadata)
	line("Master edition", d.MasterEdition)
	line("Holder", d.Holder)
	line("Mint authority", d.MintAuthority)
	if d.Custom != "" {
		line("Derived", fmt.Sprintf("%s (bump %d, program %s)", d.Custom, d.CustomBump, d.CustomProgram))
	}
}

// balanceReport is a payer balance against the pre-flight threshold.
type balanceReport struct {
	Address    string  `json:"address"`
	Lamports   uint64  `json:"lamports"`
	SOL        float64 `json:"sol"`
	Minimum    uint64  `json:"minimum_lamports"`
	Sufficient bool    `json:"sufficient"`
}

func newBalanceCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show an account balance (default: the payer)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags, os.LookupEnv)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			var addr solana.PublicKey
			if len(args) == 1 {
				if addr, err = solana.PublicKeyFromBase58(args[0]); err != nil {
					return fmt.Errorf("address: %w", err)
				}
			} else {
				payer, err := a.payer()
				if err != nil {
					return err
				}
				addr = payer.PublicKey()
			}

			report, err := a.balance(cmd.Context(), addr)
			if err != nil {
				return err
			}
			return a.print(flags.output, report)
		},
	}
}

func (a *app) balance(ctx context.Context, addr solana.PublicKey) (*balanceReport, error) {
	commitment, err := ledger.ParseCommitment(a.cfg.Commitment)
	if err != nil {
		return nil, err
	}
	lamports, err := a.chain.GetBalance(ctx, addr.String(), commitment)
	if err != nil {
		return nil, err
	}
	return &balanceReport{
		Address:    addr.String(),
		Lamports:   lamports,
		SOL:        float64(lamports) / lamportsPerSOL,
		Minimum:    a.cfg.MinBalanceLamports,
		Sufficient: lamports >= a.cfg.MinBalanceLamports,
	}, nil
}

func (r *balanceReport) printText(w io.Writer) {
	fmt.Fprintf(w, "%s: %.9f SOL (%d lamports)\n", r.Address, r.SOL, r.Lamports)
	if !r.Sufficient {
		fmt.Fprintf(w, "Below the %d lamport minimum needed to mint.\n", r.Minimum)
	}
}

// verification is the on-chain state of a minted token.
type verification struct {
	Mint            string   `json:"mint"`
	Supply          uint64   `json:"supply"`
	Decimals        uint8    `json:"decimals"`
	MintAuthority   string   `json:"mint_authority"`
	FreezeAuthority string   `json:"freeze_authority"`
	Holder          string   `json:"holder,omitempty"`
	HolderBalance   uint64   `json:"holder_balance"`
	Name            string   `json:"name,omitempty"`
	Symbol          string   `json:"symbol,omitempty"`
	URI             string   `json:"uri,omitempty"`
	Problems        []string `json:"problems,omitempty"`
}

// OK reports whether the token holds exactly one indivisible unit.
func (v *verification) OK() bool { return len(v.Problems) == 0 }

func newVerifyCmd(flags *globalFlags) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "verify <mint>",
		Short: "Check that a mint holds exactly one indivisible unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := solana.PublicKeyFromBase58(args[0])
			if err != nil {
				return fmt.Errorf("mint: %w", err)
			}
			cfg, err := loadConfig(flags, os.LookupEnv)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.verify(cmd.Context(), mint, owner)
			if err != nil {
				return err
			}
			if err := a.print(flags.output, v); err != nil {
				return err
			}
			if !v.OK() {
				return fmt.Errorf("mint %s failed verification", mint)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Holder account owner (default: from the mint record, else the payer)")
	return cmd
}

// verify reads the mint, metadata and holder accounts. The holder owner comes from owner,
// the stored mint record, or the payer keypair, in that order.
func (a *app) verify(ctx context.Context, mint solana.PublicKey, owner string) (*verification, error) {
	info, err := a.chain.GetAccountInfo(ctx, mint.String())
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("mint %s does not exist", mint)
	}
	m, err := ledger.ParseMintAccount(info.Data)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", mint, err)
	}

	v := &verification{
		Mint:            mint.String(),
		Supply:          m.Supply,
		Decimals:        m.Decimals,
		MintAuthority:   m.MintAuthority,
		FreezeAuthority: m.FreezeAuthority,
	}
	if m.Supply != 1 {
		v.Problems = append(v.Problems, fmt.Sprintf("supply is %d, want 1", m.Supply))
	}
	if m.Decimals != 0 {
		v.Problems = append(v.Problems, fmt.Sprintf("decimals is %d, want 0", m.Decimals))
	}

	mdAddr, _, err := pda.MetadataAddress(mint)
	if err != nil {
		return nil, err
	}
	if mdInfo, err := a.chain.GetAccountInfo(ctx, mdAddr.String()); err != nil {
		return nil, err
	} else if mdInfo != nil {
		md, err := ledger.ParseMetadataAccount(mdInfo.Data)
		if err != nil {
			v.Problems = append(v.Problems, fmt.Sprintf("metadata unreadable: %v", err))
		} else {
			v.Name, v.Symbol, v.URI = md.Name, md.Symbol, md.URI
		}
	}

	if owner == "" {
		if rec, err := a.records.GetByMint(ctx, mint.String()); err == nil {
			owner = rec.Owner
		} else if payer, err := a.payer(); err == nil {
			owner = payer.PublicKey().String()
		}
	}
	if owner == "" {
		return v, nil
	}
	o, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	holder, _, err := pda.AssociatedTokenAddress(o, mint)
	if err != nil {
		return nil, err
	}
	v.Holder = holder.String()

	commitment, err := ledger.ParseCommitment(a.cfg.Commitment)
	if err != nil {
		return nil, err
	}
	amount, err := a.chain.GetTokenAccountBalance(ctx, holder.String(), commitment)
	if err != nil {
		return nil, err
	}
	if amount == nil {
		v.Problems = append(v.Problems, "holder account does not exist")
		return v, nil
	}
	v.HolderBalance = amount.Amount
	if amount.Amount != 1 {
		v.Problems = append(v.Problems, fmt.Sprintf("holder balance is %d, want 1", amount.Amount))
	}
	return v, nil
}

func (v *verification) printText(w io.Writer) {
	status := "OK"
	if !v.OK() {
		status = "FAILED"
	}
	fmt.Fprintf(w, "%s %s\n", v.Mint, status)
	fmt.Fprintf(w, "  Supply:      %d (decimals %d)\n", v.Supply, v.Decimals)
	fmt.Fprintf(w, "  Authority:   mint %s, freeze %s\n", v.MintAuthority, v.FreezeAuthority)
	if v.Holder != "" {
		fmt.Fprintf(w, "  Holder:      %s (balance %d)\n", v.Holder, v.HolderBalance)
	}
	if v.Name != "" {
		fmt.Fprintf(w, "  Metadata:    %q (%s) %s\n", v.Name, v.Symbol, v.URI)
	}
	for _, p := range v.Problems {
		fmt.Fprintf(w, "  Problem:     %s\n", p)
	}
}
