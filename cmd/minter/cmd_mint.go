package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"solana-nft-minter/internal/composer"
	"solana-nft-minter/internal/domain"
	"solana-nft-minter/internal/idhash"
	"solana-nft-minter/internal/orchestrator"
)

// mintSpec is one mint as given on the command line or in a batch file.
type mintSpec struct {
	Owner         string             `yaml:"owner"`
	Metadata      *composer.Metadata `yaml:"metadata"`
	MasterEdition bool               `yaml:"master_edition"`
	MaxSupply     *uint64            `yaml:"max_supply"`
	Immutable     bool               `yaml:"immutable"`
}

// batchFile is the document read by the batch command.
type batchFile struct {
	Mints []mintSpec `yaml:"mints"`
}

// mintOutcome is what the commands print for one mint.
type mintOutcome struct {
	RequestID string             `json:"request_id"`
	Mint      string             `json:"mint,omitempty"`
	Result    *domain.MintResult `json:"result,omitempty"`
	Explorer  string             `json:"explorer,omitempty"`
	Error     string             `json:"error,omitempty"`
	Kind      string             `json:"kind,omitempty"`
	// Transactions is the submission state of a failed mint. Confirmed entries are on the ledger.
	Transactions []txOutcome `json:"transactions,omitempty"`

	err error
}

// txOutcome is one packed transaction of a failed mint.
type txOutcome struct {
	Index     int    `json:"index"`
	State     string `json:"state"`
	Signature string `json:"signature,omitempty"`
	Attempts  int    `json:"attempts"`
	Reason    string `json:"reason,omitempty"`
}

func newMintCmd(flags *globalFlags) *cobra.Command {
	var (
		spec       mintSpec
		md         composer.Metadata
		noMetadata bool
		maxSupply  int64
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint one non-fungible token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags, os.LookupEnv)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			if !noMetadata {
				spec.Metadata = &md
			}
			if maxSupply >= 0 {
				v := uint64(maxSupply)
				spec.MaxSupply = &v
			}

			payer, err := a.payer()
			if err != nil {
				return err
			}
			out := a.mint(cmd.Context(), payer, spec)
			if perr := a.print(flags.output, out); perr != nil {
				return perr
			}
			if out.Error != "" {
				return out.err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&md.Name, "name", "", "Token name")
	f.StringVar(&md.Symbol, "symbol", "", "Token symbol")
	f.StringVar(&md.URI, "uri", "", "Off-chain metadata JSON URI")
	f.Uint16Var(&md.SellerFeeBasisPoints, "fee", 0, "Royalty in basis points (0-10000)")
	f.BoolVar(&noMetadata, "no-metadata", false, "Create the token without a metadata record")
	f.StringVar(&spec.Owner, "owner", "", "Holder account owner (default: payer)")
	f.BoolVar(&spec.MasterEdition, "master-edition", false, "Create a master edition")
	f.Int64Var(&maxSupply, "max-supply", -1, "Master edition print limit (-1: unlimited)")
	f.BoolVar(&spec.Immutable, "immutable", false, "Lock the metadata record after minting")
	return cmd
}

func newBatchCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file.yaml>",
		Short: "Mint every token described in a YAML file, concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := readBatch(args[0])
			if err != nil {
				return err
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

			payer, err := a.payer()
			if err != nil {
				return err
			}
			outcomes := a.mintAll(cmd.Context(), payer, specs)
			if err := a.print(flags.output, outcomes); err != nil {
				return err
			}

			var failed int
			for _, o := range outcomes {
				if o.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d mints failed", failed, len(outcomes))
			}
			return nil
		},
	}
}

func readBatch(path string) ([]mintSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	var doc batchFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if len(doc.Mints) == 0 {
		return nil, fmt.Errorf("batch %s: no mints", path)
	}
	return doc.Mints, nil
}

// mintAll runs independent mints with at most cfg.Concurrency in flight.
// A failed mint does not stop the others.
func (a *app) mintAll(ctx context.Context, payer solana.PrivateKey, specs []mintSpec) []*mintOutcome {
	outcomes := make([]*mintOutcome, len(specs))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, spec := range specs {
		g.Go(func() error {
			outcomes[i] = a.mint(ctx, payer, spec)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// mint runs one mint with a fresh mint key and records the success descriptor.
func (a *app) mint(ctx context.Context, payer solana.PrivateKey, spec mintSpec) *mintOutcome {
	mintKey := solana.NewWallet().PrivateKey
	req := composer.Request{
		Payer:         payer.PublicKey(),
		Mint:          mintKey.PublicKey(),
		Owner:         payer.PublicKey(),
		Metadata:      spec.Metadata,
		MasterEdition: spec.MasterEdition,
		MaxSupply:     spec.MaxSupply,
		Immutable:     spec.Immutable,
	}

	out := &mintOutcome{Mint: req.Mint.String()}
	if spec.Owner != "" {
		owner, err := solana.PublicKeyFromBase58(spec.Owner)
		if err != nil {
			return out.fail(fmt.Errorf("%w: owner: %v", composer.ErrInvalidRequest, err))
		}
		req.Owner = owner
	}
	mode := domain.MintMode(a.cfg.Mode)
	out.RequestID = idhash.ComputeRequestID(mode, req.Payer.String(), req.Owner.String(), req.Mint.String())

	log := a.logger.With().Str("request_id", out.RequestID).Str("mint", req.Mint.String()).Logger()
	log.Info().Str("mode", string(mode)).Msg("minting")

	res, err := a.orch.Mint(ctx, req, []solana.PrivateKey{payer, mintKey})
	if err != nil {
		log.Error().Err(err).Msg("mint failed")
		return out.fail(err)
	}

	out.Result = res
	out.Explorer = a.cfg.ExplorerURL(res.Mint.Address)
	log.Info().Strs("signatures", res.Signatures).Msg("minted")

	record := newMintRecord(out.RequestID, mode, a.cfg.Cluster, req.Payer.String(), res, time.Now())
	if err := a.records.Insert(ctx, record); err != nil {
		// The ledger already holds the token; a missing audit row is not a mint failure.
		log.Warn().Err(err).Msg("store mint record")
	}
	return out
}

func (o *mintOutcome) fail(err error) *mintOutcome {
	o.err = err
	o.Error = err.Error()
	o.Kind = string(orchestrator.KindOf(err))
	var f *orchestrator.Failure
	if errors.As(err, &f) {
		o.Kind = string(f.Kind)
		if f.Progress != nil {
			for _, tx := range f.Progress.Transactions {
				o.Transactions = append(o.Transactions, txOutcome{
					Index:     tx.Index,
					State:     string(tx.State),
					Signature: tx.Signature,
					Attempts:  tx.Attempts,
					Reason:    tx.Reason,
				})
			}
		}
	}
	return o
}

// newMintRecord builds the audit row of a completed mint.
func newMintRecord(requestID string, mode domain.MintMode, cluster, payer string, res *domain.MintResult, now time.Time) *domain.MintRecord {
	r := &domain.MintRecord{
		RequestID:  requestID,
		Mode:       mode,
		Cluster:    cluster,
		Payer:      payer,
		Owner:      res.Holder.Owner,
		Mint:       res.Mint.Address,
		Holder:     res.Holder.Address,
		Signatures: append([]string(nil), res.Signatures...),
		CreatedAt:  now.UnixMilli(),
	}
	if res.MasterEdition != "" {
		edition := res.MasterEdition
		r.MasterEdition = &edition
	}
	if md := res.Metadata; md != nil {
		addr, name, symbol, uri := md.Address, md.Name, md.Symbol, md.URI
		r.Metadata = &addr
		r.Name = &name
		r.Symbol = &symbol
		r.URI = &uri
	}
	return r
}
