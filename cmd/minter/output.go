package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// textPrinter is implemented by values with a human-readable form.
type textPrinter interface {
	printText(w io.Writer)
}

// print writes v as indented JSON or as text.
func (a *app) print(format string, v interface{}) error {
	return render(a.out, format, v)
}

func render(w io.Writer, format string, v interface{}) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "text", "":
		switch t := v.(type) {
		case textPrinter:
			t.printText(w)
		case []*mintOutcome:
			for i, o := range t {
				if i > 0 {
					fmt.Fprintln(w)
				}
				o.printText(w)
			}
		default:
			fmt.Fprintf(w, "%+v\n", v)
		}
		return nil
	default:
		return fmt.Errorf("invalid --output: %s (use json|text)", format)
	}
}

func (o *mintOutcome) printText(w io.Writer) {
	if o.Error != "" {
		fmt.Fprintf(w, "Mint failed (%s): %s\n", o.Kind, o.Error)
		if o.RequestID != "" {
			fmt.Fprintf(w, "  Request:     %s\n", o.RequestID)
			fmt.Fprintf(w, "  Mint:        %s\n", o.Mint)
		}
		for _, tx := range o.Transactions {
			fmt.Fprintf(w, "  Tx %d:        %s after %d attempt(s)", tx.Index, tx.State, tx.Attempts)
			if tx.Signature != "" {
				fmt.Fprintf(w, " %s", tx.Signature)
			}
			if tx.Reason != "" {
				fmt.Fprintf(w, " (%s)", tx.Reason)
			}
			fmt.Fprintln(w)
		}
		return
	}
	r := o.Result
	fmt.Fprintf(w, "Minted %s\n", r.Mint.Address)
	fmt.Fprintf(w, "  Request:     %s\n", o.RequestID)
	fmt.Fprintf(w, "  Holder:      %s (owner %s, balance %d)\n", r.Holder.Address, r.Holder.Owner, r.Holder.Balance)
	fmt.Fprintf(w, "  Authority:   mint %s, freeze %s\n", r.Mint.MintAuthority, r.Mint.FreezeAuthority)
	if md := r.Metadata; md != nil {
		fmt.Fprintf(w, "  Metadata:    %s\n", md.Address)
		fmt.Fprintf(w, "               %q (%s) %s, %d bps, mutable=%t\n", md.Name, md.Symbol, md.URI, md.SellerFeeBasisPoints, md.Mutable)
	}
	if r.MasterEdition != "" {
		fmt.Fprintf(w, "  Edition:     %s\n", r.MasterEdition)
	}
	fmt.Fprintf(w, "  Signatures:  %s\n", strings.Join(r.Signatures, ", "))
	fmt.Fprintf(w, "  Explorer:    %s\n", o.Explorer)
}
