package privaudit

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/seal"
)

func newVerifyCmd(a *app) *cobra.Command {
	var (
		opts     ledger.VerifyOptions
		sealFile string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the ledger's hash chain; exits 1 when it is broken",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			l, err := a.openLedger(nil)
			if err != nil {
				return err
			}
			defer l.Close()
			v, err := l.Verify(ctx, opts)
			if err != nil {
				return err
			}

			var sealErr error
			if sealFile != "" {
				s, err := seal.ReadFile(sealFile)
				if err != nil {
					return err
				}
				sealErr = s.Check(ctx, l)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				res := struct {
					ledger.Verification
					Seal string `json:"seal,omitempty"`
				}{Verification: v}
				if sealFile != "" {
					res.Seal = "ok"
					if sealErr != nil {
						res.Seal = sealErr.Error()
					}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				if v.Intact {
					fmt.Fprintln(out, a.paint(out, okStyle, fmt.Sprintf("✔ ledger intact (%d operations checked)", v.Checked)))
				} else {
					fmt.Fprintln(out, a.paint(out, badStyle, fmt.Sprintf("✘ chain broken at operation %d: %s", v.FirstBroken, v.Reason)))
				}
				if sealFile != "" {
					if sealErr == nil {
						fmt.Fprintln(out, a.paint(out, okStyle, "✔ seal matches"))
					} else {
						fmt.Fprintln(out, a.paint(out, badStyle, "✘ seal: "+sealErr.Error()))
					}
				}
			}
			if !v.Intact {
				return errChainBroken
			}
			if sealErr != nil {
				if errors.Is(sealErr, seal.ErrMismatch) || errors.Is(sealErr, ledger.ErrNotFound) {
					return errors.Mark(sealErr, errChainBroken)
				}
				return sealErr
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.Deep, "deep", false, "also restore every snapshot and check its digest")
	cmd.Flags().StringVar(&sealFile, "seal", "", "also check a seal written by privaudit seal")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the result as JSON")
	return cmd
}
