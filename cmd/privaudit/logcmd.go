package privaudit

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/report"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		opts   ledger.ListOptions
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List ledger operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := a.openLedger(nil)
			if err != nil {
				return err
			}
			defer l.Close()
			ops, err := l.List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			entries := make([]report.Entry, 0, len(ops))
			for _, op := range ops {
				entries = append(entries, ledger.EntryOf(op))
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			return report.OperationsTable(cmd.OutOrStdout(), entries)
		},
	}
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent N operations")
	cmd.Flags().StringVar(&opts.Actor, "actor", "", "only operations by this actor")
	cmd.Flags().StringVar(&opts.Action, "action", "", "only operations with this action")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON")
	return cmd
}
