package privaudit

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		dest   string
		stats  bool
		format string
		title  string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the ledger as a self-contained HTML, JSON or Markdown report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rc := a.cfg.ReportOrEmpty()
			f, err := report.ParseFormat(pickString(format, rc.Format))
			if err != nil {
				return err
			}
			l, err := a.openLedger(nil)
			if err != nil {
				return err
			}
			defer l.Close()
			path, err := l.ExportReport(cmd.Context(), dest, ledger.ReportOptions{
				Stats:  pickBool(stats, rc.Stats),
				Format: f,
				Title:  title,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "Wrote", path)
			return err
		},
	}
	cmd.Flags().StringVar(&dest, "out", "", "output file or directory (default ./"+ledger.DefaultReportName+".<ext>)")
	cmd.Flags().BoolVar(&stats, "stats", false, "add counts by actor and action and the verification status")
	cmd.Flags().StringVar(&format, "format", "", "html|json|markdown (default html)")
	cmd.Flags().StringVar(&title, "title", "", "report title")
	return cmd
}
