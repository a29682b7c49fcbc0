package privaudit

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/detectors"
)

func newRulesCmd(a *app) *cobra.Command {
	var lint string
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List active detection rules and extensions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if lint != "" {
				rules, err := detectors.LoadRuleFile(lint)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s: %d rules OK\n", lint, len(rules))
				return err
			}

			p, err := a.pipeline(false, nil)
			if err != nil {
				return err
			}
			table := tablewriter.NewWriter(out)
			table.Header("Kind", "Validator", "Pattern")
			for _, r := range p.Rules.Rules() {
				v := r.Validator
				if v == "" {
					v = "-"
				}
				if err := table.Append([]string{r.Kind, v, shorten(r.Pattern.String(), 60)}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			var names []string
			for _, pr := range p.Extensions.Providers() {
				names = append(names, pr.Name())
			}
			if len(names) > 0 {
				_, err = fmt.Fprintf(out, "Extensions: %s\n", strings.Join(names, ", "))
			}
			return err
		},
	}
	cmd.Flags().StringVar(&lint, "lint", "", "compile a rule file and report the first error")
	return cmd
}

func shorten(s string, n int) string {
	rs := []rune(s)
	if len(rs) <= n {
		return s
	}
	return string(rs[:n-1]) + "…"
}
