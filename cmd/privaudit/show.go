package privaudit

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/ledger"
	"github.com/privaudit/privaudit/internal/redact"
)

func newShowCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		side   string
	)
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print an operation, its snapshots and their diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return errors.WithHint(errors.Newf("invalid operation id %q", args[0]), "ids are positive integers; see privaudit log")
			}
			l, err := a.openLedger(nil)
			if err != nil {
				return err
			}
			defer l.Close()
			rec, err := l.Read(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, ledger.ErrCorruptSnapshot) {
					return errors.WithHint(err, "run privaudit verify --deep to locate damaged records")
				}
				return err
			}

			out := cmd.OutOrStdout()
			switch side {
			case "":
			case "before":
				_, err := fmt.Fprint(out, rec.Before)
				return err
			case "after":
				_, err := fmt.Fprint(out, rec.After)
				return err
			default:
				return errors.WithHint(errors.Newf("unknown snapshot %q", side), "use before or after")
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}

			e := ledger.EntryOf(rec.Operation)
			fmt.Fprintf(out, "Operation   %d\n", e.ID)
			fmt.Fprintf(out, "Timestamp   %s\n", e.Timestamp)
			fmt.Fprintf(out, "Actor       %s\n", e.Actor)
			fmt.Fprintf(out, "Action      %s\n", e.Action)
			fmt.Fprintf(out, "Source      %s\n", e.SourceRef)
			fmt.Fprintf(out, "Before      %s\n", e.BeforeDigest)
			fmt.Fprintf(out, "After       %s\n", e.AfterDigest)
			fmt.Fprintf(out, "Prev chain  %s\n", e.PrevChainDigest)
			fmt.Fprintf(out, "Chain       %s\n", e.ChainDigest)
			for _, k := range sortedMetaKeys(e.Meta) {
				fmt.Fprintf(out, "  %s=%s\n", k, e.Meta[k])
			}
			diff := redact.Diff(rec.Before, rec.After, redact.DiffOptions{FromName: "before", ToName: "after"})
			if diff == "" {
				_, err = fmt.Fprintln(out, "\n<no changes>")
				return err
			}
			_, err = fmt.Fprint(out, "\n"+a.highlightDiff(out, diff))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the operation with both texts as JSON")
	cmd.Flags().StringVar(&side, "text", "", "print only one snapshot: before|after")
	return cmd
}

func sortedMetaKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
