package privaudit

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/report"
	"github.com/privaudit/privaudit/pkg/core"
)

func newDetectCmd(a *app) *cobra.Command {
	var asJSON, asSARIF bool
	cmd := &cobra.Command{
		Use:   "detect <file|->",
		Short: "List PII findings in a document without redacting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			text, err := readInput(cmd, path)
			if err != nil {
				return err
			}
			p, err := a.pipeline(false, nil)
			if err != nil {
				return err
			}
			findings, err := p.Detect(cmd.Context(), text)
			if err != nil {
				return errors.Wrapf(err, "detect %s", path)
			}
			out := cmd.OutOrStdout()
			switch {
			case asSARIF:
				return report.WriteSARIF(out, version, []report.Source{{Path: path, Text: text, Findings: findings}})
			case asJSON:
				return core.MarshalFindings(out, findings)
			default:
				return report.FindingsTable(out, text, findings)
			}
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit findings as JSON")
	cmd.Flags().BoolVar(&asSARIF, "sarif", false, "emit SARIF 2.1.0")
	return cmd
}

// readInput reads path, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	var (
		b   []byte
		err error
	)
	if path == "-" {
		b, err = io.ReadAll(cmd.InOrStdin())
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return string(b), nil
}
