package privaudit

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return root.GenBashCompletion(out)
			case "zsh":
				return root.GenZshCompletion(out)
			case "fish":
				return root.GenFishCompletion(out, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(out)
			default:
				return errors.Newf("unsupported shell: %s", args[0])
			}
		},
		Example: `
# Bash
privaudit completion bash > /etc/bash_completion.d/privaudit

# Zsh
privaudit completion zsh > "${fpath[1]}/_privaudit"

# Fish
privaudit completion fish > ~/.config/fish/completions/privaudit.fish

# PowerShell
privaudit completion powershell > $PROFILE\privaudit.ps1
`,
	}
}
