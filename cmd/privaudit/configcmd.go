package privaudit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/privaudit/privaudit/internal/config"
	"github.com/privaudit/privaudit/internal/files"
	"github.com/privaudit/privaudit/internal/ignore"
	"github.com/privaudit/privaudit/pkg/core"
)

func newConfigCmd(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}

	var (
		dir   string
		force bool
	)
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .privaudit.yml and .privauditignore",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfgPath := filepath.Join(dir, config.LocalNames[0])
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return errors.WithHint(errors.Newf("%s already exists", cfgPath), "pass --force to overwrite it")
			}
			if err := os.WriteFile(cfgPath, []byte(config.Starter), 0o644); err != nil {
				return errors.Wrap(err, "write config")
			}
			fmt.Fprintln(out, "Wrote", cfgPath)

			ignPath := filepath.Join(dir, ignore.FileName)
			if _, err := os.Stat(ignPath); os.IsNotExist(err) {
				body := "# paths privaudit redact skips when walking directories\n" + strings.Join(files.DefaultIgnores(), "\n") + "\n"
				if err := os.WriteFile(ignPath, []byte(body), 0o644); err != nil {
					return errors.Wrap(err, "write ignore file")
				}
				fmt.Fprintln(out, "Wrote", ignPath)
			}
			// keep ledger state out of version control
			if err := files.AppendIgnore(dir, core.DefaultDir+"/"); err != nil {
				return err
			}
			return nil
		},
	}
	initCmd.Flags().StringVar(&dir, "dir", ".", "directory to write into")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration from env, local and global files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := yaml.Marshal(&a.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}

	cfgCmd.AddCommand(initCmd, showCmd)
	return cfgCmd
}
