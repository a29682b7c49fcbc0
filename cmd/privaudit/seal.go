package privaudit

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/seal"
	"github.com/privaudit/privaudit/pkg/core"
)

// SealKeyEnv holds a hex secp256k1 key when --key-file is not given.
const SealKeyEnv = "PRIVAUDIT_SEAL_KEY"

func newSealCmd(a *app) *cobra.Command {
	var (
		keyFile string
		out     string
		genKey  string
	)
	cmd := &cobra.Command{
		Use:   "seal",
		Short: "Sign the current ledger head with a secp256k1 key",
		Long:  "seal writes a JSON attestation of the newest operation's chain digest. privaudit verify --seal FILE later confirms that the ledger still holds that head.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := cmd.OutOrStdout()
			if genKey != "" {
				hexKey, addr, err := seal.GenerateKey()
				if err != nil {
					return err
				}
				if err := os.WriteFile(genKey, []byte(hexKey+"\n"), 0o600); err != nil {
					return errors.Wrap(err, "write key file")
				}
				_, err = fmt.Fprintf(w, "Wrote %s (address %s)\n", genKey, addr)
				return err
			}

			key, err := loadSealKey(keyFile)
			if err != nil {
				return err
			}
			l, err := a.openLedger(nil)
			if err != nil {
				return err
			}
			defer l.Close()
			head, ok, err := l.Head(cmd.Context())
			if err != nil {
				return err
			}
			if !ok {
				return errors.WithHint(errors.New("ledger is empty"), "record at least one redaction before sealing")
			}
			s, err := seal.Sign(key, head, time.Now().UTC())
			if err != nil {
				return err
			}
			if out == "" {
				out = filepath.Join(core.DefaultDir, "seal.json")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return errors.Wrap(err, "create seal dir")
			}
			if err := seal.WriteFile(out, s); err != nil {
				return err
			}
			_, err = fmt.Fprintf(w, "Sealed operation %d by %s -> %s\n", s.HeadID, s.Address, out)
			return err
		},
	}
	cmd.Flags().StringVar(&keyFile, "key-file", "", "file holding a hex private key (default $"+SealKeyEnv+")")
	cmd.Flags().StringVar(&out, "out", "", "seal file (default .privaudit/seal.json)")
	cmd.Flags().StringVar(&genKey, "generate-key", "", "write a new private key to this file and exit")
	return cmd
}

func loadSealKey(keyFile string) (*ecdsa.PrivateKey, error) {
	if keyFile != "" {
		return seal.LoadKeyFile(keyFile)
	}
	if v := os.Getenv(SealKeyEnv); v != "" {
		return seal.LoadKey(v)
	}
	return nil, errors.WithHintf(errors.New("no seal key"), "pass --key-file or set %s; create one with --generate-key", SealKeyEnv)
}
