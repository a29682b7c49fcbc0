package privaudit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/privaudit/privaudit/internal/config"
	"github.com/privaudit/privaudit/internal/logging"
)

var version = "0.1.0"

// errChainBroken makes the process exit 1 after verify has printed why.
var errChainBroken = errors.New("ledger chain is not intact")

// app carries the persistent flags and the state built from them.
type app struct {
	logLevel  string
	logFormat string
	noColor   bool
	configDir string

	ledgerPath string
	backend    string
	dsn        string
	codec      string

	cfg config.FileConfig
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "privaudit",
		Short:         "Redact PII from documents and keep a tamper-evident audit ledger",
		Long:          "privaudit detects personal data in text documents, writes redacted copies, and records every redaction in a hash-chained ledger that can be verified and exported.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := root.PersistentFlags()
	pf.StringVar(&a.logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	pf.StringVar(&a.logFormat, "log-format", "text", "log format: text|json")
	pf.BoolVar(&a.noColor, "no-color", false, "disable colorized output")
	pf.StringVar(&a.configDir, "config-dir", ".", "directory searched for .privaudit.yml and .env")
	pf.StringVar(&a.ledgerPath, "ledger", "", "ledger path (default .privaudit/ledger)")
	pf.StringVar(&a.backend, "backend", "", "ledger backend: pebble|file|postgres")
	pf.StringVar(&a.dsn, "dsn", "", "PostgreSQL DSN for the postgres backend")
	pf.StringVar(&a.codec, "codec", "", "snapshot compression for new records: zlib|gzip|zstd")

	root.AddCommand(
		newRedactCmd(a),
		newDetectCmd(a),
		newLogCmd(a),
		newShowCmd(a),
		newVerifyCmd(a),
		newReportCmd(a),
		newSealCmd(a),
		newRulesCmd(a),
		newConfigCmd(a),
	)
	root.AddCommand(newCompletionCmd(root))
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	log, err := logging.New(cmd.ErrOrStderr(), a.logLevel, a.logFormat)
	if err != nil {
		return errors.WithHint(err, "use --log-level debug|info|warn|error and --log-format text|json")
	}
	a.log = log
	slog.SetDefault(log)

	cfg, err := config.Load(a.configDir)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	a.cfg = cfg
	return nil
}

// Execute runs the privaudit CLI. It should be called by the main package.
func Execute() {
	os.Exit(Main(os.Args[1:], os.Stdout, os.Stderr))
}

// Main runs the CLI with args and returns the process exit code: 0 on
// success, 1 when verification finds a broken chain, 2 on any other error.
// Interrupts cancel the command context.
func Main(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return exitCode(root.ExecuteContext(ctx), stderr)
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errChainBroken):
		return 1
	}
	_, _ = fmt.Fprintln(stderr, "error:", err)
	if hint := errors.FlattenHints(err); hint != "" {
		_, _ = fmt.Fprintln(stderr, "hint:", hint)
	}
	return 2
}
