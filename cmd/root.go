package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/peekknuf/datatrust/internal/config"
	"github.com/peekknuf/datatrust/internal/ledger"
	"github.com/peekknuf/datatrust/internal/logging"
	"github.com/peekknuf/datatrust/internal/verify"
)

var (
	cfgFile      string
	logLevel     string
	ledgerDSN    string
	ledgerDriver string

	thresholds config.Thresholds
)

var rootCmd = &cobra.Command{
	Use:   "datatrust",
	Short: "Dataset trust and quality verification",
	Long: `Scores tabular datasets for missing values, anomalies, duplicates,
bias, personal data and topical relevance, and fingerprints the result`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.SetDefaultCLILogger(logLevel)

		var err error
		thresholds, err = config.LoadOrDefault(cfgFile)
		if err != nil {
			return err
		}
		slog.Debug("thresholds loaded", "config", cfgFile)
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"thresholds file (default is $HOME/"+config.DefaultFileName+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level (debug, info, warn, error)")
}

// addLedgerFlags registers the authenticity ledger flags on commands that
// verify datasets.
func addLedgerFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&ledgerDSN, "ledger", "",
		"Authenticity ledger DSN, e.g. a SQLite file path (disabled when empty)")
	cmd.Flags().StringVar(&ledgerDriver, "ledger-driver", ledger.DriverSQLite,
		"Ledger database driver (sqlite, postgres)")
}

// newVerifier builds a verifier from the loaded thresholds, attaching the
// ledger when one is configured. The returned func releases the ledger.
func newVerifier(ctx context.Context) (*verify.Verifier, func(), error) {
	opts := []verify.Option{
		verify.WithThresholds(thresholds),
		verify.WithLogger(slog.Default()),
	}
	if ledgerDSN == "" {
		return verify.New(opts...), func() {}, nil
	}

	store, err := ledger.Open(ctx, ledgerDriver, ledgerDSN)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, verify.WithAuthenticity(store))
	return verify.New(opts...), func() {
		if err := store.Close(); err != nil {
			slog.Warn("closing ledger", "error", err)
		}
	}, nil
}

func writeReport(w io.Writer, report any, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (json, yaml)", format)
	}
}
