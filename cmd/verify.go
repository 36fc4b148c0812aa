package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/peekknuf/datatrust/internal/loader"
)

var (
	verifyName   string
	verifyFormat string
	verifyOutput string
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a single dataset file",
	Long: `Load a CSV, JSON, XLSX or Parquet file, run every check
and print the verification report`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		res, err := loader.Load(ctx, args[0])
		if err != nil {
			return err
		}
		name := verifyName
		if name == "" {
			name = res.Name
		}

		v, release, err := newVerifier(ctx)
		if err != nil {
			return err
		}
		defer release()

		report, err := v.Verify(ctx, res.Dataset, name)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if verifyOutput != "" {
			f, err := os.Create(verifyOutput)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return writeReport(out, report, verifyFormat)
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyName, "name", "",
		"Dataset name hint (default is the file name without extension)")
	verifyCmd.Flags().StringVarP(&verifyFormat, "format", "f", "json",
		"Report format (json, yaml)")
	verifyCmd.Flags().StringVarP(&verifyOutput, "output", "o", "",
		"Write the report to a file instead of stdout")
	addLedgerFlags(verifyCmd)
}
