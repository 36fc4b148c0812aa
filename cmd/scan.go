package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/peekknuf/datatrust/internal/connectors"
	"github.com/peekknuf/datatrust/internal/loader"
	"github.com/peekknuf/datatrust/internal/verify"
)

var (
	filename   string
	dirPath    string
	fileFormat string
	recursive  bool
	verbose    bool
	minSize    int64
	maxSize    int64
	workers    int
	schedule   string
	outputDir  string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Verify every data file in a directory",
	Long: `Scan a directory for data files, verify each one
and write a <name>_report.json per file`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dirPath == "" {
			return errors.New("you must specify a directory with --dir")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		v, release, err := newVerifier(ctx)
		if err != nil {
			return err
		}
		defer release()

		if schedule == "" {
			return runScan(ctx, v)
		}

		c := cron.New()
		if _, err := c.AddFunc(schedule, func() {
			if err := runScan(ctx, v); err != nil {
				slog.Error("scheduled scan failed", "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", schedule, err)
		}
		slog.Info("scan scheduled", "schedule", schedule, "dir", dirPath)
		c.Start()
		<-ctx.Done()
		<-c.Stop().Done()
		return nil
	},
}

func scanExtensions() []string {
	if fileFormat == "" || fileFormat == "all" {
		return loader.Extensions()
	}
	exts := strings.Split(fileFormat, ",")
	for i, ext := range exts {
		exts[i] = strings.TrimSpace(ext)
	}
	return exts
}

func runScan(ctx context.Context, v *verify.Verifier) error {
	if filename != "" {
		specificFile := filepath.Join(dirPath, filename)
		if _, err := os.Stat(specificFile); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", specificFile)
		}
		report, err := scanFile(ctx, v, specificFile,
			reportPaths(dirPath, outputDir, []string{specificFile})[0])
		if err != nil {
			return err
		}
		printSummary(specificFile, report)
		return nil
	}

	options := connectors.DiscoveryOptions{
		Recursive: recursive,
		MinSize:   minSize,
		MaxSize:   maxSize,
	}
	files, err := connectors.DiscoverFiles(dirPath, scanExtensions(), options)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan][reset] Verifying files..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	paths := make([]string, len(files))
	for i, file := range files {
		paths[i] = file.Path
	}
	outPaths := reportPaths(dirPath, outputDir, paths)

	reports := make([]*verify.Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, file := range files {
		g.Go(func() error {
			defer bar.Add(1) //nolint:errcheck
			report, err := scanFile(gctx, v, file.Path, outPaths[i])
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				slog.Error("failed to verify", "file", file.Path, "error", err)
				return nil
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	bar.Finish() //nolint:errcheck

	failed := 0
	for i, file := range files {
		if reports[i] == nil {
			failed++
			continue
		}
		printSummary(file.Path, reports[i])
	}
	slog.Info("scan complete", "files", len(files), "failed", failed, "output", outputDir)
	return nil
}

// reportPaths maps each scanned file to its report path under outDir. The
// directory layout below root is mirrored, and files sharing a stem in the
// same directory keep their extension in the report name.
func reportPaths(root, outDir string, paths []string) []string {
	bases := make([]string, len(paths))
	counts := make(map[string]int, len(paths))
	for i, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(p)
		}
		bases[i] = strings.TrimSuffix(rel, filepath.Ext(rel))
		counts[bases[i]]++
	}

	out := make([]string, len(paths))
	for i, p := range paths {
		base := bases[i]
		if counts[base] > 1 {
			base += "_" + strings.TrimPrefix(strings.ToLower(filepath.Ext(p)), ".")
		}
		out[i] = filepath.Join(outDir, base+"_report.json")
	}
	return out
}

// scanFile verifies one file and writes its report to reportPath.
func scanFile(ctx context.Context, v *verify.Verifier, path, reportPath string) (*verify.Report, error) {
	res, err := loader.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	report, err := v.Verify(ctx, res.Dataset, res.Name)
	if err != nil {
		return nil, err
	}
	if err := saveReport(reportPath, report); err != nil {
		return nil, err
	}
	return report, nil
}

func saveReport(path string, report *verify.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := writeReport(out, report, "json"); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to write report file %s: %w", path, err)
	}
	return nil
}

func printSummary(path string, r *verify.Report) {
	fmt.Printf("\nFile: %s\n", path)
	fmt.Printf("- Verified: %t\n", r.IsVerified)
	fmt.Printf("- Quality Score: %.2f\n", r.QualityScore)
	fmt.Printf("- Relevance: %s\n", r.Details.Relevance)

	if verbose {
		q := r.Details.Quality
		fmt.Printf("  Rows: %d\n", r.Details.Metadata.Rows)
		fmt.Printf("  Missing Ratio: %.2f%%\n", q.MissingRatio*100)
		fmt.Printf("  Incorrect Types: %d\n", q.IncorrectTypes)
		fmt.Printf("  Anomalies: %d\n", q.Anomalies)
		fmt.Printf("  Duplicates: %d\n", q.Duplicates)
		fmt.Printf("  PII: %t (%d)\n", r.Details.PIIDetected, r.Details.PIICount)
		fmt.Printf("  Bias: %s (%.2f)\n", r.Details.Bias, r.Details.BiasScore)
		fmt.Printf("  Diversity: %.2f\n", r.Details.Diversity)
		fmt.Printf("  Dataset Hash: %s\n", r.DatasetHash)
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVarP(&filename, "file", "n", "",
		"You might want to check specific file only")
	scanCmd.Flags().StringVarP(&dirPath, "dir", "d", "",
		"Directory to scan (required)")
	scanCmd.Flags().StringVarP(&fileFormat, "format", "f", "all",
		"Comma separated file formats to verify (csv, json, xlsx, parquet) or all")
	scanCmd.Flags().BoolVarP(&recursive, "recursive", "r", false,
		"Search directories recursively")
	scanCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Display detailed check results")
	scanCmd.Flags().Int64Var(&minSize, "min-size", 0,
		"Minimum file size in bytes")
	scanCmd.Flags().Int64Var(&maxSize, "max-size", 0,
		"Maximum file size in bytes")
	scanCmd.Flags().IntVarP(&workers, "workers", "w", runtime.NumCPU(),
		"Number of files verified in parallel")
	scanCmd.Flags().StringVar(&schedule, "schedule", "",
		"Cron expression to rescan periodically, e.g. \"@every 1h\"")
	scanCmd.Flags().StringVarP(&outputDir, "output-dir", "o", "reports",
		"Directory for the per file reports")
	addLedgerFlags(scanCmd)

	scanCmd.MarkFlagRequired("dir")
}
