package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/peekknuf/datatrust/internal/connectors"
	"github.com/peekknuf/datatrust/internal/dataset"
	"github.com/peekknuf/datatrust/internal/loader"
	"github.com/peekknuf/datatrust/internal/profiler"
)

var (
	describeWorkers   int
	outputFile        string
	describeRecursive bool
)

type DescribeResult struct {
	Path           string
	RowCount       int
	ColumnStats    []ColumnStats
	NullPercentage float64
	ProcessingTime time.Duration
	Error          error
}

type ColumnStats struct {
	Name      string
	Role      profiler.Role
	Count     int
	NullCount int
	Mean      float64
	Std       float64
	Min       float64
	Q25       float64
	Q50       float64
	Q75       float64
	Max       float64
	Unique    int    // For non-numeric columns
	Top       string // For non-numeric columns
	Freq      int    // For non-numeric columns
}

var describeCmd = &cobra.Command{
	Use:   "describe [file or directory]",
	Short: "Print per column statistics and classified roles",
	Long: `Print describe-style statistics for every column of a dataset,
along with the role each column is given during verification.

Examples:
  datatrust describe file.csv
  datatrust describe /data/directory/ --recursive
  datatrust describe file.parquet --output results.txt`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetPath := args[0]
		ctx := cmd.Context()

		fileInfo, err := os.Stat(targetPath)
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", targetPath, err)
		}

		startTime := time.Now()
		var results []DescribeResult
		if fileInfo.IsDir() {
			results, err = describeDirectory(ctx, targetPath)
			if err != nil {
				return err
			}
		} else {
			results = []DescribeResult{describeFile(ctx, targetPath)}
		}
		return outputResults(results, time.Since(startTime))
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)

	describeCmd.Flags().IntVar(&describeWorkers, "workers", runtime.NumCPU(),
		"Number of parallel workers")
	describeCmd.Flags().StringVar(&outputFile, "output", "",
		"Output file to save results (default: stdout)")
	describeCmd.Flags().BoolVar(&describeRecursive, "recursive", false,
		"Process directories recursively")
}

func describeDirectory(ctx context.Context, dir string) ([]DescribeResult, error) {
	files, err := connectors.DiscoverFiles(dir, loader.Extensions(),
		connectors.DiscoveryOptions{Recursive: describeRecursive})
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	fmt.Printf("Found %d data files\n", len(files))

	progressBar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetDescription("[cyan][reset] Processing files..."),
		progressbar.OptionSetWidth(20),
	)

	results := make([]DescribeResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(describeWorkers, 1))
	for i, f := range files {
		g.Go(func() error {
			results[i] = describeFile(gctx, f.Path)
			progressBar.Add(1) //nolint:errcheck
			return nil
		})
	}
	g.Wait()             //nolint:errcheck
	progressBar.Finish() //nolint:errcheck
	return results, nil
}

func describeFile(ctx context.Context, path string) DescribeResult {
	start := time.Now()
	res, err := loader.Load(ctx, path)
	if err != nil {
		return DescribeResult{Path: path, Error: err}
	}
	d := res.Dataset
	roles := profiler.Classify(d, thresholds)

	stats := make([]ColumnStats, 0, d.Width())
	nulls := 0
	for _, c := range d.Columns() {
		stats = append(stats, describeColumn(c, roles.Of(c.Name())))
		nulls += c.NullCount()
	}

	var nullPct float64
	if d.Cells() > 0 {
		nullPct = float64(nulls) / float64(d.Cells()) * 100
	}
	return DescribeResult{
		Path:           path,
		RowCount:       d.Rows(),
		ColumnStats:    stats,
		NullPercentage: nullPct,
		ProcessingTime: time.Since(start),
	}
}

func describeColumn(c dataset.Column, role profiler.Role) ColumnStats {
	cs := ColumnStats{
		Name:      c.Name(),
		Role:      role,
		Count:     c.NonNullCount(),
		NullCount: c.NullCount(),
		Unique:    c.Distinct(),
	}
	if role == profiler.RoleNumeric {
		st := profiler.Summarize(c.Name(), c.Floats())
		cs.Mean, cs.Std = st.Mean, st.Std
		cs.Min, cs.Max = st.Min, st.Max
		cs.Q25, cs.Q50, cs.Q75 = st.Q25, st.Q50, st.Q75
		return cs
	}

	// Top is the first value in row order among the most frequent ones.
	counts := c.Counts()
	for i := 0; i < c.Len(); i++ {
		v := c.At(i)
		if v.IsNull() {
			continue
		}
		if n := counts[v.Key()]; n > cs.Freq {
			cs.Top, cs.Freq = v.String(), n
		}
	}
	return cs
}

func outputResults(results []DescribeResult, totalTime time.Duration) error {
	var output strings.Builder

	output.WriteString("=== DATASET SUMMARY ===\n")
	output.WriteString(fmt.Sprintf("Total files processed: %d\n", len(results)))
	output.WriteString(fmt.Sprintf("Total processing time: %v\n", totalTime.Round(time.Millisecond)))

	counts := make(map[profiler.Role]int)
	var totalRows, totalCols int
	for _, result := range results {
		if result.Error != nil {
			slog.Error("failed to describe", "file", result.Path, "error", result.Error)
			continue
		}
		totalRows += result.RowCount
		totalCols += len(result.ColumnStats)
		for _, col := range result.ColumnStats {
			counts[col.Role]++
		}
	}
	output.WriteString(fmt.Sprintf("Total rows processed: %d\n", totalRows))
	output.WriteString(fmt.Sprintf("Total columns analyzed: %d\n", totalCols))
	output.WriteString(fmt.Sprintf("Numeric: %d, Categorical: %d, String: %d, Unclassified: %d\n\n",
		counts[profiler.RoleNumeric], counts[profiler.RoleCategorical],
		counts[profiler.RoleString], counts[profiler.RoleUnclassified]))

	for _, result := range results {
		if result.Error != nil {
			continue
		}
		output.WriteString(fmt.Sprintf("File: %s\n", filepath.Base(result.Path)))
		output.WriteString(fmt.Sprintf("  Rows: %d | Columns: %d | Null Rate: %.1f%% | Time: %s\n",
			result.RowCount, len(result.ColumnStats), result.NullPercentage,
			result.ProcessingTime.Round(time.Millisecond)))
		output.WriteString(fmt.Sprintf("  %-24s %-13s %8s %6s %12s %12s %12s %12s %12s\n",
			"Column", "Role", "Count", "Nulls", "Mean/Unique", "Std/Freq", "Min", "Median", "Max"))
		for _, col := range result.ColumnStats {
			name := col.Name
			if len(name) > 24 {
				name = name[:21] + "..."
			}
			if col.Role == profiler.RoleNumeric {
				output.WriteString(fmt.Sprintf("  %-24s %-13s %8d %6d %12.4g %12.4g %12.4g %12.4g %12.4g\n",
					name, col.Role, col.Count, col.NullCount, col.Mean, col.Std, col.Min, col.Q50, col.Max))
				continue
			}
			top := col.Top
			if len(top) > 12 {
				top = top[:9] + "..."
			}
			output.WriteString(fmt.Sprintf("  %-24s %-13s %8d %6d %12d %12d %12s\n",
				name, col.Role, col.Count, col.NullCount, col.Unique, col.Freq, top))
		}
		output.WriteString("\n")
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output.String()), 0o644); err != nil {
			return fmt.Errorf("failed to write to output file %s: %w", outputFile, err)
		}
		fmt.Printf("Results saved to %s\n", outputFile)
		return nil
	}
	fmt.Print(output.String())
	return nil
}
