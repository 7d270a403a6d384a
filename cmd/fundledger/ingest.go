package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hoaworks/fundledger/internal/bankfeed"
	"github.com/hoaworks/fundledger/internal/cli"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest bank activity from OFX/QFX files",
		Long: `Ingest bank transactions from OFX or QFX files exported from the
association's bank. Re-running the same file is safe: transactions are
deduplicated by a content hash, so nothing is imported twice.

Examples:
  # Ingest a single statement
  fundledger ingest ~/Downloads/operating_jan_2026.qfx

  # Ingest a whole quarter
  fundledger ingest ~/Downloads/operating_*.qfx`,
		Args: cobra.MinimumNArgs(1),
		RunE: runIngest,
	}

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	tenantID, err := requireTenant()
	if err != nil {
		return err
	}

	// Expand globs and collect all files
	var allFiles []string
	for _, pattern := range args {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %s: %w", pattern, err)
		}
		if len(matches) == 0 {
			// If no glob matches, check if it's a direct file
			if _, err := os.Stat(pattern); err == nil {
				allFiles = append(allFiles, pattern)
			} else {
				slog.Warn("No files found matching pattern", "pattern", pattern)
			}
			continue
		}
		allFiles = append(allFiles, matches...)
	}
	if len(allFiles) == 0 {
		return fmt.Errorf("no files to ingest")
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ingester := bankfeed.NewIngester(store)

	bar := progressbar.NewOptions(len(allFiles),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Ingesting bank feeds...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)

	var imported, skipped int
	for _, file := range allFiles {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", file, err)
		}
		result, err := ingester.Ingest(ctx, tenantID, f)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", file, err)
		}
		imported += result.Imported
		skipped += result.Skipped
		_ = bar.Add(1)
	}
	fmt.Println()

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("%s Imported %d transactions (%d duplicates skipped)",
		cli.BankIcon, imported, skipped)))
	return nil
}
