package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"procurement-api/internal"
	"procurement-api/internal/config"
	"procurement-api/internal/logging"
	"procurement-api/pkg/importer"

	"go.uber.org/zap"
)

func main() {
	var (
		filePath    = flag.String("file", "", "Path to the .xlsx workbook")
		mappingPath = flag.String("mapping", "", "YAML column mapping (default: built-in vendor mapping)")
		dryRun      = flag.Bool("dry-run", false, "Validate rows without creating vendors")
		maxErrors   = flag.Int("max-errors", 50, "Stop after this many row errors")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Usage: import_vendors --file=vendors.xlsx [--mapping=mapping.yaml] [--dry-run] [--max-errors=50]")
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	mapping, err := importer.LoadMapping(*mappingPath)
	if err != nil {
		logger.Fatal("failed to load mapping", zap.Error(err))
	}

	ctx := logging.WithLogger(context.Background(), logger)
	srv, err := internal.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open store backend", zap.Error(err))
	}
	defer srv.Close(ctx)

	file, err := os.Open(*filePath)
	if err != nil {
		logger.Fatal("failed to open Excel file", zap.Error(err))
	}
	defer file.Close()

	fmt.Printf("Importing vendors from %s into the %s backend (dry_run=%v)\n", *filePath, cfg.Backend(), *dryRun)
	fmt.Println(strings.Repeat("=", 60))

	summary, err := importer.ImportVendors(ctx, srv.Services.Vendors, file, importer.ImportOptions{
		Mapping:   mapping,
		DryRun:    *dryRun,
		MaxErrors: *maxErrors,
	})
	printSummary(summary)
	if err != nil {
		logger.Error("import failed", zap.Error(err))
		os.Exit(1)
	}
}

func printSummary(summary importer.ImportSummary) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("IMPORT SUMMARY")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("Total inserted: %d\n", summary.Inserted)
	fmt.Printf("Total skipped: %d\n", summary.Skipped)
	fmt.Printf("Total errors: %d\n", summary.Errors)
	fmt.Printf("Dry run: %v\n", summary.DryRun)

	if len(summary.Sheets) > 0 {
		fmt.Println("\nSheet Details:")
		for _, sheet := range summary.Sheets {
			fmt.Printf("  %s: inserted=%d, skipped=%d, errors=%d\n",
				sheet.Name, sheet.Inserted, sheet.Skipped, sheet.Errors)

			if len(sheet.Samples) > 0 {
				fmt.Printf("    Error samples:\n")
				for _, sample := range sheet.Samples {
					fmt.Printf("      Row %d: %s\n", sample.Row, sample.Message)
				}
			}
		}
	}
}
