package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"
	"project-tracker-api/internal/store"
	"project-tracker-api/internal/workflow"
	"project-tracker-api/pkg/importer"
)

func main() {
	var (
		filePath    = flag.String("file", "", "Path to the .xlsx workbook (required)")
		createdBy   = flag.String("created-by", "", "ID of the user recorded as creator (required)")
		mappingPath = flag.String("mapping", "", "YAML header mapping (default: built-in Projects mapping)")
		dryRun      = flag.Bool("dry-run", false, "Validate rows without storing them")
		maxErrors   = flag.Int("max-errors", importer.DefaultMaxErrors, "Abort after this many bad rows")
	)
	flag.Parse()

	if *filePath == "" || *createdBy == "" {
		fmt.Println("Error: file and created-by are required")
		fmt.Println("Usage: import_excel --file=path.xlsx --created-by=<user id> [--mapping=mapping.yaml] [--dry-run]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	opts := importer.ImportOptions{CreatedBy: *createdBy, DryRun: *dryRun, MaxErrors: *maxErrors}
	if *mappingPath != "" {
		if opts.Mapping, err = importer.LoadMapping(*mappingPath); err != nil {
			log.WithError(err).Fatal("invalid mapping")
		}
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close(ctx)

	file, err := os.Open(*filePath)
	if err != nil {
		log.WithError(err).Fatal("failed to open Excel file")
	}
	defer file.Close()

	fmt.Printf("Importing from %s as %s (dry_run=%v)\n", *filePath, *createdBy, *dryRun)
	fmt.Println("=" + strings.Repeat("=", 60))

	svc := workflow.NewService(st, workflow.WithLogger(log))
	summary, importErr := importer.ImportExcel(ctx, svc, file, opts)

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
					for field, msg := range sample.Fields {
						fmt.Printf("        %s %s\n", field, msg)
					}
				}
			}
		}
	}

	if importErr != nil {
		log.WithError(importErr).Fatal("import failed")
	}
}
