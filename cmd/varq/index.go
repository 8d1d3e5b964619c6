package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/inodb/varq/internal/gindex"
	"github.com/inodb/varq/internal/query"
)

func runIndex(args []string) int {
	fs := flag.NewFlagSet("index", flag.ExitOnError)

	var (
		backend    string
		force      bool
		progress   bool
		exportPath string
		sqlitePath string
		verbose    bool
	)

	fs.StringVar(&backend, "backend", "auto", "Source backend: auto, vcf or bgen")
	fs.BoolVar(&force, "force", false, "Rebuild even when a valid index sidecar exists")
	fs.BoolVar(&progress, "progress", false, "Report scan progress on stderr")
	fs.StringVar(&exportPath, "export", "", "Also export the index to a DuckDB database at this path")
	fs.StringVar(&sqlitePath, "export-sqlite", "", "Also export the index to a SQLite database at this path")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Build the position index sidecar for a variant source.

The sidecar (<source>.vqi) is validated against the source on load; a
source that changed shape since indexing must be reindexed with --force.

Usage:
  varq index [options] <source>

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varq index cohort.vcf.gz
  varq index --force cohort.bgen
  varq index --export cohort.duckdb cohort.vcf
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: source argument required\n\n")
		fs.Usage()
		return ExitUsage
	}

	kind, err := backendKind(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	r, err := query.Open(fs.Arg(0), kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer r.Close()
	r.SetLogger(newLogger(verbose))

	if progress {
		r.SetProgress(func(done, total int64) {
			if total < 0 {
				fmt.Fprintf(os.Stderr, "\rscanned %d records", done)
			} else {
				fmt.Fprintf(os.Stderr, "\rscanned %d records\n", done)
			}
		})
	}

	var ix *gindex.Index
	if force {
		ix, err = r.BuildIndex()
	} else {
		ix, err = r.Index()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Hint: rebuild a stale index with: varq index --force %s\n", fs.Arg(0))
		return ExitError
	}

	fmt.Fprintf(os.Stderr, "Indexed %d records across %d contigs -> %s\n",
		ix.Records(), len(ix.Contigs), gindex.IndexPath(fs.Arg(0)))

	if exportPath != "" {
		if err := gindex.ExportDuckDB(ix, exportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting index: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(os.Stderr, "Exported index to %s\n", exportPath)
	}
	if sqlitePath != "" {
		if err := gindex.ExportSQLite(ix, sqlitePath); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting index: %v\n", err)
			return ExitError
		}
		fmt.Fprintf(os.Stderr, "Exported index to %s\n", sqlitePath)
	}

	return ExitSuccess
}
