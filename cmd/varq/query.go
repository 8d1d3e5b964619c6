package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/query"
	"github.com/inodb/varq/internal/variant"
)

func runQuery(args []string) int {
	fs := flag.NewFlagSet("query", flag.ExitOnError)

	var (
		backend     string
		outputPath  string
		passOnly    bool
		minQual     float64
		biallelic   bool
		snvOnly     bool
		countOnly   bool
		chunkSize   int
		chunkLength int64
		verbose     bool
	)

	fs.StringVar(&backend, "backend", "auto", "Source backend: auto, vcf or bgen")
	fs.StringVar(&outputPath, "o", "", "Output file (default: stdout)")
	fs.StringVar(&outputPath, "output", "", "Output file (default: stdout)")
	fs.BoolVar(&passOnly, "pass-only", false, "Keep only records whose FILTER is PASS or unset")
	fs.Float64Var(&minQual, "min-qual", 0, "Keep only records with QUAL >= this value")
	fs.BoolVar(&biallelic, "biallelic", false, "Keep only records with a single alternate allele")
	fs.BoolVar(&snvOnly, "snv-only", false, "Keep only single-nucleotide variants")
	fs.BoolVar(&countOnly, "count", false, "Print per-range entry counts instead of entries")
	fs.IntVar(&chunkSize, "chunk-size", 0, "Plan chunks of at most this many entries and print the plan")
	fs.Int64Var(&chunkLength, "chunk-length", 0, "Plan chunks of roughly this many base pairs and print the plan")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Query variants overlapping genomic ranges.

Ranges are half-open, 0-based: chr1:100-200 covers positions 100..199.
Multi-allelic records expand to one row per alternate allele.

Usage:
  varq query [options] <source> <range> [<range>...]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varq query cohort.vcf.gz chr1:1000-2000
  varq query --pass-only --min-qual 30 cohort.vcf.gz chr1:0- chr2:0-
  varq query --chunk-size 10000 cohort.bgen chr1:0-248956422
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() < 2 {
		fmt.Fprintf(os.Stderr, "Error: source and at least one range required\n\n")
		fs.Usage()
		return ExitUsage
	}

	kind, err := backendKind(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	rngs := make([]genome.Range, 0, fs.NArg()-1)
	for _, arg := range fs.Args()[1:] {
		rng, err := genome.ParseRegion(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitUsage
		}
		rngs = append(rngs, rng)
	}

	if chunkSize > 0 && chunkLength > 0 {
		fmt.Fprintf(os.Stderr, "Error: --chunk-size and --chunk-length are mutually exclusive\n")
		return ExitUsage
	}

	r, err := query.Open(fs.Arg(0), kind)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer r.Close()
	r.SetLogger(newLogger(verbose))

	if f := buildFilter(passOnly, minQual, biallelic, snvOnly); f != nil {
		r.SetFilter(f)
	}

	out, closeOut, err := outputFile(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer closeOut()
	w := bufio.NewWriter(out)
	defer w.Flush()

	switch {
	case countOnly:
		counts, err := r.CountRanges(rngs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitError
		}
		for i, n := range counts {
			fmt.Fprintf(w, "%s\t%d\n", rngs[i], n)
		}

	case chunkSize > 0 || chunkLength > 0:
		for _, rng := range rngs {
			var chunks []query.Chunk
			if chunkSize > 0 {
				chunks, err = r.QueryChunksCount(rng, chunkSize)
			} else {
				chunks, err = r.QueryChunksLength(rng, chunkLength)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				return ExitError
			}
			for i, c := range chunks {
				fmt.Fprintf(w, "%s\tchunk=%d\tentries=%d\n", c.Range, i, len(c.Offsets))
			}
		}

	default:
		fmt.Fprintln(w, strings.Join([]string{
			"contig", "start", "end", "index", "record", "allele", "n_alt",
		}, "\t"))
		per, err := r.QueryRanges(rngs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitError
		}
		for _, offs := range per {
			for _, off := range offs {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
					off.Contig, off.Pos, off.End, off.Index, off.Record, off.AlleleIndex, off.Alleles)
			}
		}
	}

	return ExitSuccess
}

// buildFilter combines the query filter flags into one predicate, or nil
// when no filtering was requested.
func buildFilter(passOnly bool, minQual float64, biallelic, snvOnly bool) variant.Predicate {
	var preds []variant.Predicate
	if passOnly {
		preds = append(preds, variant.PassOnly())
	}
	if minQual > 0 {
		preds = append(preds, variant.MinQual(minQual))
	}
	if biallelic {
		preds = append(preds, variant.BiallelicOnly())
	}
	if snvOnly {
		preds = append(preds, variant.SNVOnly())
	}
	if len(preds) == 0 {
		return nil
	}
	if len(preds) == 1 {
		return preds[0]
	}
	return variant.And(preds...)
}
