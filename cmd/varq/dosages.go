package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/inodb/varq/internal/genome"
	"github.com/inodb/varq/internal/matrix"
	"github.com/inodb/varq/internal/query"
	"github.com/inodb/varq/internal/variant"
)

func runDosages(args []string) int {
	fs := flag.NewFlagSet("dosages", flag.ExitOnError)

	var (
		backend      string
		outputPath   string
		dosageSource string
		samplesFlag  string
		maxMem       string
		workers      int
		verbose      bool
	)

	fs.StringVar(&backend, "backend", "auto", "Source backend: auto, vcf or bgen")
	fs.StringVar(&outputPath, "o", "", "Output file (default: stdout)")
	fs.StringVar(&outputPath, "output", "", "Output file (default: stdout)")
	fs.StringVar(&dosageSource, "dosage-source", "", "Separate BGEN source to read dosages from")
	fs.StringVar(&samplesFlag, "samples", "", "Comma-separated samples to extract, in order (default: all)")
	fs.StringVar(&maxMem, "max-mem", viper.GetString("dosages.max_mem"), "Memory budget per chunk, e.g. 512m or 4g")
	fs.IntVar(&workers, "workers", viper.GetInt("query.workers"), "Parallel chunk workers (0 = all CPUs)")
	fs.BoolVar(&verbose, "v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Extract per-sample alternate-allele dosages for a genomic range.

Output is one row per alternate allele with one column per sample.
Missing genotypes print as %q, never as 0.

Usage:
  varq dosages [options] <source> <range>

Options:
`, viper.GetString("dosages.missing"))
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varq dosages cohort.bgen chr1:0-1000000
  varq dosages --samples HG001,HG002 --max-mem 4g cohort.bgen chr1:0-
  varq dosages --dosage-source cohort.bgen sites.vcf chr2:5000-6000
`)
	}

	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if fs.NArg() != 2 {
		fmt.Fprintf(os.Stderr, "Error: source and range arguments required\n\n")
		fs.Usage()
		return ExitUsage
	}

	kind, err := backendKind(backend)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}
	rng, err := genome.ParseRegion(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}
	budget, err := query.ParseMemory(maxMem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitUsage
	}

	var samples []string
	if samplesFlag != "" {
		samples = strings.Split(samplesFlag, ",")
	}

	newReader := func() (*query.Reader, error) {
		r, err := query.Open(fs.Arg(0), kind)
		if err != nil {
			return nil, err
		}
		if dosageSource != "" {
			if err := r.SetDosageSource(dosageSource); err != nil {
				r.Close()
				return nil, err
			}
		}
		if err := r.SetSamples(samples); err != nil {
			r.Close()
			return nil, err
		}
		return r, nil
	}

	r, err := newReader()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer r.Close()
	r.SetLogger(newLogger(verbose))

	perChunk := query.VariantsPerChunk(budget, len(r.Samples()))
	chunks, err := r.QueryChunksCount(rng, perChunk)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	out, closeOut, err := outputFile(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	defer closeOut()
	w := bufio.NewWriter(out)
	defer w.Flush()

	fmt.Fprintf(w, "contig\tstart\tallele\t%s\n", strings.Join(r.Samples(), "\t"))

	missing := viper.GetString("dosages.missing")
	results := query.ParallelDosages(newReader, chunks, workers)
	err = query.OrderedCollect(results, func(cr query.ChunkResult) error {
		if cr.Err != nil {
			return cr.Err
		}
		return writeDosageRows(w, cr.Chunk.Offsets, cr.Dosages, missing)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}

	return ExitSuccess
}

func writeDosageRows(w *bufio.Writer, offsets []variant.Offset, dosages [][]float32, missing string) error {
	for i, off := range offsets {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d", off.Contig, off.Pos, off.AlleleIndex); err != nil {
			return err
		}
		for _, d := range dosages[i] {
			if matrix.IsMissing(d) {
				if _, err := fmt.Fprintf(w, "\t%s", missing); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(w, "\t%.4g", d); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}
