// Package main provides the varq command-line tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/varq/internal/variant"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")

	flag.Parse()

	if showVersion {
		fmt.Printf("varq version %s (%s) built %s\n", version, commit, date)
		return ExitSuccess
	}

	initConfig()

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return ExitUsage
	}

	switch args[0] {
	case "index":
		return runIndex(args[1:])
	case "query":
		return runQuery(args[1:])
	case "dosages":
		return runDosages(args[1:])
	case "config":
		cmd := newConfigCmd()
		cmd.SetArgs(args[1:])
		if err := cmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return ExitError
		}
		return ExitSuccess
	case "help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		printUsage()
		return ExitUsage
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `varq - range queries over genomic variant files

Usage:
  varq [options] <command> [arguments]

Commands:
  index       Build or export the position index of a variant source
  query       Query variants overlapping genomic ranges
  dosages     Extract per-sample alternate-allele dosages
  config      Manage varq configuration
  help        Show this help message

Global Options:
  --version   Show version information

Examples:
  # Build the index sidecar up front (otherwise built on first query)
  varq index cohort.vcf.gz

  # Query a region, expanding multi-allelic records per alternate allele
  varq query cohort.vcf.gz chr1:1000-2000

  # Extract dosages from a BGEN source in memory-bounded chunks
  varq dosages --max-mem 4g cohort.bgen chr1:0-248956422

For more information on a command, use:
  varq <command> --help
`)
}

// initConfig loads ~/.varq.yaml when present. Missing config is fine;
// every key has a default.
func initConfig() {
	viper.SetConfigName(".varq")
	viper.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
	}
	viper.SetEnvPrefix("varq")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("query.workers", 0)
	viper.SetDefault("dosages.max_mem", "1g")
	viper.SetDefault("dosages.missing", ".")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Warning: could not read config: %v\n", err)
		}
	}
}

// newLogger builds the CLI logger: human-readable on stderr, debug level
// when verbose.
func newLogger(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// backendKind maps the --backend flag onto a variant.Kind.
func backendKind(s string) (variant.Kind, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return variant.KindAuto, nil
	case "vcf", "record":
		return variant.KindRecord, nil
	case "bgen", "matrix":
		return variant.KindMatrix, nil
	}
	return variant.KindAuto, fmt.Errorf("unknown backend %q (want auto, vcf or bgen)", s)
}

// outputFile opens the -o target, defaulting to stdout.
func outputFile(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func configPath() string {
	if cfg := viper.ConfigFileUsed(); cfg != "" {
		return cfg
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".varq.yaml"
	}
	return filepath.Join(home, ".varq.yaml")
}
