package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/varq/internal/query"
)

// configKeys are the settings varq reads. Keys outside this set are
// rejected rather than silently written and ignored.
var configKeys = map[string]struct {
	usage string
	check func(value string) error
}{
	"query.workers": {
		usage: "worker pool size for chunked dosage extraction (0 = NumCPU)",
		check: func(v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("want a non-negative integer, got %q", v)
			}
			return nil
		},
	},
	"dosages.max_mem": {
		usage: "per-chunk memory budget for dosage matrices (e.g. 512m, 2g)",
		check: func(v string) error {
			_, err := query.ParseMemory(v)
			return err
		},
	},
	"dosages.missing": {
		usage: "string written for missing dosage values",
		check: func(string) error { return nil },
	},
}

func checkConfigKey(key string) error {
	if _, ok := configKeys[key]; ok {
		return nil
	}
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	sort.Strings(names)
	return fmt.Errorf("unknown config key %q (known keys: %v)", key, names)
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage varq configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.varq.yaml.",
		Example: `  varq config                      # show all config
  varq config set query.workers 8  # pin the worker pool size
  varq config get dosages.max_mem  # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow()
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(args[0])
		},
	}
}

// runConfigShow prints every known key with its effective value, so the
// output doubles as documentation of what can be set.
func runConfigShow() error {
	names := make([]string, 0, len(configKeys))
	for k := range configKeys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		fmt.Printf("%-16s %-6v # %s\n", k, viper.Get(k), configKeys[k].usage)
	}
	fmt.Printf("\n# config file: %s\n", configPath())
	return nil
}

func runConfigSet(key, value string) error {
	if err := checkConfigKey(key); err != nil {
		return err
	}
	if err := configKeys[key].check(value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	viper.Set(key, value)
	cfgFile := configPath()
	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(key string) error {
	if err := checkConfigKey(key); err != nil {
		return err
	}
	fmt.Println(viper.Get(key))
	return nil
}
