package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/joshuapare/kheap/internal/logger"
)

const envPrefix = "KHEAPCTL"

// cli carries state shared by every subcommand of one root command.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}

	cmd := &cobra.Command{
		Use:   "kheapctl",
		Short: "Exercise and inspect the kheap region allocator",
		Long: `kheapctl runs synthetic allocation workloads against the kheap
allocator and reports accounting, fragmentation and size-class usage.

Every flag can also be set in a config file (--config, or kheapctl.yaml in
the working or home directory) or through an environment variable named
after the flag with a KHEAPCTL_ prefix, e.g. KHEAPCTL_STEPS=5000.
Flags take precedence over the environment, which takes precedence over the
config file.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.configure,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&c.cfgFile, "config", "", "Config file (default: kheapctl.yaml in . or $HOME)")
	pf.String("preset", "Kernel", "Size-class preset: Kernel, SmallPools or NoPools")
	pf.Bool("json", false, "Output in JSON format")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.Bool("log-json", false, "Write logs as JSON")
	pf.BoolP("verbose", "v", false, "Enable logging to stderr")

	cmd.AddCommand(
		c.newSimulateCmd(),
		c.newClassesCmd(),
		c.newMetricsCmd(),
		newVersionCmd(),
	)
	return cmd
}

// configure loads the config file, binds the running command's flags and
// sets up logging.
func (c *cli) configure(cmd *cobra.Command, _ []string) error {
	v := c.v
	if c.cfgFile != "" {
		v.SetConfigFile(c.cfgFile)
	} else {
		v.SetConfigName("kheapctl")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if c.cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	return logger.Init(logger.Options{
		Enabled: v.GetBool("verbose"),
		JSON:    v.GetBool("log-json"),
		Level:   logger.ParseLevel(v.GetString("log-level")),
		Output:  cmd.ErrOrStderr(),
	})
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Helper functions for output

// printer formats numbers with thousands separators.
var printer = message.NewPrinter(language.English)

// printInfo prints an info message unless quiet is set.
func (c *cli) printInfo(w io.Writer, format string, args ...any) {
	if !c.v.GetBool("quiet") {
		printer.Fprintf(w, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
