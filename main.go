package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/cpa-plot/pkg/config"
	"github.com/gilchrisn/cpa-plot/pkg/visualize"
)

var (
	cfg        = config.NewConfig()
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "cpaplot",
	Short: "Render CPA correlation tables as scatter plots",
	Long: `Reads byte_<i>_correlations.csv for every key byte position and writes
one scatter plot of Hamming distance against power per top-ranked candidate.

Bytes whose table is missing or malformed are logged and skipped.

Examples:
  cpaplot
  cpaplot --input-dir results/ --output-dir plots/ --top 1
  cpaplot --format svg --manifest summary.json`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: loadConfig,
	RunE:              runRender,
	SilenceUsage:      true,
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Print the best-ranked candidate for every byte",
	Args:  cobra.NoArgs,
	RunE:  runKey,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Config file (yaml, json or toml)")
	flags.StringP("input-dir", "i", ".", "Directory holding the correlation tables")
	flags.StringP("output-dir", "o", "plots", "Directory for generated plots")
	flags.Int("bytes", 16, "Number of key byte positions")
	flags.IntP("top", "n", 3, "Candidates to plot per byte")
	flags.Int("dpi", 300, "Raster resolution")
	flags.String("format", "png", "Image format: png, jpg, tiff, svg, pdf or eps")
	flags.String("manifest", "", "Write a run summary with this name into the output directory (.json or .yaml)")
	flags.String("log-level", "info", "Log level")

	bindings := map[string]string{
		"input.dir":       "input-dir",
		"output.dir":      "output-dir",
		"input.num_bytes": "bytes",
		"render.top_n":    "top",
		"render.dpi":      "dpi",
		"render.format":   "format",
		"output.manifest": "manifest",
		"logging.level":   "log-level",
	}
	for key, name := range bindings {
		if err := cfg.BindFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", name, err))
		}
	}

	rootCmd.AddCommand(keyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		if err := cfg.LoadFromFile(configFile); err != nil {
			return fmt.Errorf("failed to load config %s: %w", configFile, err)
		}
	}
	return cfg.Validate()
}

func options() visualize.Options {
	return visualize.Options{
		InputDir:     cfg.InputDir(),
		InputPattern: cfg.InputPattern(),
		NumBytes:     cfg.NumBytes(),
		TopN:         cfg.TopN(),
		OutputDir:    cfg.OutputDir(),
		Manifest:     cfg.Manifest(),
		Style:        cfg.Style(),
	}
}

func newLogger() zerolog.Logger {
	return cfg.CreateLogger().With().Str("run_id", uuid.NewString()).Logger()
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	logger := newLogger()
	result, err := visualize.NewPipeline(options(), logger).Run(ctx)
	if err != nil {
		return err
	}

	logger.Info().Msg(visualize.FormatKey(result.TopCandidates()))
	return nil
}

func runKey(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	result, _, err := visualize.NewPipeline(options(), newLogger()).ReadTables(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), visualize.FormatKey(result.TopCandidates()))
	return nil
}
