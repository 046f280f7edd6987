// pianalytics: command-line client for the prompt analytics API.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/pianalytics/internal/analytics"
	"github.com/seenimoa/pianalytics/internal/config"
	"github.com/seenimoa/pianalytics/internal/logging"
	"github.com/seenimoa/pianalytics/internal/report"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries the state built once per invocation in PersistentPreRunE.
type app struct {
	cfg     *config.Config
	flagged []string // settings overridden on the command line
	logger  *zap.Logger
	client  *analytics.Client
	out     *report.Printer
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pianalytics",
		Short: "pianalytics: client for the prompt analytics API",
		Long: `pianalytics submits prompts to the analytics API, fetches their
time-series scores, broadcasts prompts and retrieves the resulting analysis
records and recommended tickers.

Every command is a single request/response round trip. Failures are reported
as-is; nothing is retried.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file path (default: ./config/config.yaml)")
	pf.String("base-url", "", "analytics API base URL override")
	pf.String("log-level", "", "log level override (debug, info, warn, error)")
	pf.StringP("output", "o", "", "output format override (text, json, yaml)")
	pf.Int("timeout", -1, "transport timeout in seconds override (0 disables)")
	pf.Bool("strict", false, "treat a submission response without prompt_id as an error")

	root.AddCommand(
		versionCmd(),
		a.submitCmd(),
		a.scoresCmd(),
		a.broadcastCmd(),
		a.resultsCmd(),
		a.demoCmd(),
		a.serveCmd(),
		a.statusCmd(),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger,
// API client and printer.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	var err error
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		a.cfg, err = config.LoadFromFile(configFile)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.flagged = applyFlagOverrides(cmd, a.cfg)
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(a.cfg.Logging)
	if err != nil {
		return err
	}
	a.logger = logger.With(zap.String("run_id", uuid.NewString()))

	ua := a.cfg.API.UserAgent
	if ua == "" {
		ua = "pianalytics/" + version
	}
	a.client, err = analytics.New(analytics.Config{
		BaseURL:        a.cfg.API.BaseURL,
		Timeout:        a.cfg.API.Timeout(),
		UserAgent:      ua,
		StrictPromptID: a.cfg.API.StrictPromptID,
		Logger:         a.logger,
	})
	if err != nil {
		return err
	}

	format, err := report.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	a.out = report.New(cmd.OutOrStdout(), format)

	a.logger.Debug("configured",
		zap.String("command", cmd.Name()),
		zap.String("base_url", a.client.BaseURL()),
		zap.String("output", string(format)),
	)
	return nil
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) []string {
	var flagged []string
	flags := cmd.Flags()
	if v, _ := flags.GetString("base-url"); v != "" {
		cfg.API.BaseURL = v
		flagged = append(flagged, config.KeyBaseURL)
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.Logging.Level = v
		flagged = append(flagged, config.KeyLogLevel)
	}
	if v, _ := flags.GetString("output"); v != "" {
		cfg.Output.Format = v
		flagged = append(flagged, config.KeyOutputFormat)
	}
	if v, _ := flags.GetInt("timeout"); v >= 0 {
		cfg.API.TimeoutSec = v
		flagged = append(flagged, config.KeyTimeout)
	}
	if flags.Changed("strict") {
		cfg.API.StrictPromptID, _ = flags.GetBool("strict")
		flagged = append(flagged, config.KeyStrictPromptID)
	}
	return flagged
}

// --- Version Command ---

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip the root setup: printing the version needs no config.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pianalytics %s\n", version)
			fmt.Fprintf(out, "  commit:  %s\n", commit)
			fmt.Fprintf(out, "  built:   %s\n", date)
		},
	}
}

// --- Status Command ---

func (a *app) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.out.Settings(config.CheckSettings(a.cfg, a.flagged...))
		},
	}
}
