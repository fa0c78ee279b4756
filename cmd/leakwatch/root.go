package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/leakwatch/pkg/config"
)

// globalOptions are the flags shared by every subcommand.
type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:           "leakwatch",
		Short:         "Find leaked Indian PII in published content",
		Long:          "leakwatch scans files, pastes and repository content for Aadhaar, PAN and related identifiers and scores how exposed each source is.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to leakwatch.yaml (built-in defaults when empty)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level (debug|info|warn|error)")

	cmd.AddCommand(
		newScanCmd(opts),
		newServeCmd(opts),
		newRedactCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads the configuration file, or the defaults when none is given.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		cfg := config.Default()
		return cfg, config.Validate(cfg)
	}
	return config.LoadConfig(o.configPath)
}

// newLogger builds the process logger from the logging section.
func newLogger(c config.LoggingConfig, levelOverride string, stdout, stderr io.Writer) (*slog.Logger, error) {
	name := c.Level
	if levelOverride != "" {
		name = levelOverride
	}

	var level slog.Level
	if name != "" {
		if err := level.UnmarshalText([]byte(name)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", name, err)
		}
	}

	out := stderr
	if strings.EqualFold(c.Output, "stdout") {
		out = stdout
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(out, handlerOpts)), nil
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts)), nil
}

// setup loads the configuration and installs the process logger.
func (o *globalOptions) setup(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.Logging, o.logLevel, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, err
	}
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leakwatch %s (built %s)\n", Version, BuildTime)
		},
	}
}
