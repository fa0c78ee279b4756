package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
)

type redactOptions struct {
	*globalOptions

	deep     bool
	strategy string
}

func newRedactCmd(global *globalOptions) *cobra.Command {
	opts := &redactOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "redact [file|-]",
		Short: "Print content with every finding redacted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "-"
			if len(args) == 1 {
				name = args[0]
			}
			return runRedact(cmd, opts, name)
		},
	}

	cmd.Flags().BoolVar(&opts.deep, "deep", false, "use the semantic judge (deep mode)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "mask|replace|hash (default scanning.redaction.mode)")
	return cmd
}

func runRedact(cmd *cobra.Command, opts *redactOptions, name string) error {
	cfg, logger, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	strategyName := opts.strategy
	if strategyName == "" {
		strategyName = cfg.Scanning.Redaction.Mode
	}
	strategy, err := scan.ParseRedactionStrategy(strategyName)
	if err != nil {
		return err
	}

	var data []byte
	if name == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(name)
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	mode := scan.ModeFast
	if opts.deep {
		mode = scan.ModeDeep
	}
	result, err := rt.scanner.Scan(cmd.Context(), string(data), scan.Options{Mode: mode, Source: name})
	if err != nil {
		return err
	}

	redacted, err := scan.Redact(string(data), result.Findings, strategy)
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), redacted)
	return err
}
