package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Tributary-ai-services/leakwatch/pkg/pipeline"
	"github.com/Tributary-ai-services/leakwatch/pkg/scan"
	"github.com/Tributary-ai-services/leakwatch/pkg/score"
)

// errThresholdReached makes the process exit with status 1.
var errThresholdReached = errors.New("exposure threshold reached")

type scanOptions struct {
	*globalOptions

	deep     bool
	channel  string
	json     bool
	threads  int
	failOn   string
	publish  bool
	excludes []string
	findings bool
}

func newScanCmd(global *globalOptions) *cobra.Command {
	opts := &scanOptions{globalOptions: global}

	cmd := &cobra.Command{
		Use:   "scan [paths...|-]",
		Short: "Scan files or stdin for leaked PII",
		Long:  "Scan files, directories or stdin (\"-\") and report findings with an exposure score per source.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.deep, "deep", false, "use the semantic judge (deep mode)")
	cmd.Flags().StringVar(&opts.channel, "channel", "unknown", "publication channel of the content (github_public, gitlab_public, pastebin, ...)")
	cmd.Flags().BoolVar(&opts.json, "json", false, "emit JSON")
	cmd.Flags().IntVar(&opts.threads, "threads", 0, "worker count (0 = pipeline.concurrency)")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "", "exit 1 when the aggregate label reaches low|medium|high|critical")
	cmd.Flags().BoolVar(&opts.publish, "publish", false, "publish findings and scores to Kafka")
	cmd.Flags().StringSliceVar(&opts.excludes, "exclude", nil, "additional exclude globs (doublestar syntax)")
	cmd.Flags().BoolVar(&opts.findings, "findings", true, "list individual findings in table output")
	return cmd
}

func runScan(cmd *cobra.Command, opts *scanOptions, args []string) error {
	threshold, err := parseFailOn(opts.failOn)
	if err != nil {
		return err
	}

	cfg, logger, err := opts.setup(cmd)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		args = []string{"."}
	}
	excludes := append(append([]string(nil), cfg.Scanning.Prescreen.SkipGlobs...), opts.excludes...)
	excludes = append(excludes, scan.DefaultSkipGlobs...)
	sources, err := collectSources(args, excludes, opts.channel, cmd.InOrStdin())
	if err != nil {
		return err
	}
	logger.Debug("sources collected", "count", len(sources))

	rt, err := buildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	proc, err := buildProcessor(cfg, rt, logger, processorOverrides{
		deep:    opts.deep,
		publish: opts.publish,
		threads: opts.threads,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := proc.Close(); err != nil {
			logger.Warn("closing pipeline", "error", err)
		}
	}()

	batch, err := proc.ProcessBatch(cmd.Context(), sources)
	if err != nil {
		return err
	}
	for _, f := range batch.Failures {
		logger.Error("source failed", "source", f.SourceID, "error", f.Error)
	}

	out := cmd.OutOrStdout()
	if opts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(batch); err != nil {
			return err
		}
	} else if err := renderBatch(out, batch, opts.findings); err != nil {
		return err
	}

	if threshold != "" && batch.Summary.Label.Value() >= threshold.Value() {
		return errThresholdReached
	}
	return nil
}

// parseFailOn validates the --fail-on label. The empty string disables it.
func parseFailOn(name string) (score.Label, error) {
	if name == "" {
		return "", nil
	}
	label := score.Label(strings.ToUpper(name))
	if label.Value() == 0 {
		return "", fmt.Errorf("invalid --fail-on %q (want low|medium|high|critical)", name)
	}
	return label, nil
}

// collectSources reads every input. Directories are walked; files and
// directories matching an exclude glob are skipped.
func collectSources(args, excludes []string, channel string, stdin io.Reader) ([]pipeline.Source, error) {
	for _, g := range excludes {
		if !doublestar.ValidatePattern(g) {
			return nil, fmt.Errorf("invalid exclude glob %q", g)
		}
	}

	var sources []pipeline.Source
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			sources = append(sources, pipeline.Source{ID: "stdin", Channel: channel, Location: "-", Content: data})
			continue
		}

		err := filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := filepath.ToSlash(p)
			if d.IsDir() {
				// A directory is excluded when its contents are.
				if p != arg && excluded(excludes, path.Join(name, "x")) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || excluded(excludes, name) {
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			sources = append(sources, pipeline.Source{
				ID:       name,
				Channel:  channel,
				Location: name,
				Filename: name,
				Content:  data,
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return sources, nil
}

func excluded(globs []string, name string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, name); ok {
			return true
		}
	}
	return false
}

// renderBatch prints the findings, the per-source scores and the summary.
func renderBatch(w io.Writer, batch *pipeline.BatchReport, withFindings bool) error {
	if withFindings && len(batch.Unique) > 0 {
		t := tablewriter.NewWriter(w)
		t.Header("Category", "Value", "Risk", "Tier", "Confidence", "Seen", "Source")
		for _, u := range batch.Unique {
			if err := t.Append([]string{
				string(u.Category),
				u.MaskedValue,
				string(u.Risk),
				string(u.Tier),
				strconv.FormatFloat(u.Confidence, 'f', 2, 64),
				strconv.Itoa(u.Occurrences),
				u.SourceID,
			}); err != nil {
				return err
			}
		}
		if err := t.Render(); err != nil {
			return err
		}
	}

	t := tablewriter.NewWriter(w)
	t.Header("Source", "Channel", "ESS", "Label", "Toxic combo", "Findings", "Note")
	for _, r := range batch.Reports {
		if r.Score.FindingCount == 0 && !r.Skipped {
			continue
		}
		note := r.Score.Note
		if r.Skipped {
			note = r.SkipReason
		}
		if err := t.Append([]string{
			r.SourceID,
			r.Channel,
			strconv.FormatFloat(r.Score.Score, 'f', 2, 64),
			string(r.Score.Label),
			r.Score.ToxicComboLabel,
			strconv.Itoa(r.Score.FindingCount),
			note,
		}); err != nil {
			return err
		}
	}
	if err := t.Render(); err != nil {
		return err
	}

	s := batch.Summary
	_, err := fmt.Fprintf(w, "\n%d sources, %d failed | max ESS %.2f (%s) avg %.2f | unique findings %d: %d critical, %d high, %d medium\n",
		s.TotalSources, len(batch.Failures), s.MaxESS, s.Label, s.AvgESS,
		batch.Counts.Total, batch.Counts.Critical, batch.Counts.High, batch.Counts.Medium)
	return err
}
