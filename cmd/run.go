package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/quantumiracle/tiktok-apify/internal/model"
	"github.com/quantumiracle/tiktok-apify/internal/pipeline"
	"github.com/quantumiracle/tiktok-apify/pkg/apify"
)

var runResume string

var runCmd = &cobra.Command{
	Use:   "run [topic]...",
	Short: "Discover influencers for one or more topics",
	Long:  "Runs the discovery pipeline: hashtag search, profile retrieval, email extraction, filtering, and export. Each topic is processed independently; a failing topic never blocks the others.",
	Args: func(cmd *cobra.Command, args []string) error {
		if runResume == "" && len(args) == 0 {
			return eris.New("provide at least one topic, or --resume with a run ID")
		}
		if runResume != "" && len(args) > 0 {
			return eris.New("--resume takes no topics; the stored run defines them")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applyRunFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var clientOpts []apify.Option
		if cfg.Apify.BaseURL != "" {
			clientOpts = append(clientOpts, apify.WithBaseURL(cfg.Apify.BaseURL))
		}
		client := apify.NewClient(cfg.Apify.Token, clientOpts...)

		p, err := pipeline.New(cfg, st, client)
		if err != nil {
			return err
		}

		var report *model.RunReport
		if runResume != "" {
			report, err = p.Resume(ctx, runResume)
		} else {
			report, err = p.Run(ctx, args)
		}
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		printRunReport(os.Stdout, report)

		// A partial run still exports what succeeded; only a run where
		// every topic failed exits non-zero.
		if report.Status() == model.RunStatusFailed {
			return eris.Errorf("run %s: all topics failed", report.RunID)
		}
		return nil
	},
}

func applyRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("results-per-hashtag") {
		cfg.Search.ResultsPerHashtag, _ = flags.GetInt("results-per-hashtag")
	}
	if flags.Changed("max-profiles") {
		cfg.Search.MaxProfilesPerTopic, _ = flags.GetInt("max-profiles")
	}
	if flags.Changed("require-email") {
		cfg.Filter.RequireEmail, _ = flags.GetBool("require-email")
	}
	if flags.Changed("format") {
		cfg.Export.Format, _ = flags.GetString("format")
	}
	if flags.Changed("output-dir") {
		cfg.Export.OutputDir, _ = flags.GetString("output-dir")
	}
	if flags.Changed("concurrency") {
		cfg.Pipeline.TopicConcurrency, _ = flags.GetInt("concurrency")
	}
}

// printRunReport writes a human-readable run summary: per-topic counts with
// a preview of the top accounts, then failures and artifacts.
func printRunReport(out io.Writer, report *model.RunReport) {
	p := message.NewPrinter(language.English)
	summary := report.Summary()

	_, _ = p.Fprintf(out, "Run %s: %s (%d topics, %d failed, %d profiles kept, %s)\n",
		truncateID(report.RunID), report.Status(), summary.TopicsTotal,
		summary.TopicsFailed, summary.ProfilesKept, report.Duration.Round(time.Millisecond))

	if len(report.Resumed) > 0 {
		_, _ = fmt.Fprintf(out, "Restored from checkpoints: %s\n", strings.Join(report.Resumed, ", "))
	}

	for _, topic := range report.Results.Topics() {
		profiles := report.Results.Get(topic)
		_, _ = p.Fprintf(out, "  %s: %d profiles\n", topic, len(profiles))
		for i, profile := range profiles {
			if i == 3 {
				_, _ = p.Fprintf(out, "    ... and %d more\n", len(profiles)-3)
				break
			}
			line := p.Sprintf("    @%s  %s followers", profile.Username, countForDisplay(p, profile.Followers))
			if profile.Email != nil {
				line += "  " + *profile.Email
			}
			_, _ = fmt.Fprintln(out, line)
		}
	}

	if len(report.Errors) > 0 {
		_, _ = fmt.Fprintln(out, "Failed topics:")
		for _, topic := range sortedKeys(report.Errors) {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", topic, report.Errors[topic])
		}
	}

	if len(report.Artifacts) > 0 {
		_, _ = fmt.Fprintln(out, "Artifacts:")
		for _, artifact := range report.Artifacts {
			_, _ = fmt.Fprintf(out, "  %s\n", artifact)
		}
	}

	if len(report.ExportErrors) > 0 {
		_, _ = fmt.Fprintln(out, "Export failures:")
		for _, name := range sortedKeys(report.ExportErrors) {
			_, _ = fmt.Fprintf(out, "  %s: %s\n", name, report.ExportErrors[name])
		}
	}
}

func countForDisplay(p *message.Printer, n *int64) string {
	if n == nil {
		return "?"
	}
	return p.Sprintf("%d", *n)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	runCmd.Flags().Int("results-per-hashtag", 50, "search results to request per topic hashtag")
	runCmd.Flags().Int("max-profiles", 20, "max profiles to retrieve per topic")
	runCmd.Flags().Bool("require-email", true, "keep only profiles with an email in the bio")
	runCmd.Flags().String("format", "csv", "artifact format: csv, json, or xlsx")
	runCmd.Flags().String("output-dir", "output", "directory for exported artifacts")
	runCmd.Flags().Int("concurrency", 1, "number of topics processed in parallel")
	runCmd.Flags().StringVar(&runResume, "resume", "", "resume a stored run by ID instead of starting a new one")
	rootCmd.AddCommand(runCmd)
}
