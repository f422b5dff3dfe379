package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/quantumiracle/tiktok-apify/internal/export"
	"github.com/quantumiracle/tiktok-apify/internal/model"
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Re-export the stored results of a run",
	Long:  "Rebuilds artifacts from a run's checkpointed topic results without calling any actor, useful for switching formats after the fact.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("format") {
			cfg.Export.Format, _ = cmd.Flags().GetString("format")
		}
		if cmd.Flags().Changed("output-dir") {
			cfg.Export.OutputDir, _ = cmd.Flags().GetString("output-dir")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "export: load run")
		}
		checkpoints, err := st.ListTopicResults(ctx, run.ID)
		if err != nil {
			return eris.Wrap(err, "export: load topic results")
		}

		byTopic := make(map[string]model.TopicResult, len(checkpoints))
		for _, tr := range checkpoints {
			byTopic[tr.Topic] = tr
		}

		// Rebuild in the run's original topic order; failed topics have no
		// profiles to contribute.
		rs := model.NewResultSet()
		for _, topic := range run.Topics {
			tr, ok := byTopic[topic]
			if !ok || tr.Failed() {
				continue
			}
			rs.Add(topic, tr.Profiles)
		}

		if rs.Len() == 0 {
			fmt.Fprintln(os.Stderr, "No stored profiles to export.")
			return nil
		}

		report := export.New(cfg.Export.OutputDir, cfg.Export.Format).Export(rs)
		for _, artifact := range report.Artifacts {
			fmt.Fprintln(os.Stdout, artifact)
		}
		if len(report.Errors) > 0 {
			for _, name := range sortedKeys(report.Errors) {
				fmt.Fprintf(os.Stderr, "failed: %s: %s\n", name, report.Errors[name])
			}
			return eris.Errorf("export: %d artifacts failed", len(report.Errors))
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "artifact format: csv, json, or xlsx")
	exportCmd.Flags().String("output-dir", "output", "directory for exported artifacts")
	rootCmd.AddCommand(exportCmd)
}
