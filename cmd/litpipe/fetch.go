// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/fetch"
	"github.com/pdiddy/litpipe/pkg/types"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <query>",
	Short: "Fetch metadata records from the configured sources",
	Long: `Fetch dispatches the query to every registered source (arxiv, pubmed,
semanticscholar, websearch, rss), or to the subset named with --source.
Each source writes its records to data/<project>/<source>/metadata.json;
a per-source run report is saved under data/<project>/runs/.

Source failures are recorded, not fatal: the run fails only when every
attempted source fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func runFetch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	project, _ := cmd.Flags().GetString("project")
	only, _ := cmd.Flags().GetStringSlice("source")

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	orch, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	records, report, err := orch.Run(cmd.Context(), query, project, only)
	if err != nil {
		return err
	}

	if path, err := fetch.WriteRunFile(cfg.Fetch.DataDir, project, report); err != nil {
		log.Warn().Err(err).Msg("writing run file failed")
	} else {
		fmt.Fprintf(os.Stderr, "Run report: %s\n", path)
	}

	var failed int
	for _, sr := range report.Sources {
		switch sr.Status {
		case types.SourceSuccess:
			fmt.Printf("%-16s ok      %d records\n", sr.Source, sr.Count)
		case types.SourceSkipped:
			fmt.Printf("%-16s skipped\n", sr.Source)
		default:
			failed++
			fmt.Printf("%-16s failed  %s\n", sr.Source, sr.Error)
		}
	}
	fmt.Printf("\n%d records fetched, %d discarded\n", len(records), report.Discarded)

	if failed > 0 && report.AllFailed() {
		return fmt.Errorf("no source succeeded")
	}
	return nil
}

func init() {
	fetchCmd.Flags().String("project", "default", "project name under the data directory")
	fetchCmd.Flags().StringSlice("source", nil, "restrict the run to the named sources")

	rootCmd.AddCommand(fetchCmd)
}
