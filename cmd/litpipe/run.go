// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/catalog"
	"github.com/pdiddy/litpipe/internal/llm"
	"github.com/pdiddy/litpipe/internal/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Run the full pipeline: fetch, dedupe, filter, fulltext, catalog",
	Long: `Run executes every stage in sequence for one project: fetch the query
from all sources (or the --source subset), deduplicate, filter by
semantic similarity, retrieve full text, and ingest the enriched set
into the SQLite catalog. Use --no-catalog to stop at the
metadata_with_fulltext.json artifact.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	project, _ := cmd.Flags().GetString("project")
	only, _ := cmd.Flags().GetStringSlice("source")
	noCatalog, _ := cmd.Flags().GetBool("no-catalog")

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("min-similarity") {
		cfg.Filter.MinSimilarity, _ = cmd.Flags().GetFloat64("min-similarity")
	}
	if cmd.Flags().Changed("min-year") {
		cfg.Filter.MinYear, _ = cmd.Flags().GetInt("min-year")
	}
	log := newLogger()

	orch, err := buildOrchestrator(cfg, log)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		Orchestrator: orch,
		Embedder:     llm.NewClient(cfg.Filter.Embed),
		Fulltext:     buildFulltextProcessor(cfg.Fulltext, log),
		Cfg:          cfg,
		Log:          log,
		Out:          os.Stdout,
	}

	if !noCatalog {
		store, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return err
		}
		defer store.Close()
		p.Ingestor = store
	}

	return p.Run(cmd.Context(), query, project, only)
}

func init() {
	runCmd.Flags().String("project", "default", "project name under the data directory")
	runCmd.Flags().StringSlice("source", nil, "restrict the fetch stage to the named sources")
	runCmd.Flags().Float64("min-similarity", 0.5, "cosine similarity threshold")
	runCmd.Flags().Int("min-year", 0, "exclude records published before this year (0 disables)")
	runCmd.Flags().Bool("no-catalog", false, "skip catalog ingestion")

	rootCmd.AddCommand(runCmd)
}
