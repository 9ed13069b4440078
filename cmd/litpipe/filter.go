// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/llm"
	"github.com/pdiddy/litpipe/internal/semfilter"
	"github.com/pdiddy/litpipe/internal/store"
)

var filterCmd = &cobra.Command{
	Use:   "filter <query>",
	Short: "Filter deduplicated records by year and semantic similarity",
	Long: `Filter reads data/<project>/deduplicated/metadata.json, drops records
published before --min-year (when set), and scores the remaining records
by cosine similarity between the query embedding and each record's
title plus summary. Records at or above --min-similarity survive, each
annotated with its score, and are written to metadata_filtered.json.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFilter,
}

func runFilter(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	project, _ := cmd.Flags().GetString("project")

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

	records, err := store.ReadRecords(store.DedupPath(cfg.Fetch.DataDir, project))
	if err != nil {
		return fmt.Errorf("reading deduplicated records: %w", err)
	}

	embedder := llm.NewClient(cfg.Filter.Embed)
	kept, err := semfilter.Filter(cmd.Context(), records, query, cfg.Filter, embedder, log)
	if err != nil {
		return err
	}

	if err := store.WriteRecords(store.FilteredPath(cfg.Fetch.DataDir, project), kept); err != nil {
		return fmt.Errorf("writing filtered records: %w", err)
	}

	fmt.Printf("%d of %d records kept\n", len(kept), len(records))
	return nil
}

func init() {
	filterCmd.Flags().String("project", "default", "project name under the data directory")
	filterCmd.Flags().Float64("min-similarity", 0.5, "cosine similarity threshold")
	filterCmd.Flags().Int("min-year", 0, "exclude records published before this year (0 disables)")

	rootCmd.AddCommand(filterCmd)
}
