// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/dedupe"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Consolidate per-source records into one unique set",
	Long: `Dedupe scans every source directory under data/<project>/, resolves each
record's identifier by priority (doi, pmid, paperId, pdf_url, id, link),
and keeps the first occurrence of each identifier. Records with no
resolvable identifier are dropped with a warning. The unique set is
written to data/<project>/deduplicated/metadata.json.`,
	RunE: runDedupe,
}

func runDedupe(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	result, err := dedupe.Deduplicate(cfg.Fetch.DataDir, project, log)
	if err != nil {
		return err
	}

	fmt.Printf("%d unique records, %d duplicates removed, %d without identifier, %d files skipped\n",
		len(result.Unique), result.Duplicates, result.Unidentified, result.SkippedFiles)
	return nil
}

func init() {
	dedupeCmd.Flags().String("project", "default", "project name under the data directory")

	rootCmd.AddCommand(dedupeCmd)
}
