// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Query the SQLite catalog of enriched records",
	Long: `Catalog queries the registry built by pipeline runs. Search combines
FTS5 full-text search over title, summary, and extracted body text with
structured filters; runs lists recorded fetch reports.`,
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search cataloged records",
	RunE:  runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	project, _ := cmd.Flags().GetString("project")
	source, _ := cmd.Flags().GetString("source")
	minSim, _ := cmd.Flags().GetFloat64("min-similarity")
	limit, _ := cmd.Flags().GetInt("limit")

	opts := catalog.SearchOptions{
		Query:         strings.Join(args, " "),
		Project:       project,
		Source:        source,
		MinSimilarity: minSim,
		MaxResults:    limit,
	}
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --project, --source, or --min-similarity")
	}

	results, err := store.Search(cmd.Context(), opts)
	if err != nil {
		return err
	}

	jsonOutput, _ := cmd.Flags().GetBool("json")
	return formatSearchOutput(results, jsonOutput)
}

func formatSearchOutput(results []catalog.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-12s  %-50s  %-16s  %-6s  %s\n",
		"Rank", "Project", "Title", "Source", "Score", "Fulltext")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 104))

	for i, r := range results {
		title := r.Record.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		project := r.Project
		if len(project) > 12 {
			project = project[:9] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-12s  %-50s  %-16s  %-6.2f  %s\n",
			i+1, project, title, r.Record.Source,
			r.Record.SemanticSimilarity, r.Record.FulltextStatus)
	}

	fmt.Fprintf(os.Stdout, "\n%d results\n", len(results))
	return nil
}

// --- runs subcommand ---

var catalogRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded fetch runs, newest first",
	RunE:  runCatalogRuns,
}

func runCatalogRuns(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}

	store, err := catalog.Open(cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	project, _ := cmd.Flags().GetString("project")
	runs, err := store.Runs(cmd.Context(), project)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "%s  %-12s  %3d records  %q\n",
			r.Started, r.Project, r.Total, r.Query)
		for _, sr := range r.Sources {
			line := fmt.Sprintf("    %-16s %s", sr.Source, sr.Status)
			if sr.Error != "" {
				line += "  " + sr.Error
			}
			fmt.Fprintln(os.Stdout, line)
		}
	}
	return nil
}

func init() {
	catalogSearchCmd.Flags().String("project", "", "filter by project")
	catalogSearchCmd.Flags().String("source", "", "filter by fetch source")
	catalogSearchCmd.Flags().Float64("min-similarity", 0, "minimum semantic similarity score")
	catalogSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")

	catalogRunsCmd.Flags().String("project", "", "filter by project")

	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogRunsCmd)

	rootCmd.AddCommand(catalogCmd)
}
