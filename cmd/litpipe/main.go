// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litpipe CLI. Each pipeline
// stage is a subcommand (fetch, dedupe, filter, fulltext), run executes
// them end to end, and catalog queries the resulting SQLite registry.
package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/litpipe/internal/fetch"
	"github.com/pdiddy/litpipe/internal/llm"
	"github.com/pdiddy/litpipe/internal/secrets"
	"github.com/pdiddy/litpipe/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, else the secret value for key.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the litpipe CLI.
var rootCmd = &cobra.Command{
	Use:   "litpipe",
	Short: "Document metadata aggregation pipeline",
	Long: `litpipe aggregates document metadata from academic APIs, web search,
and RSS feeds, then refines it in stages: fetch collects per-source
records, dedupe consolidates them by identifier priority, filter keeps
records semantically close to the query, and fulltext retrieves document
bodies. The final enriched set is ingested into a SQLite catalog.

Each stage reads and writes files under data/<project>/, so stages can be
re-run independently or composed with the run command.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litpipe.yaml or ~/.config/litpipe/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litpipe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litpipe"))
		}
	}

	viper.SetEnvPrefix("LITPIPE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newLogger builds the per-run logger shared by every stage.
func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose, _ := rootCmd.PersistentFlags().GetBool("verbose"); verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).With().Timestamp().Logger()
}

// pipelineConfig resolves the effective configuration: viper defaults,
// config file, LITPIPE_* env, then secrets for still-empty credentials.
func pipelineConfig() (types.PipelineConfig, error) {
	viper.SetDefault("fetch.data_dir", "data")
	viper.SetDefault("fetch.max_results", 20)
	viper.SetDefault("fetch.timeout", "30s")
	viper.SetDefault("fetch.user_agent", "litpipe/"+version)
	viper.SetDefault("fetch.inter_source_delay", "1s")
	viper.SetDefault("filter.min_similarity", 0.5)
	viper.SetDefault("filter.embed.base_url", "http://localhost:11434/api")
	viper.SetDefault("filter.embed.model", "nomic-embed-text")
	viper.SetDefault("filter.embed.rewrite_model", "llama3.2")
	viper.SetDefault("filter.embed.timeout", "60s")
	viper.SetDefault("fulltext.data_dir", "data")
	viper.SetDefault("fulltext.timeout", "60s")
	viper.SetDefault("fulltext.user_agent", "litpipe/"+version)
	viper.SetDefault("fulltext.record_delay", "1s")
	viper.SetDefault("fulltext.pdf_image", "pdftotext:latest")
	viper.SetDefault("catalog.data_dir", "data")
	viper.SetDefault("catalog.max_results", 20)

	var cfg types.PipelineConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.Fetch.SemanticScholarAPIKey = secretDefault("semantic-scholar-api-key", cfg.Fetch.SemanticScholarAPIKey)
	cfg.Fetch.GoogleAPIKey = secretDefault("google-api-key", cfg.Fetch.GoogleAPIKey)
	cfg.Fetch.GoogleCSEID = secretDefault("google-cse-id", cfg.Fetch.GoogleCSEID)
	cfg.Fetch.PubmedEmail = secretDefault("pubmed-email", cfg.Fetch.PubmedEmail)
	cfg.Fetch.NCBIAPIKey = secretDefault("ncbi-api-key", cfg.Fetch.NCBIAPIKey)
	cfg.Fulltext.UnpaywallEmail = secretDefault("unpaywall-email", cfg.Fulltext.UnpaywallEmail)

	return cfg, nil
}

// buildSources registers every known source. Sources with missing
// credentials still register; they fail at fetch time and the
// orchestrator records the failure.
func buildSources(cfg types.FetchConfig, log zerolog.Logger) []fetch.Source {
	client := &http.Client{Timeout: cfg.Timeout}
	return []fetch.Source{
		&fetch.ArxivSource{Client: client, Cfg: cfg, Log: log},
		&fetch.PubmedSource{Client: client, Cfg: cfg, Log: log},
		&fetch.SemanticScholarSource{Client: client, Cfg: cfg, Log: log},
		&fetch.WebSearchSource{Client: client, Cfg: cfg, Log: log},
		&fetch.RSSSource{Client: client, Cfg: cfg, Log: log},
	}
}

// buildProcessor selects the query processor: deterministic per-source
// rewriting, optionally fronted by the LLM rewriter.
func buildProcessor(cfg types.PipelineConfig, log zerolog.Logger) fetch.QueryProcessor {
	if !cfg.Fetch.LLMRewrite {
		return fetch.ClassicProcessor{}
	}
	client := llm.NewClient(cfg.Filter.Embed)
	rewriter := llm.NewQueryRewriter(client, cfg.Filter.Embed.RewriteModel)
	return fetch.NewLLMProcessor(rewriter, log)
}

func buildOrchestrator(cfg types.PipelineConfig, log zerolog.Logger) (*fetch.Orchestrator, error) {
	return fetch.NewOrchestrator(buildSources(cfg.Fetch, log), buildProcessor(cfg, log), cfg.Fetch, log)
}

func httpClientFor(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
