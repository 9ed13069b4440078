// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/litpipe/internal/fulltext"
	"github.com/pdiddy/litpipe/pkg/types"
)

var fulltextCmd = &cobra.Command{
	Use:   "fulltext",
	Short: "Retrieve document bodies for filtered records",
	Long: `Fulltext walks a strategy chain for every record in
data/<project>/deduplicated/metadata_filtered.json: the record's own
pdf_url, then Unpaywall by DOI, then PubMed Central by PMID, then the
landing page as HTML. Bodies are saved under data/<project>/fulltext/
and the annotated set is written to metadata_with_fulltext.json.

PDF text extraction pipes the body through a pdftotext container image
when a runtime is available; otherwise bodies are saved without
extracted text.`,
	RunE: runFulltext,
}

func runFulltext(cmd *cobra.Command, args []string) error {
	project, _ := cmd.Flags().GetString("project")

	cfg, err := pipelineConfig()
	if err != nil {
		return err
	}
	log := newLogger()

	processor := buildFulltextProcessor(cfg.Fulltext, log)
	summary, err := processor.Run(cmd.Context(), project)
	if err != nil {
		return err
	}

	fmt.Printf("%d retrieved, %d failed, %d not found\n",
		summary.Success, summary.Failed, summary.NotFound)
	return nil
}

// buildFulltextProcessor wires the strategy chain. A missing container
// runtime or pdftotext image degrades to saved-file-only PDF handling.
func buildFulltextProcessor(cfg types.FulltextConfig, log zerolog.Logger) *fulltext.Processor {
	p := &fulltext.Processor{
		Client:   httpClientFor(cfg.Timeout),
		Cfg:      cfg,
		Log:      log,
		HTMLText: fulltext.HTMLExtractor{},
	}
	if pdf, err := fulltext.NewPDFExtractor(cfg.PDFImage); err != nil {
		fmt.Fprintf(os.Stderr, "PDF text extraction unavailable: %v\n", err)
	} else {
		p.PDFText = pdf
	}
	return p
}

func init() {
	fulltextCmd.Flags().String("project", "default", "project name under the data directory")

	rootCmd.AddCommand(fulltextCmd)
}
