package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network
// requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "litpipe/0.1").
	UserAgent string `mapstructure:"user_agent"`
}

// FetchConfig holds settings for the fetch orchestration stage.
type FetchConfig struct {
	HTTPConfig `mapstructure:",squash"`

	// DataDir is the base directory for project data (default "data").
	DataDir string `mapstructure:"data_dir"`

	// MaxResults caps the records requested from each source (default 20).
	MaxResults int `mapstructure:"max_results"`

	// InterSourceDelay is the pause between consecutive source dispatches.
	InterSourceDelay time.Duration `mapstructure:"inter_source_delay"`

	// SemanticScholarAPIKey is an optional key for higher rate limits.
	SemanticScholarAPIKey string `mapstructure:"semantic_scholar_api_key"`

	// GoogleAPIKey and GoogleCSEID configure the websearch source. Both
	// must be present or the source fails and is recorded as such.
	GoogleAPIKey string `mapstructure:"google_api_key"`
	GoogleCSEID  string `mapstructure:"google_cse_id"`

	// PubmedEmail is the contact address required by NCBI E-utilities.
	PubmedEmail string `mapstructure:"pubmed_email"`

	// NCBIAPIKey raises the E-utilities rate limit. Optional.
	NCBIAPIKey string `mapstructure:"ncbi_api_key"`

	// LLMRewrite enables LLM-based query rewriting. The deterministic
	// per-source rewrite is always the fallback.
	LLMRewrite bool `mapstructure:"llm_rewrite"`
}

// EmbedConfig holds settings for the embedding client used by the
// semantic filter and the LLM query rewriter.
type EmbedConfig struct {
	// BaseURL is the Ollama-compatible API base (default
	// "http://localhost:11434/api").
	BaseURL string `mapstructure:"base_url"`

	// Model is the embedding model name (default "nomic-embed-text").
	Model string `mapstructure:"model"`

	// RewriteModel is the generation model used for query rewriting.
	RewriteModel string `mapstructure:"rewrite_model"`

	// Timeout is the per-call timeout for model invocations.
	Timeout time.Duration `mapstructure:"timeout"`
}

// FilterConfig holds settings for the semantic filter stage.
type FilterConfig struct {
	// MinSimilarity is the cosine similarity threshold (default 0.5).
	MinSimilarity float64 `mapstructure:"min_similarity"`

	// MinYear excludes records published before this year. Zero disables
	// the year filter.
	MinYear int `mapstructure:"min_year"`

	Embed EmbedConfig `mapstructure:"embed"`
}

// FulltextConfig holds settings for the full-text retrieval stage.
type FulltextConfig struct {
	HTTPConfig `mapstructure:",squash"`

	// DataDir is the base directory for project data (default "data").
	DataDir string `mapstructure:"data_dir"`

	// RecordDelay is the fixed politeness delay between records, not
	// between individual download attempts (default 1s).
	RecordDelay time.Duration `mapstructure:"record_delay"`

	// UnpaywallEmail is the contact address required by the Unpaywall
	// API. The Unpaywall strategy is skipped when empty.
	UnpaywallEmail string `mapstructure:"unpaywall_email"`

	// PDFImage is the container image used to extract text from
	// downloaded PDFs (default "pdftotext:latest"). Extraction is
	// best-effort: a missing runtime or image leaves full_text empty.
	PDFImage string `mapstructure:"pdf_image"`
}

// CatalogConfig holds settings for the SQLite catalog that receives the
// final enriched record set.
type CatalogConfig struct {
	// DataDir is the base directory for project data (default "data").
	DataDir string `mapstructure:"data_dir"`

	// MaxResults is the default cap for catalog queries (default 20).
	MaxResults int `mapstructure:"max_results"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Fulltext FulltextConfig `mapstructure:"fulltext"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
}
