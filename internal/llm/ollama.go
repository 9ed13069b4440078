// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm provides a client for an Ollama-compatible model server,
// used for text embeddings (semantic filter) and query rewriting (fetch
// stage). Model failures degrade per call site: the semantic filter
// excludes the record, the query rewriter falls back to the
// deterministic rewrite.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/litpipe/pkg/types"
)

const defaultBaseURL = "http://localhost:11434/api"

// Client talks to an Ollama-compatible HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client from the embedding configuration. An empty
// base URL falls back to the local Ollama default.
func NewClient(cfg types.EmbedConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type apiRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// EmbedText returns a fixed-length embedding vector for text using the
// named model.
func (c *Client) EmbedText(ctx context.Context, text, model string) ([]float32, error) {
	body, err := c.post(ctx, "/embeddings", apiRequest{Model: model, Prompt: text})
	if err != nil {
		return nil, err
	}
	var resp embeddingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("model %s returned an empty embedding", model)
	}
	return resp.Embedding, nil
}

// Generate returns the model's completion for prompt.
func (c *Client) Generate(ctx context.Context, prompt, model string) (string, error) {
	body, err := c.post(ctx, "/generate", apiRequest{Model: model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing generate response: %w", err)
	}
	return resp.Response, nil
}

func (c *Client) post(ctx context.Context, endpoint string, reqBody apiRequest) ([]byte, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("model API returned HTTP %d: %s", resp.StatusCode, msg)
	}

	return io.ReadAll(resp.Body)
}
