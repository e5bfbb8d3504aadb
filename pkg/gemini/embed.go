// Package gemini provides a Gemini-backed embedding client over the
// generativelanguage REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultBaseURL is the Gemini REST endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "gemini-embedding-001"

// Task types control how the model positions text in embedding space.
const (
	TaskDocument = "RETRIEVAL_DOCUMENT"
	TaskQuery    = "RETRIEVAL_QUERY"
)

// EmbedClient calls the Gemini embedContent API.
type EmbedClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewEmbedClient creates a Gemini embedding client.
func NewEmbedClient(apiKey, model string) *EmbedClient {
	if model == "" {
		model = DefaultModel
	}
	return &EmbedClient{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL points the client at a different endpoint. Used in tests.
func (c *EmbedClient) WithBaseURL(u string) *EmbedClient {
	c.baseURL = u
	return c
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type embedRequest struct {
	Model    string       `json:"model"`
	Content  embedContent `json:"content"`
	TaskType string       `json:"taskType,omitempty"`
	Title    string       `json:"title,omitempty"`
}

type embedValues struct {
	Values []float32 `json:"values"`
}

type embedResponse struct {
	Embedding embedValues `json:"embedding"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type batchEmbedResponse struct {
	Embeddings []embedValues `json:"embeddings"`
}

func (c *EmbedClient) post(ctx context.Context, method string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("gemini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, c.model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gemini: %s: status %d: %s", method, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gemini: decode %s response: %w", method, err)
	}
	return nil
}

// Embed returns the embedding vector for a single text with the given task type.
func (c *EmbedClient) Embed(ctx context.Context, text, taskType string) ([]float32, error) {
	var result embedResponse
	req := embedRequest{
		Model:    "models/" + c.model,
		Content:  embedContent{Parts: []embedPart{{Text: text}}},
		TaskType: taskType,
	}
	if err := c.post(ctx, "embedContent", req, &result); err != nil {
		return nil, err
	}
	if len(result.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini: embedContent: empty embedding")
	}
	return result.Embedding.Values, nil
}

// EmbedDocument embeds text for storage.
func (c *EmbedClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskDocument)
}

// EmbedQuery embeds text for retrieval.
func (c *EmbedClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.Embed(ctx, text, TaskQuery)
}

// EmbedBatch embeds several documents in one call, preserving order.
func (c *EmbedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := batchEmbedRequest{Requests: make([]embedRequest, len(texts))}
	for i, text := range texts {
		batch.Requests[i] = embedRequest{
			Model:    "models/" + c.model,
			Content:  embedContent{Parts: []embedPart{{Text: text}}},
			TaskType: TaskDocument,
		}
	}

	var result batchEmbedResponse
	if err := c.post(ctx, "batchEmbedContents", batch, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: batchEmbedContents: got %d embeddings for %d texts", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, e := range result.Embeddings {
		if len(e.Values) == 0 {
			return nil, fmt.Errorf("gemini: batchEmbedContents: empty embedding [%d]", i)
		}
		out[i] = e.Values
	}
	return out, nil
}
