package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPConfig configures a provider backed by an OpenAI-compatible
// /v1/embeddings endpoint, such as llama.cpp server or TEI.
type HTTPConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	// AutoLoad asks the server to load Model before the first request.
	AutoLoad bool
	// Client overrides the HTTP client.
	Client *http.Client
}

// HTTPProvider is a client for an embeddings API.
type HTTPProvider struct {
	baseURL   string
	apiKey    string
	model     string
	dimension int
	client    *http.Client
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 60 * time.Second}
}

// NewHTTPProvider creates a new embeddings API client. All returned vectors
// are validated against cfg.Dimension.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	client := cfg.Client
	if client == nil {
		client = newHTTPClient()
	}
	return &HTTPProvider{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    client,
	}
}

// HTTPLoader returns a loader for the embeddings API. With AutoLoad set the
// model is loaded on the server first; otherwise the server is probed with a
// single request so an unreachable server fails the load.
func HTTPLoader(cfg HTTPConfig) LoaderFunc {
	return func(ctx context.Context) (Provider, error) {
		p := NewHTTPProvider(cfg)
		if cfg.AutoLoad {
			loader := NewModelLoader(cfg.BaseURL, p.client)
			if err := loader.LoadModel(ctx, cfg.Model, nil); err != nil {
				return nil, fmt.Errorf("loading model on server: %w", err)
			}
		}
		if _, err := p.embedTexts(ctx, []string{"ping"}); err != nil {
			return nil, fmt.Errorf("probing embeddings server: %w", err)
		}
		return p, nil
	}
}

// EmbeddingsRequest represents the request payload for the embeddings API.
type EmbeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingData represents a single embedding in the response.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingsResponse represents the response from the embeddings API.
type EmbeddingsResponse struct {
	Data []EmbeddingData `json:"data"`
}

// EmbedDocuments embeds passages.
func (p *HTTPProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return p.embedTexts(ctx, texts)
}

// EmbedQuery embeds a single query.
func (p *HTTPProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// Dimension returns the expected vector size.
func (p *HTTPProvider) Dimension() int {
	return p.dimension
}

// Close releases idle connections.
func (p *HTTPProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// embedTexts generates embeddings for the given texts and validates that
// every vector matches the expected size.
func (p *HTTPProvider) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("empty input array")
	}

	url := fmt.Sprintf("%s/v1/embeddings", p.baseURL)

	body, err := json.Marshal(EmbeddingsRequest{
		Model: p.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.apiKey))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bad status %d: %s", resp.StatusCode, string(raw))
	}

	var embeddingsResp EmbeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingsResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embeddingsResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddingsResp.Data))
	}

	result := make([][]float32, len(embeddingsResp.Data))
	for i, data := range embeddingsResp.Data {
		if p.dimension > 0 && len(data.Embedding) != p.dimension {
			return nil, fmt.Errorf("embedding %d has size %d, expected %d", i, len(data.Embedding), p.dimension)
		}
		pos := i
		if data.Index >= 0 && data.Index < len(result) && result[data.Index] == nil {
			pos = data.Index
		}

		vec := make([]float32, len(data.Embedding))
		for j, v := range data.Embedding {
			vec[j] = float32(v)
		}
		result[pos] = vec
	}

	return result, nil
}
