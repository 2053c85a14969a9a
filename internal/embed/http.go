package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// httpProvider calls an embedding server over HTTP.
//
//	GET  {endpoint}/       health check, 200 when ready
//	POST {endpoint}/embed  {"texts": [...], "mode": "query"} -> {"embeddings": [[...]]}
type httpProvider struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

func newHTTPProvider(endpoint, model string, dimensions int, timeout time.Duration) (*httpProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("http embedding provider requires an endpoint")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("http embedding provider requires dimensions > 0")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Initialize waits until the server answers its health check.
func (p *httpProvider) Initialize(ctx context.Context) error {
	return p.waitForHealthy(ctx, 30*time.Second)
}

func (p *httpProvider) isHealthy(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *httpProvider) waitForHealthy(ctx context.Context, timeout time.Duration) error {
	if p.isHealthy(ctx) {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for embedding server at %s", p.endpoint)
		case <-ticker.C:
			if p.isHealthy(ctx) {
				return nil
			}
		}
	}
}

type embedRequest struct {
	Texts []string `json:"texts"`
	Mode  string   `json:"mode,omitempty"`
	Model string   `json:"model,omitempty"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (p *httpProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	body, err := json.Marshal(embedRequest{Texts: texts, Mode: string(mode), Model: p.model})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d texts", len(out.Embeddings), len(texts))
	}
	for i, v := range out.Embeddings {
		if len(v) != p.dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), p.dimensions)
		}
	}
	return out.Embeddings, nil
}

func (p *httpProvider) Dimensions() int { return p.dimensions }

func (p *httpProvider) Model() string { return p.model }

func (p *httpProvider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}
