package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// GenerateConfig is forwarded to the model with each prompt.
type GenerateConfig struct {
	Model            string   `json:"model,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

// Generator is the model capability the client wraps.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg GenerateConfig) (string, error)
	CountTokens(ctx context.Context, text string) (int, error)
	ListModels(ctx context.Context) ([]string, error)
}

// ProxyConfig configures a ProxyGenerator.
type ProxyConfig struct {
	ProxyURL   string
	APIBaseURL string
	Model      string
	APIKey     string
}

// ProxyGenerator reaches the model through the local generation proxy. The
// credential is sent to the proxy only; the single direct call to the
// provider is the read-only model listing used to validate a key.
type ProxyGenerator struct {
	cfg        ProxyConfig
	httpClient *http.Client

	mu     sync.RWMutex
	apiKey string
}

// NewProxyGenerator builds a generator. A nil httpClient gets a client
// without its own timeout; attempts are bounded by the caller.
func NewProxyGenerator(cfg ProxyConfig, httpClient *http.Client) *ProxyGenerator {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	cfg.ProxyURL = strings.TrimRight(cfg.ProxyURL, "/")
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return &ProxyGenerator{cfg: cfg, httpClient: httpClient, apiKey: strings.TrimSpace(cfg.APIKey)}
}

// SetAPIKey replaces the credential used for subsequent calls.
func (g *ProxyGenerator) SetAPIKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.apiKey = strings.TrimSpace(key)
}

func (g *ProxyGenerator) key() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.apiKey
}

type generateRequest struct {
	Prompt string         `json:"prompt"`
	Config GenerateConfig `json:"config"`
}

type generateResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// Generate sends a prompt and returns the model text.
func (g *ProxyGenerator) Generate(ctx context.Context, prompt string, cfg GenerateConfig) (string, error) {
	if cfg.Model == "" {
		cfg.Model = g.cfg.Model
	}
	var resp generateResponse
	if err := g.postJSON(ctx, "/api/generate", generateRequest{Prompt: prompt, Config: cfg}, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ai generate: %s", resp.Error)
	}
	return resp.Text, nil
}

type countTokensRequest struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
}

type countTokensResponse struct {
	TotalTokens int `json:"totalTokens"`
}

// CountTokens asks the proxy how many tokens text uses.
func (g *ProxyGenerator) CountTokens(ctx context.Context, text string) (int, error) {
	var resp countTokensResponse
	if err := g.postJSON(ctx, "/api/count-tokens", countTokensRequest{Text: text, Model: g.cfg.Model}, &resp); err != nil {
		return 0, err
	}
	return resp.TotalTokens, nil
}

type listModelsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels lists the models available to the current key.
func (g *ProxyGenerator) ListModels(ctx context.Context) ([]string, error) {
	key := g.key()
	if key == "" {
		return nil, ErrNoAPIKey
	}
	endpoint, err := url.Parse(g.cfg.APIBaseURL + "/v1beta/models")
	if err != nil {
		return nil, fmt.Errorf("ai list models: build url: %w", err)
	}
	query := endpoint.Query()
	query.Set("key", key)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("ai list models: new request: %w", err)
	}
	body, err := g.do(req)
	if err != nil {
		return nil, err
	}
	var resp listModelsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("ai list models: decode response: %w", err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, model := range resp.Models {
		names = append(names, strings.TrimPrefix(model.Name, "models/"))
	}
	return names, nil
}

func (g *ProxyGenerator) postJSON(ctx context.Context, path string, payload, target any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ai request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.ProxyURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("ai request: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key := g.key(); key != "" {
		req.Header.Set("X-Api-Key", key)
	}
	body, err := g.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, target); err != nil {
		return fmt.Errorf("ai request: decode response: %w", err)
	}
	return nil
}

func (g *ProxyGenerator) do(req *http.Request) ([]byte, error) {
	resp, err := g.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = redactKey(urlErr.URL)
		}
		return nil, fmt.Errorf("ai request: network error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("ai request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: retryAfter,
		}
	}
	return body, nil
}

// redactKey hides the key query parameter so URLs can be logged.
func redactKey(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	query := parsed.Query()
	if query.Has("key") {
		query.Set("key", "REDACTED")
		parsed.RawQuery = query.Encode()
	}
	return parsed.String()
}

var _ Generator = (*ProxyGenerator)(nil)
