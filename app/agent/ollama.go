package agent

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

type GenerateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type GenerateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// OllamaCompleter calls an Ollama style /api/generate endpoint.
type OllamaCompleter struct {
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewOllamaCompleter(apiURL, model string, maxTokens int, temperature float64, timeout time.Duration) *OllamaCompleter {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &OllamaCompleter{
		apiURL:      apiURL,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

func (c *OllamaCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	options := map[string]any{"temperature": c.temperature}
	if c.maxTokens > 0 {
		options["num_predict"] = c.maxTokens
	}
	reqBody, err := json.Marshal(GenerateRequest{
		Model:   c.model,
		System:  system,
		Prompt:  user,
		Options: options,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	// streamed responses arrive as one JSON object per line
	var output strings.Builder
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk GenerateResponse
		if err := decoder.Decode(&chunk); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		output.WriteString(chunk.Response)
	}
	return output.String(), nil
}
