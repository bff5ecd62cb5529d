// Package services contains the application services sitting between the
// HTTP/MCP surfaces and the repository.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"formpipe/backend/internal/pipeline"
)

// HTTPGenerationClient invokes an OpenAI-compatible chat-completions
// endpoint. It implements pipeline.Generator.
type HTTPGenerationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGenerationClient creates a new HTTPGenerationClient. The per-call
// deadline comes from the caller's context; the Step Executor bounds it.
func NewHTTPGenerationClient(baseURL, apiKey string) *HTTPGenerationClient {
	return &HTTPGenerationClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: http.DefaultClient,
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the resolved prompt to the model and returns the generated
// text plus token usage.
func (c *HTTPGenerationClient) Generate(ctx context.Context, prompt, model string) (pipeline.GenerationResult, error) {
	requestBody, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewBuffer(requestBody))
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return pipeline.GenerationResult{}, fmt.Errorf("failed to decode response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil && parsed.Error.Message != "" {
			return pipeline.GenerationResult{}, fmt.Errorf("generation request failed: %s", parsed.Error.Message)
		}
		return pipeline.GenerationResult{}, fmt.Errorf("generation request failed: status code %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return pipeline.GenerationResult{}, fmt.Errorf("generation response contained no choices")
	}

	result := pipeline.GenerationResult{Text: parsed.Choices[0].Message.Content}
	if parsed.Usage.TotalTokens > 0 {
		tokens := parsed.Usage.TotalTokens
		result.TokenCount = &tokens
	}
	return result, nil
}
