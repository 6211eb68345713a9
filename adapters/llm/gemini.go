package llm

import (
	"context"
	"fmt"
	"strings"

	"ddreport/internal/errors"
	"ddreport/ports"

	"google.golang.org/genai"
)

// GeminiClient generates text through the Gemini API
type GeminiClient struct {
	client      *genai.Client
	temperature float64
}

func newGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	timeout := cfg.Timeout
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: strings.TrimSpace(cfg.BaseURL),
			Timeout: &timeout,
		},
	})
	if err != nil {
		return nil, errors.ExternalServiceError("gemini", fmt.Errorf("failed to create client: %w", err))
	}
	return &GeminiClient{client: client, temperature: cfg.Temperature}, nil
}

func (c *GeminiClient) ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error) {
	resp, err := c.ChatCompletionWithUsage(ctx, model, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *GeminiClient) ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*ports.LLMResponse, error) {
	if model == "" {
		return nil, errors.InvalidInput("missing model")
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(c.temperature)),
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, errors.ExternalServiceError("gemini", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, errors.ExternalServiceError("gemini", fmt.Errorf("response contained no text"))
	}

	out := &ports.LLMResponse{Content: text}
	if resp.UsageMetadata != nil {
		out.Usage = &ports.UsageData{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
			Model:            model,
			Provider:         ProviderGemini,
		}
	}
	return out, nil
}
