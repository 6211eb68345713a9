package ports

import "context"

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse is generated text plus the usage reported by the provider
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// TextGenerator is a single-shot, non-streaming text-generation backend
type TextGenerator interface {
	ChatCompletion(ctx context.Context, model string, prompt string, maxTokens int) (string, error)

	ChatCompletionWithUsage(ctx context.Context, model string, prompt string, maxTokens int) (*LLMResponse, error)
}
