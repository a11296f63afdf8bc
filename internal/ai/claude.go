package ai

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultClaudeBaseURL   = "https://api.anthropic.com"
	defaultClaudeMaxTokens = 1024
	anthropicVersion       = "2023-06-01"
)

type claudeConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	MaxTokens int    `json:"max_tokens"`
}

type claudeProvider struct {
	apiKey    string
	baseURL   string
	maxTokens int
}

type claudeRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	System      string          `json:"system,omitempty"`
	Temperature *float32        `json:"temperature,omitempty"`
}

type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (p *claudeProvider) Name() string {
	return "claude"
}

func (p *claudeProvider) Generate(ctx context.Context, model string, req GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	body := claudeRequest{
		Model:       model,
		Messages:    []openAIChatMsg{{Role: "user", Content: req.Prompt}},
		MaxTokens:   p.maxTokens,
		System:      req.System,
		Temperature: req.Temperature,
	}
	headers := map[string]string{
		"x-api-key":         p.apiKey,
		"anthropic-version": anthropicVersion,
	}
	var out claudeResponse
	if err := postJSON(ctx, p.Name(), strings.TrimRight(p.baseURL, "/")+"/v1/messages", headers, body, &out); err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("claude response has no text content")
	}
	return strings.TrimSpace(sb.String()), nil
}

func createClaudeFactory(args interface{}) (IAIProvider, error) {
	cfg := &claudeConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultClaudeBaseURL
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}
	return &claudeProvider{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   baseURL,
		maxTokens: maxTokens,
	}, nil
}

func init() {
	Register("claude", createClaudeFactory)
}
