package ai

import (
	"context"
	"fmt"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

type openAIProvider struct {
	apiKey  string
	baseURL string
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIChatMsg `json:"messages"`
	Temperature *float32        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream"`
}

type openAIChatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type openAIEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func chatMessages(req GenerateRequest) []openAIChatMsg {
	msgs := make([]openAIChatMsg, 0, 2)
	if req.System != "" {
		msgs = append(msgs, openAIChatMsg{Role: "system", Content: req.System})
	}
	return append(msgs, openAIChatMsg{Role: "user", Content: req.Prompt})
}

func (p *openAIProvider) Name() string {
	return "openai"
}

func (p *openAIProvider) Generate(ctx context.Context, model string, req GenerateRequest) (string, error) {
	if p.apiKey == "" {
		return "", ErrUnavailable
	}
	body := openAIChatRequest{
		Model:       model,
		Messages:    chatMessages(req),
		Temperature: req.Temperature,
	}
	var out openAIChatResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	if err := postJSON(ctx, p.Name(), strings.TrimRight(p.baseURL, "/")+"/chat/completions", headers, body, &out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openai response has no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

type openAIEmbedProvider struct {
	apiKey  string
	baseURL string
}

func (p *openAIEmbedProvider) Name() string {
	return "openai"
}

func (p *openAIEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	var out openAIEmbedResponse
	headers := map[string]string{"Authorization": "Bearer " + p.apiKey}
	body := openAIEmbedRequest{Model: model, Input: text}
	if err := postJSON(ctx, p.Name(), strings.TrimRight(p.baseURL, "/")+"/embeddings", headers, body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("openai response has no embeddings")
	}
	return out.Data[0].Embedding, nil
}

func decodeOpenAIConfig(args interface{}) (*openAIConfig, error) {
	cfg := &openAIConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	return cfg, nil
}

func createOpenAIFactory(args interface{}) (IAIProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &openAIProvider{apiKey: cfg.APIKey, baseURL: cfg.BaseURL}, nil
}

func createOpenAIEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg, err := decodeOpenAIConfig(args)
	if err != nil {
		return nil, err
	}
	return &openAIEmbedProvider{apiKey: cfg.APIKey, baseURL: cfg.BaseURL}, nil
}

func init() {
	Register("openai", createOpenAIFactory)
	RegisterEmbed("openai", createOpenAIEmbedFactory)
}
