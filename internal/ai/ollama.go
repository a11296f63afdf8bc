package ai

import (
	"context"
	"fmt"
	"strings"
)

const defaultOllamaHost = "http://localhost:11434"

type ollamaConfig struct {
	Host string `json:"host"`
}

type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIChatMsg `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature *float32 `json:"temperature,omitempty"`
}

type ollamaChatResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
}

type ollamaProvider struct {
	host string
}

func (p *ollamaProvider) Name() string {
	return "ollama"
}

func (p *ollamaProvider) Generate(ctx context.Context, model string, req GenerateRequest) (string, error) {
	body := ollamaChatRequest{Model: model, Messages: chatMessages(req)}
	if req.Temperature != nil {
		body.Options = &ollamaOptions{Temperature: req.Temperature}
	}
	var out ollamaChatResponse
	if err := postJSON(ctx, p.Name(), p.host+"/api/chat", nil, body, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Message.Content), nil
}

// Embed ignores taskType; Ollama embedding models take raw text.
func (p *ollamaProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	var out ollamaEmbedResponse
	if err := postJSON(ctx, p.Name(), p.host+"/api/embed", nil, ollamaEmbedRequest{Model: model, Input: text}, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) == 0 || len(out.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("ollama response has no embeddings")
	}
	return out.Embeddings[0], nil
}

func newOllamaProvider(args interface{}) (*ollamaProvider, error) {
	cfg := &ollamaConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	host := strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if host == "" {
		host = defaultOllamaHost
	}
	return &ollamaProvider{host: host}, nil
}

func createOllamaFactory(args interface{}) (IAIProvider, error) {
	p, err := newOllamaProvider(args)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func createOllamaEmbedFactory(args interface{}) (IEmbedProvider, error) {
	p, err := newOllamaProvider(args)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func init() {
	Register("ollama", createOllamaFactory)
	RegisterEmbed("ollama", createOllamaEmbedFactory)
}
