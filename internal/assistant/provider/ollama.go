package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/config"
)

type Ollama struct {
	model  string
	client *api.Client
}

func NewOllama(cfg config.ProviderConfig, httpClient *http.Client) (*Ollama, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base url: %w", err)
	}
	return &Ollama{model: cfg.Model, client: api.NewClient(base, httpClient)}, nil
}

func (p *Ollama) Name() string         { return NameOllama }
func (p *Ollama) DefaultModel() string { return p.model }

func (p *Ollama) Complete(ctx context.Context, req assistantdomain.CompletionRequest) (assistantdomain.Completion, error) {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: assistantdomain.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	options := map[string]any{"num_predict": req.MaxTokens}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	stream := false

	var (
		content strings.Builder
		out     assistantdomain.Completion
	)
	err := p.client.Chat(ctx, &api.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			out.Model = resp.Model
			out.InputTokens = int64(resp.PromptEvalCount)
			out.OutputTokens = int64(resp.EvalCount)
		}
		return nil
	})
	if err != nil {
		return assistantdomain.Completion{}, err
	}

	out.Content = content.String()
	if out.Model == "" {
		out.Model = req.Model
	}
	return out, nil
}
