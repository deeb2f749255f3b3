package provider

import (
	"context"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/config"
)

type Anthropic struct {
	model  string
	client anthropic.Client
}

func NewAnthropic(cfg config.ProviderConfig) *Anthropic {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Anthropic{model: cfg.Model, client: anthropic.NewClient(opts...)}
}

func (p *Anthropic) Name() string         { return NameAnthropic }
func (p *Anthropic) DefaultModel() string { return p.model }

func (p *Anthropic) Complete(ctx context.Context, req assistantdomain.CompletionRequest) (assistantdomain.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(req.MaxTokens),
	}
	system := req.System
	for _, m := range req.Messages {
		switch m.Role {
		case assistantdomain.RoleAssistant:
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case assistantdomain.RoleSystem:
			// extra system turns are folded into the system prompt
			system = strings.TrimSpace(system + "\n\n" + m.Content)
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return assistantdomain.Completion{}, err
	}

	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			content.WriteString(block.Text)
		}
	}
	return assistantdomain.Completion{
		Content:      content.String(),
		Model:        string(resp.Model),
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}
