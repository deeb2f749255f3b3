package provider

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/config"
)

// OpenAI serves OpenAI, OpenAI-compatible endpoints and Azure OpenAI. For
// Azure the model is the deployment name.
type OpenAI struct {
	name   string
	model  string
	client *openai.Client
}

func NewOpenAI(cfg config.ProviderConfig) *OpenAI {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}
	return &OpenAI{name: NameOpenAI, model: cfg.Model, client: openai.NewClientWithConfig(clientConfig)}
}

func NewAzure(cfg config.ProviderConfig) *OpenAI {
	clientConfig := openai.DefaultAzureConfig(cfg.APIKey, strings.TrimSpace(cfg.BaseURL))
	return &OpenAI{name: NameAzure, model: cfg.Model, client: openai.NewClientWithConfig(clientConfig)}
}

func (p *OpenAI) Name() string         { return p.name }
func (p *OpenAI) DefaultModel() string { return p.model }

func (p *OpenAI) Complete(ctx context.Context, req assistantdomain.CompletionRequest) (assistantdomain.Completion, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: openAIRole(m.Role), Content: m.Content})
	}

	chat := openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chat.Temperature = float32(*req.Temperature)
	}

	resp, err := p.client.CreateChatCompletion(ctx, chat)
	if err != nil {
		return assistantdomain.Completion{}, err
	}
	if len(resp.Choices) == 0 {
		return assistantdomain.Completion{}, errors.New("no choices in completion")
	}

	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return assistantdomain.Completion{
		Content:      resp.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  int64(resp.Usage.PromptTokens),
		OutputTokens: int64(resp.Usage.CompletionTokens),
	}, nil
}

func openAIRole(role string) string {
	switch role {
	case assistantdomain.RoleAssistant:
		return openai.ChatMessageRoleAssistant
	case assistantdomain.RoleSystem:
		return openai.ChatMessageRoleSystem
	default:
		return openai.ChatMessageRoleUser
	}
}
