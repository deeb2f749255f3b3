package provider

import (
	"context"
	"strings"

	"google.golang.org/genai"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/config"
)

// Gemini builds a genai client per call because the client constructor
// needs a context.
type Gemini struct {
	apiKey string
	model  string
}

func NewGemini(cfg config.ProviderConfig) *Gemini {
	return &Gemini{apiKey: cfg.APIKey, model: cfg.Model}
}

func (p *Gemini) Name() string         { return NameGemini }
func (p *Gemini) DefaultModel() string { return p.model }

func (p *Gemini) Complete(ctx context.Context, req assistantdomain.CompletionRequest) (assistantdomain.Completion, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  p.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return assistantdomain.Completion{}, err
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	system := req.System
	for _, m := range req.Messages {
		switch m.Role {
		case assistantdomain.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		case assistantdomain.RoleSystem:
			system = strings.TrimSpace(system + "\n\n" + m.Content)
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	cfg := &genai.GenerateContentConfig{MaxOutputTokens: int32(req.MaxTokens)}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if req.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}

	resp, err := client.Models.GenerateContent(ctx, req.Model, contents, cfg)
	if err != nil {
		return assistantdomain.Completion{}, err
	}

	out := assistantdomain.Completion{Content: resp.Text(), Model: resp.ModelVersion}
	if out.Model == "" {
		out.Model = req.Model
	}
	if resp.UsageMetadata != nil {
		out.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
