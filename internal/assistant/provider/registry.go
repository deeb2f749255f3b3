// Package provider adapts AI vendor SDKs to the assistant Provider interface.
package provider

import (
	"net/http"
	"sort"
	"strings"

	"go.uber.org/zap"

	assistantdomain "github.com/lukasai/lukas/internal/assistant/domain"
	"github.com/lukasai/lukas/internal/config"
)

const (
	NameOpenAI    = "openai"
	NameAzure     = "azure"
	NameAnthropic = "anthropic"
	NameOllama    = "ollama"
	NameGemini    = "gemini"
)

// Registry holds the configured providers. Providers without credentials
// are left out.
type Registry struct {
	defaultName string
	providers   map[string]assistantdomain.Provider
}

func NewRegistry(cfg config.Config, log *zap.Logger) *Registry {
	log = log.Named("assistant.provider")
	pc := cfg.Providers
	r := &Registry{
		defaultName: strings.ToLower(strings.TrimSpace(pc.Default)),
		providers:   make(map[string]assistantdomain.Provider),
	}

	if pc.OpenAI.APIKey != "" {
		r.Register(NewOpenAI(pc.OpenAI))
	}
	if pc.Azure.APIKey != "" && pc.Azure.BaseURL != "" {
		r.Register(NewAzure(pc.Azure))
	}
	if pc.Anthropic.APIKey != "" {
		r.Register(NewAnthropic(pc.Anthropic))
	}
	if pc.Gemini.APIKey != "" {
		r.Register(NewGemini(pc.Gemini))
	}
	if pc.Ollama.BaseURL != "" {
		ollama, err := NewOllama(pc.Ollama, &http.Client{Timeout: pc.Timeout})
		if err != nil {
			log.Warn("ollama provider disabled", zap.Error(err))
		} else {
			r.Register(ollama)
		}
	}

	if _, ok := r.providers[r.defaultName]; !ok && r.defaultName != "" {
		log.Warn("default ai provider not configured", zap.String("provider", r.defaultName))
	}
	log.Info("ai providers configured", zap.Strings("providers", r.Names()))
	return r
}

// NewStaticRegistry builds a registry from explicit providers.
func NewStaticRegistry(defaultName string, providers ...assistantdomain.Provider) *Registry {
	r := &Registry{defaultName: defaultName, providers: make(map[string]assistantdomain.Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

func (r *Registry) Register(p assistantdomain.Provider) {
	r.providers[p.Name()] = p
}

func (r *Registry) Get(name string) (assistantdomain.Provider, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
