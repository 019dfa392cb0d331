// Package llm provides a provider-agnostic text generation interface and
// the retrying invoker the pipeline stages call through.
package llm

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/config"
	"github.com/valid8/valid8/pkg/anthropic"
	"github.com/valid8/valid8/pkg/ollama"
)

// TextGenerator produces raw model text from a prompt. Implementations are
// selected once at startup and injected into both pipeline stages.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Provider() string
}

// ProviderError reports that a text-generation backend failed: missing
// credentials, non-2xx response, or network failure.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm: provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewGenerator builds the configured text-generation backend.
func NewGenerator(cfg config.LLMConfig, ollamaCfg config.OllamaConfig) (TextGenerator, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.APIKey == "" {
			return nil, eris.New("llm: anthropic API key not configured (VALID8_LLM_API_KEY)")
		}
		return &anthropicGenerator{
			client:    anthropic.NewClient(cfg.APIKey),
			model:     cfg.Model,
			maxTokens: cfg.MaxTokens,
		}, nil
	case "ollama":
		return &ollamaGenerator{
			client: ollama.NewClient(
				ollama.WithBaseURL(ollamaCfg.BaseURL),
				ollama.WithModel(ollamaCfg.Model),
			),
		}, nil
	default:
		return nil, eris.Errorf("llm: unsupported provider: %s", cfg.Provider)
	}
}

// systemText steers every cleaning/reconciliation call toward raw JSON.
const systemText = "You are a healthcare data processing AI. Always return valid JSON only."

type anthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func (g *anthropicGenerator) Provider() string { return "anthropic" }

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	maxTokens := g.maxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: maxTokens,
		System:    systemText,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", &ProviderError{Provider: "anthropic", Err: err}
	}
	return resp.Text(), nil
}

type ollamaGenerator struct {
	client ollama.Client
}

func (g *ollamaGenerator) Provider() string { return "ollama" }

func (g *ollamaGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Generate(ctx, ollama.GenerateRequest{
		Prompt: prompt,
		Stream: false,
		Format: "json",
	})
	if err != nil {
		return "", &ProviderError{Provider: "ollama", Err: err}
	}
	return resp.Response, nil
}
