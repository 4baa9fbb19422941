// Package gemini implements llm.Provider on the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/kart-io/legal-rag/pkg/llm"
)

const ProviderName = "gemini"

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

// Config holds the Gemini credentials and model names.
type Config struct {
	// APIKey is the Google AI Studio key.
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel is used for embeddings.
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// ChatModel is used for generation.
	ChatModel string `json:"chat_model" mapstructure:"chat_model"`

	// Timeout bounds each call.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// Temperature is passed to the chat model. Zero keeps the model default.
	Temperature float32 `json:"temperature" mapstructure:"temperature"`
}

// DefaultConfig returns the default models with a low temperature.
func DefaultConfig() *Config {
	return &Config{
		EmbedModel:  "text-embedding-004",
		ChatModel:   "gemini-1.5-flash",
		Timeout:     120 * time.Second,
		Temperature: 0.2,
	}
}

// Provider wraps a genai client.
type Provider struct {
	config *Config
	client *genai.Client
}

// NewProvider builds a Provider from a flat config map.
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	cfg := DefaultConfig()
	cfg.APIKey = llm.StringOption(configMap, "api_key", cfg.APIKey)
	cfg.EmbedModel = llm.StringOption(configMap, "embed_model", cfg.EmbedModel)
	cfg.ChatModel = llm.StringOption(configMap, "chat_model", cfg.ChatModel)
	if v, ok := configMap["timeout"].(time.Duration); ok && v > 0 {
		cfg.Timeout = v
	}
	return NewProviderWithConfig(context.Background(), cfg)
}

// NewProviderWithConfig creates the genai client.
func NewProviderWithConfig(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Provider{config: cfg, client: client}, nil
}

func (p *Provider) Name() string {
	return ProviderName
}

// Close releases the underlying client.
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

// Embed embeds texts in one batch call.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	em := p.client.EmbeddingModel(p.config.EmbedModel)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini: batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

// EmbedSingle embeds one text.
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.client.EmbeddingModel(p.config.EmbedModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini: embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, errors.New("gemini: empty embedding")
	}
	return resp.Embedding.Values, nil
}

// Chat replays all but the last message as history and sends the last one.
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	history, system, last, err := splitConversation(messages)
	if err != nil {
		return "", err
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	cs := p.model(system).StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", fmt.Errorf("gemini: send message: %w", err)
	}
	return responseText(resp)
}

// Generate answers a single prompt under an optional system instruction.
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.model(systemPrompt).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini: generate: %w", err)
	}
	return responseText(resp)
}

func (p *Provider) model(system string) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.config.ChatModel)
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	return model
}

// splitConversation maps messages onto Gemini roles. System messages are
// merged into the system instruction; the final message must come from the user.
func splitConversation(messages []llm.Message) (history []*genai.Content, system string, last string, err error) {
	if len(messages) == 0 {
		return nil, "", "", errors.New("gemini: no messages provided")
	}
	final := messages[len(messages)-1]
	if final.Role != llm.RoleUser {
		return nil, "", "", errors.New("gemini: last message must be from user")
	}

	var systemParts []string
	for _, msg := range messages[:len(messages)-1] {
		switch msg.Role {
		case llm.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case llm.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	return history, strings.Join(systemParts, "\n"), final.Content, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini: empty response")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return sb.String(), nil
}
