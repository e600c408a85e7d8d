package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"inquest/internal/config"
)

const analyzeSystemPrompt = `You are an investigative document analyst. You answer questions
strictly from the document context supplied with each request.

RULES:
- ONLY use information from the provided documents
- Cite documents inline as [1], [2] matching their context index
- If the documents do not answer the question, say so plainly
- Never fabricate names, dates or connections

Respond with a JSON object and nothing else:
{"analysis": "your answer with citations", "suggested_queries": ["up to three short follow-up questions"]}`

const healthProbeTimeout = 10 * time.Second

// ModelClient implements Client on top of an eino chat model.
type ModelClient struct {
	chatModel model.BaseChatModel
	modelName string
}

// NewModelClient builds the provider-specific chat model from config.
func NewModelClient(ctx context.Context, cfg config.LLMConfig) (*ModelClient, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)

	switch cfg.Provider {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Provider, err)
	}

	return &ModelClient{chatModel: chatModel, modelName: cfg.Model}, nil
}

// Generate runs a single-message completion.
func (c *ModelClient) Generate(ctx context.Context, prompt string) (string, error) {
	msg, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.User, Content: prompt},
	})
	if err != nil {
		return "", &SynthesisError{Err: err}
	}
	if msg == nil || msg.Content == "" {
		return "", &SynthesisError{Err: errors.New("empty completion")}
	}
	return msg.Content, nil
}

// Analyze asks the model to answer the query from the context block and
// parses its JSON reply. Any failure, including empty analysis text, comes
// back as a *SynthesisError.
func (c *ModelClient) Analyze(ctx context.Context, query, contextBlock string) (*Analysis, error) {
	user := fmt.Sprintf("DOCUMENT CONTEXT:\n%s\n\nQUESTION: %s", contextBlock, query)

	msg, err := c.chatModel.Generate(ctx, []*schema.Message{
		{Role: schema.System, Content: analyzeSystemPrompt},
		{Role: schema.User, Content: user},
	})
	if err != nil {
		return nil, &SynthesisError{Err: err}
	}
	if msg == nil {
		return nil, &SynthesisError{Err: errors.New("nil completion")}
	}

	analysis := ParseAnalysis(msg.Content)
	if analysis.Analysis == "" {
		return nil, &SynthesisError{Err: errors.New("empty analysis")}
	}
	return analysis, nil
}

// Health probes the model with a minimal completion.
func (c *ModelClient) Health(ctx context.Context) *Health {
	probeCtx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
	defer cancel()

	_, err := c.chatModel.Generate(probeCtx, []*schema.Message{
		{Role: schema.User, Content: "ping"},
	})
	if err != nil {
		return &Health{Status: "offline", Model: c.modelName, Ready: false}
	}
	return &Health{Status: "ok", Model: c.modelName, Ready: true}
}
