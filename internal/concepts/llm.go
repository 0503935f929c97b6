package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

const systemPrompt = `You classify search queries for a personal workspace that holds documents,
tasks, calendar events, conversations and uploaded files.

Reply with ONLY a JSON object, no preamble and no code fences:
{"intent": "<one of task|document|search|schedule|conversation|file|general>",
 "entities": [{"type": "<person|project|organization|date|place|topic>", "name": "<as written>"}]}

Rules:
- Pick the single intent that best matches what the user wants to find.
- Use "general" when nothing fits.
- Only list entities that appear in the query. Use [] when there are none.`

// LLMExtractor asks an OpenAI-compatible chat model to classify queries.
type LLMExtractor struct {
	model  llms.Model
	logger *slog.Logger
}

// NewLLMExtractor connects to the configured OpenAI-compatible endpoint.
func NewLLMExtractor(cfg config.ConceptsConfig) (*LLMExtractor, error) {
	token := cfg.Token
	if token == "" {
		// Local OpenAI-compatible servers accept any token.
		token = "none"
	}
	model, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return NewLLMExtractorWithModel(model), nil
}

// NewLLMExtractorWithModel uses an already constructed model.
func NewLLMExtractorWithModel(model llms.Model) *LLMExtractor {
	return &LLMExtractor{
		model:  model,
		logger: slog.Default().With("component", "llm-extractor"),
	}
}

// Analyze sends text to the model and parses its JSON reply. A reply that
// is not the expected JSON yields ErrMalformed.
func (e *LLMExtractor) Analyze(ctx context.Context, text string) (Analysis, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	resp, err := e.model.GenerateContent(ctx, content, llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return Analysis{}, fmt.Errorf("generating content: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Analysis{}, fmt.Errorf("%w: no choices returned", ErrMalformed)
	}

	raw := stripFences(resp.Choices[0].Content)
	var reply struct {
		Intent   string `json:"intent"`
		Entities []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		e.logger.Debug("unparseable classifier reply", "reply", raw, "error", err)
		return Analysis{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	intent, ok := ParseIntent(strings.ToLower(strings.TrimSpace(reply.Intent)))
	if !ok {
		e.logger.Debug("unknown intent label", "intent", reply.Intent)
	}
	out := Analysis{Intent: intent}
	for _, ent := range reply.Entities {
		out.Entities = append(out.Entities, document.Entity{Type: ent.Type, Name: ent.Name})
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
