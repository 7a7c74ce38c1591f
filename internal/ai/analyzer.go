package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Analysis is the exact object the analyzer must return: those three
// keys, nothing more, nothing less.
type Analysis struct {
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
}

var analysisKeys = []string{"summary", "keywords", "categories"}

type TextAnalyzer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
}

type OpenAIAnalyzer struct {
	client *openai.Client
	cfg    Config
	schema *jsonschema.Definition
}

func NewOpenAIAnalyzer(cfg Config) (*OpenAIAnalyzer, error) {
	cfg = cfg.withDefaults()
	schema, err := jsonschema.GenerateSchemaForType(Analysis{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate analysis schema: %w", err)
	}
	return &OpenAIAnalyzer{client: newClient(cfg), cfg: cfg, schema: schema}, nil
}

const analyzePrompt = `You analyze video content. Given a text, respond with a JSON object
containing exactly these keys:
- "summary": a concise summary of the content (2-4 sentences)
- "keywords": a list of the most distinctive keywords and phrases
- "categories": a short list of broad topical categories`

func (a *OpenAIAnalyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: analyzePrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "keyword_analysis",
				Schema: a.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, &UpstreamError{Op: "analyze", Err: err}
	}

	content, err := chatContent(resp)
	if err != nil {
		return nil, &ParseError{Op: "analyze", Reason: err.Error()}
	}

	return decodeAnalysis(content)
}

func decodeAnalysis(raw string) (*Analysis, error) {
	analysis := &Analysis{}
	if err := decodeStrictObject("analyze", raw, analysisKeys, analysis); err != nil {
		return nil, err
	}
	return analysis, nil
}
