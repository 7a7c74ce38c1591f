package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// FrameDescription is the vision collaborator's contract: exactly a
// description and a keyword list.
type FrameDescription struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

var frameDescriptionKeys = []string{"description", "keywords"}

type VisionDescriber interface {
	DescribeFrame(ctx context.Context, image []byte, timestamp float64) (*FrameDescription, error)
}

type OpenAIVision struct {
	client *openai.Client
	cfg    Config
	schema *jsonschema.Definition
}

func NewOpenAIVision(cfg Config) (*OpenAIVision, error) {
	cfg = cfg.withDefaults()
	schema, err := jsonschema.GenerateSchemaForType(FrameDescription{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate frame description schema: %w", err)
	}
	return &OpenAIVision{client: newClient(cfg), cfg: cfg, schema: schema}, nil
}

func (v *OpenAIVision) DescribeFrame(ctx context.Context, image []byte, timestamp float64) (*FrameDescription, error) {
	imageBase64 := base64.StdEncoding.EncodeToString(image)

	prompt := fmt.Sprintf(`This frame was sampled at %.1f seconds into a video.
Respond with a JSON object containing exactly these keys:
- "description": one or two sentences describing the scene, subjects and any visible text
- "keywords": a list of distinctive keywords for the frame`, timestamp)

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: v.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    fmt.Sprintf("data:image/jpeg;base64,%s", imageBase64),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "frame_description",
				Schema: v.schema,
				Strict: true,
			},
		},
	})
	if err != nil {
		return nil, &UpstreamError{Op: "describe_frame", Err: err}
	}

	content, err := chatContent(resp)
	if err != nil {
		return nil, &ParseError{Op: "describe_frame", Reason: err.Error()}
	}

	return decodeFrameDescription(content)
}

func decodeFrameDescription(raw string) (*FrameDescription, error) {
	desc := &FrameDescription{}
	if err := decodeStrictObject("describe_frame", raw, frameDescriptionKeys, desc); err != nil {
		return nil, err
	}
	return desc, nil
}
