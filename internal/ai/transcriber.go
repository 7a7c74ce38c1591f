package ai

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type Transcription struct {
	Text     string
	Duration float64
	Segments []TranscriptSegment
}

type Transcriber interface {
	Transcribe(ctx context.Context, filePath string) (*Transcription, error)
}

type WhisperTranscriber struct {
	client *openai.Client
	cfg    Config
}

func NewWhisperTranscriber(cfg Config) *WhisperTranscriber {
	cfg = cfg.withDefaults()
	return &WhisperTranscriber{client: newClient(cfg), cfg: cfg}
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, filePath string) (*Transcription, error) {
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.cfg.TranscribeModel,
		FilePath: filePath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, &UpstreamError{Op: "transcribe", Err: err}
	}

	if strings.TrimSpace(resp.Text) == "" {
		return nil, &ParseError{Op: "transcribe", Reason: "empty transcript"}
	}

	result := &Transcription{
		Text:     resp.Text,
		Duration: resp.Duration,
	}
	for _, segment := range resp.Segments {
		result.Segments = append(result.Segments, TranscriptSegment{
			Start: segment.Start,
			End:   segment.End,
			Text:  segment.Text,
		})
	}
	return result, nil
}
