package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Embedding dimensions are a fixed contract per space: every vector in a
// given column has the same length, across all rows and all queries.
const (
	// TextEmbeddingDim is the general text space used for keywords,
	// transcript and summary vectors.
	TextEmbeddingDim = 1536
	// ImageEmbeddingDim is the joint image-text space used for frame
	// image vectors and image-channel query vectors.
	ImageEmbeddingDim = 512
)

// Embedder produces fixed-length vectors in two separate spaces.
type Embedder interface {
	// EmbedText embeds into the general text space.
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// EmbedCaption embeds into the joint image-text space.
	EmbedCaption(ctx context.Context, text string) ([]float32, error)
}

type OpenAIEmbedder struct {
	client *openai.Client
	cfg    Config
}

func NewOpenAIEmbedder(cfg Config) *OpenAIEmbedder {
	cfg = cfg.withDefaults()
	return &OpenAIEmbedder{client: newClient(cfg), cfg: cfg}
}

func (e *OpenAIEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "embed_text", e.cfg.TextEmbeddingModel, text, TextEmbeddingDim)
}

func (e *OpenAIEmbedder) EmbedCaption(ctx context.Context, text string) ([]float32, error) {
	return e.embed(ctx, "embed_caption", e.cfg.ImageEmbeddingModel, text, ImageEmbeddingDim)
}

func (e *OpenAIEmbedder) embed(ctx context.Context, op, model, text string, dim int) ([]float32, error) {
	var resp openai.EmbeddingResponse
	err := retryRateLimited(ctx, e.cfg.MaxRetries, e.cfg.RetryBaseDelay, func() error {
		var callErr error
		resp, callErr = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model:      openai.EmbeddingModel(model),
			Input:      []string{text},
			Dimensions: dim,
		})
		return callErr
	})
	if err != nil {
		return nil, &UpstreamError{Op: op, Err: err}
	}

	if len(resp.Data) == 0 {
		return nil, &ParseError{Op: op, Reason: "no embeddings returned"}
	}

	vector := resp.Data[0].Embedding
	if len(vector) != dim {
		return nil, &ParseError{Op: op, Reason: fmt.Sprintf("expected %d dimensions, got %d", dim, len(vector))}
	}
	return vector, nil
}
