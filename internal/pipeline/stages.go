package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kdimtricp/clipsearch/internal/models"
)

// maxEmbedChars caps the text sent to the embedding provider; long
// transcripts exceed its input limit.
const maxEmbedChars = 8000

func (o *Orchestrator) extractFrames(ctx context.Context, video *models.Video) error {
	videoPath, err := o.Blobs.Path(video.Filename)
	if err != nil {
		return fmt.Errorf("resolve video path: %w", err)
	}

	sampled, duration, err := o.Sampler.Sample(ctx, videoPath, o.FrameInterval)
	if err != nil {
		return err
	}

	if err := o.Videos.SetDuration(ctx, video.ID, duration); err != nil {
		return err
	}
	video.Duration = &duration

	frames := make([]models.Frame, 0, len(sampled))
	for i, sf := range sampled {
		imageName, err := o.Blobs.SaveBytes(sf.Image, ".jpg")
		if err != nil {
			return fmt.Errorf("save frame image: %w", err)
		}
		frames = append(frames, models.NewFrame(video.ID, i, sf.Timestamp, imageName))
	}

	if err := o.Frames.InsertFrames(ctx, frames); err != nil {
		return err
	}

	if err := o.Videos.MarkStep(ctx, video.ID, models.StepFramesExtracted); err != nil {
		return err
	}
	video.Steps.FramesExtracted = true
	return nil
}

func (o *Orchestrator) transcribe(ctx context.Context, video *models.Video) error {
	videoPath, err := o.Blobs.Path(video.Filename)
	if err != nil {
		return fmt.Errorf("resolve video path: %w", err)
	}

	transcription, err := o.Transcriber.Transcribe(ctx, videoPath)
	if err != nil {
		return err
	}

	if err := o.Videos.SaveTranscript(ctx, video.ID, transcription.Text); err != nil {
		return err
	}
	video.Transcript = &transcription.Text

	if transcription.Duration > 0 && video.Duration == nil {
		if err := o.Videos.SetDuration(ctx, video.ID, transcription.Duration); err != nil {
			return err
		}
		video.Duration = &transcription.Duration
	}

	if err := o.Videos.MarkStep(ctx, video.ID, models.StepTranscribed); err != nil {
		return err
	}
	video.Steps.Transcribed = true
	return nil
}

func (o *Orchestrator) analyzeTranscript(ctx context.Context, video *models.Video) error {
	if video.Transcript == nil || *video.Transcript == "" {
		return &ValidationError{Stage: "analyze_transcript", Reason: "no transcript to analyze"}
	}

	analysis, err := o.Analyzer.Analyze(ctx, *video.Transcript)
	if err != nil {
		return err
	}

	result := &models.KeywordAnalysis{
		Summary:    analysis.Summary,
		Keywords:   analysis.Keywords,
		Categories: analysis.Categories,
	}
	if err := o.Videos.SaveTranscriptAnalysis(ctx, video.ID, result); err != nil {
		return err
	}
	video.Summary = &analysis.Summary
	return nil
}

// analyzeFrames describes and embeds every frame still lacking vectors.
// Re-invocation over a fully analyzed video makes zero collaborator
// calls. Frames are processed one at a time with a fixed delay as
// backpressure against the embedding provider's rate limit.
func (o *Orchestrator) analyzeFrames(ctx context.Context, video *models.Video) error {
	frames, err := o.Frames.ListUnanalyzed(ctx, video.ID)
	if err != nil {
		return err
	}

	var allKeywords []string
	for i, frame := range frames {
		if i > 0 {
			if err := o.pause(ctx); err != nil {
				return err
			}
		}

		image, err := o.Blobs.ReadBytes(frame.ImagePath)
		if err != nil {
			return fmt.Errorf("read frame image: %w", err)
		}

		description, err := o.Vision.DescribeFrame(ctx, image, frame.Timestamp)
		if err != nil {
			return err
		}

		imageVec, err := o.Embedder.EmbedCaption(ctx, description.Description)
		if err != nil {
			return err
		}

		keywordText := strings.Join(description.Keywords, " ")
		if keywordText == "" {
			keywordText = description.Description
		}
		keywordsVec, err := o.Embedder.EmbedText(ctx, keywordText)
		if err != nil {
			return err
		}

		if err := o.Frames.SaveFrameAnalysis(ctx, frame.ID,
			description.Description, description.Keywords, imageVec, keywordsVec); err != nil {
			return err
		}
		allKeywords = append(allKeywords, description.Keywords...)
	}

	if len(allKeywords) > 0 {
		analysis, err := o.Analyzer.Analyze(ctx, strings.Join(allKeywords, ", "))
		if err != nil {
			return err
		}
		visual := &models.KeywordAnalysis{
			Summary:    analysis.Summary,
			Keywords:   analysis.Keywords,
			Categories: analysis.Categories,
		}
		if err := o.Videos.SaveVisualAnalysis(ctx, video.ID, visual); err != nil {
			return err
		}
	}

	if err := o.Videos.MarkStep(ctx, video.ID, models.StepFramesAnalyzed); err != nil {
		return err
	}
	video.Steps.FramesAnalyzed = true
	return nil
}

// embedText recomputes both video-level vectors on every invocation.
// Unlike analyzeFrames it is not guarded against re-running.
func (o *Orchestrator) embedText(ctx context.Context, video *models.Video) error {
	if video.Transcript == nil || *video.Transcript == "" {
		return &ValidationError{Stage: "embed_text", Reason: "no transcript to embed"}
	}
	if video.Summary == nil || *video.Summary == "" {
		return &ValidationError{Stage: "embed_text", Reason: "no summary to embed"}
	}

	transcriptVec, err := o.Embedder.EmbedText(ctx, truncate(*video.Transcript))
	if err != nil {
		return err
	}

	if err := o.pause(ctx); err != nil {
		return err
	}

	summaryVec, err := o.Embedder.EmbedText(ctx, truncate(*video.Summary))
	if err != nil {
		return err
	}

	if err := o.Videos.SaveTextEmbeddings(ctx, video.ID, transcriptVec, summaryVec); err != nil {
		return err
	}

	if err := o.Videos.MarkStep(ctx, video.ID, models.StepEmbedded); err != nil {
		return err
	}
	video.Steps.Embedded = true
	return nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.EmbedDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(o.EmbedDelay):
		return nil
	}
}

func truncate(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	return text[:maxEmbedChars]
}
