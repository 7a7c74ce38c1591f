package models

import (
	"time"

	"github.com/google/uuid"
)

type VideoStatus string

const (
	StatusUploading  VideoStatus = "uploading"
	StatusProcessing VideoStatus = "processing"
	StatusReady      VideoStatus = "ready"
	StatusFailed     VideoStatus = "failed"
)

// Step identifies one monotonic processing flag on a video. Flags start
// false and are only ever flipped to true; re-creating the video is the
// only way to reset them.
type Step string

const (
	StepFramesExtracted Step = "frames_extracted"
	StepFramesAnalyzed  Step = "frames_analyzed"
	StepTranscribed     Step = "transcribed"
	StepEmbedded        Step = "embedded"
)

type ProcessingSteps struct {
	FramesExtracted bool `json:"frames_extracted"`
	FramesAnalyzed  bool `json:"frames_analyzed"`
	Transcribed     bool `json:"transcribed"`
	Embedded        bool `json:"embedded"`
}

type KeywordAnalysis struct {
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Categories []string `json:"categories"`
}

// KeywordAnalysisSet holds up to two analysis variants: one derived from
// the speech transcript, one from aggregated frame keywords.
type KeywordAnalysisSet struct {
	Transcript *KeywordAnalysis `json:"transcript,omitempty"`
	Visual     *KeywordAnalysis `json:"visual,omitempty"`
}

type Video struct {
	ID              string              `json:"id"`
	Title           string              `json:"title"`
	Filename        string              `json:"filename"`
	ContentType     string              `json:"content_type"`
	Size            int64               `json:"size"`
	Status          VideoStatus         `json:"status"`
	Duration        *float64            `json:"duration,omitempty"`
	Steps           ProcessingSteps     `json:"processing_steps"`
	Transcript      *string             `json:"transcript,omitempty"`
	Summary         *string             `json:"summary,omitempty"`
	KeywordAnalysis *KeywordAnalysisSet `json:"keyword_analysis,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
}

func NewVideo(title, filename, contentType string, size int64) *Video {
	return &Video{
		ID:          uuid.New().String(),
		Title:       title,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		Status:      StatusUploading,
		CreatedAt:   time.Now(),
	}
}
