package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kdimtricp/clipsearch/internal/models"
)

func TestVideoRepository_InsertVideo(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video := models.NewVideo("Test Video", "test.mp4", "video/mp4", 1024)

	if err := repo.InsertVideo(ctx, video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	retrieved, err := repo.GetVideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve video: %v", err)
	}

	if retrieved.Title != video.Title {
		t.Errorf("Expected title %s, got %s", video.Title, retrieved.Title)
	}
	if retrieved.Status != models.StatusUploading {
		t.Errorf("Expected status uploading, got %s", retrieved.Status)
	}
	if retrieved.Steps.FramesExtracted || retrieved.Steps.Transcribed ||
		retrieved.Steps.FramesAnalyzed || retrieved.Steps.Embedded {
		t.Error("Expected all processing steps to start false")
	}
}

func TestVideoRepository_GetVideoByID_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewVideoRepository(db)

	_, err := repo.GetVideoByID(context.Background(), "00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestVideoRepository_ListVideos(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video1 := models.NewVideo("Video 1", "video1.mp4", "video/mp4", 1024)
	video2 := models.NewVideo("Video 2", "video2.mp4", "video/mp4", 2048)
	video2.CreatedAt = video1.CreatedAt.Add(10 * time.Millisecond)

	if err := repo.InsertVideo(ctx, video1); err != nil {
		t.Fatalf("Failed to insert video1: %v", err)
	}
	if err := repo.InsertVideo(ctx, video2); err != nil {
		t.Fatalf("Failed to insert video2: %v", err)
	}

	videos, err := repo.ListVideos(ctx)
	if err != nil {
		t.Fatalf("Failed to list videos: %v", err)
	}

	if len(videos) != 2 {
		t.Fatalf("Expected 2 videos, got %d", len(videos))
	}
	if videos[0].ID != video2.ID {
		t.Errorf("Expected first video to be most recent (video2), got %s", videos[0].ID)
	}
}

func TestVideoRepository_MarkStep(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video := models.NewVideo("Step Video", "step.mp4", "video/mp4", 512)
	if err := repo.InsertVideo(ctx, video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	if err := repo.MarkStep(ctx, video.ID, models.StepFramesExtracted); err != nil {
		t.Fatalf("Failed to mark step: %v", err)
	}
	if err := repo.MarkStep(ctx, video.ID, models.StepTranscribed); err != nil {
		t.Fatalf("Failed to mark step: %v", err)
	}

	retrieved, err := repo.GetVideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve video: %v", err)
	}

	if !retrieved.Steps.FramesExtracted {
		t.Error("Expected frames_extracted to be true")
	}
	if !retrieved.Steps.Transcribed {
		t.Error("Expected transcribed to be true")
	}
	if retrieved.Steps.FramesAnalyzed || retrieved.Steps.Embedded {
		t.Error("Expected unmarked steps to stay false")
	}

	if err := repo.MarkStep(ctx, video.ID, "unknown_step"); err == nil {
		t.Error("Expected error for unknown step")
	}
}

func TestVideoRepository_SaveTranscriptAnalysis(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video := models.NewVideo("Analysis Video", "analysis.mp4", "video/mp4", 512)
	if err := repo.InsertVideo(ctx, video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	transcript := &models.KeywordAnalysis{
		Summary:    "A cooking tutorial",
		Keywords:   []string{"cooking", "pasta"},
		Categories: []string{"food"},
	}
	if err := repo.SaveTranscriptAnalysis(ctx, video.ID, transcript); err != nil {
		t.Fatalf("Failed to save transcript analysis: %v", err)
	}

	visual := &models.KeywordAnalysis{
		Summary:    "Kitchen scenes",
		Keywords:   []string{"kitchen", "stove"},
		Categories: []string{"indoor"},
	}
	if err := repo.SaveVisualAnalysis(ctx, video.ID, visual); err != nil {
		t.Fatalf("Failed to save visual analysis: %v", err)
	}

	retrieved, err := repo.GetVideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to retrieve video: %v", err)
	}

	if retrieved.Summary == nil || *retrieved.Summary != transcript.Summary {
		t.Errorf("Expected summary %q to be promoted from transcript analysis", transcript.Summary)
	}
	if retrieved.KeywordAnalysis == nil {
		t.Fatal("Expected keyword analysis to be set")
	}
	if retrieved.KeywordAnalysis.Transcript == nil ||
		retrieved.KeywordAnalysis.Transcript.Summary != transcript.Summary {
		t.Error("Expected transcript analysis variant to survive the visual save")
	}
	if retrieved.KeywordAnalysis.Visual == nil ||
		retrieved.KeywordAnalysis.Visual.Summary != visual.Summary {
		t.Error("Expected visual analysis variant to be saved")
	}
}

func TestVideoRepository_SaveTextEmbeddings(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video := models.NewVideo("Embed Video", "embed.mp4", "video/mp4", 512)
	if err := repo.InsertVideo(ctx, video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	transcriptVec := make([]float32, 1536)
	summaryVec := make([]float32, 1536)
	transcriptVec[0] = 0.5
	summaryVec[0] = 0.25

	if err := repo.SaveTextEmbeddings(ctx, video.ID, transcriptVec, summaryVec); err != nil {
		t.Fatalf("Failed to save text embeddings: %v", err)
	}

	// Overwrite is allowed: the embed stage recomputes on every run.
	transcriptVec[0] = 0.75
	if err := repo.SaveTextEmbeddings(ctx, video.ID, transcriptVec, summaryVec); err != nil {
		t.Fatalf("Failed to overwrite text embeddings: %v", err)
	}
}

func TestVideoRepository_DeleteVideo(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewVideoRepository(db)

	video := models.NewVideo("Doomed Video", "doomed.mp4", "video/mp4", 512)
	if err := repo.InsertVideo(ctx, video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}

	if err := repo.DeleteVideo(ctx, video.ID); err != nil {
		t.Fatalf("Failed to delete video: %v", err)
	}

	if _, err := repo.GetVideoByID(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}

	if err := repo.DeleteVideo(ctx, video.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}
