package database

import (
	"context"
	"testing"

	"github.com/kdimtricp/clipsearch/internal/models"
)

func insertTestVideo(t *testing.T, db *DB, title string) *models.Video {
	t.Helper()
	video := models.NewVideo(title, title+".mp4", "video/mp4", 1024)
	if err := NewVideoRepository(db).InsertVideo(context.Background(), video); err != nil {
		t.Fatalf("Failed to insert video: %v", err)
	}
	return video
}

func testVectors() ([]float32, []float32) {
	imageVec := make([]float32, 512)
	keywordsVec := make([]float32, 1536)
	imageVec[0] = 1
	keywordsVec[0] = 1
	return imageVec, keywordsVec
}

func TestFrameRepository_InsertFrames(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewFrameRepository(db)
	video := insertTestVideo(t, db, "Frames Video")

	frames := []models.Frame{
		models.NewFrame(video.ID, 0, 0, "f0.jpg"),
		models.NewFrame(video.ID, 1, 10, "f1.jpg"),
		models.NewFrame(video.ID, 2, 20, "f2.jpg"),
	}
	if err := repo.InsertFrames(ctx, frames); err != nil {
		t.Fatalf("Failed to insert frames: %v", err)
	}

	// Re-inserting the same grid is a no-op, not an error.
	if err := repo.InsertFrames(ctx, frames); err != nil {
		t.Fatalf("Failed to re-insert frames: %v", err)
	}

	stored, err := repo.GetByVideoID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to get frames: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("Expected 3 frames, got %d", len(stored))
	}
	if stored[1].Timestamp != 10 {
		t.Errorf("Expected second frame at 10s, got %f", stored[1].Timestamp)
	}
}

func TestFrameRepository_ListUnanalyzed(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewFrameRepository(db)
	video := insertTestVideo(t, db, "Unanalyzed Video")

	frames := []models.Frame{
		models.NewFrame(video.ID, 0, 0, "f0.jpg"),
		models.NewFrame(video.ID, 1, 10, "f1.jpg"),
	}
	if err := repo.InsertFrames(ctx, frames); err != nil {
		t.Fatalf("Failed to insert frames: %v", err)
	}

	unanalyzed, err := repo.ListUnanalyzed(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to list unanalyzed frames: %v", err)
	}
	if len(unanalyzed) != 2 {
		t.Fatalf("Expected 2 unanalyzed frames, got %d", len(unanalyzed))
	}

	imageVec, keywordsVec := testVectors()
	err = repo.SaveFrameAnalysis(ctx, frames[0].ID,
		"a kitchen scene", []string{"kitchen", "stove"}, imageVec, keywordsVec)
	if err != nil {
		t.Fatalf("Failed to save frame analysis: %v", err)
	}

	unanalyzed, err = repo.ListUnanalyzed(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to list unanalyzed frames: %v", err)
	}
	if len(unanalyzed) != 1 {
		t.Fatalf("Expected 1 unanalyzed frame after analysis, got %d", len(unanalyzed))
	}
	if unanalyzed[0].ID != frames[1].ID {
		t.Errorf("Expected remaining unanalyzed frame to be %s, got %s", frames[1].ID, unanalyzed[0].ID)
	}

	analyzed, err := repo.GetByID(ctx, frames[0].ID)
	if err != nil {
		t.Fatalf("Failed to get analyzed frame: %v", err)
	}
	if analyzed.Description == nil || *analyzed.Description != "a kitchen scene" {
		t.Error("Expected description to be saved")
	}
	if len(analyzed.Keywords) != 2 {
		t.Errorf("Expected 2 keywords, got %d", len(analyzed.Keywords))
	}
}

func TestFrameRepository_DeleteByVideoID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	repo := NewFrameRepository(db)
	video := insertTestVideo(t, db, "Delete Video")

	frames := []models.Frame{
		models.NewFrame(video.ID, 0, 0, "f0.jpg"),
		models.NewFrame(video.ID, 1, 10, "f1.jpg"),
	}
	if err := repo.InsertFrames(ctx, frames); err != nil {
		t.Fatalf("Failed to insert frames: %v", err)
	}

	paths, err := repo.DeleteByVideoID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to delete frames: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("Expected 2 image paths back, got %d", len(paths))
	}

	remaining, err := repo.GetByVideoID(ctx, video.ID)
	if err != nil {
		t.Fatalf("Failed to get frames: %v", err)
	}
	if len(remaining) != 0 {
		t.Errorf("Expected no frames after delete, got %d", len(remaining))
	}
}
