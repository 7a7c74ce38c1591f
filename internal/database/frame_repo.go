package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kdimtricp/clipsearch/internal/models"
)

type FrameRepository struct {
	db *DB
}

func NewFrameRepository(db *DB) *FrameRepository {
	return &FrameRepository{db: db}
}

func (r *FrameRepository) InsertFrames(ctx context.Context, frames []models.Frame) error {
	if len(frames) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, frame := range frames {
		batch.Queue(`
			INSERT INTO frames (id, video_id, ordinal, ts, image_path)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (video_id, ordinal) DO NOTHING`,
			frame.ID, frame.VideoID, frame.Ordinal, frame.Timestamp, frame.ImagePath)
	}

	results := r.db.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range frames {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert frame: %w", err)
		}
	}
	return nil
}

func (r *FrameRepository) GetByVideoID(ctx context.Context, videoID string) ([]models.Frame, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, video_id, ordinal, ts, image_path, description, keywords
		FROM frames
		WHERE video_id = $1
		ORDER BY ordinal`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	defer rows.Close()

	return scanFrames(rows)
}

func (r *FrameRepository) GetByID(ctx context.Context, id string) (*models.Frame, error) {
	row := r.db.pool.QueryRow(ctx, `
		SELECT id, video_id, ordinal, ts, image_path, description, keywords
		FROM frames
		WHERE id = $1`, id)

	frame := &models.Frame{}
	err := row.Scan(&frame.ID, &frame.VideoID, &frame.Ordinal, &frame.Timestamp,
		&frame.ImagePath, &frame.Description, &frame.Keywords)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("frame %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get frame: %w", err)
	}
	return frame, nil
}

// ListUnanalyzed returns the video's frames still lacking embeddings, in
// timestamp order. Re-invoking the frame analysis stage over a fully
// analyzed video therefore touches nothing.
func (r *FrameRepository) ListUnanalyzed(ctx context.Context, videoID string) ([]models.Frame, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, video_id, ordinal, ts, image_path, description, keywords
		FROM frames
		WHERE video_id = $1
		  AND (image_embedding IS NULL OR keywords_embedding IS NULL)
		ORDER BY ordinal`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unanalyzed frames: %w", err)
	}
	defer rows.Close()

	return scanFrames(rows)
}

func (r *FrameRepository) SaveFrameAnalysis(ctx context.Context, frameID, description string, keywords []string, imageVec, keywordsVec []float32) error {
	tag, err := r.db.pool.Exec(ctx, `
		UPDATE frames
		SET description = $2, keywords = $3, image_embedding = $4, keywords_embedding = $5
		WHERE id = $1`,
		frameID, description, keywords,
		pgvector.NewVector(imageVec), pgvector.NewVector(keywordsVec))
	if err != nil {
		return fmt.Errorf("failed to save frame analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("frame %s: %w", frameID, ErrNotFound)
	}
	return nil
}

// DeleteByVideoID removes the video's frames and returns the image paths
// of their backing blobs so the caller can delete those too.
func (r *FrameRepository) DeleteByVideoID(ctx context.Context, videoID string) ([]string, error) {
	rows, err := r.db.pool.Query(ctx, `
		DELETE FROM frames WHERE video_id = $1 RETURNING image_path`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to delete frames: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan image path: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

func scanFrames(rows pgx.Rows) ([]models.Frame, error) {
	var frames []models.Frame
	for rows.Next() {
		frame := models.Frame{}
		err := rows.Scan(&frame.ID, &frame.VideoID, &frame.Ordinal, &frame.Timestamp,
			&frame.ImagePath, &frame.Description, &frame.Keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to scan frame: %w", err)
		}
		frames = append(frames, frame)
	}
	return frames, rows.Err()
}
