package search

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kdimtricp/clipsearch/internal/database"
)

var frameColumns = map[string]string{
	ChannelImage:    "image_embedding",
	ChannelKeywords: "keywords_embedding",
}

var videoColumns = map[string]string{
	ChannelTranscript: "transcript_embedding",
	ChannelSummary:    "summary_embedding",
}

// PgIndex runs the channel lookups as pgvector cosine-distance queries.
type PgIndex struct {
	db *database.DB
}

func NewPgIndex(db *database.DB) *PgIndex {
	return &PgIndex{db: db}
}

func (idx *PgIndex) SearchFrames(ctx context.Context, channel string, vector []float32, limit int) ([]FrameMatch, error) {
	column, ok := frameColumns[channel]
	if !ok {
		return nil, fmt.Errorf("unknown frame channel: %s", channel)
	}

	query := fmt.Sprintf(`
		SELECT id, video_id, ts, COALESCE(description, ''),
		       1 - (%[1]s <=> $1) AS similarity
		FROM frames
		WHERE %[1]s IS NOT NULL
		ORDER BY %[1]s <=> $1
		LIMIT $2`, column)

	rows, err := idx.db.Pool().Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search frames: %w", err)
	}
	defer rows.Close()

	var matches []FrameMatch
	for rows.Next() {
		var m FrameMatch
		if err := rows.Scan(&m.FrameID, &m.VideoID, &m.Timestamp, &m.Description, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan frame match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// SearchVideos only considers Ready videos: half-processed pipelines
// never leak into results.
func (idx *PgIndex) SearchVideos(ctx context.Context, channel string, vector []float32, limit int) ([]VideoMatch, error) {
	column, ok := videoColumns[channel]
	if !ok {
		return nil, fmt.Errorf("unknown video channel: %s", channel)
	}

	query := fmt.Sprintf(`
		SELECT id, 1 - (%[1]s <=> $1) AS similarity
		FROM videos
		WHERE status = 'ready' AND %[1]s IS NOT NULL
		ORDER BY %[1]s <=> $1
		LIMIT $2`, column)

	rows, err := idx.db.Pool().Query(ctx, query, pgvector.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search videos: %w", err)
	}
	defer rows.Close()

	var matches []VideoMatch
	for rows.Next() {
		var m VideoMatch
		if err := rows.Scan(&m.VideoID, &m.Score); err != nil {
			return nil, fmt.Errorf("failed to scan video match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
