package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/kdimtricp/clipsearch/internal/models"
)

type VideoRepository struct {
	db *DB
}

func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, title, filename, content_type, size, status, duration,
	frames_extracted, frames_analyzed, transcribed, embedded,
	transcript, summary, keyword_analysis, created_at`

func (r *VideoRepository) InsertVideo(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (id, title, filename, content_type, size, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.pool.Exec(ctx, query,
		video.ID, video.Title, video.Filename, video.ContentType,
		video.Size, video.Status, video.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert video: %w", err)
	}
	return nil
}

func (r *VideoRepository) GetVideoByID(ctx context.Context, id string) (*models.Video, error) {
	row := r.db.pool.QueryRow(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = $1`, id)

	video, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get video: %w", err)
	}
	return video, nil
}

func (r *VideoRepository) ListVideos(ctx context.Context) ([]models.Video, error) {
	rows, err := r.db.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, *video)
	}
	return videos, rows.Err()
}

// GetVideosByIDs loads the given videos keyed by id. Missing ids are
// silently absent from the result.
func (r *VideoRepository) GetVideosByIDs(ctx context.Context, ids []string) (map[string]models.Video, error) {
	if len(ids) == 0 {
		return map[string]models.Video{}, nil
	}

	rows, err := r.db.pool.Query(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get videos: %w", err)
	}
	defer rows.Close()

	videos := make(map[string]models.Video, len(ids))
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos[video.ID] = *video
	}
	return videos, rows.Err()
}

func (r *VideoRepository) SetStatus(ctx context.Context, id string, status models.VideoStatus) error {
	tag, err := r.db.pool.Exec(ctx,
		`UPDATE videos SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *VideoRepository) SetDuration(ctx context.Context, id string, seconds float64) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE videos SET duration = $2 WHERE id = $1`, id, seconds)
	if err != nil {
		return fmt.Errorf("failed to set duration: %w", err)
	}
	return nil
}

var stepColumns = map[models.Step]string{
	models.StepFramesExtracted: "frames_extracted",
	models.StepFramesAnalyzed:  "frames_analyzed",
	models.StepTranscribed:     "transcribed",
	models.StepEmbedded:        "embedded",
}

// MarkStep flips one processing flag to true. Flags are monotonic: there
// is deliberately no way to unset one through this repository.
func (r *VideoRepository) MarkStep(ctx context.Context, id string, step models.Step) error {
	column, ok := stepColumns[step]
	if !ok {
		return fmt.Errorf("unknown processing step: %s", step)
	}

	tag, err := r.db.pool.Exec(ctx,
		`UPDATE videos SET `+column+` = TRUE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark step %s: %w", step, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *VideoRepository) SaveTranscript(ctx context.Context, id string, transcript string) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE videos SET transcript = $2 WHERE id = $1`, id, transcript)
	if err != nil {
		return fmt.Errorf("failed to save transcript: %w", err)
	}
	return nil
}

// SaveTranscriptAnalysis stores the transcript-derived keyword analysis
// variant and promotes its summary to the video's summary field.
func (r *VideoRepository) SaveTranscriptAnalysis(ctx context.Context, id string, analysis *models.KeywordAnalysis) error {
	return r.saveAnalysisVariant(ctx, id, "transcript", analysis, true)
}

// SaveVisualAnalysis stores the vision-derived keyword analysis variant.
func (r *VideoRepository) SaveVisualAnalysis(ctx context.Context, id string, analysis *models.KeywordAnalysis) error {
	return r.saveAnalysisVariant(ctx, id, "visual", analysis, false)
}

func (r *VideoRepository) saveAnalysisVariant(ctx context.Context, id, variant string, analysis *models.KeywordAnalysis, setSummary bool) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("failed to marshal keyword analysis: %w", err)
	}

	query := `UPDATE videos
		SET keyword_analysis = jsonb_set(COALESCE(keyword_analysis, '{}'::jsonb), $2, $3)`
	if setSummary {
		query += `, summary = $4`
	}
	query += ` WHERE id = $1`

	args := []any{id, []string{variant}, data}
	if setSummary {
		args = append(args, analysis.Summary)
	}

	if _, err := r.db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to save %s analysis: %w", variant, err)
	}
	return nil
}

// SaveTextEmbeddings writes both video-level vectors. Unlike frame
// embeddings this recomputes on every invocation: re-running the embed
// stage overwrites previous vectors.
func (r *VideoRepository) SaveTextEmbeddings(ctx context.Context, id string, transcriptVec, summaryVec []float32) error {
	_, err := r.db.pool.Exec(ctx,
		`UPDATE videos SET transcript_embedding = $2, summary_embedding = $3 WHERE id = $1`,
		id, pgvector.NewVector(transcriptVec), pgvector.NewVector(summaryVec))
	if err != nil {
		return fmt.Errorf("failed to save text embeddings: %w", err)
	}
	return nil
}

func (r *VideoRepository) DeleteVideo(ctx context.Context, id string) error {
	tag, err := r.db.pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("video %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	video := &models.Video{}
	var analysisJSON []byte

	err := row.Scan(
		&video.ID,
		&video.Title,
		&video.Filename,
		&video.ContentType,
		&video.Size,
		&video.Status,
		&video.Duration,
		&video.Steps.FramesExtracted,
		&video.Steps.FramesAnalyzed,
		&video.Steps.Transcribed,
		&video.Steps.Embedded,
		&video.Transcript,
		&video.Summary,
		&analysisJSON,
		&video.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(analysisJSON) > 0 {
		set := &models.KeywordAnalysisSet{}
		if err := json.Unmarshal(analysisJSON, set); err != nil {
			return nil, fmt.Errorf("failed to unmarshal keyword analysis: %w", err)
		}
		video.KeywordAnalysis = set
	}

	return video, nil
}
