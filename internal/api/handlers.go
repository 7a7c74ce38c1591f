package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kdimtricp/clipsearch/internal/database"
	"github.com/kdimtricp/clipsearch/internal/models"
	"github.com/kdimtricp/clipsearch/internal/search"
	"github.com/kdimtricp/clipsearch/internal/storage"
)

type App struct {
	Storage       storage.Storage
	VideoRepo     *database.VideoRepository
	FrameRepo     *database.FrameRepository
	RunRepo       *database.PipelineRunRepository
	Engine        *search.Engine
	MaxUploadSize int64
}

func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// UploadHandler accepts a multipart video upload and enqueues a
// processing run for it. The video is visible immediately with status
// "uploading"; the runner picks up the pipeline asynchronously.
func (app *App) UploadHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, app.MaxUploadSize)

	if err := r.ParseMultipartForm(app.MaxUploadSize); err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing video file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "video/") && contentType != "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".mp4" {
			writeError(w, http.StatusBadRequest, "Only MP4 video files are allowed")
			return
		}
		contentType = "video/mp4"
	}

	title := r.FormValue("title")
	if title == "" {
		title = strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename))
	}

	mode, err := parseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	filename, err := app.Storage.SaveFile(file, storage.FileInfo{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        header.Size,
	})
	if err != nil {
		log.Printf("Failed to save upload: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save file")
		return
	}

	video := models.NewVideo(title, filename, contentType, header.Size)
	if err := app.VideoRepo.InsertVideo(r.Context(), video); err != nil {
		app.Storage.DeleteFile(filename)
		log.Printf("Failed to insert video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to save video information")
		return
	}

	run, err := app.RunRepo.Enqueue(r.Context(), video.ID, mode)
	if err != nil {
		log.Printf("Failed to enqueue pipeline run for video %s: %v", video.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to schedule processing")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"video": video,
		"run":   run,
	})
}

func (app *App) ListVideosHandler(w http.ResponseWriter, r *http.Request) {
	videos, err := app.VideoRepo.ListVideos(r.Context())
	if err != nil {
		log.Printf("Failed to list videos: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"videos": videos})
}

func (app *App) GetVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetVideoByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("Failed to get video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}
	writeJSON(w, http.StatusOK, video)
}

func (app *App) ListFramesHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if _, err := app.VideoRepo.GetVideoByID(r.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("Failed to get video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}

	frames, err := app.FrameRepo.GetByVideoID(r.Context(), videoID)
	if err != nil {
		log.Printf("Failed to list frames: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list frames")
		return
	}
	if frames == nil {
		frames = []models.Frame{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"frames": frames})
}

func (app *App) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if _, err := app.VideoRepo.GetVideoByID(r.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("Failed to get video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}

	runs, err := app.RunRepo.ListByVideoID(r.Context(), videoID)
	if err != nil {
		log.Printf("Failed to list runs: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// ProcessHandler enqueues a pipeline run for an already uploaded video.
// At most one run per video may be pending or running; a second request
// while one is active gets 409.
func (app *App) ProcessHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	if _, err := app.VideoRepo.GetVideoByID(r.Context(), videoID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("Failed to get video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}

	mode, err := parseMode(r.FormValue("mode"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	run, err := app.RunRepo.Enqueue(r.Context(), videoID, mode)
	if err != nil {
		if errors.Is(err, database.ErrRunActive) {
			writeError(w, http.StatusConflict, "A pipeline run is already active for this video")
			return
		}
		log.Printf("Failed to enqueue pipeline run: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to schedule processing")
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

// DeleteVideoHandler removes the video row, its frames, and every stored
// blob. Frame rows go first so their image paths can be collected before
// the cascade would silently drop them.
func (app *App) DeleteVideoHandler(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "id")
	video, err := app.VideoRepo.GetVideoByID(r.Context(), videoID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Video not found")
			return
		}
		log.Printf("Failed to get video: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to get video")
		return
	}

	imagePaths, err := app.FrameRepo.DeleteByVideoID(r.Context(), videoID)
	if err != nil {
		log.Printf("Failed to delete frames for video %s: %v", videoID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete video")
		return
	}

	if err := app.VideoRepo.DeleteVideo(r.Context(), videoID); err != nil {
		log.Printf("Failed to delete video %s: %v", videoID, err)
		writeError(w, http.StatusInternalServerError, "Failed to delete video")
		return
	}

	for _, path := range imagePaths {
		if err := app.Storage.DeleteFile(path); err != nil {
			log.Printf("Failed to delete frame image %s: %v", path, err)
		}
	}
	if err := app.Storage.DeleteFile(video.Filename); err != nil {
		log.Printf("Failed to delete video file %s: %v", video.Filename, err)
	}

	w.WriteHeader(http.StatusNoContent)
}

type searchResult struct {
	search.VideoResult
	StreamURL string `json:"stream_url"`
}

// SearchHandler answers GET /api/search. Channel weights default to the
// built-in mix and can be overridden per request; a zero weight turns
// its channel off.
func (app *App) SearchHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "Query parameter q is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	weights, err := parseWeights(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := app.Engine.Search(r.Context(), query, search.Options{
		Limit:   limit,
		Weights: weights,
	})
	if err != nil {
		log.Printf("Search failed for %q: %v", query, err)
		writeError(w, http.StatusInternalServerError, "Search failed")
		return
	}

	payload := make([]searchResult, 0, len(results))
	for _, res := range results {
		payload = append(payload, searchResult{
			VideoResult: res,
			StreamURL:   "/api/videos/" + res.Video.ID + "/stream",
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"results": payload,
	})
}

func (app *App) StreamVideoHandler(w http.ResponseWriter, r *http.Request) {
	video, err := app.VideoRepo.GetVideoByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	file, err := app.Storage.OpenFile(video.Filename)
	if err != nil {
		http.Error(w, "Video file not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.(interface{ Stat() (os.FileInfo, error) }).Stat()
	if err != nil {
		http.Error(w, "Error accessing video file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", video.ContentType)

	// ServeContent handles Range requests, so seeking in the player works.
	http.ServeContent(w, r, video.Filename, stat.ModTime(), file)
}

func parseMode(raw string) (models.PipelineMode, error) {
	switch models.PipelineMode(raw) {
	case "":
		return models.ModeFull, nil
	case models.ModeFast:
		return models.ModeFast, nil
	case models.ModeFull:
		return models.ModeFull, nil
	default:
		return "", errors.New("mode must be fast or full")
	}
}

var weightParams = []struct {
	name  string
	field func(*search.Weights) *float64
}{
	{"image_weight", func(w *search.Weights) *float64 { return &w.Image }},
	{"keywords_weight", func(w *search.Weights) *float64 { return &w.Keywords }},
	{"transcript_weight", func(w *search.Weights) *float64 { return &w.Transcript }},
	{"summary_weight", func(w *search.Weights) *float64 { return &w.Summary }},
}

// parseWeights returns nil when no weight parameter is present, letting
// the engine fall back to its defaults. Overrides start from the default
// mix, so setting one weight leaves the other channels untouched.
func parseWeights(values url.Values) (*search.Weights, error) {
	weights := search.DefaultWeights()
	overridden := false

	for _, p := range weightParams {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return nil, errors.New("invalid " + p.name)
		}
		*p.field(&weights) = v
		overridden = true
	}

	if !overridden {
		return nil, nil
	}
	return &weights, nil
}
