// Command process-video runs the processing pipeline synchronously for
// one uploaded video, bypassing the background runner. Useful when
// iterating on stage behavior against a local database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/clipsearch/internal/ai"
	"github.com/kdimtricp/clipsearch/internal/database"
	"github.com/kdimtricp/clipsearch/internal/models"
	"github.com/kdimtricp/clipsearch/internal/pipeline"
	"github.com/kdimtricp/clipsearch/internal/sampler"
	"github.com/kdimtricp/clipsearch/internal/storage"
)

func main() {
	var (
		videoID = flag.String("id", "", "Video ID to process")
		mode    = flag.String("mode", "full", "Pipeline mode (fast or full)")
	)
	flag.Parse()

	if *videoID == "" {
		log.Fatal("Please provide video ID with -id flag")
	}
	pipelineMode := models.PipelineMode(*mode)
	if pipelineMode != models.ModeFast && pipelineMode != models.ModeFull {
		log.Fatal("Mode must be fast or full")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	dbConfig := database.Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     5432,
		User:     getEnv("DB_USER", "clipsearch"),
		Password: getEnv("DB_PASSWORD", "clipsearch_dev"),
		Name:     getEnv("DB_NAME", "clipsearch"),
	}
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatal("Invalid DB_PORT:", err)
		}
		dbConfig.Port = port
	}

	ctx := context.Background()

	db, err := database.NewDB(ctx, dbConfig)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	videoRepo := database.NewVideoRepository(db)
	frameRepo := database.NewFrameRepository(db)
	runRepo := database.NewPipelineRunRepository(db)

	video, err := videoRepo.GetVideoByID(ctx, *videoID)
	if err != nil {
		log.Fatal("Failed to get video:", err)
	}
	fmt.Printf("Processing video: %s (%s mode)\n", video.Title, pipelineMode)

	localStorage, err := storage.NewLocalStorage(getEnv("UPLOAD_DIR", "./uploads"))
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	aiConfig := ai.Config{APIKey: os.Getenv("OPENAI_API_KEY")}
	if aiConfig.APIKey == "" {
		log.Fatal("OPENAI_API_KEY not configured")
	}

	analyzer, err := ai.NewOpenAIAnalyzer(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize analyzer:", err)
	}
	vision, err := ai.NewOpenAIVision(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize vision describer:", err)
	}

	frameSampler, err := sampler.NewFFmpegSampler(512)
	if err != nil {
		log.Fatal("Failed to initialize frame sampler:", err)
	}

	orchestrator := &pipeline.Orchestrator{
		Videos:        videoRepo,
		Frames:        frameRepo,
		Runs:          runRepo,
		Blobs:         localStorage,
		Sampler:       frameSampler,
		Transcriber:   ai.NewWhisperTranscriber(aiConfig),
		Analyzer:      analyzer,
		Vision:        vision,
		Embedder:      ai.NewOpenAIEmbedder(aiConfig),
		FrameInterval: 10,
		EmbedDelay:    time.Second,
	}

	run, err := runRepo.Enqueue(ctx, video.ID, pipelineMode)
	if err != nil {
		log.Fatal("Failed to enqueue run:", err)
	}

	claimed, err := runRepo.ClaimNext(ctx)
	if err != nil {
		log.Fatal("Failed to claim run:", err)
	}
	if claimed == nil || claimed.ID != run.ID {
		log.Fatal("Run was claimed by another worker; retry with the server stopped")
	}

	if err := orchestrator.Run(ctx, claimed); err != nil {
		log.Fatal("Pipeline failed:", err)
	}
	fmt.Println("Processing complete!")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
