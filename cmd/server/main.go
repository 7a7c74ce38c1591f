package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/kdimtricp/clipsearch/internal/ai"
	"github.com/kdimtricp/clipsearch/internal/api"
	"github.com/kdimtricp/clipsearch/internal/database"
	"github.com/kdimtricp/clipsearch/internal/pipeline"
	"github.com/kdimtricp/clipsearch/internal/sampler"
	"github.com/kdimtricp/clipsearch/internal/search"
	"github.com/kdimtricp/clipsearch/internal/storage"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	port := envString("PORT", "8080")
	uploadDir := envString("UPLOAD_DIR", "./uploads")
	migrationsPath := envString("MIGRATIONS_PATH", "./migrations")

	maxUploadSize, err := strconv.ParseInt(envString("MAX_UPLOAD_SIZE", "104857600"), 10, 64)
	if err != nil {
		log.Fatal("Invalid MAX_UPLOAD_SIZE:", err)
	}

	dbConfig := database.Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     envString("DB_HOST", "localhost"),
		User:     envString("DB_USER", "clipsearch"),
		Password: envString("DB_PASSWORD", "clipsearch_dev"),
		Name:     envString("DB_NAME", "clipsearch"),
	}
	dbConfig.Port, err = strconv.Atoi(envString("DB_PORT", "5432"))
	if err != nil {
		log.Fatal("Invalid DB_PORT:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, dbConfig)
	if err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer db.Close()

	log.Printf("Running database migrations from %s", migrationsPath)
	if err := db.RunMigrations(ctx, migrationsPath); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	localStorage, err := storage.NewLocalStorage(uploadDir)
	if err != nil {
		log.Fatal("Failed to initialize storage:", err)
	}

	videoRepo := database.NewVideoRepository(db)
	frameRepo := database.NewFrameRepository(db)
	runRepo := database.NewPipelineRunRepository(db)

	aiConfig := ai.Config{
		APIKey:  os.Getenv("OPENAI_API_KEY"),
		BaseURL: os.Getenv("OPENAI_BASE_URL"),
	}
	if aiConfig.APIKey == "" {
		log.Printf("OPENAI_API_KEY not set; processing stages will fail until it is configured")
	}

	analyzer, err := ai.NewOpenAIAnalyzer(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize analyzer:", err)
	}
	vision, err := ai.NewOpenAIVision(aiConfig)
	if err != nil {
		log.Fatal("Failed to initialize vision describer:", err)
	}
	embedder := ai.NewOpenAIEmbedder(aiConfig)
	transcriber := ai.NewWhisperTranscriber(aiConfig)

	frameSize, err := strconv.Atoi(envString("FRAME_SIZE", "512"))
	if err != nil {
		log.Fatal("Invalid FRAME_SIZE:", err)
	}
	frameSampler, err := sampler.NewFFmpegSampler(frameSize)
	if err != nil {
		log.Fatal("Failed to initialize frame sampler:", err)
	}

	frameInterval, err := strconv.ParseFloat(envString("FRAME_INTERVAL", "10"), 64)
	if err != nil {
		log.Fatal("Invalid FRAME_INTERVAL:", err)
	}
	embedDelay, err := time.ParseDuration(envString("EMBED_DELAY", "1s"))
	if err != nil {
		log.Fatal("Invalid EMBED_DELAY:", err)
	}

	orchestrator := &pipeline.Orchestrator{
		Videos:        videoRepo,
		Frames:        frameRepo,
		Runs:          runRepo,
		Blobs:         localStorage,
		Sampler:       frameSampler,
		Transcriber:   transcriber,
		Analyzer:      analyzer,
		Vision:        vision,
		Embedder:      embedder,
		FrameInterval: frameInterval,
		EmbedDelay:    embedDelay,
	}

	workers, err := strconv.Atoi(envString("WORKERS", "2"))
	if err != nil {
		log.Fatal("Invalid WORKERS:", err)
	}
	pollInterval, err := time.ParseDuration(envString("POLL_INTERVAL", "2s"))
	if err != nil {
		log.Fatal("Invalid POLL_INTERVAL:", err)
	}

	runner := &pipeline.Runner{
		Claims:       runRepo,
		Orchestrator: orchestrator,
		Workers:      workers,
		PollInterval: pollInterval,
	}
	runner.Start(ctx)

	staleAfter, err := time.ParseDuration(envString("STALE_AFTER", "5m"))
	if err != nil {
		log.Fatal("Invalid STALE_AFTER:", err)
	}

	// A dead worker stops heartbeating its run; this sweep returns such
	// runs to pending. Live runs keep refreshing their progress timestamp
	// however long their stages take, so they are never swept.
	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 1m", func() {
		requeued, err := runRepo.RequeueStale(ctx, time.Now().Add(-staleAfter))
		if err != nil {
			log.Printf("Failed to requeue stale runs: %v", err)
			return
		}
		if requeued > 0 {
			log.Printf("Requeued %d stale pipeline run(s)", requeued)
		}
	}); err != nil {
		log.Fatal("Failed to schedule stale-run sweep:", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	engine := &search.Engine{
		Index:    search.NewPgIndex(db),
		Videos:   videoRepo,
		Embedder: embedder,
	}

	app := &api.App{
		Storage:       localStorage,
		VideoRepo:     videoRepo,
		FrameRepo:     frameRepo,
		RunRepo:       runRepo,
		Engine:        engine,
		MaxUploadSize: maxUploadSize,
	}

	server := &http.Server{
		Addr:    ":" + port,
		Handler: api.NewRouter(app),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("Server shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", port)
	log.Printf("Upload directory: %s", uploadDir)
	log.Printf("Database connection: %s@%s:%d/%s", dbConfig.User, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
