// Command check-pipeline reports processing progress: per-status video
// counts, frame analysis coverage, and the most recent pipeline runs.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/kdimtricp/clipsearch/internal/database"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	config := database.Config{
		URL:      os.Getenv("DATABASE_URL"),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     5432,
		User:     getEnv("DB_USER", "clipsearch"),
		Password: getEnv("DB_PASSWORD", "clipsearch_dev"),
		Name:     getEnv("DB_NAME", "clipsearch"),
	}

	ctx := context.Background()

	db, err := database.NewDB(ctx, config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	fmt.Println("Pipeline Status")
	fmt.Println("===============")

	if os.Getenv("OPENAI_API_KEY") == "" {
		fmt.Println("WARNING: OPENAI_API_KEY not configured; processing will fail")
		fmt.Println()
	}

	rows, err := db.Pool().Query(ctx,
		`SELECT status, COUNT(*) FROM videos GROUP BY status ORDER BY status`)
	if err != nil {
		log.Fatal("Failed to count videos:", err)
	}
	fmt.Println("Videos by status:")
	total := 0
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			log.Fatal("Failed to scan video count:", err)
		}
		fmt.Printf("  %-12s %d\n", status, count)
		total += count
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		log.Fatal("Failed to read video counts:", err)
	}
	fmt.Printf("  %-12s %d\n\n", "total", total)

	var frames, analyzed int
	err = db.Pool().QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE image_embedding IS NOT NULL AND keywords_embedding IS NOT NULL)
		FROM frames`).Scan(&frames, &analyzed)
	if err != nil {
		log.Fatal("Failed to count frames:", err)
	}
	fmt.Printf("Frames: %d extracted, %d analyzed\n\n", frames, analyzed)

	runRows, err := db.Pool().Query(ctx, `
		SELECT r.id, v.title, r.mode, r.status, COALESCE(r.error, '')
		FROM pipeline_runs r
		JOIN videos v ON v.id = r.video_id
		ORDER BY r.created_at DESC
		LIMIT 5`)
	if err != nil {
		log.Fatal("Failed to query runs:", err)
	}
	defer runRows.Close()

	fmt.Println("Recent pipeline runs:")
	count := 0
	for runRows.Next() {
		var id, title, mode, status, errMsg string
		if err := runRows.Scan(&id, &title, &mode, &status, &errMsg); err != nil {
			log.Fatal("Failed to scan run:", err)
		}
		count++
		fmt.Printf("  %s  %-10s %-6s %s\n", id[:8], status, mode, title)
		if errMsg != "" {
			fmt.Printf("    error: %s\n", errMsg)
		}
	}
	if err := runRows.Err(); err != nil {
		log.Fatal("Failed to read runs:", err)
	}
	if count == 0 {
		fmt.Println("  none yet; upload a video to start")
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
