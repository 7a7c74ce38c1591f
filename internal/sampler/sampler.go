// Package sampler extracts still frames from a video at a fixed time
// grid using ffmpeg.
package sampler

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type SampledFrame struct {
	Timestamp float64
	Image     []byte
}

// FrameSampler returns frames at timestamps {0, I, 2I, ...} up to and
// including the last multiple of the interval not exceeding the video's
// duration.
type FrameSampler interface {
	Sample(ctx context.Context, videoPath string, interval float64) ([]SampledFrame, float64, error)
}

type FFmpegSampler struct {
	ffmpegPath  string
	ffprobePath string
	tempDir     string
	frameSize   int
}

func NewFFmpegSampler(frameSize int) (*FFmpegSampler, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
	}

	tempDir := filepath.Join(os.TempDir(), "clipsearch-frames")
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	if frameSize <= 0 {
		frameSize = 512
	}

	return &FFmpegSampler{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		tempDir:     tempDir,
		frameSize:   frameSize,
	}, nil
}

func (s *FFmpegSampler) Sample(ctx context.Context, videoPath string, interval float64) ([]SampledFrame, float64, error) {
	if interval <= 0 {
		return nil, 0, fmt.Errorf("invalid sampling interval: %f", interval)
	}

	if _, err := os.Stat(videoPath); err != nil {
		return nil, 0, fmt.Errorf("video file not accessible: %w", err)
	}

	duration, err := s.probeDuration(ctx, videoPath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get video duration: %w", err)
	}
	if duration <= 0 {
		return nil, 0, fmt.Errorf("invalid video duration: %f", duration)
	}

	timestamps := Timestamps(duration, interval)
	log.Printf("Sampling %d frames from %s (duration %.2fs, interval %.1fs)",
		len(timestamps), filepath.Base(videoPath), duration, interval)

	frames := make([]SampledFrame, 0, len(timestamps))
	for _, timestamp := range timestamps {
		image, err := s.extractAt(ctx, videoPath, timestamp)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to extract frame at %.1fs: %w", timestamp, err)
		}
		frames = append(frames, SampledFrame{Timestamp: timestamp, Image: image})
	}

	return frames, duration, nil
}

// Timestamps returns the sampling grid {0, I, 2I, ...} with every value
// ≤ duration.
func Timestamps(duration, interval float64) []float64 {
	var timestamps []float64
	for i := 0; ; i++ {
		t := float64(i) * interval
		if t > duration {
			break
		}
		timestamps = append(timestamps, t)
	}
	return timestamps
}

func (s *FFmpegSampler) probeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath)

	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q: %w", strings.TrimSpace(string(output)), err)
	}
	return duration, nil
}

func (s *FFmpegSampler) extractAt(ctx context.Context, videoPath string, timestamp float64) ([]byte, error) {
	outputPath := filepath.Join(s.tempDir, uuid.New().String()+".jpg")
	defer os.Remove(outputPath)

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-ss", fmt.Sprintf("%.3f", timestamp),
		"-i", videoPath,
		"-frames:v", "1",
		"-vf", fmt.Sprintf("scale=%d:-1", s.frameSize),
		"-q:v", "2",
		"-y",
		outputPath)

	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg failed: %w (%s)", err, strings.TrimSpace(string(output)))
	}

	image, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted frame: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("ffmpeg produced an empty frame")
	}
	return image, nil
}
