package models

import "github.com/google/uuid"

// Frame is exclusively owned by its video. Timestamps are multiples of
// the sampling interval starting at 0 and non-decreasing by ordinal.
type Frame struct {
	ID          string   `json:"id"`
	VideoID     string   `json:"video_id"`
	Ordinal     int      `json:"ordinal"`
	Timestamp   float64  `json:"timestamp"`
	ImagePath   string   `json:"image_path"`
	Description *string  `json:"description,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

func NewFrame(videoID string, ordinal int, timestamp float64, imagePath string) Frame {
	return Frame{
		ID:        uuid.New().String(),
		VideoID:   videoID,
		Ordinal:   ordinal,
		Timestamp: timestamp,
		ImagePath: imagePath,
	}
}
