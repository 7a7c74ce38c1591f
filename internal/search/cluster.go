package search

import "sort"

// ScoredFrame is one frame-level match entering temporal clustering.
type ScoredFrame struct {
	FrameID   string
	Timestamp float64
	Preview   string
	Channel   string
	Weighted  float64
}

// Clip is a merged, contiguous time range of nearby frame matches.
type Clip struct {
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence float64  `json:"confidence"`
	Preview    string   `json:"preview,omitempty"`
	FrameID    string   `json:"frame_id"`
	Channels   []string `json:"channels"`
}

// Cluster walks the video's frame matches in timestamp order, extending
// the current clip while the gap from its end to the next match is at
// most maxGap and closing it otherwise. Confidence is the arithmetic
// mean of the members' weighted scores; the preview comes from the first
// member; the channel set is the union of contributing channels.
func Cluster(frames []ScoredFrame, maxGap float64) []Clip {
	if len(frames) == 0 {
		return nil
	}

	sorted := make([]ScoredFrame, len(frames))
	copy(sorted, frames)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	var clips []Clip
	current := newClipBuilder(sorted[0])
	for _, frame := range sorted[1:] {
		if frame.Timestamp-current.end <= maxGap {
			current.add(frame)
			continue
		}
		clips = append(clips, current.build())
		current = newClipBuilder(frame)
	}
	clips = append(clips, current.build())
	return clips
}

type clipBuilder struct {
	start, end float64
	sum        float64
	count      int
	preview    string
	frameID    string
	channels   map[string]bool
}

func newClipBuilder(first ScoredFrame) *clipBuilder {
	b := &clipBuilder{
		start:    first.Timestamp,
		end:      first.Timestamp,
		preview:  first.Preview,
		frameID:  first.FrameID,
		channels: make(map[string]bool),
	}
	b.sum = first.Weighted
	b.count = 1
	b.channels[first.Channel] = true
	return b
}

func (b *clipBuilder) add(frame ScoredFrame) {
	if frame.Timestamp > b.end {
		b.end = frame.Timestamp
	}
	b.sum += frame.Weighted
	b.count++
	b.channels[frame.Channel] = true
}

func (b *clipBuilder) build() Clip {
	channels := make([]string, 0, len(b.channels))
	for channel := range b.channels {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	return Clip{
		Start:      b.start,
		End:        b.end,
		Confidence: b.sum / float64(b.count),
		Preview:    b.preview,
		FrameID:    b.frameID,
		Channels:   channels,
	}
}
