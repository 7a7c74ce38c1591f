// Package search answers free-text queries with ranked videos and the
// time ranges that match, fusing four independent vector-similarity
// channels over previously computed embeddings.
package search

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kdimtricp/clipsearch/internal/ai"
	"github.com/kdimtricp/clipsearch/internal/models"
)

const (
	ChannelImage      = "image"
	ChannelKeywords   = "keywords"
	ChannelTranscript = "transcript"
	ChannelSummary    = "summary"
)

const (
	// DefaultLimit caps the number of videos returned.
	DefaultLimit = 20
	// DefaultMaxGap is the largest silence, in seconds, bridged when
	// merging frame matches into one clip.
	DefaultMaxGap = 5.0
	// videoChannelPool is the fixed candidate pool for the video-level
	// channels (transcript, summary).
	videoChannelPool = 10
)

// Weights are raw multipliers per channel. They are not required to sum
// to 1; a zero weight disables its channel entirely.
type Weights struct {
	Image      float64 `json:"image"`
	Keywords   float64 `json:"keywords"`
	Transcript float64 `json:"transcript"`
	Summary    float64 `json:"summary"`
}

func DefaultWeights() Weights {
	return Weights{Image: 0.35, Keywords: 0.30, Transcript: 0.20, Summary: 0.15}
}

func (w Weights) textEnabled() bool {
	return w.Keywords > 0 || w.Transcript > 0 || w.Summary > 0
}

func (w Weights) anyEnabled() bool {
	return w.Image > 0 || w.textEnabled()
}

// FrameMatch is one frame-level nearest-neighbor hit with its raw
// cosine similarity.
type FrameMatch struct {
	FrameID     string
	VideoID     string
	Timestamp   float64
	Description string
	Score       float64
}

// VideoMatch is one video-level hit (transcript or summary channel).
type VideoMatch struct {
	VideoID string
	Score   float64
}

// Index is the persisted-vector lookup behind the four channels.
type Index interface {
	SearchFrames(ctx context.Context, channel string, vector []float32, limit int) ([]FrameMatch, error)
	SearchVideos(ctx context.Context, channel string, vector []float32, limit int) ([]VideoMatch, error)
}

// VideoLoader attaches metadata to surfaced videos.
type VideoLoader interface {
	GetVideosByIDs(ctx context.Context, ids []string) (map[string]models.Video, error)
}

type Options struct {
	Limit   int
	Weights *Weights
}

// VideoResult is one ranked video with its matching time ranges.
type VideoResult struct {
	Video models.Video `json:"video"`
	Score float64      `json:"score"`
	Clips []Clip       `json:"clips"`
}

type Engine struct {
	Index    Index
	Videos   VideoLoader
	Embedder ai.Embedder
	// MaxGap overrides DefaultMaxGap when positive.
	MaxGap float64
}

// Search runs every enabled channel, fuses per-video scores and
// clusters frame matches into clips. A query-embedding failure fails the
// whole call; an empty channel simply contributes nothing.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]VideoResult, error) {
	weights := DefaultWeights()
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	if !weights.anyEnabled() {
		return []VideoResult{}, nil
	}

	var textVec, captionVec []float32
	var err error
	if weights.textEnabled() {
		textVec, err = e.Embedder.EmbedText(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
	}
	if weights.Image > 0 {
		captionVec, err = e.Embedder.EmbedCaption(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
	}

	matches, err := e.runChannels(ctx, weights, textVec, captionVec, limit)
	if err != nil {
		return nil, err
	}

	fused := fuseMatches(matches)
	ranked := rankVideos(fused)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	videos, err := e.Videos.GetVideosByIDs(ctx, ranked)
	if err != nil {
		return nil, fmt.Errorf("failed to load result videos: %w", err)
	}

	maxGap := e.MaxGap
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}

	results := make([]VideoResult, 0, len(ranked))
	for _, videoID := range ranked {
		video, ok := videos[videoID]
		if !ok {
			continue
		}
		agg := fused[videoID]
		results = append(results, VideoResult{
			Video: video,
			Score: agg.score,
			Clips: Cluster(agg.frames, maxGap),
		})
	}
	return results, nil
}

// match is one weighted channel hit; frame is nil for video-level
// channels.
type match struct {
	videoID  string
	channel  string
	weighted float64
	frame    *FrameMatch
}

func (e *Engine) runChannels(ctx context.Context, weights Weights, textVec, captionVec []float32, limit int) ([]match, error) {
	type channelQuery struct {
		name       string
		frameLevel bool
		vector     []float32
		weight     float64
		pool       int
	}

	var queries []channelQuery
	if weights.Image > 0 {
		queries = append(queries, channelQuery{ChannelImage, true, captionVec, weights.Image, 2 * limit})
	}
	if weights.Keywords > 0 {
		queries = append(queries, channelQuery{ChannelKeywords, true, textVec, weights.Keywords, 2 * limit})
	}
	if weights.Transcript > 0 {
		queries = append(queries, channelQuery{ChannelTranscript, false, textVec, weights.Transcript, videoChannelPool})
	}
	if weights.Summary > 0 {
		queries = append(queries, channelQuery{ChannelSummary, false, textVec, weights.Summary, videoChannelPool})
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		matches  []match
		firstErr error
	)

	for _, q := range queries {
		wg.Add(1)
		go func(q channelQuery) {
			defer wg.Done()

			var channelMatches []match
			var err error

			if q.frameLevel {
				var hits []FrameMatch
				hits, err = e.Index.SearchFrames(ctx, q.name, q.vector, q.pool)
				for i := range hits {
					hit := hits[i]
					channelMatches = append(channelMatches, match{
						videoID:  hit.VideoID,
						channel:  q.name,
						weighted: hit.Score * q.weight,
						frame:    &hit,
					})
				}
			} else {
				var hits []VideoMatch
				hits, err = e.Index.SearchVideos(ctx, q.name, q.vector, q.pool)
				for _, hit := range hits {
					channelMatches = append(channelMatches, match{
						videoID:  hit.VideoID,
						channel:  q.name,
						weighted: hit.Score * q.weight,
					})
				}
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("channel %s: %w", q.name, err)
				}
				return
			}
			matches = append(matches, channelMatches...)
		}(q)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return matches, nil
}

type videoAgg struct {
	score  float64
	frames []ScoredFrame
}

// fuseMatches groups matches by owning video. The aggregate is the
// unweighted sum of weighted contributions, so many moderate frame
// matches can outscore one strong match. That volume-over-relevance
// behavior is intentional and pinned by tests.
func fuseMatches(matches []match) map[string]*videoAgg {
	fused := make(map[string]*videoAgg)
	for _, m := range matches {
		agg, ok := fused[m.videoID]
		if !ok {
			agg = &videoAgg{}
			fused[m.videoID] = agg
		}
		agg.score += m.weighted
		if m.frame != nil {
			agg.frames = append(agg.frames, ScoredFrame{
				FrameID:   m.frame.FrameID,
				Timestamp: m.frame.Timestamp,
				Preview:   m.frame.Description,
				Channel:   m.channel,
				Weighted:  m.weighted,
			})
		}
	}
	return fused
}

func rankVideos(fused map[string]*videoAgg) []string {
	ids := make([]string, 0, len(fused))
	for id := range fused {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := fused[ids[i]].score, fused[ids[j]].score
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	return ids
}
