package search

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/kdimtricp/clipsearch/internal/models"
)

type fakeIndex struct {
	mu          sync.Mutex
	frames      map[string][]FrameMatch
	videos      map[string][]VideoMatch
	err         error
	framePools  map[string]int
	videoCalled []string
}

func (f *fakeIndex) SearchFrames(ctx context.Context, channel string, vector []float32, limit int) ([]FrameMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.framePools == nil {
		f.framePools = make(map[string]int)
	}
	f.framePools[channel] = limit
	return f.frames[channel], nil
}

func (f *fakeIndex) SearchVideos(ctx context.Context, channel string, vector []float32, limit int) ([]VideoMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.videoCalled = append(f.videoCalled, channel)
	return f.videos[channel], nil
}

type fakeLoader struct {
	videos map[string]models.Video
}

func (f *fakeLoader) GetVideosByIDs(ctx context.Context, ids []string) (map[string]models.Video, error) {
	result := make(map[string]models.Video)
	for _, id := range ids {
		if v, ok := f.videos[id]; ok {
			result[id] = v
		}
	}
	return result, nil
}

type fakeEmbedder struct {
	textCalls    int
	captionCalls int
	err          error
}

func (f *fakeEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	f.textCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func (f *fakeEmbedder) EmbedCaption(ctx context.Context, text string) ([]float32, error) {
	f.captionCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0, 1}, nil
}

func readyVideo(id string) models.Video {
	return models.Video{ID: id, Title: "Video " + id, Status: models.StatusReady}
}

func TestSearch_FusionSumsWeightedContributions(t *testing.T) {
	index := &fakeIndex{
		frames: map[string][]FrameMatch{
			ChannelImage: {
				{FrameID: "f1", VideoID: "v1", Timestamp: 0, Score: 0.9},
			},
			ChannelKeywords: {
				{FrameID: "f1", VideoID: "v1", Timestamp: 0, Score: 0.8},
			},
		},
		videos: map[string][]VideoMatch{
			ChannelSummary: {
				{VideoID: "v2", Score: 0.95},
			},
		},
	}
	loader := &fakeLoader{videos: map[string]models.Video{
		"v1": readyVideo("v1"),
		"v2": readyVideo("v2"),
	}}

	engine := &Engine{Index: index, Videos: loader, Embedder: &fakeEmbedder{}}
	results, err := engine.Search(context.Background(), "dog in a park", Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	// v1 accumulates 0.9*0.35 + 0.8*0.30 = 0.555 across two channels,
	// beating v2's single stronger hit at 0.95*0.15 = 0.1425.
	if results[0].Video.ID != "v1" {
		t.Errorf("Expected v1 ranked first, got %s", results[0].Video.ID)
	}
	if math.Abs(results[0].Score-0.555) > 1e-9 {
		t.Errorf("Expected v1 score 0.555, got %v", results[0].Score)
	}
	if math.Abs(results[1].Score-0.1425) > 1e-9 {
		t.Errorf("Expected v2 score 0.1425, got %v", results[1].Score)
	}

	// Frame hits carry into clips, video-level hits do not.
	if len(results[0].Clips) != 1 {
		t.Errorf("Expected 1 clip for v1, got %d", len(results[0].Clips))
	}
	if len(results[1].Clips) != 0 {
		t.Errorf("Expected no clips for v2, got %d", len(results[1].Clips))
	}
}

func TestSearch_VolumeOutranksSingleStrongMatch(t *testing.T) {
	many := make([]FrameMatch, 0, 5)
	for i := 0; i < 5; i++ {
		many = append(many, FrameMatch{
			FrameID: "f", VideoID: "many", Timestamp: float64(i * 10), Score: 0.5,
		})
	}
	index := &fakeIndex{
		frames: map[string][]FrameMatch{
			ChannelImage: append(many, FrameMatch{
				FrameID: "s", VideoID: "strong", Timestamp: 0, Score: 0.99,
			}),
		},
	}
	loader := &fakeLoader{videos: map[string]models.Video{
		"many":   readyVideo("many"),
		"strong": readyVideo("strong"),
	}}

	engine := &Engine{Index: index, Videos: loader, Embedder: &fakeEmbedder{}}
	results, err := engine.Search(context.Background(), "query", Options{
		Weights: &Weights{Image: 0.35},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if len(results) != 2 || results[0].Video.ID != "many" {
		t.Fatalf("Expected accumulated matches to outrank one strong match, got %+v", results)
	}
}

func TestSearch_ZeroWeightsReturnEmpty(t *testing.T) {
	embedder := &fakeEmbedder{}
	engine := &Engine{Index: &fakeIndex{}, Videos: &fakeLoader{}, Embedder: embedder}

	results, err := engine.Search(context.Background(), "query", Options{
		Weights: &Weights{},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected empty results with all channels disabled, got %d", len(results))
	}
	if embedder.textCalls != 0 || embedder.captionCalls != 0 {
		t.Error("Expected no embedding calls with all channels disabled")
	}
}

func TestSearch_ChannelSelection(t *testing.T) {
	index := &fakeIndex{}
	embedder := &fakeEmbedder{}
	engine := &Engine{Index: index, Videos: &fakeLoader{}, Embedder: embedder}

	_, err := engine.Search(context.Background(), "query", Options{
		Weights: &Weights{Transcript: 0.5},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if embedder.captionCalls != 0 {
		t.Error("Expected no caption embedding when image channel is disabled")
	}
	if embedder.textCalls != 1 {
		t.Errorf("Expected 1 text embedding call, got %d", embedder.textCalls)
	}
	if len(index.videoCalled) != 1 || index.videoCalled[0] != ChannelTranscript {
		t.Errorf("Expected only transcript channel to run, got %v", index.videoCalled)
	}
	if len(index.framePools) != 0 {
		t.Errorf("Expected no frame channels to run, got %v", index.framePools)
	}
}

func TestSearch_FramePoolScalesWithLimit(t *testing.T) {
	index := &fakeIndex{}
	engine := &Engine{Index: index, Videos: &fakeLoader{}, Embedder: &fakeEmbedder{}}

	_, err := engine.Search(context.Background(), "query", Options{
		Limit:   7,
		Weights: &Weights{Image: 0.35, Keywords: 0.30},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if index.framePools[ChannelImage] != 14 || index.framePools[ChannelKeywords] != 14 {
		t.Errorf("Expected frame pools of 2x limit, got %v", index.framePools)
	}
}

func TestSearch_EmbedFailureFailsCall(t *testing.T) {
	engine := &Engine{
		Index:    &fakeIndex{},
		Videos:   &fakeLoader{},
		Embedder: &fakeEmbedder{err: errors.New("rate limited")},
	}

	if _, err := engine.Search(context.Background(), "query", Options{}); err == nil {
		t.Fatal("Expected error when query embedding fails")
	}
}

func TestSearch_ChannelFailureFailsCall(t *testing.T) {
	engine := &Engine{
		Index:    &fakeIndex{err: errors.New("connection refused")},
		Videos:   &fakeLoader{},
		Embedder: &fakeEmbedder{},
	}

	if _, err := engine.Search(context.Background(), "query", Options{}); err == nil {
		t.Fatal("Expected error when a channel lookup fails")
	}
}

func TestSearch_TieBreaksByVideoID(t *testing.T) {
	index := &fakeIndex{
		frames: map[string][]FrameMatch{
			ChannelImage: {
				{FrameID: "fb", VideoID: "b", Timestamp: 0, Score: 0.5},
				{FrameID: "fa", VideoID: "a", Timestamp: 0, Score: 0.5},
			},
		},
	}
	loader := &fakeLoader{videos: map[string]models.Video{
		"a": readyVideo("a"),
		"b": readyVideo("b"),
	}}

	engine := &Engine{Index: index, Videos: loader, Embedder: &fakeEmbedder{}}
	results, err := engine.Search(context.Background(), "query", Options{
		Weights: &Weights{Image: 0.35},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 || results[0].Video.ID != "a" {
		t.Errorf("Expected deterministic id tie-break, got %+v", results)
	}
}
