package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

type Config struct {
	APIKey  string
	BaseURL string

	ChatModel           string
	TranscribeModel     string
	TextEmbeddingModel  string
	ImageEmbeddingModel string

	// MaxRetries bounds 429 retries on the embedding provider. This is a
	// throttling accommodation, not a general retry policy: no other
	// collaborator call is retried.
	MaxRetries     int
	RetryBaseDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChatModel == "" {
		c.ChatModel = openai.GPT4oMini
	}
	if c.TranscribeModel == "" {
		c.TranscribeModel = openai.Whisper1
	}
	if c.TextEmbeddingModel == "" {
		c.TextEmbeddingModel = string(openai.SmallEmbedding3)
	}
	if c.ImageEmbeddingModel == "" {
		c.ImageEmbeddingModel = string(openai.LargeEmbedding3)
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 2 * time.Second
	}
	return c
}

func newClient(cfg Config) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// decodeStrictObject parses raw as a JSON object carrying exactly the
// required keys and unmarshals it into out. Fenced, malformed or
// key-mismatched output is a ParseError, never silently coerced.
func decodeStrictObject(op, raw string, required []string, out any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return &ParseError{Op: op, Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}

	for _, key := range required {
		if _, ok := fields[key]; !ok {
			return &ParseError{Op: op, Reason: fmt.Sprintf("missing key %q", key)}
		}
	}
	if len(fields) != len(required) {
		extras := make([]string, 0, len(fields))
		for key := range fields {
			if !containsKey(required, key) {
				extras = append(extras, key)
			}
		}
		sort.Strings(extras)
		return &ParseError{Op: op, Reason: fmt.Sprintf("unexpected keys: %s", strings.Join(extras, ", "))}
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &ParseError{Op: op, Reason: err.Error()}
	}
	return nil
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// retryRateLimited runs fn, retrying up to maxRetries times when the
// provider answers 429, backing off between attempts.
func retryRateLimited(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || attempt >= maxRetries || !isRateLimited(err) {
			return err
		}

		delay := baseDelay << attempt
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429
}

func chatContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
