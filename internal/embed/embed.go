// Package embed turns message text into embedding vectors and persists them.
//
// The default provider is OpenAI text-embedding-3-small (1536 dimensions),
// reached through the official API client with exponential backoff on
// transient failures.
package embed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the embedding model used unless overridden.
	DefaultModel = string(openai.SmallEmbedding3)
	// DefaultDimensions is the output width of DefaultModel.
	DefaultDimensions = 1536

	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
	requestTimeout    = 60 * time.Second
)

// Embedder generates embedding vectors from text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API with
// retry logic.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	maxRetries int
	retryDelay time.Duration
}

// NewOpenAIEmbedder creates an embedder for the given API key and model.
// An empty model selects DefaultModel.
func NewOpenAIEmbedder(apiKey, model string) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set OPENAI_API_KEY)")
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      openai.EmbeddingModel(model),
		dimensions: DefaultDimensions,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// Model returns the model name used for API calls and stored alongside
// vectors.
func (e *OpenAIEmbedder) Model() string { return string(e.model) }

// Dimensions returns the expected vector width.
func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

// EmbedBatch embeds a batch of texts in one API call, retrying transient
// failures with exponential backoff. Result rows line up 1:1 with inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff(e.retryDelay, attempt)):
			}
		}

		reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
		resp, err := e.client.CreateEmbeddings(reqCtx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: e.model,
		})
		cancel()

		if err != nil {
			lastErr = fmt.Errorf("attempt %d: %w", attempt+1, err)
			continue
		}
		if len(resp.Data) != len(texts) {
			lastErr = fmt.Errorf("attempt %d: expected %d embeddings, got %d", attempt+1, len(texts), len(resp.Data))
			continue
		}

		vectors := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
			}
			vectors[d.Index] = d.Embedding
		}
		if len(vectors[0]) > 0 {
			e.dimensions = len(vectors[0])
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("embedding failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

// backoff returns exponential backoff with jitter. Base delay doubles each
// attempt, capped at 30 seconds, with random jitter of up to 25% either way.
func backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := baseDelay * time.Duration(1<<uint(attempt))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	if d < 2 {
		return d
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2)) - d/4
	return d + jitter
}
