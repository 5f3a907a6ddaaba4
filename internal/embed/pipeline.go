package embed

import (
	"context"
	"fmt"

	"github.com/ul0gic/discredit/internal/store"
)

// DefaultBatchSize is how many texts go into one embeddings API call.
const DefaultBatchSize = 100

// MessageSource lists messages that still need embeddings.
type MessageSource interface {
	MessagesWithoutEmbeddings(ctx context.Context, minLength int) ([]*store.Message, error)
}

// VectorSink persists generated embeddings.
type VectorSink interface {
	AddEmbedding(ctx context.Context, messageID string, vector []float32, model string) error
}

// Pipeline embeds every pending message in batches and persists the vectors.
type Pipeline struct {
	Source    MessageSource
	Sink      VectorSink
	Embedder  Embedder
	BatchSize int

	// Progress, when set, is called after each persisted batch.
	Progress func(done, total int)
}

// Plan describes what a pipeline run would do, for dry-run output.
type Plan struct {
	Pending         int
	Skipped         int
	EstimatedTokens int
	EstimatedUSD    float64
}

// Plan inspects pending messages without calling the API.
func (p *Pipeline) Plan(ctx context.Context) (*Plan, error) {
	pending, err := p.Source.MessagesWithoutEmbeddings(ctx, MinContentLength)
	if err != nil {
		return nil, fmt.Errorf("listing pending messages: %w", err)
	}

	plan := &Plan{}
	texts := make([]string, 0, len(pending))
	for _, m := range pending {
		if !Embeddable(m.Content) {
			plan.Skipped++
			continue
		}
		texts = append(texts, m.Content)
	}
	plan.Pending = len(texts)
	plan.EstimatedTokens, plan.EstimatedUSD = EstimateCost(texts)
	return plan, nil
}

// Run embeds all pending messages. Each batch is persisted before the next
// API call, so an interrupted run resumes where it stopped.
func (p *Pipeline) Run(ctx context.Context) (int, error) {
	batchSize := p.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	pending, err := p.Source.MessagesWithoutEmbeddings(ctx, MinContentLength)
	if err != nil {
		return 0, fmt.Errorf("listing pending messages: %w", err)
	}

	eligible := make([]*store.Message, 0, len(pending))
	for _, m := range pending {
		if Embeddable(m.Content) {
			eligible = append(eligible, m)
		}
	}

	done := 0
	for start := 0; start < len(eligible); start += batchSize {
		end := start + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		batch := eligible[start:end]

		texts := make([]string, len(batch))
		for i, m := range batch {
			texts[i] = m.Content
		}

		vectors, err := p.Embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return done, fmt.Errorf("embedding batch at offset %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return done, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
		}

		for i, m := range batch {
			if err := p.Sink.AddEmbedding(ctx, m.ID, vectors[i], p.Embedder.Model()); err != nil {
				return done, fmt.Errorf("persisting embedding for message %s: %w", m.ID, err)
			}
			done++
		}

		if p.Progress != nil {
			p.Progress(done, len(eligible))
		}
	}
	return done, nil
}
