// Package inspect draws bounded random samples of messages per cluster for
// human review. It is strictly read-only against stored runs and is
// non-deterministic unless the caller supplies a seeded random source.
package inspect

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ul0gic/discredit/internal/store"
)

// DefaultPreviewLength bounds message content in sample output.
const DefaultPreviewLength = 200

// DefaultSamplesPerCluster is how many messages to draw per cluster.
const DefaultSamplesPerCluster = 5

// RunReader is the subset of the store the inspector needs.
type RunReader interface {
	RunAssignments(ctx context.Context, runID int64) ([]store.Assignment, error)
	GetMessage(ctx context.Context, id string) (*store.Message, error)
}

// Sample is one drawn message.
type Sample struct {
	ID             string `json:"id"`
	ContentPreview string `json:"content_preview"`
	Platform       string `json:"platform"`
	Source         string `json:"source,omitempty"`
}

// ClusterSample is the drawn sample set for one cluster.
type ClusterSample struct {
	Size    int      `json:"size"`
	Samples []Sample `json:"samples"`
}

// Report maps cluster ids to their samples for one run. Noise points appear
// only when explicitly requested.
type Report struct {
	RunID       int64                 `json:"run_id"`
	Clusters    map[int]ClusterSample `json:"clusters"`
	NoisePoints *ClusterSample        `json:"noise_points,omitempty"`
}

// Options controls sampling.
type Options struct {
	SamplesPerCluster int
	PreviewLength     int
	IncludeNoise      bool
	Rand              *rand.Rand // nil means time-seeded, non-reproducible
}

func (o Options) withDefaults() Options {
	if o.SamplesPerCluster <= 0 {
		o.SamplesPerCluster = DefaultSamplesPerCluster
	}
	if o.PreviewLength <= 0 {
		o.PreviewLength = DefaultPreviewLength
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// ClusterSamples draws up to SamplesPerCluster message ids uniformly at
// random without replacement from every cluster of a run and fetches their
// content. Stored assignments are never touched.
func ClusterSamples(ctx context.Context, reader RunReader, runID int64, opts Options) (*Report, error) {
	opts = opts.withDefaults()

	assignments, err := reader.RunAssignments(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading assignments for run %d: %w", runID, err)
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("run %d has no assignments", runID)
	}

	members := map[int][]string{}
	for _, a := range assignments {
		members[a.Label] = append(members[a.Label], a.MessageID)
	}

	report := &Report{RunID: runID, Clusters: map[int]ClusterSample{}}

	labels := make([]int, 0, len(members))
	for l := range members {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	for _, label := range labels {
		if label == -1 && !opts.IncludeNoise {
			continue
		}
		sample, err := drawSample(ctx, reader, members[label], opts)
		if err != nil {
			return nil, err
		}
		if label == -1 {
			report.NoisePoints = &sample
			continue
		}
		report.Clusters[label] = sample
	}
	return report, nil
}

func drawSample(ctx context.Context, reader RunReader, ids []string, opts Options) (ClusterSample, error) {
	count := opts.SamplesPerCluster
	if count > len(ids) {
		count = len(ids)
	}

	perm := opts.Rand.Perm(len(ids))
	samples := make([]Sample, 0, count)
	for _, idx := range perm[:count] {
		msg, err := reader.GetMessage(ctx, ids[idx])
		if err != nil {
			return ClusterSample{}, fmt.Errorf("fetching message %s: %w", ids[idx], err)
		}
		if msg == nil {
			// Assignment references a message the external store no longer has.
			continue
		}
		samples = append(samples, Sample{
			ID:             msg.ID,
			ContentPreview: truncate(msg.Content, opts.PreviewLength),
			Platform:       msg.Platform,
			Source:         msg.Source,
		})
	}
	return ClusterSample{Size: len(ids), Samples: samples}, nil
}

// WriteJSON serializes a report to path, creating parent directories.
func WriteJSON(report *Report, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sample report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		return fmt.Errorf("writing sample report: %w", err)
	}
	return nil
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
