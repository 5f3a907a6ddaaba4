// Package cluster implements the message clustering pipeline: L2
// normalization of embedding vectors, three clustering algorithms
// (density-based, centroid-based, reduction+density), internal quality
// metrics, and persistence of reproducible run records.
//
// Labels are signed integers scoped to a single run; -1 is the reserved
// noise marker and is excluded from every count, metric and sample. None of
// the algorithms guarantees bit-identical output across versions of this
// package; only within-run determinism for a fixed seed is contractual, so
// parameter comparisons are meaningful only within one version.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

// Method identifies a clustering algorithm.
type Method string

const (
	MethodDensity          Method = "density"
	MethodCentroid         Method = "centroid"
	MethodReductionDensity Method = "reduction_density"
)

// Validation failures surfaced before any run record is created.
var (
	ErrEmptySource       = errors.New("embedding source returned no vectors")
	ErrShapeMismatch     = errors.New("vector and id counts differ")
	ErrDimensionMismatch = errors.New("vectors have non-uniform dimensionality")
)

// UpstreamError marks a failure of an external collaborator (embedding
// source, message store). The run fails with nothing persisted; the caller
// may retry as a brand-new run.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *UpstreamError) Unwrap() error { return e.Err }

// VectorSource supplies one dense vector per message id. Ids are returned in
// the same order as matrix rows.
type VectorSource interface {
	AllVectors(ctx context.Context) ([][]float32, []string, error)
}

// RunStore persists run records and bulk assignments.
type RunStore interface {
	CreateRun(ctx context.Context, method string, params map[string]any, nClusters, nNoise, nSamples int, metrics *QualityMetrics) (int64, error)
	SaveAssignments(ctx context.Context, runID int64, messageIDs []string, labels []int) error
	DeleteRun(ctx context.Context, runID int64) error
}

// RunContext bundles everything one clustering invocation needs. It is
// constructed per invocation and passed explicitly; nothing in this package
// holds ambient global state.
type RunContext struct {
	Source VectorSource
	Store  RunStore
	Seed   int64
}

// RunState is the terminal state of a summarized run. A failed run returns an
// error and no summary, so every summary that exists is completed; failures
// are discarded and re-invoked as brand-new runs, never retried in place.
type RunState string

const StateCompleted RunState = "completed"

// RunSummary is the method-independent projection of a clustering result,
// shaped for storage.
type RunSummary struct {
	RunID        int64          `json:"run_id,omitempty"`
	Method       Method         `json:"method"`
	Parameters   map[string]any `json:"parameters"`
	NSamples     int            `json:"n_samples"`
	NClusters    int            `json:"n_clusters"`
	NNoise       int            `json:"n_noise"`
	ClusterSizes map[int]int    `json:"cluster_sizes"`
	Quality      *QualityMetrics `json:"quality_metrics,omitempty"`
	State        RunState       `json:"state"`
}

// DensityResult is the outcome of density-based clustering.
type DensityResult struct {
	Summary    RunSummary
	MessageIDs []string
	Labels     []int
	Model      *DensityModel
}

// CentroidResult is the outcome of centroid-based clustering. There is no
// noise concept; NNoise is always zero.
type CentroidResult struct {
	Summary    RunSummary
	MessageIDs []string
	Labels     []int
	Centroids  [][]float32
	Inertia    float64
}

// ReductionDensityResult is the outcome of reduction followed by
// density-based clustering. Reduced holds the projected matrix the labels
// were computed in.
type ReductionDensityResult struct {
	Summary    RunSummary
	MessageIDs []string
	Labels     []int
	Reduced    [][]float32
	Model      *DensityModel
}

// Engine runs clustering methods against a RunContext.
type Engine struct {
	rc RunContext
}

// NewEngine creates an Engine bound to one invocation context.
func NewEngine(rc RunContext) *Engine {
	return &Engine{rc: rc}
}

// loadVectors pulls the full matrix from the source and validates its shape.
// Every validation failure happens here, before any store mutation.
func (e *Engine) loadVectors(ctx context.Context) ([][]float32, []string, error) {
	vectors, ids, err := e.rc.Source.AllVectors(ctx)
	if err != nil {
		return nil, nil, &UpstreamError{Op: "loading vectors", Err: err}
	}
	if len(vectors) == 0 {
		return nil, nil, ErrEmptySource
	}
	if len(vectors) != len(ids) {
		return nil, nil, fmt.Errorf("%w: %d vectors, %d ids", ErrShapeMismatch, len(vectors), len(ids))
	}
	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return nil, nil, fmt.Errorf("%w: row 0 has %d dims, row %d has %d", ErrDimensionMismatch, dims, i, len(v))
		}
	}
	return vectors, ids, nil
}

// Density runs density-based clustering on L2-normalized vectors, so the
// Euclidean metric used internally matches cosine distance on the raw
// embeddings.
func (e *Engine) Density(ctx context.Context, p DensityParams) (*DensityResult, error) {
	vectors, ids, err := e.loadVectors(ctx)
	if err != nil {
		return nil, err
	}
	p = p.withDefaults()

	normalized := NormalizeRows(vectors)
	labels, model := densityCluster(normalized, p)
	rng := rand.New(rand.NewSource(e.rc.Seed))

	summary := summarize(MethodDensity, map[string]any{
		"min_cluster_size": p.MinClusterSize,
		"min_samples":      p.MinSamples,
		"metric":           "euclidean",
	}, labels, Evaluate(normalized, labels, rng))

	return &DensityResult{Summary: summary, MessageIDs: ids, Labels: labels, Model: model}, nil
}

// Centroid runs centroid-based clustering on L2-normalized vectors.
func (e *Engine) Centroid(ctx context.Context, p CentroidParams) (*CentroidResult, error) {
	vectors, ids, err := e.loadVectors(ctx)
	if err != nil {
		return nil, err
	}
	p = p.withDefaults()

	normalized := NormalizeRows(vectors)
	labels, centroids, inertia, err := centroidCluster(normalized, p, e.rc.Seed)
	if err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(e.rc.Seed))

	summary := summarize(MethodCentroid, map[string]any{
		"k":         p.K,
		"minibatch": len(normalized) > minibatchThreshold,
	}, labels, Evaluate(normalized, labels, rng))

	return &CentroidResult{
		Summary:    summary,
		MessageIDs: ids,
		Labels:     labels,
		Centroids:  centroids,
		Inertia:    inertia,
	}, nil
}

// ReductionDensity projects raw vectors into a lower-dimensional space
// preserving cosine neighborhoods, then clusters there with plain Euclidean
// density clustering. Quality metrics are computed in the reduced space.
func (e *Engine) ReductionDensity(ctx context.Context, p ReductionParams) (*ReductionDensityResult, error) {
	vectors, ids, err := e.loadVectors(ctx)
	if err != nil {
		return nil, err
	}
	p = p.withDefaults()

	reduced := reduceCosine(vectors, p.NComponents, e.rc.Seed)
	dp := DensityParams{MinClusterSize: p.MinClusterSize, MinSamples: p.MinSamples}.withDefaults()
	labels, model := densityCluster(reduced, dp)
	rng := rand.New(rand.NewSource(e.rc.Seed))

	summary := summarize(MethodReductionDensity, map[string]any{
		"n_components":     p.NComponents,
		"min_cluster_size": dp.MinClusterSize,
		"min_samples":      dp.MinSamples,
	}, labels, Evaluate(reduced, labels, rng))

	return &ReductionDensityResult{
		Summary:    summary,
		MessageIDs: ids,
		Labels:     labels,
		Reduced:    reduced,
		Model:      model,
	}, nil
}

// Save persists a completed run: one immutable run record plus its bulk
// assignments. If the assignment write fails the run record is deleted so a
// partial run is never left behind.
func (e *Engine) Save(ctx context.Context, summary *RunSummary, messageIDs []string, labels []int) (int64, error) {
	if len(messageIDs) != len(labels) {
		return 0, fmt.Errorf("%w: %d ids, %d labels", ErrShapeMismatch, len(messageIDs), len(labels))
	}

	runID, err := e.rc.Store.CreateRun(ctx, string(summary.Method), summary.Parameters,
		summary.NClusters, summary.NNoise, summary.NSamples, summary.Quality)
	if err != nil {
		return 0, fmt.Errorf("creating run record: %w", err)
	}

	if err := e.rc.Store.SaveAssignments(ctx, runID, messageIDs, labels); err != nil {
		if delErr := e.rc.Store.DeleteRun(ctx, runID); delErr != nil {
			return 0, fmt.Errorf("saving assignments: %w (run %d cleanup also failed: %v)", err, runID, delErr)
		}
		return 0, fmt.Errorf("saving assignments: %w", err)
	}

	summary.RunID = runID
	return runID, nil
}

// summarize derives counts and sizes from a label vector. Noise points are
// never counted as a cluster, so n_noise + sum(cluster sizes) == n_samples.
func summarize(method Method, params map[string]any, labels []int, quality *QualityMetrics) RunSummary {
	sizes := map[int]int{}
	noise := 0
	for _, l := range labels {
		if l < 0 {
			noise++
			continue
		}
		sizes[l]++
	}
	return RunSummary{
		Method:       method,
		Parameters:   params,
		NSamples:     len(labels),
		NClusters:    len(sizes),
		NNoise:       noise,
		ClusterSizes: sizes,
		Quality:      quality,
		State:        StateCompleted,
	}
}
