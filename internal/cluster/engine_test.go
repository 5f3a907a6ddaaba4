package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type fakeSource struct {
	vectors [][]float32
	ids     []string
	err     error
}

func (f *fakeSource) AllVectors(ctx context.Context) ([][]float32, []string, error) {
	return f.vectors, f.ids, f.err
}

type fakeRunStore struct {
	nextRunID   int64
	createCalls int
	saveCalls   int
	deleteCalls []int64
	saveErr     error
}

func (f *fakeRunStore) CreateRun(ctx context.Context, method string, params map[string]any, nClusters, nNoise, nSamples int, metrics *QualityMetrics) (int64, error) {
	f.createCalls++
	f.nextRunID++
	return f.nextRunID, nil
}

func (f *fakeRunStore) SaveAssignments(ctx context.Context, runID int64, messageIDs []string, labels []int) error {
	f.saveCalls++
	return f.saveErr
}

func (f *fakeRunStore) DeleteRun(ctx context.Context, runID int64) error {
	f.deleteCalls = append(f.deleteCalls, runID)
	return nil
}

func blobSource(seed int64) *fakeSource {
	vectors := makeBlobs(threeBlobCenters(), 10, 0.5, seed)
	ids := make([]string, len(vectors))
	for i := range ids {
		ids[i] = fmt.Sprintf("msg-%03d", i)
	}
	return &fakeSource{vectors: vectors, ids: ids}
}

func TestEngineDensityRun(t *testing.T) {
	source := blobSource(21)
	store := &fakeRunStore{}
	engine := NewEngine(RunContext{Source: source, Store: store, Seed: 42})

	result, err := engine.Density(context.Background(), DensityParams{MinClusterSize: 5, MinSamples: 2})
	if err != nil {
		t.Fatalf("density run: %v", err)
	}
	if result.Summary.Method != MethodDensity {
		t.Fatalf("wrong method: %s", result.Summary.Method)
	}
	if result.Summary.NSamples != 30 {
		t.Fatalf("expected 30 samples, got %d", result.Summary.NSamples)
	}
	if result.Summary.NClusters != 3 {
		t.Fatalf("expected 3 clusters, got %d", result.Summary.NClusters)
	}
	if result.Summary.State != StateCompleted {
		t.Fatalf("expected completed state, got %s", result.Summary.State)
	}
	if result.Summary.Quality == nil {
		t.Fatal("expected quality metrics")
	}
	if len(result.MessageIDs) != len(result.Labels) {
		t.Fatalf("ids/labels length mismatch: %d vs %d", len(result.MessageIDs), len(result.Labels))
	}

	// Nothing was persisted by the run itself.
	if store.createCalls != 0 {
		t.Fatalf("run must not persist without Save, got %d create calls", store.createCalls)
	}

	runID, err := engine.Save(context.Background(), &result.Summary, result.MessageIDs, result.Labels)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if runID != 1 || result.Summary.RunID != 1 {
		t.Fatalf("expected run id 1, got %d (summary %d)", runID, result.Summary.RunID)
	}
	if store.createCalls != 1 || store.saveCalls != 1 {
		t.Fatalf("expected one create and one save, got %d/%d", store.createCalls, store.saveCalls)
	}
}

func TestEngineCentroidRun(t *testing.T) {
	source := blobSource(22)
	engine := NewEngine(RunContext{Source: source, Store: &fakeRunStore{}, Seed: 42})

	result, err := engine.Centroid(context.Background(), CentroidParams{K: 3})
	if err != nil {
		t.Fatalf("centroid run: %v", err)
	}
	if result.Summary.NNoise != 0 {
		t.Fatalf("centroid clustering has no noise, got %d", result.Summary.NNoise)
	}
	if result.Summary.NClusters != 3 {
		t.Fatalf("expected 3 clusters, got %d", result.Summary.NClusters)
	}
	if len(result.Centroids) != 3 {
		t.Fatalf("expected 3 centroids, got %d", len(result.Centroids))
	}
	if result.Inertia <= 0 {
		t.Fatalf("expected positive inertia, got %f", result.Inertia)
	}
}

func TestEngineReductionDensityRun(t *testing.T) {
	source := blobSource(23)
	engine := NewEngine(RunContext{Source: source, Store: &fakeRunStore{}, Seed: 42})

	result, err := engine.ReductionDensity(context.Background(), ReductionParams{
		NComponents:    5,
		MinClusterSize: 5,
		MinSamples:     2,
	})
	if err != nil {
		t.Fatalf("reduction density run: %v", err)
	}
	if result.Summary.NClusters != 3 {
		t.Fatalf("expected 3 clusters, got %d", result.Summary.NClusters)
	}
	if len(result.Reduced) != 30 || len(result.Reduced[0]) != 5 {
		t.Fatalf("unexpected reduced shape: %dx%d", len(result.Reduced), len(result.Reduced[0]))
	}
}

func TestEngineEmptySource(t *testing.T) {
	store := &fakeRunStore{}
	engine := NewEngine(RunContext{Source: &fakeSource{}, Store: store, Seed: 42})

	_, err := engine.Density(context.Background(), DensityParams{})
	if !errors.Is(err, ErrEmptySource) {
		t.Fatalf("expected ErrEmptySource, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("no run record may exist after validation failure, got %d", store.createCalls)
	}
}

func TestEngineShapeMismatch(t *testing.T) {
	source := &fakeSource{
		vectors: [][]float32{{1, 0}, {0, 1}},
		ids:     []string{"only-one"},
	}
	engine := NewEngine(RunContext{Source: source, Store: &fakeRunStore{}, Seed: 42})

	_, err := engine.Density(context.Background(), DensityParams{})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
}

func TestEngineDimensionMismatch(t *testing.T) {
	source := &fakeSource{
		vectors: [][]float32{{1, 0}, {0, 1, 2}},
		ids:     []string{"a", "b"},
	}
	engine := NewEngine(RunContext{Source: source, Store: &fakeRunStore{}, Seed: 42})

	_, err := engine.Centroid(context.Background(), CentroidParams{K: 2})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestEngineUpstreamError(t *testing.T) {
	cause := errors.New("connection reset")
	engine := NewEngine(RunContext{Source: &fakeSource{err: cause}, Store: &fakeRunStore{}, Seed: 42})

	_, err := engine.Density(context.Background(), DensityParams{})
	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestSaveCleansUpOnAssignmentFailure(t *testing.T) {
	source := blobSource(24)
	store := &fakeRunStore{saveErr: errors.New("disk full")}
	engine := NewEngine(RunContext{Source: source, Store: store, Seed: 42})

	result, err := engine.Density(context.Background(), DensityParams{MinClusterSize: 5, MinSamples: 2})
	if err != nil {
		t.Fatalf("density run: %v", err)
	}

	if _, err := engine.Save(context.Background(), &result.Summary, result.MessageIDs, result.Labels); err == nil {
		t.Fatal("expected save failure")
	}
	if len(store.deleteCalls) != 1 || store.deleteCalls[0] != 1 {
		t.Fatalf("expected cleanup delete of run 1, got %v", store.deleteCalls)
	}
	if result.Summary.RunID != 0 {
		t.Fatalf("failed save must not record a run id, got %d", result.Summary.RunID)
	}
}

func TestSaveShapeMismatch(t *testing.T) {
	store := &fakeRunStore{}
	engine := NewEngine(RunContext{Source: blobSource(25), Store: store, Seed: 42})

	summary := RunSummary{Method: MethodDensity}
	_, err := engine.Save(context.Background(), &summary, []string{"a", "b"}, []int{0})
	if !errors.Is(err, ErrShapeMismatch) {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}
	if store.createCalls != 0 {
		t.Fatalf("no run record may be created on shape mismatch, got %d", store.createCalls)
	}
}
