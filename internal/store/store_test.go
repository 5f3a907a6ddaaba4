package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ul0gic/discredit/internal/cluster"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DBPath: ":memory:"})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func insertTestMessage(t *testing.T, s Store, id string, timestamp int64, content string) {
	t.Helper()
	err := s.InsertMessage(context.Background(), &Message{
		ID:        id,
		Platform:  "discord",
		Content:   content,
		AuthorID:  "author-1",
		Timestamp: timestamp,
		Source:    "general",
	})
	if err != nil {
		t.Fatalf("inserting message %s: %v", id, err)
	}
}

func TestMessageRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	msg := &Message{
		ID:        "m1",
		Platform:  "reddit",
		Content:   "anyone know how to integrate stripe with this?",
		AuthorID:  "u1",
		Timestamp: 1700000000,
		Source:    "r/saas",
		Metadata:  `{"score": 5}`,
	}
	if err := s.InsertMessage(ctx, msg); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.GetMessage(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("expected message, got nil")
	}
	if got.Content != msg.Content || got.Platform != "reddit" || got.Source != "r/saas" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.ScrapedAt == 0 {
		t.Fatal("scraped_at not defaulted")
	}

	missing, err := s.GetMessage(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing message, got %+v", missing)
	}
}

func TestMessageInsertIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "first version of the content here")
	insertTestMessage(t, s, "m1", 100, "second version of the content here")

	count, err := s.MessageCount(ctx, "")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 message after re-insert, got %d", count)
	}
	got, _ := s.GetMessage(ctx, "m1")
	if got.Content != "second version of the content here" {
		t.Fatalf("re-insert did not overwrite: %q", got.Content)
	}
}

func TestMessagesWithoutEmbeddings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "long enough message about pricing plans")
	insertTestMessage(t, s, "m2", 200, "another message asking about sso support")
	insertTestMessage(t, s, "m3", 300, "short")

	if err := s.AddEmbedding(ctx, "m1", []float32{1, 2, 3}, "test-model"); err != nil {
		t.Fatalf("adding embedding: %v", err)
	}

	pending, err := s.MessagesWithoutEmbeddings(ctx, 20)
	if err != nil {
		t.Fatalf("listing pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "m2" {
		t.Fatalf("expected only m2 pending, got %+v", pending)
	}
}

func TestEmbeddingRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "some message content that is long enough")

	vec := []float32{0.5, -1.25, 3.75, 0}
	if err := s.AddEmbedding(ctx, "m1", vec, "text-embedding-3-small"); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.GetEmbedding(ctx, "m1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != len(vec) {
		t.Fatalf("dimension mismatch: %d vs %d", len(got), len(vec))
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Fatalf("component %d: %f vs %f", i, got[i], vec[i])
		}
	}

	missing, err := s.GetEmbedding(ctx, "nope")
	if err != nil {
		t.Fatalf("get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing embedding, got %v", missing)
	}

	// Re-adding replaces.
	if err := s.AddEmbedding(ctx, "m1", []float32{9, 9}, "other-model"); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, _ = s.GetEmbedding(ctx, "m1")
	if len(got) != 2 || got[0] != 9 {
		t.Fatalf("replacement not applied: %v", got)
	}
}

func TestAllVectorsOrderAndShape(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("m%d", i)
		insertTestMessage(t, s, id, int64(100+i), "content long enough for the threshold")
		if err := s.AddEmbedding(ctx, id, []float32{float32(i), 0}, "test-model"); err != nil {
			t.Fatalf("adding embedding: %v", err)
		}
	}

	vectors, ids, err := s.AllVectors(ctx)
	if err != nil {
		t.Fatalf("all vectors: %v", err)
	}
	if len(vectors) != 3 || len(ids) != 3 {
		t.Fatalf("expected 3 rows, got %d vectors %d ids", len(vectors), len(ids))
	}
	// Ordered by message id: m0, m1, m2.
	for i, id := range ids {
		if id != fmt.Sprintf("m%d", i) {
			t.Fatalf("unexpected id order: %v", ids)
		}
		if vectors[i][0] != float32(i) {
			t.Fatalf("vector row %d does not line up with id %s", i, id)
		}
	}
}

func TestAllVectorsDimensionMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "content long enough for the threshold")
	insertTestMessage(t, s, "m2", 200, "content long enough for the threshold")
	if err := s.AddEmbedding(ctx, "m1", []float32{1, 2}, "test-model"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.AddEmbedding(ctx, "m2", []float32{1, 2, 3}, "test-model"); err != nil {
		t.Fatalf("add: %v", err)
	}

	_, _, err := s.AllVectors(ctx)
	if !errors.Is(err, cluster.ErrDimensionMismatch) {
		t.Fatalf("expected dimension mismatch error, got %v", err)
	}
}

func TestRunRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	metrics := &cluster.QualityMetrics{Silhouette: 0.62, CalinskiHarabasz: 140.5, DaviesBouldin: 0.8}
	params := map[string]any{"min_cluster_size": 25, "min_samples": 10}

	runID, err := s.CreateRun(ctx, "density", params, 4, 12, 100, metrics)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if runID <= 0 {
		t.Fatalf("expected positive run id, got %d", runID)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run == nil {
		t.Fatal("expected run, got nil")
	}
	if run.Method != "density" || run.NClusters != 4 || run.NNoise != 12 || run.NSamples != 100 {
		t.Fatalf("run fields mismatch: %+v", run)
	}
	if run.Silhouette == nil || *run.Silhouette != 0.62 {
		t.Fatalf("silhouette not persisted: %v", run.Silhouette)
	}
	if run.QualityMetrics == nil || run.QualityMetrics.DaviesBouldin != 0.8 {
		t.Fatalf("quality metrics not persisted: %+v", run.QualityMetrics)
	}
	if got := run.Parameters["min_samples"]; got != float64(10) {
		t.Fatalf("parameters not persisted: %v", run.Parameters)
	}

	missing, err := s.GetRun(ctx, 9999)
	if err != nil {
		t.Fatalf("get missing run: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing run, got %+v", missing)
	}
}

func TestRunWithoutMetrics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "density", map[string]any{}, 0, 50, 50, nil)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Silhouette != nil || run.QualityMetrics != nil {
		t.Fatalf("expected absent metrics, got %+v", run)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.CreateRun(ctx, "centroid", map[string]any{"k": i + 2}, i+2, 0, 10, nil); err != nil {
			t.Fatalf("create run: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	if runs[0].ID <= runs[1].ID || runs[1].ID <= runs[2].ID {
		t.Fatalf("runs not newest first: %d, %d, %d", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestAssignmentsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := []string{"m1", "m2", "m3", "m4"}
	for i, id := range ids {
		insertTestMessage(t, s, id, int64(100+i), "content long enough for the threshold")
	}

	runID, err := s.CreateRun(ctx, "density", map[string]any{}, 2, 1, 4, nil)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	labels := []int{0, 0, 1, -1}
	if err := s.SaveAssignments(ctx, runID, ids, labels); err != nil {
		t.Fatalf("save assignments: %v", err)
	}

	assignments, err := s.RunAssignments(ctx, runID)
	if err != nil {
		t.Fatalf("run assignments: %v", err)
	}
	if len(assignments) != 4 {
		t.Fatalf("expected 4 assignments, got %d", len(assignments))
	}
	byID := map[string]int{}
	for _, a := range assignments {
		byID[a.MessageID] = a.Label
	}
	for i, id := range ids {
		if byID[id] != labels[i] {
			t.Fatalf("label mismatch for %s: %d vs %d", id, byID[id], labels[i])
		}
	}

	// Exact membership per cluster, newest message first.
	zero, err := s.GetClusterMessages(ctx, runID, 0, 0)
	if err != nil {
		t.Fatalf("cluster 0 messages: %v", err)
	}
	if len(zero) != 2 || zero[0].ID != "m2" || zero[1].ID != "m1" {
		t.Fatalf("cluster 0 membership wrong: %+v", zero)
	}

	noise, err := s.GetClusterMessages(ctx, runID, -1, 0)
	if err != nil {
		t.Fatalf("noise messages: %v", err)
	}
	if len(noise) != 1 || noise[0].ID != "m4" {
		t.Fatalf("noise membership wrong: %+v", noise)
	}
}

func TestSaveAssignmentsShapeMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	runID, err := s.CreateRun(ctx, "density", map[string]any{}, 1, 0, 2, nil)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}

	err = s.SaveAssignments(ctx, runID, []string{"m1", "m2"}, []int{0})
	if !errors.Is(err, cluster.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}

	assignments, err := s.RunAssignments(ctx, runID)
	if err != nil {
		t.Fatalf("run assignments: %v", err)
	}
	if len(assignments) != 0 {
		t.Fatalf("no assignments may be written on mismatch, got %d", len(assignments))
	}
}

func TestDeleteRunRemovesAssignments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "content long enough for the threshold")
	runID, err := s.CreateRun(ctx, "density", map[string]any{}, 1, 0, 1, nil)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := s.SaveAssignments(ctx, runID, []string{"m1"}, []int{0}); err != nil {
		t.Fatalf("save assignments: %v", err)
	}

	if err := s.DeleteRun(ctx, runID); err != nil {
		t.Fatalf("delete run: %v", err)
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run != nil {
		t.Fatalf("run still present after delete: %+v", run)
	}
	assignments, err := s.RunAssignments(ctx, runID)
	if err != nil {
		t.Fatalf("run assignments: %v", err)
	}
	if len(assignments) != 0 {
		t.Fatalf("assignments survive run deletion: %d", len(assignments))
	}
}

func TestUserUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		insertTestMessage(t, s, fmt.Sprintf("m%d", i), int64(100+i), "content long enough for the threshold")
	}

	first := &User{ID: "author-1", Platform: "discord", Username: "alex", MessageCount: 3, FirstSeen: 100, LastSeen: 102}
	if err := s.UpsertUser(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.GetUser(ctx, "author-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageCount != 3 {
		t.Fatalf("message count wrong after first upsert: %d", got.MessageCount)
	}

	// Importing the same batch again must not inflate activity counts: the
	// message inserts are idempotent, so the recomputed count stays 3.
	second := &User{ID: "author-1", Platform: "discord", Username: "alex", MessageCount: 3, FirstSeen: 50, LastSeen: 300}
	if err := s.UpsertUser(ctx, second); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err = s.GetUser(ctx, "author-1")
	if err != nil {
		t.Fatalf("get after reimport: %v", err)
	}
	if got.MessageCount != 3 {
		t.Fatalf("message count inflated by reimport: %d", got.MessageCount)
	}
	if got.FirstSeen != 50 || got.LastSeen != 300 {
		t.Fatalf("seen window wrong: %d..%d", got.FirstSeen, got.LastSeen)
	}
}

func TestTaxonomyRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := []string{"m1", "m2", "m3"}
	for i, id := range ids {
		insertTestMessage(t, s, id, int64(100+i), "content long enough for the threshold")
	}

	runID, err := s.CreateTaxonomyRun(ctx, "gpt-4o-mini", "v1", 3, 50, 1, 2.5)
	if err != nil {
		t.Fatalf("create taxonomy run: %v", err)
	}

	categories := []string{"feature_requests", "feature_requests", "bug_reports"}
	if err := s.SaveCategoryAssignments(ctx, runID, ids, categories); err != nil {
		t.Fatalf("save categories: %v", err)
	}

	dist, err := s.CategoryDistribution(ctx, runID)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if dist["feature_requests"] != 2 || dist["bug_reports"] != 1 {
		t.Fatalf("unexpected distribution: %v", dist)
	}

	msgs, err := s.GetCategoryMessages(ctx, runID, "feature_requests", 0)
	if err != nil {
		t.Fatalf("category messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 feature_requests messages, got %d", len(msgs))
	}
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertTestMessage(t, s, "m1", 100, "content long enough for the threshold")
	if err := s.AddEmbedding(ctx, "m1", []float32{1, 2}, "test-model"); err != nil {
		t.Fatalf("add embedding: %v", err)
	}
	runID, err := s.CreateRun(ctx, "density", map[string]any{}, 1, 0, 1, nil)
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	if err := s.SaveAssignments(ctx, runID, []string{"m1"}, []int{0}); err != nil {
		t.Fatalf("save assignments: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.MessageCount != 1 || stats.EmbeddingCount != 1 || stats.RunCount != 1 || stats.AssignmentCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
