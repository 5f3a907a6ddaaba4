package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ul0gic/discredit/internal/cluster"
)

// CreateRun appends an immutable clustering run record and returns its
// strictly increasing id. Run records are never mutated in place; a rerun
// gets a fresh id.
func (s *SQLiteStore) CreateRun(ctx context.Context, method string, params map[string]any, nClusters, nNoise, nSamples int, metrics *cluster.QualityMetrics) (int64, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("encoding run parameters: %w", err)
	}

	var silhouette any
	var metricsJSON any
	if metrics != nil {
		silhouette = metrics.Silhouette
		raw, err := json.Marshal(metrics)
		if err != nil {
			return 0, fmt.Errorf("encoding quality metrics: %w", err)
		}
		metricsJSON = string(raw)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO clustering_runs
		 (method, parameters, n_clusters, n_noise, n_samples, silhouette_score, quality_metrics, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		method, string(paramsJSON), nClusters, nNoise, nSamples, silhouette, metricsJSON, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting clustering run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run insert id: %w", err)
	}
	return runID, nil
}

// SaveAssignments bulk-upserts (message, label) pairs scoped to a run. The
// length precondition is checked before any write; re-saving the same
// run/message pair overwrites the prior label.
func (s *SQLiteStore) SaveAssignments(ctx context.Context, runID int64, messageIDs []string, labels []int) error {
	if len(messageIDs) != len(labels) {
		return fmt.Errorf("%w: %d ids, %d labels", cluster.ErrShapeMismatch, len(messageIDs), len(labels))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO message_clusters (clustering_run_id, message_id, cluster_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(clustering_run_id, message_id) DO UPDATE SET cluster_id = excluded.cluster_id`)
	if err != nil {
		return fmt.Errorf("preparing assignment insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, id := range messageIDs {
		if _, err := stmt.ExecContext(ctx, runID, id, labels[i], now); err != nil {
			return fmt.Errorf("assigning message %s to cluster %d: %w", id, labels[i], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignments: %w", err)
	}
	return nil
}

// DeleteRun removes a run record and all of its assignments. Deleting the
// owning run is the only way assignments go away.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM message_clusters WHERE clustering_run_id = ?`, runID); err != nil {
		return fmt.Errorf("deleting assignments for run %d: %w", runID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clustering_runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("deleting run %d: %w", runID, err)
	}
	return tx.Commit()
}

// GetRun returns a run record by id, or nil when not found.
func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*ClusteringRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, method, parameters, n_clusters, n_noise, n_samples, silhouette_score, quality_metrics, created_at
		 FROM clustering_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting run %d: %w", runID, err)
	}
	return run, nil
}

// ListRuns returns run records, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*ClusteringRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, method, parameters, n_clusters, n_noise, n_samples, silhouette_score, quality_metrics, created_at
		 FROM clustering_runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	runs := make([]*ClusteringRun, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// RunAssignments returns every (message, label) pair for a run, ordered by
// message id.
func (s *SQLiteStore) RunAssignments(ctx context.Context, runID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, cluster_id FROM message_clusters
		 WHERE clustering_run_id = ? ORDER BY message_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying assignments for run %d: %w", runID, err)
	}
	defer rows.Close()

	assignments := make([]Assignment, 0, 256)
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.MessageID, &a.Label); err != nil {
			return nil, fmt.Errorf("scanning assignment row: %w", err)
		}
		assignments = append(assignments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating assignments: %w", err)
	}
	return assignments, nil
}

// GetClusterMessages returns the messages assigned to one cluster of a run,
// most recent first by message timestamp. Pass -1 for the noise bucket.
func (s *SQLiteStore) GetClusterMessages(ctx context.Context, runID int64, clusterID int, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.platform, m.content, m.author_id, m.timestamp, m.source, m.parent_id, m.metadata, m.scraped_at
		 FROM messages m
		 JOIN message_clusters mc ON mc.message_id = m.id
		 WHERE mc.clustering_run_id = ? AND mc.cluster_id = ?
		 ORDER BY m.timestamp DESC
		 LIMIT ?`,
		runID, clusterID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing cluster messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// rowScanner abstracts sql.Row and sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*ClusteringRun, error) {
	run := &ClusteringRun{}
	var paramsRaw string
	var silhouette sql.NullFloat64
	var metricsRaw sql.NullString
	if err := row.Scan(&run.ID, &run.Method, &paramsRaw, &run.NClusters, &run.NNoise,
		&run.NSamples, &silhouette, &metricsRaw, &run.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(paramsRaw), &run.Parameters); err != nil {
		return nil, fmt.Errorf("decoding run parameters: %w", err)
	}
	if silhouette.Valid {
		v := silhouette.Float64
		run.Silhouette = &v
	}
	if metricsRaw.Valid && metricsRaw.String != "" {
		metrics := &cluster.QualityMetrics{}
		if err := json.Unmarshal([]byte(metricsRaw.String), metrics); err != nil {
			return nil, fmt.Errorf("decoding quality metrics: %w", err)
		}
		run.QualityMetrics = metrics
	}
	return run, nil
}
