package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ul0gic/discredit/internal/cluster"
)

// CreateTaxonomyRun appends a taxonomy classification run record.
func (s *SQLiteStore) CreateTaxonomyRun(ctx context.Context, model, version string, nMessages, batchSize, totalBatches int, processingSeconds float64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO taxonomy_runs
		 (model, taxonomy_version, n_messages, batch_size, total_batches, processing_time_seconds, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		model, version, nMessages, batchSize, totalBatches, processingSeconds, time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting taxonomy run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading taxonomy run insert id: %w", err)
	}
	return runID, nil
}

// SaveCategoryAssignments bulk-upserts category assignments scoped to a
// taxonomy run. Length mismatch fails before any write.
func (s *SQLiteStore) SaveCategoryAssignments(ctx context.Context, runID int64, messageIDs []string, categories []string) error {
	if len(messageIDs) != len(categories) {
		return fmt.Errorf("%w: %d ids, %d categories", cluster.ErrShapeMismatch, len(messageIDs), len(categories))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin taxonomy transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO message_taxonomy (taxonomy_run_id, message_id, category, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(taxonomy_run_id, message_id) DO UPDATE SET category = excluded.category`)
	if err != nil {
		return fmt.Errorf("preparing taxonomy insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for i, id := range messageIDs {
		if _, err := stmt.ExecContext(ctx, runID, id, categories[i], now); err != nil {
			return fmt.Errorf("assigning message %s to category %q: %w", id, categories[i], err)
		}
	}
	return tx.Commit()
}

// CategoryDistribution returns message counts per category for a taxonomy run.
func (s *SQLiteStore) CategoryDistribution(ctx context.Context, runID int64) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM message_taxonomy
		 WHERE taxonomy_run_id = ? GROUP BY category`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying category distribution: %w", err)
	}
	defer rows.Close()

	dist := map[string]int{}
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scanning category row: %w", err)
		}
		dist[category] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating categories: %w", err)
	}
	return dist, nil
}

// GetCategoryMessages returns the messages assigned to one category of a
// taxonomy run, most recent first.
func (s *SQLiteStore) GetCategoryMessages(ctx context.Context, runID int64, category string, limit int) ([]*Message, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.platform, m.content, m.author_id, m.timestamp, m.source, m.parent_id, m.metadata, m.scraped_at
		 FROM messages m
		 JOIN message_taxonomy mt ON mt.message_id = m.id
		 WHERE mt.taxonomy_run_id = ? AND mt.category = ?
		 ORDER BY m.timestamp DESC
		 LIMIT ?`,
		runID, category, limit)
	if err != nil {
		return nil, fmt.Errorf("listing category messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}
