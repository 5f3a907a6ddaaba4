package store

import "fmt"

// migrate creates all tables and indexes if they don't exist.
func (s *SQLiteStore) migrate() error {
	statements := []string{
		// Scraped messages with provenance
		`CREATE TABLE IF NOT EXISTS messages (
			id         TEXT PRIMARY KEY,
			platform   TEXT NOT NULL CHECK(platform IN ('discord', 'reddit')),
			content    TEXT NOT NULL,
			author_id  TEXT NOT NULL,
			timestamp  INTEGER NOT NULL,
			source     TEXT,
			parent_id  TEXT,
			metadata   TEXT,
			scraped_at INTEGER NOT NULL
		)`,

		// Cross-platform user profiles
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			platform      TEXT NOT NULL CHECK(platform IN ('discord', 'reddit')),
			username      TEXT NOT NULL,
			display_name  TEXT,
			message_count INTEGER DEFAULT 0,
			first_seen    INTEGER,
			last_seen     INTEGER
		)`,

		// Embedding vectors, one per message
		`CREATE TABLE IF NOT EXISTS embeddings (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id TEXT NOT NULL UNIQUE,
			vector     BLOB NOT NULL,
			dimensions INTEGER NOT NULL,
			model      TEXT,
			created_at INTEGER NOT NULL,
			FOREIGN KEY (message_id) REFERENCES messages(id)
		)`,

		// Clustering run records, append-only
		`CREATE TABLE IF NOT EXISTS clustering_runs (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			method           TEXT NOT NULL,
			parameters       TEXT NOT NULL,
			n_clusters       INTEGER NOT NULL,
			n_noise          INTEGER NOT NULL,
			n_samples        INTEGER NOT NULL,
			silhouette_score REAL,
			quality_metrics  TEXT,
			created_at       INTEGER NOT NULL
		)`,

		// Cluster assignments, one label per message per run
		`CREATE TABLE IF NOT EXISTS message_clusters (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			clustering_run_id INTEGER NOT NULL,
			message_id        TEXT NOT NULL,
			cluster_id        INTEGER NOT NULL,
			created_at        INTEGER NOT NULL,
			FOREIGN KEY (clustering_run_id) REFERENCES clustering_runs(id),
			FOREIGN KEY (message_id) REFERENCES messages(id),
			UNIQUE(clustering_run_id, message_id)
		)`,

		// Taxonomy classification runs
		`CREATE TABLE IF NOT EXISTS taxonomy_runs (
			id                       INTEGER PRIMARY KEY AUTOINCREMENT,
			model                    TEXT NOT NULL,
			taxonomy_version         TEXT NOT NULL,
			n_messages               INTEGER NOT NULL,
			batch_size               INTEGER NOT NULL,
			total_batches            INTEGER NOT NULL,
			processing_time_seconds  REAL,
			created_at               INTEGER NOT NULL
		)`,

		// Category assignments
		`CREATE TABLE IF NOT EXISTS message_taxonomy (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			taxonomy_run_id INTEGER NOT NULL,
			message_id      TEXT NOT NULL,
			category        TEXT NOT NULL,
			created_at      INTEGER NOT NULL,
			FOREIGN KEY (taxonomy_run_id) REFERENCES taxonomy_runs(id),
			FOREIGN KEY (message_id) REFERENCES messages(id),
			UNIQUE(taxonomy_run_id, message_id)
		)`,

		// Indexes for common query patterns
		`CREATE INDEX IF NOT EXISTS idx_messages_platform ON messages(platform)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_author ON messages(author_id)`,
		`CREATE INDEX IF NOT EXISTS idx_embeddings_message ON embeddings(message_id)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_run ON message_clusters(clustering_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_clusters_run_cluster ON message_clusters(clustering_run_id, cluster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_taxonomy_run ON message_taxonomy(taxonomy_run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_taxonomy_category ON message_taxonomy(taxonomy_run_id, category)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}
	return nil
}
