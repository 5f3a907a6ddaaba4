// Package store provides the SQLite storage layer for discredit.
//
// All pipeline data lives in a single SQLite database file, including:
// - Scraped messages and cross-platform user profiles
// - Embedding vectors (little-endian float32 BLOBs)
// - Clustering run records and bulk cluster assignments
// - Taxonomy classification runs and category assignments
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/ul0gic/discredit/internal/cluster"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.discredit/discredit.db"

// Message is a single scraped chat or forum message. IDs are opaque strings,
// globally unique across source platforms.
type Message struct {
	ID        string
	Platform  string // "discord" or "reddit"
	Content   string
	AuthorID  string
	Timestamp int64 // unix seconds, message creation time
	Source    string // channel or subreddit
	ParentID  string
	Metadata  string // raw JSON from the scraper
	ScrapedAt int64
}

// User is a cross-platform author profile.
type User struct {
	ID           string
	Platform     string
	Username     string
	DisplayName  string
	MessageCount int
	FirstSeen    int64
	LastSeen     int64
}

// ClusteringRun is one immutable clustering execution. Labels are only
// comparable within the same run.
type ClusteringRun struct {
	ID             int64
	Method         string
	Parameters     map[string]any
	NClusters      int
	NNoise         int
	NSamples       int
	Silhouette     *float64
	QualityMetrics *cluster.QualityMetrics
	CreatedAt      int64
}

// Assignment is a single (message, label) fact within a run.
type Assignment struct {
	MessageID string
	Label     int
}

// Stats holds observability counts about the store.
type Stats struct {
	MessageCount    int64
	UserCount       int64
	EmbeddingCount  int64
	RunCount        int64
	AssignmentCount int64
	DBSizeBytes     int64
}

// StoreConfig holds configuration for NewStore.
type StoreConfig struct {
	DBPath string
}

// Store defines the storage interface for the pipeline.
type Store interface {
	// Messages and users
	InsertMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id string) (*Message, error)
	MessageCount(ctx context.Context, platform string) (int64, error)
	MessagesWithoutEmbeddings(ctx context.Context, minLength int) ([]*Message, error)
	UpsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id string) (*User, error)

	// Embeddings
	AddEmbedding(ctx context.Context, messageID string, vector []float32, model string) error
	GetEmbedding(ctx context.Context, messageID string) ([]float32, error)
	AllVectors(ctx context.Context) ([][]float32, []string, error)

	// Clustering runs (see cluster.RunStore)
	CreateRun(ctx context.Context, method string, params map[string]any, nClusters, nNoise, nSamples int, metrics *cluster.QualityMetrics) (int64, error)
	SaveAssignments(ctx context.Context, runID int64, messageIDs []string, labels []int) error
	DeleteRun(ctx context.Context, runID int64) error
	GetRun(ctx context.Context, runID int64) (*ClusteringRun, error)
	ListRuns(ctx context.Context, limit int) ([]*ClusteringRun, error)
	RunAssignments(ctx context.Context, runID int64) ([]Assignment, error)
	GetClusterMessages(ctx context.Context, runID int64, clusterID int, limit int) ([]*Message, error)

	// Taxonomy
	CreateTaxonomyRun(ctx context.Context, model, version string, nMessages, batchSize, totalBatches int, processingSeconds float64) (int64, error)
	SaveCategoryAssignments(ctx context.Context, runID int64, messageIDs []string, categories []string) error
	CategoryDistribution(ctx context.Context, runID int64) (map[string]int, error)
	GetCategoryMessages(ctx context.Context, runID int64, category string, limit int) ([]*Message, error)

	// Observability and maintenance
	Stats(ctx context.Context) (*Stats, error)
	Vacuum(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// Compile-time checks: SQLiteStore satisfies both the storage interface and
// the cluster engine's persistence contract.
var (
	_ Store            = (*SQLiteStore)(nil)
	_ cluster.RunStore = (*SQLiteStore)(nil)
)

// NewStore creates a new SQLite-backed Store.
// Pass ":memory:" for in-memory databases (testing).
func NewStore(cfg StoreConfig) (Store, error) {
	if cfg.DBPath == "" {
		cfg.DBPath = expandPath(DefaultDBPath)
	}

	if cfg.DBPath != ":memory:" {
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: cfg.DBPath}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Vacuum runs VACUUM on the database. Manual only.
func (s *SQLiteStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Stats returns row counts and database size.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}
	counts := []struct {
		query string
		dest  *int64
	}{
		{"SELECT COUNT(*) FROM messages", &st.MessageCount},
		{"SELECT COUNT(*) FROM users", &st.UserCount},
		{"SELECT COUNT(*) FROM embeddings", &st.EmbeddingCount},
		{"SELECT COUNT(*) FROM clustering_runs", &st.RunCount},
		{"SELECT COUNT(*) FROM message_clusters", &st.AssignmentCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("counting rows: %w", err)
		}
	}

	if s.dbPath != ":memory:" {
		if info, err := os.Stat(s.dbPath); err == nil {
			st.DBSizeBytes = info.Size()
		}
	}
	return st, nil
}

// expandPath expands ~ to home directory.
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
