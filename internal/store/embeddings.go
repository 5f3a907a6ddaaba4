package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/ul0gic/discredit/internal/cluster"
)

// AddEmbedding stores an embedding vector for a message.
// Replaces any existing embedding for the same message_id.
func (s *SQLiteStore) AddEmbedding(ctx context.Context, messageID string, vector []float32, model string) error {
	blob := float32ToBytes(vector)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO embeddings (message_id, vector, dimensions, model, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(message_id) DO UPDATE SET
		   vector = excluded.vector, dimensions = excluded.dimensions,
		   model = excluded.model, created_at = excluded.created_at`,
		messageID, blob, len(vector), model, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing embedding for message %s: %w", messageID, err)
	}
	return nil
}

// GetEmbedding retrieves the embedding vector for a message, or nil when none
// is stored.
func (s *SQLiteStore) GetEmbedding(ctx context.Context, messageID string) ([]float32, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT vector FROM embeddings WHERE message_id = ?", messageID,
	).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting embedding for message %s: %w", messageID, err)
	}
	return bytesToFloat32(blob), nil
}

// AllVectors loads every stored embedding, ordered by message id so that row
// order is stable across calls. Ids line up 1:1 with matrix rows. Fails fast
// on non-uniform dimensionality: a run over mixed-dimension vectors is
// meaningless.
//
// This is the store-backed implementation of cluster.VectorSource.
func (s *SQLiteStore) AllVectors(ctx context.Context) ([][]float32, []string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, vector, dimensions FROM embeddings ORDER BY message_id ASC`)
	if err != nil {
		return nil, nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var vectors [][]float32
	var ids []string
	dims := -1
	for rows.Next() {
		var id string
		var blob []byte
		var d int
		if err := rows.Scan(&id, &blob, &d); err != nil {
			return nil, nil, fmt.Errorf("scanning embedding row: %w", err)
		}
		if dims == -1 {
			dims = d
		} else if d != dims {
			return nil, nil, fmt.Errorf("%w: message %s has %d dims, expected %d",
				cluster.ErrDimensionMismatch, id, d, dims)
		}
		vectors = append(vectors, bytesToFloat32(blob))
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return vectors, ids, nil
}

// float32ToBytes converts a float32 slice to a byte slice (little-endian).
func float32ToBytes(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// bytesToFloat32 converts a byte slice back to a float32 slice (little-endian).
func bytesToFloat32(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
