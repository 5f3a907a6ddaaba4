package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertMessage stores a scraped message. Re-inserting the same id overwrites
// the prior row, so repeated scrapes of the same window are idempotent.
func (s *SQLiteStore) InsertMessage(ctx context.Context, m *Message) error {
	if m.ID == "" {
		return fmt.Errorf("message id is required")
	}
	if m.ScrapedAt == 0 {
		m.ScrapedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO messages
		 (id, platform, content, author_id, timestamp, source, parent_id, metadata, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Platform, m.Content, m.AuthorID, m.Timestamp,
		nullable(m.Source), nullable(m.ParentID), nullable(m.Metadata), m.ScrapedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}
	return nil
}

// GetMessage returns a message by id, or nil when not found.
func (s *SQLiteStore) GetMessage(ctx context.Context, id string) (*Message, error) {
	m := &Message{}
	var source, parentID, metadata sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, content, author_id, timestamp, source, parent_id, metadata, scraped_at
		 FROM messages WHERE id = ?`, id,
	).Scan(&m.ID, &m.Platform, &m.Content, &m.AuthorID, &m.Timestamp,
		&source, &parentID, &metadata, &m.ScrapedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting message %s: %w", id, err)
	}
	m.Source = source.String
	m.ParentID = parentID.String
	m.Metadata = metadata.String
	return m, nil
}

// MessageCount returns the number of stored messages, optionally filtered by
// platform.
func (s *SQLiteStore) MessageCount(ctx context.Context, platform string) (int64, error) {
	var count int64
	var err error
	if platform == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE platform = ?`, platform).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("counting messages: %w", err)
	}
	return count, nil
}

// MessagesWithoutEmbeddings returns messages of at least minLength characters
// that have no stored embedding yet, oldest first.
func (s *SQLiteStore) MessagesWithoutEmbeddings(ctx context.Context, minLength int) ([]*Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT m.id, m.platform, m.content, m.author_id, m.timestamp, m.source, m.parent_id, m.metadata, m.scraped_at
		 FROM messages m
		 LEFT JOIN embeddings e ON e.message_id = m.id
		 WHERE e.message_id IS NULL AND LENGTH(m.content) >= ?
		 ORDER BY m.timestamp ASC`,
		minLength,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages without embeddings: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// UpsertUser inserts or refreshes a user profile, preserving the earliest
// first_seen and the latest last_seen. On conflict the activity count is
// recomputed from the messages table rather than accumulated, so re-importing
// an overlapping batch stays idempotent just like message inserts do.
func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, platform, username, display_name, message_count, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   username = excluded.username,
		   display_name = excluded.display_name,
		   message_count = (SELECT COUNT(*) FROM messages WHERE author_id = excluded.id),
		   first_seen = MIN(first_seen, excluded.first_seen),
		   last_seen = MAX(last_seen, excluded.last_seen)`,
		u.ID, u.Platform, u.Username, nullable(u.DisplayName), u.MessageCount, u.FirstSeen, u.LastSeen,
	)
	if err != nil {
		return fmt.Errorf("upserting user %s: %w", u.ID, err)
	}
	return nil
}

// GetUser returns a user by id, or nil when not found.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	u := &User{}
	var displayName sql.NullString
	var firstSeen, lastSeen sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, username, display_name, message_count, first_seen, last_seen
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Platform, &u.Username, &displayName, &u.MessageCount, &firstSeen, &lastSeen)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user %s: %w", id, err)
	}
	u.DisplayName = displayName.String
	u.FirstSeen = firstSeen.Int64
	u.LastSeen = lastSeen.Int64
	return u, nil
}

func scanMessages(rows *sql.Rows) ([]*Message, error) {
	messages := make([]*Message, 0, 64)
	for rows.Next() {
		m := &Message{}
		var source, parentID, metadata sql.NullString
		if err := rows.Scan(&m.ID, &m.Platform, &m.Content, &m.AuthorID, &m.Timestamp,
			&source, &parentID, &metadata, &m.ScrapedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		m.Source = source.String
		m.ParentID = parentID.String
		m.Metadata = metadata.String
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
