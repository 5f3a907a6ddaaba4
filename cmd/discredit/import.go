package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/ul0gic/discredit/internal/store"
)

// importRecord is one scraped message as emitted by the scrapers, one JSON
// object per line.
type importRecord struct {
	ID         string          `json:"id"`
	Platform   string          `json:"platform"`
	Content    string          `json:"content"`
	AuthorID   string          `json:"author_id"`
	AuthorName string          `json:"author_name"`
	Timestamp  int64           `json:"timestamp"`
	Source     string          `json:"source"`
	ParentID   string          `json:"parent_id"`
	Metadata   json.RawMessage `json:"metadata"`
}

func runImport(args []string) error {
	var path, dbPath string
	dryRun := false

	for i := 0; i < len(args); i++ {
		if !strings.HasPrefix(args[i], "-") {
			if path != "" {
				return fmt.Errorf("unexpected argument: %s", args[i])
			}
			path = args[i]
			continue
		}
		name, value, hasValue := splitFlag(args, &i)
		switch name {
		case "--db":
			if !hasValue {
				return fmt.Errorf("--db requires a path")
			}
			dbPath = value
		case "--dry-run", "-n":
			if hasValue {
				return fmt.Errorf("%s takes no value", name)
			}
			dryRun = true
		default:
			return fmt.Errorf("unknown flag: %s", name)
		}
	}
	if path == "" {
		return fmt.Errorf("usage: discredit import <path.jsonl> [--dry-run] [--db <path>]")
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var st store.Store
	if !dryRun {
		st, err = openStore(dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
	}

	ctx := context.Background()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	imported, skipped, line := 0, 0, 0
	authors := map[string]*store.User{}

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec importRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			fmt.Fprintf(os.Stderr, "  line %d: bad JSON, skipped: %v\n", line, err)
			skipped++
			continue
		}
		if rec.Platform != "discord" && rec.Platform != "reddit" {
			fmt.Fprintf(os.Stderr, "  line %d: unknown platform %q, skipped\n", line, rec.Platform)
			skipped++
			continue
		}
		if rec.Content == "" {
			skipped++
			continue
		}
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}

		if !dryRun {
			msg := &store.Message{
				ID:        rec.ID,
				Platform:  rec.Platform,
				Content:   rec.Content,
				AuthorID:  rec.AuthorID,
				Timestamp: rec.Timestamp,
				Source:    rec.Source,
				ParentID:  rec.ParentID,
				Metadata:  string(rec.Metadata),
			}
			if err := st.InsertMessage(ctx, msg); err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
		}
		imported++

		if rec.AuthorID != "" {
			u, ok := authors[rec.AuthorID]
			if !ok {
				u = &store.User{
					ID:        rec.AuthorID,
					Platform:  rec.Platform,
					Username:  rec.AuthorName,
					FirstSeen: rec.Timestamp,
					LastSeen:  rec.Timestamp,
				}
				authors[rec.AuthorID] = u
			}
			u.MessageCount++
			if rec.Timestamp < u.FirstSeen {
				u.FirstSeen = rec.Timestamp
			}
			if rec.Timestamp > u.LastSeen {
				u.LastSeen = rec.Timestamp
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if !dryRun {
		for _, u := range authors {
			if err := st.UpsertUser(ctx, u); err != nil {
				return fmt.Errorf("upserting user %s: %w", u.ID, err)
			}
		}
	}

	mode := ""
	if dryRun {
		mode = " (dry run)"
	}
	fmt.Printf("Imported %d messages from %d authors, skipped %d%s\n", imported, len(authors), skipped, mode)
	return nil
}
