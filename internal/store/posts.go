package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/glebarez/go-sqlite"
)

// upsertChunk controls how often UpsertBatch reports progress.
const upsertChunk = 25

// PostStore is a file-backed SQLite table of posts. A store handle is
// meant to live for one sync run: Open at run start, Close on every
// exit path. No handle is ever shared across goroutines.
type PostStore struct {
	DB *sql.DB
}

func Open(dbPath string) (*PostStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return &PostStore{DB: db}, nil
}

// EnsureSchema creates the posts table if it is absent. Safe to call on
// every run.
func (s *PostStore) EnsureSchema(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY,
		title TEXT,
		body TEXT
	);`)
	if err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	return nil
}

// UpsertBatch inserts or overwrites the given posts by id inside a
// single transaction: either every post is visible afterwards or the
// table is left exactly as it was. Cancelling ctx mid-batch aborts the
// transaction, so an abandoned run never commits. report, if non-nil,
// is called with (done, total) every few rows and once at the end.
func (s *PostStore) UpsertBatch(ctx context.Context, posts []Post, report func(done, total int)) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO posts (id, title, body) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	total := len(posts)
	for i, p := range posts {
		if _, err := stmt.ExecContext(ctx, p.ID, p.Title, p.Body); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert post %d: %w", p.ID, err)
		}
		if report != nil && (i+1)%upsertChunk == 0 {
			report(i+1, total)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert batch: %w", err)
	}
	if report != nil {
		report(total, total)
	}
	return nil
}

// All returns the current snapshot ordered by id.
func (s *PostStore) All(ctx context.Context) ([]Post, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, title, body FROM posts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Body); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func (s *PostStore) Close() error {
	return s.DB.Close()
}
