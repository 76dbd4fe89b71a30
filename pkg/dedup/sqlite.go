package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists seen request-ids across process restarts, for
// deployments where a plugin worker might redeliver a retry after the
// core itself restarted. Adapted from the teacher's SQLiteBackend:
// database/sql over modernc.org/sqlite (pure Go, no second cgo surface
// alongside pkg/plugin/localffi), WAL mode, prepared statements.
type SQLiteStore struct {
	db         *sql.DB
	insertStmt *sql.Stmt
	forgetStmt *sql.Stmt
}

// NewSQLiteStore opens (creating if needed) a dedup database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("dedup: open %q: %w", path, err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS seen_request_ids (
			session_id INTEGER NOT NULL,
			request_id BLOB NOT NULL,
			seen_at INTEGER NOT NULL,
			PRIMARY KEY (session_id, request_id)
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: create schema: %w", err)
	}

	insertStmt, err := db.Prepare(`INSERT OR IGNORE INTO seen_request_ids (session_id, request_id, seen_at) VALUES (?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: prepare insert: %w", err)
	}
	forgetStmt, err := db.Prepare(`DELETE FROM seen_request_ids WHERE session_id = ?`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dedup: prepare forget: %w", err)
	}

	return &SQLiteStore{db: db, insertStmt: insertStmt, forgetStmt: forgetStmt}, nil
}

func (s *SQLiteStore) SeenOrRecord(ctx context.Context, sessionID uint32, requestID [16]byte) (bool, error) {
	res, err := s.insertStmt.ExecContext(ctx, sessionID, requestID[:], time.Now().Unix())
	if err != nil {
		return false, fmt.Errorf("dedup: insert: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("dedup: rows affected: %w", err)
	}
	// INSERT OR IGNORE affects zero rows exactly when the (session_id,
	// request_id) pair already existed, i.e. it was already seen.
	return rows == 0, nil
}

func (s *SQLiteStore) Forget(ctx context.Context, sessionID uint32) error {
	_, err := s.forgetStmt.ExecContext(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("dedup: forget session %d: %w", sessionID, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.insertStmt.Close()
	s.forgetStmt.Close()
	return s.db.Close()
}
