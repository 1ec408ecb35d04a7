// Package tradelog keeps an append-only journal of desk operations so a
// failed or surprising trade can be reconstructed after the fact. It sits on
// plain database/sql with the pure-Go SQLite driver, separate from the
// ledger database: journal writes must never contend with settlement
// transactions.
package tradelog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one journaled desk operation.
type Record struct {
	ID      int64          `json:"id"`
	TraceID string         `json:"trace_id"`
	UserID  int64          `json:"user_id"`
	OrderID int64          `json:"order_id,omitempty"`
	Op      string         `json:"op"`
	Detail  map[string]any `json:"detail,omitempty"`
	Err     string         `json:"error,omitempty"`
	At      time.Time      `json:"at"`
}

type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("tradelog: path cannot be empty")
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS desk_ops (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		trace_id TEXT NOT NULL,
		user_id INTEGER NOT NULL,
		order_id INTEGER NOT NULL DEFAULT 0,
		op TEXT NOT NULL,
		detail TEXT,
		error TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_desk_ops_user ON desk_ops(user_id, created_at);`)
	return err
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Append(ctx context.Context, rec Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("tradelog not initialized")
	}
	if rec.At.IsZero() {
		rec.At = time.Now()
	}
	var detail []byte
	if len(rec.Detail) > 0 {
		detail, _ = json.Marshal(rec.Detail)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO desk_ops (trace_id, user_id, order_id, op, detail, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.UserID, rec.OrderID, rec.Op, string(detail), rec.Err, rec.At.UnixMilli())
	return err
}

func (s *Store) Recent(ctx context.Context, userID int64, limit int) ([]Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("tradelog not initialized")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, trace_id, user_id, order_id, op, detail, error, created_at
		 FROM desk_ops WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var (
			rec       Record
			detail    sql.NullString
			errText   sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.TraceID, &rec.UserID, &rec.OrderID, &rec.Op, &detail, &errText, &createdAt); err != nil {
			return nil, err
		}
		if detail.Valid && detail.String != "" {
			_ = json.Unmarshal([]byte(detail.String), &rec.Detail)
		}
		rec.Err = errText.String
		rec.At = time.UnixMilli(createdAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}
