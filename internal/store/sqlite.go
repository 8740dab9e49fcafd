package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the append-only log of fetched ranges. A nil *Store is valid
// and silently drops writes.
type Store struct {
	db *sql.DB
}

type MarketSnapshot struct {
	ID        int64   `json:"id"`
	TS        int64   `json:"ts"`
	Symbol    string  `json:"symbol"`
	Range     string  `json:"range"`
	Name      string  `json:"name,omitempty"`
	PrevClose float64 `json:"prev_close"`
	LastClose float64 `json:"last_close"`
	ChangePct float64 `json:"change_pct"`
	CreatedAt string  `json:"created_at"`
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=3000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pragma busy_timeout: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS market_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			period TEXT NOT NULL,
			name TEXT,
			prev_close REAL,
			last_close REAL,
			change_pct REAL,
			created_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_market_snapshot_ts ON market_snapshot(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_market_snapshot_symbol ON market_snapshot(symbol, period);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) InsertMarketSnapshot(ms MarketSnapshot) error {
	if s == nil || s.db == nil {
		return nil
	}
	if ms.TS == 0 {
		ms.TS = time.Now().Unix()
	}
	if ms.CreatedAt == "" {
		ms.CreatedAt = time.Now().Format(time.RFC3339)
	}
	_, err := s.db.Exec(
		`INSERT INTO market_snapshot (ts, symbol, period, name, prev_close, last_close, change_pct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ms.TS, ms.Symbol, ms.Range, ms.Name, ms.PrevClose, ms.LastClose, ms.ChangePct, ms.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert market snapshot: %w", err)
	}
	return nil
}

// QueryMarketSnapshots returns the newest snapshots of symbol first.
// An empty rng matches every range.
func (s *Store) QueryMarketSnapshots(symbol, rng string, limit, offset int) ([]MarketSnapshot, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("store not initialized")
	}
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	query := `SELECT id, ts, symbol, period, name, prev_close, last_close, change_pct, created_at
		FROM market_snapshot WHERE symbol = ?`
	args := []any{symbol}
	if rng != "" {
		query += " AND period = ?"
		args = append(args, rng)
	}
	query += " ORDER BY ts DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query market snapshot: %w", err)
	}
	defer rows.Close()
	var out []MarketSnapshot
	for rows.Next() {
		var ms MarketSnapshot
		var name sql.NullString
		if err := rows.Scan(&ms.ID, &ms.TS, &ms.Symbol, &ms.Range, &name, &ms.PrevClose, &ms.LastClose, &ms.ChangePct, &ms.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan market snapshot: %w", err)
		}
		ms.Name = name.String
		out = append(out, ms)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows market snapshot: %w", err)
	}
	return out, nil
}
