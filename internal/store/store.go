package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mtzanidakis/swarmgate/internal/config"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(cfg config.StoreConfig) (*Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Enable WAL mode for concurrent read/write access and set a busy
	// timeout so writers retry instead of immediately returning SQLITE_BUSY.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS swarms (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			task        TEXT,
			owner_id    TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id            TEXT PRIMARY KEY,
			swarm_id      TEXT NOT NULL REFERENCES swarms(id),
			name          TEXT NOT NULL,
			role          TEXT,
			framework     TEXT NOT NULL,
			model         TEXT,
			system_prompt TEXT,
			settings      TEXT,
			owner_id      TEXT NOT NULL,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agents_swarm ON agents(swarm_id)`,
		`CREATE TABLE IF NOT EXISTS context_blocks (
			id            TEXT PRIMARY KEY,
			swarm_id      TEXT NOT NULL REFERENCES swarms(id),
			name          TEXT NOT NULL,
			content       TEXT NOT NULL,
			priority      TEXT NOT NULL DEFAULT 'medium',
			swarm_visible BOOLEAN DEFAULT TRUE,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_context_swarm ON context_blocks(swarm_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			swarm_id    TEXT NOT NULL REFERENCES swarms(id),
			sender_kind TEXT NOT NULL,
			sender_id   TEXT,
			content     TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_swarm ON messages(swarm_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS credentials (
			id         TEXT PRIMARY KEY,
			owner_id   TEXT NOT NULL,
			provider   TEXT NOT NULL,
			value      BLOB NOT NULL,
			nonce      BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(owner_id, provider)
		)`,
		`CREATE TABLE IF NOT EXISTS usage_records (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			swarm_id      TEXT,
			agent_id      TEXT,
			provider      TEXT,
			model         TEXT,
			input_tokens  INTEGER DEFAULT 0,
			output_tokens INTEGER DEFAULT 0,
			input_cost    REAL DEFAULT 0,
			output_cost   REAL DEFAULT 0,
			latency_ms    INTEGER DEFAULT 0,
			status        TEXT NOT NULL DEFAULT 'pending',
			error_code    TEXT,
			error_message TEXT,
			metadata      TEXT,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_swarm ON usage_records(swarm_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usage_user ON usage_records(user_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS usage_rollups (
			day           TEXT NOT NULL,
			swarm_id      TEXT NOT NULL,
			requests      INTEGER DEFAULT 0,
			input_tokens  INTEGER DEFAULT 0,
			output_tokens INTEGER DEFAULT 0,
			cost          REAL DEFAULT 0,
			PRIMARY KEY (day, swarm_id)
		)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
