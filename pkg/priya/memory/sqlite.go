package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	Path         string `yaml:"path"`
	JournalMode  string `yaml:"journal_mode"`
	BusyTimeout  int    `yaml:"busy_timeout"`
	HistoryLimit int    `yaml:"history_limit"`
}

// SQLiteStore persists the conversation store in one SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	limit  int
	logger *slog.Logger
}

// OpenSQLite opens or creates the database and applies migrations.
func OpenSQLite(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Path == "" {
		cfg.Path = "./data/priya.db"
	}
	if cfg.JournalMode == "" {
		cfg.JournalMode = "WAL"
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5000
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}

	if cfg.Path != ":memory:" {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d", cfg.Path, cfg.JournalMode, cfg.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Path, err)
	}
	// One connection: writes serialize and every task sees its own writes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db, limit: cfg.HistoryLimit, logger: logger.With("component", "memory")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.logger.Info("conversation store opened", "path", cfg.Path, "history_limit", s.limit)
	return s, nil
}

// migrations are applied in order; index+1 is the schema version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS conversation (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id    TEXT NOT NULL,
		role       TEXT NOT NULL,
		content    TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversation_user ON conversation(user_id, id);
	CREATE TABLE IF NOT EXISTS profiles (
		user_id      TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		voice_mode   INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS bans (
		user_id    TEXT PRIMARY KEY,
		reason     TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	);`,
	`ALTER TABLE profiles ADD COLUMN voice_engine TEXT NOT NULL DEFAULT 'default';
	ALTER TABLE profiles ADD COLUMN voice_identity TEXT NOT NULL DEFAULT '';`,
}

func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		s.logger.Debug("migration applied", "version", i+1)
	}
	return nil
}

// Append implements Store. Insert and prune run in one transaction.
func (s *SQLiteStore) Append(ctx context.Context, userID string, role Role, content string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("memory: begin append: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversation (user_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		userID, string(role), content, time.Now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("memory: insert entry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM conversation WHERE user_id = ? AND id NOT IN (
			SELECT id FROM conversation WHERE user_id = ? ORDER BY id DESC LIMIT ?
		)`, userID, userID, s.limit,
	); err != nil {
		return fmt.Errorf("memory: prune history: %w", err)
	}
	return tx.Commit()
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT * FROM conversation WHERE user_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id ASC`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var role string
		var created int64
		if err := rows.Scan(&e.ID, &e.UserID, &role, &e.Content, &created); err != nil {
			return nil, fmt.Errorf("memory: scan entry: %w", err)
		}
		e.Role = Role(role)
		e.CreatedAt = time.UnixMilli(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Profile implements Store.
func (s *SQLiteStore) Profile(ctx context.Context, userID string) (Profile, error) {
	if err := s.ensureProfile(ctx, userID); err != nil {
		return Profile{}, err
	}
	p := Profile{UserID: userID}
	var engine string
	var voiceMode int
	err := s.db.QueryRowContext(ctx,
		"SELECT display_name, voice_mode, voice_engine, voice_identity FROM profiles WHERE user_id = ?",
		userID,
	).Scan(&p.DisplayName, &voiceMode, &engine, &p.VoiceIdentity)
	if err != nil {
		return Profile{}, fmt.Errorf("memory: load profile: %w", err)
	}
	p.VoiceMode = voiceMode != 0
	p.VoiceEngine = VoiceEngine(engine)
	return p, nil
}

func (s *SQLiteStore) ensureProfile(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING", userID)
	if err != nil {
		return fmt.Errorf("memory: create profile: %w", err)
	}
	return nil
}

// SetDisplayName implements Store.
func (s *SQLiteStore) SetDisplayName(ctx context.Context, userID, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET display_name = excluded.display_name`,
		userID, name)
	if err != nil {
		return fmt.Errorf("memory: set display name: %w", err)
	}
	return nil
}

// SetVoiceMode implements Store.
func (s *SQLiteStore) SetVoiceMode(ctx context.Context, userID string, on bool) error {
	mode := 0
	if on {
		mode = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, voice_mode) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET voice_mode = excluded.voice_mode`,
		userID, mode)
	if err != nil {
		return fmt.Errorf("memory: set voice mode: %w", err)
	}
	return nil
}

// SetVoice implements Store.
func (s *SQLiteStore) SetVoice(ctx context.Context, userID string, engine VoiceEngine, identity string) error {
	if engine == "" {
		engine = VoiceDefault
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, voice_engine, voice_identity) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			voice_engine = excluded.voice_engine,
			voice_identity = excluded.voice_identity`,
		userID, string(engine), identity)
	if err != nil {
		return fmt.Errorf("memory: set voice: %w", err)
	}
	return nil
}

// Ban implements Store. Banning twice replaces the reason.
func (s *SQLiteStore) Ban(ctx context.Context, userID, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bans (user_id, reason, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET reason = excluded.reason, created_at = excluded.created_at`,
		userID, reason, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("memory: ban: %w", err)
	}
	return nil
}

// Unban implements Store.
func (s *SQLiteStore) Unban(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM bans WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("memory: unban: %w", err)
	}
	return nil
}

// IsBanned implements Store.
func (s *SQLiteStore) IsBanned(ctx context.Context, userID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bans WHERE user_id = ?", userID).Scan(&n); err != nil {
		return false, fmt.Errorf("memory: check ban: %w", err)
	}
	return n > 0, nil
}

// KnownUsers implements Store.
func (s *SQLiteStore) KnownUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation
		UNION
		SELECT user_id FROM profiles
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("memory: list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
