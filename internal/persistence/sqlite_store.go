package persistence

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SQLiteStore keeps the chat transcript and completed translations.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	// Bootstrap schema_migrations table so we can track applied versions.
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

func (s *SQLiteStore) InsertEvent(ctx context.Context, ev ChatEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("event id is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chat_events (id, kind, channel, login, display_name, body, msg_id, bits, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		ev.ID,
		string(ev.Kind),
		ev.Channel,
		ev.Login,
		ev.DisplayName,
		ev.Body,
		ev.MsgID,
		ev.Bits,
		ev.SentAt.UTC(),
	)
	return err
}

func (s *SQLiteStore) InsertTranslation(ctx context.Context, rec TranslationRecord) error {
	if rec.MessageID == "" || rec.Language == "" {
		return fmt.Errorf("message id and language are required")
	}
	createdAt := rec.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translations (message_id, language, source, translated, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(message_id, language) DO UPDATE SET
			source=excluded.source,
			translated=excluded.translated,
			created_at=excluded.created_at`,
		rec.MessageID,
		rec.Language,
		rec.Source,
		rec.Translated,
		createdAt,
	)
	return err
}

// RecentEvents returns up to limit events, oldest first, each with its
// translation into language when one exists.
func (s *SQLiteStore) RecentEvents(ctx context.Context, language string, limit int) ([]ChatEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, kind, channel, login, display_name, body, msg_id, bits, sent_at, translated FROM (
			SELECT e.id, e.kind, e.channel, e.login, e.display_name, e.body, e.msg_id, e.bits, e.sent_at,
				COALESCE(t.translated, '') AS translated
			FROM chat_events e
			LEFT JOIN translations t ON t.message_id = e.id AND t.language = ?
			ORDER BY e.sent_at DESC, e.rowid DESC
			LIMIT ?
		) ORDER BY sent_at ASC`,
		language,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]ChatEvent, 0)
	for rows.Next() {
		var item ChatEvent
		var kind, sentAt string
		if err := rows.Scan(
			&item.ID,
			&kind,
			&item.Channel,
			&item.Login,
			&item.DisplayName,
			&item.Body,
			&item.MsgID,
			&item.Bits,
			&sentAt,
			&item.Translation,
		); err != nil {
			return nil, err
		}
		item.Kind = EventKind(kind)
		item.SentAt = parseTimestamp(sentAt)
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

// RecentTranslations returns up to limit distinct source texts translated
// into language, oldest first, for warming the translation cache.
func (s *SQLiteStore) RecentTranslations(ctx context.Context, language string, limit int) ([]TranslationRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT message_id, language, source, translated, created_at FROM (
			SELECT message_id, language, source, translated, MAX(created_at) AS created_at
			FROM translations
			WHERE language = ?
			GROUP BY source
			ORDER BY created_at DESC
			LIMIT ?
		) ORDER BY created_at ASC`,
		language,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]TranslationRecord, 0)
	for rows.Next() {
		var item TranslationRecord
		var createdAt string
		if err := rows.Scan(&item.MessageID, &item.Language, &item.Source, &item.Translated, &createdAt); err != nil {
			return nil, err
		}
		item.CreatedAt = parseTimestamp(createdAt)
		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *SQLiteStore) CountEvents(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chat_events`).Scan(&n)
	return n, err
}

// parseTimestamp reads a timestamp selected through a subquery, which the
// driver returns as text.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
