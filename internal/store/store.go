// Package store persists job documents and the print queue in a sqlite
// key-value table. Values are flat JSON documents; job documents carry a
// retention TTL and expire out of reads, the queue document never does.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const purgeInterval = 1 * time.Hour

type Store struct {
	db       *sql.DB
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type migration struct {
	Version string
	SQL     string
}

var migrations = []migration{
	{
		Version: "001_documents",
		SQL: `
			CREATE TABLE IF NOT EXISTS documents (
				key        TEXT PRIMARY KEY,
				value      TEXT NOT NULL,
				expires_at INTEGER,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
		`,
	},
	{
		Version: "002_documents_expiry_idx",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_documents_expires_at ON documents(expires_at)`,
	},
}

// Open opens (creating if needed) the sqlite database at path. Documents
// written with a TTL are retained for that long and then purged; the
// retention window for job documents is supplied by the caller per Put.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:     db,
		stopCh: make(chan struct{}),
	}, nil
}

func runMigrations(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}

	sorted := make([]migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Version < sorted[j].Version
	})

	for _, m := range sorted {
		if applied[m.Version] {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.Version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.Version, err)
		}
	}

	return nil
}

// Get reads the raw document at key. Expired documents read as absent.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM documents
		WHERE key = ? AND (expires_at IS NULL OR expires_at > ?)
	`, key, time.Now().Unix()).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read document %s: %w", key, err)
	}
	return value, true, nil
}

// Put writes a document. ttl of zero means the document never expires;
// expiry is stored as unix seconds.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires interface{}
	if ttl != 0 {
		expires = time.Now().Add(ttl).Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, value, expires_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			expires_at = excluded.expires_at,
			updated_at = CURRENT_TIMESTAMP
	`, key, value, expires)
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", key, err)
	}
	return nil
}

// Delete removes the document at key if present.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}

// ListPrefix reads every unexpired document whose key starts with prefix,
// ordered by key.
func (s *Store) ListPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM documents
		WHERE key LIKE ? || '%' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY key
	`, prefix, time.Now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs[key] = value
	}
	return docs, nil
}

// StartPurge launches the background loop that deletes expired rows.
func (s *Store) StartPurge() {
	s.wg.Add(1)
	go s.purgeLoop()
}

func (s *Store) purgeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n, err := s.PurgeExpired(context.Background()); err != nil {
				log.Printf("store: purge failed: %v", err)
			} else if n > 0 {
				log.Printf("store: purged %d expired documents", n)
			}
		}
	}
}

// PurgeExpired deletes every document past its expiry.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE expires_at IS NOT NULL AND expires_at <= ?", time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to purge documents: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged documents: %w", err)
	}
	return n, nil
}

// Close stops the purge loop and closes the database.
func (s *Store) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
	return s.db.Close()
}
