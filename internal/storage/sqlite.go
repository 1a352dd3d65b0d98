package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists scoped key-value state in a local SQLite
// database. It is the durable side of the storage model: values survive
// process restarts, unlike MemoryStore scopes.
type SQLiteStore struct {
	db *sql.DB
}

type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create_kv",
		SQL: `
			CREATE TABLE IF NOT EXISTS kv (
				scope      TEXT NOT NULL,
				key        TEXT NOT NULL,
				value      TEXT NOT NULL,
				updated_at TIMESTAMP NOT NULL,
				PRIMARY KEY (scope, key)
			);
		`,
	},
	{
		Version: 2,
		Name:    "index_kv_scope",
		SQL:     `CREATE INDEX IF NOT EXISTS idx_kv_scope ON kv(scope);`,
	},
}

// NewSQLiteStore opens (or creates) the database at path and applies
// pending schema migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writes; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// migrate applies all unapplied migrations in version order
func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied := make(map[int]bool)
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return err
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		if _, err := s.db.Exec(m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Name, err)
		}

		_, err := s.db.Exec("INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name)
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// Scope returns a Store bound to the given client identifier
func (s *SQLiteStore) Scope(id string) Store {
	return &sqliteScope{db: s.db, scope: id}
}

// sqliteScope implements Store over one scope of the kv table. Database
// failures are logged and surface as absent state, matching the storage
// error taxonomy.
type sqliteScope struct {
	db    *sql.DB
	scope string
}

func (s *sqliteScope) Get(key string) (string, bool) {
	var value string
	err := s.db.QueryRow("SELECT value FROM kv WHERE scope = ? AND key = ?", s.scope, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		log.Printf("storage: read of %q failed, treating as absent: %v", key, err)
		return "", false
	}
	return value, true
}

func (s *sqliteScope) Set(key, value string) {
	_, err := s.db.Exec(`
		INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.scope, key, value, time.Now())
	if err != nil {
		log.Printf("storage: write of %q failed: %v", key, err)
	}
}

func (s *sqliteScope) Delete(key string) {
	_, err := s.db.Exec("DELETE FROM kv WHERE scope = ? AND key = ?", s.scope, key)
	if err != nil {
		log.Printf("storage: delete of %q failed: %v", key, err)
	}
}

func (s *sqliteScope) Keys() []string {
	rows, err := s.db.Query("SELECT key FROM kv WHERE scope = ?", s.scope)
	if err != nil {
		log.Printf("storage: key listing failed: %v", err)
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			log.Printf("storage: key scan failed: %v", err)
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}
