// CLAUDE:SUMMARY SQLite persistence of the shelf structure with precomputed comparable keys, key-range lookup and audited range updates.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hazyhaar/shelfmark/pkg/callnum"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no row or shelf matches.
var ErrNotFound = errors.New("not found")

// Entity names one of the four range-carrying tables.
type Entity string

const (
	EntityModule Entity = "module"
	EntityPart   Entity = "part"
	EntityUnit   Entity = "unit"
	EntityShelf  Entity = "shelf"
)

// Entities lists every Entity in tree order.
var Entities = []Entity{EntityModule, EntityPart, EntityUnit, EntityShelf}

// ParseEntity accepts singular or plural names ("shelf", "shelves").
func ParseEntity(s string) (Entity, error) {
	switch strings.ToLower(s) {
	case "module", "modules":
		return EntityModule, nil
	case "part", "parts", "module_part", "module_parts":
		return EntityPart, nil
	case "unit", "units", "shelving_unit", "shelving_units":
		return EntityUnit, nil
	case "shelf", "shelves":
		return EntityShelf, nil
	}
	return "", fmt.Errorf("unknown entity %q", s)
}

func (e Entity) table() string {
	switch e {
	case EntityModule:
		return "modules"
	case EntityPart:
		return "module_parts"
	case EntityUnit:
		return "shelving_units"
	default:
		return "shelves"
	}
}

func (e Entity) valid() bool {
	switch e {
	case EntityModule, EntityPart, EntityUnit, EntityShelf:
		return true
	}
	return false
}

const schema = `
CREATE TABLE IF NOT EXISTS modules (
	id          INTEGER PRIMARY KEY,
	number      INTEGER NOT NULL,
	name        TEXT NOT NULL,
	range_start TEXT NOT NULL,
	range_end   TEXT NOT NULL,
	key_start   TEXT NOT NULL DEFAULT '',
	key_end     TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	is_deleted  INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS module_parts (
	id          INTEGER PRIMARY KEY,
	module_id   INTEGER NOT NULL REFERENCES modules(id),
	side        TEXT NOT NULL,
	range_start TEXT NOT NULL,
	range_end   TEXT NOT NULL,
	key_start   TEXT NOT NULL DEFAULT '',
	key_end     TEXT NOT NULL DEFAULT '',
	is_active   INTEGER NOT NULL DEFAULT 1,
	is_deleted  INTEGER NOT NULL DEFAULT 0,
	updated_at  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS shelving_units (
	id             INTEGER PRIMARY KEY,
	module_part_id INTEGER NOT NULL REFERENCES module_parts(id),
	name           TEXT NOT NULL,
	range_start    TEXT NOT NULL,
	range_end      TEXT NOT NULL,
	key_start      TEXT NOT NULL DEFAULT '',
	key_end        TEXT NOT NULL DEFAULT '',
	is_active      INTEGER NOT NULL DEFAULT 1,
	is_deleted     INTEGER NOT NULL DEFAULT 0,
	updated_at     INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS shelves (
	id               INTEGER PRIMARY KEY,
	shelving_unit_id INTEGER NOT NULL REFERENCES shelving_units(id),
	number           INTEGER NOT NULL,
	range_start      TEXT NOT NULL,
	range_end        TEXT NOT NULL,
	key_start        TEXT NOT NULL DEFAULT '',
	key_end          TEXT NOT NULL DEFAULT '',
	image_path       TEXT,
	is_active        INTEGER NOT NULL DEFAULT 1,
	is_deleted       INTEGER NOT NULL DEFAULT 0,
	updated_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shelves_keys ON shelves(key_start, key_end);
CREATE TABLE IF NOT EXISTS range_changes (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	entity       TEXT NOT NULL,
	entity_id    INTEGER NOT NULL,
	action       TEXT NOT NULL,
	before_state TEXT NOT NULL,
	after_state  TEXT NOT NULL,
	changed_at   INTEGER NOT NULL
);`

// Store wraps the SQLite database holding the shelf structure.
type Store struct {
	db     *sql.DB
	parser *callnum.Parser
}

// Open opens (or creates) the database at path and ensures the schema exists.
// A nil parser means the default country whitelist.
func Open(path string, p *callnum.Parser) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	if p == nil {
		p = callnum.NewParser()
	}
	return &Store{db: db, parser: p}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Parser returns the parser used to compute keys.
func (s *Store) Parser() *callnum.Parser { return s.parser }

// withTx runs fn in a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
