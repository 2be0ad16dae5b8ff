package remote

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/shiftguard/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// Dialect selects the database/sql driver.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "pgx"
)

// schemaVersion is written to PRAGMA user_version on SQLite.
const schemaVersion = 1

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLStore keeps the document in a single row of a SQL table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	table   string
	key     string
	now     func() time.Time
}

// OpenSQL opens dsn with the given dialect and applies the schema.
//
// SQLite databases are configured with WAL mode, a 5-second busy timeout
// and a single open connection. Postgres connections use a small pool.
func OpenSQL(dialect Dialect, dsn, table, key string) (*SQLStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if key == "" {
		key = DefaultKey
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	switch dialect {
	case DialectSQLite:
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	case DialectPostgres:
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(time.Hour)
	default:
		db.Close()
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	s := &SQLStore{db: db, dialect: dialect, table: table, key: key, now: time.Now}
	if err := s.applySchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

// Healthy pings the database.
func (s *SQLStore) Healthy(ctx context.Context) bool {
	return s.db != nil && s.db.PingContext(ctx) == nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *SQLStore) applySchema() error {
	ddl := strings.ReplaceAll(schemaSQL, "{{table}}", s.table)
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if s.dialect != DialectSQLite {
		return nil
	}

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < schemaVersion {
		if _, err := s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}

// rebind rewrites $n placeholders for drivers that expect ?.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectSQLite {
		return query
	}
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '$' && i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
			b.WriteByte('?')
			for i+1 < len(query) && query[i+1] >= '0' && query[i+1] <= '9' {
				i++
			}
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Fetch reads the document row.
func (s *SQLStore) Fetch(ctx context.Context) (model.Document, bool, error) {
	query := s.rebind("SELECT payload FROM " + s.table + " WHERE id = $1")
	var payload string
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("sql fetch: %w", err)
	}
	doc, err := model.DecodeDocument([]byte(payload))
	if err != nil {
		return model.Document{}, false, err
	}
	return doc, true, nil
}

// Update rewrites the row if it exists.
func (s *SQLStore) Update(ctx context.Context, doc model.Document) (bool, error) {
	payload, err := model.EncodeDocument(doc)
	if err != nil {
		return false, err
	}
	query := s.rebind("UPDATE " + s.table + " SET payload = $1, updated_at = $2 WHERE id = $3")
	res, err := s.db.ExecContext(ctx, query, string(payload), s.now().UnixMilli(), s.key)
	if err != nil {
		return false, fmt.Errorf("sql update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sql update: %w", err)
	}
	return n > 0, nil
}

// Create inserts the row. A concurrent creator's row is overwritten.
func (s *SQLStore) Create(ctx context.Context, doc model.Document) error {
	payload, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	query := s.rebind("INSERT INTO " + s.table + " (id, payload, updated_at) VALUES ($1, $2, $3) " +
		"ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at")
	if _, err := s.db.ExecContext(ctx, query, s.key, string(payload), s.now().UnixMilli()); err != nil {
		return fmt.Errorf("sql create: %w", err)
	}
	return nil
}

// UpdatedAt returns the unix-millisecond stamp of the last write, or 0.
func (s *SQLStore) UpdatedAt(ctx context.Context) (int64, error) {
	query := s.rebind("SELECT updated_at FROM " + s.table + " WHERE id = $1")
	var updated int64
	err := s.db.QueryRowContext(ctx, query, s.key).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sql updated_at: %w", err)
	}
	return updated, nil
}
