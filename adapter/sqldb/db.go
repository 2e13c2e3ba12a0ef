package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

type Repository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

func New(db *sql.DB, dialect Dialect) *Repository {
	var format sq.PlaceholderFormat = sq.Dollar
	if dialect == SQLite {
		format = sq.Question
	}
	return &Repository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(format),
		now:     func() time.Time { return time.Now() },
	}
}

// Open connects to dbURL and ensures the schema. postgres:// and postgresql:// URLs use
// lib/pq; sqlite: URLs and bare *.db paths use the embedded driver.
func Open(ctx context.Context, dbURL string) (*Repository, error) {
	dialect, dsn, err := parseURL(dbURL)
	if err != nil {
		return nil, err
	}

	var db *sql.DB
	switch dialect {
	case SQLite:
		if dir := filepath.Dir(sqlitePath(dsn)); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating database dir: %w", err)
			}
		}
		db, err = sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite db: %w", err)
		}
		db.SetMaxOpenConns(1)
	default:
		db, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening postgres db: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s: %w", dialect, err)
	}
	r := New(db, dialect)
	if err := r.Ensure(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) Dialect() Dialect { return r.dialect }

func parseURL(dbURL string) (Dialect, string, error) {
	u := strings.TrimSpace(dbURL)
	switch {
	case u == "":
		return 0, "", fmt.Errorf("empty database url")
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return Postgres, u, nil
	case strings.HasPrefix(u, "sqlite://"):
		return SQLite, sqliteDSN(strings.TrimPrefix(u, "sqlite://")), nil
	case strings.HasPrefix(u, "sqlite:"):
		return SQLite, sqliteDSN(strings.TrimPrefix(u, "sqlite:")), nil
	case strings.HasPrefix(u, "file:"), strings.HasSuffix(u, ".db"), strings.HasSuffix(u, ".sqlite"):
		return SQLite, sqliteDSN(u), nil
	}
	return 0, "", fmt.Errorf("unsupported database url %q", dbURL)
}

// sqliteDSN enables foreign keys and makes the driver store times in a sortable layout.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func sqlitePath(dsn string) string {
	p := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return p
}

// stamp returns the current time normalized for storage.
func (r *Repository) stamp() time.Time {
	return r.now().UTC().Truncate(time.Microsecond)
}

func utc(t time.Time) time.Time { return t.UTC() }

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Truncate(time.Microsecond)
}

func stringArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
