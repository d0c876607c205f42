// Package sqlstore implements storage.Store over database/sql for SQLite
// (modernc.org/sqlite) and Postgres (pgx stdlib). Both share one schema and
// one set of queries written with ? placeholders.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"fortuna/internal/core"
	"fortuna/internal/storage"
)

// Dialect selects driver name and placeholder style.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) String() string { return string(d) }

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

// rebind rewrites ? placeholders to $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.Store = (*Store)(nil)

// OpenSQLite opens (creating if needed) the database file at dbPath and
// migrates it. A single connection serializes every unit of work in this
// process; BEGIN IMMEDIATE takes the write lock up front so other processes on
// the same file wait out busy_timeout instead of failing with SQLITE_BUSY.
func OpenSQLite(ctx context.Context, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"

	if err := RunMigrations(SQLite, dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "SQLite store ready", "path", dbPath)
	return &Store{db: db, dialect: SQLite}, nil
}

// OpenPostgres connects through the pgx stdlib driver and migrates the schema.
// Writers lock the rows they read with FOR UPDATE.
func OpenPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	if err := RunMigrations(Postgres, databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.InfoContext(ctx, "Postgres store ready")
	return &Store{db: db, dialect: Postgres}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, true, fn)
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.run(ctx, false, fn)
}

func (s *Store) run(ctx context.Context, readOnly bool, fn func(tx storage.Tx) error) error {
	opts := &sql.TxOptions{}
	if s.dialect == Postgres {
		opts.ReadOnly = readOnly
	}
	sqlTx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return core.Persistence("begin transaction", err)
	}

	t := &tx{tx: sqlTx, dialect: s.dialect, readOnly: readOnly}
	if err := fn(t); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return core.Persistence("commit transaction", err)
	}
	return nil
}

// translate maps driver constraint errors onto core error kinds.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w: %s", op, core.ErrDuplicateName, pgErr.ConstraintName)
		case "23503":
			return fmt.Errorf("%s: %w: %s", op, core.ErrInUse, pgErr.ConstraintName)
		}
		return core.Persistence(op, err)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%s: %w: %s", op, core.ErrDuplicateName, msg)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("%s: %w", op, core.ErrInUse)
	}
	return core.Persistence(op, err)
}
