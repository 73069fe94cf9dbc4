package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// DB is the node's durable store. All federation writes go through
// uniqueness-constrained inserts so concurrent deliveries converge.
type DB struct {
	db *sql.DB
}

const maxBusyRetries = 5

// Open opens (or creates) the sqlite database at path. ":memory:" yields a
// single-connection in-memory store, which is what the tests use.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		// pragmas in the DSN apply to every pooled connection
		dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)

		var journalMode string
		if err := sqlDB.QueryRow("PRAGMA journal_mode=WAL").Scan(&journalMode); err != nil {
			log.Warn().Err(err).Msg("Failed to enable WAL mode")
		} else {
			log.Debug().Str("mode", journalMode).Msg("Database journal mode")
		}
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
	}

	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, errors.Wrap(err, "enable foreign keys")
	}

	log.Info().Str("path", path).Msg("Database opened")
	return &DB{db: sqlDB}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// wrapTransaction runs f within a transaction, retrying from scratch while
// sqlite reports the database as busy.
func (db *DB) wrapTransaction(ctx context.Context, f func(tx *sql.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	var err error
	for attempt := 0; attempt < maxBusyRetries; attempt++ {
		var tx *sql.Tx
		tx, err = db.db.BeginTx(ctx, nil)
		if err != nil {
			log.Error().Err(err).Msg("error starting transaction")
			return err
		}
		err = f(tx)
		if err == nil {
			err = tx.Commit()
			if err == nil {
				return nil
			}
		} else {
			tx.Rollback()
		}
		if !isBusy(err) {
			return err
		}
		time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
	}
	log.Error().Err(err).Msg("transaction gave up on busy database")
	return err
}

func sqliteCode(err error) (int, bool) {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code(), true
	}
	return 0, false
}

func isBusy(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlitelib.SQLITE_BUSY || code == sqlitelib.SQLITE_LOCKED)
}

func isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	return ok && (code == sqlitelib.SQLITE_CONSTRAINT_UNIQUE || code == sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY)
}

// inserted reports whether an INSERT ... ON CONFLICT DO NOTHING wrote a row.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrap(domain.ErrNotFound, what)
	}
	return errors.Wrap(err, what)
}

// placeholders returns "?, ?, ?" for n arguments.
func placeholders(n int) string {
	return strings.Join(lo.Times(n, func(int) string { return "?" }), ", ")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
