package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	authorColumns = `id, peer_id, COALESCE(extern_id, ''), COALESCE(username, ''), COALESCE(password_hash, ''),
		remote_name, github, profile_image, is_approved, created_at`

	sqlInsertLocalAuthor = `INSERT INTO authors(id, username, password_hash, github, profile_image, is_approved, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	sqlInsertRemoteAuthor = `INSERT INTO authors(id, peer_id, extern_id, remote_name, is_approved, created_at)
		VALUES (?, ?, ?, ?, 1, ?) ON CONFLICT DO NOTHING`
	sqlSelectAuthorById       = `SELECT ` + authorColumns + ` FROM authors WHERE id = ?`
	sqlSelectAuthorByUsername = `SELECT ` + authorColumns + ` FROM authors WHERE username = ?`
	sqlSelectRemoteAuthor     = `SELECT ` + authorColumns + ` FROM authors WHERE peer_id = ? AND extern_id = ?`
	sqlSelectAuthorByExternId = `SELECT ` + authorColumns + ` FROM authors WHERE extern_id = ? ORDER BY created_at LIMIT 1`
	sqlSelectLocalAuthors     = `SELECT ` + authorColumns + ` FROM authors WHERE peer_id IS NULL ORDER BY created_at, id LIMIT ? OFFSET ?`
	sqlSelectAllAuthors       = `SELECT ` + authorColumns + ` FROM authors ORDER BY created_at, id LIMIT ? OFFSET ?`
	sqlCountLocalAuthors      = `SELECT COUNT(*) FROM authors WHERE peer_id IS NULL`
	sqlCountAllAuthors        = `SELECT COUNT(*) FROM authors`
	sqlUpdateAuthorProfile    = `UPDATE authors SET github = ?, profile_image = ? WHERE id = ? AND peer_id IS NULL`
	sqlUpdateRemoteName       = `UPDATE authors SET remote_name = ? WHERE id = ? AND peer_id IS NOT NULL`
	sqlApproveAuthor          = `UPDATE authors SET is_approved = 1 WHERE id = ? AND peer_id IS NULL`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAuthor(row rowScanner) (*domain.Author, error) {
	var a domain.Author
	var peerId uuid.NullUUID
	if err := row.Scan(&a.Id, &peerId, &a.ExternId, &a.Username, &a.PasswordHash,
		&a.RemoteName, &a.Github, &a.ProfileImage, &a.IsApproved, &a.CreatedAt); err != nil {
		return nil, err
	}
	if peerId.Valid {
		id := peerId.UUID
		a.PeerId = &id
	}
	return &a, nil
}

// CreateLocalAuthor stores a new local author. A taken username is a conflict.
func (db *DB) CreateLocalAuthor(ctx context.Context, a *domain.Author) error {
	if a.Id == uuid.Nil {
		a.Id = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if err := a.Validate(); err != nil {
		return errors.Wrap(domain.ErrMalformed, err.Error())
	}
	if a.IsRemote() {
		return errors.Wrap(domain.ErrMalformed, "remote author passed to CreateLocalAuthor")
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertLocalAuthor,
			a.Id, a.Username, a.PasswordHash, a.Github, a.ProfileImage, a.IsApproved, a.CreatedAt)
		if isUniqueViolation(err) {
			return errors.Wrapf(domain.ErrConflict, "username %s", a.Username)
		}
		return err
	})
}

// GetOrCreateRemoteAuthor returns the cached author for (peer, externId),
// creating the placeholder if needed. Concurrent callers converge on one row.
func (db *DB) GetOrCreateRemoteAuthor(ctx context.Context, peerId uuid.UUID, externId, name string) (*domain.Author, bool, error) {
	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertRemoteAuthor, uuid.New(), peerId, externId, name, time.Now())
		if err != nil {
			return err
		}
		created, err = inserted(res)
		return err
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "insert remote author")
	}
	a, err := db.ReadRemoteAuthor(ctx, peerId, externId)
	return a, created, err
}

func (db *DB) ReadAuthorById(ctx context.Context, id uuid.UUID) (*domain.Author, error) {
	a, err := scanAuthor(db.db.QueryRowContext(ctx, sqlSelectAuthorById, id))
	if err != nil {
		return nil, notFound(err, "author "+id.String())
	}
	return a, nil
}

func (db *DB) ReadAuthorByUsername(ctx context.Context, username string) (*domain.Author, error) {
	a, err := scanAuthor(db.db.QueryRowContext(ctx, sqlSelectAuthorByUsername, username))
	if err != nil {
		return nil, notFound(err, "author "+username)
	}
	return a, nil
}

func (db *DB) ReadRemoteAuthor(ctx context.Context, peerId uuid.UUID, externId string) (*domain.Author, error) {
	a, err := scanAuthor(db.db.QueryRowContext(ctx, sqlSelectRemoteAuthor, peerId, externId))
	if err != nil {
		return nil, notFound(err, "remote author "+externId)
	}
	return a, nil
}

// ReadAuthorByExternId finds a cached remote author by extern id on any peer.
func (db *DB) ReadAuthorByExternId(ctx context.Context, externId string) (*domain.Author, error) {
	a, err := scanAuthor(db.db.QueryRowContext(ctx, sqlSelectAuthorByExternId, externId))
	if err != nil {
		return nil, notFound(err, "author with extern id "+externId)
	}
	return a, nil
}

// ReadAuthors lists local authors, or every author when includeRemote is set.
func (db *DB) ReadAuthors(ctx context.Context, includeRemote bool, limit, offset int) ([]domain.Author, error) {
	query := sqlSelectLocalAuthors
	if includeRemote {
		query = sqlSelectAllAuthors
	}
	rows, err := db.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select authors")
	}
	return collectAuthors(rows)
}

func (db *DB) CountAuthors(ctx context.Context, includeRemote bool) (int, error) {
	query := sqlCountLocalAuthors
	if includeRemote {
		query = sqlCountAllAuthors
	}
	var n int
	err := db.db.QueryRowContext(ctx, query).Scan(&n)
	return n, errors.Wrap(err, "count authors")
}

func (db *DB) UpdateAuthorProfile(ctx context.Context, id uuid.UUID, github, profileImage string) error {
	return db.execOne(ctx, sqlUpdateAuthorProfile, "author "+id.String(), github, profileImage, id)
}

// RefreshRemoteName updates the cached display name of a remote author.
func (db *DB) RefreshRemoteName(ctx context.Context, id uuid.UUID, name string) error {
	return db.execOne(ctx, sqlUpdateRemoteName, "remote author "+id.String(), name, id)
}

func (db *DB) ApproveAuthor(ctx context.Context, id uuid.UUID) error {
	return db.execOne(ctx, sqlApproveAuthor, "author "+id.String(), id)
}

// execOne runs a single-row update and maps zero affected rows to NotFound.
func (db *DB) execOne(ctx context.Context, query, what string, args ...any) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		ok, err := inserted(res)
		if err != nil {
			return err
		}
		if !ok {
			return errors.Wrap(domain.ErrNotFound, what)
		}
		return nil
	})
}

func collectAuthors(rows *sql.Rows) ([]domain.Author, error) {
	defer rows.Close()
	var authors []domain.Author
	for rows.Next() {
		a, err := scanAuthor(rows)
		if err != nil {
			return authors, err
		}
		authors = append(authors, *a)
	}
	return authors, rows.Err()
}
