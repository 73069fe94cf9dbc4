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
	sqlInsertFollow = `INSERT INTO follows(follower_id, target_id, created_at) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`
	sqlDeleteFollow = `DELETE FROM follows WHERE follower_id = ? AND target_id = ?`
	sqlHasFollow    = `SELECT EXISTS(SELECT 1 FROM follows WHERE follower_id = ? AND target_id = ?)`

	sqlSelectFollowers = `SELECT ` + authorColumnsA + ` FROM follows f
		INNER JOIN authors a ON a.id = f.follower_id
		WHERE f.target_id = ? ORDER BY f.created_at`
	sqlSelectFollowing = `SELECT ` + authorColumnsA + ` FROM follows f
		INNER JOIN authors a ON a.id = f.target_id
		WHERE f.follower_id = ? ORDER BY f.created_at`
	sqlSelectFriends = `SELECT ` + authorColumnsA + ` FROM follows f
		INNER JOIN follows back ON back.follower_id = f.target_id AND back.target_id = f.follower_id
		INNER JOIN authors a ON a.id = f.target_id
		WHERE f.follower_id = ? ORDER BY f.created_at`

	authorColumnsA = `a.id, a.peer_id, COALESCE(a.extern_id, ''), COALESCE(a.username, ''), COALESCE(a.password_hash, ''),
		a.remote_name, a.github, a.profile_image, a.is_approved, a.created_at`
)

// InsertFollow adds the edge follower -> target and reports whether it was new.
func (db *DB) InsertFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error) {
	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertFollow, followerId, targetId, time.Now())
		if err != nil {
			return err
		}
		created, err = inserted(res)
		return err
	})
	return created, errors.Wrap(err, "insert follow")
}

// DeleteFollow removes the edge follower -> target and reports whether it existed.
func (db *DB) DeleteFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error) {
	var removed bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlDeleteFollow, followerId, targetId)
		if err != nil {
			return err
		}
		removed, err = inserted(res)
		return err
	})
	return removed, errors.Wrap(err, "delete follow")
}

func (db *DB) HasFollow(ctx context.Context, followerId, targetId uuid.UUID) (bool, error) {
	var exists bool
	err := db.db.QueryRowContext(ctx, sqlHasFollow, followerId, targetId).Scan(&exists)
	return exists, errors.Wrap(err, "select follow")
}

// ReadFollowers lists the authors with an edge into target.
func (db *DB) ReadFollowers(ctx context.Context, targetId uuid.UUID) ([]domain.Author, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectFollowers, targetId)
	if err != nil {
		return nil, errors.Wrap(err, "select followers")
	}
	return collectAuthors(rows)
}

// ReadFollowing lists the authors follower has an edge to.
func (db *DB) ReadFollowing(ctx context.Context, followerId uuid.UUID) ([]domain.Author, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectFollowing, followerId)
	if err != nil {
		return nil, errors.Wrap(err, "select following")
	}
	return collectAuthors(rows)
}

// ReadMutuals lists the authors connected to id by edges in both directions.
func (db *DB) ReadMutuals(ctx context.Context, id uuid.UUID) ([]domain.Author, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectFriends, id)
	if err != nil {
		return nil, errors.Wrap(err, "select mutuals")
	}
	return collectAuthors(rows)
}
