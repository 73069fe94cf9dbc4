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
	likeColumns = `id, author_id, object_type, object_id, published`

	sqlInsertLike          = `INSERT INTO likes(` + likeColumns + `) VALUES (?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`
	sqlSelectLikesByObject = `SELECT ` + likeColumns + ` FROM likes WHERE object_type = ? AND object_id = ? ORDER BY published DESC`
	sqlSelectLikesByAuthor = `SELECT ` + likeColumns + ` FROM likes WHERE author_id = ? ORDER BY published DESC`
	sqlCountLikesByObject  = `SELECT COUNT(*) FROM likes WHERE object_type = ? AND object_id = ?`
)

// InsertLike stores l unless (object, author, object type) already exists.
func (db *DB) InsertLike(ctx context.Context, l *domain.Like) (bool, error) {
	if l.Id == uuid.Nil {
		l.Id = uuid.New()
	}
	if l.Published.IsZero() {
		l.Published = time.Now()
	}
	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertLike, l.Id, l.AuthorId, l.ObjectType, l.ObjectId, l.Published)
		if err != nil {
			return err
		}
		created, err = inserted(res)
		return err
	})
	return created, errors.Wrap(err, "insert like")
}

func (db *DB) ReadLikesByObject(ctx context.Context, objectType domain.ObjectType, objectId string) ([]domain.Like, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectLikesByObject, objectType, objectId)
	if err != nil {
		return nil, errors.Wrap(err, "select likes")
	}
	return collectLikes(rows)
}

func (db *DB) ReadLikesByAuthor(ctx context.Context, authorId uuid.UUID) ([]domain.Like, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectLikesByAuthor, authorId)
	if err != nil {
		return nil, errors.Wrap(err, "select liked")
	}
	return collectLikes(rows)
}

func (db *DB) CountLikesByObject(ctx context.Context, objectType domain.ObjectType, objectId string) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, sqlCountLikesByObject, objectType, objectId).Scan(&n)
	return n, errors.Wrap(err, "count likes")
}

func collectLikes(rows *sql.Rows) ([]domain.Like, error) {
	defer rows.Close()
	var likes []domain.Like
	for rows.Next() {
		var l domain.Like
		if err := rows.Scan(&l.Id, &l.AuthorId, &l.ObjectType, &l.ObjectId, &l.Published); err != nil {
			return likes, err
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}
