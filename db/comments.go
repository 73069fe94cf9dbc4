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
	commentColumns = `id, post_id, author_id, extern_id, comment, content_type, published`

	sqlInsertComment         = `INSERT INTO comments(` + commentColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`
	sqlSelectCommentById     = `SELECT ` + commentColumns + ` FROM comments WHERE id = ?`
	sqlSelectCommentByExtern = `SELECT ` + commentColumns + ` FROM comments WHERE extern_id = ? ORDER BY published LIMIT 1`
	sqlSelectCommentsByPost  = `SELECT ` + commentColumns + ` FROM comments WHERE post_id = ? ORDER BY published DESC, id LIMIT ? OFFSET ?`
	sqlCountCommentsByPost   = `SELECT COUNT(*) FROM comments WHERE post_id = ?`
)

func scanComment(row rowScanner) (*domain.Comment, error) {
	var c domain.Comment
	var externId sql.NullString
	if err := row.Scan(&c.Id, &c.PostId, &c.AuthorId, &externId, &c.Comment, &c.ContentType, &c.Published); err != nil {
		return nil, err
	}
	c.ExternId = stringPtr(externId)
	return &c, nil
}

// InsertComment stores c unless the same (comment, content type, author,
// post, extern id) already exists. The post's comment count is kept in step.
func (db *DB) InsertComment(ctx context.Context, c *domain.Comment) (bool, error) {
	if c.Id == uuid.Nil {
		c.Id = uuid.New()
	}
	if c.Published.IsZero() {
		c.Published = time.Now()
	}
	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertComment, c.Id, c.PostId, c.AuthorId, nullString(c.ExternId),
			c.Comment, c.ContentType, c.Published)
		if err != nil {
			return err
		}
		created, err = inserted(res)
		if err != nil || !created {
			return err
		}
		_, err = tx.ExecContext(ctx, sqlUpdatePostCommentCount, c.PostId, c.PostId)
		return err
	})
	return created, errors.Wrap(err, "insert comment")
}

func (db *DB) ReadCommentById(ctx context.Context, id uuid.UUID) (*domain.Comment, error) {
	c, err := scanComment(db.db.QueryRowContext(ctx, sqlSelectCommentById, id))
	if err != nil {
		return nil, notFound(err, "comment "+id.String())
	}
	return c, nil
}

// ReadCommentByAnyExternId finds a materialized remote comment by the id its
// home peer gave it.
func (db *DB) ReadCommentByAnyExternId(ctx context.Context, externId string) (*domain.Comment, error) {
	c, err := scanComment(db.db.QueryRowContext(ctx, sqlSelectCommentByExtern, externId))
	if err != nil {
		return nil, notFound(err, "comment with extern id "+externId)
	}
	return c, nil
}

func (db *DB) ReadCommentsByPost(ctx context.Context, postId uuid.UUID, limit, offset int) ([]domain.Comment, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectCommentsByPost, postId, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select comments")
	}
	defer rows.Close()

	var comments []domain.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return comments, err
		}
		comments = append(comments, *c)
	}
	return comments, rows.Err()
}

func (db *DB) CountCommentsByPost(ctx context.Context, postId uuid.UUID) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, sqlCountCommentsByPost, postId).Scan(&n)
	return n, errors.Wrap(err, "count comments")
}
