package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/deemkeen/copse/domain"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

const (
	postColumns = `id, author_id, extern_id, title, description, source, origin, content_type, content, visibility, count, published`

	sqlInsertPost = `INSERT INTO posts(` + postColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT DO NOTHING`
	sqlUpdatePost = `UPDATE posts SET title = ?, description = ?, source = ?, origin = ?, content_type = ?, content = ?, visibility = ?
		WHERE id = ?`
	sqlDeletePost              = `DELETE FROM posts WHERE id = ?`
	sqlSelectPostById          = `SELECT ` + postColumns + ` FROM posts WHERE id = ?`
	sqlSelectPostByExternId    = `SELECT ` + postColumns + ` FROM posts WHERE author_id = ? AND extern_id = ?`
	sqlSelectPostByAnyExternId = `SELECT ` + postColumns + ` FROM posts WHERE extern_id = ? ORDER BY published LIMIT 1`
	sqlUpdatePostCommentCount  = `UPDATE posts SET count = (SELECT COUNT(*) FROM comments WHERE post_id = ?) WHERE id = ?`
)

func scanPost(row rowScanner) (*domain.Post, error) {
	var p domain.Post
	var externId sql.NullString
	if err := row.Scan(&p.Id, &p.AuthorId, &externId, &p.Title, &p.Description, &p.Source, &p.Origin,
		&p.ContentType, &p.Content, &p.Visibility, &p.Count, &p.Published); err != nil {
		return nil, err
	}
	p.ExternId = stringPtr(externId)
	return &p, nil
}

// InsertPost stores p unless (author, extern id) is already taken. The
// returned flag is false on a duplicate delivery.
func (db *DB) InsertPost(ctx context.Context, p *domain.Post) (bool, error) {
	if p.Id == uuid.Nil {
		p.Id = uuid.New()
	}
	if p.Published.IsZero() {
		p.Published = time.Now()
	}
	var created bool
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlInsertPost, p.Id, p.AuthorId, nullString(p.ExternId), p.Title, p.Description,
			p.Source, p.Origin, p.ContentType, p.Content, p.Visibility, p.Count, p.Published)
		if err != nil {
			return err
		}
		created, err = inserted(res)
		return err
	})
	return created, errors.Wrap(err, "insert post")
}

func (db *DB) UpdatePost(ctx context.Context, p *domain.Post) error {
	return db.execOne(ctx, sqlUpdatePost, "post "+p.Id.String(),
		p.Title, p.Description, p.Source, p.Origin, p.ContentType, p.Content, p.Visibility, p.Id)
}

func (db *DB) DeletePost(ctx context.Context, id uuid.UUID) error {
	return db.execOne(ctx, sqlDeletePost, "post "+id.String(), id)
}

func (db *DB) ReadPostById(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	p, err := scanPost(db.db.QueryRowContext(ctx, sqlSelectPostById, id))
	if err != nil {
		return nil, notFound(err, "post "+id.String())
	}
	return p, nil
}

// ReadPostByExternId finds a materialized post by its owner and extern id.
func (db *DB) ReadPostByExternId(ctx context.Context, authorId uuid.UUID, externId string) (*domain.Post, error) {
	p, err := scanPost(db.db.QueryRowContext(ctx, sqlSelectPostByExternId, authorId, externId))
	if err != nil {
		return nil, notFound(err, "post with extern id "+externId)
	}
	return p, nil
}

func (db *DB) ReadPostByAnyExternId(ctx context.Context, externId string) (*domain.Post, error) {
	p, err := scanPost(db.db.QueryRowContext(ctx, sqlSelectPostByAnyExternId, externId))
	if err != nil {
		return nil, notFound(err, "post with extern id "+externId)
	}
	return p, nil
}

// PostFilter narrows a post listing. An empty Visibilities slice matches
// nothing unless Viewer is set. Viewer selects what a local author may see
// across all authors: public posts, their own posts and the FRIENDS posts of
// mutual followers.
type PostFilter struct {
	AuthorId     *uuid.UUID
	Visibilities []domain.Visibility
	Viewer       *uuid.UUID
	LocalOnly    bool
}

const sqlViewerClause = `(visibility = ? OR author_id = ? OR (visibility = ? AND EXISTS(
		SELECT 1 FROM follows f1 INNER JOIN follows f2 ON f2.follower_id = f1.target_id AND f2.target_id = f1.follower_id
		WHERE f1.follower_id = ? AND f1.target_id = posts.author_id)))`

func (f PostFilter) empty() bool {
	return f.Viewer == nil && len(f.Visibilities) == 0
}

func (f PostFilter) where() (string, []any) {
	var clause string
	var args []any
	if f.Viewer != nil {
		clause = sqlViewerClause
		args = []any{string(domain.VisibilityPublic), *f.Viewer, string(domain.VisibilityFriends), *f.Viewer}
	} else {
		clause = `visibility IN (` + placeholders(len(f.Visibilities)) + `)`
		args = lo.Map(f.Visibilities, func(v domain.Visibility, _ int) any { return string(v) })
	}
	if f.AuthorId != nil {
		clause += ` AND author_id = ?`
		args = append(args, *f.AuthorId)
	}
	if f.LocalOnly {
		clause += ` AND extern_id IS NULL`
	}
	return clause, args
}

func (db *DB) ReadPosts(ctx context.Context, f PostFilter, limit, offset int) ([]domain.Post, error) {
	if f.empty() {
		return nil, nil
	}
	clause, args := f.where()
	args = append(args, limit, offset)
	rows, err := db.db.QueryContext(ctx, `SELECT `+postColumns+` FROM posts WHERE `+clause+
		` ORDER BY published DESC, id LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select posts")
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return posts, err
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func (db *DB) CountPosts(ctx context.Context, f PostFilter) (int, error) {
	if f.empty() {
		return 0, nil
	}
	clause, args := f.where()
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE `+clause, args...).Scan(&n)
	return n, errors.Wrap(err, "count posts")
}
