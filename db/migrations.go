package db

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog/log"
)

const (
	sqlCreatePeersTable = `CREATE TABLE IF NOT EXISTS peers (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		base_url TEXT UNIQUE NOT NULL,
		enabled INTEGER NOT NULL DEFAULT 1
	)`

	sqlCreateAuthorsTable = `CREATE TABLE IF NOT EXISTS authors (
		id TEXT NOT NULL PRIMARY KEY,
		peer_id TEXT REFERENCES peers(id),
		extern_id TEXT,
		username TEXT UNIQUE,
		password_hash TEXT,
		remote_name TEXT NOT NULL DEFAULT '',
		github TEXT NOT NULL DEFAULT '',
		profile_image TEXT NOT NULL DEFAULT '',
		is_approved INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(peer_id, extern_id),
		CHECK (
			(peer_id IS NULL AND extern_id IS NULL AND username IS NOT NULL AND password_hash IS NOT NULL)
			OR (peer_id IS NOT NULL AND extern_id IS NOT NULL AND username IS NULL AND password_hash IS NULL)
		)
	)`

	sqlCreateFollowsTable = `CREATE TABLE IF NOT EXISTS follows (
		follower_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		target_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(follower_id, target_id)
	)`

	sqlCreatePostsTable = `CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		extern_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT '',
		origin TEXT NOT NULL DEFAULT '',
		content_type TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		visibility TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		published TIMESTAMP NOT NULL,
		UNIQUE(author_id, extern_id)
	)`

	sqlCreateCommentsTable = `CREATE TABLE IF NOT EXISTS comments (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		extern_id TEXT,
		comment TEXT NOT NULL,
		content_type TEXT NOT NULL,
		published TIMESTAMP NOT NULL,
		UNIQUE(comment, content_type, author_id, post_id, extern_id)
	)`

	sqlCreateLikesTable = `CREATE TABLE IF NOT EXISTS likes (
		id TEXT NOT NULL PRIMARY KEY,
		author_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		object_type TEXT NOT NULL CHECK (object_type IN ('post', 'comment')),
		object_id TEXT NOT NULL,
		published TIMESTAMP NOT NULL,
		UNIQUE(object_id, author_id, object_type)
	)`

	sqlCreateNotificationsTable = `CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		recipient_id TEXT NOT NULL REFERENCES authors(id) ON DELETE CASCADE,
		type TEXT NOT NULL,
		actor_ref TEXT NOT NULL DEFAULT '',
		data TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0
	)`

	sqlCreateIndices = `
		CREATE INDEX IF NOT EXISTS idx_authors_extern_id ON authors(extern_id);
		CREATE INDEX IF NOT EXISTS idx_follows_target_id ON follows(target_id);
		CREATE INDEX IF NOT EXISTS idx_posts_author_id ON posts(author_id);
		CREATE INDEX IF NOT EXISTS idx_posts_extern_id ON posts(extern_id);
		CREATE INDEX IF NOT EXISTS idx_posts_published ON posts(published DESC);
		CREATE INDEX IF NOT EXISTS idx_comments_post_id ON comments(post_id);
		CREATE INDEX IF NOT EXISTS idx_likes_object ON likes(object_type, object_id);
		CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, created_at DESC);
	`
)

// RunMigrations creates all tables and indices.
func (db *DB) RunMigrations(ctx context.Context) error {
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		tables := []struct {
			sql  string
			name string
		}{
			{sqlCreatePeersTable, "peers"},
			{sqlCreateAuthorsTable, "authors"},
			{sqlCreateFollowsTable, "follows"},
			{sqlCreatePostsTable, "posts"},
			{sqlCreateCommentsTable, "comments"},
			{sqlCreateLikesTable, "likes"},
			{sqlCreateNotificationsTable, "notifications"},
		}
		for _, table := range tables {
			if err := createTableIfNotExists(tx, table.sql, table.name); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(sqlCreateIndices); err != nil {
			log.Error().Err(err).Msg("Failed to create indices")
			return err
		}
		log.Info().Int("tables", len(tables)).Msg("Database migrations complete")
		return nil
	})
}

func createTableIfNotExists(tx *sql.Tx, createSQL string, tableName string) error {
	if _, err := tx.Exec(createSQL); err != nil {
		log.Error().Err(err).Str("table", tableName).Msg("Failed to create table")
		return err
	}
	return nil
}
