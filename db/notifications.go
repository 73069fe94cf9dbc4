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
	sqlInsertNotification = `INSERT INTO notifications(id, recipient_id, type, actor_ref, data, created_at, is_read)
		VALUES (?, ?, ?, ?, ?, ?, 0)`
	sqlSelectNotifications = `SELECT id, recipient_id, type, actor_ref, data, created_at, is_read FROM notifications
		WHERE recipient_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`
	sqlCountNotifications  = `SELECT COUNT(*) FROM notifications WHERE recipient_id = ?`
	sqlClearNotifications  = `DELETE FROM notifications WHERE recipient_id = ?`
	sqlDeleteFollowRequest = `DELETE FROM notifications WHERE recipient_id = ? AND type = 'follow' AND actor_ref = ?`
)

func (db *DB) InsertNotification(ctx context.Context, n *domain.Notification) error {
	if n.Id == uuid.Nil {
		n.Id = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	return db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlInsertNotification, n.Id, n.RecipientId, n.Type, n.ActorRef, string(n.Data), n.CreatedAt)
		return errors.Wrap(err, "insert notification")
	})
}

func (db *DB) ReadNotifications(ctx context.Context, recipientId uuid.UUID, limit, offset int) ([]domain.Notification, error) {
	rows, err := db.db.QueryContext(ctx, sqlSelectNotifications, recipientId, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var data string
		if err := rows.Scan(&n.Id, &n.RecipientId, &n.Type, &n.ActorRef, &data, &n.CreatedAt, &n.IsRead); err != nil {
			return out, err
		}
		n.Data = []byte(data)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (db *DB) CountNotifications(ctx context.Context, recipientId uuid.UUID) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, sqlCountNotifications, recipientId).Scan(&n)
	return n, errors.Wrap(err, "count notifications")
}

// ClearNotifications deletes every notification of recipient and returns how many went.
func (db *DB) ClearNotifications(ctx context.Context, recipientId uuid.UUID) (int64, error) {
	var n int64
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlClearNotifications, recipientId)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, errors.Wrap(err, "clear notifications")
}

// DeleteFollowRequest dismisses the follow notification raised by actorRef.
func (db *DB) DeleteFollowRequest(ctx context.Context, recipientId uuid.UUID, actorRef string) error {
	return db.execOne(ctx, sqlDeleteFollowRequest, "follow request from "+actorRef, recipientId, actorRef)
}
