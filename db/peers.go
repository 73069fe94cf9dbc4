package db

import (
	"context"
	"database/sql"

	"github.com/deemkeen/copse/domain"
	"github.com/pkg/errors"
)

const (
	// A known base url keeps its stored id since remote authors reference
	// it; a known id may move to a new base url.
	sqlUpsertPeer = `INSERT INTO peers(id, name, base_url, enabled) VALUES (?, ?, ?, ?)
		ON CONFLICT(base_url) DO UPDATE SET name = excluded.name, enabled = excluded.enabled
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, base_url = excluded.base_url, enabled = excluded.enabled
		RETURNING id`
)

// UpsertPeers mirrors the configured registry into the peers table so that
// remote authors can reference their owner. Credentials are never stored.
// The returned peers carry the ids the table holds them under.
func (db *DB) UpsertPeers(ctx context.Context, peers []domain.Peer) ([]domain.Peer, error) {
	stored := make([]domain.Peer, len(peers))
	err := db.wrapTransaction(ctx, func(tx *sql.Tx) error {
		for i, p := range peers {
			if err := tx.QueryRowContext(ctx, sqlUpsertPeer, p.Id, p.Name, p.BaseURL, p.Enabled).Scan(&p.Id); err != nil {
				return errors.Wrapf(err, "upsert peer %s", p.BaseURL)
			}
			stored[i] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (db *DB) CountPeers(ctx context.Context) (int, error) {
	var n int
	err := db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM peers`).Scan(&n)
	return n, errors.Wrap(err, "count peers")
}
