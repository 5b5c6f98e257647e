package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shophours/internal/hours"
)

// LoadOverride returns the latest override record of a shop, or nil when
// none was ever set.
func (db *DB) LoadOverride(ctx context.Context, shopID string) (*hours.Override, error) {
	var (
		o                    hours.Override
		reason, actor        sql.NullString
		clearedBy            sql.NullString
		expiresAt, clearedAt sql.NullTime
	)
	err := db.QueryRowContext(ctx, `
		SELECT id, shop_id, is_forced_open, reason, actor, set_at, active, expires_at, cleared_at, cleared_by
		FROM shop_overrides
		WHERE shop_id = ?`, shopID).
		Scan(&o.ID, &o.ShopID, &o.IsForcedOpen, &reason, &actor, &o.SetAt, &o.Active, &expiresAt, &clearedAt, &clearedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query override: %w", err)
	}

	o.Reason = reason.String
	o.Actor = actor.String
	o.ClearedBy = clearedBy.String
	o.ExpiresAt = timePtr(expiresAt)
	o.ClearedAt = timePtr(clearedAt)
	return &o, nil
}

// SaveOverride upserts the override record of its shop.
func (db *DB) SaveOverride(ctx context.Context, o hours.Override) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO shop_overrides
			(shop_id, id, is_forced_open, reason, actor, set_at, active, expires_at, cleared_at, cleared_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id) DO UPDATE SET
			id = excluded.id,
			is_forced_open = excluded.is_forced_open,
			reason = excluded.reason,
			actor = excluded.actor,
			set_at = excluded.set_at,
			active = excluded.active,
			expires_at = excluded.expires_at,
			cleared_at = excluded.cleared_at,
			cleared_by = excluded.cleared_by`,
		o.ShopID, o.ID, o.IsForcedOpen, nullString(o.Reason), nullString(o.Actor), o.SetAt.UTC(),
		o.Active, nullTime(o.ExpiresAt), nullTime(o.ClearedAt), nullString(o.ClearedBy))
	if err != nil {
		return fmt.Errorf("upsert override: %w", err)
	}
	return nil
}
