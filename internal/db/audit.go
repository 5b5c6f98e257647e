package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shophours/internal/events"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor,omitempty"`
	Payload   string    `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RecordEvent appends an event to the audit log. It is meant to be
// subscribed to the event bus.
func (db *DB) RecordEvent(e events.Event) error {
	_, err := db.Exec(`
		INSERT INTO audit_log (id, shop_id, event_type, actor, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.ShopID, e.Type, nullString(e.Actor), nullString(string(e.Payload)), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit entries of a shop first.
func (db *DB) ListAudit(ctx context.Context, shopID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, shop_id, event_type, actor, payload, created_at
		FROM audit_log
		WHERE shop_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, shopID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var (
			e              AuditEntry
			actor, payload sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ShopID, &e.EventType, &actor, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.Actor = actor.String
		e.Payload = payload.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
