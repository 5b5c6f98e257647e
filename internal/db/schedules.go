package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shophours/internal/hours"
)

// GetSchedule loads the weekly schedule of a shop. Unknown shops yield
// hours.ErrScheduleNotFound.
func (db *DB) GetSchedule(ctx context.Context, shopID string) (hours.WeeklySchedule, error) {
	var timeZone string
	err := db.QueryRowContext(ctx, `SELECT time_zone FROM shop_schedules WHERE shop_id = ?`, shopID).Scan(&timeZone)
	if errors.Is(err, sql.ErrNoRows) {
		return hours.WeeklySchedule{}, hours.ErrScheduleNotFound
	}
	if err != nil {
		return hours.WeeklySchedule{}, fmt.Errorf("query schedule: %w", err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT day_of_week, is_open, open_time, close_time, is_24_hours, break_start, break_end, special_note
		FROM shop_schedule_days
		WHERE shop_id = ?
		ORDER BY day_of_week`, shopID)
	if err != nil {
		return hours.WeeklySchedule{}, fmt.Errorf("query schedule days: %w", err)
	}
	defer rows.Close()

	var days []hours.BackendDay
	for rows.Next() {
		var (
			d                                         hours.BackendDay
			openTime, closeTime, breakStart, breakEnd sql.NullString
			note                                      sql.NullString
		)
		if err := rows.Scan(&d.DayOfWeek, &d.IsOpen, &openTime, &closeTime, &d.Is24Hours, &breakStart, &breakEnd, &note); err != nil {
			return hours.WeeklySchedule{}, fmt.Errorf("scan schedule day: %w", err)
		}
		d.OpenTime = openTime.String
		d.CloseTime = closeTime.String
		d.BreakStart = breakStart.String
		d.BreakEnd = breakEnd.String
		d.SpecialNote = note.String
		days = append(days, d)
	}
	if err := rows.Err(); err != nil {
		return hours.WeeklySchedule{}, fmt.Errorf("iterate schedule days: %w", err)
	}

	return hours.FromBackendFormat(timeZone, days)
}

// SaveSchedule replaces the full week of a shop in one transaction.
func (db *DB) SaveSchedule(ctx context.Context, shopID string, schedule hours.WeeklySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO shop_schedules (shop_id, time_zone, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(shop_id) DO UPDATE SET
			time_zone = excluded.time_zone,
			updated_at = excluded.updated_at`,
		shopID, schedule.TimeZone, now, now)
	if err != nil {
		return fmt.Errorf("upsert schedule: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO shop_schedule_days
			(shop_id, day_of_week, is_open, open_time, close_time, is_24_hours, break_start, break_end, special_note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(shop_id, day_of_week) DO UPDATE SET
			is_open = excluded.is_open,
			open_time = excluded.open_time,
			close_time = excluded.close_time,
			is_24_hours = excluded.is_24_hours,
			break_start = excluded.break_start,
			break_end = excluded.break_end,
			special_note = excluded.special_note`)
	if err != nil {
		return fmt.Errorf("prepare schedule day: %w", err)
	}
	defer stmt.Close()

	for _, d := range hours.ToBackendFormat(schedule) {
		_, err := stmt.ExecContext(ctx, shopID, d.DayOfWeek, d.IsOpen,
			nullString(d.OpenTime), nullString(d.CloseTime), d.Is24Hours,
			nullString(d.BreakStart), nullString(d.BreakEnd), nullString(d.SpecialNote))
		if err != nil {
			return fmt.Errorf("upsert day %d: %w", d.DayOfWeek, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schedule: %w", err)
	}
	db.logger.Debug().Str("shop_id", shopID).Msg("Schedule saved")
	return nil
}

// ListShopIDs returns every shop with a stored schedule.
func (db *DB) ListShopIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT shop_id FROM shop_schedules ORDER BY shop_id`)
	if err != nil {
		return nil, fmt.Errorf("query shops: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
