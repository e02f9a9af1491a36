// Package pgstore is the PostgreSQL implementation of the board Store and Bus contracts.
//
// Changes are published by row triggers (see Schema) through LISTEN/NOTIFY, so every
// write, including writes made by other tools directly against the database, reaches
// every listening client.
package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dyluth/warren/pkg/board"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Store implements board.Store on a *sql.DB.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ board.Store = (*Store)(nil)

// New wraps an open database.
func New(db *sql.DB, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger.Named("pgstore")}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const selectRooms = `SELECT id, name, category, order_key, position_x, position_y, width, height, person, created_at FROM rooms`

func (s *Store) ListRooms(ctx context.Context) ([]board.Room, error) {
	rows, err := s.db.QueryContext(ctx, selectRooms)
	if err != nil {
		return nil, fmt.Errorf("failed to query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []board.Room
	for rows.Next() {
		var (
			r        board.Room
			category string
		)
		if err := rows.Scan(&r.ID, &r.Name, &category, &r.OrderKey, &r.PositionX, &r.PositionY,
			&r.Width, &r.Height, &r.Person, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		r.Category = board.Category(category)
		rooms = append(rooms, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}
	return rooms, nil
}

func (s *Store) ListStatuses(ctx context.Context) ([]board.RoomStatus, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT room_id, is_open, manual_override, last_updated FROM room_status`)
	if err != nil {
		return nil, fmt.Errorf("failed to query room statuses: %w", err)
	}
	defer rows.Close()

	var statuses []board.RoomStatus
	for rows.Next() {
		var st board.RoomStatus
		if err := rows.Scan(&st.RoomID, &st.IsOpen, &st.ManualOverride, &st.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan room status: %w", err)
		}
		st.LastUpdated = board.Timestamp(st.LastUpdated)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read room statuses: %w", err)
	}
	return statuses, nil
}

func (s *Store) ListConfigs(ctx context.Context) ([]board.DailyConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, weekday, activity, COALESCE(open_time, ''), COALESCE(close_time, '') FROM daily_configs`)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily configs: %w", err)
	}
	defer rows.Close()

	var configs []board.DailyConfig
	for rows.Next() {
		var c board.DailyConfig
		if err := rows.Scan(&c.ID, &c.RoomID, &c.Weekday, &c.Activity, &c.OpenTime, &c.CloseTime); err != nil {
			return nil, fmt.Errorf("failed to scan daily config: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read daily configs: %w", err)
	}
	return configs, nil
}

const settingsColumns = `id, night_mode_enabled, night_start, night_end, COALESCE(to_char(last_daily_reset, 'YYYY-MM-DD'), '')`

func scanSettings(row *sql.Row) (*board.AppSettings, error) {
	var st board.AppSettings
	if err := row.Scan(&st.ID, &st.NightModeEnabled, &st.NightStart, &st.NightEnd, &st.LastDailyReset); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) GetSettings(ctx context.Context) (*board.AppSettings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM app_settings WHERE id = $1`, board.SettingsID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, board.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return settings, nil
}

func (s *Store) InsertRoom(ctx context.Context, room board.Room) (*board.Room, error) {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = board.Timestamp(time.Now())
	}
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rooms (id, name, category, order_key, position_x, position_y, width, height, person, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		room.ID, room.Name, string(room.Category), room.OrderKey, room.PositionX, room.PositionY,
		room.Width, room.Height, room.Person, room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert room: %w", err)
	}
	return &room, nil
}

func (s *Store) UpsertStatuses(ctx context.Context, statuses []board.RoomStatus) error {
	if len(statuses) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO room_status (room_id, is_open, manual_override, last_updated)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (room_id) DO UPDATE SET
				is_open = EXCLUDED.is_open,
				manual_override = EXCLUDED.manual_override,
				last_updated = EXCLUDED.last_updated`)
		if err != nil {
			return fmt.Errorf("failed to prepare status upsert: %w", err)
		}
		defer stmt.Close()

		for _, st := range statuses {
			if _, err := stmt.ExecContext(ctx, st.RoomID, st.IsOpen, st.ManualOverride, st.LastUpdated); err != nil {
				return fmt.Errorf("failed to upsert status of room %s: %w", st.RoomID, err)
			}
		}
		return nil
	})
}

func (s *Store) UpsertConfigs(ctx context.Context, configs []board.DailyConfig) ([]board.DailyConfig, error) {
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid daily config: %w", err)
		}
	}

	stored := make([]board.DailyConfig, 0, len(configs))
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO daily_configs (id, room_id, weekday, activity, open_time, close_time)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''))
			ON CONFLICT (room_id, weekday) DO UPDATE SET
				activity = EXCLUDED.activity,
				open_time = EXCLUDED.open_time,
				close_time = EXCLUDED.close_time
			RETURNING id`)
		if err != nil {
			return fmt.Errorf("failed to prepare config upsert: %w", err)
		}
		defer stmt.Close()

		for _, c := range configs {
			id := c.ID
			if id == "" {
				id = uuid.New().String()
			}
			if err := stmt.QueryRowContext(ctx, id, c.RoomID, c.Weekday, c.Activity, c.OpenTime, c.CloseTime).Scan(&c.ID); err != nil {
				return fmt.Errorf("failed to upsert config %s: %w", c.Key(), err)
			}
			stored = append(stored, c)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *Store) UpdateRoomPosition(ctx context.Context, roomID string, x, y int) error {
	return s.updateRoom(ctx, roomID, `UPDATE rooms SET position_x = $2, position_y = $3 WHERE id = $1`, x, y)
}

func (s *Store) UpdateRoomSize(ctx context.Context, roomID string, width, height int) error {
	return s.updateRoom(ctx, roomID, `UPDATE rooms SET width = $2, height = $3 WHERE id = $1`, width, height)
}

func (s *Store) UpdateRoomOrder(ctx context.Context, roomID string, orderKey int) error {
	return s.updateRoom(ctx, roomID, `UPDATE rooms SET order_key = $2 WHERE id = $1`, orderKey)
}

func (s *Store) updateRoom(ctx context.Context, roomID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, append([]any{roomID}, args...)...)
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", roomID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update room %s: %w", roomID, err)
	}
	if n == 0 {
		return fmt.Errorf("room %s: %w", roomID, board.ErrNotFound)
	}
	return nil
}

// DeleteRoom relies on ON DELETE CASCADE for the status and configs.
func (s *Store) DeleteRoom(ctx context.Context, roomID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, roomID); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}
	return nil
}

func (s *Store) ClearScheduleTimes(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE daily_configs SET open_time = NULL, close_time = NULL WHERE open_time IS NOT NULL OR close_time IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("failed to clear schedule times: %w", err)
	}
	return nil
}

// ClaimDailyReset is a single conditional UPDATE, so the row lock taken by PostgreSQL makes
// the predicate and the write atomic. Concurrent callers for the same day see zero rows.
func (s *Store) ClaimDailyReset(ctx context.Context, day string) (*board.AppSettings, error) {
	settings, err := scanSettings(s.db.QueryRowContext(ctx, `
		UPDATE app_settings SET last_daily_reset = $2::date
		WHERE id = $1 AND (last_daily_reset IS NULL OR last_daily_reset <> $2::date)
		RETURNING `+settingsColumns,
		board.SettingsID, day))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily reset: %w", err)
	}
	return settings, nil
}

// Ping runs the cheapest query that touches a table, which is what keeps hosted databases
// from pausing an idle project.
func (s *Store) Ping(ctx context.Context) error {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM rooms LIMIT 1`).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("keep-alive query failed: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
