// Package mutator implements every user-initiated change to the board.
//
// Each operation applies to the local store first, so the board reacts immediately, and
// only then writes to the Remote Store. What happens when the remote write fails depends
// on the operation: toggles and deletes are rolled back, bulk changes reload everything,
// and layout changes are fire-and-forget.
package mutator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/pkg/board"
)

var (
	// ErrEqualOrderKeys is returned by SwapPositions when both rooms hold the same order key,
	// including a room swapped with itself.
	ErrEqualOrderKeys = errors.New("rooms have equal order keys")

	// ErrUnknownRoom is returned when an operation names a room the local store does not hold.
	ErrUnknownRoom = errors.New("unknown room")
)

const (
	DefaultOrderIncrement = 100
	DefaultOrderBaseline  = 100
)

// Options tunes a Mutator. Zero values take the defaults.
type Options struct {
	OrderIncrement int
	OrderBaseline  int
	TaskTimeout    time.Duration
	Now            func() time.Time
}

// Mutator applies user changes locally and persists them remotely.
type Mutator struct {
	local  *store.Store
	remote board.Store
	logger *zap.Logger
	tasks  *Tasks

	increment int
	baseline  int
	now       func() time.Time
}

// New creates a Mutator over a local store and the Remote Store it mirrors.
func New(local *store.Store, remote board.Store, logger *zap.Logger, opts Options) *Mutator {
	if opts.OrderIncrement <= 0 {
		opts.OrderIncrement = DefaultOrderIncrement
	}
	if opts.OrderBaseline <= 0 {
		opts.OrderBaseline = DefaultOrderBaseline
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger = logger.Named("mutator")
	return &Mutator{
		local:     local,
		remote:    remote,
		logger:    logger,
		tasks:     NewTasks(logger, opts.TaskTimeout),
		increment: opts.OrderIncrement,
		baseline:  opts.OrderBaseline,
		now:       opts.Now,
	}
}

// Wait blocks until every detached remote write has finished.
func (m *Mutator) Wait() {
	m.tasks.Wait()
}

// Toggle flips a room open or closed and marks it manual, so automation leaves it alone.
// If the remote write fails the exact previous status is restored, unless something newer
// has replaced the toggled value in the meantime.
func (m *Mutator) Toggle(ctx context.Context, roomID string) (board.RoomStatus, error) {
	var (
		prev    board.RoomStatus
		existed bool
		next    board.RoomStatus
	)
	err := m.local.Update(func(tx *store.Tx) error {
		if _, ok := tx.Room(roomID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
		}
		prev, existed = tx.Status(roomID)
		next = board.RoomStatus{
			RoomID:         roomID,
			IsOpen:         !prev.IsOpen,
			ManualOverride: true,
			LastUpdated:    board.Timestamp(m.now()),
		}
		tx.PutStatus(next)
		return nil
	})
	if err != nil {
		return board.RoomStatus{}, err
	}

	if err := m.remote.UpsertStatuses(ctx, []board.RoomStatus{next}); err != nil {
		m.logger.Warn("toggle failed, rolling back",
			zap.String("room_id", roomID),
			zap.Bool("is_open", next.IsOpen),
			zap.Error(err))
		m.rollbackStatus(next, prev, existed)
		return prev, fmt.Errorf("failed to persist toggle of room %s: %w", roomID, err)
	}

	m.logger.Info("room toggled", zap.String("room_id", roomID), zap.Bool("is_open", next.IsOpen))
	return next, nil
}

func (m *Mutator) rollbackStatus(written, prev board.RoomStatus, existed bool) {
	_ = m.local.Update(func(tx *store.Tx) error {
		cur, ok := tx.Status(written.RoomID)
		if !ok || !cur.Equal(written) {
			return nil
		}
		if existed {
			tx.PutStatus(prev)
		} else {
			tx.DeleteStatus(written.RoomID)
		}
		return nil
	})
}

// BulkOpen opens every room and marks each manual.
func (m *Mutator) BulkOpen(ctx context.Context) error {
	return m.bulkSet(ctx, true)
}

// BulkClose closes every room and marks each manual.
func (m *Mutator) BulkClose(ctx context.Context) error {
	return m.bulkSet(ctx, false)
}

// bulkSet writes all statuses in one batch. On failure the whole store is reloaded from
// the Remote Store rather than rolled back row by row.
func (m *Mutator) bulkSet(ctx context.Context, open bool) error {
	at := board.Timestamp(m.now())

	var written []board.RoomStatus
	_ = m.local.Update(func(tx *store.Tx) error {
		for id := range tx.Rooms() {
			st := board.RoomStatus{RoomID: id, IsOpen: open, ManualOverride: true, LastUpdated: at}
			tx.PutStatus(st)
			written = append(written, st)
		}
		return nil
	})
	sort.Slice(written, func(i, j int) bool { return written[i].RoomID < written[j].RoomID })

	if err := m.remote.UpsertStatuses(ctx, written); err != nil {
		m.logger.Warn("bulk update failed, reloading", zap.Bool("is_open", open), zap.Int("rooms", len(written)), zap.Error(err))
		if loadErr := m.local.Load(ctx); loadErr != nil {
			m.logger.Error("reload after failed bulk update also failed", zap.Error(loadErr))
		}
		return fmt.Errorf("failed to persist bulk update: %w", err)
	}

	m.logger.Info("bulk update", zap.Bool("is_open", open), zap.Int("rooms", len(written)))
	return nil
}

// UpdatePosition moves a room on the floor plan. Coordinates are rounded to whole pixels.
// The remote write is detached; a failure is logged and the local value kept.
func (m *Mutator) UpdatePosition(roomID string, x, y float64) error {
	px, py := int(math.Round(x)), int(math.Round(y))

	err := m.patchLocal(roomID, func(r *board.Room) {
		r.PositionX, r.PositionY = px, py
	})
	if err != nil {
		return err
	}

	m.tasks.Go("update position", func(ctx context.Context) error {
		return m.remote.UpdateRoomPosition(ctx, roomID, px, py)
	}, zap.String("room_id", roomID))
	return nil
}

// UpdateSize resizes a room on the floor plan, with the same semantics as UpdatePosition.
func (m *Mutator) UpdateSize(roomID string, width, height float64) error {
	w, h := int(math.Round(width)), int(math.Round(height))

	err := m.patchLocal(roomID, func(r *board.Room) {
		r.Width, r.Height = w, h
	})
	if err != nil {
		return err
	}

	m.tasks.Go("update size", func(ctx context.Context) error {
		return m.remote.UpdateRoomSize(ctx, roomID, w, h)
	}, zap.String("room_id", roomID))
	return nil
}

func (m *Mutator) patchLocal(roomID string, patch func(r *board.Room)) error {
	return m.local.Update(func(tx *store.Tx) error {
		r, ok := tx.Room(roomID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
		}
		patch(&r)
		tx.PutRoom(r)
		return nil
	})
}

// SwapPositions exchanges the order keys of two rooms. Rooms sharing an order key
// (including a room and itself) are left untouched and ErrEqualOrderKeys is returned.
//
// The two remote writes are independent detached tasks. If one fails the rooms stay
// swapped locally while the Remote Store holds a half-swapped pair until the next reload.
func (m *Mutator) SwapPositions(roomA, roomB string) error {
	var a, b board.Room
	err := m.local.Update(func(tx *store.Tx) error {
		var ok bool
		if a, ok = tx.Room(roomA); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomA)
		}
		if b, ok = tx.Room(roomB); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomB)
		}
		if a.OrderKey == b.OrderKey {
			return ErrEqualOrderKeys
		}
		a.OrderKey, b.OrderKey = b.OrderKey, a.OrderKey
		tx.PutRoom(a)
		tx.PutRoom(b)
		return nil
	})
	if errors.Is(err, ErrEqualOrderKeys) {
		m.logger.Warn("swap aborted, rooms share an order key",
			zap.String("room_a", roomA),
			zap.String("room_b", roomB))
		return err
	}
	if err != nil {
		return err
	}

	m.tasks.Go("swap order", func(ctx context.Context) error {
		return m.remote.UpdateRoomOrder(ctx, a.ID, a.OrderKey)
	}, zap.String("room_id", a.ID))
	m.tasks.Go("swap order", func(ctx context.Context) error {
		return m.remote.UpdateRoomOrder(ctx, b.ID, b.OrderKey)
	}, zap.String("room_id", b.ID))
	return nil
}

// NextOrderKey returns the order key a new room in category gets: one increment past the
// highest key in the category, or the baseline when the category is empty.
func (m *Mutator) NextOrderKey(category board.Category) int {
	highest, found := 0, false
	for _, r := range m.local.Snapshot().Rooms {
		if r.Category != category {
			continue
		}
		if !found || r.OrderKey > highest {
			highest, found = r.OrderKey, true
		}
	}
	if !found {
		return m.baseline
	}
	return highest + m.increment
}

// CreateRoom adds a room at the end of its category, with a closed status and a default
// config for the weekday currently on view. Each remote write is awaited before the next
// and mirrored into the local store as soon as it succeeds.
func (m *Mutator) CreateRoom(ctx context.Context, name string, category board.Category) (board.Room, error) {
	if err := category.Validate(); err != nil {
		return board.Room{}, err
	}

	room, err := m.remote.InsertRoom(ctx, board.Room{
		Name:     name,
		Category: category,
		OrderKey: m.NextOrderKey(category),
	})
	if err != nil {
		return board.Room{}, fmt.Errorf("failed to create room: %w", err)
	}
	_ = m.local.Update(func(tx *store.Tx) error {
		tx.PutRoom(*room)
		return nil
	})

	status := board.ClosedStatus(room.ID, board.Timestamp(m.now()))
	if err := m.remote.UpsertStatuses(ctx, []board.RoomStatus{status}); err != nil {
		return *room, fmt.Errorf("failed to create status for room %s: %w", room.ID, err)
	}
	_ = m.local.Update(func(tx *store.Tx) error {
		tx.PutStatus(status)
		return nil
	})

	configs, err := m.remote.UpsertConfigs(ctx, []board.DailyConfig{{
		RoomID:  room.ID,
		Weekday: m.local.ViewWeekday(),
	}})
	if err != nil {
		return *room, fmt.Errorf("failed to create config for room %s: %w", room.ID, err)
	}
	_ = m.local.Update(func(tx *store.Tx) error {
		for _, c := range configs {
			tx.PutConfig(c)
		}
		return nil
	})

	m.logger.Info("room created",
		zap.String("room_id", room.ID),
		zap.String("name", room.Name),
		zap.String("category", string(category)),
		zap.Int("order_key", room.OrderKey))
	return *room, nil
}

// DeleteRoom removes a room with its status and configs locally, then remotely.
// If the remote delete fails the removed entries are put back.
func (m *Mutator) DeleteRoom(ctx context.Context, roomID string) error {
	var removed store.Removed
	err := m.local.Update(func(tx *store.Tx) error {
		if _, ok := tx.Room(roomID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
		}
		removed = tx.RemoveRoom(roomID)
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.remote.DeleteRoom(ctx, roomID); err != nil {
		m.logger.Warn("delete failed, restoring room", zap.String("room_id", roomID), zap.Error(err))
		_ = m.local.Update(func(tx *store.Tx) error {
			tx.Restore(removed)
			return nil
		})
		return fmt.Errorf("failed to delete room %s: %w", roomID, err)
	}

	m.logger.Info("room deleted", zap.String("room_id", roomID))
	return nil
}
