package automation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

// ResetCoordinator performs the once-per-day reset. Every client runs it; the conditional
// update on last_daily_reset lets exactly one of them through per calendar day.
type ResetCoordinator struct {
	local  *store.Store
	remote board.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewResetCoordinator creates a coordinator. now defaults to time.Now.
func NewResetCoordinator(local *store.Store, remote board.Store, logger *zap.Logger, now func() time.Time) *ResetCoordinator {
	if now == nil {
		now = time.Now
	}
	return &ResetCoordinator{
		local:  local,
		remote: remote,
		logger: logger.Named("reset"),
		now:    now,
	}
}

// Run claims today's reset and, if this client won the claim, clears every config's open
// and close times and closes every room, clearing its manual override. It reports whether the
// reset was performed here. Losing the claim is the normal outcome and is not an error.
func (r *ResetCoordinator) Run(ctx context.Context) (bool, error) {
	now := r.now()
	today := timespec.Day(now)

	if settings := r.local.Settings(); settings != nil && settings.LastDailyReset == today {
		return false, nil
	}

	settings, err := r.remote.ClaimDailyReset(ctx, today)
	if err != nil {
		return false, fmt.Errorf("failed to claim daily reset for %s: %w", today, err)
	}
	if settings == nil {
		r.logger.Debug("daily reset already claimed", zap.String("day", today))
		return false, nil
	}

	r.logger.Info("claimed daily reset", zap.String("day", today))
	_ = r.local.Update(func(tx *store.Tx) error {
		tx.PutSettings(settings)
		return nil
	})

	// The flag already holds today, so no client will retry a reset that fails from here on.
	if err := r.clearSchedules(ctx); err != nil {
		r.logger.Error("daily reset claimed but left incomplete", zap.String("day", today), zap.String("step", "clear schedules"), zap.Error(err))
		return true, err
	}
	if err := r.closeAll(ctx, board.Timestamp(now)); err != nil {
		r.logger.Error("daily reset claimed but left incomplete", zap.String("day", today), zap.String("step", "close rooms"), zap.Error(err))
		return true, err
	}

	r.logger.Info("daily reset complete", zap.String("day", today))
	return true, nil
}

func (r *ResetCoordinator) clearSchedules(ctx context.Context) error {
	if err := r.remote.ClearScheduleTimes(ctx); err != nil {
		return fmt.Errorf("failed to clear schedule times: %w", err)
	}
	return r.local.Update(func(tx *store.Tx) error {
		for _, c := range tx.Configs() {
			if c.OpenTime == "" && c.CloseTime == "" {
				continue
			}
			c.OpenTime, c.CloseTime = "", ""
			tx.PutConfig(c)
		}
		return nil
	})
}

// closeAll forces every room closed and non-manual. Room IDs come from the Remote Store so
// the reset covers rooms this client has not loaded.
func (r *ResetCoordinator) closeAll(ctx context.Context, at time.Time) error {
	rooms, err := r.remote.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rooms for reset: %w", err)
	}
	if len(rooms) == 0 {
		return nil
	}

	statuses := make([]board.RoomStatus, 0, len(rooms))
	for _, room := range rooms {
		statuses = append(statuses, board.ClosedStatus(room.ID, at))
	}

	_ = r.local.Update(func(tx *store.Tx) error {
		for _, st := range statuses {
			tx.PutStatus(st)
		}
		return nil
	})
	if err := r.remote.UpsertStatuses(ctx, statuses); err != nil {
		return fmt.Errorf("failed to close rooms for reset: %w", err)
	}
	return nil
}
