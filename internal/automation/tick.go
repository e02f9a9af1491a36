package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/schedule"
	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

// Tick runs one reconciliation pass: derive the transitions for the current time, apply
// them locally, then persist them together with any statuses a previous tick failed to
// persist. A persist failure keeps the rooms pending for the next tick; nothing is rolled back.
func (s *Service) Tick(ctx context.Context) error {
	now := s.opts.Now()
	snap := s.local.Snapshot()

	transitions := schedule.Derive(schedule.Input{
		Rooms:    snap.Rooms,
		Statuses: snap.Statuses,
		Configs:  snap.Configs,
		Settings: snap.Settings,
		Weekday:  int(now.Weekday()),
		Minute:   timespec.MinuteOfDay(now),
	})

	applied := s.applyTransitions(transitions, board.Timestamp(now))
	batch := s.withPending(applied)
	if len(batch) == 0 {
		return nil
	}

	if err := s.remote.UpsertStatuses(ctx, batch); err != nil {
		s.markPending(batch)
		return fmt.Errorf("failed to persist %d scheduled statuses: %w", len(batch), err)
	}
	s.clearPending(batch)

	s.logApplied(transitions, applied)
	return nil
}

// logApplied logs the transitions that were written, with the rule that produced each.
func (s *Service) logApplied(transitions []schedule.Transition, applied []board.RoomStatus) {
	reasons := make(map[string]schedule.Reason, len(transitions))
	for _, t := range transitions {
		reasons[t.RoomID] = t.Reason
	}
	for _, st := range applied {
		s.logger.Info("scheduled transition",
			zap.String("room_id", st.RoomID),
			zap.Bool("is_open", st.IsOpen),
			zap.String("reason", string(reasons[st.RoomID])))
	}
}

// applyTransitions installs each transition whose room still holds the status the derivation
// saw. A room changed in between (a toggle, a bus update) is skipped and re-derived next tick.
func (s *Service) applyTransitions(transitions []schedule.Transition, at time.Time) []board.RoomStatus {
	var applied []board.RoomStatus
	_ = s.local.Update(func(tx *store.Tx) error {
		for _, t := range transitions {
			cur, ok := tx.Status(t.RoomID)
			if !ok {
				cur = board.RoomStatus{RoomID: t.RoomID}
			}
			if !cur.Equal(t.From) {
				s.logger.Debug("skipping transition, room changed since derivation", zap.String("room_id", t.RoomID))
				continue
			}
			to := t.To
			to.LastUpdated = at
			tx.PutStatus(to)
			applied = append(applied, to)
		}
		return nil
	})
	return applied
}

// withPending adds the current local status of every pending room not already in applied.
// Rooms that went manual in the meantime are dropped: their owner persists them.
func (s *Service) withPending(applied []board.RoomStatus) []board.RoomStatus {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	if len(s.pending) == 0 {
		return applied
	}

	seen := make(map[string]bool, len(applied))
	for _, st := range applied {
		seen[st.RoomID] = true
	}

	var retry []string
	for id := range s.pending {
		if !seen[id] {
			retry = append(retry, id)
		}
	}
	sort.Strings(retry)

	batch := applied
	for _, id := range retry {
		st, ok := s.local.Status(id)
		if !ok || st.ManualOverride {
			delete(s.pending, id)
			continue
		}
		batch = append(batch, st)
	}
	return batch
}

func (s *Service) markPending(batch []board.RoomStatus) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for _, st := range batch {
		s.pending[st.RoomID] = struct{}{}
	}
}

func (s *Service) clearPending(batch []board.RoomStatus) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	for _, st := range batch {
		delete(s.pending, st.RoomID)
	}
}

// Pending returns the room IDs whose scheduled status has not been persisted yet.
func (s *Service) Pending() []string {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
