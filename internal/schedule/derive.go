// Package schedule derives the status transitions the daily automation wants to make.
//
// Derive is pure: given the same rooms, statuses, configs, settings and clock reading it
// always returns the same transitions, which is what lets every client run it
// independently and still agree.
package schedule

import (
	"sort"

	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

// DefaultOpenMinutes is the open time used when a config has no parseable open_time (08:00).
const DefaultOpenMinutes = 8 * 60

// Input is everything the derivation reads.
type Input struct {
	Rooms    map[string]board.Room
	Statuses map[string]board.RoomStatus
	Configs  map[board.ConfigKey]board.DailyConfig
	Settings *board.AppSettings
	Weekday  int // 0 = Sunday
	Minute   int // minutes since midnight
}

// Transition is one status change. From is the status the derivation saw, so the change
// can be applied only if nothing else touched the room in between.
type Transition struct {
	RoomID string
	From   board.RoomStatus
	To     board.RoomStatus
	Reason Reason
}

// Reason says which rule produced a transition.
type Reason string

const (
	ReasonNightMode     Reason = "night_mode"
	ReasonScheduleOpen  Reason = "schedule_open"
	ReasonScheduleClose Reason = "schedule_close"
)

// NightModeActive reports whether the night-mode blackout covers minute.
// Both bounds must parse and differ; the window wraps past midnight when start > end.
func NightModeActive(settings *board.AppSettings, minute int) bool {
	if settings == nil || !settings.NightModeEnabled {
		return false
	}
	start, ok := timespec.ParseClock(settings.NightStart)
	if !ok {
		return false
	}
	end, ok := timespec.ParseClock(settings.NightEnd)
	if !ok {
		return false
	}
	return timespec.InWindow(minute, start, end)
}

// EffectiveWindow resolves a config into the times the automation actually uses.
// The open time defaults to DefaultOpenMinutes; the close time only counts when it is
// strictly later than the effective open time.
func EffectiveWindow(cfg board.DailyConfig) (openAt, closeAt int, hasClose bool) {
	openAt, ok := timespec.ParseClock(cfg.OpenTime)
	if !ok {
		openAt = DefaultOpenMinutes
	}
	closeAt, hasClose = timespec.ParseClock(cfg.CloseTime)
	if hasClose && closeAt <= openAt {
		return openAt, 0, false
	}
	return openAt, closeAt, hasClose
}

// Derive returns the transitions for every room whose status should change now,
// ordered by room ID. Rooms under manual override are never touched.
func Derive(in Input) []Transition {
	night := NightModeActive(in.Settings, in.Minute)

	var out []Transition
	for id := range in.Rooms {
		status, ok := in.Statuses[id]
		if !ok {
			status = board.RoomStatus{RoomID: id}
		}

		next, reason, changed := decide(status, in.Configs, id, in.Weekday, in.Minute, night)
		if !changed {
			continue
		}
		out = append(out, Transition{RoomID: id, From: status, To: next, Reason: reason})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RoomID < out[j].RoomID })
	return out
}

func decide(status board.RoomStatus, configs map[board.ConfigKey]board.DailyConfig, roomID string, weekday, minute int, night bool) (board.RoomStatus, Reason, bool) {
	if status.ManualOverride {
		return status, "", false
	}

	if night {
		if !status.IsOpen {
			return status, "", false
		}
		return board.RoomStatus{RoomID: roomID, IsOpen: false, ManualOverride: false}, ReasonNightMode, true
	}

	cfg, ok := configs[board.ConfigKey{RoomID: roomID, Weekday: weekday}]
	if !ok {
		return status, "", false
	}

	openAt, closeAt, hasClose := EffectiveWindow(cfg)
	switch {
	case status.IsOpen && hasClose && minute >= closeAt:
		return board.RoomStatus{RoomID: roomID, IsOpen: false}, ReasonScheduleClose, true
	case !status.IsOpen && minute >= openAt && (!hasClose || minute < closeAt):
		return board.RoomStatus{RoomID: roomID, IsOpen: true}, ReasonScheduleOpen, true
	}
	return status, "", false
}
