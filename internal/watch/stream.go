// Package watch streams live board changes to a terminal or a JSON consumer.
package watch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dyluth/warren/internal/filter"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

// OutputFormat selects how changes are written.
type OutputFormat string

const (
	OutputFormatDefault OutputFormat = "default"
	OutputFormatJSON    OutputFormat = "json"
)

// Board is the local view the stream keeps current, so room names resolve for rooms
// created while watching.
type Board interface {
	ApplyRemoteEvent(change board.Change) error
	Room(id string) (board.Room, bool)
}

// StreamChanges subscribes to every record kind and writes one line per change that
// passes criteria until ctx is cancelled. Every change is applied to rooms, written or not.
// Changes are formatted before they are applied, so a deleted room still shows its name.
func StreamChanges(ctx context.Context, bus board.Bus, rooms Board, criteria filter.Criteria, format OutputFormat, w io.Writer) error {
	var f formatter
	switch format {
	case OutputFormatJSON:
		f = &jsonFormatter{writer: w, now: time.Now}
	default:
		f = &defaultFormatter{writer: w, rooms: rooms, now: time.Now}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	subs := make([]*board.Subscription, 0, len(board.Kinds))
	defer func() {
		for _, sub := range subs {
			sub.Close()
		}
	}()
	for _, kind := range board.Kinds {
		sub, err := bus.Subscribe(ctx, kind)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	// Fan the subscriptions into one ordered writer.
	events := make(chan any)
	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub *board.Subscription) {
			defer wg.Done()
			changes, errs := sub.Changes(), sub.Errors()
			for changes != nil || errs != nil {
				var ev any
				select {
				case <-ctx.Done():
					return
				case c, ok := <-changes:
					if !ok {
						changes = nil
						continue
					}
					ev = c
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					ev = err
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		var err error
		switch ev := ev.(type) {
		case board.Change:
			if criteria.Matches(ev.Kind, roomNameOf(ev, rooms)) {
				err = f.FormatChange(ev)
			}
			if applyErr := rooms.ApplyRemoteEvent(ev); err == nil && applyErr != nil {
				err = f.FormatError(applyErr)
			}
		case error:
			err = f.FormatError(ev)
		}
		if err != nil {
			return fmt.Errorf("failed to write change: %w", err)
		}
	}
	return nil
}

// roomNameOf names the room a change belongs to, or returns "" for settings and rooms
// the board does not know.
func roomNameOf(change board.Change, rooms Board) string {
	var ref struct {
		ID     string `json:"id"`
		RoomID string `json:"room_id"`
		Name   string `json:"name"`
	}
	if err := json.Unmarshal(change.Row(), &ref); err != nil {
		return ""
	}

	id := ref.RoomID
	switch change.Kind {
	case board.KindSettings:
		return ""
	case board.KindRoom:
		if ref.Name != "" {
			return ref.Name
		}
		id = ref.ID
	}
	if r, ok := rooms.Room(id); ok {
		return r.Name
	}
	return ""
}

type formatter interface {
	FormatChange(change board.Change) error
	FormatError(err error) error
}

// defaultFormatter writes one human-readable line per change.
type defaultFormatter struct {
	writer io.Writer
	rooms  Board
	now    func() time.Time
}

func (f *defaultFormatter) FormatChange(change board.Change) error {
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", f.now().Format("15:04:05"), f.describe(change))
	return err
}

func (f *defaultFormatter) FormatError(err error) error {
	_, werr := fmt.Fprintf(f.writer, "[%s] ⚠️  %v\n", f.now().Format("15:04:05"), err)
	return werr
}

func (f *defaultFormatter) roomName(id string) string {
	if r, ok := f.rooms.Room(id); ok {
		return r.Name
	}
	// Short form of the ID, as in the rooms table
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (f *defaultFormatter) describe(change board.Change) string {
	row := change.Row()

	switch change.Kind {
	case board.KindStatus:
		var st board.RoomStatus
		if err := json.Unmarshal(row, &st); err != nil {
			return fmt.Sprintf("status change (undecodable: %v)", err)
		}
		if change.Op == board.OpDelete {
			return fmt.Sprintf("Status removed: %s", f.roomName(st.RoomID))
		}
		line := fmt.Sprintf("🔴 %s closed", f.roomName(st.RoomID))
		if st.IsOpen {
			line = fmt.Sprintf("🟢 %s opened", f.roomName(st.RoomID))
		}
		if st.ManualOverride {
			line += " (manual)"
		}
		return line

	case board.KindRoom:
		var r board.Room
		if err := json.Unmarshal(row, &r); err != nil {
			return fmt.Sprintf("room change (undecodable: %v)", err)
		}
		name := r.Name
		if name == "" {
			name = f.roomName(r.ID)
		}
		switch change.Op {
		case board.OpInsert:
			return fmt.Sprintf("➕ Room created: %s floor=%s", name, r.Category)
		case board.OpDelete:
			return fmt.Sprintf("➖ Room deleted: %s", name)
		default:
			return fmt.Sprintf("✏️  Room updated: %s order=%d pos=%d,%d size=%dx%d",
				name, r.OrderKey, r.PositionX, r.PositionY, r.Width, r.Height)
		}

	case board.KindConfig:
		var c board.DailyConfig
		if err := json.Unmarshal(row, &c); err != nil {
			return fmt.Sprintf("schedule change (undecodable: %v)", err)
		}
		day := time.Weekday(c.Weekday).String()
		if change.Op == board.OpDelete {
			return fmt.Sprintf("🗓  Schedule removed: %s on %s", f.roomName(c.RoomID), day)
		}
		return fmt.Sprintf("🗓  Schedule: %s on %s %s", f.roomName(c.RoomID), day, formatWindow(c))

	case board.KindSettings:
		var s board.AppSettings
		if err := json.Unmarshal(row, &s); err != nil {
			return fmt.Sprintf("settings change (undecodable: %v)", err)
		}
		night := "off"
		if s.NightModeEnabled {
			night = s.NightStart + "-" + s.NightEnd
		}
		reset := s.LastDailyReset
		if reset == "" {
			reset = "never"
		}
		return fmt.Sprintf("🌙 Settings: night mode %s, last reset %s", night, reset)
	}

	return fmt.Sprintf("%s %s", change.Kind, change.Op)
}

// formatWindow shows the stored times as they are, "-" standing for an absent time.
func formatWindow(c board.DailyConfig) string {
	clock := func(s string) string {
		if m, ok := timespec.ParseClock(s); ok {
			return timespec.FormatClock(m)
		}
		return "-"
	}
	line := clock(c.OpenTime) + " to " + clock(c.CloseTime)
	if c.Activity != "" {
		line += " (" + c.Activity + ")"
	}
	return line
}

// jsonFormatter writes each change as one JSON object per line.
type jsonFormatter struct {
	writer io.Writer
	now    func() time.Time
}

type jsonEvent struct {
	Time  time.Time `json:"time"`
	Error string    `json:"error,omitempty"`
	board.Change
}

func (f *jsonFormatter) FormatChange(change board.Change) error {
	return json.NewEncoder(f.writer).Encode(jsonEvent{Time: f.now(), Change: change})
}

func (f *jsonFormatter) FormatError(err error) error {
	return json.NewEncoder(f.writer).Encode(jsonEvent{Time: f.now(), Error: err.Error()})
}
