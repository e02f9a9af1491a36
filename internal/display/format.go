// Package display renders the visible rooms of a weekday for the terminal and for scripts.
package display

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/schedule"
	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/internal/timespec"
)

// FormatTable writes rooms as a table, in the order given.
// Returns the number of rooms formatted.
func FormatTable(w io.Writer, rooms []store.VisibleRoom, weekday int) (int, error) {
	day := time.Weekday(weekday).String()
	if len(rooms) == 0 {
		fmt.Fprintf(w, "No rooms scheduled for %s\n", day)
		return 0, nil
	}

	fmt.Fprintf(w, "Rooms for %s:\n\n", day)

	table := tablewriter.NewTable(w)
	table.Header("ID", "Room", "Floor", "State", "Hours", "Activity", "Person")
	for _, r := range rooms {
		err := table.Append([]string{
			formatID(r.Room.ID),
			r.Room.Name,
			string(r.Room.Category),
			printer.RoomState(r.IsOpen, r.Status.ManualOverride),
			FormatHours(r),
			orDash(r.Config.Activity),
			orDash(r.Room.Person),
		})
		if err != nil {
			return 0, fmt.Errorf("failed to add table row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return 0, fmt.Errorf("failed to render table: %w", err)
	}

	open := 0
	for _, r := range rooms {
		if r.IsOpen {
			open++
		}
	}
	fmt.Fprintf(w, "\n%d of %d open\n", open, len(rooms))

	return len(rooms), nil
}

// FormatJSONL writes rooms as line-delimited JSON, one VisibleRoom per line.
func FormatJSONL(w io.Writer, rooms []store.VisibleRoom) error {
	enc := json.NewEncoder(w)
	for _, r := range rooms {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to write JSONL output: %w", err)
		}
	}
	return nil
}

// FormatHours renders the schedule window automation applies to the room,
// e.g. "09:00-17:00", or "08:00-" when no usable close time is set.
func FormatHours(r store.VisibleRoom) string {
	openAt, closeAt, hasClose := schedule.EffectiveWindow(r.Config)
	if !hasClose {
		return timespec.FormatClock(openAt) + "-"
	}
	return timespec.FormatClock(openAt) + "-" + timespec.FormatClock(closeAt)
}

// formatID truncates a room ID to its first 8 characters.
func formatID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
