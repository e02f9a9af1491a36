package filter

import (
	"path/filepath"

	"github.com/dyluth/warren/pkg/board"
)

// Criteria defines filtering criteria for board changes.
// All filters are ANDed together - a change must match ALL criteria to pass.
type Criteria struct {
	KindGlob string // Glob pattern for the record kind (rooms, room_status, ...), empty = no filter
	RoomGlob string // Glob pattern for the room name, empty = no filter
}

// Validate reports a malformed glob pattern.
func (c *Criteria) Validate() error {
	for _, pattern := range []string{c.KindGlob, c.RoomGlob} {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return err
		}
	}
	return nil
}

// Matches returns true if a change of kind touching the named room passes every criterion.
// roomName is empty for changes that belong to no room (settings), which never match a
// room filter. Room names match case-sensitively.
func (c *Criteria) Matches(kind board.Kind, roomName string) bool {
	if c.KindGlob != "" {
		matched, err := filepath.Match(c.KindGlob, string(kind))
		if err != nil || !matched {
			return false
		}
	}

	if c.RoomGlob != "" {
		if roomName == "" {
			return false
		}
		matched, err := filepath.Match(c.RoomGlob, roomName)
		if err != nil || !matched {
			return false
		}
	}

	return true
}

// HasFilters returns true if any filters are active.
func (c *Criteria) HasFilters() bool {
	return c.KindGlob != "" || c.RoomGlob != ""
}
