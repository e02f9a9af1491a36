package board

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SettingsID is the primary key of the singleton AppSettings row.
const SettingsID = 1

// Night window of a settings row created without explicit values.
const (
	DefaultNightStart = "22:00"
	DefaultNightEnd   = "06:00"
)

// ErrInvalidCategory is returned when a room category is not one of the known floors.
var ErrInvalidCategory = errors.New("invalid room category")

// Room is a physical room shown on the board.
// Position and size are layout fields; OrderKey sequences rooms within their category.
type Room struct {
	ID        string    `json:"id"`         // UUID
	Name      string    `json:"name"`       // Display name
	Category  Category  `json:"category"`   // Floor / location tag
	OrderKey  int       `json:"order_key"`  // Display sequence within the category
	PositionX int       `json:"position_x"` // Layout x (rounded pixels)
	PositionY int       `json:"position_y"` // Layout y (rounded pixels)
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Person    string    `json:"person"`     // Person currently responsible for the room, may be empty
	CreatedAt time.Time `json:"created_at"`
}

// Category is the location tag of a room. The set is closed.
type Category string

const (
	CategoryAttic       Category = "dach"
	CategorySecondFloor Category = "og2"
	CategoryFirstFloor  Category = "og1"
	CategoryGroundFloor Category = "eg"
	CategoryDining      Category = "essen"
	CategoryBasement    Category = "ug"
	CategoryExternal    Category = "extern"
)

// Categories lists every category in display order (top floor first).
var Categories = []Category{
	CategoryAttic,
	CategorySecondFloor,
	CategoryFirstFloor,
	CategoryGroundFloor,
	CategoryDining,
	CategoryBasement,
	CategoryExternal,
}

// RoomStatus is the open/closed state of a room. There is exactly one per room.
type RoomStatus struct {
	RoomID         string    `json:"room_id"`
	IsOpen         bool      `json:"is_open"`
	ManualOverride bool      `json:"manual_override"` // Set by human actions; automation leaves the row alone while true
	LastUpdated    time.Time `json:"last_updated"`
}

// DailyConfig is the schedule of one room for one weekday (0 = Sunday .. 6 = Saturday).
// OpenTime and CloseTime are "HH:MM" strings; empty means absent.
type DailyConfig struct {
	ID        string `json:"id"`
	RoomID    string `json:"room_id"`
	Weekday   int    `json:"weekday"`
	Activity  string `json:"activity"`
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// AppSettings is the singleton settings row.
type AppSettings struct {
	ID               int    `json:"id"`
	NightModeEnabled bool   `json:"night_mode_enabled"`
	NightStart       string `json:"night_start"`      // "HH:MM"
	NightEnd         string `json:"night_end"`        // "HH:MM"
	LastDailyReset   string `json:"last_daily_reset"` // "YYYY-MM-DD", empty when never reset
}

// ConfigKey identifies a DailyConfig by room and weekday.
type ConfigKey struct {
	RoomID  string
	Weekday int
}

// Key returns the (room, weekday) key of the config.
func (c DailyConfig) Key() ConfigKey {
	return ConfigKey{RoomID: c.RoomID, Weekday: c.Weekday}
}

// String renders the key as "{room_id}:{weekday}", the form used in Redis index sets.
func (k ConfigKey) String() string {
	return fmt.Sprintf("%s:%d", k.RoomID, k.Weekday)
}

// Equal reports whether two statuses hold the same values.
// Timestamps are compared with time.Equal so decoded copies compare equal.
func (s RoomStatus) Equal(o RoomStatus) bool {
	return s.RoomID == o.RoomID &&
		s.IsOpen == o.IsOpen &&
		s.ManualOverride == o.ManualOverride &&
		s.LastUpdated.Equal(o.LastUpdated)
}

// Equal reports whether two rooms hold the same values.
func (r Room) Equal(o Room) bool {
	return r.ID == o.ID &&
		r.Name == o.Name &&
		r.Category == o.Category &&
		r.OrderKey == o.OrderKey &&
		r.PositionX == o.PositionX &&
		r.PositionY == o.PositionY &&
		r.Width == o.Width &&
		r.Height == o.Height &&
		r.Person == o.Person &&
		r.CreatedAt.Equal(o.CreatedAt)
}

// ClosedStatus returns the automation default: closed and not manually held.
func ClosedStatus(roomID string, at time.Time) RoomStatus {
	return RoomStatus{RoomID: roomID, LastUpdated: at}
}

// Validate checks the room's identity and category.
func (r *Room) Validate() error {
	if !isValidUUID(r.ID) {
		return fmt.Errorf("invalid room ID: not a valid UUID")
	}
	if r.Name == "" {
		return fmt.Errorf("room name cannot be empty")
	}
	if err := r.Category.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks if the Category is a known value.
func (c Category) Validate() error {
	for _, known := range Categories {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrInvalidCategory, c)
}

// Rank returns the display position of the category, or len(Categories) when unknown.
func (c Category) Rank() int {
	for i, known := range Categories {
		if c == known {
			return i
		}
	}
	return len(Categories)
}

// Validate checks the config's weekday range.
func (c *DailyConfig) Validate() error {
	if c.RoomID == "" {
		return fmt.Errorf("config room_id cannot be empty")
	}
	if c.Weekday < 0 || c.Weekday > 6 {
		return fmt.Errorf("invalid weekday: must be 0-6, got %d", c.Weekday)
	}
	return nil
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Timestamp normalizes t to UTC microseconds, the finest precision every backend stores.
// Writers stamp records with it so a record and its echo from the bus compare equal.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
