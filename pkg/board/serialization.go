package board

import (
	"fmt"
	"strconv"
	"time"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores records as string-to-string hashes. Field names match the JSON tags so a
// hash, a bus payload and a Postgres row all use the same vocabulary.
// Timestamps are RFC3339 with nanoseconds; empty strings stand for absent values.

// RoomToHash converts a Room to a Redis hash.
func RoomToHash(r *Room) map[string]interface{} {
	return map[string]interface{}{
		"id":         r.ID,
		"name":       r.Name,
		"category":   string(r.Category),
		"order_key":  r.OrderKey,
		"position_x": r.PositionX,
		"position_y": r.PositionY,
		"width":      r.Width,
		"height":     r.Height,
		"person":     r.Person,
		"created_at": formatTime(r.CreatedAt),
	}
}

// HashToRoom converts a Redis hash to a Room.
func HashToRoom(hash map[string]string) (*Room, error) {
	orderKey, err := atoi(hash, "order_key")
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(hash["created_at"])
	if err != nil {
		return nil, fmt.Errorf("invalid created_at field: %w", err)
	}

	// Layout fields are cosmetic; a malformed value falls back to zero
	x, _ := strconv.Atoi(hash["position_x"])
	y, _ := strconv.Atoi(hash["position_y"])
	w, _ := strconv.Atoi(hash["width"])
	h, _ := strconv.Atoi(hash["height"])

	return &Room{
		ID:        hash["id"],
		Name:      hash["name"],
		Category:  Category(hash["category"]),
		OrderKey:  orderKey,
		PositionX: x,
		PositionY: y,
		Width:     w,
		Height:    h,
		Person:    hash["person"],
		CreatedAt: createdAt,
	}, nil
}

// StatusToHash converts a RoomStatus to a Redis hash.
func StatusToHash(s *RoomStatus) map[string]interface{} {
	return map[string]interface{}{
		"room_id":         s.RoomID,
		"is_open":         strconv.FormatBool(s.IsOpen),
		"manual_override": strconv.FormatBool(s.ManualOverride),
		"last_updated":    formatTime(s.LastUpdated),
	}
}

// HashToStatus converts a Redis hash to a RoomStatus.
func HashToStatus(hash map[string]string) (*RoomStatus, error) {
	isOpen, err := strconv.ParseBool(hash["is_open"])
	if err != nil {
		return nil, fmt.Errorf("invalid is_open field: %w", err)
	}
	manual, err := strconv.ParseBool(hash["manual_override"])
	if err != nil {
		return nil, fmt.Errorf("invalid manual_override field: %w", err)
	}
	lastUpdated, err := parseTime(hash["last_updated"])
	if err != nil {
		return nil, fmt.Errorf("invalid last_updated field: %w", err)
	}

	return &RoomStatus{
		RoomID:         hash["room_id"],
		IsOpen:         isOpen,
		ManualOverride: manual,
		LastUpdated:    lastUpdated,
	}, nil
}

// ConfigToHash converts a DailyConfig to a Redis hash.
func ConfigToHash(c *DailyConfig) map[string]interface{} {
	return map[string]interface{}{
		"id":         c.ID,
		"room_id":    c.RoomID,
		"weekday":    c.Weekday,
		"activity":   c.Activity,
		"open_time":  c.OpenTime,
		"close_time": c.CloseTime,
	}
}

// HashToConfig converts a Redis hash to a DailyConfig.
func HashToConfig(hash map[string]string) (*DailyConfig, error) {
	weekday, err := atoi(hash, "weekday")
	if err != nil {
		return nil, err
	}

	return &DailyConfig{
		ID:        hash["id"],
		RoomID:    hash["room_id"],
		Weekday:   weekday,
		Activity:  hash["activity"],
		OpenTime:  hash["open_time"],
		CloseTime: hash["close_time"],
	}, nil
}

// SettingsToHash converts AppSettings to a Redis hash.
func SettingsToHash(s *AppSettings) map[string]interface{} {
	return map[string]interface{}{
		"id":                 s.ID,
		"night_mode_enabled": strconv.FormatBool(s.NightModeEnabled),
		"night_start":        s.NightStart,
		"night_end":          s.NightEnd,
		"last_daily_reset":   s.LastDailyReset,
	}
}

// HashToSettings converts a Redis hash to AppSettings.
func HashToSettings(hash map[string]string) (*AppSettings, error) {
	id, err := atoi(hash, "id")
	if err != nil {
		return nil, err
	}
	enabled, _ := strconv.ParseBool(hash["night_mode_enabled"])

	return &AppSettings{
		ID:               id,
		NightModeEnabled: enabled,
		NightStart:       hash["night_start"],
		NightEnd:         hash["night_end"],
		LastDailyReset:   hash["last_daily_reset"],
	}, nil
}

func atoi(hash map[string]string, field string) (int, error) {
	v, err := strconv.Atoi(hash[field])
	if err != nil {
		return 0, fmt.Errorf("invalid %s field: %w", field, err)
	}
	return v, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
