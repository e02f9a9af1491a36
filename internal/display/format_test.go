package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/pkg/board"
)

func visible() []store.VisibleRoom {
	return []store.VisibleRoom{
		{
			Room:   board.Room{ID: "3f2a9c10-0000-4000-8000-000000000001", Name: "Atelier", Category: board.CategoryAttic, Person: "Jana"},
			Status: board.RoomStatus{RoomID: "3f2a9c10-0000-4000-8000-000000000001", IsOpen: true},
			Config: board.DailyConfig{Weekday: 3, Activity: "Malen", OpenTime: "09:00", CloseTime: "17:00"},
			IsOpen: true,
		},
		{
			Room:   board.Room{ID: "a1b2c3d4-0000-4000-8000-000000000002", Name: "Werkstatt", Category: board.CategoryBasement},
			Status: board.RoomStatus{RoomID: "a1b2c3d4-0000-4000-8000-000000000002", ManualOverride: true},
			Config: board.DailyConfig{Weekday: 3},
		},
	}
}

func TestFormatTable(t *testing.T) {
	old := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = old }()

	var buf bytes.Buffer
	n, err := FormatTable(&buf, visible(), 3)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	out := buf.String()
	assert.Contains(t, out, "Rooms for Wednesday:")
	assert.Contains(t, out, "3f2a9c10")
	assert.NotContains(t, out, "3f2a9c10-0000")
	assert.Contains(t, out, "Atelier")
	assert.Contains(t, out, "09:00-17:00")
	assert.Contains(t, out, "closed (manual)")
	assert.Contains(t, out, "Jana")
	assert.Contains(t, out, "1 of 2 open")

	// Atelier (attic) keeps its place ahead of the basement room.
	assert.Less(t, strings.Index(out, "Atelier"), strings.Index(out, "Werkstatt"))
}

func TestFormatTable_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := FormatTable(&buf, nil, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "No rooms scheduled for Sunday\n", buf.String())
}

func TestFormatJSONL(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatJSONL(&buf, visible()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first store.VisibleRoom
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "Atelier", first.Room.Name)
	assert.True(t, first.IsOpen)
	assert.Equal(t, "Malen", first.Config.Activity)
}

func TestFormatHours(t *testing.T) {
	tests := []struct {
		name   string
		config board.DailyConfig
		want   string
	}{
		{"full window", board.DailyConfig{OpenTime: "09:00", CloseTime: "17:30"}, "09:00-17:30"},
		{"default open", board.DailyConfig{CloseTime: "12:00"}, "08:00-12:00"},
		{"no close", board.DailyConfig{OpenTime: "10:00"}, "10:00-"},
		{"close before open ignored", board.DailyConfig{OpenTime: "18:00", CloseTime: "09:00"}, "18:00-"},
		{"nothing set", board.DailyConfig{}, "08:00-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHours(store.VisibleRoom{Config: tt.config}))
		})
	}
}
