package timespec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name   string
		spec   string
		want   int
		wantOK bool
	}{
		{name: "hours and minutes", spec: "09:00", want: 540, wantOK: true},
		{name: "with seconds", spec: "17:30:00", want: 1050, wantOK: true},
		{name: "single digits", spec: "8:5", want: 485, wantOK: true},
		{name: "midnight", spec: "00:00", want: 0, wantOK: true},
		{name: "last minute", spec: "23:59", want: 1439, wantOK: true},
		{name: "surrounding whitespace", spec: " 07:15 ", want: 435, wantOK: true},
		{name: "empty", spec: "", wantOK: false},
		{name: "no colon", spec: "0900", wantOK: false},
		{name: "letters", spec: "ab:cd", wantOK: false},
		{name: "hour out of range", spec: "24:00", wantOK: false},
		{name: "minute out of range", spec: "12:60", wantOK: false},
		{name: "bad seconds", spec: "12:00:xx", wantOK: false},
		{name: "too many parts", spec: "1:2:3:4", wantOK: false},
		{name: "negative", spec: "-1:00", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseClock(tt.spec)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "09:00", FormatClock(540))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "23:59", FormatClock(1439))
	assert.Equal(t, "00:10", FormatClock(MinutesPerDay+10))
}

func TestInWindow(t *testing.T) {
	t.Run("same-day window is half open", func(t *testing.T) {
		assert.False(t, InWindow(599, 600, 700))
		assert.True(t, InWindow(600, 600, 700))
		assert.True(t, InWindow(699, 600, 700))
		assert.False(t, InWindow(700, 600, 700))
	})

	t.Run("window wraps past midnight", func(t *testing.T) {
		start, end := 22*60, 6*60
		assert.True(t, InWindow(23*60, start, end))
		assert.True(t, InWindow(0, start, end))
		assert.True(t, InWindow(5*60+59, start, end))
		assert.False(t, InWindow(6*60, start, end))
		assert.False(t, InWindow(12*60, start, end))
		assert.True(t, InWindow(22*60, start, end))
	})

	t.Run("empty window contains nothing", func(t *testing.T) {
		for _, now := range []int{0, 600, 1439} {
			assert.False(t, InWindow(now, 600, 600))
		}
	})
}

func TestMinuteOfDayAndDay(t *testing.T) {
	ts := time.Date(2026, 10, 15, 14, 37, 59, 0, time.Local)
	assert.Equal(t, 14*60+37, MinuteOfDay(ts))
	assert.Equal(t, "2026-10-15", Day(ts))
}
