package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

type cliFixture struct {
	mr         *miniredis.Miniredis
	client     *board.Client
	configPath string
	stdout     *bytes.Buffer
	stderr     *bytes.Buffer
}

func setup(t *testing.T) *cliFixture {
	t.Helper()
	for _, key := range []string{"WARREN_INSTANCE", "REDIS_URL", "DATABASE_URL", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}

	client, mr := testutil.NewBoard(t)

	configPath := filepath.Join(t.TempDir(), "warren.yml")
	content := fmt.Sprintf(`version: "1.0"
instance: %s
redis:
  url: redis://%s
log:
  level: error
`, testutil.Instance, mr.Addr())
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	f := &cliFixture{mr: mr, client: client, configPath: configPath, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}

	oldOut, oldErr, oldNoColor := printer.Stdout, printer.Stderr, color.NoColor
	printer.Stdout, printer.Stderr, color.NoColor = f.stdout, f.stderr, true
	t.Cleanup(func() {
		printer.Stdout, printer.Stderr, color.NoColor = oldOut, oldErr, oldNoColor
	})
	return f
}

// execute runs one CLI invocation and returns what the command wrote to its output.
func (f *cliFixture) execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return f.executeContext(context.Background(), args...)
}

func (f *cliFixture) executeContext(ctx context.Context, args ...string) (string, error) {
	cmd := NewRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--config", f.configPath}, args...))

	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func (f *cliFixture) status(t *testing.T, roomID string) board.RoomStatus {
	t.Helper()
	statuses, err := f.client.ListStatuses(context.Background())
	require.NoError(t, err)
	for _, st := range statuses {
		if st.RoomID == roomID {
			return st
		}
	}
	t.Fatalf("no status for room %s", roomID)
	return board.RoomStatus{}
}

func (f *cliFixture) room(t *testing.T, roomID string) board.Room {
	t.Helper()
	rooms, err := f.client.ListRooms(context.Background())
	require.NoError(t, err)
	for _, r := range rooms {
		if r.ID == roomID {
			return r
		}
	}
	t.Fatalf("no room %s", roomID)
	return board.Room{}
}

func TestRootCommand_ShowsHelpWhenNoSubcommand(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Usage:")
	assert.Contains(t, buf.String(), "warren")
}

func TestRootCommand_RejectsUnknownFlags(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"--unknown-flag", "value"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown flag")
}

func TestRooms(t *testing.T) {
	f := setup(t)
	attic := testutil.SeedRoom(t, f.client, "Atelier", board.CategoryAttic, 100)
	kitchen := testutil.SeedRoom(t, f.client, "Küche", board.CategoryDining, 100)
	testutil.SeedConfig(t, f.client, attic.ID, 2, "09:00", "17:00")
	testutil.SeedConfig(t, f.client, kitchen.ID, 4, "", "")

	out, err := f.execute(t, "rooms", "--weekday", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Rooms for Tuesday:")
	assert.Contains(t, out, "Atelier")
	assert.Contains(t, out, "09:00-17:00")
	assert.NotContains(t, out, "Küche")

	out, err = f.execute(t, "rooms", "--weekday", "4", "--output", "jsonl")
	require.NoError(t, err)
	assert.Contains(t, out, `"name":"Küche"`)
	assert.NotContains(t, out, "Atelier")
}

func TestRooms_InvalidFlags(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "rooms", "--output", "xml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())

	_, err = f.execute(t, "rooms", "--weekday", "9")
	require.Error(t, err)
	assert.Equal(t, "invalid weekday", err.Error())
}

func TestToggle(t *testing.T) {
	f := setup(t)
	room := testutil.SeedRoom(t, f.client, "Werkstatt", board.CategoryBasement, 100)

	_, err := f.execute(t, "toggle", "werkstatt")
	require.NoError(t, err)

	st := f.status(t, room.ID)
	assert.True(t, st.IsOpen)
	assert.True(t, st.ManualOverride)
	assert.Contains(t, f.stdout.String(), "Werkstatt is now open (manual)")

	_, err = f.execute(t, "toggle", room.ID[:8])
	require.NoError(t, err)
	assert.False(t, f.status(t, room.ID).IsOpen)
}

func TestToggle_UnknownRoom(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "toggle", "Dachboden")
	require.Error(t, err)
	assert.Equal(t, "room not found", err.Error())
	assert.Contains(t, f.stderr.String(), "Dachboden")
}

func TestBulk(t *testing.T) {
	f := setup(t)
	a := testutil.SeedRoom(t, f.client, "A", board.CategoryGroundFloor, 100)
	b := testutil.SeedRoom(t, f.client, "B", board.CategoryGroundFloor, 200)

	_, err := f.execute(t, "bulk", "open")
	require.NoError(t, err)
	assert.True(t, f.status(t, a.ID).IsOpen)
	assert.True(t, f.status(t, b.ID).IsOpen)
	assert.Contains(t, f.stdout.String(), "2 rooms opened")

	_, err = f.execute(t, "bulk", "close")
	require.NoError(t, err)
	assert.False(t, f.status(t, a.ID).IsOpen)
	assert.True(t, f.status(t, a.ID).ManualOverride)

	_, err = f.execute(t, "bulk", "sideways")
	assert.Error(t, err)
}

func TestRoomCreateAndDelete(t *testing.T) {
	f := setup(t)
	testutil.SeedRoom(t, f.client, "Flur", board.CategoryFirstFloor, 300)

	_, err := f.execute(t, "room", "create", "Bad", "--category", "og1")
	require.NoError(t, err)

	rooms, err := f.client.ListRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 2)

	var created board.Room
	for _, r := range rooms {
		if r.Name == "Bad" {
			created = r
		}
	}
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 400, created.OrderKey)
	assert.False(t, f.status(t, created.ID).IsOpen)

	_, err = f.execute(t, "room", "delete", "Bad")
	require.NoError(t, err)

	rooms, err = f.client.ListRooms(context.Background())
	require.NoError(t, err)
	assert.Len(t, rooms, 1)
}

func TestRoomCreate_InvalidCategory(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "room", "create", "Garage", "--category", "garage")
	require.Error(t, err)
	assert.Equal(t, "invalid floor", err.Error())
}

func TestRoomLayout(t *testing.T) {
	f := setup(t)
	room := testutil.SeedRoom(t, f.client, "Atelier", board.CategoryAttic, 100)

	_, err := f.execute(t, "room", "move", "Atelier", "10.4", "20.6")
	require.NoError(t, err)
	_, err = f.execute(t, "room", "resize", "Atelier", "120", "80")
	require.NoError(t, err)

	stored := f.room(t, room.ID)
	assert.Equal(t, 10, stored.PositionX)
	assert.Equal(t, 21, stored.PositionY)
	assert.Equal(t, 120, stored.Width)
	assert.Equal(t, 80, stored.Height)

	_, err = f.execute(t, "room", "move", "Atelier", "left", "20")
	require.Error(t, err)
	assert.Equal(t, "invalid arguments", err.Error())
}

func TestRoomSwap(t *testing.T) {
	f := setup(t)
	a := testutil.SeedRoom(t, f.client, "A", board.CategoryGroundFloor, 100)
	b := testutil.SeedRoom(t, f.client, "B", board.CategoryGroundFloor, 200)
	testutil.SeedRoom(t, f.client, "C", board.CategoryGroundFloor, 200)

	_, err := f.execute(t, "room", "swap", "A", "B")
	require.NoError(t, err)
	assert.Equal(t, 200, f.room(t, a.ID).OrderKey)
	assert.Equal(t, 100, f.room(t, b.ID).OrderKey)

	_, err = f.execute(t, "room", "swap", "A", "C")
	require.Error(t, err)
	assert.Equal(t, "rooms not swapped", err.Error())
}

func TestReset(t *testing.T) {
	f := setup(t)
	room := testutil.SeedRoom(t, f.client, "Atelier", board.CategoryAttic, 100)
	testutil.SeedConfig(t, f.client, room.ID, 3, "09:00", "17:00")
	testutil.SeedSettings(t, f.client, board.AppSettings{ID: board.SettingsID, NightStart: "22:00", NightEnd: "06:00"})
	require.NoError(t, f.client.UpsertStatuses(context.Background(), []board.RoomStatus{
		{RoomID: room.ID, IsOpen: true, ManualOverride: true, LastUpdated: board.Timestamp(time.Now())},
	}))

	_, err := f.execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, f.stdout.String(), "board reset")

	st := f.status(t, room.ID)
	assert.False(t, st.IsOpen)
	assert.False(t, st.ManualOverride)

	settings, err := f.client.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timespec.Day(time.Now()), settings.LastDailyReset)

	configs, err := f.client.ListConfigs(context.Background())
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Empty(t, configs[0].OpenTime)
	assert.Empty(t, configs[0].CloseTime)

	_, err = f.execute(t, "reset")
	require.NoError(t, err)
	assert.Contains(t, f.stdout.String(), "already reset today")
}

func TestKeepalive(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "keepalive")
	require.NoError(t, err)
	assert.Contains(t, f.stdout.String(), "redis backend is alive")
}

func TestBackendUnreachable(t *testing.T) {
	f := setup(t)
	f.mr.Close()

	_, err := f.execute(t, "keepalive")
	require.Error(t, err)
	assert.Equal(t, "cannot reach the backend", err.Error())
}

func TestRun_AppliesScheduleUntilCancelled(t *testing.T) {
	f := setup(t)
	now := time.Now()
	room := testutil.SeedRoom(t, f.client, "Atelier", board.CategoryAttic, 100)
	testutil.SeedConfig(t, f.client, room.ID, int(now.Weekday()), "00:00", "")
	testutil.SeedSettings(t, f.client, board.AppSettings{
		ID: board.SettingsID, NightStart: "22:00", NightEnd: "06:00", LastDailyReset: timespec.Day(now),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.executeContext(ctx, "run")
		done <- err
	}()

	require.Eventually(t, func() bool {
		statuses, err := f.client.ListStatuses(context.Background())
		return err == nil && len(statuses) == 1 && statuses[0].IsOpen
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
