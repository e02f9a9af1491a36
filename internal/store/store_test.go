package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/board"
)

func newStore(t *testing.T) (*Store, *board.Client) {
	client, _ := testutil.NewBoard(t)
	return New(client, zap.NewNop()), client
}

func mustChange(t *testing.T, kind board.Kind, op board.Op, row any) board.Change {
	t.Helper()
	c, err := board.NewChange(kind, op, row)
	require.NoError(t, err)
	return c
}

func TestLoad(t *testing.T) {
	s, client := newStore(t)
	ctx := context.Background()

	kitchen := testutil.SeedRoom(t, client, "Kitchen", board.CategoryGroundFloor, 100)
	testutil.SeedConfig(t, client, kitchen.ID, 1, "09:00", "17:00")
	testutil.SeedSettings(t, client, board.AppSettings{NightStart: "22:00", NightEnd: "06:00"})

	before := s.Versions()
	require.NoError(t, s.Load(ctx))

	snap := s.Snapshot()
	assert.Len(t, snap.Rooms, 1)
	assert.Len(t, snap.Statuses, 1)
	assert.Len(t, snap.Configs, 1)
	require.NotNil(t, snap.Settings)
	assert.Equal(t, "22:00", snap.Settings.NightStart)
	assert.Greater(t, snap.Versions.Rooms, before.Rooms)

	room, ok := s.Room(kitchen.ID)
	require.True(t, ok)
	assert.Equal(t, "Kitchen", room.Name)
}

func TestLoad_MissingSettingsIsNotAnError(t *testing.T) {
	s, client := newStore(t)
	testutil.SeedRoom(t, client, "Kitchen", board.CategoryGroundFloor, 100)

	require.NoError(t, s.Load(context.Background()))
	assert.Nil(t, s.Settings())
}

func TestLoad_FailureLeavesStoreUnchanged(t *testing.T) {
	client, mr := testutil.NewBoard(t)
	s := New(client, zap.NewNop())
	testutil.SeedRoom(t, client, "Kitchen", board.CategoryGroundFloor, 100)
	require.NoError(t, s.Load(context.Background()))
	before := s.Snapshot()

	testutil.SeedRoom(t, client, "Office", board.CategoryFirstFloor, 100)
	mr.SetError("LOADING server is loading")
	defer mr.SetError("")

	assert.Error(t, s.Load(context.Background()))
	after := s.Snapshot()
	assert.Len(t, after.Rooms, 1)
	assert.Equal(t, before.Versions, after.Versions)
}

func TestApplyRemoteEvent_Idempotent(t *testing.T) {
	s, _ := newStore(t)
	room := board.Room{ID: uuid.New().String(), Name: "Lab", Category: board.CategoryBasement, OrderKey: 100}
	status := board.RoomStatus{RoomID: room.ID, IsOpen: true, LastUpdated: board.Timestamp(time.Now())}
	cfg := board.DailyConfig{ID: uuid.New().String(), RoomID: room.ID, Weekday: 2, OpenTime: "09:00"}
	settings := board.AppSettings{ID: board.SettingsID, NightModeEnabled: true}

	changes := []board.Change{
		mustChange(t, board.KindRoom, board.OpInsert, room),
		mustChange(t, board.KindStatus, board.OpInsert, status),
		mustChange(t, board.KindConfig, board.OpInsert, cfg),
		mustChange(t, board.KindSettings, board.OpUpdate, settings),
	}

	for _, c := range changes {
		require.NoError(t, s.ApplyRemoteEvent(c))
	}
	once := s.Snapshot()

	for _, c := range changes {
		require.NoError(t, s.ApplyRemoteEvent(c))
	}
	twice := s.Snapshot()

	assert.Equal(t, once.Versions, twice.Versions)
	assert.Equal(t, once.Rooms, twice.Rooms)
	assert.Equal(t, once.Statuses, twice.Statuses)
	assert.Equal(t, once.Configs, twice.Configs)
	assert.Equal(t, *once.Settings, *twice.Settings)
}

func TestApplyRemoteEvent_Delete(t *testing.T) {
	s, _ := newStore(t)
	room := board.Room{ID: uuid.New().String(), Name: "Lab", Category: board.CategoryBasement}
	cfg := board.DailyConfig{RoomID: room.ID, Weekday: 4}

	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindRoom, board.OpInsert, room)))
	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindConfig, board.OpInsert, cfg)))

	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindConfig, board.OpDelete, cfg)))
	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindRoom, board.OpDelete, room)))

	snap := s.Snapshot()
	assert.Empty(t, snap.Rooms)
	assert.Empty(t, snap.Configs)

	t.Run("deleting an absent key changes no version", func(t *testing.T) {
		before := s.Versions()
		require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindRoom, board.OpDelete, room)))
		assert.Equal(t, before, s.Versions())
	})
}

func TestApplyRemoteEvent_StatusLastArrivalWins(t *testing.T) {
	s, _ := newStore(t)
	roomID := uuid.New().String()
	now := board.Timestamp(time.Now())

	// Written by a client whose clock runs ahead, then overwritten by a manual hold
	// committed later but stamped earlier.
	scheduled := board.RoomStatus{RoomID: roomID, IsOpen: true, LastUpdated: now.Add(time.Second)}
	manual := board.RoomStatus{RoomID: roomID, IsOpen: false, ManualOverride: true, LastUpdated: now}

	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindStatus, board.OpUpdate, scheduled)))
	require.NoError(t, s.ApplyRemoteEvent(mustChange(t, board.KindStatus, board.OpUpdate, manual)))

	got, ok := s.Status(roomID)
	require.True(t, ok)
	assert.True(t, got.Equal(manual))
}

func TestApplyRemoteEvent_RejectsBadChange(t *testing.T) {
	s, _ := newStore(t)
	assert.Error(t, s.ApplyRemoteEvent(board.Change{Kind: "people", Op: board.OpInsert, New: []byte(`{}`)}))
	assert.Error(t, s.ApplyRemoteEvent(board.Change{Kind: board.KindRoom, Op: board.OpInsert, New: []byte(`[1,2]`)}))
}

func TestUpdate(t *testing.T) {
	s, _ := newStore(t)
	roomID := uuid.New().String()

	t.Run("error discards every change", func(t *testing.T) {
		before := s.Versions()
		err := s.Update(func(tx *Tx) error {
			tx.PutRoom(board.Room{ID: roomID, Name: "Lab"})
			return errors.New("abort")
		})
		assert.Error(t, err)
		assert.Equal(t, before, s.Versions())
		_, ok := s.Room(roomID)
		assert.False(t, ok)
	})

	t.Run("only touched maps are bumped", func(t *testing.T) {
		before := s.Versions()
		require.NoError(t, s.Update(func(tx *Tx) error {
			tx.PutStatus(board.RoomStatus{RoomID: roomID, IsOpen: true})
			return nil
		}))
		after := s.Versions()
		assert.Equal(t, before.Statuses+1, after.Statuses)
		assert.Equal(t, before.Rooms, after.Rooms)
		assert.Equal(t, before.Configs, after.Configs)
	})

	t.Run("installed maps are never modified in place", func(t *testing.T) {
		held := s.Snapshot().Statuses
		require.NoError(t, s.Update(func(tx *Tx) error {
			tx.PutStatus(board.RoomStatus{RoomID: roomID, IsOpen: false})
			return nil
		}))
		assert.True(t, held[roomID].IsOpen)
		st, _ := s.Status(roomID)
		assert.False(t, st.IsOpen)
	})
}

func TestRemoveAndRestore(t *testing.T) {
	s, _ := newStore(t)
	roomID := uuid.New().String()
	require.NoError(t, s.Update(func(tx *Tx) error {
		tx.PutRoom(board.Room{ID: roomID, Name: "Lab", Category: board.CategoryBasement})
		tx.PutStatus(board.RoomStatus{RoomID: roomID})
		tx.PutConfig(board.DailyConfig{RoomID: roomID, Weekday: 0})
		tx.PutConfig(board.DailyConfig{RoomID: roomID, Weekday: 6})
		return nil
	}))
	before := s.Snapshot()

	var removed Removed
	require.NoError(t, s.Update(func(tx *Tx) error {
		removed = tx.RemoveRoom(roomID)
		return nil
	}))
	assert.NotNil(t, removed.Room)
	assert.NotNil(t, removed.Status)
	assert.Len(t, removed.Configs, 2)
	assert.Empty(t, s.Snapshot().Configs)

	require.NoError(t, s.Update(func(tx *Tx) error {
		tx.Restore(removed)
		return nil
	}))
	after := s.Snapshot()
	assert.Equal(t, before.Rooms, after.Rooms)
	assert.Equal(t, before.Statuses, after.Statuses)
	assert.Equal(t, before.Configs, after.Configs)
}

func TestVisibleRooms(t *testing.T) {
	s, _ := newStore(t)
	attic := board.Room{ID: "a-" + uuid.New().String(), Name: "Attic", Category: board.CategoryAttic, OrderKey: 500}
	hallB := board.Room{ID: "b-" + uuid.New().String(), Name: "Hall B", Category: board.CategoryGroundFloor, OrderKey: 200}
	hallA := board.Room{ID: "c-" + uuid.New().String(), Name: "Hall A", Category: board.CategoryGroundFloor, OrderKey: 100}
	hidden := board.Room{ID: "d-" + uuid.New().String(), Name: "Shed", Category: board.CategoryExternal, OrderKey: 100}

	require.NoError(t, s.Update(func(tx *Tx) error {
		for _, r := range []board.Room{attic, hallB, hallA, hidden} {
			tx.PutRoom(r)
		}
		tx.PutStatus(board.RoomStatus{RoomID: hallA.ID, IsOpen: true})
		tx.PutConfig(board.DailyConfig{RoomID: attic.ID, Weekday: 3})
		tx.PutConfig(board.DailyConfig{RoomID: hallA.ID, Weekday: 3})
		tx.PutConfig(board.DailyConfig{RoomID: hallB.ID, Weekday: 3})
		tx.PutConfig(board.DailyConfig{RoomID: hidden.ID, Weekday: 4})
		return nil
	}))

	rows := s.VisibleRooms(3)
	require.Len(t, rows, 3)
	assert.Equal(t, "Attic", rows[0].Room.Name)
	assert.Equal(t, "Hall A", rows[1].Room.Name)
	assert.Equal(t, "Hall B", rows[2].Room.Name)
	assert.True(t, rows[1].IsOpen)
	assert.False(t, rows[2].IsOpen, "room without status shows closed")

	t.Run("memoized until a version changes", func(t *testing.T) {
		again := s.VisibleRooms(3)
		assert.Same(t, &rows[0], &again[0])

		require.NoError(t, s.Update(func(tx *Tx) error {
			tx.PutStatus(board.RoomStatus{RoomID: hallB.ID, IsOpen: true})
			return nil
		}))
		fresh := s.VisibleRooms(3)
		assert.NotSame(t, &rows[0], &fresh[0])
		assert.True(t, fresh[2].IsOpen)
	})

	t.Run("other weekday", func(t *testing.T) {
		other := s.VisibleRooms(4)
		require.Len(t, other, 1)
		assert.Equal(t, "Shed", other[0].Room.Name)
	})
}

func TestViewWeekday(t *testing.T) {
	s, _ := newStore(t)
	assert.Equal(t, int(time.Now().Weekday()), s.ViewWeekday())

	next := (s.ViewWeekday() + 1) % 7
	assert.True(t, s.SetViewWeekday(next))
	assert.False(t, s.SetViewWeekday(next))
	assert.Equal(t, next, s.ViewWeekday())
}
