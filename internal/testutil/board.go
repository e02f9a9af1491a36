// Package testutil provides miniredis-backed board fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/pkg/board"
)

// Instance is the instance name every fixture client uses.
const Instance = "test-instance"

// NewBoard starts a miniredis server and returns a client connected to it.
// Both are closed when the test ends.
func NewBoard(t testing.TB) (*board.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	return ClientOn(t, mr), mr
}

// ClientOn opens another client against an existing miniredis server, as a second
// display client would.
func ClientOn(t testing.TB, mr *miniredis.Miniredis) *board.Client {
	t.Helper()

	client, err := board.NewClient(&redis.Options{Addr: mr.Addr()}, Instance)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// SeedRoom inserts a room with a closed, non-manual status.
func SeedRoom(t testing.TB, client *board.Client, name string, category board.Category, orderKey int) board.Room {
	t.Helper()
	ctx := context.Background()

	room, err := client.InsertRoom(ctx, board.Room{Name: name, Category: category, OrderKey: orderKey})
	require.NoError(t, err)
	require.NoError(t, client.UpsertStatuses(ctx, []board.RoomStatus{board.ClosedStatus(room.ID, board.Timestamp(time.Now()))}))
	return *room
}

// SeedConfig stores a daily config for a room.
func SeedConfig(t testing.TB, client *board.Client, roomID string, weekday int, openTime, closeTime string) board.DailyConfig {
	t.Helper()

	stored, err := client.UpsertConfigs(context.Background(), []board.DailyConfig{{
		RoomID:    roomID,
		Weekday:   weekday,
		OpenTime:  openTime,
		CloseTime: closeTime,
	}})
	require.NoError(t, err)
	return stored[0]
}

// SeedSettings writes the settings row.
func SeedSettings(t testing.TB, client *board.Client, s board.AppSettings) {
	t.Helper()
	require.NoError(t, client.PutSettings(context.Background(), s))
}
