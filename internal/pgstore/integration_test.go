//go:build integration

package pgstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/dyluth/warren/pkg/board"
)

// setupPostgres starts a PostgreSQL container and returns its DSN.
func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "warren",
			"POSTGRES_PASSWORD": "warren",
			"POSTGRES_DB":       "warren",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}

	host, err := pgC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := pgC.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	dsn := fmt.Sprintf("postgres://warren:warren@%s:%s/warren?sslmode=disable", host, port.Port())

	cleanup := func() {
		if err := pgC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Postgres container: %v", err)
		}
	}
	return dsn, cleanup
}

func openStore(t *testing.T, ctx context.Context, dsn string) *Store {
	db, err := Open(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db, zaptest.NewLogger(t))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestIntegration_ClaimDailyResetHasOneWinner(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stores := make([]*Store, 4)
	for i := range stores {
		stores[i] = openStore(t, ctx, dsn)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for _, s := range stores {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			settings, err := s.ClaimDailyReset(ctx, "2026-10-15")
			assert.NoError(t, err)
			if settings != nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 1, winners)

	settings, err := stores[0].GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-15", settings.LastDailyReset)
}

func TestIntegration_RoundTripAndNotify(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s := openStore(t, ctx, dsn)
	bus := NewBus(dsn, zaptest.NewLogger(t))

	sub, err := bus.Subscribe(ctx, board.KindStatus)
	require.NoError(t, err)
	defer sub.Close()

	room, err := s.InsertRoom(ctx, board.Room{Name: "Atelier", Category: board.CategoryAttic, OrderKey: 100})
	require.NoError(t, err)

	status := board.RoomStatus{RoomID: room.ID, IsOpen: true, ManualOverride: true, LastUpdated: board.Timestamp(time.Now())}
	require.NoError(t, s.UpsertStatuses(ctx, []board.RoomStatus{status}))

	select {
	case change := <-sub.Changes():
		assert.Equal(t, board.OpInsert, change.Op)
		assert.Contains(t, string(change.Row()), room.ID)
	case err := <-sub.Errors():
		t.Fatalf("subscription error: %v", err)
	case <-ctx.Done():
		t.Fatal("no notification received")
	}

	statuses, err := s.ListStatuses(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, status.Equal(statuses[0]))

	configs, err := s.UpsertConfigs(ctx, []board.DailyConfig{{RoomID: room.ID, Weekday: 4, OpenTime: "10:00", CloseTime: "12:00"}})
	require.NoError(t, err)
	firstID := configs[0].ID

	configs, err = s.UpsertConfigs(ctx, []board.DailyConfig{{RoomID: room.ID, Weekday: 4, Activity: "Malen"}})
	require.NoError(t, err)
	assert.Equal(t, firstID, configs[0].ID)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))

	select {
	case change := <-sub.Changes():
		assert.Equal(t, board.OpDelete, change.Op)
	case <-ctx.Done():
		t.Fatal("cascade delete was not notified")
	}
}
