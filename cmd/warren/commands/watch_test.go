package commands

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyluth/warren/internal/testutil"
	"github.com/dyluth/warren/pkg/board"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatch_InvalidOutput(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "watch", "--output", "xml")
	require.Error(t, err)
	assert.Equal(t, "invalid output format", err.Error())
}

func TestWatch_InvalidFilter(t *testing.T) {
	f := setup(t)

	_, err := f.execute(t, "watch", "--room", "[Werk")
	require.Error(t, err)
	assert.Equal(t, "invalid filter", err.Error())
}

func TestWatch_StreamsChangesUntilCancelled(t *testing.T) {
	f := setup(t)
	room := testutil.SeedRoom(t, f.client, "Bibliothek", board.CategoryFirstFloor, 100)

	cmd := NewRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs([]string{"--config", f.configPath, "watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		for _, kind := range board.Kinds {
			channel := board.EventsChannel(testutil.Instance, kind)
			if f.mr.PubSubNumSub(channel)[channel] != 1 {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, f.client.UpsertStatuses(context.Background(), []board.RoomStatus{
		{RoomID: room.ID, IsOpen: true, ManualOverride: true, LastUpdated: board.Timestamp(time.Now())},
	}))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "🟢 Bibliothek opened (manual)")
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancellation")
	}
	assert.Contains(t, f.stdout.String(), "Watching instance "+testutil.Instance)
}
