package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/dyluth/warren/pkg/board"
)

const (
	minReconnectInterval = 500 * time.Millisecond
	maxReconnectInterval = 30 * time.Second
)

// ErrNotificationsMissed is sent on a subscription's error channel after the listener
// connection was re-established. Changes committed while it was down were not delivered.
var ErrNotificationsMissed = errors.New("listener reconnected, changes may have been missed")

// Bus implements board.Bus with LISTEN on NotifyChannel. Each subscription holds its own
// listener connection and keeps the notifications of its kind.
type Bus struct {
	dsn    string
	logger *zap.Logger
}

var _ board.Bus = (*Bus)(nil)

// NewBus creates a bus that opens listener connections with dsn.
func NewBus(dsn string, logger *zap.Logger) *Bus {
	return &Bus{dsn: dsn, logger: logger.Named("pgbus")}
}

func (b *Bus) Subscribe(ctx context.Context, kind board.Kind) (*board.Subscription, error) {
	logger := b.logger.With(zap.String("kind", string(kind)))

	ready := make(chan struct{}, 1)
	l := pq.NewListener(b.dsn, minReconnectInterval, maxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if ev == pq.ListenerEventConnected {
			select {
			case ready <- struct{}{}:
			default:
			}
		}
		if err != nil {
			logger.Warn("listener event", zap.Int("event", int(ev)), zap.Error(err))
		}
	})
	if err := l.Listen(NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen on %s: %w", NotifyChannel, err)
	}

	// Notifications only flow once the listener connection is up.
	select {
	case <-ready:
	case <-ctx.Done():
		l.Close()
		return nil, ctx.Err()
	}

	subCtx, cancel := context.WithCancel(ctx)
	changes := make(chan board.Change, 10)
	errs := make(chan error, 10)

	go func() {
		defer close(changes)
		defer close(errs)
		defer l.Close()

		for {
			select {
			case <-subCtx.Done():
				return
			case n, ok := <-l.Notify:
				if !ok {
					return
				}
				if n == nil {
					sendErr(subCtx, errs, ErrNotificationsMissed)
					continue
				}
				change, err := decodeNotification(n.Extra)
				if err != nil {
					sendErr(subCtx, errs, err)
					continue
				}
				if change.Kind != kind {
					continue
				}
				select {
				case changes <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return board.NewSubscription(kind, changes, errs, cancel), nil
}

func decodeNotification(payload string) (board.Change, error) {
	var change board.Change
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		return board.Change{}, fmt.Errorf("failed to decode notification: %w", err)
	}
	if err := change.Validate(); err != nil {
		return board.Change{}, fmt.Errorf("invalid notification: %w", err)
	}
	return change, nil
}

// sendErr drops the error when nobody is draining the channel.
func sendErr(ctx context.Context, errs chan<- error, err error) {
	select {
	case errs <- err:
	case <-ctx.Done():
	default:
	}
}
