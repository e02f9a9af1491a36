// Package listener forwards Change Bus notifications into the local store.
package listener

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dyluth/warren/pkg/board"
)

// Sink receives every change the listener delivers. *store.Store implements it.
type Sink interface {
	ApplyRemoteEvent(change board.Change) error
}

// Listener subscribes to every record kind on a bus and applies each change to a Sink.
type Listener struct {
	bus    board.Bus
	sink   Sink
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	subs   []*board.Subscription
	wg     sync.WaitGroup
}

// New creates a listener. It does nothing until Start.
func New(bus board.Bus, sink Sink, logger *zap.Logger) *Listener {
	return &Listener{
		bus:    bus,
		sink:   sink,
		logger: logger.Named("listener"),
	}
}

// Start subscribes to board.Kinds and begins forwarding. A running listener is stopped
// first, so calling Start again restarts cleanly with fresh subscriptions.
// If any subscription fails, those already opened are closed and the error is returned.
func (l *Listener) Start(ctx context.Context) error {
	l.Stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	subs := make([]*board.Subscription, 0, len(board.Kinds))
	for _, kind := range board.Kinds {
		sub, err := l.bus.Subscribe(runCtx, kind)
		if err != nil {
			cancel()
			for _, s := range subs {
				s.Close()
			}
			return fmt.Errorf("failed to subscribe to %s: %w", kind, err)
		}
		subs = append(subs, sub)
	}

	l.cancel = cancel
	l.subs = subs
	for _, sub := range subs {
		l.wg.Add(1)
		go l.forward(runCtx, sub)
	}

	l.logger.Info("listening for changes", zap.Int("kinds", len(subs)))
	return nil
}

// Stop closes every subscription and waits for the forwarding goroutines to exit.
// Changes already applied stay applied. Stop on a stopped listener is a no-op.
func (l *Listener) Stop() {
	l.mu.Lock()
	cancel, subs := l.cancel, l.subs
	l.cancel, l.subs = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	for _, sub := range subs {
		sub.Close()
	}
	l.wg.Wait()
	l.logger.Info("stopped listening")
}

// Running reports whether the listener currently holds subscriptions.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

func (l *Listener) forward(ctx context.Context, sub *board.Subscription) {
	defer l.wg.Done()
	kind := sub.Kind()

	for {
		select {
		case <-ctx.Done():
			return

		case change, ok := <-sub.Changes():
			if !ok {
				l.logger.Debug("subscription closed", zap.String("kind", string(kind)))
				return
			}
			if err := l.sink.ApplyRemoteEvent(change); err != nil {
				// Skip the change, keep listening
				l.logger.Warn("failed to apply change",
					zap.String("kind", string(kind)),
					zap.String("op", string(change.Op)),
					zap.Error(err))
			}

		case err, ok := <-sub.Errors():
			if !ok {
				return
			}
			l.logger.Warn("subscription error", zap.String("kind", string(kind)), zap.Error(err))
		}
	}
}
