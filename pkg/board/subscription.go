package board

import (
	"sync"
)

// Subscription is an active stream of changes for one record kind.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	kind    Kind
	changes <-chan Change
	errors  <-chan error
	cancel  func()
	once    sync.Once
}

// NewSubscription wraps channels produced by a Bus implementation.
// cancel is invoked exactly once by Close.
func NewSubscription(kind Kind, changes <-chan Change, errs <-chan error, cancel func()) *Subscription {
	return &Subscription{kind: kind, changes: changes, errors: errs, cancel: cancel}
}

// Kind returns the record kind this subscription delivers.
func (s *Subscription) Kind() Kind {
	return s.kind
}

// Changes returns the channel of changes.
// The channel is closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Changes() <-chan Change {
	return s.changes
}

// Errors returns the channel of non-fatal subscription errors (undecodable payloads and the like).
// The subscription continues after errors; the offending message is skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Implements io.Closer.
// Safe to call multiple times - subsequent calls are no-ops.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}
