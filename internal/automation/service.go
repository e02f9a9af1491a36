// Package automation runs the periodic jobs every client executes on its own: the schedule
// reconciliation tick, the once-per-day reset, the view clock and the keep-alive ping.
//
// A Service owns one timer per role. Start always stops a role's running timer before
// starting a new one, so repeated starts never leave duplicate tickers behind.
package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/listener"
	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/internal/timespec"
	"github.com/dyluth/warren/pkg/board"
)

// Role names one periodic job.
type Role string

const (
	RoleScheduler Role = "scheduler"
	RoleReset     Role = "reset"
	RoleClock     Role = "clock"
	RoleKeepalive Role = "keepalive"
)

const (
	DefaultTickInterval       = 10 * time.Second
	DefaultResetCheckInterval = time.Hour
	DefaultClockInterval      = time.Second
)

// Options configures a Service. Zero intervals take the defaults, except KeepaliveInterval
// where zero disables the role.
type Options struct {
	TickInterval       time.Duration
	ResetCheckInterval time.Duration
	ClockInterval      time.Duration
	KeepaliveInterval  time.Duration
	Now                func() time.Time
}

type roleTimer struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Service wires the local store, the Remote Store and the Change Bus together and drives
// the periodic jobs.
type Service struct {
	local    *store.Store
	remote   board.Store
	listener *listener.Listener
	reset    *ResetCoordinator
	logger   *zap.Logger
	opts     Options

	mu     sync.Mutex
	timers map[Role]*roleTimer

	pendingMu sync.Mutex
	pending   map[string]struct{}

	clockMu sync.Mutex
	lastDay string
}

// New creates a Service. Nothing runs until Start.
func New(local *store.Store, remote board.Store, bus board.Bus, logger *zap.Logger, opts Options) *Service {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.ResetCheckInterval <= 0 {
		opts.ResetCheckInterval = DefaultResetCheckInterval
	}
	if opts.ClockInterval <= 0 {
		opts.ClockInterval = DefaultClockInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		local:    local,
		remote:   remote,
		listener: listener.New(bus, local, logger),
		reset:    NewResetCoordinator(local, remote, logger, opts.Now),
		logger:   logger.Named("automation"),
		opts:     opts,
		timers:   make(map[Role]*roleTimer),
		pending:  make(map[string]struct{}),
	}
}

// Start subscribes to the bus, loads the board and starts every role's timer. Each role
// runs once immediately and then on its interval.
//
// The listener is started before the load so no change published in between is lost.
// A failed load is logged and left to the next reload; a failed subscription is returned.
func (s *Service) Start(ctx context.Context) error {
	if err := s.listener.Start(ctx); err != nil {
		return fmt.Errorf("failed to start change listener: %w", err)
	}
	if err := s.local.Load(ctx); err != nil {
		s.logger.Warn("initial load failed, continuing with an empty board", zap.Error(err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.startRoleLocked(ctx, RoleClock, s.opts.ClockInterval, func(context.Context) { s.AdvanceClock() })
	s.startRoleLocked(ctx, RoleReset, s.opts.ResetCheckInterval, func(ctx context.Context) {
		if _, err := s.reset.Run(ctx); err != nil {
			s.logger.Error("daily reset check failed", zap.Error(err))
		}
	})
	s.startRoleLocked(ctx, RoleScheduler, s.opts.TickInterval, func(ctx context.Context) {
		if err := s.Tick(ctx); err != nil {
			s.logger.Warn("scheduler tick failed", zap.Error(err))
		}
	})
	if s.opts.KeepaliveInterval > 0 {
		s.startRoleLocked(ctx, RoleKeepalive, s.opts.KeepaliveInterval, func(ctx context.Context) {
			_ = s.Keepalive(ctx)
		})
	} else {
		s.stopRoleLocked(RoleKeepalive)
	}

	s.logger.Info("automation started",
		zap.Duration("tick_interval", s.opts.TickInterval),
		zap.Duration("reset_check_interval", s.opts.ResetCheckInterval),
		zap.Duration("keepalive_interval", s.opts.KeepaliveInterval))
	return nil
}

// Stop halts every role and the listener and waits for running jobs to return.
func (s *Service) Stop() {
	s.mu.Lock()
	for role := range s.timers {
		s.stopRoleLocked(role)
	}
	s.mu.Unlock()

	s.listener.Stop()
	s.logger.Info("automation stopped")
}

// Running lists the roles whose timers are active, sorted by name.
func (s *Service) Running() []Role {
	s.mu.Lock()
	defer s.mu.Unlock()

	roles := make([]Role, 0, len(s.timers))
	for role := range s.timers {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

func (s *Service) startRoleLocked(ctx context.Context, role Role, interval time.Duration, job func(ctx context.Context)) {
	s.stopRoleLocked(role)

	roleCtx, cancel := context.WithCancel(ctx)
	t := &roleTimer{cancel: cancel, done: make(chan struct{})}
	s.timers[role] = t

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			job(roleCtx)
			select {
			case <-roleCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Service) stopRoleLocked(role Role) {
	t, ok := s.timers[role]
	if !ok {
		return
	}
	t.cancel()
	<-t.done
	delete(s.timers, role)
}

// CheckReset runs the daily reset coordinator once. It reports whether this client performed
// the reset.
func (s *Service) CheckReset(ctx context.Context) (bool, error) {
	return s.reset.Run(ctx)
}

// Keepalive performs the cheapest Remote Store round trip so an idle backend stays warm.
func (s *Service) Keepalive(ctx context.Context) error {
	if err := s.remote.Ping(ctx); err != nil {
		s.logger.Warn("keep-alive ping failed", zap.Error(err))
		return fmt.Errorf("keep-alive ping failed: %w", err)
	}
	s.logger.Debug("keep-alive ping ok")
	return nil
}

// AdvanceClock moves the view weekday to today when the calendar date rolls over.
// A weekday chosen by the user is kept until the date changes.
func (s *Service) AdvanceClock() bool {
	now := s.opts.Now()
	day := timespec.Day(now)

	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	if day == s.lastDay {
		return false
	}
	first := s.lastDay == ""
	s.lastDay = day

	changed := s.local.SetViewWeekday(int(now.Weekday()))
	if changed && !first {
		s.logger.Info("date rolled over", zap.String("day", day), zap.Int("weekday", int(now.Weekday())))
	}
	return changed
}
