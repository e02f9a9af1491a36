package commands

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/dyluth/warren/internal/config"
	"github.com/dyluth/warren/internal/logging"
	"github.com/dyluth/warren/internal/mutator"
	"github.com/dyluth/warren/internal/pgstore"
	"github.com/dyluth/warren/internal/printer"
	"github.com/dyluth/warren/internal/resolver"
	"github.com/dyluth/warren/internal/store"
	"github.com/dyluth/warren/pkg/board"
)

// session is one connected client: the backend, the local store over it and a mutator.
type session struct {
	cfg     *config.WarrenConfig
	logger  *zap.Logger
	remote  board.Store
	bus     board.Bus
	local   *store.Store
	mutator *mutator.Mutator
	closers []func() error
}

// openSession loads the config and connects to the configured backend.
// Daemon sessions log in the configured format; one-shot commands log to stderr on the
// console encoder so their output stays readable.
func (o *globalOptions) openSession(ctx context.Context, daemon bool) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	format, service := "console", ""
	if daemon {
		format, service = cfg.Log.Format, "warren"
	}
	logger, err := logging.New(cfg.Log.Level, format, service)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger = logger.With(zap.String("instance", cfg.Instance))

	s := &session{cfg: cfg, logger: logger}
	if err := s.connect(ctx); err != nil {
		s.close()
		return nil, printer.ErrorWithContext(
			"cannot reach the backend",
			err.Error(),
			map[string]string{"Backend": cfg.Backend, "Instance": cfg.Instance},
			[]string{"Check redis.url / postgres.dsn in warren.yml", "Check REDIS_URL / DATABASE_URL in the environment"},
		)
	}

	s.local = store.New(s.remote, logger)
	s.mutator = mutator.New(s.local, s.remote, logger, mutator.Options{
		OrderIncrement: cfg.Rooms.OrderIncrement,
		OrderBaseline:  cfg.Rooms.OrderBaseline,
	})
	return s, nil
}

func (s *session) connect(ctx context.Context) error {
	switch s.cfg.Backend {
	case config.BackendPostgres:
		db, err := pgstore.Open(ctx, s.cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)

		pg := pgstore.New(db, s.logger)
		if s.cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return err
			}
		}
		s.remote = pg
		s.bus = pgstore.NewBus(s.cfg.Postgres.DSN, s.logger)
		return nil

	default:
		opts, err := redis.ParseURL(s.cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		client, err := board.NewClient(opts, s.cfg.Instance)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, client.Close)

		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("redis not accessible: %w", err)
		}
		s.remote = client
		s.bus = client
		return nil
	}
}

// load fills the local store, reporting a failure to the user.
func (s *session) load(ctx context.Context) error {
	if err := s.local.Load(ctx); err != nil {
		return printer.Error("failed to load the board", err.Error(), nil)
	}
	return nil
}

// close waits for detached writes and releases the backend.
func (s *session) close() {
	if s.mutator != nil {
		s.mutator.Wait()
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = s.logger.Sync()
}

// resolveRoom finds the room ref names in the loaded board.
func (s *session) resolveRoom(ref string) (board.Room, error) {
	snap := s.local.Snapshot()
	rooms := make([]board.Room, 0, len(snap.Rooms))
	for _, r := range snap.Rooms {
		rooms = append(rooms, r)
	}

	room, err := resolver.ResolveRoom(rooms, ref)
	switch {
	case err == nil:
		return room, nil
	case resolver.IsAmbiguousError(err):
		return board.Room{}, printer.Error("ambiguous room", err.(*resolver.AmbiguousError).Describe(), nil)
	default:
		return board.Room{}, printer.Error("room not found", err.Error(), []string{"List rooms:\n  warren rooms"})
	}
}
