// Package store holds the client-local cache of the board: rooms, statuses, daily configs
// and settings.
//
// Every mutation runs inside Update under one mutex, so a tick, a bus callback and a user
// action never interleave within a single change. Maps are copy-on-write: readers get the
// installed map and must not modify it, and each effective change installs a new map and
// bumps that map's version.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dyluth/warren/pkg/board"
)

// Versions are per-map change counters. A consumer that remembers a version knows the map is
// unchanged for as long as the counter is.
type Versions struct {
	Rooms    uint64
	Statuses uint64
	Configs  uint64
	Settings uint64
}

// Snapshot is an immutable view of the whole cache.
type Snapshot struct {
	Rooms    map[string]board.Room
	Statuses map[string]board.RoomStatus
	Configs  map[board.ConfigKey]board.DailyConfig
	Settings *board.AppSettings
	Versions Versions
}

// VisibleRoom is one row of the board for a given weekday.
type VisibleRoom struct {
	Room   board.Room        `json:"room"`
	Status board.RoomStatus  `json:"status"`
	Config board.DailyConfig `json:"config"`
	IsOpen bool              `json:"is_open"`
}

type visibleMemo struct {
	weekday  int
	rooms    uint64
	statuses uint64
	configs  uint64
	rows     []VisibleRoom
}

// Store is the local cache. It is safe for concurrent use.
type Store struct {
	remote board.Store
	logger *zap.Logger

	mu          sync.Mutex
	rooms       map[string]board.Room
	statuses    map[string]board.RoomStatus
	configs     map[board.ConfigKey]board.DailyConfig
	settings    *board.AppSettings
	versions    Versions
	viewWeekday int
	memo        *visibleMemo
}

// New creates an empty store reading from remote. The view weekday starts at today.
func New(remote board.Store, logger *zap.Logger) *Store {
	return &Store{
		remote:      remote,
		logger:      logger.Named("store"),
		rooms:       map[string]board.Room{},
		statuses:    map[string]board.RoomStatus{},
		configs:     map[board.ConfigKey]board.DailyConfig{},
		viewWeekday: int(time.Now().Weekday()),
	}
}

// Load fetches every record kind and replaces all four maps wholesale.
// If any read fails nothing is installed and the error is returned.
func (s *Store) Load(ctx context.Context) error {
	rooms, err := s.remote.ListRooms(ctx)
	if err != nil {
		s.logger.Error("failed to load rooms", zap.Error(err))
		return fmt.Errorf("failed to load rooms: %w", err)
	}
	statuses, err := s.remote.ListStatuses(ctx)
	if err != nil {
		s.logger.Error("failed to load room statuses", zap.Error(err))
		return fmt.Errorf("failed to load room statuses: %w", err)
	}
	configs, err := s.remote.ListConfigs(ctx)
	if err != nil {
		s.logger.Error("failed to load daily configs", zap.Error(err))
		return fmt.Errorf("failed to load daily configs: %w", err)
	}
	settings, err := s.remote.GetSettings(ctx)
	if err != nil && !board.IsNotFound(err) {
		s.logger.Error("failed to load settings", zap.Error(err))
		return fmt.Errorf("failed to load settings: %w", err)
	}

	roomMap := make(map[string]board.Room, len(rooms))
	for _, r := range rooms {
		roomMap[r.ID] = r
	}
	statusMap := make(map[string]board.RoomStatus, len(statuses))
	for _, st := range statuses {
		statusMap[st.RoomID] = st
	}
	configMap := make(map[board.ConfigKey]board.DailyConfig, len(configs))
	for _, c := range configs {
		configMap[c.Key()] = c
	}

	s.mu.Lock()
	s.rooms, s.statuses, s.configs, s.settings = roomMap, statusMap, configMap, settings
	s.versions.Rooms++
	s.versions.Statuses++
	s.versions.Configs++
	s.versions.Settings++
	s.mu.Unlock()

	s.logger.Info("loaded board",
		zap.Int("rooms", len(roomMap)),
		zap.Int("statuses", len(statusMap)),
		zap.Int("configs", len(configMap)))
	return nil
}

// ApplyRemoteEvent folds one bus change into the cache. Applying the same change twice has
// the effect of applying it once. Changes apply in arrival order, the order the Remote Store
// committed them, whatever last_updated they carry: client clocks do not order writes.
func (s *Store) ApplyRemoteEvent(change board.Change) error {
	if err := change.Validate(); err != nil {
		return err
	}
	row := change.Row()

	switch change.Kind {
	case board.KindRoom:
		var room board.Room
		if err := json.Unmarshal(row, &room); err != nil {
			return fmt.Errorf("failed to decode room: %w", err)
		}
		return s.Update(func(tx *Tx) error {
			if change.Op == board.OpDelete {
				tx.DeleteRoom(room.ID)
			} else {
				tx.PutRoom(room)
			}
			return nil
		})

	case board.KindStatus:
		var status board.RoomStatus
		if err := json.Unmarshal(row, &status); err != nil {
			return fmt.Errorf("failed to decode room status: %w", err)
		}
		return s.Update(func(tx *Tx) error {
			if change.Op == board.OpDelete {
				tx.DeleteStatus(status.RoomID)
				return nil
			}
			tx.PutStatus(status)
			return nil
		})

	case board.KindConfig:
		var cfg board.DailyConfig
		if err := json.Unmarshal(row, &cfg); err != nil {
			return fmt.Errorf("failed to decode daily config: %w", err)
		}
		return s.Update(func(tx *Tx) error {
			if change.Op == board.OpDelete {
				tx.DeleteConfig(cfg.Key())
			} else {
				tx.PutConfig(cfg)
			}
			return nil
		})

	case board.KindSettings:
		var settings board.AppSettings
		if err := json.Unmarshal(row, &settings); err != nil {
			return fmt.Errorf("failed to decode settings: %w", err)
		}
		return s.Update(func(tx *Tx) error {
			if change.Op == board.OpDelete {
				tx.PutSettings(nil)
			} else {
				tx.PutSettings(&settings)
			}
			return nil
		})
	}
	return nil
}

// Snapshot returns the currently installed maps and versions.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Rooms:    s.rooms,
		Statuses: s.statuses,
		Configs:  s.configs,
		Settings: s.settings,
		Versions: s.versions,
	}
}

// Versions returns the current per-map versions.
func (s *Store) Versions() Versions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions
}

// Room returns one room.
func (s *Store) Room(id string) (board.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

// Status returns the status of one room.
func (s *Store) Status(roomID string) (board.RoomStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.statuses[roomID]
	return st, ok
}

// Settings returns the settings row, or nil when none has been loaded.
func (s *Store) Settings() *board.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ViewWeekday returns the weekday the board is currently showing (0 = Sunday).
func (s *Store) ViewWeekday() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewWeekday
}

// SetViewWeekday changes the weekday the board is showing and reports whether it changed.
func (s *Store) SetViewWeekday(weekday int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.viewWeekday == weekday {
		return false
	}
	s.viewWeekday = weekday
	return true
}

// VisibleRooms projects the rooms that have a config for weekday, sorted by category display
// order and then order key. The result is cached until the weekday or one of the room,
// status or config versions changes; callers must not modify it.
func (s *Store) VisibleRooms(weekday int) []VisibleRoom {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m := s.memo; m != nil &&
		m.weekday == weekday &&
		m.rooms == s.versions.Rooms &&
		m.statuses == s.versions.Statuses &&
		m.configs == s.versions.Configs {
		return m.rows
	}

	rows := make([]VisibleRoom, 0, len(s.rooms))
	for id, room := range s.rooms {
		cfg, ok := s.configs[board.ConfigKey{RoomID: id, Weekday: weekday}]
		if !ok {
			continue
		}
		status, ok := s.statuses[id]
		if !ok {
			status = board.RoomStatus{RoomID: id}
		}
		rows = append(rows, VisibleRoom{Room: room, Status: status, Config: cfg, IsOpen: status.IsOpen})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Room, rows[j].Room
		if ra, rb := a.Category.Rank(), b.Category.Rank(); ra != rb {
			return ra < rb
		}
		if a.OrderKey != b.OrderKey {
			return a.OrderKey < b.OrderKey
		}
		return a.ID < b.ID
	})

	s.memo = &visibleMemo{
		weekday:  weekday,
		rooms:    s.versions.Rooms,
		statuses: s.versions.Statuses,
		configs:  s.versions.Configs,
		rows:     rows,
	}
	return rows
}

// Update runs fn as one atomic mutation. Changes made through tx are installed only if fn
// returns nil; maps fn did not effectively change keep their map and version.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		rooms:    s.rooms,
		statuses: s.statuses,
		configs:  s.configs,
		settings: s.settings,
	}
	if err := fn(tx); err != nil {
		return err
	}

	if tx.roomsDirty {
		s.rooms = tx.rooms
		s.versions.Rooms++
	}
	if tx.statusesDirty {
		s.statuses = tx.statuses
		s.versions.Statuses++
	}
	if tx.configsDirty {
		s.configs = tx.configs
		s.versions.Configs++
	}
	if tx.settingsDirty {
		s.settings = tx.settings
		s.versions.Settings++
	}
	return nil
}
