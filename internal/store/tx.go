package store

import (
	"github.com/dyluth/warren/pkg/board"
)

// Tx is the mutable view handed to Store.Update. The first write to a map clones it, so
// readers holding the installed map never observe a partial change.
// A Tx must not be used after Update returns.
type Tx struct {
	rooms    map[string]board.Room
	statuses map[string]board.RoomStatus
	configs  map[board.ConfigKey]board.DailyConfig
	settings *board.AppSettings

	roomsDirty    bool
	statusesDirty bool
	configsDirty  bool
	settingsDirty bool
}

// Rooms returns the rooms as seen by this transaction. Do not modify the map.
func (tx *Tx) Rooms() map[string]board.Room { return tx.rooms }

// Statuses returns the statuses as seen by this transaction. Do not modify the map.
func (tx *Tx) Statuses() map[string]board.RoomStatus { return tx.statuses }

// Configs returns the configs as seen by this transaction. Do not modify the map.
func (tx *Tx) Configs() map[board.ConfigKey]board.DailyConfig { return tx.configs }

func (tx *Tx) Room(id string) (board.Room, bool) {
	r, ok := tx.rooms[id]
	return r, ok
}

func (tx *Tx) Status(roomID string) (board.RoomStatus, bool) {
	st, ok := tx.statuses[roomID]
	return st, ok
}

func (tx *Tx) Config(key board.ConfigKey) (board.DailyConfig, bool) {
	c, ok := tx.configs[key]
	return c, ok
}

func (tx *Tx) Settings() *board.AppSettings { return tx.settings }

// PutRoom sets a room. Writing a value equal to the held one is a no-op.
func (tx *Tx) PutRoom(r board.Room) {
	if cur, ok := tx.rooms[r.ID]; ok && cur.Equal(r) {
		return
	}
	if !tx.roomsDirty {
		tx.rooms = cloneMap(tx.rooms)
		tx.roomsDirty = true
	}
	tx.rooms[r.ID] = r
}

func (tx *Tx) DeleteRoom(id string) {
	if _, ok := tx.rooms[id]; !ok {
		return
	}
	if !tx.roomsDirty {
		tx.rooms = cloneMap(tx.rooms)
		tx.roomsDirty = true
	}
	delete(tx.rooms, id)
}

// PutStatus sets a room status. Writing a value equal to the held one is a no-op.
func (tx *Tx) PutStatus(st board.RoomStatus) {
	if cur, ok := tx.statuses[st.RoomID]; ok && cur.Equal(st) {
		return
	}
	if !tx.statusesDirty {
		tx.statuses = cloneMap(tx.statuses)
		tx.statusesDirty = true
	}
	tx.statuses[st.RoomID] = st
}

func (tx *Tx) DeleteStatus(roomID string) {
	if _, ok := tx.statuses[roomID]; !ok {
		return
	}
	if !tx.statusesDirty {
		tx.statuses = cloneMap(tx.statuses)
		tx.statusesDirty = true
	}
	delete(tx.statuses, roomID)
}

// PutConfig sets a daily config under its (room, weekday) key.
func (tx *Tx) PutConfig(c board.DailyConfig) {
	if cur, ok := tx.configs[c.Key()]; ok && cur == c {
		return
	}
	if !tx.configsDirty {
		tx.configs = cloneMap(tx.configs)
		tx.configsDirty = true
	}
	tx.configs[c.Key()] = c
}

func (tx *Tx) DeleteConfig(key board.ConfigKey) {
	if _, ok := tx.configs[key]; !ok {
		return
	}
	if !tx.configsDirty {
		tx.configs = cloneMap(tx.configs)
		tx.configsDirty = true
	}
	delete(tx.configs, key)
}

// PutSettings replaces the settings row; nil clears it.
func (tx *Tx) PutSettings(s *board.AppSettings) {
	switch {
	case s == nil && tx.settings == nil:
		return
	case s != nil && tx.settings != nil && *s == *tx.settings:
		return
	}
	if s != nil {
		cp := *s
		s = &cp
	}
	tx.settings = s
	tx.settingsDirty = true
}

// Removed is everything RemoveRoom took out, so it can be put back.
type Removed struct {
	Room    *board.Room
	Status  *board.RoomStatus
	Configs []board.DailyConfig
}

// RemoveRoom deletes a room together with its status and every weekday's config.
func (tx *Tx) RemoveRoom(id string) Removed {
	var out Removed
	if r, ok := tx.rooms[id]; ok {
		out.Room = &r
		tx.DeleteRoom(id)
	}
	if st, ok := tx.statuses[id]; ok {
		out.Status = &st
		tx.DeleteStatus(id)
	}
	for weekday := 0; weekday <= 6; weekday++ {
		key := board.ConfigKey{RoomID: id, Weekday: weekday}
		if c, ok := tx.configs[key]; ok {
			out.Configs = append(out.Configs, c)
			tx.DeleteConfig(key)
		}
	}
	return out
}

// Restore puts back what RemoveRoom took out.
func (tx *Tx) Restore(r Removed) {
	if r.Room != nil {
		tx.PutRoom(*r.Room)
	}
	if r.Status != nil {
		tx.PutStatus(*r.Status)
	}
	for _, c := range r.Configs {
		tx.PutConfig(c)
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}
