package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a single-row read or update matches nothing.
var ErrNotFound = errors.New("record not found")

// Store is the durable, shared Remote Store every client reads from and writes to.
// Implementations must be safe for concurrent use.
//
// ClaimDailyReset is the only conditional write: it must evaluate its predicate atomically
// against concurrent writers, because it is the sole mutual-exclusion primitive between clients.
type Store interface {
	ListRooms(ctx context.Context) ([]Room, error)
	ListStatuses(ctx context.Context) ([]RoomStatus, error)
	ListConfigs(ctx context.Context) ([]DailyConfig, error)
	// GetSettings returns ErrNotFound when the singleton row does not exist yet.
	GetSettings(ctx context.Context) (*AppSettings, error)

	// InsertRoom stores a new room, assigning ID and CreatedAt when empty, and returns the stored row.
	InsertRoom(ctx context.Context, room Room) (*Room, error)
	// UpsertStatuses writes statuses keyed by room_id.
	UpsertStatuses(ctx context.Context, statuses []RoomStatus) error
	// UpsertConfigs writes configs keyed by (room_id, weekday), assigning IDs when empty.
	UpsertConfigs(ctx context.Context, configs []DailyConfig) ([]DailyConfig, error)
	UpdateRoomPosition(ctx context.Context, roomID string, x, y int) error
	UpdateRoomSize(ctx context.Context, roomID string, width, height int) error
	UpdateRoomOrder(ctx context.Context, roomID string, orderKey int) error
	// DeleteRoom removes the room and cascades to its status and configs.
	DeleteRoom(ctx context.Context, roomID string) error
	// ClearScheduleTimes empties open_time and close_time on every config.
	ClearScheduleTimes(ctx context.Context) error

	// ClaimDailyReset sets last_daily_reset = day on the settings row only when it is null or
	// different from day. It returns the updated row on a match and (nil, nil) otherwise.
	ClaimDailyReset(ctx context.Context, day string) (*AppSettings, error)

	// Ping performs the cheapest possible round trip, used for health checks and keep-alive.
	Ping(ctx context.Context) error
}

// Bus delivers at-least-once change notifications per record kind.
// No ordering is guaranteed between kinds.
type Bus interface {
	Subscribe(ctx context.Context, kind Kind) (*Subscription, error)
}

// Kind names a record type on the bus.
type Kind string

const (
	KindRoom     Kind = "rooms"
	KindStatus   Kind = "room_status"
	KindConfig   Kind = "daily_configs"
	KindSettings Kind = "app_settings"
)

// Kinds lists every record kind a client listens to.
var Kinds = []Kind{KindRoom, KindStatus, KindConfig, KindSettings}

// Op is the change operation. Values match the Postgres trigger TG_OP names.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Change is one notification from the bus. Old is set for deletes, New for inserts and updates.
type Change struct {
	Kind Kind            `json:"kind"`
	Op   Op              `json:"op"`
	Old  json.RawMessage `json:"old,omitempty"`
	New  json.RawMessage `json:"new,omitempty"`
}

// Row returns the payload that identifies the affected record: New for upserts, Old for deletes.
func (c Change) Row() json.RawMessage {
	if c.Op == OpDelete {
		return c.Old
	}
	return c.New
}

// NewChange encodes row as the payload of a change of the given kind and op.
func NewChange(kind Kind, op Op, row any) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, fmt.Errorf("failed to marshal %s row: %w", kind, err)
	}
	c := Change{Kind: kind, Op: op}
	if op == OpDelete {
		c.Old = data
	} else {
		c.New = data
	}
	return c, nil
}

// Validate checks the kind and op values.
func (c Change) Validate() error {
	switch c.Kind {
	case KindRoom, KindStatus, KindConfig, KindSettings:
	default:
		return fmt.Errorf("unknown change kind: %q", c.Kind)
	}
	switch c.Op {
	case OpInsert, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown change op: %q", c.Op)
	}
	if len(c.Row()) == 0 {
		return fmt.Errorf("%s %s change carries no row", c.Kind, c.Op)
	}
	return nil
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
