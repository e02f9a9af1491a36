package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Client is the Redis implementation of Store and Bus.
// Every write publishes a Change on the record kind's events channel after it succeeds.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

var (
	_ Store = (*Client)(nil)
	_ Bus   = (*Client)(nil)
)

// NewClient creates a new board client for the specified instance.
// The client automatically namespaces all keys and channels with the instance name.
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ListRooms returns every room in the index. Index members whose hash has vanished are skipped.
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	hashes, err := c.readIndexed(ctx, KindRoom, func(id string) string { return RoomKey(c.instanceName, id) })
	if err != nil {
		return nil, err
	}

	rooms := make([]Room, 0, len(hashes))
	for _, hash := range hashes {
		room, err := HashToRoom(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize room: %w", err)
		}
		rooms = append(rooms, *room)
	}
	return rooms, nil
}

// ListStatuses returns every room status.
func (c *Client) ListStatuses(ctx context.Context) ([]RoomStatus, error) {
	hashes, err := c.readIndexed(ctx, KindStatus, func(id string) string { return StatusKey(c.instanceName, id) })
	if err != nil {
		return nil, err
	}

	statuses := make([]RoomStatus, 0, len(hashes))
	for _, hash := range hashes {
		status, err := HashToStatus(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize room status: %w", err)
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// ListConfigs returns every daily config.
func (c *Client) ListConfigs(ctx context.Context) ([]DailyConfig, error) {
	hashes, err := c.readIndexed(ctx, KindConfig, func(member string) string {
		return configMemberKey(c.instanceName, member)
	})
	if err != nil {
		return nil, err
	}

	configs := make([]DailyConfig, 0, len(hashes))
	for _, hash := range hashes {
		cfg, err := HashToConfig(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize daily config: %w", err)
		}
		configs = append(configs, *cfg)
	}
	return configs, nil
}

// GetSettings returns the singleton settings row, or ErrNotFound.
func (c *Client) GetSettings(ctx context.Context) (*AppSettings, error) {
	hash, err := c.rdb.HGetAll(ctx, SettingsKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read settings from Redis: %w", err)
	}
	if len(hash) == 0 {
		return nil, ErrNotFound
	}
	return HashToSettings(hash)
}

// PutSettings writes the singleton settings row in full and publishes the change.
// Used to provision night mode; ClaimDailyReset creates the row itself on a fresh board.
func (c *Client) PutSettings(ctx context.Context, s AppSettings) error {
	s.ID = SettingsID
	added, err := c.rdb.HSet(ctx, SettingsKey(c.instanceName), SettingsToHash(&s)).Result()
	if err != nil {
		return fmt.Errorf("failed to write settings to Redis: %w", err)
	}
	return c.publish(ctx, KindSettings, upsertOp(added), s)
}

// InsertRoom stores a new room and publishes an INSERT change.
func (c *Client) InsertRoom(ctx context.Context, room Room) (*Room, error) {
	if room.ID == "" {
		room.ID = uuid.New().String()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = Timestamp(time.Now())
	}
	if err := room.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room: %w", err)
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, RoomKey(c.instanceName, room.ID), RoomToHash(&room))
		pipe.SAdd(ctx, IndexKey(c.instanceName, KindRoom), room.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write room to Redis: %w", err)
	}

	if err := c.publish(ctx, KindRoom, OpInsert, room); err != nil {
		return nil, err
	}
	return &room, nil
}

// UpsertStatuses writes all statuses in one transaction, then publishes one change per row.
func (c *Client) UpsertStatuses(ctx context.Context, statuses []RoomStatus) error {
	if len(statuses) == 0 {
		return nil
	}

	cmds := make([]*redis.IntCmd, len(statuses))
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i := range statuses {
			cmds[i] = pipe.HSet(ctx, StatusKey(c.instanceName, statuses[i].RoomID), StatusToHash(&statuses[i]))
			pipe.SAdd(ctx, IndexKey(c.instanceName, KindStatus), statuses[i].RoomID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write room statuses to Redis: %w", err)
	}

	for i, s := range statuses {
		if err := c.publish(ctx, KindStatus, upsertOp(cmds[i].Val()), s); err != nil {
			return err
		}
	}
	return nil
}

// UpsertConfigs writes configs keyed by (room_id, weekday). An existing config keeps its ID;
// a new one gets the supplied ID or a fresh UUID. Returns the stored rows.
func (c *Client) UpsertConfigs(ctx context.Context, configs []DailyConfig) ([]DailyConfig, error) {
	for i := range configs {
		if err := configs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid daily config: %w", err)
		}
	}

	created := make([]*redis.BoolCmd, len(configs))
	ids := make([]*redis.StringCmd, len(configs))
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, cfg := range configs {
			key := ConfigKeyFor(c.instanceName, cfg.Key())
			candidate := cfg.ID
			if candidate == "" {
				candidate = uuid.New().String()
			}
			fields := ConfigToHash(&cfg)
			delete(fields, "id")

			created[i] = pipe.HSetNX(ctx, key, "id", candidate)
			pipe.HSet(ctx, key, fields)
			pipe.SAdd(ctx, IndexKey(c.instanceName, KindConfig), cfg.Key().String())
			ids[i] = pipe.HGet(ctx, key, "id")
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to write daily configs to Redis: %w", err)
	}

	stored := make([]DailyConfig, len(configs))
	for i, cfg := range configs {
		cfg.ID = ids[i].Val()
		stored[i] = cfg

		op := OpUpdate
		if created[i].Val() {
			op = OpInsert
		}
		if err := c.publish(ctx, KindConfig, op, cfg); err != nil {
			return nil, err
		}
	}
	return stored, nil
}

// UpdateRoomPosition sets a room's layout coordinates.
func (c *Client) UpdateRoomPosition(ctx context.Context, roomID string, x, y int) error {
	return c.patchRoom(ctx, roomID, map[string]interface{}{"position_x": x, "position_y": y})
}

// UpdateRoomSize sets a room's layout size.
func (c *Client) UpdateRoomSize(ctx context.Context, roomID string, width, height int) error {
	return c.patchRoom(ctx, roomID, map[string]interface{}{"width": width, "height": height})
}

// UpdateRoomOrder sets a room's order key.
func (c *Client) UpdateRoomOrder(ctx context.Context, roomID string, orderKey int) error {
	return c.patchRoom(ctx, roomID, map[string]interface{}{"order_key": orderKey})
}

// DeleteRoom removes a room together with its status and all its configs, then publishes a
// DELETE change for every record that existed. Deleting a missing room is not an error.
func (c *Client) DeleteRoom(ctx context.Context, roomID string) error {
	roomKey := RoomKey(c.instanceName, roomID)
	statusKey := StatusKey(c.instanceName, roomID)

	// Read what is about to go so the DELETE changes can carry the old rows
	var configKeys []ConfigKey
	for weekday := 0; weekday <= 6; weekday++ {
		configKeys = append(configKeys, ConfigKey{RoomID: roomID, Weekday: weekday})
	}

	roomCmd := c.rdb.HGetAll(ctx, roomKey)
	statusCmd := c.rdb.HGetAll(ctx, statusKey)
	if err := roomCmd.Err(); err != nil {
		return fmt.Errorf("failed to read room before delete: %w", err)
	}
	if err := statusCmd.Err(); err != nil {
		return fmt.Errorf("failed to read room status before delete: %w", err)
	}
	configHashes := make([]map[string]string, len(configKeys))
	for i, key := range configKeys {
		hash, err := c.rdb.HGetAll(ctx, ConfigKeyFor(c.instanceName, key)).Result()
		if err != nil {
			return fmt.Errorf("failed to read daily config before delete: %w", err)
		}
		configHashes[i] = hash
	}

	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, roomKey, statusKey)
		pipe.SRem(ctx, IndexKey(c.instanceName, KindRoom), roomID)
		pipe.SRem(ctx, IndexKey(c.instanceName, KindStatus), roomID)
		for _, key := range configKeys {
			pipe.Del(ctx, ConfigKeyFor(c.instanceName, key))
			pipe.SRem(ctx, IndexKey(c.instanceName, KindConfig), key.String())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete room from Redis: %w", err)
	}

	for _, hash := range configHashes {
		if len(hash) == 0 {
			continue
		}
		cfg, err := HashToConfig(hash)
		if err != nil {
			return fmt.Errorf("failed to deserialize deleted config: %w", err)
		}
		if err := c.publish(ctx, KindConfig, OpDelete, cfg); err != nil {
			return err
		}
	}
	if hash := statusCmd.Val(); len(hash) > 0 {
		status, err := HashToStatus(hash)
		if err != nil {
			return fmt.Errorf("failed to deserialize deleted status: %w", err)
		}
		if err := c.publish(ctx, KindStatus, OpDelete, status); err != nil {
			return err
		}
	}
	if hash := roomCmd.Val(); len(hash) > 0 {
		room, err := HashToRoom(hash)
		if err != nil {
			return fmt.Errorf("failed to deserialize deleted room: %w", err)
		}
		if err := c.publish(ctx, KindRoom, OpDelete, room); err != nil {
			return err
		}
	}
	return nil
}

// ClearScheduleTimes empties open_time and close_time on every config.
// Each config is patched atomically; configs deleted concurrently are skipped.
func (c *Client) ClearScheduleTimes(ctx context.Context) error {
	members, err := c.rdb.SMembers(ctx, IndexKey(c.instanceName, KindConfig)).Result()
	if err != nil {
		return fmt.Errorf("failed to read config index: %w", err)
	}

	args := flattenFields(map[string]interface{}{"open_time": "", "close_time": ""})
	for _, member := range members {
		key := configMemberKey(c.instanceName, member)
		reply, err := updateIfExistsScript.Run(ctx, c.rdb, []string{key}, args...).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to clear schedule times: %w", err)
		}

		hash, err := replyToHash(reply)
		if err != nil {
			return err
		}
		cfg, err := HashToConfig(hash)
		if err != nil {
			return fmt.Errorf("failed to deserialize cleared config: %w", err)
		}
		if err := c.publish(ctx, KindConfig, OpUpdate, cfg); err != nil {
			return err
		}
	}
	return nil
}

// ClaimDailyReset runs the conditional update as a Lua script, so the read of
// last_daily_reset and the write are one atomic step on the Redis server. On a fresh board
// the script creates the settings row, so the first claim wins.
// Returns (nil, nil) when another client already claimed the day.
func (c *Client) ClaimDailyReset(ctx context.Context, day string) (*AppSettings, error) {
	reply, err := claimDailyResetScript.Run(ctx, c.rdb, []string{SettingsKey(c.instanceName)},
		day, SettingsID, DefaultNightStart, DefaultNightEnd).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim daily reset: %w", err)
	}

	hash, err := replyToHash(reply)
	if err != nil {
		return nil, err
	}
	settings, err := HashToSettings(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize settings: %w", err)
	}

	if err := c.publish(ctx, KindSettings, OpUpdate, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// Subscribe subscribes to changes of one record kind for this instance.
// Caller must call subscription.Close() when done. Context cancellation also stops it.
//
// Redis Pub/Sub does not replay messages missed while disconnected, so callers reload
// state after subscribing to cover that gap.
func (c *Client) Subscribe(ctx context.Context, kind Kind) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, EventsChannel(c.instanceName, kind))

	// Wait for the subscription confirmation so no change published after return is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s events: %w", kind, err)
	}

	changesChan := make(chan Change, 32)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(changesChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change Change
				err := json.Unmarshal([]byte(msg.Payload), &change)
				if err == nil {
					err = change.Validate()
				}
				if err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to decode %s event: %w", kind, err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case changesChan <- change:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return NewSubscription(kind, changesChan, errorsChan, cancelFunc), nil
}

// patchRoom updates fields of an existing room and publishes the full updated row.
func (c *Client) patchRoom(ctx context.Context, roomID string, fields map[string]interface{}) error {
	reply, err := updateIfExistsScript.Run(ctx, c.rdb, []string{RoomKey(c.instanceName, roomID)}, flattenFields(fields)...).Result()
	if errors.Is(err, redis.Nil) {
		return fmt.Errorf("room %s: %w", roomID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update room in Redis: %w", err)
	}

	hash, err := replyToHash(reply)
	if err != nil {
		return err
	}
	room, err := HashToRoom(hash)
	if err != nil {
		return fmt.Errorf("failed to deserialize updated room: %w", err)
	}
	return c.publish(ctx, KindRoom, OpUpdate, room)
}

// readIndexed loads every hash listed in a kind's index set with one pipeline round trip.
func (c *Client) readIndexed(ctx context.Context, kind Kind, keyFor func(member string) string) ([]map[string]string, error) {
	members, err := c.rdb.SMembers(ctx, IndexKey(c.instanceName, kind)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index: %w", kind, err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	cmds := make([]*redis.MapStringStringCmd, len(members))
	_, err = c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, member := range members {
			cmds[i] = pipe.HGetAll(ctx, keyFor(member))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from Redis: %w", kind, err)
	}

	hashes := make([]map[string]string, 0, len(cmds))
	for _, cmd := range cmds {
		if hash := cmd.Val(); len(hash) > 0 {
			hashes = append(hashes, hash)
		}
	}
	return hashes, nil
}

// publish sends a change for row on the kind's events channel.
func (c *Client) publish(ctx context.Context, kind Kind, op Op, row any) error {
	change, err := NewChange(kind, op, row)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal %s change: %w", kind, err)
	}
	if err := c.rdb.Publish(ctx, EventsChannel(c.instanceName, kind), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish %s change: %w", kind, err)
	}
	return nil
}

// upsertOp maps the HSET "fields added" count onto INSERT (new hash) or UPDATE.
func upsertOp(added int64) Op {
	if added > 0 {
		return OpInsert
	}
	return OpUpdate
}
