package board

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so several boards
// can share one Redis server.
//
// Key pattern: warren:{instance_name}:{entity}:{id}
// Channel pattern: warren:{instance_name}:{kind}_events

// RoomKey returns the Redis key for a room hash.
// Pattern: warren:{instance_name}:room:{room_id}
func RoomKey(instanceName, roomID string) string {
	return fmt.Sprintf("warren:%s:room:%s", instanceName, roomID)
}

// StatusKey returns the Redis key for a room status hash.
// Pattern: warren:{instance_name}:status:{room_id}
func StatusKey(instanceName, roomID string) string {
	return fmt.Sprintf("warren:%s:status:%s", instanceName, roomID)
}

// ConfigKeyFor returns the Redis key for a daily config hash.
// Pattern: warren:{instance_name}:config:{room_id}:{weekday}
func ConfigKeyFor(instanceName string, key ConfigKey) string {
	return configMemberKey(instanceName, key.String())
}

// configMemberKey maps a config index member ("{room_id}:{weekday}") to its hash key.
func configMemberKey(instanceName, member string) string {
	return fmt.Sprintf("warren:%s:config:%s", instanceName, member)
}

// SettingsKey returns the Redis key for the singleton settings hash.
// Pattern: warren:{instance_name}:settings
func SettingsKey(instanceName string) string {
	return fmt.Sprintf("warren:%s:settings", instanceName)
}

// IndexKey returns the Redis set listing the members of a record kind.
// Rooms and statuses are indexed by room ID, configs by "{room_id}:{weekday}".
// Pattern: warren:{instance_name}:index:{kind}
func IndexKey(instanceName string, kind Kind) string {
	return fmt.Sprintf("warren:%s:index:%s", instanceName, kind)
}

// EventsChannel returns the Pub/Sub channel carrying changes of one record kind.
// Pattern: warren:{instance_name}:{kind}_events
func EventsChannel(instanceName string, kind Kind) string {
	return fmt.Sprintf("warren:%s:%s_events", instanceName, kind)
}
