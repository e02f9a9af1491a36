package board

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Lua scripts executed atomically by Redis.
//
// Both return the full hash (HGETALL reply) on success and false (a nil reply, surfaced by
// go-redis as redis.Nil) when the predicate does not hold.

// updateIfExistsScript patches fields of an existing hash and never creates a new one.
// KEYS[1] = hash key, ARGV = field, value, field, value, ...
var updateIfExistsScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return false
end
redis.call('HSET', KEYS[1], unpack(ARGV))
return redis.call('HGETALL', KEYS[1])
`)

// claimDailyResetScript advances last_daily_reset to ARGV[1] unless it already holds that day.
// A missing settings hash is created with the defaults and a never-reset flag first, the
// same row the Postgres schema provisions.
// KEYS[1] = settings key, ARGV[1] = day ("YYYY-MM-DD"), ARGV[2] = id,
// ARGV[3] = default night_start, ARGV[4] = default night_end
var claimDailyResetScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], 'id', ARGV[2], 'night_mode_enabled', 'false',
		'night_start', ARGV[3], 'night_end', ARGV[4], 'last_daily_reset', '')
end
local current = redis.call('HGET', KEYS[1], 'last_daily_reset')
if current == ARGV[1] then
	return false
end
redis.call('HSET', KEYS[1], 'last_daily_reset', ARGV[1])
return redis.call('HGETALL', KEYS[1])
`)

// replyToHash converts a flat HGETALL reply from a script into a map.
func replyToHash(reply interface{}) (map[string]string, error) {
	items, ok := reply.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected script reply type %T", reply)
	}
	if len(items)%2 != 0 {
		return nil, fmt.Errorf("unexpected odd-length script reply (%d items)", len(items))
	}

	hash := make(map[string]string, len(items)/2)
	for i := 0; i < len(items); i += 2 {
		field, _ := items[i].(string)
		value, _ := items[i+1].(string)
		hash[field] = value
	}
	return hash, nil
}

// flattenFields turns a field map into the ARGV layout expected by updateIfExistsScript.
func flattenFields(fields map[string]interface{}) []interface{} {
	args := make([]interface{}, 0, len(fields)*2)
	for field, value := range fields {
		args = append(args, field, value)
	}
	return args
}
