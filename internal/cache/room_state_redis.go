package cache

import (
	"context"
	"errors"
	"fmt"
	"partyquest/internal/model"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRoomStateStore shares RoomState between server instances. Every key
// carries the TTL and is refreshed on write, so abandoned rooms expire.
type RedisRoomStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRoomStateStore(client *redis.Client, ttl time.Duration) *RedisRoomStateStore {
	return &RedisRoomStateStore{
		client: client,
		ttl:    ttl,
	}
}

func (c *RedisRoomStateStore) selectionsKey(sessionID string) string {
	return fmt.Sprintf("room:%s:selections", sessionID)
}

func (c *RedisRoomStateStore) expectedKey(sessionID string) string {
	return fmt.Sprintf("room:%s:expected", sessionID)
}

func (c *RedisRoomStateStore) readyKey(sessionID string) string {
	return fmt.Sprintf("room:%s:ready", sessionID)
}

func (c *RedisRoomStateStore) Ensure(ctx context.Context, sessionID string, expected int) (*model.RoomState, error) {
	var selections *redis.MapStringStringCmd
	var ready *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, c.expectedKey(sessionID), expected, c.ttl)
		pipe.Expire(ctx, c.selectionsKey(sessionID), c.ttl)
		pipe.Expire(ctx, c.readyKey(sessionID), c.ttl)
		selections = pipe.HGetAll(ctx, c.selectionsKey(sessionID))
		ready = pipe.Exists(ctx, c.readyKey(sessionID))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &model.RoomState{
		SessionID:  sessionID,
		Selections: selections.Val(),
		Expected:   expected,
		Completed:  ready.Val() > 0,
		UpdatedAt:  time.Now(),
	}, nil
}

// selectionScript writes or removes one selection and judges completion
// against the expected count in the same step, so a concurrent Ensure lands
// either before or after the whole write.
//
// KEYS: selections, expected, ready
// ARGV: ttl ms, op ("set" or "del"), userId, characterId or new expected count
// Returns {status, selections...} where status is 1 complete, 0 open,
// -1 no state, -2 already completed.
var selectionScript = redis.NewScript(`
local expected = redis.call('GET', KEYS[2])
if not expected then
	return {-1}
end
if redis.call('EXISTS', KEYS[3]) == 1 then
	return {-2, redis.call('HGETALL', KEYS[1])}
end
if ARGV[2] == 'set' then
	redis.call('HSET', KEYS[1], ARGV[3], ARGV[4])
else
	redis.call('HDEL', KEYS[1], ARGV[3])
	expected = ARGV[4]
	redis.call('SET', KEYS[2], expected, 'PX', ARGV[1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[1])
redis.call('PEXPIRE', KEYS[2], ARGV[1])
local n = redis.call('HLEN', KEYS[1])
local status = 0
if n > 0 and n == tonumber(expected) then
	redis.call('SET', KEYS[3], 1, 'PX', ARGV[1])
	status = 1
end
return {status, redis.call('HGETALL', KEYS[1])}
`)

func (c *RedisRoomStateStore) RecordSelection(ctx context.Context, sessionID, userID, characterID string) (map[string]string, bool, error) {
	status, selections, err := c.runSelection(ctx, sessionID, "set", userID, characterID)
	if err != nil {
		return nil, false, err
	}
	switch status {
	case -1:
		return nil, false, model.ErrNoRoomState
	case -2:
		return nil, false, model.ErrReadinessClosed
	}
	return selections, status == 1, nil
}

func (c *RedisRoomStateStore) RemoveSelection(ctx context.Context, sessionID, userID string, expected int) (map[string]string, bool, error) {
	status, selections, err := c.runSelection(ctx, sessionID, "del", userID, strconv.Itoa(expected))
	if err != nil {
		return nil, false, err
	}
	switch status {
	case -1:
		return nil, false, nil
	case -2:
		return selections, false, nil
	}
	return selections, status == 1, nil
}

// Peek reads the state without refreshing its TTL.
func (c *RedisRoomStateStore) Peek(ctx context.Context, sessionID string) (*model.RoomState, error) {
	var expected *redis.StringCmd
	var ready *redis.IntCmd
	var selections *redis.MapStringStringCmd
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		expected = pipe.Get(ctx, c.expectedKey(sessionID))
		ready = pipe.Exists(ctx, c.readyKey(sessionID))
		selections = pipe.HGetAll(ctx, c.selectionsKey(sessionID))
		return nil
	})
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNoRoomState
	}
	if err != nil {
		return nil, err
	}

	n, err := strconv.Atoi(expected.Val())
	if err != nil {
		return nil, fmt.Errorf("room %s: corrupt expected count %q", sessionID, expected.Val())
	}
	return &model.RoomState{
		SessionID:  sessionID,
		Selections: selections.Val(),
		Expected:   n,
		Completed:  ready.Val() > 0,
	}, nil
}

func (c *RedisRoomStateStore) Discard(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx,
		c.selectionsKey(sessionID),
		c.expectedKey(sessionID),
		c.readyKey(sessionID),
	).Err()
}

func (c *RedisRoomStateStore) runSelection(ctx context.Context, sessionID, op, userID, value string) (int64, map[string]string, error) {
	keys := []string{c.selectionsKey(sessionID), c.expectedKey(sessionID), c.readyKey(sessionID)}
	res, err := selectionScript.Run(ctx, c.client, keys, c.ttl.Milliseconds(), op, userID, value).Slice()
	if err != nil {
		return 0, nil, err
	}

	if len(res) == 0 {
		return 0, nil, fmt.Errorf("room %s: empty script reply", sessionID)
	}
	status, ok := res[0].(int64)
	if !ok {
		return 0, nil, fmt.Errorf("room %s: unexpected script reply %v", sessionID, res)
	}
	selections := make(map[string]string)
	if len(res) > 1 {
		flat, _ := res[1].([]interface{})
		for i := 0; i+1 < len(flat); i += 2 {
			k, _ := flat[i].(string)
			v, _ := flat[i+1].(string)
			selections[k] = v
		}
	}
	return status, selections, nil
}
