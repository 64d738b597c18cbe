package governance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// redisGetScript returns the cached decision only when the stored
// snapshot matches the live one, atomically.
// KEYS[1] = entry key
// ARGV[1] = live maturity
// ARGV[2] = live confidence (canonical string form)
var redisGetScript = redis.NewScript(`
local entry = redis.call("HMGET", KEYS[1], "decision", "maturity", "confidence")
if not entry[1] then
    return false
end
if entry[2] ~= ARGV[1] or entry[3] ~= ARGV[2] then
    return false
end
return entry[1]
`)

// redisInvalidateScript drops every entry indexed under an agent.
// KEYS[1] = agent index key (set of entry keys)
var redisInvalidateScript = redis.NewScript(`
local keys = redis.call("SMEMBERS", KEYS[1])
for _, k in ipairs(keys) do
    redis.call("DEL", k)
end
redis.call("DEL", KEYS[1])
return #keys
`)

// RedisCache is a Cache shared across replicas. The snapshot check
// runs inside a Lua script so a concurrent feedback update on another
// replica can never race a half-read entry. On any Redis error the
// cache reports a miss: the engine then recomputes from policy tables,
// which is always correct, just slower.
type RedisCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisCache creates a cache backed by the given Redis instance.
func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		logger: slog.Default().With("component", "decision_cache"),
	}
}

func entryKey(agentID, actionType string) string {
	return fmt.Sprintf("warden:decision:%s:%s", agentID, actionType)
}

func indexKey(agentID string) string {
	return fmt.Sprintf("warden:decision_index:%s", agentID)
}

// confidenceField renders a confidence score in a canonical form so
// snapshot equality is an exact string comparison inside Redis.
func confidenceField(c float64) string {
	return strconv.FormatFloat(c, 'g', -1, 64)
}

func (c *RedisCache) Get(ctx context.Context, agentID, actionType string, live Snapshot) (Decision, bool) {
	res, err := redisGetScript.Run(ctx, c.client,
		[]string{entryKey(agentID, actionType)},
		string(live.Maturity), confidenceField(live.Confidence),
	).Result()
	if err == redis.Nil {
		return Decision{}, false
	}
	if err != nil {
		c.logger.Warn("redis cache get failed, treating as miss", "agent_id", agentID, "error", err)
		return Decision{}, false
	}

	raw, ok := res.(string)
	if !ok {
		return Decision{}, false
	}
	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		c.logger.Warn("redis cache entry corrupt, treating as miss", "agent_id", agentID, "error", err)
		return Decision{}, false
	}
	return d, true
}

func (c *RedisCache) Put(ctx context.Context, agentID, actionType string, d Decision, snap Snapshot) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}

	key := entryKey(agentID, actionType)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key,
		"decision", string(raw),
		"maturity", string(snap.Maturity),
		"confidence", confidenceField(snap.Confidence),
	)
	pipe.SAdd(ctx, indexKey(agentID), key)
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("redis cache put failed", "agent_id", agentID, "error", err)
	}
}

func (c *RedisCache) InvalidateAgent(ctx context.Context, agentID string) {
	if err := redisInvalidateScript.Run(ctx, c.client, []string{indexKey(agentID)}).Err(); err != nil && err != redis.Nil {
		c.logger.Warn("redis cache invalidation failed", "agent_id", agentID, "error", err)
	}
}

// Ping verifies connectivity at startup.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

var _ Cache = (*RedisCache)(nil)
