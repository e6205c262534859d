package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// messageRetention bounds how long an unconsumed message survives. Matches
// the 7-day retention of the hosted queue services this adapter stands in for.
const messageRetention = 7 * 24 * time.Hour

// Key layout per logical queue:
//
//	queue:<name>:ready     list of message IDs awaiting delivery
//	queue:<name>:inflight  zset receipt -> visibility deadline (unix ms)
//	queue:<name>:receipts  hash receipt -> message ID
//	queue:<name>:msg:<id>  hash {body, deliveries}
func readyKey(name string) string    { return "queue:" + name + ":ready" }
func inflightKey(name string) string { return "queue:" + name + ":inflight" }
func receiptsKey(name string) string { return "queue:" + name + ":receipts" }
func msgPrefix(name string) string   { return "queue:" + name + ":msg:" }

// reapScript returns expired in-flight messages to the ready list. Redelivered
// messages are RPUSHed so they are picked up before the backlog.
var reapScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
for _, receipt in ipairs(expired) do
	local id = redis.call("HGET", KEYS[3], receipt)
	if id then
		redis.call("RPUSH", KEYS[1], id)
	end
	redis.call("ZREM", KEYS[2], receipt)
	redis.call("HDEL", KEYS[3], receipt)
end
return #expired
`)

// dequeueScript atomically pops up to max IDs from the ready list and claims
// each under a caller-supplied receipt, so a consumer crash at any point
// leaves every message either ready or in flight, never lost.
var dequeueScript = redis.NewScript(`
local out = {}
local max = tonumber(ARGV[2])
for i = 1, max do
	local id = redis.call("RPOP", KEYS[1])
	if not id then
		break
	end
	local msgKey = ARGV[1] .. id
	local body = redis.call("HGET", msgKey, "body")
	if body then
		local deliveries = redis.call("HINCRBY", msgKey, "deliveries", 1)
		local receipt = ARGV[3 + i]
		redis.call("ZADD", KEYS[2], ARGV[3], receipt)
		redis.call("HSET", KEYS[3], receipt, id)
		out[#out + 1] = id
		out[#out + 1] = receipt
		out[#out + 1] = body
		out[#out + 1] = deliveries
	end
end
return out
`)

var ackScript = redis.NewScript(`
local id = redis.call("HGET", KEYS[2], ARGV[2])
if not id then
	return 0
end
redis.call("ZREM", KEYS[1], ARGV[2])
redis.call("HDEL", KEYS[2], ARGV[2])
redis.call("DEL", ARGV[1] .. id)
return 1
`)

var extendScript = redis.NewScript(`
if redis.call("ZSCORE", KEYS[1], ARGV[1]) then
	redis.call("ZADD", KEYS[1], ARGV[2], ARGV[1])
	return 1
end
return 0
`)

// RedisQueue implements Queue on a Redis instance, providing the
// visibility-timeout redelivery semantics the rest of the system relies on.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

// NewClient creates a Redis client tuned for queue access.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

// Ping verifies connectivity. Called once at startup; a failure here is fatal
// to the process so the orchestrator restarts it instead of running silent.
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("queue redis ping: %w", err)
	}
	return nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, queue string, body []byte) (string, error) {
	id := uuid.New().String()
	msgKey := msgPrefix(queue) + id

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, msgKey, "body", body, "deliveries", 0)
	pipe.Expire(ctx, msgKey, messageRetention)
	pipe.LPush(ctx, readyKey(queue), id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue to %s: %w", queue, err)
	}
	return id, nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, queue string, maxMessages int, visibility time.Duration) ([]Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}

	keys := []string{readyKey(queue), inflightKey(queue), receiptsKey(queue)}
	now := time.Now()

	// First give back anything whose visibility window has lapsed.
	if err := reapScript.Run(ctx, q.client, keys, now.UnixMilli()).Err(); err != nil {
		return nil, fmt.Errorf("reap expired messages on %s: %w", queue, err)
	}

	deadline := now.Add(visibility).UnixMilli()
	args := make([]interface{}, 0, 3+maxMessages)
	args = append(args, msgPrefix(queue), maxMessages, deadline)
	for i := 0; i < maxMessages; i++ {
		args = append(args, uuid.New().String())
	}

	raw, err := dequeueScript.Run(ctx, q.client, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("dequeue from %s: %w", queue, err)
	}

	msgs := make([]Message, 0, len(raw)/4)
	for i := 0; i+3 < len(raw); i += 4 {
		deliveries, convErr := toInt(raw[i+3])
		if convErr != nil {
			return nil, fmt.Errorf("dequeue from %s: bad delivery count: %w", queue, convErr)
		}
		msgs = append(msgs, Message{
			ID:            toString(raw[i]),
			Receipt:       toString(raw[i+1]),
			Body:          []byte(toString(raw[i+2])),
			DeliveryCount: deliveries,
		})
	}
	return msgs, nil
}

func (q *RedisQueue) Ack(ctx context.Context, queue string, receipt string) error {
	keys := []string{inflightKey(queue), receiptsKey(queue)}
	n, err := ackScript.Run(ctx, q.client, keys, msgPrefix(queue), receipt).Int()
	if err != nil {
		return fmt.Errorf("ack on %s: %w", queue, err)
	}
	if n == 0 {
		return ErrUnknownReceipt
	}
	return nil
}

func (q *RedisQueue) ExtendVisibility(ctx context.Context, queue string, receipt string, d time.Duration) error {
	deadline := time.Now().Add(d).UnixMilli()
	n, err := extendScript.Run(ctx, q.client, []string{inflightKey(queue)}, receipt, deadline).Int()
	if err != nil {
		return fmt.Errorf("extend visibility on %s: %w", queue, err)
	}
	if n == 0 {
		return ErrUnknownReceipt
	}
	return nil
}

// Len reports how many messages are currently visible on the queue.
func (q *RedisQueue) Len(ctx context.Context, queue string) (int64, error) {
	n, err := q.client.LLen(ctx, readyKey(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("len of %s: %w", queue, err)
	}
	return n, nil
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
