package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zsiec/simviz/internal/logger"
)

const (
	// DefaultPrefix namespaces registry keys
	DefaultPrefix = "simviz:recordings:"

	defaultTTL = 24 * time.Hour
)

var registerScript = redis.NewScript(`
	local key = KEYS[1]
	local active_key = KEYS[2]
	local data = ARGV[1]
	local ttl = tonumber(ARGV[2])
	local id = ARGV[3]
	redis.call('SET', key, data, 'PX', ttl)
	redis.call('SADD', active_key, id)
	return 1
`)

var listScript = redis.NewScript(`
	local active_key = KEYS[1]
	local prefix = ARGV[1]
	local active = redis.call('SMEMBERS', active_key)
	local result = {}
	local to_remove = {}

	for i, id in ipairs(active) do
		local rec = redis.call('GET', prefix .. id)
		if rec then
			table.insert(result, rec)
		else
			table.insert(to_remove, id)
		end
	end

	for i, id in ipairs(to_remove) do
		redis.call('SREM', active_key, id)
	end

	return result
`)

var markCompleteScript = redis.NewScript(`
	local key = KEYS[1]
	local ttl = tonumber(ARGV[1])
	local frames = tonumber(ARGV[2])
	local now = ARGV[3]
	local data = redis.call('GET', key)
	if not data then
		return 0
	end
	local rec = cjson.decode(data)
	rec.frames = frames
	rec.status = "complete"
	rec.updated_at = now
	redis.call('SET', key, cjson.encode(rec), 'PX', ttl)
	return 1
`)

// RedisRegistry implements Registry using Redis as backend
type RedisRegistry struct {
	client *redis.Client
	logger logger.Logger
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry creates a new Redis-backed registry. Entries expire ttl
// after their last registration.
func NewRedisRegistry(client *redis.Client, log logger.Logger, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &RedisRegistry{
		client: client,
		logger: log.WithField("component", "registry"),
		prefix: DefaultPrefix,
		ttl:    ttl,
	}
}

func (r *RedisRegistry) activeKey() string {
	return r.prefix + "active"
}

// Register adds a recording, preserving CreatedAt when it already exists
func (r *RedisRegistry) Register(ctx context.Context, rec *Recording) error {
	key := r.prefix + rec.ID
	now := time.Now()

	existing, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var prev Recording
		if err := json.Unmarshal(existing, &prev); err == nil {
			rec.CreatedAt = prev.CreatedAt
		}
	case err == redis.Nil:
		rec.CreatedAt = now
	default:
		return fmt.Errorf("failed to check existing recording: %w", err)
	}
	rec.UpdatedAt = now

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	if err := registerScript.Run(ctx, r.client,
		[]string{key, r.activeKey()},
		data, r.ttl.Milliseconds(), rec.ID).Err(); err != nil {
		return fmt.Errorf("failed to register recording: %w", err)
	}

	r.logger.WithFields(map[string]interface{}{
		"recording_id": rec.ID,
		"path":         rec.Path,
		"frames":       rec.Frames,
	}).Info("Recording registered")

	return nil
}

// Unregister removes a recording from the registry
func (r *RedisRegistry) Unregister(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, r.prefix+id).Result()
	if err != nil {
		return fmt.Errorf("failed to unregister recording: %w", err)
	}
	if deleted == 0 {
		return notFound(id)
	}

	if err := r.client.SRem(ctx, r.activeKey(), id).Err(); err != nil {
		r.logger.WithError(err).WithField("recording_id", id).Warn("Failed to remove recording from active set")
	}

	r.logger.WithField("recording_id", id).Info("Recording unregistered")
	return nil
}

// Get retrieves a recording by ID
func (r *RedisRegistry) Get(ctx context.Context, id string) (*Recording, error) {
	data, err := r.client.Get(ctx, r.prefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, notFound(id)
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recording: %w", err)
	}
	return &rec, nil
}

// List returns all live recordings, pruning expired IDs from the active set
func (r *RedisRegistry) List(ctx context.Context) ([]*Recording, error) {
	res, err := listScript.Run(ctx, r.client, []string{r.activeKey()}, r.prefix).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}

	values, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected result type from script")
	}

	recs := make([]*Recording, 0, len(values))
	for _, val := range values {
		data, ok := val.(string)
		if !ok {
			r.logger.Warn("Invalid data type in result")
			continue
		}

		var rec Recording
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			r.logger.WithError(err).Warn("Failed to unmarshal recording")
			continue
		}
		recs = append(recs, &rec)
	}

	sortByName(recs)
	return recs, nil
}

// MarkComplete stores the frame count a reader discovered
func (r *RedisRegistry) MarkComplete(ctx context.Context, id string, frames int) error {
	now := time.Now().Format(time.RFC3339Nano)

	updated, err := markCompleteScript.Run(ctx, r.client,
		[]string{r.prefix + id},
		r.ttl.Milliseconds(), frames, now).Int()
	if err != nil {
		return fmt.Errorf("failed to mark recording complete: %w", err)
	}
	if updated == 0 {
		return notFound(id)
	}

	r.logger.WithFields(map[string]interface{}{
		"recording_id": id,
		"frames":       frames,
	}).Debug("Recording marked complete")
	return nil
}

// Ping checks the Redis connection
func (r *RedisRegistry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis client connection
func (r *RedisRegistry) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}
