// Package cache is a Redis read-through cache for single entities.
package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "altmur:entity:"
	genPrefix  = "altmur:gen:"
	tombPrefix = "altmur:tomb:"

	DefaultTTL          = time.Hour
	DefaultTombstoneTTL = 5 * time.Second
)

// KEYS: generation. ARGV: data key prefix, id.
var getScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
return redis.call('GET', ARGV[1] .. gen .. ':' .. ARGV[2])
`)

// KEYS: generation, row tombstone, entity tombstone.
// ARGV: data key prefix, id, value, ttl in ms.
var fillScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 or redis.call('EXISTS', KEYS[3]) == 1 then
  return 0
end
local gen = redis.call('GET', KEYS[1]) or '0'
redis.call('SET', ARGV[1] .. gen .. ':' .. ARGV[2], ARGV[3], 'PX', ARGV[4])
return 1
`)

// KEYS: generation, row tombstone. ARGV: data key prefix, id, tombstone ttl in ms.
var evictScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[1]) or '0'
redis.call('DEL', ARGV[1] .. gen .. ':' .. ARGV[2])
redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
return 1
`)

type client interface {
	redis.Cmdable
	redis.Scripter
}

// RedisCache stores entities under "altmur:entity:<Entity>:<generation>:<id>".
// Values are gob encoded so that fields hidden from JSON, such as password
// hashes, survive the round trip.
//
// Bumping an entity's generation orphans every cached row of that entity at
// once; the orphans age out with the TTL. Evictions leave a tombstone for
// tombstoneTTL, and a fill is refused while a tombstone of the row or of its
// entity is live. A reader that loaded a row before a concurrent write can
// therefore not put it back, unless its fill arrives later than tombstoneTTL
// after the eviction.
type RedisCache struct {
	client       client
	ttl          time.Duration
	tombstoneTTL time.Duration
}

// New returns a cache whose entries live for ttl. Non-positive durations
// fall back to DefaultTTL and DefaultTombstoneTTL.
func New(c client, ttl, tombstoneTTL time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if tombstoneTTL <= 0 {
		tombstoneTTL = DefaultTombstoneTTL
	}
	return &RedisCache{client: c, ttl: ttl, tombstoneTTL: tombstoneTTL}
}

// Key is the data key of one row in the given generation.
func Key(entity string, generation int64, id any) string {
	return fmt.Sprintf("%s%s:%d:%v", keyPrefix, entity, generation, id)
}

func generationKey(entity string) string {
	return genPrefix + entity
}

func rowTombstone(entity string, id any) string {
	return fmt.Sprintf("%s%s:%v", tombPrefix, entity, id)
}

func entityTombstone(entity string) string {
	return tombPrefix + entity
}

func dataPrefix(entity string) string {
	return keyPrefix + entity + ":"
}

// Get decodes the cached entity into dst. A missing key is a miss, not an
// error. An undecodable value is evicted and reported as a miss.
func (c *RedisCache) Get(ctx context.Context, entity string, id any, dst any) (bool, error) {
	data, err := getScript.Run(ctx, c.client, []string{generationKey(entity)}, dataPrefix(entity), fmt.Sprint(id)).Text()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s:%v: %w", entity, id, err)
	}

	if err := gob.NewDecoder(bytes.NewReader([]byte(data))).Decode(dst); err != nil {
		_ = c.Delete(ctx, entity, id)
		return false, nil
	}
	return true, nil
}

// Set fills the cache with a row read from the database. The fill is
// skipped while the row or its entity was recently evicted.
func (c *RedisCache) Set(ctx context.Context, entity string, id any, value any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(value); err != nil {
		return fmt.Errorf("cache encode %s: %w", entity, err)
	}
	keys := []string{generationKey(entity), rowTombstone(entity, id), entityTombstone(entity)}
	err := fillScript.Run(ctx, c.client, keys, dataPrefix(entity), fmt.Sprint(id), buf.Bytes(), c.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache set %s:%v: %w", entity, id, err)
	}
	return nil
}

// Delete evicts one row and tombstones it.
func (c *RedisCache) Delete(ctx context.Context, entity string, id any) error {
	keys := []string{generationKey(entity), rowTombstone(entity, id)}
	err := evictScript.Run(ctx, c.client, keys, dataPrefix(entity), fmt.Sprint(id), c.tombstoneTTL.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("cache delete %s:%v: %w", entity, id, err)
	}
	return nil
}

// Invalidate drops every cached row of the given entities by bumping their
// generations, and tombstones the entities.
func (c *RedisCache) Invalidate(ctx context.Context, entities ...string) error {
	if len(entities) == 0 {
		return nil
	}
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, entity := range entities {
			pipe.Incr(ctx, generationKey(entity))
			pipe.Set(ctx, entityTombstone(entity), "1", c.tombstoneTTL)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate %v: %w", entities, err)
	}
	return nil
}

// Generation returns the current generation of entity.
func (c *RedisCache) Generation(ctx context.Context, entity string) (int64, error) {
	n, err := c.client.Get(ctx, generationKey(entity)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
