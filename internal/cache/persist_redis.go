package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// RedisStore persists cache entries to a Redis instance, for deployments
// that want restart durability without local disk. Records are stored as
// JSON strings and blobs as separate binary values, both expiring in Redis
// at the entry's TTL so the remote side never outlives the logical entry.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr, password string, db int, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "aishield"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

// Save writes the record and blob with a Redis expiration matching the
// entry's remaining TTL.
func (r *RedisStore) Save(rec Record, blob []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	expiry := time.Until(rec.CreatedAt.Add(time.Duration(rec.TTLSeconds) * time.Second))
	if expiry <= 0 {
		return nil
	}

	if len(blob) > 0 {
		rec.BlobRef = r.blobKey(rec.Key)
		if err := r.client.Set(ctx, rec.BlobRef, blob, expiry).Err(); err != nil {
			return fmt.Errorf("set blob: %w", err)
		}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := r.client.Set(ctx, r.recordKey(rec.Key), data, expiry).Err(); err != nil {
		return fmt.Errorf("set record: %w", err)
	}
	return nil
}

// Load reads one record and its blob payload, if any.
func (r *RedisStore) Load(key string) (*Record, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.recordKey(key)).Bytes()
	if err != nil {
		return nil, nil, fmt.Errorf("get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, nil, fmt.Errorf("decode record: %w", err)
	}

	var blob []byte
	if rec.BlobRef != "" {
		blob, err = r.client.Get(ctx, rec.BlobRef).Bytes()
		if err != nil {
			return nil, nil, fmt.Errorf("get blob: %w", err)
		}
	}
	return &rec, blob, nil
}

// Delete removes the record and any blob.
func (r *RedisStore) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, r.recordKey(key), r.blobKey(key)).Err(); err != nil {
		return fmt.Errorf("del: %w", err)
	}
	return nil
}

// ListAll scans for record keys and returns the decoded records.
func (r *RedisStore) ListAll() ([]Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	var recs []Record
	iter := r.client.Scan(ctx, 0, r.prefix+":rec:*", 0).Iterator()
	for iter.Next(ctx) {
		data, err := r.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return recs, nil
}

// Clear removes all records and blobs under the store's prefix.
func (r *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	iter := r.client.Scan(ctx, 0, r.prefix+":*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("del %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }

func (r *RedisStore) recordKey(key string) string { return r.prefix + ":rec:" + key }
func (r *RedisStore) blobKey(key string) string   { return r.prefix + ":blob:" + key }
