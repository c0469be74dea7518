package kv

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisStore keeps each preference as a JSON-encoded Value under
// "<prefix>:<key>". Redis gives per-key atomicity for free.
type RedisStore struct {
	pool   *redis.Pool
	prefix string
}

// NewRedisPool dials url lazily; connections are checked with PING when
// they have been idle for more than a minute.
func NewRedisPool(url string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

func NewRedisStore(pool *redis.Pool, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "launcherprefs"
	}
	return &RedisStore{pool: pool, prefix: prefix}
}

func (r *RedisStore) prefixedKey(key string) string {
	return fmt.Sprintf("%s:%s", r.prefix, key)
}

func (r *RedisStore) Get(key string) (Value, bool, error) {
	conn := r.pool.Get()
	defer conn.Close()

	raw, err := redis.Bytes(conn.Do("GET", r.prefixedKey(key)))
	if err == redis.ErrNil {
		return Value{}, false, nil
	}
	if err != nil {
		return Value{}, false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, true, fmt.Errorf("decoding %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStore) Put(key string, val Value) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	conn := r.pool.Get()
	defer conn.Close()

	res, err := redis.String(conn.Do("SET", r.prefixedKey(key), raw))
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	if res != "OK" {
		return fmt.Errorf("failed to set key %s: %v", key, res)
	}
	return nil
}

func (r *RedisStore) Delete(key string) error {
	conn := r.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("DEL", r.prefixedKey(key)); err != nil {
		return fmt.Errorf("redis DEL %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) scanKeys(conn redis.Conn) ([]string, error) {
	var keys []string
	cursor := 0
	for {
		reply, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", r.prefix+":*", "COUNT", 100))
		if err != nil {
			return nil, fmt.Errorf("redis SCAN: %w", err)
		}
		var batch []string
		if _, err := redis.Scan(reply, &cursor, &batch); err != nil {
			return nil, fmt.Errorf("parsing SCAN reply: %w", err)
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (r *RedisStore) All() (map[string]Value, error) {
	conn := r.pool.Get()
	defer conn.Close()

	keys, err := r.scanKeys(conn)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Value, len(keys))
	for _, full := range keys {
		raw, err := redis.Bytes(conn.Do("GET", full))
		if err == redis.ErrNil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis GET %s: %w", full, err)
		}
		var v Value
		if err := json.Unmarshal(raw, &v); err != nil {
			// Skip entries another writer left in an unknown shape.
			continue
		}
		out[strings.TrimPrefix(full, r.prefix+":")] = v
	}
	return out, nil
}

func (r *RedisStore) Clear() error {
	conn := r.pool.Get()
	defer conn.Close()

	keys, err := r.scanKeys(conn)
	if err != nil {
		return err
	}
	for _, full := range keys {
		if _, err := conn.Do("DEL", full); err != nil {
			return fmt.Errorf("redis DEL %s: %w", full, err)
		}
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.pool.Close()
}
