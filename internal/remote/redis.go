package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roach88/shiftguard/internal/model"
)

// RedisStore keeps the document as a JSON string under "<table>:<key>".
type RedisStore struct {
	Client *redis.Client
	key    string
}

// NewRedisClient connects to redis with short timeouts.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client, table, key string) *RedisStore {
	if table == "" {
		table = DefaultTable
	}
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{Client: client, key: table + ":" + key}
}

// Key returns the redis key holding the document.
func (s *RedisStore) Key() string {
	return s.key
}

// Healthy pings redis.
func (s *RedisStore) Healthy(ctx context.Context) bool {
	if s == nil || s.Client == nil {
		return false
	}
	return s.Client.Ping(ctx).Err() == nil
}

// Fetch reads the document. A missing key means not found.
func (s *RedisStore) Fetch(ctx context.Context) (model.Document, bool, error) {
	data, err := s.Client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Document{}, false, nil
	}
	if err != nil {
		return model.Document{}, false, fmt.Errorf("redis fetch: %w", err)
	}
	doc, err := model.DecodeDocument(data)
	if err != nil {
		return model.Document{}, false, err
	}
	return doc, true, nil
}

// Update overwrites the document only if the key already exists.
func (s *RedisStore) Update(ctx context.Context, doc model.Document) (bool, error) {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return false, err
	}
	ok, err := s.Client.SetXX(ctx, s.key, data, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis update: %w", err)
	}
	return ok, nil
}

// Create writes the document unconditionally.
func (s *RedisStore) Create(ctx context.Context, doc model.Document) error {
	data, err := model.EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	if s == nil || s.Client == nil {
		return nil
	}
	return s.Client.Close()
}
