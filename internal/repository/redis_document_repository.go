package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"daily-driver/internal/model"
)

// RedisDocumentStore keeps each user document in a hash, one JSON value per field.
type RedisDocumentStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient initializes a redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisDocumentStore(rdb *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{rdb: rdb, prefix: "doc:"}
}

func (r *RedisDocumentStore) key(userID string) string {
	return r.prefix + userID
}

func (r *RedisDocumentStore) Get(ctx context.Context, userID string) (model.RawDocument, error) {
	values, err := r.rdb.HGetAll(ctx, r.key(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrNotFound
	}
	doc := make(model.RawDocument, len(values))
	for name, value := range values {
		doc[name] = json.RawMessage(value)
	}
	return doc, nil
}

func (r *RedisDocumentStore) SetMerge(ctx context.Context, userID string, fields Fields) error {
	values, err := hashValues(fields)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.rdb.HSet(ctx, r.key(userID), values).Err(); err != nil {
		return fmt.Errorf("write fields: %w", err)
	}
	return nil
}

func (r *RedisDocumentStore) UpdateFields(ctx context.Context, userID string, fields Fields) error {
	values, err := hashValues(fields)
	if err != nil {
		return err
	}
	key := r.key(userID)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("find document: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		if len(values) == 0 {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values)
			return nil
		})
		if err != nil {
			return fmt.Errorf("write fields: %w", err)
		}
		return nil
	}, key)
}

func (r *RedisDocumentStore) AppendUnique(ctx context.Context, userID, field string, value any) error {
	item, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode field %q: %w", field, err)
	}
	key := r.key(userID)
	return r.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("find document: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}

		current, err := tx.HGet(ctx, key, field).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("find field %q: %w", field, err)
		}

		next, changed, err := appendUnique(current, item)
		if err != nil {
			return fmt.Errorf("append to %q: %w", field, err)
		}
		if !changed {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, field, string(next))
			return nil
		})
		if err != nil {
			return fmt.Errorf("write fields: %w", err)
		}
		return nil
	}, key)
}

func hashValues(fields Fields) (map[string]any, error) {
	encoded, err := encodeFields(fields)
	if err != nil {
		return nil, err
	}
	values := make(map[string]any, len(encoded))
	for name, b := range encoded {
		values[name] = string(b)
	}
	return values, nil
}
