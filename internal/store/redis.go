package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/ykvlv/cf-streak-bot/internal/domain"
)

const (
	DefaultRedisKey = "cfstreak:users"
	maxTxRetries    = 10
)

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string // hash holding one field per user id
}

// RedisRepo stores each record as the JSON wire form in one Redis hash.
// Upserts are optimistic WATCH/MULTI transactions on the hash.
type RedisRepo struct {
	client    *redis.Client
	key       string
	defaultTZ string
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg RedisConfig, defaultTZ string) (*RedisRepo, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	key := cfg.Key
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRepo{client: client, key: key, defaultTZ: defaultTZ}, nil
}

func (r *RedisRepo) Close() error {
	return r.client.Close()
}

// Persist is a no-op: durability follows the server's AOF/RDB policy.
func (r *RedisRepo) Persist(_ context.Context) error { return nil }

func (r *RedisRepo) Get(ctx context.Context, userID string) (*domain.UserRecord, error) {
	data, err := r.client.HGet(ctx, r.key, userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.UnmarshalRecord(data, r.defaultTZ)
}

func (r *RedisRepo) Upsert(ctx context.Context, userID string, mutate Mutator) (*domain.UserRecord, error) {
	var result *domain.UserRecord

	txf := func(tx *redis.Tx) error {
		u := domain.NewUserRecord(r.defaultTZ)
		data, err := tx.HGet(ctx, r.key, userID).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			if u, err = domain.UnmarshalRecord(data, r.defaultTZ); err != nil {
				return fmt.Errorf("decode %s: %w", userID, err)
			}
		}
		if mutate != nil {
			mutate(u)
		}
		out, err := domain.MarshalRecord(u)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, userID, out)
			return nil
		})
		if err == nil {
			result = u
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := r.client.Watch(ctx, txf, r.key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, fmt.Errorf("upsert %s: too many concurrent writers", userID)
}

func (r *RedisRepo) All(ctx context.Context) ([]domain.Entry, error) {
	raw, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Entry, 0, len(raw))
	for id, data := range raw {
		u, err := domain.UnmarshalRecord([]byte(data), r.defaultTZ)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		out = append(out, domain.Entry{UserID: id, Record: u})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
