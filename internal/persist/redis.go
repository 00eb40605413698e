package persist

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisKeyPrefix = "inquirex:"

// Redis implements a Provider backed by a redis server.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to the server described by opts and pings it.
func NewRedis(ctx context.Context, opts Opts) (*Redis, error) {
	if opts.RedisAddress == "" {
		return nil, errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.RedisAddress,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "pinging redis (%s)", opts.RedisAddress)
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = defaultRedisKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Get implements Provider.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "getting key (%s)", key)
	}
	return value, true, nil
}

// Set implements Provider.
func (r *Redis) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrapf(err, "setting key (%s)", key)
	}
	return nil
}

// Close implements Provider.
func (r *Redis) Close() error {
	return r.client.Close()
}
