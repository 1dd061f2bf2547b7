package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// HFlags is the redis hash holding every persisted flag.
const HFlags string = "flags"

type redisFlagStorage struct {
	logger *zap.Logger
	client *redis.Client
}

// NewRedisFlagStorage provides an instance of redis-based flag storage.
func NewRedisFlagStorage(logger *zap.Logger, client *redis.Client) FlagStorage {
	return &redisFlagStorage{
		logger: logger,
		client: client,
	}
}

// GetRedisClient provides a ready to use redis client.
func GetRedisClient(config *Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", config.Redis.Host, config.Redis.Port),
		DialTimeout:  config.Redis.DialTimeout,
		ReadTimeout:  config.Redis.ReadTimeout,
		WriteTimeout: config.Redis.WriteTimeout,
		PoolSize:     config.Redis.PoolSize,
		PoolTimeout:  config.Redis.PoolTimeout,
		Password:     config.Redis.Password,
		Username:     config.Redis.Username,
		DB:           config.Redis.DatabaseIndex,
	})

	// test connection.
	if pong, err := client.Ping(context.Background()).Result(); pong != "PONG" || err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	return client, nil
}

// Get retrieves the value of a flag based on its key.
func (rs *redisFlagStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := rs.client.HGet(ctx, HFlags, key).Result()
	if err == redis.Nil {
		return "", ErrFlagNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return value, nil
}

// Set inserts or replaces a flag record.
func (rs *redisFlagStorage) Set(ctx context.Context, key string, value string) error {
	if err := rs.client.HSet(ctx, HFlags, key, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete removes a flag record based on its key. Deleting an absent
// key is not an error.
func (rs *redisFlagStorage) Delete(ctx context.Context, key string) error {
	err := rs.client.HDel(ctx, HFlags, key).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

// Keys retrieves the list of all flag keys stored in the redis hash.
func (rs *redisFlagStorage) Keys(ctx context.Context) ([]string, error) {
	keys, err := rs.client.HKeys(ctx, HFlags).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return keys, nil
}
