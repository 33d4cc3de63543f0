package repository

import (
	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

type RedisHealth struct {
	db redis.Cmdable
}

func NewRedisHealth(db redis.Cmdable) *RedisHealth {
	return &RedisHealth{db: db}
}

func (r *RedisHealth) Check() error {
	_, err := r.db.Ping().Result()
	if err == nil {
		return nil
	}
	return errors.Errorf("[RedisHealth.Check] error: %s", err)
}
