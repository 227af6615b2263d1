package db

import (
  "context"
  "fmt"
  "time"

  goredis "github.com/redis/go-redis/v9"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/utils"
)

type RedisService struct {
  rdb *goredis.Client
  log *logger.Logger
}

func NewRedisService(log *logger.Logger) (*RedisService, error) {
  serviceLog := log.With("service", "RedisService")

  addr := utils.GetEnv("REDIS_ADDR", "localhost:6379", log)
  password := utils.GetEnv("REDIS_PASSWORD", "", log)
  dbNum := utils.GetEnvAsInt("REDIS_DB", 0, log)

  rdb := goredis.NewClient(&goredis.Options{
    Addr:        addr,
    Password:    password,
    DB:          dbNum,
    DialTimeout: 5 * time.Second,
  })

  ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  if err := rdb.Ping(ctx).Err(); err != nil {
    _ = rdb.Close()
    return nil, fmt.Errorf("redis ping: %w", err)
  }

  serviceLog.Info("Connected to Redis", "addr", addr)
  return &RedisService{rdb: rdb, log: serviceLog}, nil
}

func (s *RedisService) Client() *goredis.Client {
  return s.rdb
}

func (s *RedisService) Close() error {
  return s.rdb.Close()
}
