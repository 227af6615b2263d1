package repos

import (
  "context"
  "fmt"
  "time"

  "github.com/google/uuid"
  goredis "github.com/redis/go-redis/v9"

  "github.com/milaplaces/mila-backend/internal/logger"
)

// RateLimitRepo counts events per user in a fixed window. The counter key
// expires with the window, so a fresh window starts at zero.
type RateLimitRepo interface {
  Check(ctx context.Context, userID uuid.UUID, action string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

type rateLimitRepo struct {
  rdb *goredis.Client
  log *logger.Logger
}

func NewRateLimitRepo(rdb *goredis.Client, baseLog *logger.Logger) RateLimitRepo {
  repoLog := baseLog.With("repo", "RateLimitRepo")
  return &rateLimitRepo{rdb: rdb, log: repoLog}
}

func (rl *rateLimitRepo) Check(ctx context.Context, userID uuid.UUID, action string, limit int, window time.Duration) (bool, int, error) {
  key := fmt.Sprintf("ratelimit:%s:%s", action, userID)
  count, err := rl.rdb.Incr(ctx, key).Result()
  if err != nil {
    return false, 0, fmt.Errorf("rate limit incr: %w", err)
  }
  if count == 1 {
    if err := rl.rdb.Expire(ctx, key, window).Err(); err != nil {
      return false, 0, fmt.Errorf("rate limit expire: %w", err)
    }
  }
  if count > int64(limit) {
    return false, 0, nil
  }
  return true, limit - int(count), nil
}
