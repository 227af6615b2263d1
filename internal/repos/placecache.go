package repos

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  goredis "github.com/redis/go-redis/v9"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

// PlaceCacheRepo caches provider place-details lookups to keep repeated
// detail fetches (answer submission re-resolves shown candidates) off the
// paid provider API.
type PlaceCacheRepo interface {
  Get(ctx context.Context, placeID string) (*types.PlaceCandidate, error)
  Put(ctx context.Context, place *types.PlaceCandidate, ttl time.Duration) error
}

type placeCacheRepo struct {
  rdb *goredis.Client
  log *logger.Logger
}

func NewPlaceCacheRepo(rdb *goredis.Client, baseLog *logger.Logger) PlaceCacheRepo {
  repoLog := baseLog.With("repo", "PlaceCacheRepo")
  return &placeCacheRepo{rdb: rdb, log: repoLog}
}

func placeCacheKey(placeID string) string {
  return fmt.Sprintf("place:cache:%s", placeID)
}

func (pc *placeCacheRepo) Get(ctx context.Context, placeID string) (*types.PlaceCandidate, error) {
  raw, err := pc.rdb.Get(ctx, placeCacheKey(placeID)).Bytes()
  if err != nil {
    if errors.Is(err, goredis.Nil) {
      return nil, nil
    }
    return nil, fmt.Errorf("get cached place: %w", err)
  }
  var place types.PlaceCandidate
  if err := json.Unmarshal(raw, &place); err != nil {
    return nil, fmt.Errorf("decode cached place: %w", err)
  }
  return &place, nil
}

func (pc *placeCacheRepo) Put(ctx context.Context, place *types.PlaceCandidate, ttl time.Duration) error {
  raw, err := json.Marshal(place)
  if err != nil {
    return fmt.Errorf("encode place: %w", err)
  }
  if err := pc.rdb.Set(ctx, placeCacheKey(place.PlaceID), raw, ttl).Err(); err != nil {
    return fmt.Errorf("cache place: %w", err)
  }
  return nil
}
