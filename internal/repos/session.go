package repos

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "time"

  "github.com/google/uuid"
  goredis "github.com/redis/go-redis/v9"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

// SessionRepo is the KV store for onboarding sessions, one JSON value per
// user. Sessions are never deleted, only overwritten (retake onboarding).
type SessionRepo interface {
  Get(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error)
  Put(ctx context.Context, session *types.OnboardingSession) error
}

type sessionRepo struct {
  rdb *goredis.Client
  log *logger.Logger
  ttl time.Duration
}

func NewSessionRepo(rdb *goredis.Client, baseLog *logger.Logger) SessionRepo {
  repoLog := baseLog.With("repo", "SessionRepo")
  return &sessionRepo{rdb: rdb, log: repoLog, ttl: 30 * 24 * time.Hour}
}

func sessionKey(userID uuid.UUID) string {
  return fmt.Sprintf("onboarding:session:%s", userID)
}

func (sr *sessionRepo) Get(ctx context.Context, userID uuid.UUID) (*types.OnboardingSession, error) {
  raw, err := sr.rdb.Get(ctx, sessionKey(userID)).Bytes()
  if err != nil {
    if errors.Is(err, goredis.Nil) {
      return nil, nil
    }
    return nil, fmt.Errorf("get session: %w", err)
  }
  var session types.OnboardingSession
  if err := json.Unmarshal(raw, &session); err != nil {
    return nil, fmt.Errorf("decode session: %w", err)
  }
  return &session, nil
}

func (sr *sessionRepo) Put(ctx context.Context, session *types.OnboardingSession) error {
  session.LastActive = time.Now().UTC()
  raw, err := json.Marshal(session)
  if err != nil {
    return fmt.Errorf("encode session: %w", err)
  }
  if err := sr.rdb.Set(ctx, sessionKey(session.UserID), raw, sr.ttl).Err(); err != nil {
    return fmt.Errorf("put session: %w", err)
  }
  return nil
}
