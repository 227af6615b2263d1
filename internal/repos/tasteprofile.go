package repos

import (
  "context"
  "errors"
  "strings"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

// TasteProfileRepo persists BIO versions append-only: every write inserts a
// new (user_id, version) row, reads take the highest version. The unique
// index turns a concurrent stale write into a conflict instead of a silent
// lost update.
type TasteProfileRepo interface {
  GetLatest(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.TasteProfileVersion, error)
  Append(ctx context.Context, tx *gorm.DB, row *types.TasteProfileVersion) error
}

var ErrVersionConflict = errors.New("profile version conflict")

type tasteProfileRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewTasteProfileRepo(db *gorm.DB, baseLog *logger.Logger) TasteProfileRepo {
  repoLog := baseLog.With("repo", "TasteProfileRepo")
  return &tasteProfileRepo{db: db, log: repoLog}
}

func (pr *tasteProfileRepo) GetLatest(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (*types.TasteProfileVersion, error) {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  var result types.TasteProfileVersion
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("version DESC").
    First(&result).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, nil
    }
    return nil, err
  }
  return &result, nil
}

func (pr *tasteProfileRepo) Append(ctx context.Context, tx *gorm.DB, row *types.TasteProfileVersion) error {
  transaction := tx
  if transaction == nil {
    transaction = pr.db
  }
  if err := transaction.WithContext(ctx).Create(row).Error; err != nil {
    if isUniqueViolation(err) {
      return ErrVersionConflict
    }
    return err
  }
  return nil
}

func isUniqueViolation(err error) bool {
  if errors.Is(err, gorm.ErrDuplicatedKey) {
    return true
  }
  // pgx surfaces SQLSTATE 23505 in the message when the gorm translator is
  // not configured.
  return err != nil && strings.Contains(err.Error(), "23505")
}
