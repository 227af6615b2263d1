package repos

import (
  "context"
  "errors"
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

type SavedPlaceRepo interface {
  Save(ctx context.Context, tx *gorm.DB, place *types.SavedPlace) error
  ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SavedPlace, error)
  Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, placeID string) error
  Rate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, placeID string, rating int, notes string) error
}

type savedPlaceRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewSavedPlaceRepo(db *gorm.DB, baseLog *logger.Logger) SavedPlaceRepo {
  repoLog := baseLog.With("repo", "SavedPlaceRepo")
  return &savedPlaceRepo{db: db, log: repoLog}
}

func (sp *savedPlaceRepo) Save(ctx context.Context, tx *gorm.DB, place *types.SavedPlace) error {
  transaction := tx
  if transaction == nil {
    transaction = sp.db
  }
  return transaction.WithContext(ctx).Create(place).Error
}

func (sp *savedPlaceRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SavedPlace, error) {
  transaction := tx
  if transaction == nil {
    transaction = sp.db
  }
  var results []*types.SavedPlace
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("saved_at DESC").
    Find(&results).Error; err != nil {
    return nil, err
  }
  return results, nil
}

func (sp *savedPlaceRepo) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, placeID string) error {
  transaction := tx
  if transaction == nil {
    transaction = sp.db
  }
  return transaction.WithContext(ctx).
    Where("user_id = ? AND place_id = ?", userID, placeID).
    Delete(&types.SavedPlace{}).Error
}

func (sp *savedPlaceRepo) Rate(ctx context.Context, tx *gorm.DB, userID uuid.UUID, placeID string, rating int, notes string) error {
  transaction := tx
  if transaction == nil {
    transaction = sp.db
  }
  now := time.Now().UTC()
  result := transaction.WithContext(ctx).
    Model(&types.SavedPlace{}).
    Where("user_id = ? AND place_id = ?", userID, placeID).
    Updates(map[string]any{
      "rating":     rating,
      "notes":      notes,
      "visited_at": &now,
    })
  if result.Error != nil {
    return result.Error
  }
  if result.RowsAffected == 0 {
    return errors.New("saved place not found")
  }
  return nil
}
