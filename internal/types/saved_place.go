package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type SavedPlace struct {
  ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_saved_place_user_place,priority:1" json:"user_id"`
  PlaceID   string         `gorm:"not null;uniqueIndex:idx_saved_place_user_place,priority:2;column:place_id" json:"place_id"`
  PlaceName string         `gorm:"not null;column:place_name" json:"place_name"`
  Category  PlaceCategory  `gorm:"column:category" json:"category"`
  Address   string         `gorm:"column:address" json:"address"`
  Photos    datatypes.JSON `gorm:"type:jsonb;column:photos" json:"photos"`
  Types     datatypes.JSON `gorm:"type:jsonb;column:types" json:"types"`
  Rating    *int           `gorm:"column:rating" json:"rating,omitempty"`
  Notes     string         `gorm:"column:notes" json:"notes"`
  VisitedAt *time.Time     `gorm:"column:visited_at" json:"visited_at,omitempty"`
  SavedAt   time.Time      `gorm:"not null;default:now();column:saved_at" json:"saved_at"`
}

func (SavedPlace) TableName() string { return "saved_place" }
