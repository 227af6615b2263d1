package types

import (
  "time"
  "github.com/google/uuid"
  "gorm.io/datatypes"
)

type PlaceCategory = string

// CategoryPreference is the per-category slice of a taste profile.
type CategoryPreference struct {
  Keywords            []string `json:"keywords"`
  PreferredAttributes []string `json:"preferredAttributes"`
  StylePreferences    string   `json:"stylePreferences"`
  ConfidenceScore     float64  `json:"confidenceScore"`
}

// TasteProfile ("BIO") is the decoded latest version of a user's preference
// record.
type TasteProfile struct {
  UserID      uuid.UUID                                `json:"user_id"`
  Version     int                                      `json:"version"`
  BioText     string                                   `json:"bio_text"`
  Categories  map[PlaceCategory]CategoryPreference     `json:"categories"`
  LastUpdated time.Time                                `json:"last_updated"`
}

// TasteProfileVersion is the persisted append-only row. Versions are never
// overwritten; reads take the highest version per user.
type TasteProfileVersion struct {
  ID         uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  UserID     uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_profile_user_version,priority:1" json:"user_id"`
  Version    int            `gorm:"not null;uniqueIndex:idx_profile_user_version,priority:2" json:"version"`
  BioText    string         `gorm:"column:bio_text" json:"bio_text"`
  Categories datatypes.JSON `gorm:"type:jsonb;column:categories" json:"categories"`
  CreatedAt  time.Time      `gorm:"not null;default:now()" json:"created_at"`
}

func (TasteProfileVersion) TableName() string { return "taste_profile_version" }
