package types

import (
  "time"
  "github.com/google/uuid"
)

type SubscriptionTier string

const (
  TierFree       SubscriptionTier = "free"
  TierPremium    SubscriptionTier = "premium"
  TierPayAsYouGo SubscriptionTier = "pay_as_you_go"
)

type User struct {
  ID                 uuid.UUID        `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
  Email              string           `gorm:"uniqueIndex;not null;column:email" json:"email"`
  Password           string           `gorm:"not null;column:password" json:"-"`
  Name               string           `gorm:"not null;column:name" json:"name"`
  ResidentialPlace   string           `gorm:"column:residential_place" json:"residential_place"`
  ResidentialPlaceID string           `gorm:"column:residential_place_id" json:"residential_place_id"`
  Tier               SubscriptionTier `gorm:"not null;default:'free';column:tier" json:"tier"`
  CreatedAt          time.Time        `gorm:"not null;default:now()" json:"created_at"`
  UpdatedAt          time.Time        `gorm:"not null;default:now()" json:"updated_at"`
}

func (User) TableName() string {
  return "user"
}
