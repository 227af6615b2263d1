package services

import (
  "context"

  "github.com/google/uuid"

  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

// UpdateOutcome is the coordinator's answer to a submitted question: the new
// profile state, the category's confidence after the update, and an optional
// shape for the next question. NextStrategy is nil when the inference service
// had no further useful question to suggest.
type UpdateOutcome struct {
  Profile      *types.TasteProfile
  Confidence   float64
  NextStrategy *types.QuestionStrategy
}

// PreferenceUpdateCoordinator turns one answered question into a new profile
// version. Inference runs before any write, so a failed or malformed
// inference leaves the profile untouched.
type PreferenceUpdateCoordinator interface {
  ApplyAnswer(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, evidence InferenceEvidence) (*UpdateOutcome, error)
}

type preferenceUpdateCoordinator struct {
  log       *logger.Logger
  profiles  TasteProfileService
  inference PreferenceInferenceService
}

func NewPreferenceUpdateCoordinator(log *logger.Logger, profiles TasteProfileService, inference PreferenceInferenceService) PreferenceUpdateCoordinator {
  serviceLog := log.With("service", "PreferenceUpdateCoordinator")
  return &preferenceUpdateCoordinator{log: serviceLog, profiles: profiles, inference: inference}
}

func (c *preferenceUpdateCoordinator) ApplyAnswer(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, evidence InferenceEvidence) (*UpdateOutcome, error) {
  profile, err := c.profiles.Latest(ctx, userID)
  if err != nil {
    return nil, err
  }
  current := profile.Categories[category]

  result, err := c.inference.Infer(ctx, category, current, evidence)
  if err != nil {
    return nil, err
  }

  updated, err := c.profiles.UpdateCategory(ctx, userID, category, result.Preference)
  if err != nil {
    return nil, err
  }
  c.log.Debug("Applied answer",
    "user_id", userID,
    "category", category,
    "version", updated.Version,
    "confidence", result.Preference.ConfidenceScore)

  return &UpdateOutcome{
    Profile:      updated,
    Confidence:   result.Preference.ConfidenceScore,
    NextStrategy: result.NextStrategy,
  }, nil
}
