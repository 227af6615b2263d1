package types

import (
  "time"
  "github.com/google/uuid"
)

type OnboardingStep string

const (
  StepLocation   OnboardingStep = "location"
  StepCategories OnboardingStep = "categories"
  StepDiscover   OnboardingStep = "discover"
  StepComplete   OnboardingStep = "complete"
)

// OnboardingSession is the per-user interview state, stored as a JSON value
// keyed by user id. One logical record per user; re-initialization overwrites
// it so onboarding can be retaken.
type OnboardingSession struct {
  UserID             uuid.UUID       `json:"user_id"`
  CurrentStep        OnboardingStep  `json:"current_step"`
  CurrentCategory    PlaceCategory   `json:"current_category,omitempty"`
  SelectedCategories []PlaceCategory `json:"selected_categories"`
  QuestionsAsked     int             `json:"questions_asked"`
  Completed          bool            `json:"completed"`
  LastActive         time.Time       `json:"last_active"`

  // ExcludedPlaceIDs accumulates every place id shown within the current
  // category; cleared on category advancement.
  ExcludedPlaceIDs []string `json:"excluded_place_ids,omitempty"`
  // LastShownPlaceIDs is the batch from the most recent question, so a
  // "show me different places" request can fold it into the exclusion set.
  LastShownPlaceIDs []string `json:"last_shown_place_ids,omitempty"`

  // RecentConfidenceDeltas holds up to the last 3 absolute confidence
  // deltas for the plateau stopping rule.
  RecentConfidenceDeltas []float64 `json:"recent_confidence_deltas,omitempty"`
  LastConfidence         float64   `json:"last_confidence"`

  // NextStrategy is the coordinator's pending suggestion for the next
  // question, consumed by the next GetQuestion call.
  NextStrategy *QuestionStrategy `json:"next_strategy,omitempty"`
}

// HasCategory reports whether cat is one of the session's selected
// categories. CurrentCategory must always satisfy this.
func (s *OnboardingSession) HasCategory(cat PlaceCategory) bool {
  for _, c := range s.SelectedCategories {
    if c == cat {
      return true
    }
  }
  return false
}

// NextCategory returns the category after the current one, or "" when the
// current category is last (or not found).
func (s *OnboardingSession) NextCategory() PlaceCategory {
  for i, c := range s.SelectedCategories {
    if c == s.CurrentCategory && i+1 < len(s.SelectedCategories) {
      return s.SelectedCategories[i+1]
    }
  }
  return ""
}
