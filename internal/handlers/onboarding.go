package handlers

import (
  "fmt"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/services"
  "github.com/milaplaces/mila-backend/internal/types"
)

type OnboardingHandler struct {
  onboardingService services.OnboardingService
  placeService      services.PlaceService
}

func NewOnboardingHandler(onboardingService services.OnboardingService, placeService services.PlaceService) *OnboardingHandler {
  return &OnboardingHandler{onboardingService: onboardingService, placeService: placeService}
}

func (oh *OnboardingHandler) Initialize(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  session, err := oh.onboardingService.Initialize(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "session":           session,
    "requires_location": session.CurrentStep == types.StepLocation,
  })
}

func (oh *OnboardingHandler) SelectCategories(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    Categories  []types.PlaceCategory `json:"categories"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }
  session, err := oh.onboardingService.SelectCategories(c.Request.Context(), userID, req.Categories)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{
    "session":       session,
    "next_category": session.CurrentCategory,
  })
}

func (oh *OnboardingHandler) GetQuestion(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    QuestionType    types.QuestionType  `json:"question_type"`
    Queries         []string            `json:"queries"`
    Message         string              `json:"message"`
    ExcludePlaceIDs []string            `json:"exclude_place_ids"`
  }
  if c.Request.ContentLength > 0 {
    if err := c.ShouldBindJSON(&req); err != nil {
      RespondError(c, http.StatusBadRequest, "invalid_body", err)
      return
    }
  }
  question, err := oh.onboardingService.GetQuestion(c.Request.Context(), userID, services.GetQuestionOptions{
    ExcludePlaceIDs: req.ExcludePlaceIDs,
    OverrideType:    req.QuestionType,
    OverrideQueries: req.Queries,
    OverrideMessage: req.Message,
  })
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, question)
}

func (oh *OnboardingHandler) SubmitAnswer(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  var req struct {
    QuestionType     types.QuestionType  `json:"question_type"`
    SelectedPlaceIDs []string            `json:"selected_place_ids"`
    RejectedPlaceIDs []string            `json:"rejected_place_ids"`
    Comparison       *struct {
      PlaceAID    string      `json:"place_a_id"`
      PlaceBID    string      `json:"place_b_id"`
      SliderValue int         `json:"slider_value"`
    } `json:"comparison"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    RespondError(c, http.StatusBadRequest, "invalid_body", err)
    return
  }

  evidence, err := oh.buildEvidence(c, req.QuestionType, req.SelectedPlaceIDs, req.RejectedPlaceIDs, req.Comparison)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  result, err := oh.onboardingService.SubmitAnswer(c.Request.Context(), userID, *evidence)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, result)
}

func (oh *OnboardingHandler) buildEvidence(c *gin.Context, questionType types.QuestionType, selected, rejected []string, comparison *struct {
  PlaceAID    string      `json:"place_a_id"`
  PlaceBID    string      `json:"place_b_id"`
  SliderValue int         `json:"slider_value"`
}) (*services.InferenceEvidence, error) {
  ctx := c.Request.Context()
  switch questionType {
  case types.QuestionABComparison:
    if comparison == nil {
      return nil, fmt.Errorf("%w: comparison payload is required", apierr.ErrInvalidArgument)
    }
    if comparison.SliderValue < 1 || comparison.SliderValue > 10 {
      return nil, fmt.Errorf("%w: slider value must be 1-10", apierr.ErrInvalidArgument)
    }
    placeA, err := oh.placeService.Details(ctx, comparison.PlaceAID)
    if err != nil {
      return nil, err
    }
    placeB, err := oh.placeService.Details(ctx, comparison.PlaceBID)
    if err != nil {
      return nil, err
    }
    return &services.InferenceEvidence{Comparison: &types.ABComparison{
      PlaceA:      *placeA,
      PlaceB:      *placeB,
      SliderValue: comparison.SliderValue,
    }}, nil
  case types.QuestionMultiSelect:
    if len(selected)+len(rejected) == 0 {
      return nil, fmt.Errorf("%w: no place selections provided", apierr.ErrInvalidArgument)
    }
    var selections []types.PlaceSelection
    for _, placeID := range selected {
      place, err := oh.placeService.Details(ctx, placeID)
      if err != nil {
        return nil, err
      }
      selections = append(selections, types.PlaceSelection{Place: *place, Selected: true})
    }
    for _, placeID := range rejected {
      place, err := oh.placeService.Details(ctx, placeID)
      if err != nil {
        return nil, err
      }
      selections = append(selections, types.PlaceSelection{Place: *place, Selected: false})
    }
    return &services.InferenceEvidence{Selections: selections}, nil
  }
  return nil, fmt.Errorf("%w: unknown question type %q", apierr.ErrInvalidArgument, questionType)
}

func (oh *OnboardingHandler) SkipCategory(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  result, err := oh.onboardingService.SkipCategory(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, result)
}

func (oh *OnboardingHandler) RequestDifferentResults(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  question, err := oh.onboardingService.RequestDifferentResults(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, question)
}

func (oh *OnboardingHandler) Complete(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  session, err := oh.onboardingService.Complete(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"session": session})
}

func (oh *OnboardingHandler) GetSession(c *gin.Context) {
  userID, err := currentUserID(c)
  if err != nil {
    RespondError(c, http.StatusUnauthorized, "unauthorized", err)
    return
  }
  session, err := oh.onboardingService.State(c.Request.Context(), userID)
  if err != nil {
    RespondServiceError(c, err)
    return
  }
  RespondOK(c, gin.H{"session": session})
}
