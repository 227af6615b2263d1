package services

import (
  "context"
  "errors"
  "fmt"
  "strings"
  "testing"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

type fakeOpenAI struct {
  lastSystem string
  lastUser   string
  jsonResult map[string]any
  jsonErr    error
  textResult string
  textErr    error
}

func (f *fakeOpenAI) GenerateJSON(ctx context.Context, system, user string, temperature float64) (map[string]any, error) {
  f.lastSystem = system
  f.lastUser = user
  return f.jsonResult, f.jsonErr
}

func (f *fakeOpenAI) GenerateText(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
  f.lastSystem = system
  f.lastUser = user
  return f.textResult, f.textErr
}

func testInference(t *testing.T, openai OpenAIClient) PreferenceInferenceService {
  t.Helper()
  log, err := logger.New("development")
  if err != nil {
    t.Fatalf("logger.New: %v", err)
  }
  return NewPreferenceInferenceService(log, openai)
}

func selectionEvidence() InferenceEvidence {
  return InferenceEvidence{
    Selections: []types.PlaceSelection{
      {Place: types.PlaceCandidate{PlaceID: "a", DisplayName: "Quiet Leaf", OutdoorSeating: true}, Selected: true},
      {Place: types.PlaceCandidate{PlaceID: "b", DisplayName: "Loud Bean"}, Selected: false},
    },
  }
}

func TestInferParsesWellFormedResponse(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{
    "keywords":            []any{"specialty coffee", "minimalist design"},
    "preferredAttributes": []any{"outdoor seating"},
    "stylePreferences":    "prefers modern, minimalist spaces",
    "confidenceScore":     0.7,
    "nextQuestionType":    "ab-comparison",
    "nextQuestionQueries": []any{"cozy cafes", "modern cafes"},
    "nextQuestionMessage": "Which of these two feels right?",
    "reasoning":           "contrast cozy against modern",
  }}
  svc := testInference(t, openai)

  got, err := svc.Infer(context.Background(), "cafe", types.CategoryPreference{}, selectionEvidence())
  if err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if got.Preference.ConfidenceScore != 0.7 {
    t.Errorf("confidence = %v, want 0.7", got.Preference.ConfidenceScore)
  }
  if len(got.Preference.Keywords) != 2 {
    t.Errorf("keywords = %v", got.Preference.Keywords)
  }
  if got.NextStrategy == nil {
    t.Fatal("expected a next strategy")
  }
  if got.NextStrategy.QuestionType != types.QuestionABComparison {
    t.Errorf("question type = %s", got.NextStrategy.QuestionType)
  }
  if len(got.NextStrategy.Queries) != 2 {
    t.Errorf("queries = %v", got.NextStrategy.Queries)
  }
}

func TestInferNoStrategyWhenTypeAbsent(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{
    "keywords":        []any{"dive bars"},
    "confidenceScore": 0.9,
  }}
  svc := testInference(t, openai)

  got, err := svc.Infer(context.Background(), "bar", types.CategoryPreference{}, selectionEvidence())
  if err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if got.NextStrategy != nil {
    t.Errorf("expected nil strategy, got %+v", got.NextStrategy)
  }
}

func TestInferMissingFieldsFallBackToCurrent(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{
    "confidenceScore": 0.5,
  }}
  svc := testInference(t, openai)
  current := types.CategoryPreference{
    Keywords:         []string{"natural wine"},
    StylePreferences: "likes intimate spots",
    ConfidenceScore:  0.4,
  }

  got, err := svc.Infer(context.Background(), "bar", current, selectionEvidence())
  if err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if len(got.Preference.Keywords) != 1 || got.Preference.Keywords[0] != "natural wine" {
    t.Errorf("keywords should fall back to current, got %v", got.Preference.Keywords)
  }
  if got.Preference.StylePreferences != "likes intimate spots" {
    t.Errorf("style should fall back to current, got %q", got.Preference.StylePreferences)
  }
  if got.Preference.ConfidenceScore != 0.5 {
    t.Errorf("confidence = %v, want 0.5", got.Preference.ConfidenceScore)
  }
}

func TestInferRejectsMalformedResponses(t *testing.T) {
  tests := []struct {
    name string
    raw  map[string]any
  }{
    {name: "confidence above one", raw: map[string]any{"confidenceScore": 1.4}},
    {name: "confidence negative", raw: map[string]any{"confidenceScore": -0.1}},
    {name: "confidence wrong type", raw: map[string]any{"confidenceScore": "high"}},
    {name: "unknown question type", raw: map[string]any{"confidenceScore": 0.5, "nextQuestionType": "essay"}},
  }
  for _, tt := range tests {
    t.Run(tt.name, func(t *testing.T) {
      svc := testInference(t, &fakeOpenAI{jsonResult: tt.raw})
      _, err := svc.Infer(context.Background(), "cafe", types.CategoryPreference{}, selectionEvidence())
      if !errors.Is(err, apierr.ErrInferenceFailure) {
        t.Errorf("expected ErrInferenceFailure, got %v", err)
      }
    })
  }
}

func TestInferWrapsTransportErrors(t *testing.T) {
  svc := testInference(t, &fakeOpenAI{jsonErr: fmt.Errorf("upstream 503")})
  _, err := svc.Infer(context.Background(), "cafe", types.CategoryPreference{}, selectionEvidence())
  if !errors.Is(err, apierr.ErrInferenceFailure) {
    t.Errorf("expected ErrInferenceFailure, got %v", err)
  }
}

func TestInferRequiresEvidence(t *testing.T) {
  svc := testInference(t, &fakeOpenAI{})
  _, err := svc.Infer(context.Background(), "cafe", types.CategoryPreference{}, InferenceEvidence{})
  if !errors.Is(err, apierr.ErrInvalidArgument) {
    t.Errorf("expected ErrInvalidArgument, got %v", err)
  }
}

func TestInferComparisonPromptDescribesSlider(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{"confidenceScore": 0.6}}
  svc := testInference(t, openai)

  evidence := InferenceEvidence{Comparison: &types.ABComparison{
    PlaceA:      types.PlaceCandidate{PlaceID: "a", DisplayName: "Alpha"},
    PlaceB:      types.PlaceCandidate{PlaceID: "b", DisplayName: "Beta"},
    SliderValue: 8,
  }}
  if _, err := svc.Infer(context.Background(), "bar", types.CategoryPreference{}, evidence); err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if !strings.Contains(openai.lastUser, "8 (placeB, strength: 0.60)") {
    t.Errorf("prompt missing slider summary:\n%s", openai.lastUser)
  }
  if !strings.Contains(openai.lastUser, "Place A:") || !strings.Contains(openai.lastUser, "Place B:") {
    t.Errorf("prompt missing place sections")
  }
}

func TestInferNeutralSliderHasZeroStrength(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{"confidenceScore": 0.6}}
  svc := testInference(t, openai)

  evidence := InferenceEvidence{Comparison: &types.ABComparison{
    PlaceA:      types.PlaceCandidate{PlaceID: "a", DisplayName: "Alpha"},
    PlaceB:      types.PlaceCandidate{PlaceID: "b", DisplayName: "Beta"},
    SliderValue: 5,
  }}
  if _, err := svc.Infer(context.Background(), "bar", types.CategoryPreference{}, evidence); err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if !strings.Contains(openai.lastUser, "5 (neutral, strength: 0.00)") {
    t.Errorf("prompt missing neutral slider summary:\n%s", openai.lastUser)
  }
}

func TestInferTruncatesQueries(t *testing.T) {
  openai := &fakeOpenAI{jsonResult: map[string]any{
    "confidenceScore":     0.5,
    "nextQuestionType":    "multi-select",
    "nextQuestionQueries": []any{"one", "two", "three", "four", "five"},
  }}
  svc := testInference(t, openai)

  got, err := svc.Infer(context.Background(), "cafe", types.CategoryPreference{}, selectionEvidence())
  if err != nil {
    t.Fatalf("Infer: %v", err)
  }
  if len(got.NextStrategy.Queries) != maxStrategyQueries {
    t.Errorf("queries = %v, want %d entries", got.NextStrategy.Queries, maxStrategyQueries)
  }
}
