package services

import (
  "context"
  "fmt"
  "strings"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
)

const inferenceSystemPrompt = "You are a preference learning assistant. Analyze place selections to build accurate user taste profiles. Be specific and data-driven. Return only valid JSON."

const maxStrategyQueries = 3

// InferenceEvidence is one answered question. Exactly one of Selections or
// Comparison is set.
type InferenceEvidence struct {
  Selections []types.PlaceSelection
  Comparison *types.ABComparison
}

// InferenceResult is the model's updated read on a single category plus an
// optional suggestion for the next question.
type InferenceResult struct {
  Preference   types.CategoryPreference
  NextStrategy *types.QuestionStrategy
}

// PreferenceInferenceService turns answered questions into category
// preference updates. An unparseable or malformed model response surfaces as
// a retriable inference failure; nothing is ever partially applied.
type PreferenceInferenceService interface {
  Infer(ctx context.Context, category types.PlaceCategory, current types.CategoryPreference, evidence InferenceEvidence) (*InferenceResult, error)
}

type inferenceService struct {
  log    *logger.Logger
  openai OpenAIClient
}

func NewPreferenceInferenceService(log *logger.Logger, openai OpenAIClient) PreferenceInferenceService {
  serviceLog := log.With("service", "PreferenceInferenceService")
  return &inferenceService{log: serviceLog, openai: openai}
}

func (s *inferenceService) Infer(ctx context.Context, category types.PlaceCategory, current types.CategoryPreference, evidence InferenceEvidence) (*InferenceResult, error) {
  var prompt string
  switch {
  case evidence.Comparison != nil:
    prompt = comparisonPrompt(category, current, *evidence.Comparison)
  case len(evidence.Selections) > 0:
    prompt = selectionPrompt(category, current, evidence.Selections)
  default:
    return nil, fmt.Errorf("%w: evidence has neither selections nor comparison", apierr.ErrInvalidArgument)
  }

  raw, err := s.openai.GenerateJSON(ctx, inferenceSystemPrompt, prompt, 0.7)
  if err != nil {
    return nil, fmt.Errorf("%w: %v", apierr.ErrInferenceFailure, err)
  }

  result, err := parseInference(raw, current)
  if err != nil {
    s.log.Warn("Discarding malformed inference response", "category", category, "error", err)
    return nil, fmt.Errorf("%w: %v", apierr.ErrInferenceFailure, err)
  }
  return result, nil
}

// parseInference validates the model's JSON. Missing profile fields fall back
// to the current values; a missing nextQuestionType means no strategy. An
// out-of-range confidence or unrecognized question type rejects the whole
// response.
func parseInference(raw map[string]any, current types.CategoryPreference) (*InferenceResult, error) {
  pref := types.CategoryPreference{
    Keywords:            stringSlice(raw["keywords"], current.Keywords),
    PreferredAttributes: stringSlice(raw["preferredAttributes"], current.PreferredAttributes),
    StylePreferences:    stringOr(raw["stylePreferences"], current.StylePreferences),
    ConfidenceScore:     current.ConfidenceScore,
  }
  if v, ok := raw["confidenceScore"]; ok {
    score, ok := toFloat(v)
    if !ok || score < 0 || score > 1 {
      return nil, fmt.Errorf("confidenceScore %v out of range", v)
    }
    pref.ConfidenceScore = score
  }

  result := &InferenceResult{Preference: pref}

  questionType, _ := raw["nextQuestionType"].(string)
  if questionType == "" {
    return result, nil
  }
  qt := types.QuestionType(questionType)
  if qt != types.QuestionMultiSelect && qt != types.QuestionABComparison {
    return nil, fmt.Errorf("unknown nextQuestionType %q", questionType)
  }
  queries := stringSlice(raw["nextQuestionQueries"], nil)
  if len(queries) > maxStrategyQueries {
    queries = queries[:maxStrategyQueries]
  }
  result.NextStrategy = &types.QuestionStrategy{
    QuestionType: qt,
    Queries:      queries,
    Message:      stringOr(raw["nextQuestionMessage"], ""),
    Reasoning:    stringOr(raw["reasoning"], ""),
  }
  return result, nil
}

func selectionPrompt(category types.PlaceCategory, current types.CategoryPreference, selections []types.PlaceSelection) string {
  var selected, rejected []types.PlaceCandidate
  for _, s := range selections {
    if s.Selected {
      selected = append(selected, s.Place)
    } else {
      rejected = append(rejected, s.Place)
    }
  }

  var b strings.Builder
  fmt.Fprintf(&b, "You are analyzing user preferences for %s places.\n\n", category)
  writeCurrentProfile(&b, current)
  fmt.Fprintf(&b, "The user just selected %d places and rejected %d places from a set of options.\n\n", len(selected), len(rejected))
  b.WriteString("Selected places:\n")
  writePlaceList(&b, selected)
  b.WriteString("\nRejected places:\n")
  writePlaceList(&b, rejected)
  fmt.Fprintf(&b, `
Task: Update the user's profile for %s based on this selection. Return a JSON object with:
1. keywords: Array of specific keywords that describe what they like (e.g., ["specialty coffee", "minimalist design"])
2. preferredAttributes: Array of boolean attributes they seem to prefer (e.g., ["outdoor seating", "dog friendly"])
3. stylePreferences: A short natural language description of their taste (e.g., "prefers modern, minimalist spaces with natural light")
4. confidenceScore: A number 0-1 indicating how confident we are about their preferences
5. nextQuestionType: Either "multi-select" or "ab-comparison" depending on what would help learn more
6. nextQuestionQueries: Array of 2-3 search query strings OR contrasting attribute pairs to test next
7. nextQuestionMessage: A natural, conversational message (1-2 sentences) to show with the next question. Be friendly and encouraging. Don't reflect back what was learned. Match the question type.
8. reasoning: Why you chose this next question type and what you're trying to learn

Return ONLY valid JSON, no markdown formatting.`, category)
  return b.String()
}

func comparisonPrompt(category types.PlaceCategory, current types.CategoryPreference, cmp types.ABComparison) string {
  var b strings.Builder
  fmt.Fprintf(&b, "You are analyzing user preferences for %s places.\n\n", category)
  writeCurrentProfile(&b, current)
  b.WriteString("The user just compared two places on a scale of 1-10, where 1 = strongly prefer A, 10 = strongly prefer B, 5 = neutral.\n")
  fmt.Fprintf(&b, "Their response: %d (%s, strength: %.2f)\n\n", cmp.SliderValue, cmp.Preferred(), cmp.Strength())
  b.WriteString("Place A:\n")
  writePlace(&b, cmp.PlaceA)
  b.WriteString("\nPlace B:\n")
  writePlace(&b, cmp.PlaceB)
  fmt.Fprintf(&b, `
Task: Update the user's profile for %s based on this comparison. Return a JSON object with:
1. keywords: Array of specific keywords that describe what they like
2. preferredAttributes: Array of boolean attributes they seem to prefer
3. stylePreferences: A short natural language description of their taste
4. confidenceScore: A number 0-1 indicating how confident we are about their preferences
5. nextQuestionType: Either "multi-select" or "ab-comparison"
6. nextQuestionQueries: Array of 2-3 search query strings OR contrasting attributes to test next
7. nextQuestionMessage: A natural, conversational message (1-2 sentences) to show with the next question. Be friendly and encouraging. Don't reflect back what was learned. Match the question type.
8. reasoning: Why you chose this next question type and what you're trying to learn

Return ONLY valid JSON, no markdown formatting.`, category)
  return b.String()
}

func writeCurrentProfile(b *strings.Builder, current types.CategoryPreference) {
  b.WriteString("Current user profile for this category:\n")
  fmt.Fprintf(b, "- Keywords: %s\n", joinOr(current.Keywords, "none yet"))
  fmt.Fprintf(b, "- Preferred Attributes: %s\n", joinOr(current.PreferredAttributes, "none yet"))
  fmt.Fprintf(b, "- Style Preferences: %s\n", orDefault(current.StylePreferences, "none yet"))
  fmt.Fprintf(b, "- Confidence Score: %g\n\n", current.ConfidenceScore)
}

func writePlaceList(b *strings.Builder, places []types.PlaceCandidate) {
  if len(places) == 0 {
    b.WriteString("(none)\n")
    return
  }
  for i, p := range places {
    fmt.Fprintf(b, "%d. %s\n", i+1, p.DisplayName)
    fmt.Fprintf(b, "   Address: %s\n", p.Address)
    fmt.Fprintf(b, "   Rating: %g\n", p.Rating)
    fmt.Fprintf(b, "   Price: %s\n", priceLabel(p.PriceLevel))
    fmt.Fprintf(b, "   Types: %s\n", strings.Join(p.Types, ", "))
    fmt.Fprintf(b, "   Attributes: %s\n", joinOr(p.Attributes(), "none"))
  }
}

func writePlace(b *strings.Builder, p types.PlaceCandidate) {
  fmt.Fprintf(b, "- Name: %s\n", p.DisplayName)
  fmt.Fprintf(b, "- Address: %s\n", p.Address)
  fmt.Fprintf(b, "- Rating: %g\n", p.Rating)
  fmt.Fprintf(b, "- Price: %s\n", priceLabel(p.PriceLevel))
  fmt.Fprintf(b, "- Types: %s\n", strings.Join(p.Types, ", "))
  fmt.Fprintf(b, "- Attributes: %s\n", joinOr(p.Attributes(), "none"))
}

func priceLabel(level *int) string {
  if level == nil || *level <= 0 {
    return "N/A"
  }
  return strings.Repeat("$", *level)
}

func joinOr(items []string, fallback string) string {
  if len(items) == 0 {
    return fallback
  }
  return strings.Join(items, ", ")
}

func orDefault(s, fallback string) string {
  if s == "" {
    return fallback
  }
  return s
}

func stringSlice(v any, fallback []string) []string {
  items, ok := v.([]any)
  if !ok {
    return fallback
  }
  out := make([]string, 0, len(items))
  for _, item := range items {
    if s, ok := item.(string); ok && s != "" {
      out = append(out, s)
    }
  }
  if len(out) == 0 {
    return fallback
  }
  return out
}

func stringOr(v any, fallback string) string {
  if s, ok := v.(string); ok && s != "" {
    return s
  }
  return fallback
}

func toFloat(v any) (float64, bool) {
  switch n := v.(type) {
  case float64:
    return n, true
  case int:
    return float64(n), true
  }
  return 0, false
}
