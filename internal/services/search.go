package services

import (
  "context"
  "errors"
  "fmt"
  "sort"
  "strings"
  "time"

  "github.com/google/uuid"
  "golang.org/x/sync/errgroup"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

const (
  freeTierSearchLimit  = 10
  freeTierSearchWindow = 12 * time.Hour

  searchResultsPerQuery = 10
  searchScoringCap      = 20
  keywordMatchBoost     = 0.5
)

const searchContextSystemPrompt = "You convert user preference profiles into optimized search parameters. Be specific and actionable."

const explanationSystemPrompt = "You write friendly, personalized explanations. Be natural and helpful."

// SearchParams is one personalized search request. DestinationPlaceID
// resolves the center point; UsePreferences false skips the profile entirely.
type SearchParams struct {
  Destination        string
  DestinationPlaceID string
  Category           types.PlaceCategory
  AdditionalFilters  map[string]bool
  UsePreferences     bool
}

// SearchResult is a scored, optionally explained place.
type SearchResult struct {
  Place           types.PlaceCandidate `json:"place"`
  Score           float64              `json:"score"`
  Reasoning       string               `json:"reasoning,omitempty"`
  MatchedKeywords []string             `json:"matched_keywords,omitempty"`
}

// SearchResponse wraps the result list with quota info for free-tier users.
type SearchResponse struct {
  Results          []SearchResult `json:"results"`
  TotalResults     int            `json:"total_results"`
  Personalized     bool           `json:"personalized"`
  SearchesRemaining *int          `json:"searches_remaining,omitempty"`
}

// SearchService runs profile-driven place search: the BIO becomes an
// inference-generated search context (keywords, filters, query variations),
// the queries fan out in parallel, and results are deduplicated, filtered
// and scored by keyword alignment.
type SearchService interface {
  Personalized(ctx context.Context, userID uuid.UUID, params SearchParams) (*SearchResponse, error)
}

type searchService struct {
  log       *logger.Logger
  users     repos.UserRepo
  profiles  TasteProfileService
  provider  PlaceSearchProvider
  openai    OpenAIClient
  rateLimit repos.RateLimitRepo
}

func NewSearchService(
  log *logger.Logger,
  users repos.UserRepo,
  profiles TasteProfileService,
  provider PlaceSearchProvider,
  openai OpenAIClient,
  rateLimit repos.RateLimitRepo,
) SearchService {
  serviceLog := log.With("service", "SearchService")
  return &searchService{
    log:       serviceLog,
    users:     users,
    profiles:  profiles,
    provider:  provider,
    openai:    openai,
    rateLimit: rateLimit,
  }
}

type searchContext struct {
  keywords []string
  filters  map[string]bool
  queries  []string
}

func (s *searchService) Personalized(ctx context.Context, userID uuid.UUID, params SearchParams) (*SearchResponse, error) {
  if params.Destination == "" || params.Category == "" {
    return nil, fmt.Errorf("%w: destination and category are required", apierr.ErrInvalidArgument)
  }

  user, err := s.users.GetByID(ctx, nil, userID)
  if err != nil {
    return nil, err
  }
  if user == nil {
    return nil, fmt.Errorf("%w: user %s", apierr.ErrNotFound, userID)
  }

  var remaining *int
  if user.Tier == types.TierFree {
    allowed, left, err := s.rateLimit.Check(ctx, userID, "search", freeTierSearchLimit, freeTierSearchWindow)
    if err != nil {
      return nil, err
    }
    if !allowed {
      return nil, fmt.Errorf("%w: free tier allows %d searches per %s", apierr.ErrRateLimited, freeTierSearchLimit, freeTierSearchWindow)
    }
    remaining = &left
  }

  if params.DestinationPlaceID == "" {
    return nil, fmt.Errorf("%w: destination place id is required", apierr.ErrInvalidArgument)
  }
  location, err := s.provider.PlaceLocation(ctx, params.DestinationPlaceID)
  if err != nil {
    return nil, fmt.Errorf("resolving destination location: %w", err)
  }

  sctx := s.buildContext(ctx, userID, params)

  // Attribute booleans ride the paid-tier field mask. Without them every
  // place reads as failing every filter, so filtering is skipped entirely
  // for free-tier results.
  withAttributes := user.Tier != types.TierFree

  places, err := s.fanOut(ctx, sctx.queries, params.Category, *location, withAttributes)
  if err != nil {
    return nil, err
  }
  if withAttributes {
    places = applyFilters(places, sctx.filters, params.AdditionalFilters)
  }
  if len(places) > searchScoringCap {
    places = places[:searchScoringCap]
  }

  results := make([]SearchResult, 0, len(places))
  for _, place := range places {
    result := SearchResult{Place: place, Score: place.Rating}
    if params.UsePreferences && len(sctx.keywords) > 0 {
      matched := matchKeywords(place, sctx.keywords)
      result.Score += float64(len(matched)) * keywordMatchBoost
      result.MatchedKeywords = matched
      result.Reasoning = s.explain(ctx, userID, params.Category, place)
    }
    results = append(results, result)
  }
  sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

  return &SearchResponse{
    Results:          results,
    TotalResults:     len(results),
    Personalized:     params.UsePreferences,
    SearchesRemaining: remaining,
  }, nil
}

// buildContext turns the user's BIO into search parameters. Any failure
// (missing profile, unknown category, inference error) falls back to a plain
// category-in-destination search.
func (s *searchService) buildContext(ctx context.Context, userID uuid.UUID, params SearchParams) searchContext {
  fallback := searchContext{queries: []string{fmt.Sprintf("%s in %s", params.Category, params.Destination)}}
  if !params.UsePreferences {
    return fallback
  }

  profile, err := s.profiles.Latest(ctx, userID)
  if err != nil {
    if !errors.Is(err, apierr.ErrProfileNotInitialized) {
      s.log.Warn("Profile read failed, searching without personalization", "user_id", userID, "error", err)
    }
    return fallback
  }
  pref, ok := profile.Categories[params.Category]
  if !ok {
    return fallback
  }

  prompt := fmt.Sprintf(`Based on this user's preferences for %s places, generate search parameters for finding places in %s:

User preferences:
- Keywords: %s
- Preferred Attributes: %s
- Style: %s

Return a JSON object with:
1. keywords: Array of 5-10 search keywords
2. filters: Object with boolean attribute keys (e.g., {"outdoorSeating": true, "dogFriendly": true})
3. searchQueries: Array of 2-3 optimized search query strings for a place search API

Return ONLY valid JSON, no markdown formatting.`,
    params.Category, params.Destination,
    strings.Join(pref.Keywords, ", "),
    strings.Join(pref.PreferredAttributes, ", "),
    pref.StylePreferences)

  raw, err := s.openai.GenerateJSON(ctx, searchContextSystemPrompt, prompt, 0.5)
  if err != nil {
    s.log.Warn("Search context generation failed, using profile keywords", "user_id", userID, "error", err)
    return searchContext{keywords: pref.Keywords, queries: fallback.queries}
  }

  sctx := searchContext{
    keywords: stringSlice(raw["keywords"], pref.Keywords),
    queries:  stringSlice(raw["searchQueries"], fallback.queries),
    filters:  map[string]bool{},
  }
  if filters, ok := raw["filters"].(map[string]any); ok {
    for key, value := range filters {
      if enabled, ok := value.(bool); ok && enabled {
        sctx.filters[key] = true
      }
    }
  }
  if len(sctx.queries) > maxStrategyQueries {
    sctx.queries = sctx.queries[:maxStrategyQueries]
  }
  return sctx
}

func (s *searchService) fanOut(ctx context.Context, queries []string, category types.PlaceCategory, location types.LatLng, withAttributes bool) ([]types.PlaceCandidate, error) {
  results := make([][]types.PlaceCandidate, len(queries))
  errs := make([]error, len(queries))

  g, gctx := errgroup.WithContext(ctx)
  for i, query := range queries {
    g.Go(func() error {
      results[i], errs[i] = s.provider.SearchText(gctx, TextSearchParams{
        TextQuery:         query,
        BiasLatitude:      location.Lat,
        BiasLongitude:     location.Lng,
        BiasRadiusMeters:  baseRadiusMeters,
        IncludedType:      string(category),
        MaxResultCount:    searchResultsPerQuery,
        IncludeAttributes: withAttributes,
      })
      return nil
    })
  }
  _ = g.Wait()

  failures := 0
  var lastErr error
  for _, err := range errs {
    if err != nil {
      failures++
      lastErr = err
    }
  }
  if failures == len(queries) && lastErr != nil {
    return nil, lastErr
  }

  seen := make(map[string]bool)
  var merged []types.PlaceCandidate
  for _, batch := range results {
    for _, place := range batch {
      if seen[place.PlaceID] {
        continue
      }
      seen[place.PlaceID] = true
      merged = append(merged, place)
    }
  }
  return merged, nil
}

// explain asks for a one-line personalized match explanation; best effort.
func (s *searchService) explain(ctx context.Context, userID uuid.UUID, category types.PlaceCategory, place types.PlaceCandidate) string {
  profile, err := s.profiles.Latest(ctx, userID)
  if err != nil {
    return ""
  }
  pref, ok := profile.Categories[category]
  if !ok {
    return ""
  }
  keywords := pref.Keywords
  if len(keywords) > 5 {
    keywords = keywords[:5]
  }
  attrs := pref.PreferredAttributes
  if len(attrs) > 5 {
    attrs = attrs[:5]
  }

  prompt := fmt.Sprintf(`Explain in 1-2 natural sentences why this place matches the user's preferences. Be specific but concise. Sound helpful and human.

User preferences for %s:
- Style: %s
- Keywords: %s
- Preferred attributes: %s

Place:
- Name: %s
- Rating: %g
- Attributes: %s

Write a natural explanation starting with "Great match -" or "Perfect for you -"`,
    category, pref.StylePreferences, strings.Join(keywords, ", "), strings.Join(attrs, ", "),
    place.DisplayName, place.Rating, joinOr(place.Attributes(), "none"))

  text, err := s.openai.GenerateText(ctx, explanationSystemPrompt, prompt, 0.8, 100)
  if err != nil {
    s.log.Debug("Match explanation unavailable", "place_id", place.PlaceID, "error", err)
    return ""
  }
  return strings.TrimSpace(text)
}

func matchKeywords(place types.PlaceCandidate, keywords []string) []string {
  haystack := strings.ToLower(place.DisplayName + " " + strings.Join(place.Types, " ") + " " + place.Address)
  var matched []string
  for _, keyword := range keywords {
    if keyword == "" {
      continue
    }
    if strings.Contains(haystack, strings.ToLower(keyword)) {
      matched = append(matched, keyword)
    }
  }
  return matched
}

func applyFilters(places []types.PlaceCandidate, contextFilters, extraFilters map[string]bool) []types.PlaceCandidate {
  merged := make(map[string]bool)
  for key, enabled := range contextFilters {
    if enabled {
      merged[key] = true
    }
  }
  for key, enabled := range extraFilters {
    if enabled {
      merged[key] = true
    }
  }
  if len(merged) == 0 {
    return places
  }
  var out []types.PlaceCandidate
  for _, place := range places {
    if placeSatisfies(place, merged) {
      out = append(out, place)
    }
  }
  return out
}

func placeSatisfies(place types.PlaceCandidate, filters map[string]bool) bool {
  flags := map[string]bool{
    "outdoorSeating":       place.OutdoorSeating,
    "allowsDogs":           place.AllowsDogs,
    "dineIn":               place.DineIn,
    "takeout":              place.Takeout,
    "delivery":             place.Delivery,
    "servesCoffee":         place.ServesCoffee,
    "goodForGroups":        place.GoodForGroups,
    "servesBreakfast":      place.ServesBreakfast,
    "servesBrunch":         place.ServesBrunch,
    "servesVegetarianFood": place.ServesVegetarianFood,
  }
  for key := range filters {
    if !flags[key] {
      return false
    }
  }
  return true
}
