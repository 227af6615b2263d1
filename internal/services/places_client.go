package services

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "io"
  "net/http"
  "net/url"
  "strings"
  "time"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/types"
  "github.com/milaplaces/mila-backend/internal/utils"
)

// Field mask for all onboarding searches and detail lookups (search
// endpoints prefix the fields with "places.").
var onboardingFields = []string{
  "id",
  "displayName",
  "formattedAddress",
  "location",
  "types",
  "primaryType",
  "rating",
  "photos",
  "reviews",
  "priceLevel",
  "regularOpeningHours",
}

// Attribute booleans used by search filters. Only requested for paid tiers:
// places returned without them cannot answer attribute filters, so callers
// that skip this mask must also skip attribute filtering.
var searchAttributeFields = []string{
  "outdoorSeating",
  "allowsDogs",
  "dineIn",
  "takeout",
  "delivery",
  "servesCoffee",
  "goodForGroups",
  "servesBreakfast",
  "servesBrunch",
  "servesVegetarianFood",
}

type NearbySearchParams struct {
  Latitude       float64
  Longitude      float64
  RadiusMeters   float64
  IncludedTypes  []string
  MaxResultCount int
}

type TextSearchParams struct {
  TextQuery           string
  BiasLatitude        float64
  BiasLongitude       float64
  BiasRadiusMeters    float64
  IncludedType        string
  StrictTypeFiltering bool
  MaxResultCount      int
  IncludeAttributes   bool
}

// PlaceSearchProvider abstracts the place-search capability. All calls are
// idempotent reads; zero results are not an error.
type PlaceSearchProvider interface {
  SearchNearby(ctx context.Context, params NearbySearchParams) ([]types.PlaceCandidate, error)
  SearchText(ctx context.Context, params TextSearchParams) ([]types.PlaceCandidate, error)
  PlaceDetails(ctx context.Context, placeID string) (*types.PlaceCandidate, error)
  PlaceLocation(ctx context.Context, placeID string) (*types.LatLng, error)
  Autocomplete(ctx context.Context, input string, includedPrimaryTypes []string, bias *types.LatLng, biasRadiusMeters float64) ([]types.AutocompleteSuggestion, error)
}

type googlePlacesClient struct {
  log        *logger.Logger
  baseURL    string
  apiKey     string
  httpClient *http.Client
}

func NewGooglePlacesClient(log *logger.Logger) (PlaceSearchProvider, error) {
  apiKey := utils.GetEnv("GOOGLE_PLACES_API_KEY", "", log)
  if apiKey == "" {
    return nil, fmt.Errorf("missing GOOGLE_PLACES_API_KEY")
  }
  baseURL := utils.GetEnv("GOOGLE_PLACES_BASE_URL", "https://places.googleapis.com/v1", log)
  timeoutSec := utils.GetEnvAsInt("GOOGLE_PLACES_TIMEOUT_SECONDS", 15, log)

  return &googlePlacesClient{
    log:        log.With("service", "GooglePlacesClient"),
    baseURL:    baseURL,
    apiKey:     apiKey,
    httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
  }, nil
}

func searchFieldMask(includeAttributes bool) string {
  names := onboardingFields
  if includeAttributes {
    names = append(append([]string{}, onboardingFields...), searchAttributeFields...)
  }
  fields := make([]string, 0, len(names))
  for _, f := range names {
    fields = append(fields, "places."+f)
  }
  return strings.Join(fields, ",")
}

func detailsFieldMask() string {
  return strings.Join(onboardingFields, ",")
}

func (c *googlePlacesClient) post(ctx context.Context, path, fieldMask string, body any, out any) error {
  var buf bytes.Buffer
  if err := json.NewEncoder(&buf).Encode(body); err != nil {
    return err
  }
  req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
  if err != nil {
    return err
  }
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("X-Goog-Api-Key", c.apiKey)
  if fieldMask != "" {
    req.Header.Set("X-Goog-FieldMask", fieldMask)
  }
  return c.send(req, out)
}

func (c *googlePlacesClient) get(ctx context.Context, path, fieldMask string, out any) error {
  req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
  if err != nil {
    return err
  }
  req.Header.Set("Content-Type", "application/json")
  req.Header.Set("X-Goog-Api-Key", c.apiKey)
  req.Header.Set("X-Goog-FieldMask", fieldMask)
  return c.send(req, out)
}

func (c *googlePlacesClient) send(req *http.Request, out any) error {
  resp, err := c.httpClient.Do(req)
  if err != nil {
    return fmt.Errorf("%w: %v", apierr.ErrProviderTransport, err)
  }
  raw, readErr := io.ReadAll(resp.Body)
  _ = resp.Body.Close()
  if readErr != nil {
    return fmt.Errorf("%w: read body: %v", apierr.ErrProviderTransport, readErr)
  }
  if resp.StatusCode == http.StatusNotFound {
    return apierr.ErrNotFound
  }
  if resp.StatusCode < 200 || resp.StatusCode >= 300 {
    return fmt.Errorf("%w: places api %d: %s", apierr.ErrProviderTransport, resp.StatusCode, string(raw))
  }
  if out == nil {
    return nil
  }
  if err := json.Unmarshal(raw, out); err != nil {
    return fmt.Errorf("%w: decode: %v", apierr.ErrProviderTransport, err)
  }
  return nil
}

// ---- wire types ----

type apiPlace struct {
  ID          string `json:"id"`
  DisplayName *struct {
    Text string `json:"text"`
  } `json:"displayName"`
  FormattedAddress string `json:"formattedAddress"`
  Location         *struct {
    Latitude  float64 `json:"latitude"`
    Longitude float64 `json:"longitude"`
  } `json:"location"`
  Types       []string `json:"types"`
  PrimaryType string   `json:"primaryType"`
  Rating      float64  `json:"rating"`
  PriceLevel  string   `json:"priceLevel"`
  Photos      []struct {
    Name string `json:"name"`
  } `json:"photos"`
  Reviews []struct {
    Text *struct {
      Text string `json:"text"`
    } `json:"text"`
    Rating            float64 `json:"rating"`
    AuthorAttribution *struct {
      DisplayName string `json:"displayName"`
    } `json:"authorAttribution"`
  } `json:"reviews"`
  RegularOpeningHours *struct {
    OpenNow             *bool    `json:"openNow"`
    WeekdayDescriptions []string `json:"weekdayDescriptions"`
  } `json:"regularOpeningHours"`

  OutdoorSeating       bool `json:"outdoorSeating"`
  AllowsDogs           bool `json:"allowsDogs"`
  DineIn               bool `json:"dineIn"`
  Takeout              bool `json:"takeout"`
  Delivery             bool `json:"delivery"`
  ServesCoffee         bool `json:"servesCoffee"`
  GoodForGroups        bool `json:"goodForGroups"`
  ServesBreakfast      bool `json:"servesBreakfast"`
  ServesBrunch         bool `json:"servesBrunch"`
  ServesVegetarianFood bool `json:"servesVegetarianFood"`
}

// The API reports price as a string enum; the rest of the code works with
// the 0-4 level it encodes.
var priceLevels = map[string]int{
  "PRICE_LEVEL_FREE":           0,
  "PRICE_LEVEL_INEXPENSIVE":    1,
  "PRICE_LEVEL_MODERATE":       2,
  "PRICE_LEVEL_EXPENSIVE":      3,
  "PRICE_LEVEL_VERY_EXPENSIVE": 4,
}

func (c *googlePlacesClient) transformPlace(p apiPlace) types.PlaceCandidate {
  candidate := types.PlaceCandidate{
    PlaceID:     p.ID,
    Address:     p.FormattedAddress,
    Types:       p.Types,
    PrimaryType: p.PrimaryType,
    Rating:      p.Rating,

    OutdoorSeating:       p.OutdoorSeating,
    AllowsDogs:           p.AllowsDogs,
    DineIn:               p.DineIn,
    Takeout:              p.Takeout,
    Delivery:             p.Delivery,
    ServesCoffee:         p.ServesCoffee,
    GoodForGroups:        p.GoodForGroups,
    ServesBreakfast:      p.ServesBreakfast,
    ServesBrunch:         p.ServesBrunch,
    ServesVegetarianFood: p.ServesVegetarianFood,
  }
  if p.DisplayName != nil {
    candidate.DisplayName = p.DisplayName.Text
  }
  if level, ok := priceLevels[p.PriceLevel]; ok {
    candidate.PriceLevel = &level
  }
  if p.Location != nil {
    candidate.Location = &types.LatLng{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
  }
  for _, photo := range p.Photos {
    candidate.Photos = append(candidate.Photos,
      fmt.Sprintf("%s/%s/media?key=%s&maxWidthPx=800&maxHeightPx=800", c.baseURL, photo.Name, c.apiKey))
  }
  for _, review := range p.Reviews {
    r := types.PlaceReview{Rating: review.Rating}
    if review.Text != nil {
      r.Text = review.Text.Text
    }
    if review.AuthorAttribution != nil {
      r.AuthorName = review.AuthorAttribution.DisplayName
    }
    candidate.Reviews = append(candidate.Reviews, r)
  }
  if p.RegularOpeningHours != nil {
    candidate.OpeningHours = &types.OpeningHours{
      OpenNow:     p.RegularOpeningHours.OpenNow,
      WeekdayText: p.RegularOpeningHours.WeekdayDescriptions,
    }
  }
  return candidate
}

type circleBody struct {
  Circle struct {
    Center struct {
      Latitude  float64 `json:"latitude"`
      Longitude float64 `json:"longitude"`
    } `json:"center"`
    Radius float64 `json:"radius"`
  } `json:"circle"`
}

func circle(lat, lng, radius float64) circleBody {
  var c circleBody
  c.Circle.Center.Latitude = lat
  c.Circle.Center.Longitude = lng
  c.Circle.Radius = radius
  return c
}

func (c *googlePlacesClient) SearchNearby(ctx context.Context, params NearbySearchParams) ([]types.PlaceCandidate, error) {
  body := map[string]any{
    "locationRestriction": circle(params.Latitude, params.Longitude, params.RadiusMeters),
    "maxResultCount":      params.MaxResultCount,
    "rankPreference":      "POPULARITY",
  }
  if len(params.IncludedTypes) > 0 {
    body["includedTypes"] = params.IncludedTypes
  }

  var resp struct {
    Places []apiPlace `json:"places"`
  }
  if err := c.post(ctx, "/places:searchNearby", searchFieldMask(false), body, &resp); err != nil {
    return nil, err
  }
  results := make([]types.PlaceCandidate, 0, len(resp.Places))
  for _, p := range resp.Places {
    results = append(results, c.transformPlace(p))
  }
  return results, nil
}

func (c *googlePlacesClient) SearchText(ctx context.Context, params TextSearchParams) ([]types.PlaceCandidate, error) {
  body := map[string]any{
    "textQuery":      params.TextQuery,
    "maxResultCount": params.MaxResultCount,
  }
  if params.BiasRadiusMeters > 0 {
    body["locationBias"] = circle(params.BiasLatitude, params.BiasLongitude, params.BiasRadiusMeters)
  }
  if params.IncludedType != "" {
    body["includedType"] = params.IncludedType
    if params.StrictTypeFiltering {
      body["strictTypeFiltering"] = true
    }
  }

  var resp struct {
    Places []apiPlace `json:"places"`
  }
  if err := c.post(ctx, "/places:searchText", searchFieldMask(params.IncludeAttributes), body, &resp); err != nil {
    return nil, err
  }
  results := make([]types.PlaceCandidate, 0, len(resp.Places))
  for _, p := range resp.Places {
    results = append(results, c.transformPlace(p))
  }
  return results, nil
}

func (c *googlePlacesClient) PlaceDetails(ctx context.Context, placeID string) (*types.PlaceCandidate, error) {
  var p apiPlace
  if err := c.get(ctx, "/places/"+url.PathEscape(placeID), detailsFieldMask(), &p); err != nil {
    return nil, err
  }
  candidate := c.transformPlace(p)
  return &candidate, nil
}

func (c *googlePlacesClient) PlaceLocation(ctx context.Context, placeID string) (*types.LatLng, error) {
  var resp struct {
    Location *struct {
      Latitude  float64 `json:"latitude"`
      Longitude float64 `json:"longitude"`
    } `json:"location"`
  }
  if err := c.get(ctx, "/places/"+url.PathEscape(placeID), "location", &resp); err != nil {
    return nil, err
  }
  if resp.Location == nil {
    return nil, nil
  }
  return &types.LatLng{Lat: resp.Location.Latitude, Lng: resp.Location.Longitude}, nil
}

func (c *googlePlacesClient) Autocomplete(ctx context.Context, input string, includedPrimaryTypes []string, bias *types.LatLng, biasRadiusMeters float64) ([]types.AutocompleteSuggestion, error) {
  body := map[string]any{"input": input}
  // The provider caps includedPrimaryTypes at 5 values.
  if len(includedPrimaryTypes) > 5 {
    includedPrimaryTypes = includedPrimaryTypes[:5]
  }
  if len(includedPrimaryTypes) > 0 {
    body["includedPrimaryTypes"] = includedPrimaryTypes
  }
  if bias != nil {
    radius := biasRadiusMeters
    if radius <= 0 {
      radius = 5000
    }
    body["locationBias"] = circle(bias.Lat, bias.Lng, radius)
  }

  var resp struct {
    Suggestions []struct {
      PlacePrediction *struct {
        PlaceID string `json:"placeId"`
        Text    *struct {
          Text string `json:"text"`
        } `json:"text"`
      } `json:"placePrediction"`
    } `json:"suggestions"`
  }
  if err := c.post(ctx, "/places:autocomplete", "", body, &resp); err != nil {
    return nil, err
  }

  results := make([]types.AutocompleteSuggestion, 0, len(resp.Suggestions))
  for _, s := range resp.Suggestions {
    if s.PlacePrediction == nil {
      continue
    }
    suggestion := types.AutocompleteSuggestion{PlaceID: s.PlacePrediction.PlaceID}
    if s.PlacePrediction.Text != nil {
      suggestion.Description = s.PlacePrediction.Text.Text
    }
    results = append(results, suggestion)
  }
  return results, nil
}
