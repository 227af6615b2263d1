package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"

  "github.com/milaplaces/mila-backend/internal/apierr"
  "github.com/milaplaces/mila-backend/internal/logger"
  "github.com/milaplaces/mila-backend/internal/repos"
  "github.com/milaplaces/mila-backend/internal/types"
)

const placeDetailsCacheTTL = 7 * 24 * time.Hour

// PlaceService fronts the place-search provider with a redis details cache
// and manages each user's saved places.
type PlaceService interface {
  Details(ctx context.Context, placeID string) (*types.PlaceCandidate, error)
  Autocomplete(ctx context.Context, input string, includedPrimaryTypes []string, bias *types.LatLng, biasRadiusMeters float64) ([]types.AutocompleteSuggestion, error)
  Save(ctx context.Context, userID uuid.UUID, placeID string, category types.PlaceCategory) (*types.SavedPlace, error)
  Unsave(ctx context.Context, userID uuid.UUID, placeID string) error
  ListSaved(ctx context.Context, userID uuid.UUID) ([]*types.SavedPlace, error)
  Rate(ctx context.Context, userID uuid.UUID, placeID string, rating int, notes string) error
}

type placeService struct {
  log      *logger.Logger
  provider PlaceSearchProvider
  cache    repos.PlaceCacheRepo
  saved    repos.SavedPlaceRepo
}

func NewPlaceService(log *logger.Logger, provider PlaceSearchProvider, cache repos.PlaceCacheRepo, saved repos.SavedPlaceRepo) PlaceService {
  serviceLog := log.With("service", "PlaceService")
  return &placeService{log: serviceLog, provider: provider, cache: cache, saved: saved}
}

// Details reads through the cache. Cache failures degrade to a provider
// call, never to an error.
func (s *placeService) Details(ctx context.Context, placeID string) (*types.PlaceCandidate, error) {
  if strings.TrimSpace(placeID) == "" {
    return nil, fmt.Errorf("%w: place id is required", apierr.ErrInvalidArgument)
  }
  cached, err := s.cache.Get(ctx, placeID)
  if err != nil {
    s.log.Warn("Place cache read failed", "place_id", placeID, "error", err)
  }
  if cached != nil {
    return cached, nil
  }

  place, err := s.provider.PlaceDetails(ctx, placeID)
  if err != nil {
    return nil, err
  }
  if err := s.cache.Put(ctx, place, placeDetailsCacheTTL); err != nil {
    s.log.Warn("Place cache write failed", "place_id", placeID, "error", err)
  }
  return place, nil
}

func (s *placeService) Autocomplete(ctx context.Context, input string, includedPrimaryTypes []string, bias *types.LatLng, biasRadiusMeters float64) ([]types.AutocompleteSuggestion, error) {
  if strings.TrimSpace(input) == "" {
    return nil, fmt.Errorf("%w: input is required", apierr.ErrInvalidArgument)
  }
  return s.provider.Autocomplete(ctx, input, includedPrimaryTypes, bias, biasRadiusMeters)
}

func (s *placeService) Save(ctx context.Context, userID uuid.UUID, placeID string, category types.PlaceCategory) (*types.SavedPlace, error) {
  details, err := s.Details(ctx, placeID)
  if err != nil {
    return nil, err
  }
  photos, err := json.Marshal(details.Photos)
  if err != nil {
    return nil, fmt.Errorf("encoding photos: %w", err)
  }
  placeTypes, err := json.Marshal(details.Types)
  if err != nil {
    return nil, fmt.Errorf("encoding types: %w", err)
  }
  row := &types.SavedPlace{
    UserID:    userID,
    PlaceID:   placeID,
    PlaceName: details.DisplayName,
    Category:  category,
    Address:   details.Address,
    Photos:    datatypes.JSON(photos),
    Types:     datatypes.JSON(placeTypes),
  }
  if err := s.saved.Save(ctx, nil, row); err != nil {
    return nil, err
  }
  return row, nil
}

func (s *placeService) Unsave(ctx context.Context, userID uuid.UUID, placeID string) error {
  return s.saved.Delete(ctx, nil, userID, placeID)
}

func (s *placeService) ListSaved(ctx context.Context, userID uuid.UUID) ([]*types.SavedPlace, error) {
  return s.saved.ListByUser(ctx, nil, userID)
}

func (s *placeService) Rate(ctx context.Context, userID uuid.UUID, placeID string, rating int, notes string) error {
  if rating < 1 || rating > 5 {
    return fmt.Errorf("%w: rating must be 1-5", apierr.ErrInvalidArgument)
  }
  return s.saved.Rate(ctx, nil, userID, placeID, rating, notes)
}
